// Package node runs the main control loop: sample, renew when the lease is
// up, upload, and the single bounded 401 recovery per reading.
package node

import (
	"context"
	"time"

	"github.com/juju/errors"
	"github.com/windevs/sensornode/helpers"
	"github.com/windevs/sensornode/internal/devclock"
	"github.com/windevs/sensornode/internal/sensor"
	"github.com/windevs/sensornode/internal/session"
	"github.com/windevs/sensornode/internal/state"
	"github.com/windevs/sensornode/internal/telemetry"
	"github.com/windevs/sensornode/log2"
)

// Worker is one iteration's worth of collaborators, extracted from Global
// so renewal/upload orchestration tests need no global fixtures.
type Worker struct {
	Log      *log2.Log
	Clock    *devclock.Clock
	Sensor   sensor.Devicer
	Session  *session.Manager
	Uploader *telemetry.Uploader
}

func NewWorker(g *state.Global) *Worker {
	return &Worker{
		Log:      g.Log,
		Clock:    g.Clock,
		Sensor:   g.Sensor,
		Session:  g.Session,
		Uploader: g.Uploader,
	}
}

// Run blocks until Alive stop. Network calls happen inline, one at a time;
// the loop deliberately has no overlap between operations.
func Run(ctx context.Context) {
	g := state.GetGlobal(ctx)
	w := NewWorker(g)

	if g.Config.NTP.Enable {
		if err := g.Clock.Sync(g.Config.NTP.Host); err != nil {
			// readings proceed with placeholder timestamps
			g.Error(err)
		}
	}

	// initial acquisition failure is not fatal: the node keeps sampling,
	// uploads are rejected locally until a later cycle succeeds
	if err := w.Session.Acquire(ctx); err != nil {
		g.Error(errors.Annotate(err, "initial acquire"))
	}

	poll := time.NewTicker(helpers.IntSecondDefault(g.Config.PollSec, 2*time.Second))
	defer poll.Stop()

	var resyncCh <-chan time.Time
	if g.Config.NTP.Enable {
		resync := time.NewTicker(helpers.IntSecondDefault(g.Config.NTP.ResyncSec, time.Hour))
		defer resync.Stop()
		resyncCh = resync.C
	}

	g.Log.Infof("node loop running poll=%ds sensor=%s", g.Config.PollSec, g.Sensor.String())
	for {
		select {
		case <-g.Alive.StopChan():
			return
		case <-resyncCh:
			if err := g.Clock.Sync(g.Config.NTP.Host); err != nil {
				g.Log.Errorf("ntp resync err=%v", err)
			}
		case <-poll.C:
			w.Step(ctx)
		}
	}
}

// Step performs one full iteration. Errors never escape: a reading is either
// delivered or dropped with a report, the loop always continues.
func (w *Worker) Step(ctx context.Context) {
	humidity, tempC, err := w.Sensor.Read()
	if err == nil {
		err = sensor.Validate(humidity, tempC)
	}
	if err != nil {
		// one bad poll drops one reading
		w.Log.Errorf("sensor read err=%v", err)
		return
	}

	reading := telemetry.NewReading(humidity, tempC, w.Clock.UptimeSeconds(), w.Clock.Timestamp())
	w.renewIfDue(ctx)
	w.deliver(ctx, reading)
}

func (w *Worker) renewIfDue(ctx context.Context) {
	if !w.Session.NeedsRenewal(w.Clock.Now()) {
		return
	}
	var err error
	if _, held := w.Session.Current(); held {
		err = w.Session.Renew(ctx)
	} else {
		err = w.Session.Acquire(ctx)
	}
	if err != nil {
		// no backoff, no lockout: next iteration independently re-attempts
		w.Log.Errorf("session refresh err=%v", err)
	}
}

// deliver uploads with at most one renewal retry. A failed reading is
// dropped, never queued for a later cycle: readings are point-in-time and a
// stale resend would misrepresent current state.
func (w *Worker) deliver(ctx context.Context, reading telemetry.Reading) {
	cred, _ := w.Session.Current()
	err := w.Uploader.Send(ctx, reading, cred)
	switch {
	case err == nil:
		w.Log.Debugf("reading delivered uptime=%d", reading.UptimeSeconds)
		return

	case telemetry.IsUnauthorized(err):
		if rerr := w.Session.Renew(ctx); rerr != nil {
			w.Log.Errorf("reading dropped: renew after 401 err=%v", rerr)
			return
		}
		cred, _ = w.Session.Current()
		if err = w.Uploader.Send(ctx, reading, cred); err != nil {
			w.Log.Errorf("reading dropped: retry err=%v", err)
		}
		return

	default:
		// transport failure or local rejection, next cycle has fresh data
		w.Log.Errorf("reading dropped: %v", err)
	}
}
