package node

import (
	"context"
	"net/http"
	"sync"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	gpio "github.com/temoto/gpio-cdev-go"
	"github.com/windevs/sensornode/cmd/sensornode/subcmd"
	"github.com/windevs/sensornode/helpers"
	"github.com/windevs/sensornode/internal/admin"
	"github.com/windevs/sensornode/internal/confstore"
	"github.com/windevs/sensornode/internal/node"
	"github.com/windevs/sensornode/internal/state"
)

var Mod = subcmd.Mod{Name: "node", Main: Main}

func Main(ctx context.Context, config *state.Config) error {
	g := state.GetGlobal(ctx)
	g.MustInit(ctx, config)
	g.Log.Debugf("config=%+v", g.Config)

	// network identity established once at boot; blank is valid factory state
	ssid := g.Store.Get(confstore.FieldSSID)
	g.Log.Infof("boot ssid='%s' sensor_id=%s build=%s", ssid, g.Config.Upload.SensorID, g.BuildVersion)

	wg := sync.WaitGroup{}
	errch := make(chan error, 2)
	if g.Config.Admin.Enable {
		wg.Add(1)
		go helpers.WrapErrChan(&wg, errch, func() error { return startWeb(g) })
	}
	if g.Config.Hardware.ResetButton.Enable {
		wg.Add(1)
		go helpers.WrapErrChan(&wg, errch, func() error { return startResetButton(g) })
	}
	wg.Wait()
	close(errch)
	if err := helpers.FoldErrChan(errch); err != nil {
		return errors.Annotate(err, "subsystem init")
	}

	subcmd.SdNotify(daemon.SdNotifyReady)
	g.Log.Debugf("node init complete")

	node.Run(ctx)
	return nil
}

func startWeb(g *state.Global) error {
	web := &admin.Web{
		Log:      g.Log,
		Store:    g.Store,
		Sensor:   g.Sensor,
		Clock:    g.Clock,
		Username: g.Config.Admin.Username,
		Password: g.Config.Admin.Password,
		Restart:  g.RequestRestart,
	}
	srv := &http.Server{
		Addr:    g.Config.Admin.Listen,
		Handler: web.Router(),
	}
	if !g.Alive.Add(2) {
		return errors.Errorf("node already stopping")
	}
	go func() {
		defer g.Alive.Done()
		g.Log.Infof("admin web listen=%s", g.Config.Admin.Listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			g.Error(errors.Annotate(err, "admin web"))
		}
	}()
	go func() {
		defer g.Alive.Done()
		<-g.Alive.StopChan()
		_ = srv.Close()
	}()
	return nil
}

func startResetButton(g *state.Global) error {
	cfg := &g.Config.Hardware.ResetButton
	chip, err := gpio.Open(cfg.PinChip, "sensornode")
	if err != nil {
		return errors.Annotatef(err, "chip=%s", cfg.PinChip)
	}
	button := &admin.ResetButton{
		Log:     g.Log,
		Chip:    chip,
		Pin:     cfg.Pin,
		Hold:    helpers.IntSecondDefault(cfg.HoldSec, 0),
		Store:   g.Store,
		Restart: g.RequestRestart,
	}
	if !g.Alive.Add(1) {
		chip.Close()
		return errors.Errorf("node already stopping")
	}
	go func() {
		defer g.Alive.Done()
		defer chip.Close()
		if err := button.Run(g.Alive.StopChan()); err != nil {
			g.Error(err)
		}
	}()
	return nil
}
