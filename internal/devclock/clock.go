// Package devclock provides the two time sources of the node: monotonic
// uptime since process start and best-effort wall clock corrected by NTP.
// Missing NTP sync never blocks readings, timestamps just fall back to the
// uncorrected local clock.
package devclock

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/beevik/ntp"
	"github.com/juju/errors"
	"github.com/temoto/atomic_clock"
	"github.com/windevs/sensornode/log2"
)

const TimestampLayout = "2006-01-02 15:04:05"

type Clock struct {
	log    *log2.Log
	boot   *atomic_clock.Clock
	offset int64 // atomic, nanoseconds of NTP correction
	synced uint32
}

func New(log *log2.Log) *Clock {
	return &Clock{
		log:  log,
		boot: atomic_clock.Now(),
	}
}

func (c *Clock) Uptime() time.Duration { return atomic_clock.Since(c.boot) }

func (c *Clock) UptimeSeconds() uint64 { return uint64(c.Uptime() / time.Second) }

// Sync queries the network time reference once and stores the correction.
func (c *Clock) Sync(host string) error {
	r, err := ntp.QueryWithOptions(host, ntp.QueryOptions{Timeout: 5 * time.Second})
	if err == nil {
		err = r.Validate()
	}
	if err != nil {
		return errors.Annotatef(err, "ntp host=%s", host)
	}
	atomic.StoreInt64(&c.offset, int64(r.ClockOffset))
	atomic.StoreUint32(&c.synced, 1)
	c.log.Debugf("ntp sync host=%s offset=%v", host, r.ClockOffset)
	return nil
}

func (c *Clock) Synced() bool { return atomic.LoadUint32(&c.synced) != 0 }

// Now is NTP-corrected after a successful Sync, plain local clock before.
func (c *Clock) Now() time.Time {
	return time.Now().Add(time.Duration(atomic.LoadInt64(&c.offset)))
}

func (c *Clock) Timestamp() string {
	return c.Now().Format(TimestampLayout)
}

// FormatUptime renders seconds as "0d 1h 2m 5s".
func FormatUptime(uptimeSeconds uint64) string {
	days := uptimeSeconds / 86400
	hours := (uptimeSeconds % 86400) / 3600
	minutes := (uptimeSeconds % 3600) / 60
	seconds := uptimeSeconds % 60
	return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
}
