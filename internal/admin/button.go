package admin

import (
	"time"

	"github.com/juju/errors"
	gpio "github.com/temoto/gpio-cdev-go"
	"github.com/windevs/sensornode/internal/confstore"
	"github.com/windevs/sensornode/log2"
)

const buttonPollInterval = 100 * time.Millisecond

// ResetButton watches one active-low input line. Continuous hold for the
// configured duration clears network credentials and restarts; a shorter
// press or bounce resets the countdown.
type ResetButton struct {
	Log     *log2.Log
	Chip    gpio.Chiper
	Pin     uint32
	Hold    time.Duration
	Store   *confstore.Store
	Restart func(reason string)
}

func (b *ResetButton) Run(stop <-chan struct{}) error {
	lines, err := b.Chip.OpenLines(gpio.GPIOHANDLE_REQUEST_INPUT, "reset-button", b.Pin)
	if err != nil {
		return errors.Annotatef(err, "reset button pin=%d", b.Pin)
	}
	defer lines.Close()

	tick := time.NewTicker(buttonPollInterval)
	defer tick.Stop()

	var pressedSince time.Time
	for {
		select {
		case <-stop:
			return nil

		case <-tick.C:
			data, err := lines.Read()
			if err != nil {
				return errors.Annotatef(err, "reset button read pin=%d", b.Pin)
			}
			pressed := data.Values[0] == 0 // active low
			if !pressed {
				pressedSince = time.Time{}
				continue
			}
			if pressedSince.IsZero() {
				pressedSince = time.Now()
				continue
			}
			if time.Since(pressedSince) >= b.Hold {
				b.Log.Infof("reset button held %v, clearing network config", b.Hold)
				return b.factoryReset()
			}
		}
	}
}

func (b *ResetButton) factoryReset() error {
	if err := b.Store.Clear(confstore.FieldSSID); err != nil {
		// unconfirmed commit: do not restart into indeterminate config
		return errors.Annotate(err, "factory reset ssid")
	}
	if err := b.Store.Clear(confstore.FieldPassword); err != nil {
		return errors.Annotate(err, "factory reset password")
	}
	b.Restart("reset button factory clear")
	return nil
}
