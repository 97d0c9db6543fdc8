package state

import (
	"context"
	"testing"

	"github.com/windevs/sensornode/log2"
)

func NewTestContext(t testing.TB, confString string) (context.Context, *Global) {
	fs := NewMockFullReader(map[string]string{
		"test-inline": confString,
	})
	log := log2.NewTest(t, log2.LDebug)
	log.SetFlags(log2.LTestFlags)
	ctx, g := NewContext(log)

	cfg := MustReadConfig(log, fs, "test-inline")
	cfg.Hardware.Sensor.Mock = true
	if cfg.Persist.Root == "" {
		cfg.Persist.Root = t.TempDir()
	}
	g.MustInit(ctx, cfg)
	return ctx, g
}
