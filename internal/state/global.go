package state

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/windevs/sensornode/helpers"
	"github.com/windevs/sensornode/internal/confstore"
	"github.com/windevs/sensornode/internal/devclock"
	"github.com/windevs/sensornode/internal/sensor"
	"github.com/windevs/sensornode/internal/session"
	"github.com/windevs/sensornode/internal/telemetry"
	"github.com/windevs/sensornode/log2"
)

const ContextKey = "run/state-global"

// Collector defaults match the staging deployment, production overrides in hcl.
const (
	defaultUploadEndpoint  = "https://windevs.uz/sensors/api/sensor-data/"
	defaultTokenEndpoint   = "https://windevs.uz/sensors/api/token/"
	defaultRefreshEndpoint = "https://windevs.uz/sensors/api/token/refresh/"
)

type Global struct {
	Alive        *alive.Alive
	BuildVersion string
	Config       *Config
	Log          *log2.Log
	Clock        *devclock.Clock
	Store        *confstore.Store
	Session      *session.Manager
	Uploader     *telemetry.Uploader
	Sensor       sensor.Devicer

	restart uint32

	_copy_guard sync.Mutex //nolint:unused
}

func NewContext(log *log2.Log) (context.Context, *Global) {
	if log == nil {
		panic("code error NewContext() log=nil")
	}
	g := &Global{
		Alive: alive.NewAlive(),
		Log:   log,
	}
	ctx := context.Background()
	ctx = context.WithValue(ctx, ContextKey, g) //nolint:staticcheck
	return ctx, g
}

func GetGlobal(ctx context.Context) *Global {
	v := ctx.Value(ContextKey)
	if v == nil {
		panic(fmt.Sprintf("context['%s'] is nil", ContextKey))
	}
	if g, ok := v.(*Global); ok {
		return g
	}
	panic(fmt.Sprintf("context['%s'] expected type *Global actual=%#v", ContextKey, v))
}

// If `Init` fails, consider `Global` is in broken state.
func (g *Global) Init(ctx context.Context, cfg *Config) error {
	g.Config = cfg
	g.Log.Infof("build version=%s", g.BuildVersion)

	g.normalizeConfig()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		g.Log.Infof("--- node stop ---")
		g.Stop()
	}()

	g.Clock = devclock.New(g.Log.Clone(log2.LInfo))

	store, err := confstore.Open(filepath.Join(g.Config.Persist.Root, "config"), g.Log.Clone(log2.LInfo))
	if err != nil {
		return errors.Annotate(err, "confstore init")
	}
	g.Store = store

	g.Session = session.NewManager(g.Log.Clone(log2.LInfo), session.Config{
		TokenURL:   g.Config.Upload.TokenEndpoint,
		RefreshURL: g.Config.Upload.RefreshEndpoint,
		Username:   g.Config.Upload.Username,
		Password:   g.Config.Upload.Password,
		Lease:      helpers.IntSecondDefault(g.Config.Upload.LeaseSec, session.DefaultLease),
		Timeout:    helpers.IntSecondDefault(g.Config.Upload.TimeoutSec, session.DefaultTimeout),
	}, nil, g.Clock.Now)

	g.Uploader = telemetry.NewUploader(g.Log.Clone(log2.LInfo), telemetry.Config{
		Endpoint: g.Config.Upload.Endpoint,
		SensorID: g.Config.Upload.SensorID,
		Timeout:  helpers.IntSecondDefault(g.Config.Upload.TimeoutSec, session.DefaultTimeout),
	}, nil)

	return g.initSensor()
}

func (g *Global) MustInit(ctx context.Context, cfg *Config) {
	if err := g.Init(ctx, cfg); err != nil {
		g.Fatal(err)
	}
}

func (g *Global) normalizeConfig() {
	c := g.Config
	if c.PollSec == 0 {
		c.PollSec = 2
	}
	if c.Persist.Root == "" {
		c.Persist.Root = "./sensornode-db"
		g.Log.Errorf("config: persist.root=empty changed=%s", c.Persist.Root)
	}
	g.Log.Debugf("config: persist.root=%s", c.Persist.Root)

	if c.Upload.Endpoint == "" {
		c.Upload.Endpoint = defaultUploadEndpoint
	}
	if c.Upload.TokenEndpoint == "" {
		c.Upload.TokenEndpoint = defaultTokenEndpoint
	}
	if c.Upload.RefreshEndpoint == "" {
		c.Upload.RefreshEndpoint = defaultRefreshEndpoint
	}
	if c.Upload.SensorID == "" {
		c.Upload.SensorID = firstMAC()
		g.Log.Debugf("config: upload.sensor_id=empty using mac=%s", c.Upload.SensorID)
	}
	if c.Admin.Listen == "" {
		c.Admin.Listen = ":8080"
	}
	if c.NTP.Host == "" {
		c.NTP.Host = "pool.ntp.org"
	}
	if c.NTP.ResyncSec == 0 {
		c.NTP.ResyncSec = 3600
	}
	if c.Hardware.ResetButton.HoldSec == 0 {
		c.Hardware.ResetButton.HoldSec = 3
	}
}

func (g *Global) initSensor() error {
	if g.Config.Hardware.Sensor.Mock {
		g.Sensor = &sensor.Mock{Humidity: 45.2, TempC: 22.1}
		return nil
	}
	// TODO wire a real DHT22 driver over periph.io gpio once the probe
	// lands on production boards
	return errors.NotImplementedf("hardware.sensor: only mock available, set mock=true")
}

func (g *Global) Error(err error, args ...interface{}) {
	if err != nil {
		if len(args) != 0 {
			msg := args[0].(string)
			args = args[1:]
			err = errors.Annotatef(err, msg, args...)
		}
		g.Log.Error(err)
	}
}

func (g *Global) Fatal(err error, args ...interface{}) {
	if err != nil {
		g.Error(err, args...)
		g.StopWait(5 * time.Second)
		g.Log.Fatal(err)
		os.Exit(1)
	}
}

func (g *Global) Stop() { g.Alive.Stop() }

func (g *Global) StopWait(timeout time.Duration) bool {
	g.Alive.Stop()
	select {
	case <-g.Alive.WaitChan():
		return true
	case <-time.After(timeout):
		return false
	}
}

// RequestRestart stops the process expecting the service manager to bring
// it back up with the new persisted configuration. Callers must have
// committed their confstore writes first.
func (g *Global) RequestRestart(reason string) {
	g.Log.Infof("restart requested: %s", reason)
	atomic.StoreUint32(&g.restart, 1)
	g.Stop()
}

func (g *Global) RestartRequested() bool { return atomic.LoadUint32(&g.restart) != 0 }

// firstMAC is the stable device identifier, same role as the hardware MAC
// in the upload payload.
func firstMAC() string {
	ifaces, err := net.Interfaces()
	if err == nil {
		for _, iface := range ifaces {
			if len(iface.HardwareAddr) > 0 && iface.Flags&net.FlagLoopback == 0 {
				return iface.HardwareAddr.String()
			}
		}
	}
	return "unknown"
}
