package state

import (
	"sync"

	"github.com/hashicorp/hcl"
	"github.com/juju/errors"
	"github.com/windevs/sensornode/log2"
)

type Config struct {
	// PollSec is the sensor loop period.
	PollSec int `hcl:"poll_sec"`

	Upload struct {
		Endpoint        string `hcl:"endpoint"`
		TokenEndpoint   string `hcl:"token_endpoint"`
		RefreshEndpoint string `hcl:"refresh_endpoint"`
		Username        string `hcl:"username"`
		Password        string `hcl:"password"`
		SensorID        string `hcl:"sensor_id"`
		TimeoutSec      int    `hcl:"timeout_sec"`
		LeaseSec        int    `hcl:"lease_sec"`
	} `hcl:"upload"`

	Persist struct {
		Root string `hcl:"root"`
	} `hcl:"persist"`

	Admin struct {
		Enable   bool   `hcl:"enable"`
		Listen   string `hcl:"listen"`
		Username string `hcl:"username"`
		Password string `hcl:"password"`
	} `hcl:"admin"`

	NTP struct {
		Enable    bool   `hcl:"enable"`
		Host      string `hcl:"host"`
		ResyncSec int    `hcl:"resync_sec"`
	} `hcl:"ntp"`

	Hardware struct {
		Sensor struct {
			Mock bool `hcl:"mock"`
		} `hcl:"sensor"`
		ResetButton struct {
			Enable  bool   `hcl:"enable"`
			PinChip string `hcl:"pin_chip"`
			Pin     uint32 `hcl:"pin"`
			HoldSec int    `hcl:"hold_sec"`
		} `hcl:"reset_button"`
	} `hcl:"hardware"`

	_copy_guard sync.Mutex //nolint:unused
}

func ReadConfig(log *log2.Log, fs FullReader, name string) (*Config, error) {
	if name == "" {
		log.Fatal("code error [Must]ReadConfig() without name")
	}
	norm := fs.Normalize(name)
	log.Debugf("config reading source='%s' path=%s", name, norm)

	bs, err := fs.ReadAll(norm)
	if bs == nil && err == nil {
		return nil, errors.NotFoundf("config name=%s path=%s", name, norm)
	}
	if err != nil {
		return nil, errors.Annotatef(err, "config source=%s", name)
	}

	c := &Config{}
	if err = hcl.Unmarshal(bs, c); err != nil {
		return nil, errors.Annotatef(err, "config unmarshal source=%s content='%s'", name, string(bs))
	}
	return c, nil
}

func MustReadConfig(log *log2.Log, fs FullReader, name string) *Config {
	c, err := ReadConfig(log, fs, name)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	return c
}
