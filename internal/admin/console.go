package admin

import (
	"strings"

	"github.com/google/shlex"
	"github.com/juju/errors"
	"github.com/windevs/sensornode/internal/confstore"
	"github.com/windevs/sensornode/log2"
)

const consoleHelp = `Available commands:
  ssid <your_ssid>         - Set the WiFi SSID
  password <your_password> - Set the WiFi password
  show                     - Show stored configuration
  help                     - Show this help message`

// Console is the serial command surface. Exec is one line in, one reply
// out; the interactive prompt loop lives in cmd.
type Console struct {
	Log     *log2.Log
	Store   *confstore.Store
	Restart func(reason string)
}

func (c *Console) Exec(line string) (string, error) {
	words, err := shlex.Split(line)
	if err != nil {
		return "", errors.Annotatef(err, "parse '%s'", line)
	}
	if len(words) == 0 {
		return "", nil
	}

	switch strings.ToLower(words[0]) {
	case "ssid":
		if len(words) < 2 || words[1] == "" {
			return "", errors.NotValidf("ssid cannot be empty")
		}
		if err := c.Store.Put(confstore.FieldSSID, words[1]); err != nil {
			return "", errors.Annotate(err, "ssid")
		}
		c.Restart("console ssid updated")
		return "SSID updated. Restarting...", nil

	case "password":
		if len(words) < 2 || words[1] == "" {
			return "", errors.NotValidf("password cannot be empty")
		}
		if err := c.Store.Put(confstore.FieldPassword, words[1]); err != nil {
			return "", errors.Annotate(err, "password")
		}
		c.Restart("console password updated")
		return "Password updated. Restarting...", nil

	case "show":
		ssid := c.Store.Get(confstore.FieldSSID)
		pass := c.Store.Get(confstore.FieldPassword)
		masked := strings.Repeat("*", len(pass))
		return "ssid=" + ssid + " password=" + masked, nil

	case "help":
		return consoleHelp, nil

	default:
		return "", errors.NotValidf("unknown command '%s', type 'help' for a list", words[0])
	}
}
