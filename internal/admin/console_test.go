package admin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/windevs/sensornode/internal/confstore"
	"github.com/windevs/sensornode/log2"
)

func newConsoleFixture(t *testing.T) (*Console, *confstore.Store, *[]string) {
	log := log2.NewTest(t, log2.LDebug)
	store, err := confstore.Open(t.TempDir(), log)
	require.NoError(t, err)
	restarts := &[]string{}
	c := &Console{
		Log:     log,
		Store:   store,
		Restart: func(reason string) { *restarts = append(*restarts, reason) },
	}
	return c, store, restarts
}

func TestConsoleSSID(t *testing.T) {
	t.Parallel()

	c, store, restarts := newConsoleFixture(t)
	out, err := c.Exec("ssid mynetwork")
	require.NoError(t, err)
	assert.Contains(t, out, "SSID updated")
	assert.Equal(t, "mynetwork", store.Get(confstore.FieldSSID))
	assert.Len(t, *restarts, 1)
}

func TestConsolePassword(t *testing.T) {
	t.Parallel()

	c, store, restarts := newConsoleFixture(t)
	out, err := c.Exec(`password "pass with spaces"`)
	require.NoError(t, err)
	assert.Contains(t, out, "Password updated")
	assert.Equal(t, "pass with spaces", store.Get(confstore.FieldPassword))
	assert.Len(t, *restarts, 1)
}

func TestConsoleCaseInsensitiveCommand(t *testing.T) {
	t.Parallel()

	c, store, _ := newConsoleFixture(t)
	_, err := c.Exec("SSID upper")
	require.NoError(t, err)
	assert.Equal(t, "upper", store.Get(confstore.FieldSSID))
}

func TestConsoleEmptyValueRejected(t *testing.T) {
	t.Parallel()

	c, store, restarts := newConsoleFixture(t)
	_, err := c.Exec("ssid")
	assert.Error(t, err)
	assert.Equal(t, "", store.Get(confstore.FieldSSID))
	assert.Empty(t, *restarts)

	_, err = c.Exec("password")
	assert.Error(t, err)
}

func TestConsoleShowMasksPassword(t *testing.T) {
	t.Parallel()

	c, _, _ := newConsoleFixture(t)
	_, err := c.Exec("ssid net1")
	require.NoError(t, err)
	_, err = c.Exec("password abcd")
	require.NoError(t, err)

	out, err := c.Exec("show")
	require.NoError(t, err)
	assert.Contains(t, out, "ssid=net1")
	assert.Contains(t, out, "password=****")
	assert.NotContains(t, out, "abcd")
}

func TestConsoleHelpAndUnknown(t *testing.T) {
	t.Parallel()

	c, _, _ := newConsoleFixture(t)
	out, err := c.Exec("help")
	require.NoError(t, err)
	assert.Contains(t, out, "ssid <your_ssid>")

	_, err = c.Exec("frobnicate")
	assert.Error(t, err)

	out, err = c.Exec("")
	require.NoError(t, err)
	assert.Equal(t, "", out)
}
