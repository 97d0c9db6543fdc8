package log2

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelFilter(t *testing.T) {
	t.Parallel()

	sb := &strings.Builder{}
	l := NewWriter(sb, LInfo)
	l.SetFlags(0)
	l.Debugf("hidden %d", 1)
	l.Infof("visible %d", 2)
	l.Errorf("visible %d", 3)

	out := sb.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible 2")
	assert.Contains(t, out, "error: visible 3")

	l.SetLevel(LDebug)
	l.Debugf("now-visible")
	assert.Contains(t, sb.String(), "debug: now-visible")
}

func TestNilReceiver(t *testing.T) {
	t.Parallel()

	var l *Log
	// must not panic
	l.Debugf("x")
	l.Infof("x")
	l.Error("x")
	l.SetLevel(LAll)
	assert.False(t, l.Enabled(LError))
	assert.Nil(t, l.Clone(LDebug))
}

func TestErrorFunc(t *testing.T) {
	t.Parallel()

	ech := make(chan error, 2)
	l := NewFunc(func(format string, args ...interface{}) {}, LError)
	l.SetErrorFunc(func(e error) { ech <- e })
	l.Errorf("boom %s", "shaka")
	assert.Equal(t, "boom shaka", (<-ech).Error())
}
