// Package confstore is durable device configuration: a small fixed-capacity
// byte region of zero-terminated string fields at fixed offsets, persisted
// through extremofile so a half-finished write never survives power loss.
package confstore

import (
	"bytes"
	"io"
	"sync"

	"github.com/juju/errors"
	"github.com/temoto/extremofile"
	"github.com/windevs/sensornode/log2"
)

// Size is total region capacity, matches the EEPROM size of the device class.
const Size = 512

// Field maps a named setting to its reserved span.
// MaxLen includes the zero terminator, usable payload is MaxLen-1.
type Field struct {
	Name   string
	Offset int
	MaxLen int
}

var (
	FieldSSID     = Field{Name: "ssid", Offset: 0, MaxLen: 50}
	FieldPassword = Field{Name: "password", Offset: 50, MaxLen: 50}
)

type storage interface {
	Read() ([]byte, error)
	io.Writer
}

// Store serializes all region access: the control loop, the admin web
// handlers and the reset button goroutine write through the same instance.
type Store struct {
	sync.Mutex
	log     *log2.Log
	storage storage
	region  [Size]byte
}

func Open(dir string, log *log2.Log) (*Store, error) {
	s := &Store{
		log: log,
		storage: extremofile.New(extremofile.Config{
			Dir:      dir,
			DirPerm:  0755,
			FilePerm: 0644,
		}),
	}
	b, err := s.storage.Read()
	if extremofile.IsCritical(err) {
		return nil, errors.Annotate(err, "confstore read")
	}
	if b == nil && err != nil {
		// first boot, storage dir was just created
		s.log.Debugf("confstore empty err=%v", err)
	} else if err != nil {
		s.log.Errorf("confstore ignore non-critical storage err=%v", err)
	}
	// short or corrupt region reads as factory state, blank fields are valid
	copy(s.region[:], b)
	return s, nil
}

// Put writes value at the field offset and commits durably before returning.
// Caller may act on the new configuration (e.g. restart) only after nil.
func (s *Store) Put(f Field, value string) error {
	s.Lock()
	defer s.Unlock()

	if len(value) >= f.MaxLen {
		return errors.NotValidf("confstore %s len=%d max=%d", f.Name, len(value), f.MaxLen-1)
	}
	if f.Offset+f.MaxLen > Size {
		return errors.NotValidf("confstore %s span %d+%d over capacity", f.Name, f.Offset, f.MaxLen)
	}
	span := s.region[f.Offset : f.Offset+f.MaxLen]
	for i := range span {
		span[i] = 0
	}
	copy(span, value)
	if _, err := s.storage.Write(s.region[:]); err != nil {
		// commit failed, configuration on disk is not what the caller asked for
		return errors.Annotatef(err, "confstore commit %s", f.Name)
	}
	s.log.Debugf("confstore put %s len=%d", f.Name, len(value))
	return nil
}

// Get reads bytes until zero terminator or span end.
// Empty string covers both never-written and explicitly cleared states.
func (s *Store) Get(f Field) string {
	s.Lock()
	defer s.Unlock()

	span := s.region[f.Offset : f.Offset+f.MaxLen]
	if i := bytes.IndexByte(span, 0); i >= 0 {
		span = span[:i]
	}
	return string(span)
}

func (s *Store) Clear(f Field) error {
	return s.Put(f, "")
}
