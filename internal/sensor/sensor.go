// Package sensor is the boundary to the humidity/temperature device and the
// derived arithmetic. Real DHT-class drivers live behind Devicer; the node
// only needs one blocking Read per loop iteration.
package sensor

import (
	"math"
	"sync"

	"github.com/juju/errors"
)

var ErrNaN = errors.New("sensor read not-a-number")

// Devicer implementations must be safe for concurrent use: the control
// loop and the admin web page both call Read on the same instance.
// Drivers for one-wire devices serialize the bus access internally.
type Devicer interface {
	// Read returns relative humidity percent and temperature Celsius.
	Read() (humidity float64, tempC float64, err error)
	String() string
}

// Validate maps NaN device output to ErrNaN so one bad poll
// drops a single reading, not the process.
func Validate(humidity, tempC float64) error {
	if math.IsNaN(humidity) || math.IsNaN(tempC) {
		return ErrNaN
	}
	return nil
}

func CToF(c float64) float64 { return c*1.8 + 32 }
func FToC(f float64) float64 { return (f - 32) / 1.8 }

// HeatIndexF is the NOAA Rothfusz regression on Fahrenheit input,
// same curve the device-side DHT libraries ship.
func HeatIndexF(tempF, humidity float64) float64 {
	hi := 0.5 * (tempF + 61.0 + (tempF-68.0)*1.2 + humidity*0.094)
	if hi <= 79 {
		return hi
	}

	hi = -42.379 +
		2.04901523*tempF +
		10.14333127*humidity +
		-0.22475541*tempF*humidity +
		-0.00683783*tempF*tempF +
		-0.05481717*humidity*humidity +
		0.00122874*tempF*tempF*humidity +
		0.00085282*tempF*humidity*humidity +
		-0.00000199*tempF*tempF*humidity*humidity

	if humidity < 13 && tempF >= 80 && tempF <= 112 {
		hi -= ((13 - humidity) / 4) * math.Sqrt((17-math.Abs(tempF-95))/17)
	} else if humidity > 85 && tempF >= 80 && tempF <= 87 {
		hi += ((humidity - 85) / 10) * ((87 - tempF) / 5)
	}
	return hi
}

func HeatIndexC(tempC, humidity float64) float64 {
	return FToC(HeatIndexF(CToF(tempC), humidity))
}

// Mock implements Devicer for tests and for nodes without the probe wired.
type Mock struct {
	mu       sync.Mutex
	Humidity float64
	TempC    float64
	Err      error
	Reads    int
}

func (m *Mock) Read() (float64, float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reads++
	return m.Humidity, m.TempC, m.Err
}

func (m *Mock) ReadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Reads
}

func (m *Mock) String() string { return "mock" }
