package sensor

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Validate(45.2, 22.1))
	assert.Equal(t, ErrNaN, Validate(math.NaN(), 22.1))
	assert.Equal(t, ErrNaN, Validate(45.2, math.NaN()))
}

func TestConversions(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 71.78, CToF(22.1), 0.01)
	assert.InDelta(t, 22.1, FToC(CToF(22.1)), 1e-9)
}

func TestMockConcurrentReads(t *testing.T) {
	t.Parallel()

	// loop and admin web read the same device; run under -race
	m := &Mock{Humidity: 45.2, TempC: 22.1}
	wg := sync.WaitGroup{}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				h, c, err := m.Read()
				assert.NoError(t, err)
				assert.Equal(t, 45.2, h)
				assert.Equal(t, 22.1, c)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, m.ReadCount())
}

func TestHeatIndex(t *testing.T) {
	t.Parallel()

	// mild conditions use the simple formula, result stays near air temperature
	hiMild := HeatIndexC(22.1, 45.2)
	assert.InDelta(t, 22.1, hiMild, 2.0)

	// hot and humid must come out well above air temperature
	hiHot := HeatIndexF(90, 80)
	assert.InDelta(t, 113.2, hiHot, 1.0)
	assert.True(t, HeatIndexC(32.2, 80) > 32.2)

	// low humidity adjustment branch
	hiDry := HeatIndexF(95, 10)
	assert.True(t, hiDry < 95+5 && hiDry > 80)
}
