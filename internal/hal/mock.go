package hal

import "sync"

// Mock is an in-memory Board for tests and simulated runs. Readings and
// injected errors are settable at any time; the pump state it records is the
// value last written through SetPump.
type Mock struct {
	mu sync.Mutex

	Light       int
	Soil        int
	Reservoir   int
	Temperature float64
	Humidity    float64

	LightErr   error
	SoilErr    error
	ResErr     error
	ClimateErr error
	PumpErr    error

	Pump      bool
	PumpCalls int
}

// NewMock returns a Mock with benign mid-range readings.
func NewMock() *Mock {
	return &Mock{
		Light:       1000,
		Soil:        2000,
		Reservoir:   2000,
		Temperature: 22.0,
		Humidity:    50.0,
	}
}

func (m *Mock) ReadLight() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Light, m.LightErr
}

func (m *Mock) ReadSoil() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Soil, m.SoilErr
}

func (m *Mock) ReadReservoir() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Reservoir, m.ResErr
}

func (m *Mock) ReadClimate() (float64, float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ClimateErr != nil {
		return 0, 0, m.ClimateErr
	}
	return m.Temperature, m.Humidity, nil
}

func (m *Mock) SetPump(on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PumpErr != nil {
		return m.PumpErr
	}
	m.Pump = on
	m.PumpCalls++
	return nil
}

func (m *Mock) Close() error { return nil }

// PumpOn reports the last pump state written, for assertions.
func (m *Mock) PumpOn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Pump
}

// Set updates readings under the lock, for tests driving the loop.
func (m *Mock) Set(fn func(*Mock)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m)
}
