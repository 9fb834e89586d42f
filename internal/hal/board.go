// Package hal provides access to the controller's physical I/O: the pump
// relay on a GPIO pin, the analog sensors behind an MCP3008 ADC on the SPI
// bus, and the climate sensor exposed through the Linux IIO subsystem.
//
// Raw analog sampling itself is the hardware's job; this package only moves
// integers across the bus. Everything above it works against the Board
// interface, so tests and bench runs use the in-memory Mock instead.
package hal

// Board is the hardware surface the rest of the daemon depends on.
// Analog reads return samples in the 12-bit raw domain. SetPump drives the
// single binary actuation signal and is the only way the pump is ever
// switched.
type Board interface {
	ReadLight() (int, error)
	ReadSoil() (int, error)
	ReadReservoir() (int, error)
	// ReadClimate returns air temperature (degrees Celsius) and relative
	// humidity (percent). A non-nil error means the reading is unavailable
	// this tick; callers must not use the returned values.
	ReadClimate() (float64, float64, error)
	SetPump(on bool) error
	Close() error
}
