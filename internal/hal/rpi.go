package hal

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	rpio "github.com/stianeikeland/go-rpio/v4"
)

// RPiConfig holds the wiring of an RPiBoard.
type RPiConfig struct {
	PumpPin          int
	LightChannel     int
	SoilChannel      int
	ReservoirChannel int
	ClimateTempPath  string
	ClimateHumPath   string
}

// RPiBoard drives real hardware on a Raspberry Pi: the pump relay on a GPIO
// output pin and an MCP3008 ADC on SPI0 for the analog sensors. The climate
// sensor is read through the kernel's IIO sysfs files (the dht11 driver
// reports millidegrees and milli-percent), so a failed or timed-out sensor
// read surfaces as a file read/parse error rather than a bogus value.
type RPiBoard struct {
	cfg  RPiConfig
	pump rpio.Pin

	// Serializes SPI exchanges; the control surface and the loop run in
	// separate goroutines and both can end up on the bus.
	spiMu sync.Mutex
}

// OpenRPi memory-maps the GPIO range, claims the SPI bus, and configures the
// pump pin as an output driven low.
func OpenRPi(cfg RPiConfig) (*RPiBoard, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("failed to open GPIO: %w", err)
	}
	if err := rpio.SpiBegin(rpio.Spi0); err != nil {
		rpio.Close()
		return nil, fmt.Errorf("failed to claim SPI bus: %w", err)
	}
	rpio.SpiSpeed(1350000)
	rpio.SpiChipSelect(0)

	b := &RPiBoard{
		cfg:  cfg,
		pump: rpio.Pin(cfg.PumpPin),
	}
	b.pump.Output()
	b.pump.Low()
	return b, nil
}

// readADC performs one MCP3008 single-ended conversion and scales the 10-bit
// result into the 12-bit raw domain the calibration parameters live in.
func (b *RPiBoard) readADC(channel int) (int, error) {
	if channel < 0 || channel > 7 {
		return 0, fmt.Errorf("invalid ADC channel %d", channel)
	}

	b.spiMu.Lock()
	defer b.spiMu.Unlock()

	// Start bit, single-ended mode + channel, clock-out byte.
	buf := []byte{0x01, byte(0x80 | channel<<4), 0x00}
	rpio.SpiExchange(buf)

	raw := int(buf[1]&0x03)<<8 | int(buf[2])
	return raw << 2, nil
}

// ReadLight samples the light sensor channel.
func (b *RPiBoard) ReadLight() (int, error) {
	return b.readADC(b.cfg.LightChannel)
}

// ReadSoil samples the soil moisture channel.
func (b *RPiBoard) ReadSoil() (int, error) {
	return b.readADC(b.cfg.SoilChannel)
}

// ReadReservoir samples the reservoir level channel.
func (b *RPiBoard) ReadReservoir() (int, error) {
	return b.readADC(b.cfg.ReservoirChannel)
}

// ReadClimate reads temperature and humidity from the IIO sysfs files.
func (b *RPiBoard) ReadClimate() (float64, float64, error) {
	temp, err := readIIOMilli(b.cfg.ClimateTempPath)
	if err != nil {
		return 0, 0, fmt.Errorf("temperature read failed: %w", err)
	}
	hum, err := readIIOMilli(b.cfg.ClimateHumPath)
	if err != nil {
		return 0, 0, fmt.Errorf("humidity read failed: %w", err)
	}
	return temp, hum, nil
}

// SetPump drives the pump relay pin.
func (b *RPiBoard) SetPump(on bool) error {
	if on {
		b.pump.High()
	} else {
		b.pump.Low()
	}
	return nil
}

// Close forces the pump off and releases the GPIO and SPI resources.
func (b *RPiBoard) Close() error {
	b.pump.Low()
	rpio.SpiEnd(rpio.Spi0)
	return rpio.Close()
}

// readIIOMilli reads a single IIO sysfs value in milli-units and converts it
// to the base unit. The dht11 kernel driver returns -EIO on checksum or
// timing failures, which shows up here as a read error.
func readIIOMilli(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable IIO value in %s: %w", path, err)
	}
	return float64(v) / 1000.0, nil
}
