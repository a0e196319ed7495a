// Package battery reads the charge level shown in the frame footer.
// Backed by a PiSugar3-class controller over I2C on the device; hosts
// without one report unavailable and the footer section is omitted.
package battery

import (
	"context"
	"errors"
	"runtime"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// Status is a point-in-time battery reading.
type Status struct {
	// Percent is the battery level 0-100.
	Percent int
	// VoltageMv is the pack voltage in millivolts, 0 if unknown.
	VoltageMv int
}

// Reader abstracts the battery source so the daemon renders the same
// with or without the hardware.
type Reader interface {
	Read(ctx context.Context) (Status, error)
}

// PiSugar3 register map.
const (
	defaultAddr    = 0x57
	regVoltageHigh = 0x22
	regVoltageLow  = 0x23
	regPercent     = 0x2A
)

type i2cReader struct {
	busName string
	addr    uint16
}

// NewI2CReader builds a reader for the given periph.io bus name (""
// selects the default bus) and 7-bit address. The bus is opened per
// Read so a flaky controller never wedges the daemon.
func NewI2CReader(busName string, addr uint16) Reader {
	return &i2cReader{busName: busName, addr: addr}
}

func (r *i2cReader) Read(_ context.Context) (Status, error) {
	if runtime.GOOS != "linux" {
		return Status{}, errors.New("battery: i2c unavailable on this platform")
	}
	if _, err := host.Init(); err != nil {
		return Status{}, err
	}

	bus, err := i2creg.Open(r.busName)
	if err != nil {
		return Status{}, err
	}
	defer bus.Close()

	dev := &i2c.Dev{Bus: bus, Addr: r.addr}
	readReg := func(reg byte) (byte, error) {
		buf := []byte{0}
		if err := dev.Tx([]byte{reg}, buf); err != nil {
			return 0, err
		}
		return buf[0], nil
	}

	high, err := readReg(regVoltageHigh)
	if err != nil {
		return Status{}, err
	}
	low, err := readReg(regVoltageLow)
	if err != nil {
		return Status{}, err
	}
	pct, err := readReg(regPercent)
	if err != nil {
		return Status{}, err
	}
	if pct > 100 {
		pct = 100
	}

	return Status{
		Percent:   int(pct),
		VoltageMv: int(uint16(high)<<8 | uint16(low)),
	}, nil
}

type unavailableReader struct{}

func (unavailableReader) Read(context.Context) (Status, error) {
	return Status{}, errors.New("battery: no reader on this host")
}

// DefaultReader probes the I2C controller once and falls back to an
// always-erroring reader, letting callers hide the footer section.
func DefaultReader() Reader {
	if runtime.GOOS != "linux" {
		return unavailableReader{}
	}
	r := NewI2CReader("", defaultAddr)
	if _, err := r.Read(context.Background()); err != nil {
		return unavailableReader{}
	}
	return r
}
