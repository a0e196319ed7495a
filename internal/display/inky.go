package display

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	appLog "github.com/Melokeo/Timetable4Inky/internal/log"
)

// BCM pin assignment for the Inky HAT.
const (
	bcmDC    = 22
	bcmReset = 27
	bcmBusy  = 17
)

// Panel command set (UC8159-class controller).
const (
	cmdPanelSetting    = 0x00
	cmdPowerOn         = 0x04
	cmdBusyPoll        = 0x71
	cmdDataStartBlack  = 0x10
	cmdDataStartRed    = 0x13
	cmdDisplayRefresh  = 0x12
	cmdPowerOff        = 0x02
	cmdDeepSleep       = 0x07
	deepSleepCheckCode = 0xA5
)

// InkyDevice drives the tri-color panel over SPI. It owns the bus and
// the DC/reset/busy lines for the lifetime of the process.
type InkyDevice struct {
	port spi.PortCloser
	conn spi.Conn

	dc    gpio.PinOut
	reset gpio.PinOut
	busy  gpio.PinIn
}

// OpenInky initializes periph.io, opens the default SPI port and claims
// the control pins. It fails on non-Linux hosts so development machines
// fall back to the PNG device.
func OpenInky() (*InkyDevice, error) {
	if runtime.GOOS != "linux" {
		return nil, errors.New("display: inky device requires linux")
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("display: periph host init: %w", err)
	}

	port, err := spireg.Open("")
	if err != nil {
		return nil, fmt.Errorf("display: open SPI port: %w", err)
	}
	conn, err := port.Connect(3*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("display: connect SPI: %w", err)
	}

	pinOut := func(num int) (gpio.PinOut, error) {
		p := gpioreg.ByName(fmt.Sprintf("GPIO%d", num))
		if p == nil {
			return nil, fmt.Errorf("display: GPIO%d not found", num)
		}
		if err := p.Out(gpio.Low); err != nil {
			return nil, fmt.Errorf("display: GPIO%d out: %w", num, err)
		}
		return p, nil
	}

	d := &InkyDevice{port: port, conn: conn}
	if d.dc, err = pinOut(bcmDC); err != nil {
		_ = port.Close()
		return nil, err
	}
	if d.reset, err = pinOut(bcmReset); err != nil {
		_ = port.Close()
		return nil, err
	}
	busy := gpioreg.ByName(fmt.Sprintf("GPIO%d", bcmBusy))
	if busy == nil {
		_ = port.Close()
		return nil, fmt.Errorf("display: GPIO%d not found", bcmBusy)
	}
	if err := busy.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("display: busy pin: %w", err)
	}
	d.busy = busy

	return d, nil
}

// Show packs the frame into black/red planes and runs the full refresh
// sequence. The panel refresh itself takes tens of seconds; ctx bounds
// the busy wait.
func (d *InkyDevice) Show(ctx context.Context, img *image.RGBA) error {
	black, red, err := PackRGBA(img)
	if err != nil {
		return err
	}

	if err := d.hwReset(); err != nil {
		return err
	}

	// panel setting: resolution and tri-color mode
	if err := d.command(cmdPanelSetting, 0xEF, 0x08); err != nil {
		return err
	}
	if err := d.command(cmdPowerOn); err != nil {
		return err
	}
	if err := d.waitIdle(ctx, 30*time.Second); err != nil {
		return err
	}

	if err := d.command(cmdDataStartBlack, black...); err != nil {
		return err
	}
	if err := d.command(cmdDataStartRed, red...); err != nil {
		return err
	}

	appLog.Debug("panel refresh start")
	if err := d.command(cmdDisplayRefresh); err != nil {
		return err
	}
	if err := d.waitIdle(ctx, 40*time.Second); err != nil {
		return err
	}
	appLog.Debug("panel refresh done")

	return d.command(cmdPowerOff)
}

// Sleep puts the panel into deep sleep and releases the SPI port.
func (d *InkyDevice) Sleep() {
	_ = d.command(cmdDeepSleep, deepSleepCheckCode)
	_ = d.port.Close()
}

func (d *InkyDevice) hwReset() error {
	if err := d.reset.Out(gpio.Low); err != nil {
		return err
	}
	time.Sleep(100 * time.Millisecond)
	if err := d.reset.Out(gpio.High); err != nil {
		return err
	}
	time.Sleep(100 * time.Millisecond)
	return nil
}

// command sends one command byte (DC low) and optional data (DC high).
// Large data buffers are chunked to stay under the SPI driver's
// per-transfer limit.
func (d *InkyDevice) command(cmd byte, data ...byte) error {
	if err := d.dc.Out(gpio.Low); err != nil {
		return err
	}
	if err := d.conn.Tx([]byte{cmd}, nil); err != nil {
		return fmt.Errorf("display: command %#x: %w", cmd, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := d.dc.Out(gpio.High); err != nil {
		return err
	}
	const chunk = 4096
	for off := 0; off < len(data); off += chunk {
		end := off + chunk
		if end > len(data) {
			end = len(data)
		}
		if err := d.conn.Tx(data[off:end], nil); err != nil {
			return fmt.Errorf("display: data for %#x: %w", cmd, err)
		}
	}
	return nil
}

// waitIdle polls the busy line until the panel is ready.
func (d *InkyDevice) waitIdle(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for d.busy.Read() == gpio.Low {
		if time.Now().After(deadline) {
			return errors.New("display: busy wait timed out")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
		_ = d.command(cmdBusyPoll)
	}
	return nil
}
