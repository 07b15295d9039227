// Package spidev drives WS281x floor LEDs through a spidev port using
// periph.io's NRZ encoder. Sensor readout is not wired on this transport;
// weights stay zero and installations feed input through the control
// surfaces instead.
package spidev

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/host/v3"

	"github.com/openfloor/floord/internal/render"
)

const (
	maxLEDValue   = 255
	maxFloorValue = 1023
)

type Driver struct {
	mu      sync.Mutex
	port    spi.PortCloser // nil when constructed over an external port
	dev     *nrzled.Dev
	staged  []byte
	weights []int
}

// New wraps an already-open SPI port. Used by tests with a playback port.
func New(p spi.Port, freq physic.Frequency) (*Driver, error) {
	if freq == 0 {
		freq = 2500 * physic.KiloHertz
	}
	dev, err := nrzled.NewSPI(p, &nrzled.Opts{
		NumPixels: render.NumSquares,
		Channels:  3,
		Freq:      freq,
	})
	if err != nil {
		return nil, fmt.Errorf("nrzled: %w", err)
	}
	return &Driver{
		dev:     dev,
		staged:  make([]byte, render.NumSquares*3),
		weights: make([]int, render.NumSquares),
	}, nil
}

// Open initializes the host and opens the named spidev port, e.g.
// "/dev/spidev0.0". An empty name selects the first available port.
func Open(name string, freq physic.Frequency) (*Driver, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	port, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open spi %q: %w", name, err)
	}
	d, err := New(port, freq)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	d.port = port
	return d, nil
}

func (d *Driver) GetMaxLEDValue() int   { return maxLEDValue }
func (d *Driver) GetMaxFloorValue() int { return maxFloorValue }

func (d *Driver) GetWeights() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]int, len(d.weights))
	copy(out, d.weights)
	return out
}

func (d *Driver) SetLEDs(frame render.Frame) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(frame)
	if n > render.NumSquares {
		n = render.NumSquares
	}
	for i := 0; i < n; i++ {
		d.staged[i*3+0] = clampByte(frame[i].R)
		d.staged[i*3+1] = clampByte(frame[i].G)
		d.staged[i*3+2] = clampByte(frame[i].B)
	}
	for i := n; i < render.NumSquares; i++ {
		d.staged[i*3+0] = 0
		d.staged[i*3+1] = 0
		d.staged[i*3+2] = 0
	}
}

func (d *Driver) SendData() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.dev.Write(d.staged); err != nil {
		return fmt.Errorf("spi write: %w", err)
	}
	return nil
}

func (d *Driver) ReadData() error { return nil }

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.port != nil {
		err := d.port.Close()
		d.port = nil
		return err
	}
	return nil
}

func clampByte(v int) byte {
	if v < 0 {
		return 0
	}
	if v > maxLEDValue {
		return maxLEDValue
	}
	return byte(v)
}
