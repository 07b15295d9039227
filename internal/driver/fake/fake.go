// Package fake is an in-memory driver for tests and headless simulation.
package fake

import (
	"sync"

	"github.com/openfloor/floord/internal/render"
)

type Driver struct {
	mu sync.Mutex

	MaxLED   int
	MaxFloor int

	weights   []int
	staged    render.Frame
	LastSent  render.Frame
	SentCount int
	ReadCount int

	// SendErr and ReadErr, when set, are returned by the transfer calls.
	SendErr error
	ReadErr error
}

func New() *Driver {
	return &Driver{
		MaxLED:   255,
		MaxFloor: 1023,
		weights:  make([]int, render.NumSquares),
	}
}

func (d *Driver) GetMaxLEDValue() int   { return d.MaxLED }
func (d *Driver) GetMaxFloorValue() int { return d.MaxFloor }

func (d *Driver) GetWeights() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]int, len(d.weights))
	copy(out, d.weights)
	return out
}

// SetWeight simulates a sensor reading on one square.
func (d *Driver) SetWeight(index, value int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if index >= 0 && index < len(d.weights) {
		d.weights[index] = value
	}
}

func (d *Driver) SetLEDs(frame render.Frame) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.staged = make(render.Frame, len(frame))
	copy(d.staged, frame)
}

func (d *Driver) SendData() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.SendErr != nil {
		return d.SendErr
	}
	d.LastSent = d.staged
	d.SentCount++
	return nil
}

func (d *Driver) ReadData() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ReadErr != nil {
		return d.ReadErr
	}
	d.ReadCount++
	return nil
}

func (d *Driver) Close() error { return nil }
