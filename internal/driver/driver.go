// Package driver defines the hardware contract consumed by the playback
// controller: LED transmission plus pressure sensor readout.
package driver

import "github.com/openfloor/floord/internal/render"

type Driver interface {
	// GetMaxLEDValue reports the largest channel value the hardware accepts.
	GetMaxLEDValue() int
	// GetMaxFloorValue reports the largest possible sensor reading.
	GetMaxFloorValue() int
	// GetWeights returns the most recent sensor reading, one value per square.
	GetWeights() []int
	// SetLEDs stages a frame for the next transmission.
	SetLEDs(frame render.Frame)
	// SendData transmits the staged frame.
	SendData() error
	// ReadData refreshes sensor state for the next tick.
	ReadData() error
	Close() error
}
