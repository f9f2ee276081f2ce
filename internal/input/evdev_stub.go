//go:build !linux

package input

import "fmt"

// Evdev is unavailable outside Linux.
type Evdev struct {
	events chan Event
}

func NewEvdev(path string, grab bool) *Evdev {
	return &Evdev{events: make(chan Event)}
}

func (d *Evdev) Start() error {
	return fmt.Errorf("evdev input: %w", ErrUnsupported)
}

func (d *Evdev) Stop() error {
	return nil
}

func (d *Evdev) Events() <-chan Event {
	return d.events
}

func (d *Evdev) SetInvertWheel(invert bool) {}

func (d *Evdev) SetKillSwitch(callback func()) {}
