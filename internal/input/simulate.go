package input

import (
	"sync"
	"time"
)

// Simulator is a Source that produces a repeating burst of pointer, wheel
// and key events. It exercises coalescing without a real device.
type Simulator struct {
	interval time.Duration
	events   chan Event
	stop     chan struct{}
	once     sync.Once
	started  bool
	mu       sync.Mutex
}

// NewSimulator creates a source emitting one event every interval.
func NewSimulator(interval time.Duration) *Simulator {
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	return &Simulator{
		interval: interval,
		events:   make(chan Event, 64),
		stop:     make(chan struct{}),
	}
}

func (s *Simulator) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.started = true
	go s.run()
	return nil
}

func (s *Simulator) Stop() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}

func (s *Simulator) Events() <-chan Event {
	return s.events
}

func (s *Simulator) run() {
	defer close(s.events)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			for _, e := range SimulatedStep(i, now) {
				select {
				case s.events <- e:
				case <-s.stop:
					return
				}
			}
		}
	}
}

// SimulatedStep returns the events of step i of the simulated pattern: a
// run of moves, two wheel ticks, then a typed letter.
func SimulatedStep(i int, now time.Time) []Event {
	const period = 16
	step := i % period
	x := int32(step * 4)
	switch {
	case step < 12:
		return []Event{{
			Type:      MouseMove,
			Timestamp: now,
			Mouse:     MouseData{X: x, Y: x / 2, MovementX: 4, MovementY: 2},
		}}
	case step < 14:
		return []Event{{
			Type:      MouseWheel,
			Timestamp: now,
			Wheel:     WheelData{DeltaY: -120, WheelTicksY: -1, CanScroll: true},
		}}
	case step == 14:
		code := keyRows[1].first + uint16((i/period)%10)
		return []Event{
			{Type: RawKeyDown, Timestamp: now, Key: KeyData{Code: code}},
			{Type: Char, Timestamp: now, Key: KeyData{Code: code, Text: KeyText(code, 0)}},
		}
	default:
		code := keyRows[1].first + uint16((i/period)%10)
		return []Event{{Type: KeyUp, Timestamp: now, Key: KeyData{Code: code}}}
	}
}
