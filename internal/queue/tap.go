package queue

import "time"

// DefaultTapSuppressionWindow is how long after a fling is stopped a mouse
// down is treated as the stopping tap.
const DefaultTapSuppressionWindow = 100 * time.Millisecond

type tapState uint8

const (
	tapNothing tapState = iota
	tapCancelInProgress
	tapCancelStoppedFling
	tapMouseDownSuppressed
)

// TapSuppressor drops the touchpad click that was used to stop a fling so
// it is not also delivered as a click.
type TapSuppressor struct {
	Window time.Duration
	Now    func() time.Time

	state     tapState
	stoppedAt time.Time
}

func NewTapSuppressor(window time.Duration) *TapSuppressor {
	if window <= 0 {
		window = DefaultTapSuppressionWindow
	}
	return &TapSuppressor{Window: window, Now: time.Now}
}

// GestureFlingCancel records that a fling cancel was sent.
func (t *TapSuppressor) GestureFlingCancel() {
	t.state = tapCancelInProgress
}

// GestureFlingCancelAck records whether the cancel actually stopped a fling.
func (t *TapSuppressor) GestureFlingCancelAck(processed bool) {
	if t.state != tapCancelInProgress {
		return
	}
	if !processed {
		t.state = tapNothing
		return
	}
	t.state = tapCancelStoppedFling
	t.stoppedAt = t.Now()
}

func (t *TapSuppressor) ShouldSuppressMouseDown() bool {
	if t.state == tapCancelStoppedFling && t.Now().Sub(t.stoppedAt) < t.Window {
		t.state = tapMouseDownSuppressed
		return true
	}
	if t.state != tapCancelInProgress {
		t.state = tapNothing
	}
	return false
}

func (t *TapSuppressor) ShouldSuppressMouseUp() bool {
	if t.state == tapMouseDownSuppressed {
		t.state = tapNothing
		return true
	}
	return false
}
