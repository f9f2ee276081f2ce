//go:build linux

package input

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Linux implementation of input capture reading an evdev node

// ioctl request encoding (Linux _IOC macro)
const (
	iocNRShift   = 0
	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30

	iocWrite = 1
)

func ioc(dir, typ, nr, size uint32) uintptr {
	return uintptr(dir<<iocDirShift | typ<<iocTypeShift | nr<<iocNRShift | size<<iocSizeShift)
}

// EVIOCGRAB = _IOW('E', 0x90, int)
var evioCGrab = ioc(iocWrite, 'E', 0x90, uint32(unsafe.Sizeof(int32(0))))

// input_event is a timeval followed by type, code and value.
var recordSize = int(unsafe.Sizeof(unix.Timeval{})) + 8

// Evdev reads events from a /dev/input/event* node.
type Evdev struct {
	path       string
	grab       bool
	fd         int
	events     chan Event
	running    bool
	stop       chan struct{}
	done       chan struct{}
	mu         sync.Mutex
	killSwitch func()
	decoder    Decoder
}

// NewEvdev creates a source for the device at path. With grab set the
// device is taken exclusively so other consumers stop seeing its events.
func NewEvdev(path string, grab bool) *Evdev {
	return &Evdev{
		path:   path,
		grab:   grab,
		fd:     -1,
		events: make(chan Event, 1000),
	}
}

// Start opens the device and begins reading.
func (d *Evdev) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return fmt.Errorf("evdev source already running")
	}
	if d.path == "" {
		return ErrNoDevice
	}

	fd, err := unix.Open(d.path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", d.path, err)
	}
	if d.grab {
		if err := setGrab(fd, 1); err != nil {
			unix.Close(fd)
			return fmt.Errorf("failed to grab %s: %w", d.path, err)
		}
	}

	d.fd = fd
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	d.running = true
	go d.readLoop(fd, d.stop, d.done)

	log.Printf("Evdev: reading %s (grab=%v)", d.path, d.grab)
	return nil
}

// Stop releases the device. The events channel is closed once the reader
// has exited.
func (d *Evdev) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	close(d.stop)
	done := d.done
	d.mu.Unlock()

	<-done
	return nil
}

// Events returns the channel decoded events are delivered on.
func (d *Evdev) Events() <-chan Event {
	return d.events
}

// SetInvertWheel flips the direction of wheel events. Call it before Start.
func (d *Evdev) SetInvertWheel(invert bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.decoder.InvertWheel = invert
}

// SetKillSwitch registers Ctrl+Alt+Esc to release the grab
func (d *Evdev) SetKillSwitch(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.killSwitch = callback
}

func (d *Evdev) readLoop(fd int, stop, done chan struct{}) {
	defer close(done)
	defer close(d.events)
	defer func() {
		if d.grab {
			setGrab(fd, 0)
		}
		unix.Close(fd)
	}()

	buf := make([]byte, recordSize*64)
	var pending []byte
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}

	for {
		select {
		case <-stop:
			return
		default:
		}

		n, err := unix.Poll(fds, 100)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			log.Printf("Evdev: poll failed: %v", err)
			return
		}
		if n == 0 {
			continue
		}

		r, err := unix.Read(fd, buf)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}
			log.Printf("Evdev: read failed: %v", err)
			return
		}
		if r == 0 {
			return
		}

		pending = append(pending, buf[:r]...)
		pending = parseRecords(pending, recordSize, func(etype, code uint16, value int32) {
			for _, ev := range d.decoder.Feed(etype, code, value, time.Now()) {
				if d.isKillSwitch(ev) {
					continue
				}
				select {
				case d.events <- ev:
				default:
					log.Printf("Evdev: event buffer full, dropping %s", ev.Type)
				}
			}
		})
	}
}

func (d *Evdev) isKillSwitch(ev Event) bool {
	if ev.Type != RawKeyDown || ev.Key.Code != KeyEsc {
		return false
	}
	if ev.Modifiers&(ModCtrl|ModAlt) != ModCtrl|ModAlt {
		return false
	}
	d.mu.Lock()
	cb := d.killSwitch
	d.mu.Unlock()
	if cb == nil {
		return false
	}
	log.Printf("Evdev: kill switch pressed")
	go cb()
	return true
}

func setGrab(fd int, on int32) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), evioCGrab, uintptr(unsafe.Pointer(&on)))
	if errno != 0 {
		return errno
	}
	return nil
}
