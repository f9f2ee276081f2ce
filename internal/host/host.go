// Package host owns the router. It wires the config, the executor loop,
// the consumer endpoint, shortcuts and the local input source together,
// and it is the router's Client and AckHandler.
package host

import (
	"context"
	"fmt"
	"log"
	"time"

	"inputrouter/internal/api"
	"inputrouter/internal/config"
	"inputrouter/internal/input"
	"inputrouter/internal/loop"
	"inputrouter/internal/router"
	"inputrouter/internal/shortcut"

	"github.com/google/uuid"
)

// Shortcut actions
const (
	ActionFlush = "flush"
	ActionReset = "reset"
	ActionPause = "pause"
	ActionQuit  = "quit"
)

// State is the host-level view shown by the tray and tests.
type State struct {
	Generation       string `json:"generation"`
	Session          string `json:"session,omitempty"`
	Connected        bool   `json:"connected"`
	Paused           bool   `json:"paused"`
	Resets           int    `json:"resets"`
	FlingStops       int    `json:"fling_stops"`
	HasTouchHandlers bool   `json:"has_touch_handlers"`

	LastOverscroll input.Overscroll `json:"last_overscroll"`
}

// Host runs a router for one consumer at a time.
type Host struct {
	configMgr *config.Manager
	loop      *loop.Loop
	server    *api.Server
	local     *shortcut.Table
	fallback  *shortcut.Table

	// OnQuit is called on the loop when the quit shortcut fires.
	OnQuit func()
	// OnStateChanged is called on the loop after the State changes.
	OnStateChanged func(State)

	// Everything below is owned by the loop goroutine.
	router           *router.Router
	generation       string
	session          string
	connected        bool
	paused           bool
	resets           int
	flingStops       int
	hasTouchHandlers bool
	lastOverscroll   input.Overscroll
	pending          map[uint16]string
	swallowed        map[uint16]bool
	flushWaiters     []chan struct{}
	debug            bool
}

// New creates a host from the current configuration. Changes picked up
// by the manager are applied on the loop.
func New(configMgr *config.Manager) *Host {
	cfg := configMgr.Get()
	h := &Host{
		configMgr: configMgr,
		loop:      loop.New(cfg.Router.SendBufferSize),
		local:     shortcut.NewTable(),
		fallback:  shortcut.NewTable(),
		pending:   make(map[uint16]string),
		swallowed: make(map[uint16]bool),
		debug:     cfg.General.Debug,
	}
	h.server = api.NewServer(configMgr, h)
	h.applyShortcuts(cfg)
	h.newRouter(cfg)

	configMgr.RegisterChangeCallback(func() {
		h.loop.Post(h.reloadConfig)
	})
	return h
}

// Server returns the consumer endpoint and HTTP API.
func (h *Host) Server() *api.Server {
	return h.server
}

// Run drives the host until ctx is cancelled or Stop is called. src may be
// nil when events are only injected through Dispatch.
func (h *Host) Run(ctx context.Context, src input.Source) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	cfg := h.configMgr.Get()

	if src != nil {
		if err := src.Start(); err != nil {
			return fmt.Errorf("start input source: %w", err)
		}
		defer src.Stop()
		go h.pump(ctx, src)
	}

	go h.loop.Every(ctx, cfg.Router.TimeoutTick(), func() {
		h.router.CheckTimeouts(time.Now())
	})

	if cfg.General.APIEnabled {
		go func() {
			if err := h.server.Start(cfg.General.APIPort); err != nil {
				log.Printf("Host: Consumer endpoint unavailable: %v", err)
			}
		}()
	}

	log.Printf("Host: Running (generation %s)", h.generation)
	h.loop.Run(ctx)

	shutdownCtx, stop := context.WithTimeout(context.Background(), 2*time.Second)
	defer stop()
	return h.server.Shutdown(shutdownCtx)
}

// Stop ends Run.
func (h *Host) Stop() {
	h.loop.Stop()
}

func (h *Host) pump(ctx context.Context, src input.Source) {
	events := src.Events()
	for {
		select {
		case e, ok := <-events:
			if !ok {
				log.Printf("Host: Input source closed")
				return
			}
			if !h.Dispatch(e) {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (h *Host) newRouter(cfg *config.Config) {
	h.generation = uuid.NewString()
	h.router = router.New(h.server, h, h, router.Options{
		DesktopTouchAckTimeout: cfg.Router.DesktopTouchAckTimeout(),
		MobileTouchAckTimeout:  cfg.Router.MobileTouchAckTimeout(),
		TapSuppressionWindow:   cfg.Router.TapSuppressionWindow(),
		Debug:                  cfg.General.Debug,
	})
	if cfg.Router.MobileOptimized {
		h.router.NotifySiteIsMobileOptimized(true)
	}
}

// resetRouter drops everything in flight and starts a fresh router. It is
// safe to call from inside a keyboard ack.
func (h *Host) resetRouter(reason string) {
	h.router.Close()
	h.pending = make(map[uint16]string)
	h.resets++
	h.newRouter(h.configMgr.Get())
	h.resolveFlushWaiters()
	log.Printf("Host: Router reset (%s), generation %s", reason, h.generation)
	h.notify()
}

func (h *Host) reloadConfig() {
	cfg := h.configMgr.Get()
	h.debug = cfg.General.Debug
	h.applyShortcuts(cfg)
	if h.router.HasPendingEvents() {
		log.Printf("Host: Config reloaded, router settings apply after the next reset")
		return
	}
	h.resetRouter("config reloaded")
}

func (h *Host) applyShortcuts(cfg *config.Config) {
	h.local.Clear()
	h.fallback.Clear()
	for _, s := range cfg.Shortcuts {
		table := h.local
		if s.Fallback {
			table = h.fallback
		}
		if err := table.Register(s.Keys, s.Action); err != nil {
			log.Printf("Host: Ignoring shortcut %q: %v", s.Keys, err)
		}
	}
}

func (h *Host) state() State {
	return State{
		Generation:       h.generation,
		Session:          h.session,
		Connected:        h.connected,
		Paused:           h.paused,
		Resets:           h.resets,
		FlingStops:       h.flingStops,
		HasTouchHandlers: h.hasTouchHandlers,
		LastOverscroll:   h.lastOverscroll,
	}
}

func (h *Host) notify() {
	if h.OnStateChanged != nil {
		h.OnStateChanged(h.state())
	}
}

func (h *Host) runAction(action string) {
	log.Printf("Host: Shortcut action %s", action)
	switch action {
	case ActionFlush:
		h.router.RequestNotificationWhenFlushed()
	case ActionReset:
		h.resetRouter("shortcut")
	case ActionPause:
		h.setPaused(!h.paused)
	case ActionQuit:
		if h.OnQuit != nil {
			h.OnQuit()
		}
	default:
		log.Printf("Host: Unknown shortcut action %q", action)
	}
}

func (h *Host) setPaused(paused bool) {
	if h.paused == paused {
		return
	}
	h.paused = paused
	log.Printf("Host: Forwarding paused=%v", paused)
	h.notify()
}

func (h *Host) resolveFlushWaiters() {
	for _, ch := range h.flushWaiters {
		close(ch)
	}
	h.flushWaiters = nil
}

func (h *Host) debugf(format string, args ...interface{}) {
	if h.debug {
		log.Printf("Host: "+format, args...)
	}
}
