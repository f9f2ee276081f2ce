package host

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"inputrouter/internal/api"
	"inputrouter/internal/config"
	"inputrouter/internal/input"
	"inputrouter/internal/network"
	"inputrouter/internal/router"
)

func newTestHost(t *testing.T, tweak func(cfg *config.Config)) (*Host, *config.Manager) {
	t.Helper()
	mgr := config.NewManagerAt(filepath.Join(t.TempDir(), "config.json"))
	cfg := mgr.Get()
	cfg.General.APIEnabled = false
	if tweak != nil {
		tweak(cfg)
	}
	if err := mgr.Set(cfg); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	return New(mgr), mgr
}

func start(t *testing.T, h *Host) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx, nil) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func mustState(t *testing.T, h *Host) State {
	t.Helper()
	s, err := h.State(context.Background())
	if err != nil {
		t.Fatalf("State failed: %v", err)
	}
	return s
}

func mustSnapshot(t *testing.T, h *Host) router.Snapshot {
	t.Helper()
	s, err := h.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	return s
}

func connectConsumer(t *testing.T, h *Host, setup func(c *network.Consumer)) (*network.Consumer, string) {
	t.Helper()
	ts := httptest.NewServer(h.Server().Handler())
	t.Cleanup(ts.Close)

	c := network.NewConsumer(strings.TrimPrefix(ts.URL, "http://"), "", "test")
	c.RetryInterval = time.Hour
	if setup != nil {
		setup(c)
	}
	c.Start()
	t.Cleanup(c.Close)

	waitFor(t, "consumer to attach", func() bool {
		s, err := h.State(context.Background())
		return err == nil && s.Connected
	})
	return c, ts.URL
}

func keyEvent(typ input.Type, mods uint16, code uint16) input.Event {
	return input.Event{Type: typ, Modifiers: mods, Key: input.KeyData{Code: code}}
}

func move(x int32) input.Event {
	return input.Event{Type: input.MouseMove, Mouse: input.MouseData{X: x, MovementX: 1}}
}

// TestNoConsumerAcksLocally tests that events are acked by the host while
// nothing is attached
func TestNoConsumerAcksLocally(t *testing.T) {
	h, _ := newTestHost(t, nil)
	start(t, h)

	h.Dispatch(move(1))
	h.Dispatch(keyEvent(input.RawKeyDown, 0, 30))

	snap := mustSnapshot(t, h)
	if snap.Stats.Sent != 0 {
		t.Errorf("Expected nothing sent, got %d", snap.Stats.Sent)
	}
	if snap.Stats.ClientAcks != 2 {
		t.Errorf("Expected 2 local acks, got %d", snap.Stats.ClientAcks)
	}
	if snap.Pending {
		t.Error("Expected nothing pending")
	}
}

// TestShortcutReset tests that a local shortcut resets the router from
// inside the keyboard ack and swallows the rest of the press
func TestShortcutReset(t *testing.T) {
	h, _ := newTestHost(t, nil)
	start(t, h)
	before := mustState(t, h)

	const keyR = 19
	mods := input.ModCtrl | input.ModAlt
	h.Dispatch(keyEvent(input.RawKeyDown, mods, keyR))
	h.Dispatch(input.Event{Type: input.Char, Modifiers: mods, Key: input.KeyData{Code: keyR, Text: 'r'}})
	h.Dispatch(keyEvent(input.KeyUp, mods, keyR))

	after := mustState(t, h)
	if after.Resets != 1 {
		t.Errorf("Expected 1 reset, got %d", after.Resets)
	}
	if after.Generation == before.Generation {
		t.Error("Expected a new router generation")
	}

	snap := mustSnapshot(t, h)
	if snap.Stats.ClientAcks != 2 || snap.KeyQueue != 0 {
		t.Errorf("Expected char and key up consumed by the new router, got %+v", snap)
	}
}

// TestPauseDropsEvents tests that paused forwarding drops events
func TestPauseDropsEvents(t *testing.T) {
	h, _ := newTestHost(t, nil)
	start(t, h)

	h.SetPaused(true)
	h.Dispatch(move(1))

	if !mustState(t, h).Paused {
		t.Error("Expected paused state")
	}
	if snap := mustSnapshot(t, h); snap.Stats.Dropped != 1 {
		t.Errorf("Expected 1 dropped event, got %d", snap.Stats.Dropped)
	}
}

// TestFlushIdle tests that Flush returns at once with nothing in flight
func TestFlushIdle(t *testing.T) {
	h, _ := newTestHost(t, nil)
	start(t, h)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := h.Flush(ctx); err != nil {
		t.Errorf("Expected flush, got %v", err)
	}
}

// TestConfigReload tests that a config change rebuilds shortcuts
func TestConfigReload(t *testing.T) {
	h, mgr := newTestHost(t, nil)
	quit := make(chan struct{}, 1)
	h.OnQuit = func() { quit <- struct{}{} }
	start(t, h)

	cfg := mgr.Get()
	cfg.Shortcuts = append(cfg.Shortcuts, config.Shortcut{Keys: "Ctrl+Alt+Q", Action: ActionQuit})
	if err := mgr.Set(cfg); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "config reload", func() bool { return mustState(t, h).Resets == 1 })

	h.Dispatch(keyEvent(input.RawKeyDown, input.ModCtrl|input.ModAlt, 16))
	select {
	case <-quit:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected the quit action")
	}
}

// TestEndToEnd tests the router against a real consumer over a websocket
func TestEndToEnd(t *testing.T) {
	h, _ := newTestHost(t, nil)
	start(t, h)

	var received int32
	var mu sync.Mutex
	var edits []input.EditCommand
	connectConsumer(t, h, func(c *network.Consumer) {
		c.AckDelay = time.Millisecond
		c.OnEvent = func(e input.Event, shortcut bool) { atomic.AddInt32(&received, 1) }
		c.OnEditCommand = func(cmd input.EditCommand) {
			mu.Lock()
			edits = append(edits, cmd)
			mu.Unlock()
		}
	})

	for i := int32(0); i < 20; i++ {
		h.Dispatch(move(i))
	}
	for i := 0; i < 3; i++ {
		h.Dispatch(input.Event{Type: input.MouseWheel, Wheel: input.WheelData{DeltaY: -40, WheelTicksY: -1, CanScroll: true}})
	}
	h.Dispatch(keyEvent(input.RawKeyDown, 0, 30))
	h.Dispatch(input.Event{Type: input.Char, Key: input.KeyData{Code: 30, Text: 'a'}})
	h.Dispatch(keyEvent(input.KeyUp, 0, 30))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := h.EditCommand(ctx, input.EditCommand{Op: input.EditMoveCaret, X: 3, Y: 4}); err != nil {
		t.Fatalf("EditCommand failed: %v", err)
	}
	if err := h.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	snap := mustSnapshot(t, h)
	if snap.Pending {
		t.Errorf("Expected nothing pending after flush, got %+v", snap)
	}
	if snap.Stats.Unexpected != 0 {
		t.Errorf("Expected no unexpected acks, got %d", snap.Stats.Unexpected)
	}
	if snap.Stats.RendererAcks < 3 {
		t.Errorf("Expected at least the key acks from the consumer, got %d", snap.Stats.RendererAcks)
	}
	// Sent also counts the edit command.
	if got := atomic.LoadInt32(&received); got < 5 || uint64(got)+1 != snap.Stats.Sent {
		t.Errorf("Expected the consumer to see every sent event, got %d of %d", got, snap.Stats.Sent)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(edits) != 1 || edits[0].Op != input.EditMoveCaret || edits[0].X != 3 {
		t.Errorf("Expected one caret move, got %+v", edits)
	}
}

// TestFallbackShortcut tests that an unconsumed fallback shortcut runs its
// action and reaches the consumer marked as a shortcut
func TestFallbackShortcut(t *testing.T) {
	h, _ := newTestHost(t, func(cfg *config.Config) {
		cfg.Shortcuts = append(cfg.Shortcuts, config.Shortcut{Keys: "Ctrl+Alt+P", Action: ActionPause, Fallback: true})
	})
	start(t, h)

	var flagged int32
	connectConsumer(t, h, func(c *network.Consumer) {
		c.OnEvent = func(e input.Event, shortcut bool) {
			if shortcut {
				atomic.AddInt32(&flagged, 1)
			}
		}
	})

	h.Dispatch(keyEvent(input.RawKeyDown, input.ModCtrl|input.ModAlt, 25))
	waitFor(t, "pause", func() bool { return mustState(t, h).Paused })
	if atomic.LoadInt32(&flagged) != 1 {
		t.Errorf("Expected one flagged shortcut, got %d", flagged)
	}
}

// TestBadAckDisconnects tests that a consumer sending invalid acks is dropped
func TestBadAckDisconnects(t *testing.T) {
	h, _ := newTestHost(t, nil)
	start(t, h)

	connectConsumer(t, h, func(c *network.Consumer) {
		c.Verdict = func(e input.Event) input.AckState { return input.AckState(42) }
	})

	h.Dispatch(move(1))
	waitFor(t, "consumer to be dropped", func() bool { return !mustState(t, h).Connected })

	if s := mustState(t, h); s.Resets < 1 {
		t.Errorf("Expected a reset after the drop, got %d", s.Resets)
	}
	if mustSnapshot(t, h).Pending {
		t.Error("Expected the new router to be idle")
	}
}

// TestHTTPStatusAndFlush tests the API endpoints backed by the host
func TestHTTPStatusAndFlush(t *testing.T) {
	h, _ := newTestHost(t, nil)
	start(t, h)
	_, url := connectConsumer(t, h, nil)

	resp, err := http.Get(url + "/api/status")
	if err != nil {
		t.Fatal(err)
	}
	var status api.Status
	err = json.NewDecoder(resp.Body).Decode(&status)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if !status.Connected || status.Session == "" {
		t.Errorf("Expected an attached session, got %+v", status)
	}

	resp, err = http.Post(url+"/api/flush", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
}
