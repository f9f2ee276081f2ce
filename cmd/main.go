// Input Router
// Forwards local input events to a remote consumer with ack-based flow control
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inputrouter/internal/config"
	"inputrouter/internal/host"
	"inputrouter/internal/input"
	"inputrouter/internal/network"
	"inputrouter/internal/tray"
)

var (
	version    = "0.3.0"
	showVer    = flag.Bool("version", false, "Show version")
	configPath = flag.String("config", "", "Config file (.json or .toml); defaults to the user config dir")
	consumerTo = flag.String("consumer", "", "Run as the demo consumer connected to host:port, or \"auto\" to scan the LAN")
	showTray   = flag.Bool("tray", false, "Show the system tray (overrides config)")
	simulate   = flag.Bool("simulate", false, "Generate synthetic input instead of reading a device")
	device     = flag.String("device", "", "evdev device to capture (overrides config)")
	ackDelay   = flag.Duration("ack-delay", 0, "Consumer mode: delay before each ack")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("inputrouter version %s\n", version)
		return
	}

	cfgMgr, err := newConfigManager()
	if err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}
	if err := cfgMgr.Load(); err != nil {
		log.Printf("Warning: failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *consumerTo != "" {
		runConsumer(ctx, cfgMgr, *consumerTo)
		return
	}

	runHost(ctx, cfgMgr)
}

func newConfigManager() (*config.Manager, error) {
	if *configPath != "" {
		return config.NewManagerAt(*configPath), nil
	}
	return config.NewManager()
}

func runHost(ctx context.Context, cfgMgr *config.Manager) {
	log.Println("Input router starting...")
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg := cfgMgr.Get()
	h := host.New(cfgMgr)
	h.OnQuit = cancel

	go func() {
		if err := cfgMgr.Watch(ctx); err != nil {
			log.Printf("Config watch disabled: %v", err)
		}
	}()

	var src input.Source
	switch {
	case *simulate:
		log.Println("Using simulated input")
		src = input.NewSimulator(8 * time.Millisecond)
	case *device != "" || cfg.Input.Device != "":
		path := cfg.Input.Device
		if *device != "" {
			path = *device
		}
		ev := input.NewEvdev(path, cfg.Input.Grab)
		ev.SetInvertWheel(cfg.Input.InvertWheel)
		ev.SetKillSwitch(func() {
			log.Println("EMERGENCY: Kill switch pressed, releasing input")
			cancel()
		})
		src = ev
	default:
		log.Println("No input device configured; inject events with POST /api/events")
	}

	var t *tray.Tray
	if *showTray || cfg.General.ShowTray {
		t = newTray(ctx, h)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := h.Run(ctx, src); err != nil {
			log.Printf("Host stopped: %v", err)
		}
		cancel()
	}()

	if t != nil {
		go func() {
			<-ctx.Done()
			t.Stop()
		}()
		log.Println("Input router running in the system tray.")
		t.Run()
	} else {
		log.Println("Input router running. Press Ctrl+C to stop.")
		<-ctx.Done()
	}

	log.Println("Shutting down...")
	cancel()
	<-done
}

// newTray builds the tray menu. It must run before the host starts so the
// state callback is in place.
func newTray(ctx context.Context, h *host.Host) *tray.Tray {
	t := tray.New("Input Router")

	statusID := t.AddStatusItem("Waiting for consumer")
	t.AddSeparator()
	t.AddMenuItem("Flush", func() {
		fctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := h.Flush(fctx); err != nil {
			log.Printf("Tray: Flush failed: %v", err)
		}
	})
	t.AddMenuItem("Reset router", h.Reset)
	pauseID := t.AddMenuItem("Pause forwarding", func() {
		s, err := h.State(ctx)
		if err != nil {
			return
		}
		h.SetPaused(!s.Paused)
	})
	t.AddSeparator()
	t.AddMenuItem("Quit", t.Stop)

	h.OnStateChanged = func(s host.State) {
		title := "Waiting for consumer"
		if s.Connected {
			title = fmt.Sprintf("Consumer %.8s attached", s.Session)
		}
		if s.Paused {
			title += " (paused)"
		}
		t.SetItemTitle(statusID, title)
		t.SetItemChecked(pauseID, s.Paused)
	}
	return t
}

func runConsumer(ctx context.Context, cfgMgr *config.Manager, addr string) {
	cfg := cfgMgr.Get()
	if addr == "auto" {
		log.Printf("Scanning LAN for router hosts on port %d...", cfg.General.APIPort)
		hosts, err := network.ScanLAN(cfg.General.APIPort)
		if err != nil {
			log.Fatalf("LAN scan failed: %v", err)
		}
		if len(hosts) == 0 || hosts[0].Connected {
			log.Fatalf("No free router host found")
		}
		addr = hosts[0].Addr()
		log.Printf("Found router host at %s", addr)
	}

	name, _ := os.Hostname()
	c := network.NewConsumer(addr, cfg.General.APIToken, name)
	c.AckDelay = *ackDelay
	c.FlingDuration = 300 * time.Millisecond
	c.OnEvent = func(e input.Event, shortcut bool) {
		if cfg.General.Debug {
			log.Printf("Consumer: %s mods=0x%x shortcut=%v", e.Type, e.Modifiers, shortcut)
		}
	}
	c.OnEditCommand = func(cmd input.EditCommand) {
		log.Printf("Consumer: Edit %s (%d, %d)", cmd.Op, cmd.X, cmd.Y)
	}
	c.Start()
	defer c.Close()

	log.Println("Consumer running. Press Ctrl+C to stop.")
	<-ctx.Done()
}
