// Package tray provides the optional system tray status surface using
// getlantern/systray.
package tray

import (
	"sync"

	"github.com/getlantern/systray"
)

// MenuItem represents a menu item
type MenuItem struct {
	ID       int
	Title    string
	Callback func()
	status   bool
	checked  bool
	item     *systray.MenuItem
}

// Tray manages the system tray icon and menu. Titles and check marks set
// before the menu exists are applied when it is built.
type Tray struct {
	mu      sync.Mutex
	items   []*MenuItem
	tooltip string
	quitCh  chan struct{}
}

// New creates a new system tray
func New(tooltip string) *Tray {
	return &Tray{
		tooltip: tooltip,
		quitCh:  make(chan struct{}),
	}
}

// AddMenuItem adds a menu item to the tray
func (t *Tray) AddMenuItem(title string, callback func()) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := len(t.items)
	t.items = append(t.items, &MenuItem{ID: id, Title: title, Callback: callback})
	return id
}

// AddStatusItem adds a disabled item used as a status line
func (t *Tray) AddStatusItem(title string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := len(t.items)
	t.items = append(t.items, &MenuItem{ID: id, Title: title, status: true})
	return id
}

// AddSeparator adds a separator to the menu
func (t *Tray) AddSeparator() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append(t.items, nil) // nil indicates separator
}

func (t *Tray) lookup(id int) *MenuItem {
	if id >= 0 && id < len(t.items) {
		return t.items[id]
	}
	return nil
}

// SetItemChecked sets the checked state of a menu item
func (t *Tray) SetItemChecked(id int, checked bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	mi := t.lookup(id)
	if mi == nil {
		return
	}
	mi.checked = checked
	if mi.item == nil {
		return
	}
	if checked {
		mi.item.Check()
	} else {
		mi.item.Uncheck()
	}
}

// SetItemTitle changes the title of a menu item
func (t *Tray) SetItemTitle(id int, title string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	mi := t.lookup(id)
	if mi == nil {
		return
	}
	mi.Title = title
	if mi.item != nil {
		mi.item.SetTitle(title)
	}
}

// Run starts the tray event loop (blocks)
func (t *Tray) Run() {
	systray.Run(t.setupMenu, func() { close(t.quitCh) })
}

// setupMenu is called when systray is ready
func (t *Tray) setupMenu() {
	systray.SetTitle("Input Router")
	systray.SetTooltip(t.tooltip)
	systray.SetIcon(getIcon())

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, menuItem := range t.items {
		if menuItem == nil {
			systray.AddSeparator()
			continue
		}

		item := systray.AddMenuItem(menuItem.Title, "")
		menuItem.item = item
		if menuItem.status {
			item.Disable()
		}
		if menuItem.checked {
			item.Check()
		}

		if menuItem.Callback != nil {
			go func(mi *MenuItem) {
				for {
					select {
					case <-mi.item.ClickedCh:
						mi.Callback()
					case <-t.quitCh:
						return
					}
				}
			}(menuItem)
		}
	}
}

// Stop stops the tray
func (t *Tray) Stop() {
	systray.Quit()
}

// getIcon returns a placeholder icon (valid 16x16 ICO)
func getIcon() []byte {
	// A valid 16x16 32-bit ICO file with correct size and DIB header
	icon := make([]byte, 1118)
	// ICO Header
	copy(icon[0:6], []byte{0x00, 0x00, 0x01, 0x00, 0x01, 0x00})
	// Icon Directory
	copy(icon[6:22], []byte{
		0x10, 0x10, 0x00, 0x00, 0x01, 0x00, 0x20, 0x00,
		0x48, 0x04, 0x00, 0x00, // Size: 1024 (pixels) + 40 (header) + 32 (mask) = 1096 bytes
		0x16, 0x00, 0x00, 0x00, // Offset
	})
	// DIB Header
	copy(icon[22:62], []byte{
		0x28, 0x00, 0x00, 0x00, // Size
		0x10, 0x00, 0x00, 0x00, // Width
		0x20, 0x00, 0x00, 0x00, // Height (16 * 2 for icon)
		0x01, 0x00, // Planes
		0x20, 0x00, // BPP
		0x00, 0x00, 0x00, 0x00, // Compression
		0x00, 0x04, 0x00, 0x00, // Image Size
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
	})
	// The rest (pixels and mask) can stay 0 for transparency
	return icon
}
