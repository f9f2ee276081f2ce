// Package shortcut matches key events against key combinations handled by
// the host instead of the remote consumer.
package shortcut

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"inputrouter/internal/input"
)

var (
	ErrEmpty      = errors.New("shortcut: empty combination")
	ErrUnknownKey = errors.New("shortcut: unknown key")
	ErrNoKey      = errors.New("shortcut: combination needs exactly one non-modifier key")
)

const modMask = input.ModShift | input.ModCtrl | input.ModAlt | input.ModMeta

var modifierNames = map[string]uint16{
	"CTRL":    input.ModCtrl,
	"CONTROL": input.ModCtrl,
	"ALT":     input.ModAlt,
	"OPTION":  input.ModAlt,
	"SHIFT":   input.ModShift,
	"META":    input.ModMeta,
	"CMD":     input.ModMeta,
	"SUPER":   input.ModMeta,
	"WIN":     input.ModMeta,
}

// Combo is a parsed key combination.
type Combo struct {
	Mods uint16
	Code uint16
}

// Parse reads a combination such as "Ctrl+Alt+1".
func Parse(s string) (Combo, error) {
	if strings.TrimSpace(s) == "" {
		return Combo{}, ErrEmpty
	}
	var c Combo
	keys := 0
	for _, p := range strings.Split(strings.ToUpper(s), "+") {
		p = strings.TrimSpace(p)
		if m, ok := modifierNames[p]; ok {
			c.Mods |= m
			continue
		}
		code, ok := input.KeyCode(p)
		if !ok {
			return Combo{}, fmt.Errorf("%q in %q: %w", p, s, ErrUnknownKey)
		}
		if input.ModifierFor(code) != 0 {
			c.Mods |= input.ModifierFor(code)
			continue
		}
		c.Code = code
		keys++
	}
	if keys != 1 {
		return Combo{}, fmt.Errorf("%q: %w", s, ErrNoKey)
	}
	return c, nil
}

func (c Combo) String() string {
	var parts []string
	for _, m := range []struct {
		bit  uint16
		name string
	}{{input.ModCtrl, "Ctrl"}, {input.ModAlt, "Alt"}, {input.ModShift, "Shift"}, {input.ModMeta, "Meta"}} {
		if c.Mods&m.bit != 0 {
			parts = append(parts, m.name)
		}
	}
	name := input.KeyName(c.Code)
	if len(name) > 1 {
		name = name[:1] + strings.ToLower(name[1:])
	}
	return strings.Join(append(parts, name), "+")
}

// Table holds registered shortcuts. It is safe for concurrent use; the
// host rebuilds it from the config watcher while the loop matches.
type Table struct {
	mu       sync.RWMutex
	bindings []binding
}

type binding struct {
	combo  Combo
	action string
}

// NewTable creates an empty table
func NewTable() *Table {
	return &Table{}
}

// Register binds a combination string to an action name.
func (t *Table) Register(keys, action string) error {
	c, err := Parse(keys)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for i, b := range t.bindings {
		if b.combo == c {
			log.Printf("Shortcut: %s rebound from %s to %s", keys, b.action, action)
			t.bindings[i].action = action
			return nil
		}
	}
	t.bindings = append(t.bindings, binding{combo: c, action: action})
	return nil
}

// Clear removes all registered shortcuts
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bindings = nil
}

// Len returns the number of registered shortcuts
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.bindings)
}

// Match returns the action bound to a key press. Releases, characters and
// auto-repeats never match.
func (t *Table) Match(e input.Event) (string, bool) {
	if !input.IsKeyDown(e.Type) || e.Modifiers&input.ModIsAutoRepeat != 0 {
		return "", false
	}
	c := Combo{Mods: e.Modifiers & modMask, Code: e.Key.Code}

	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, b := range t.bindings {
		if b.combo == c {
			return b.action, true
		}
	}
	return "", false
}
