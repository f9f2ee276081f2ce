package input

import "strings"

// Linux evdev key codes used by the shortcut table and the evdev source.
const (
	KeyEsc        uint16 = 1
	KeyBackspace  uint16 = 14
	KeyTab        uint16 = 15
	KeyEnter      uint16 = 28
	KeyLeftCtrl   uint16 = 29
	KeyLeftShift  uint16 = 42
	KeyRightShift uint16 = 54
	KeyLeftAlt    uint16 = 56
	KeySpace      uint16 = 57
	KeyF1         uint16 = 59
	KeyF11        uint16 = 87
	KeyF12        uint16 = 88
	KeyRightCtrl  uint16 = 97
	KeyRightAlt   uint16 = 100
	KeyHome       uint16 = 102
	KeyArrowUp    uint16 = 103
	KeyPageUp     uint16 = 104
	KeyLeft       uint16 = 105
	KeyRight      uint16 = 106
	KeyEnd        uint16 = 107
	KeyArrowDown  uint16 = 108
	KeyPageDown   uint16 = 109
	KeyInsert     uint16 = 110
	KeyDelete     uint16 = 111
	KeyLeftMeta   uint16 = 125
	KeyRightMeta  uint16 = 126
)

// Rows of the main block, indexed from their first key code.
var keyRows = []struct {
	first uint16
	chars string
}{
	{2, "1234567890-="},
	{16, "qwertyuiop[]"},
	{30, "asdfghjkl;'`"},
	{44, "zxcvbnm,./"},
}

var namedKeys = map[uint16]string{
	KeyEsc:        "ESC",
	KeyBackspace:  "BACKSPACE",
	KeyTab:        "TAB",
	KeyEnter:      "ENTER",
	KeyLeftCtrl:   "CTRL",
	KeyRightCtrl:  "CTRL",
	KeyLeftShift:  "SHIFT",
	KeyRightShift: "SHIFT",
	KeyLeftAlt:    "ALT",
	KeyRightAlt:   "ALT",
	KeyLeftMeta:   "META",
	KeyRightMeta:  "META",
	KeySpace:      "SPACE",
	KeyF11:        "F11",
	KeyF12:        "F12",
	KeyHome:       "HOME",
	KeyArrowUp:    "UP",
	KeyPageUp:     "PAGEUP",
	KeyLeft:       "LEFT",
	KeyRight:      "RIGHT",
	KeyEnd:        "END",
	KeyArrowDown:  "DOWN",
	KeyPageDown:   "PAGEDOWN",
	KeyInsert:     "INSERT",
	KeyDelete:     "DELETE",
}

// KeyName returns the upper-case name of an evdev key code, or "" if the
// code is not known.
func KeyName(code uint16) string {
	if name, ok := namedKeys[code]; ok {
		return name
	}
	if code >= KeyF1 && code < KeyF1+10 {
		return "F" + itoa(int(code-KeyF1)+1)
	}
	if r := keyRune(code); r != 0 {
		return strings.ToUpper(string(r))
	}
	return ""
}

// KeyCode is the inverse of KeyName. Modifier names map to the left key.
func KeyCode(name string) (uint16, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for code := uint16(1); code <= KeyRightMeta; code++ {
		if KeyName(code) == name {
			return code, true
		}
	}
	return 0, false
}

// ModifierFor returns the modifier bit a key code sets, or zero.
func ModifierFor(code uint16) uint16 {
	switch code {
	case KeyLeftShift, KeyRightShift:
		return ModShift
	case KeyLeftCtrl, KeyRightCtrl:
		return ModCtrl
	case KeyLeftAlt, KeyRightAlt:
		return ModAlt
	case KeyLeftMeta, KeyRightMeta:
		return ModMeta
	}
	return 0
}

// KeyText returns the character a key produces under mods, or zero.
func KeyText(code uint16, mods uint16) rune {
	if mods&(ModCtrl|ModAlt|ModMeta) != 0 {
		return 0
	}
	if code == KeySpace {
		return ' '
	}
	r := keyRune(code)
	if r >= 'a' && r <= 'z' && mods&ModShift != 0 {
		r -= 'a' - 'A'
	}
	return r
}

func keyRune(code uint16) rune {
	for _, row := range keyRows {
		if code >= row.first && int(code-row.first) < len(row.chars) {
			return rune(row.chars[code-row.first])
		}
	}
	return 0
}

func itoa(n int) string {
	if n < 10 {
		return string(rune('0' + n))
	}
	return string(rune('0'+n/10)) + string(rune('0'+n%10))
}
