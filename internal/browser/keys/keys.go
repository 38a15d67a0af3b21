// Package keys parses key expressions such as "Enter", "Shift+Tab" or
// "Control+a" into the key event fields CDP and the OS bridge expect.
package keys

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/xkilldash9x/webprobe/api/schemas"
)

type keyDef struct {
	key     string
	code    string
	keyCode int64
	text    string
}

var named = map[string]keyDef{
	"enter":      {"Enter", "Enter", 13, "\r"},
	"tab":        {"Tab", "Tab", 9, ""},
	"escape":     {"Escape", "Escape", 27, ""},
	"backspace":  {"Backspace", "Backspace", 8, ""},
	"delete":     {"Delete", "Delete", 46, ""},
	"space":      {" ", "Space", 32, " "},
	"arrowup":    {"ArrowUp", "ArrowUp", 38, ""},
	"arrowdown":  {"ArrowDown", "ArrowDown", 40, ""},
	"arrowleft":  {"ArrowLeft", "ArrowLeft", 37, ""},
	"arrowright": {"ArrowRight", "ArrowRight", 39, ""},
	"home":       {"Home", "Home", 36, ""},
	"end":        {"End", "End", 35, ""},
	"pageup":     {"PageUp", "PageUp", 33, ""},
	"pagedown":   {"PageDown", "PageDown", 34, ""},
	"insert":     {"Insert", "Insert", 45, ""},
}

var aliases = map[string]string{
	"return": "enter", "esc": "escape", "del": "delete",
	"up": "arrowup", "down": "arrowdown", "left": "arrowleft", "right": "arrowright",
}

var modifierNames = map[string]schemas.KeyModifier{
	"alt": schemas.ModAlt, "option": schemas.ModAlt,
	"control": schemas.ModCtrl, "ctrl": schemas.ModCtrl,
	"meta": schemas.ModMeta, "cmd": schemas.ModMeta, "command": schemas.ModMeta, "super": schemas.ModMeta,
	"shift": schemas.ModShift,
}

// Parse turns a "+"-joined key expression into a single key event. Every
// token but the last must be a modifier. A lone "+" is the plus key.
func Parse(expr string) (schemas.KeyEventData, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return schemas.KeyEventData{}, fmt.Errorf("empty key expression")
	}

	var tokens []string
	switch {
	case expr == "+":
		tokens = []string{"+"}
	case strings.HasSuffix(expr, "++"):
		tokens = append(strings.Split(strings.TrimSuffix(expr, "++"), "+"), "+")
	default:
		tokens = strings.Split(expr, "+")
	}

	var mods schemas.KeyModifier
	for _, t := range tokens[:len(tokens)-1] {
		m, ok := modifierNames[strings.ToLower(strings.TrimSpace(t))]
		if !ok {
			return schemas.KeyEventData{}, fmt.Errorf("key expression %q: %q is not a modifier", expr, t)
		}
		mods |= m
	}

	last := tokens[len(tokens)-1]
	if last != " " {
		last = strings.TrimSpace(last)
	}
	ev, err := lookup(last, mods)
	if err != nil {
		return schemas.KeyEventData{}, fmt.Errorf("key expression %q: %w", expr, err)
	}
	ev.Modifiers = mods
	// Chords with Control or Meta do not insert text.
	if mods&(schemas.ModCtrl|schemas.ModMeta) != 0 {
		ev.Text = ""
	}
	return ev, nil
}

func lookup(name string, mods schemas.KeyModifier) (schemas.KeyEventData, error) {
	if name == "" {
		return schemas.KeyEventData{}, fmt.Errorf("missing key")
	}
	lower := strings.ToLower(name)
	if a, ok := aliases[lower]; ok {
		lower = a
	}
	if d, ok := named[lower]; ok {
		return schemas.KeyEventData{Key: d.key, Code: d.code, KeyCode: d.keyCode, Text: d.text}, nil
	}
	if len(lower) >= 2 && lower[0] == 'f' {
		var n int
		if _, err := fmt.Sscanf(lower[1:], "%d", &n); err == nil && n >= 1 && n <= 12 && fmt.Sprint(n) == lower[1:] {
			k := fmt.Sprintf("F%d", n)
			return schemas.KeyEventData{Key: k, Code: k, KeyCode: int64(111 + n)}, nil
		}
	}
	if utf8.RuneCountInString(name) != 1 {
		return schemas.KeyEventData{}, fmt.Errorf("unknown key %q", name)
	}
	return Char(firstRune(name), mods&schemas.ModShift != 0), nil
}

// Char describes the key that produces r on a US layout.
func Char(r rune, shift bool) schemas.KeyEventData {
	ev := schemas.KeyEventData{Key: string(r), Text: string(r)}
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		up := unicode.ToUpper(r)
		ev.Code = "Key" + string(up)
		ev.KeyCode = int64(up)
		if shift {
			ev.Key, ev.Text = string(up), string(up)
		}
	case r >= '0' && r <= '9':
		ev.Code = "Digit" + string(r)
		ev.KeyCode = int64(r)
	case r == ' ':
		ev.Code, ev.KeyCode = "Space", 32
	case r == '\n' || r == '\r':
		return schemas.KeyEventData{Key: "Enter", Code: "Enter", KeyCode: 13, Text: "\r"}
	case r == '\t':
		return schemas.KeyEventData{Key: "Tab", Code: "Tab", KeyCode: 9}
	}
	return ev
}

// ModifierKeys lists the key events that hold down mods, in press order.
func ModifierKeys(mods schemas.KeyModifier) []schemas.KeyEventData {
	var out []schemas.KeyEventData
	if mods&schemas.ModCtrl != 0 {
		out = append(out, schemas.KeyEventData{Key: "Control", Code: "ControlLeft", KeyCode: 17})
	}
	if mods&schemas.ModAlt != 0 {
		out = append(out, schemas.KeyEventData{Key: "Alt", Code: "AltLeft", KeyCode: 18})
	}
	if mods&schemas.ModMeta != 0 {
		out = append(out, schemas.KeyEventData{Key: "Meta", Code: "MetaLeft", KeyCode: 91})
	}
	if mods&schemas.ModShift != 0 {
		out = append(out, schemas.KeyEventData{Key: "Shift", Code: "ShiftLeft", KeyCode: 16})
	}
	return out
}

func firstRune(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	return r
}
