package schemas

// -- Low-Level Input Schemas --

// MouseEventType defines the type of a mouse event.
type MouseEventType string

const (
	MouseMove    MouseEventType = "mouseMoved"
	MousePress   MouseEventType = "mousePressed"
	MouseRelease MouseEventType = "mouseReleased"
	MouseWheel   MouseEventType = "mouseWheel"
)

// MouseButton defines the mouse button being pressed.
type MouseButton string

const (
	ButtonNone   MouseButton = "none"
	ButtonLeft   MouseButton = "left"
	ButtonRight  MouseButton = "right"
	ButtonMiddle MouseButton = "middle"
)

// Mask returns the CDP "buttons" bitfield value for a held button.
func (b MouseButton) Mask() int64 {
	switch b {
	case ButtonLeft:
		return 1
	case ButtonRight:
		return 2
	case ButtonMiddle:
		return 4
	default:
		return 0
	}
}

// MouseEventData encapsulates all data for a mouse event.
type MouseEventData struct {
	Type       MouseEventType `json:"type"`
	X          float64        `json:"x"`
	Y          float64        `json:"y"`
	Button     MouseButton    `json:"button"`
	Buttons    int64          `json:"buttons"`
	ClickCount int            `json:"clickCount"`
	DeltaX     float64        `json:"deltaX"`
	DeltaY     float64        `json:"deltaY"`
}

// KeyEventData represents a structured key event, including the main key and active modifiers.
type KeyEventData struct {
	// Key is the DOM key value (e.g. "a", "Enter", "Tab").
	Key string `json:"key"`
	// Code is the physical key code (e.g. "KeyA", "Enter").
	Code string `json:"code"`
	// KeyCode is the Windows virtual key code.
	KeyCode int64 `json:"keyCode"`
	// Text is the character the key inserts, empty for non-printing keys.
	Text      string      `json:"text,omitempty"`
	Modifiers KeyModifier `json:"modifiers"`
}

// KeyModifier represents keyboard modifiers (Ctrl, Alt, Shift, Meta).
// These values correspond directly to the CDP input.DispatchKeyEvent modifiers bitfield.
type KeyModifier int

const (
	ModNone  KeyModifier = 0
	ModAlt   KeyModifier = 1
	ModCtrl  KeyModifier = 2
	ModMeta  KeyModifier = 4
	ModShift KeyModifier = 8
)
