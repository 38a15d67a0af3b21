package schemas

import (
	"fmt"
	"strings"
)

// Mode selects which resolution strategies the engine may use. It is fixed
// for the lifetime of a Manager.
type Mode string

const (
	ModeDeterministic Mode = "deterministic"
	ModeVisual        Mode = "visual"
	ModeHybrid        Mode = "hybrid"
)

func (m Mode) String() string { return string(m) }

// ParseMode maps a configuration string onto a Mode. The empty string is hybrid.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ModeHybrid):
		return ModeHybrid, nil
	case string(ModeDeterministic):
		return ModeDeterministic, nil
	case string(ModeVisual):
		return ModeVisual, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want deterministic, visual or hybrid)", s)
	}
}

// BackendKind identifies one of the external collaborators the engine can drive.
type BackendKind string

const (
	BackendStructural BackendKind = "structural"
	BackendOSBridge   BackendKind = "os-bridge"
	BackendNative     BackendKind = "native"
	BackendVision     BackendKind = "vision"
)

func (k BackendKind) String() string { return string(k) }

// ConnectionState is the lifecycle state of a Manager.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
)

func (s ConnectionState) String() string { return string(s) }
