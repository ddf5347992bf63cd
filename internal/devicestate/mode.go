// Package devicestate implements the device state machine (spec.md §4.3,
// component C3): mode/scene transitions, the in-flight command ledger,
// safety counters, and OTA tracking.
package devicestate

import "fmt"

// Mode is the device's runtime mode.
type Mode int

const (
	ModeBooting Mode = iota
	ModeConnected
	ModeOffline
	ModeError
	ModeSafeMode
)

// String returns the mode tag without its reason.
func (m Mode) String() string {
	switch m {
	case ModeBooting:
		return "booting"
	case ModeConnected:
		return "connected"
	case ModeOffline:
		return "offline"
	case ModeError:
		return "error"
	case ModeSafeMode:
		return "safe_mode"
	default:
		return "unknown"
	}
}

// ModeState pairs a Mode with its optional reason (Error/SafeMode carry
// one; other modes don't).
type ModeState struct {
	Mode   Mode
	Reason string
}

// String renders "mode" or "mode(reason)".
func (s ModeState) String() string {
	if s.Reason == "" {
		return s.Mode.String()
	}
	return fmt.Sprintf("%s(%s)", s.Mode, s.Reason)
}

// Scene is the UI-visible screen implied by a Mode (spec.md §4.3: "scene
// is a pure function of mode + agent activity"; agent activity is out of
// the core's scope, so here scene is a pure function of mode alone).
type Scene int

const (
	SceneBoot Scene = iota
	ScenePaired
	SceneOffline
	SceneError
	SceneSettings
)

func (s Scene) String() string {
	switch s {
	case SceneBoot:
		return "boot"
	case ScenePaired:
		return "paired"
	case SceneOffline:
		return "offline"
	case SceneError:
		return "error"
	case SceneSettings:
		return "settings"
	default:
		return "unknown"
	}
}

// SceneFor derives the scene implied by a mode.
func SceneFor(mode Mode) Scene {
	switch mode {
	case ModeBooting:
		return SceneBoot
	case ModeConnected:
		return ScenePaired
	case ModeOffline:
		return SceneOffline
	case ModeError:
		return SceneError
	case ModeSafeMode:
		return SceneSettings
	default:
		return SceneBoot
	}
}
