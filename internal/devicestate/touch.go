package devicestate

import (
	"github.com/nanoclaw/nanoclaw/internal/protocol"
	"github.com/nanoclaw/nanoclaw/internal/touch"
)

// ApplyTouchFrame folds a touch frame into the state machine. In
// SafeMode and Error scenes a left/right swipe raises a UI message
// requesting the operator confirm dismissal; elsewhere touch frames are
// consumed by the scene itself and produce no Action here (spec.md §4.2
// leaves gesture-to-navigation mapping to the rendering layer except
// for the safety-relevant swipe-to-dismiss gesture).
func (s *State) ApplyTouchFrame(frame touch.Frame, detector *touch.Detector) Action {
	switch frame.Phase {
	case protocol.TouchDown:
		detector.OnDown(frame.Point.X, frame.Point.Y)
		return noAction()
	case protocol.TouchUp:
		dir := detector.OnUp(frame.Point.X, frame.Point.Y)
		if dir == touch.SwipeNone {
			return noAction()
		}
		if s.mode.Mode != ModeSafeMode && s.mode.Mode != ModeError {
			return noAction()
		}
		return Action{Kind: ActionRaiseUIState, UIMessage: "dismiss_requested"}
	case protocol.TouchCancel:
		detector.Cancel()
		return noAction()
	default:
		return noAction()
	}
}
