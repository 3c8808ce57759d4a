package engine

import "github.com/automaudio/automat"

type (
	// RecordingMsg is sent when the aggregate is-anything-recording flag
	// flips: true when the first session starts, false when the last one
	// ends. Exactly one false is sent no matter how many sessions a global
	// stop tears down.
	RecordingMsg struct{ bool }

	// ModeChangedMsg is sent when the global recording mode selector
	// changes.
	ModeChangedMsg struct{ Mode automat.Mode }

	// TouchBeganMsg and TouchEndedMsg are sent for every gesture, whether
	// or not a session exists for the lane, so UI indicators can follow the
	// gesture independently of recording state.
	TouchBeganMsg struct{ Lane automat.LaneID }
	TouchEndedMsg struct{ Lane automat.LaneID }

	// PointRecordedMsg is sent for every point written to a curve. An undo
	// or history system can combine these with the session's original curve
	// snapshot to revert a pass.
	PointRecordedMsg struct {
		Lane  automat.LaneID
		Point automat.Point
		Time  float64
		Value float64
	}
)

// On reports whether the message marks recording starting (true) or
// stopping (false).
func (m RecordingMsg) On() bool { return m.bool }
