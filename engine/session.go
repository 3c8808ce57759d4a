package engine

import (
	"math"

	"github.com/automaudio/automat"
)

// Session is the per-lane ephemeral recording state. A lane has at most one
// session at any instant; the session exists exactly as long as the lane is
// in the registry's active set. Sessions are created by Registry.
// StartRecording and destroyed by StopRecording, StopAll or the transport
// stopping.
type Session struct {
	Mode automat.Mode

	// StartTime is the transport time at session creation.
	StartTime float64

	// LastRecordedTime and LastRecordedValue feed the threshold filter.
	// They are -Inf and NaN until the first point is recorded, so the first
	// sample always passes the filter.
	LastRecordedTime  float64
	LastRecordedValue float64

	IsTouching     bool
	TouchStartTime float64
	TouchEndTime   float64

	// RecordedPointCount only ever grows while the session is active.
	RecordedPointCount int

	// OriginalCurve is a snapshot of the lane's curve, taken exactly once
	// at session creation before any mutation. Undo systems use it to
	// revert the whole pass.
	OriginalCurve automat.Curve
}

func newSession(mode automat.Mode, now float64, snapshot automat.Curve) *Session {
	return &Session{
		Mode:              mode,
		StartTime:         now,
		LastRecordedTime:  math.Inf(-1),
		LastRecordedValue: math.NaN(),
		// Write needs no gesture: it is live from the first sample on
		IsTouching:    mode == automat.ModeWrite,
		OriginalCurve: snapshot,
	}
}

// live reports whether the session should currently turn sampled values into
// curve points. Touch is live only while the gesture is held. Latch is
// sticky: once TouchStartTime is set it stays live for the remainder of the
// session, releasing the gesture does not pause it. Write is always live.
func (s *Session) live() bool {
	switch s.Mode {
	case automat.ModeTouch:
		return s.IsTouching
	case automat.ModeLatch:
		return s.IsTouching || s.TouchStartTime > 0
	case automat.ModeWrite:
		return true
	}
	return false
}
