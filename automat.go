// Package automat implements the automation-recording core of a music
// production editor: live parameter changes (knob and fader moves) made
// during playback are captured into time-indexed curves, with the Touch,
// Latch and Write recording semantics found in professional audio
// workstations.
//
// The root package holds the domain types: curves, lanes and the recording
// configuration. Package engine holds the recording registry, which is the
// actual state machine; package gomidi feeds the registry from MIDI control
// surfaces; and cmd/automat-demo is a small terminal front end driving all
// of it.
package automat

type (
	// Mode selects the recording semantics of a session. ModeOff never
	// produces a session; the three remaining modes differ only in when a
	// session is considered live:
	//
	//   Touch records only while a gesture is actively held.
	//   Latch records from the first touch to the end of the session;
	//         releasing the gesture does not pause it.
	//   Write records unconditionally, overwriting nearby existing points.
	Mode int

	// CurveKind tells how the value moves from a point to the next point in
	// a curve.
	CurveKind int

	// Point is a single automation point: at Time the parameter has Value,
	// and the value moves towards the next point as told by Kind.
	Point struct {
		Time  float64
		Value float64
		Kind  CurveKind `yaml:",omitempty"`
	}
)

const (
	ModeOff Mode = iota
	ModeTouch
	ModeLatch
	ModeWrite
)

const (
	// Linear ramps the value linearly to the next point.
	Linear CurveKind = iota

	// Step holds the value until the next point.
	Step
)

func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeTouch:
		return "touch"
	case ModeLatch:
		return "latch"
	case ModeWrite:
		return "write"
	}
	return "unknown"
}
