package automat

type (
	// LaneID is a stable opaque handle for one automatable parameter
	// stream. The recording engine keys all of its state on LaneIDs and
	// never holds Lane pointers across calls, so a lane can disappear from
	// the document model mid-recording without the engine referencing stale
	// state.
	LaneID int

	// Lane is one automatable parameter's recording target. The lane owns
	// its Curve; the engine never owns it and mutates it only through the
	// lane. Value is the parameter's present value, normally written by the
	// UI control or playback before recording is consulted.
	Lane struct {
		ID    LaneID
		Name  string
		Armed bool
		Value float64
		Curve Curve
	}

	// LaneStore is how the engine reaches lanes, implemented by the
	// surrounding document model. A lookup may fail at any time (the lane
	// may have been deleted); the engine treats a failed lookup as a no-op.
	LaneStore interface {
		Lane(id LaneID) (*Lane, bool)
	}

	// Lanes is a minimal LaneStore for tests, demos and hosts that do not
	// have a document model of their own.
	Lanes map[LaneID]*Lane
)

// AddPoint adds an automation point to the lane's curve.
func (l *Lane) AddPoint(time, value float64, kind CurveKind) Point {
	return l.Curve.AddPoint(time, value, kind)
}

func (s Lanes) Lane(id LaneID) (*Lane, bool) {
	l, ok := s[id]
	return l, ok
}

// Add creates a lane with the next free ID and returns it.
func (s Lanes) Add(name string) *Lane {
	id := LaneID(0)
	for k := range s {
		if k >= id {
			id = k + 1
		}
	}
	l := &Lane{ID: id, Name: name}
	s[id] = l
	return l
}
