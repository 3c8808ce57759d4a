package engine_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/automaudio/automat"
	"github.com/automaudio/automat/engine"
)

func setup(mode automat.Mode) (*engine.Registry, *engine.Broker, automat.Lanes) {
	lanes := automat.Lanes{}
	lanes.Add("cutoff")
	lanes.Add("resonance")
	lanes.Add("volume")
	broker := engine.NewBroker()
	r := engine.NewRegistry(broker, lanes, automat.DefaultConfig())
	r.SetMode(mode)
	drain(broker)
	return r, broker, lanes
}

func drain(b *engine.Broker) []any {
	var msgs []any
	for {
		select {
		case m := <-b.ToUI:
			msgs = append(msgs, m)
		default:
			return msgs
		}
	}
}

func countRecordingMsgs(msgs []any, on bool) int {
	n := 0
	for _, m := range msgs {
		if rm, ok := m.(engine.RecordingMsg); ok && rm.On() == on {
			n++
		}
	}
	return n
}

func points(t *testing.T, lanes automat.Lanes, id automat.LaneID) automat.Curve {
	t.Helper()
	l, ok := lanes.Lane(id)
	if !ok {
		t.Fatalf("lane %d missing", id)
	}
	return l.Curve
}

func TestWriteModeThreshold(t *testing.T) {
	r, _, lanes := setup(automat.ModeWrite)
	r.AdvanceTime(0.0)
	r.StartRecording(0, automat.ModeWrite)
	r.RecordValue(0, 0.5)
	if c := points(t, lanes, 0); len(c) != 1 || c[0].Time != 0 || c[0].Value != 0.5 {
		t.Fatalf("expected single point (0, 0.5), got %v", c)
	}
	r.AdvanceTime(0.01)
	r.RecordValue(0, 0.5005)
	if c := points(t, lanes, 0); len(c) != 1 {
		t.Fatalf("sample below threshold must not record, got %v", c)
	}
	r.AdvanceTime(0.05)
	r.RecordValue(0, 0.6)
	c := points(t, lanes, 0)
	if len(c) != 2 || c[1].Time != 0.05 || c[1].Value != 0.6 {
		t.Fatalf("expected second point (0.05, 0.6), got %v", c)
	}
	s, ok := r.SessionInfo(0)
	if !ok || s.RecordedPointCount != 2 {
		t.Fatalf("expected 2 recorded points, got %+v", s)
	}
}

func TestWriteModeIndependentOfTouch(t *testing.T) {
	r, _, lanes := setup(automat.ModeWrite)
	r.StartRecording(0, automat.ModeWrite)
	r.RecordValue(0, 0.3)
	if len(points(t, lanes, 0)) != 1 {
		t.Fatal("write mode must record without any touch")
	}
}

func TestWriteModeOverwritesNearbyPoint(t *testing.T) {
	r, _, lanes := setup(automat.ModeWrite)
	lanes[0].Curve.AddPoint(1.0, 0.2, automat.Linear)
	r.AdvanceTime(1.01)
	r.StartRecording(0, automat.ModeWrite)
	r.RecordValue(0, 0.7)
	c := points(t, lanes, 0)
	if len(c) != 1 || c[0].Time != 1.01 || c[0].Value != 0.7 {
		t.Fatalf("expected old point to be overwritten, got %v", c)
	}
}

func TestTouchModeGating(t *testing.T) {
	r, _, lanes := setup(automat.ModeTouch)
	r.StartRecording(1, automat.ModeTouch)
	r.RecordValue(1, 0.2)
	if len(points(t, lanes, 1)) != 0 {
		t.Fatal("touch mode must not record before the touch begins")
	}
	r.BeginTouch(1)
	r.RecordValue(1, 0.3)
	if len(points(t, lanes, 1)) != 1 {
		t.Fatal("touch mode must record while touching")
	}
	r.AdvanceTime(1.0)
	r.EndTouch(1)
	r.RecordValue(1, 0.4)
	if len(points(t, lanes, 1)) != 1 {
		t.Fatal("touch mode must not record after the touch ends")
	}
}

func TestLatchTakeAndSticky(t *testing.T) {
	r, _, lanes := setup(automat.ModeLatch)
	lanes[2].Curve.AddPoint(1.2, 0.5, automat.Linear)
	lanes[2].Curve.AddPoint(1.8, 0.7, automat.Linear)
	r.AdvanceTime(1.0)
	r.StartRecording(2, automat.ModeLatch)
	r.BeginTouch(2)
	if len(points(t, lanes, 2)) != 0 {
		t.Fatal("latch touch must remove every point from the touch time onwards")
	}
	r.AdvanceTime(1.2)
	r.EndTouch(2)
	r.AdvanceTime(1.5)
	r.RecordValue(2, 0.9)
	c := points(t, lanes, 2)
	if len(c) != 1 || c[0].Time != 1.5 || c[0].Value != 0.9 {
		t.Fatalf("latch must keep recording after release, got %v", c)
	}
	s, _ := r.SessionInfo(2)
	if len(s.OriginalCurve) != 2 {
		t.Fatalf("snapshot must hold the curve as it was at session start, got %v", s.OriginalCurve)
	}
}

func TestLatchNotLiveBeforeFirstTouch(t *testing.T) {
	r, _, lanes := setup(automat.ModeLatch)
	r.AdvanceTime(1.0)
	r.StartRecording(0, automat.ModeLatch)
	r.RecordValue(0, 0.4)
	if len(points(t, lanes, 0)) != 0 {
		t.Fatal("latch must not record before it has been touched once")
	}
}

func TestGlobalStopClearsAllSessions(t *testing.T) {
	r, broker, _ := setup(automat.ModeWrite)
	for lane := automat.LaneID(0); lane < 3; lane++ {
		r.StartRecording(lane, automat.ModeWrite)
	}
	if r.SessionCount() != 3 || !r.IsRecording() {
		t.Fatalf("expected 3 active sessions, got %d", r.SessionCount())
	}
	drain(broker)
	r.StopAll()
	if r.SessionCount() != 0 || r.IsRecording() {
		t.Fatal("global stop must clear every session")
	}
	msgs := drain(broker)
	if n := countRecordingMsgs(msgs, false); n != 1 {
		t.Fatalf("global stop must emit exactly one stop notification, got %d", n)
	}
}

func TestStopPlaybackStopsAllSessions(t *testing.T) {
	r, broker, _ := setup(automat.ModeTouch)
	r.SetPlaying(true)
	for lane := automat.LaneID(0); lane < 3; lane++ {
		r.StartRecording(lane, automat.ModeTouch)
	}
	drain(broker)
	r.SetPlaying(false)
	if r.SessionCount() != 0 {
		t.Fatal("stopping the transport must stop every session")
	}
	if n := countRecordingMsgs(drain(broker), false); n != 1 {
		t.Fatalf("expected exactly one stop notification, got %d", n)
	}
}

func TestStartRecordingOffModeIsNoop(t *testing.T) {
	r, _, _ := setup(automat.ModeOff)
	r.StartRecording(0, automat.ModeOff)
	if r.SessionCount() != 0 {
		t.Fatal("off mode must never create a session")
	}
}

func TestRecordValueWithoutSession(t *testing.T) {
	r, broker, lanes := setup(automat.ModeWrite)
	r.RecordValue(0, 0.5)
	if len(points(t, lanes, 0)) != 0 {
		t.Fatal("record value without a session must have no effect")
	}
	if len(drain(broker)) != 0 {
		t.Fatal("record value without a session must not notify")
	}
}

func TestGlobalModeGatesEveryLane(t *testing.T) {
	r, _, lanes := setup(automat.ModeWrite)
	r.StartRecording(0, automat.ModeWrite)
	r.SetMode(automat.ModeOff)
	r.AdvanceTime(0.5)
	r.RecordValue(0, 0.9)
	if len(points(t, lanes, 0)) != 0 {
		t.Fatal("no lane records while the global mode is off")
	}
}

func TestStartRecordingKeepsExistingSession(t *testing.T) {
	r, _, _ := setup(automat.ModeWrite)
	r.StartRecording(0, automat.ModeWrite)
	r.RecordValue(0, 0.5)
	r.StartRecording(0, automat.ModeTouch)
	s, ok := r.SessionInfo(0)
	if !ok || s.Mode != automat.ModeWrite || s.RecordedPointCount != 1 {
		t.Fatalf("an existing session must not be reset or replaced, got %+v", s)
	}
}

func TestArmWhilePlayingStartsSession(t *testing.T) {
	r, _, lanes := setup(automat.ModeLatch)
	r.SetPlaying(true)
	r.Arm(0)
	s, ok := r.SessionInfo(0)
	if !ok || s.Mode != automat.ModeLatch {
		t.Fatalf("arming during playback must start a session with the global mode, got %+v", s)
	}
	if !lanes[0].Armed {
		t.Fatal("arming must set the armed flag")
	}
}

func TestArmWhileStoppedOnlyArms(t *testing.T) {
	r, _, lanes := setup(automat.ModeLatch)
	r.Arm(0)
	if r.SessionCount() != 0 {
		t.Fatal("arming with the transport stopped must not start a session")
	}
	if !lanes[0].Armed {
		t.Fatal("arming must set the armed flag")
	}
}

func TestDisarmStopsSession(t *testing.T) {
	r, _, lanes := setup(automat.ModeWrite)
	r.SetPlaying(true)
	r.Arm(1)
	r.Disarm(1)
	if r.SessionCount() != 0 || lanes[1].Armed {
		t.Fatal("disarming must clear the armed flag and stop the session")
	}
}

func TestTouchNotifiesWithoutSession(t *testing.T) {
	r, broker, _ := setup(automat.ModeTouch)
	r.BeginTouch(2)
	r.EndTouch(2)
	msgs := drain(broker)
	if len(msgs) != 2 {
		t.Fatalf("expected touch began and ended notifications, got %v", msgs)
	}
	if _, ok := msgs[0].(engine.TouchBeganMsg); !ok {
		t.Fatalf("expected TouchBeganMsg, got %T", msgs[0])
	}
	if _, ok := msgs[1].(engine.TouchEndedMsg); !ok {
		t.Fatalf("expected TouchEndedMsg, got %T", msgs[1])
	}
}

func TestMissingLaneTolerated(t *testing.T) {
	r, _, _ := setup(automat.ModeWrite)
	r.StartRecording(99, automat.ModeWrite)
	if r.SessionCount() != 0 {
		t.Fatal("a lane the store does not know must not get a session")
	}
	r.Arm(99)
	r.Disarm(99)
	r.RecordValue(99, 0.5)
	r.SetLaneValue(99, 0.5)
	if _, ok := r.LaneValue(99); ok {
		t.Fatal("a lane the store does not know has no value")
	}
}

func TestSnapshotTakenOnceAtStart(t *testing.T) {
	r, _, lanes := setup(automat.ModeWrite)
	lanes[0].Curve.AddPoint(0.5, 0.1, automat.Linear)
	r.StartRecording(0, automat.ModeWrite)
	r.AdvanceTime(1.0)
	r.RecordValue(0, 0.9)
	s, _ := r.SessionInfo(0)
	if len(s.OriginalCurve) != 1 || s.OriginalCurve[0].Time != 0.5 {
		t.Fatalf("snapshot must not change after session creation, got %v", s.OriginalCurve)
	}
}

func TestLastValueCache(t *testing.T) {
	r, _, lanes := setup(automat.ModeWrite)
	lanes[1].Value = 0.25
	r.StartRecording(1, automat.ModeWrite)
	if v, ok := r.LastValue(1); !ok || v != 0.25 {
		t.Fatalf("starting must cache the lane's present value, got %v %v", v, ok)
	}
	r.AdvanceTime(0.1)
	r.RecordValue(1, 0.75)
	if v, _ := r.LastValue(1); v != 0.75 {
		t.Fatalf("recording must advance the cached value, got %v", v)
	}
	r.StopRecording(1)
	if _, ok := r.LastValue(1); ok {
		t.Fatal("stopping must drop the cached value")
	}
}

func TestConfigClamping(t *testing.T) {
	r, _, _ := setup(automat.ModeOff)
	r.SetValueThreshold(-1)
	r.SetMinTimeBetweenPoints(0)
	r.SetTouchReleaseDelay(-0.5)
	c := r.Config()
	if c.ValueThreshold != 0 || c.MinTimeBetweenPoints != 0.001 || c.TouchReleaseDelay != 0 {
		t.Fatalf("invalid values must be silently clamped, got %+v", c)
	}
}

func TestUseAfterClose(t *testing.T) {
	r, broker, _ := setup(automat.ModeWrite)
	r.StartRecording(0, automat.ModeWrite)
	drain(broker)
	r.Close()
	if n := countRecordingMsgs(drain(broker), false); n != 1 {
		t.Fatalf("closing while recording must emit one stop notification, got %d", n)
	}
	r.Close() // closing twice is fine
	defer func() {
		if err, ok := recover().(error); !ok || !errors.Is(err, engine.ErrDisposed) {
			t.Fatalf("expected ErrDisposed, got %v", err)
		}
	}()
	r.IsRecording()
}

func TestSetLaneValueMovesParameter(t *testing.T) {
	r, _, lanes := setup(automat.ModeWrite)
	r.SetLaneValue(0, 0.6)
	if v, ok := r.LaneValue(0); !ok || v != 0.6 {
		t.Fatalf("expected lane value 0.6, got %v %v", v, ok)
	}
	if c := points(t, lanes, 0); len(c) != 0 {
		t.Fatalf("moving a fader without a session must not record, got %v", c)
	}
	r.StartRecording(0, automat.ModeWrite)
	r.SetLaneValue(0, 0.7)
	c := points(t, lanes, 0)
	if len(c) != 1 || c[0].Value != 0.7 {
		t.Fatalf("moving a fader with a live session must record, got %v", c)
	}
	if lanes[0].Value != 0.7 {
		t.Fatalf("expected the lane to hold the moved value, got %v", lanes[0].Value)
	}
}

// One mutex serializes every operation, so arbitrary interleavings of
// control surface moves, transport ticks, session changes, gestures and
// queries must neither race nor corrupt the session table. Run with -race.
func TestConcurrentOperations(t *testing.T) {
	r, _, _ := setup(automat.ModeWrite)
	r.SetPlaying(true)
	var wg sync.WaitGroup
	start := make(chan struct{})
	spin := func(f func(i int)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for i := 0; i < 500; i++ {
				f(i)
			}
		}()
	}
	spin(func(i int) { r.AdvanceTime(float64(i) * 0.01) })
	spin(func(i int) { r.SetLaneValue(0, float64(i%128)/127) })
	spin(func(i int) {
		r.StartRecording(0, automat.ModeWrite)
		if i%10 == 9 {
			r.StopRecording(0)
		}
	})
	spin(func(i int) {
		r.BeginTouch(2)
		r.EndTouch(2)
	})
	spin(func(i int) {
		r.IsRecording()
		r.LaneValue(0)
		r.SessionInfo(0)
		r.SessionCount()
	})
	close(start)
	wg.Wait()
	if r.IsRecording() != (r.SessionCount() > 0) {
		t.Fatalf("recording flag disagrees with %d sessions", r.SessionCount())
	}
}
