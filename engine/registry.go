package engine

import (
	"errors"
	"math"
	"sync"

	"github.com/automaudio/automat"
)

// ErrDisposed is the panic value when a Registry is used after Close. Using
// a torn-down registry is a programming error and fails fast instead of
// silently corrupting state.
var ErrDisposed = errors.New("recording registry used after Close")

// Registry owns every active recording session and is the engine's public
// surface. The transport drives AdvanceTime and SetPlaying, the gesture
// layer drives BeginTouch and EndTouch, and any parameter control feeds
// RecordValue; the registry resolves mode, touch state and thresholds into
// curve mutations and notifications.
//
// All state lives under one coarse mutex: the aggregate recording flag and
// the per-lane decisions must be mutually consistent whether observed from
// the transport goroutine or the interaction goroutine, and curve mutation
// is an in-memory operation cheap enough to perform while holding the lock.
// Notifications are queued inside the critical section and flushed to the
// broker only after the lock is released, uniformly for every message kind.
type Registry struct {
	broker *Broker
	lanes  automat.LaneStore

	mu        sync.Mutex
	disposed  bool
	config    automat.Config
	mode      automat.Mode // the global mode selector, distinct from any session's mode
	now       float64      // shared transport clock, one for all lanes
	playing   bool
	recording bool // aggregate is-anything-recording flag
	sessions  map[automat.LaneID]*Session
	lastValue map[automat.LaneID]float64 // last-known sampled value per lane
	queue     []any                      // notifications gathered while the lock is held
}

func NewRegistry(broker *Broker, lanes automat.LaneStore, config automat.Config) *Registry {
	config.Clamp()
	return &Registry{
		broker:    broker,
		lanes:     lanes,
		config:    config,
		sessions:  make(map[automat.LaneID]*Session),
		lastValue: make(map[automat.LaneID]float64),
	}
}

// lock acquires the registry mutex and returns the function releasing it,
// for use as "defer r.lock()()". The returned function also flushes the
// notifications queued during the critical section.
func (r *Registry) lock() func() {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		panic(ErrDisposed)
	}
	return r.unlockAndFlush
}

func (r *Registry) unlockAndFlush() {
	queue := r.queue
	r.queue = nil
	r.mu.Unlock()
	for _, msg := range queue {
		TrySend(r.broker.ToUI, msg)
	}
}

func (r *Registry) notify(msg any) {
	r.queue = append(r.queue, msg)
}

// StartRecording creates a session for the lane with the given mode. It is
// a no-op when mode is off, when the lane already has a session (the
// existing session is kept, not replaced) or when the lane does not exist.
func (r *Registry) StartRecording(lane automat.LaneID, mode automat.Mode) {
	defer r.lock()()
	r.startSession(lane, mode)
}

func (r *Registry) startSession(lane automat.LaneID, mode automat.Mode) {
	if mode == automat.ModeOff {
		return
	}
	if _, ok := r.sessions[lane]; ok {
		return
	}
	l, ok := r.lanes.Lane(lane)
	if !ok {
		return
	}
	r.sessions[lane] = newSession(mode, r.now, l.Curve.Copy())
	r.lastValue[lane] = l.Value
	if !r.recording {
		r.recording = true
		r.notify(RecordingMsg{true})
	}
}

// StopRecording destroys the lane's session, if any. When the last session
// goes away, the aggregate flag flips off and a RecordingMsg{false} is sent.
func (r *Registry) StopRecording(lane automat.LaneID) {
	defer r.lock()()
	r.stopSession(lane)
}

func (r *Registry) stopSession(lane automat.LaneID) {
	if _, ok := r.sessions[lane]; !ok {
		return
	}
	delete(r.sessions, lane)
	delete(r.lastValue, lane)
	if len(r.sessions) == 0 && r.recording {
		r.recording = false
		r.notify(RecordingMsg{false})
	}
}

// StopAll unconditionally destroys every session. If anything was
// recording, exactly one RecordingMsg{false} is sent.
func (r *Registry) StopAll() {
	defer r.lock()()
	r.stopAll()
}

func (r *Registry) stopAll() {
	clear(r.sessions)
	clear(r.lastValue)
	if r.recording {
		r.recording = false
		r.notify(RecordingMsg{false})
	}
}

// BeginTouch marks the start of a gesture on the lane. Observers are always
// notified, whether or not a session exists. For a Touch or Latch session
// the session becomes touching; a Latch touch additionally removes every
// existing curve point from the current time to the end of the timeline,
// claiming the remainder of the pass.
func (r *Registry) BeginTouch(lane automat.LaneID) {
	defer r.lock()()
	r.notify(TouchBeganMsg{lane})
	s, ok := r.sessions[lane]
	if !ok || (s.Mode != automat.ModeTouch && s.Mode != automat.ModeLatch) {
		return
	}
	s.IsTouching = true
	s.TouchStartTime = r.now
	if s.Mode == automat.ModeLatch {
		if l, ok := r.lanes.Lane(lane); ok {
			l.Curve.RemoveRange(r.now, math.Inf(1))
		}
	}
}

// EndTouch marks the end of a gesture on the lane. Observers are always
// notified. Only a Touch session stops being live; Latch keeps recording
// after release, which is the defining distinction between the two modes.
func (r *Registry) EndTouch(lane automat.LaneID) {
	defer r.lock()()
	r.notify(TouchEndedMsg{lane})
	s, ok := r.sessions[lane]
	if !ok || s.Mode != automat.ModeTouch {
		return
	}
	s.IsTouching = false
	s.TouchEndTime = r.now
}

// RecordValue feeds a newly sampled value for the lane. Nothing records
// while the global mode selector is off, regardless of individual session
// modes. With a live session, the value passes through the threshold filter
// and on success becomes a linear point at the current transport time. Write
// mode first removes any existing point within MinTimeBetweenPoints of the
// current time, so the new pass overwrites the old one.
func (r *Registry) RecordValue(lane automat.LaneID, value float64) {
	defer r.lock()()
	r.recordValue(lane, value)
}

func (r *Registry) recordValue(lane automat.LaneID, value float64) {
	if r.mode == automat.ModeOff {
		return
	}
	s, ok := r.sessions[lane]
	if !ok || !s.live() {
		return
	}
	if !ShouldRecordPoint(s.LastRecordedValue, value, s.LastRecordedTime, r.now,
		r.config.ValueThreshold, r.config.MinTimeBetweenPoints) {
		return
	}
	l, ok := r.lanes.Lane(lane)
	if !ok {
		return
	}
	if s.Mode == automat.ModeWrite {
		l.Curve.RemoveAt(r.now, r.config.MinTimeBetweenPoints)
	}
	p := l.AddPoint(r.now, value, automat.Linear)
	s.LastRecordedTime = r.now
	s.LastRecordedValue = value
	s.RecordedPointCount++
	r.lastValue[lane] = value
	r.notify(PointRecordedMsg{Lane: lane, Point: p, Time: r.now, Value: value})
}

// SetLaneValue moves the lane's parameter value and feeds it to the
// recording path in one critical section. Control surfaces and UI loops
// use this instead of writing Lane.Value directly, so their writes cannot
// race with the registry reading the value under its lock.
func (r *Registry) SetLaneValue(lane automat.LaneID, value float64) {
	defer r.lock()()
	if l, ok := r.lanes.Lane(lane); ok {
		l.Value = value
	}
	r.recordValue(lane, value)
}

// LaneValue returns the lane's present parameter value.
func (r *Registry) LaneValue(lane automat.LaneID) (float64, bool) {
	defer r.lock()()
	if l, ok := r.lanes.Lane(lane); ok {
		return l.Value, true
	}
	return 0, false
}

// AdvanceTime sets the shared transport clock consumed by every gating
// decision. One clock is shared by all lanes; there is no per-lane drift.
func (r *Registry) AdvanceTime(time float64) {
	defer r.lock()()
	r.now = time
}

// SetPlaying sets the transport state. Stopping the transport while
// recording stops every session at once: recording is meaningless without
// transport motion.
func (r *Registry) SetPlaying(playing bool) {
	defer r.lock()()
	if r.playing && !playing && r.recording {
		r.stopAll()
	}
	r.playing = playing
}

// Arm marks the lane eligible for recording. Arming while the transport is
// playing and the global mode is non-off begins recording instantly, using
// the global mode.
func (r *Registry) Arm(lane automat.LaneID) {
	defer r.lock()()
	l, ok := r.lanes.Lane(lane)
	if !ok {
		return
	}
	l.Armed = true
	if r.playing && r.mode != automat.ModeOff {
		r.startSession(lane, r.mode)
	}
}

// Disarm clears the lane's armed flag and stops its session, independent of
// playback state.
func (r *Registry) Disarm(lane automat.LaneID) {
	defer r.lock()()
	if l, ok := r.lanes.Lane(lane); ok {
		l.Armed = false
	}
	r.stopSession(lane)
}

// SetMode sets the global recording mode selector.
func (r *Registry) SetMode(mode automat.Mode) {
	defer r.lock()()
	if r.mode == mode {
		return
	}
	r.mode = mode
	r.notify(ModeChangedMsg{mode})
}

func (r *Registry) Mode() automat.Mode {
	defer r.lock()()
	return r.mode
}

// IsRecording reports whether any lane has an active session.
func (r *Registry) IsRecording() bool {
	defer r.lock()()
	return r.recording
}

// SessionCount returns the number of active sessions.
func (r *Registry) SessionCount() int {
	defer r.lock()()
	return len(r.sessions)
}

// SessionInfo returns a copy of the lane's session state, taken under the
// same exclusion as every mutation.
func (r *Registry) SessionInfo(lane automat.LaneID) (Session, bool) {
	defer r.lock()()
	s, ok := r.sessions[lane]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// LastValue returns the last-known sampled value for a lane with an active
// session.
func (r *Registry) LastValue(lane automat.LaneID) (float64, bool) {
	defer r.lock()()
	v, ok := r.lastValue[lane]
	return v, ok
}

func (r *Registry) Now() float64 {
	defer r.lock()()
	return r.now
}

func (r *Registry) Playing() bool {
	defer r.lock()()
	return r.playing
}

func (r *Registry) Config() automat.Config {
	defer r.lock()()
	return r.config
}

// SetConfig replaces the thresholds, clamping them to their valid ranges.
func (r *Registry) SetConfig(config automat.Config) {
	defer r.lock()()
	config.Clamp()
	r.config = config
}

func (r *Registry) SetValueThreshold(v float64) {
	defer r.lock()()
	r.config.ValueThreshold = v
	r.config.Clamp()
}

func (r *Registry) SetMinTimeBetweenPoints(v float64) {
	defer r.lock()()
	r.config.MinTimeBetweenPoints = v
	r.config.Clamp()
}

func (r *Registry) SetTouchReleaseDelay(v float64) {
	defer r.lock()()
	r.config.TouchReleaseDelay = v
	r.config.Clamp()
}

// Close tears the registry down, stopping all sessions. Closing twice is a
// no-op; any other use after Close panics with ErrDisposed.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return
	}
	r.stopAll()
	r.disposed = true
	r.unlockAndFlush()
}
