package engine

import "time"

type (
	// Broker carries notifications out of the Registry to whoever is
	// observing it: UI indicators, an undo system, a mode selector. The
	// registry gathers messages while holding its lock and flushes them to
	// ToUI only after releasing it, so an observer may call back into the
	// registry without deadlocking. Sends are always non-blocking; if the
	// observer cannot keep up, messages are dropped rather than stalling
	// the transport or interaction threads.
	//
	// For closing observer goroutines, the broker has a CloseUI/FinishedUI
	// channel pair. CloseUI has a capacity of 1, so requesting closure
	// never blocks; if the channel is already full, closure has already
	// been requested and dropping the message is fine. FinishedUI is never
	// sent to, only closed, so "<-FinishedUI" waits until the observer has
	// cleaned up; combine with a timeout to avoid deadlocks:
	//    select {
	//      case <-broker.FinishedUI:
	//      case <-time.After(3 * time.Second):
	//    }
	Broker struct {
		ToUI chan any

		CloseUI    chan struct{}
		FinishedUI chan struct{}
	}
)

func NewBroker() *Broker {
	return &Broker{
		ToUI:       make(chan any, 1024),
		CloseUI:    make(chan struct{}, 1),
		FinishedUI: make(chan struct{}),
	}
}

// TrySend is a helper function to send a value to a channel if it is not
// full. It is guaranteed to be non-blocking. Returns true if the value was
// sent, false otherwise.
func TrySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
	default:
		return false
	}
	return true
}

// TimeoutReceive blocks until a value is received from the channel, or until
// t has passed. ok is false if the timeout occurred or the channel is
// closed.
func TimeoutReceive[T any](c <-chan T, t time.Duration) (v T, ok bool) {
	select {
	case v, ok = <-c:
		return v, ok
	case <-time.After(t):
		return v, false
	}
}
