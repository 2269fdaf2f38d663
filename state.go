package websocket

import (
	"sync"
	"sync/atomic"
)

// connState is one of the five states of spec.md section 4.5.
type connState int32

const (
	stateConnecting connState = iota
	stateOpen
	stateClosingSentLocal
	stateClosingReceivedRemote
	stateClosed
)

func (s connState) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateOpen:
		return "open"
	case stateClosingSentLocal:
		return "closing-sent-local"
	case stateClosingReceivedRemote:
		return "closing-received-remote"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// sharedState is the single mutable object the reader half and the
// writer half both consult, per spec.md section 4.6: "Both halves share
// an atomically-updated state. Any protocol or IO error observed by
// either half poisons the shared state."
//
// The hot "is this still open" check on every transport call reads
// `state` with sync/atomic and needs no lock; the close handshake itself
// (which must serialize "did we already send our close frame" against
// "did the peer's close frame already arrive") is guarded by mu.
type sharedState struct {
	state     int32        // connState, accessed atomically
	mu        sync.Mutex   // guards the close-handshake transitions below
	poisonErr error        // first error observed by either half, sticky
	opts      *DialOptions // for logStateTransition; nil is valid (no logging)
}

func newSharedState(opts *DialOptions) *sharedState {
	return &sharedState{state: int32(stateConnecting), opts: opts}
}

func (s *sharedState) get() connState {
	return connState(atomic.LoadInt32(&s.state))
}

// set installs v and logs the transition, per spec.md section 4.5's state
// table. Swapping (rather than load-then-store) keeps the "did this
// actually change" check race-free against a concurrent set from the
// other half.
func (s *sharedState) set(v connState) {
	from := connState(atomic.SwapInt32(&s.state, int32(v)))
	if from != v && s.opts != nil {
		logStateTransition(s.opts, from, v)
	}
}

// poison records err as the sticky error for this connection, if one is
// not already recorded, and moves the state to Closed. It returns the
// error that callers should now observe (the first one recorded, even if
// a different error raced in afterwards).
func (s *sharedState) poison(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.poisonErr == nil {
		s.poisonErr = err
	}
	s.set(stateClosed)
	return s.poisonErr
}

// poisonedErr returns the sticky error, if the connection has been
// poisoned, and whether one is set.
func (s *sharedState) poisonedErr() (error, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.poisonErr, s.poisonErr != nil
}

// beginLocalClose transitions Open -> ClosingSentLocal, or
// ClosingReceivedRemote -> Closed (the local close echo completing the
// handshake). It reports whether the caller should actually write a
// close frame (both of these transitions do; a repeated local close
// does not) and whether the transport should now be torn down.
func (s *sharedState) beginLocalClose() (shouldSend, shouldTearDown bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.get() {
	case stateOpen:
		s.set(stateClosingSentLocal)
		return true, false, nil
	case stateClosingReceivedRemote:
		s.set(stateClosed)
		return true, true, nil
	case stateClosingSentLocal:
		return false, false, &StateError{Op: "close", State: stateClosingSentLocal}
	default:
		return false, false, ErrConnClosed
	}
}

// receiveRemoteClose transitions on receipt of a peer close frame: Open
// -> ClosingReceivedRemote (echo required), or ClosingSentLocal -> Closed
// (handshake complete, tear down transport).
func (s *sharedState) receiveRemoteClose() (shouldEcho, shouldTearDown bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.get() {
	case stateOpen:
		s.set(stateClosingReceivedRemote)
		return true, false
	case stateClosingSentLocal:
		s.set(stateClosed)
		return false, true
	default:
		// Already closing/closed: drop it, per spec.md section 4.5
		// "further inbound data frames are silently dropped until Close
		// arrives or timeout" (a second close frame in an already-
		// resolving handshake is harmless to ignore).
		return false, false
	}
}

// completeEcho transitions ClosingReceivedRemote -> Closed once the
// automatic close echo (spec.md section 4.5, "Open, Recv Close(peer) ->
// ClosingReceivedRemote, Echo Close") has been written. A no-op if the
// state has already moved on (e.g. a racing local close).
func (s *sharedState) completeEcho() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.get() == stateClosingReceivedRemote {
		s.set(stateClosed)
	}
}

// canSendData reports whether a data frame may be written right now,
// per spec.md section 4.5: "after entering ClosingSentLocal, no further
// data frames may be sent."
func (s *sharedState) canSendData() bool {
	return s.get() == stateOpen
}

// canReceiveData reports whether an inbound data frame should be handed
// to the assembler, or silently dropped because the connection is
// already closing.
func (s *sharedState) canReceiveData() bool {
	return s.get() == stateOpen
}
