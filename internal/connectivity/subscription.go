package connectivity

const eventBufferSize = 16

// Subscription delivers snapshot changes to one subscriber.
type Subscription struct {
	Changes <-chan Change
	Done    <-chan struct{}

	// Internal write channels
	changeCh chan Change
	doneCh   chan struct{}
}

// newSubscription creates a new subscription with a buffered channel.
func newSubscription() *Subscription {
	s := &Subscription{
		changeCh: make(chan Change, eventBufferSize),
		doneCh:   make(chan struct{}),
	}
	s.Changes = s.changeCh
	s.Done = s.doneCh
	return s
}

// close signals the subscriber to stop by closing doneCh.
func (s *Subscription) close() {
	close(s.doneCh)
}

// send delivers a change event (non-blocking).
func (s *Subscription) send(e Change) {
	select {
	case s.changeCh <- e:
	default:
		// Drop if buffer full
	}
}
