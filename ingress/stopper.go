package ingress

import "sync"

// stopper tears down both halves of a relay exactly once.  It is a
// protected boolean with functionality to set, check, and wait.
type stopper struct {
	once sync.Once
	done chan struct{}
}

func newStopper() *stopper {
	return &stopper{
		done: make(chan struct{}),
	}
}

// set this stopper.  This can be called multiple times, and only the
// first call will have any effect.
func (s *stopper) stop() {
	s.once.Do(func() {
		close(s.done)
	})
}

// check this stopper (without blocking)
func (s *stopper) isStopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// wait for this stopper to stop
func (s *stopper) wait() {
	<-s.done
}
