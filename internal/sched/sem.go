package sched

// semaphore is a lightweight counting semaphore over a buffered channel. It
// backs the wait strategy: producers post once per node made runnable, and
// polling threads park on wait until woken.
//
// post never blocks: once the channel is saturated further posts are dropped.
// That is safe as long as the capacity is at least the maximum number of
// simultaneous waiters — a waiter can only block while the token count is
// below capacity, so a dropped post is always covered by a token already
// pending.
type semaphore struct {
	c chan struct{}
}

func newSemaphore(capacity int) *semaphore {
	return &semaphore{c: make(chan struct{}, capacity)}
}

// post makes one token available, waking a single waiter if any.
func (s *semaphore) post() {
	select {
	case s.c <- struct{}{}:
	default:
	}
}

// wait blocks until a token is available and consumes it.
func (s *semaphore) wait() { <-s.c }

// tryWait consumes a token if one is immediately available.
func (s *semaphore) tryWait() bool {
	select {
	case <-s.c:
		return true
	default:
		return false
	}
}
