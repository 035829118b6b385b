package llm

import "context"

// Semaphore caps the number of in-flight model calls. A single instance is
// shared by every service the factory creates, so the cap holds across
// extraction, summarization, and reporting even when they overlap.
type Semaphore struct {
	slots chan struct{}
}

// NewSemaphore creates a semaphore with n slots. Values below 1 are clamped
// to 1 so a misconfigured cap degrades to serial calls instead of deadlock.
func NewSemaphore(n int) *Semaphore {
	if n < 1 {
		n = 1
	}
	return &Semaphore{slots: make(chan struct{}, n)}
}

// Acquire blocks until a slot is free or ctx is done.
func (s *Semaphore) Acquire(ctx context.Context) error {
	select {
	case s.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot taken by Acquire.
func (s *Semaphore) Release() {
	<-s.slots
}

// Cap returns the maximum number of concurrent holders.
func (s *Semaphore) Cap() int {
	return cap(s.slots)
}

// InFlight returns the number of currently held slots.
func (s *Semaphore) InFlight() int {
	return len(s.slots)
}
