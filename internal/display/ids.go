package display

import (
	"sync/atomic"
	"time"
)

// Sequence is a monotonic ID generator. It is seeded from the clock so IDs
// from a restarted process are unlikely to replace ones still on screen.
type Sequence struct {
	next atomic.Int32
}

func NewSequence() *Sequence {
	s := &Sequence{}
	s.next.Store(int32(time.Now().UnixMilli() & 0x3fffffff))
	return s
}

// NewSequenceFrom starts the sequence at start.
func NewSequenceFrom(start int32) *Sequence {
	s := &Sequence{}
	s.next.Store(start - 1)
	return s
}

func (s *Sequence) NextID() int32 {
	for {
		cur := s.next.Load()
		n := cur + 1
		if n < 0 {
			n = 1
		}
		if s.next.CompareAndSwap(cur, n) {
			return n
		}
	}
}

// Clock derives IDs from the wall clock truncated to 32 bits. Two
// notifications posted within the same millisecond get the same ID and the
// second replaces the first.
type Clock struct {
	Now func() time.Time
}

func (c Clock) NextID() int32 {
	now := c.Now
	if now == nil {
		now = time.Now
	}
	return int32(now().UnixMilli())
}
