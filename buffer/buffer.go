// Package buffer implements the sample buffer: a fixed-capacity ring of
// raw ADC sample pairs shared between the sampler (sole writer) and any
// number of readers (power compute, potentially others). Writers and
// readers contend for exclusive access to the ring; reads never advance
// the read cursor, so multiple independent consumers can observe the
// same window (§4.1).
package buffer

import (
	"time"

	"ampshield.dev/amperr"
)

// RawSample is one immutable (current_code, voltage_code) pair of
// 12-bit unsigned ADC codes, in [0, 4095].
type RawSample struct {
	CurrentCode uint16
	VoltageCode uint16
}

// SampleBuffer is a fixed-capacity ring of RawSample. Capacity is
// 2*windowSize, per the reference N_BUF = 2*WINDOW_SIZE. Exclusive
// access is mediated by a 1-buffered channel used as a timed mutex —
// Go's sync.Mutex has no timed-acquire, so the core's 10ms/100ms
// acquisition budgets are implemented this way throughout the repository.
type SampleBuffer struct {
	sem   chan struct{}
	ring  []RawSample
	write int // next write index
	read  int // oldest retained index; never advanced by readers
	count int
}

// New creates a SampleBuffer with the given capacity. Capacity must be
// even and positive; callers pass config.Config.BufferCapacity().
func New(capacity int) *SampleBuffer {
	if capacity <= 0 {
		panic("buffer: capacity must be positive")
	}
	b := &SampleBuffer{
		sem:  make(chan struct{}, 1),
		ring: make([]RawSample, capacity),
	}
	b.sem <- struct{}{}
	return b
}

func (b *SampleBuffer) acquire(timeout time.Duration) bool {
	select {
	case <-b.sem:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (b *SampleBuffer) release() {
	b.sem <- struct{}{}
}

// Write enqueues one sample pair. If the ring is full, the oldest
// sample is overwritten and the read cursor advances by one so that
// count never exceeds capacity. Returns amperr.ErrTimeout if exclusive
// access cannot be acquired within the given timeout (reference: 10ms).
func (b *SampleBuffer) Write(s RawSample, timeout time.Duration) error {
	if !b.acquire(timeout) {
		return amperr.ErrTimeout
	}
	defer b.release()

	n := len(b.ring)
	b.ring[b.write] = s
	b.write = (b.write + 1) % n
	if b.count < n {
		b.count++
	} else {
		b.read = (b.read + 1) % n
	}
	return nil
}

// ReadSnapshot copies up to len(dst) of the oldest retained samples,
// starting at the read cursor, into dst, without advancing the read
// cursor — so repeated calls (and calls from distinct consumers) can
// observe the same window. Returns the number of samples copied.
// Returns 0, amperr.ErrTimeout if shared access cannot be acquired
// within the given timeout (reference: 100ms).
func (b *SampleBuffer) ReadSnapshot(dst []RawSample, timeout time.Duration) (int, error) {
	if !b.acquire(timeout) {
		return 0, amperr.ErrTimeout
	}
	defer b.release()

	n := len(b.ring)
	toRead := len(dst)
	if b.count < toRead {
		toRead = b.count
	}
	idx := b.read
	for i := 0; i < toRead; i++ {
		dst[i] = b.ring[idx]
		idx = (idx + 1) % n
	}
	return toRead, nil
}

// Count returns the number of retained samples. Exposed for tests and
// diagnostics; not used on the hot path.
func (b *SampleBuffer) Count(timeout time.Duration) (int, error) {
	if !b.acquire(timeout) {
		return 0, amperr.ErrTimeout
	}
	defer b.release()
	return b.count, nil
}

// Capacity returns the ring's fixed capacity (N_BUF).
func (b *SampleBuffer) Capacity() int {
	return len(b.ring)
}
