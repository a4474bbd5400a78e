package buffer

import (
	"errors"
	"testing"
	"time"

	"ampshield.dev/amperr"
)

func sample(i int) RawSample {
	return RawSample{CurrentCode: uint16(i), VoltageCode: uint16(i * 2)}
}

func TestWriteIncrementsCount(t *testing.T) {
	b := New(8)
	for i := 0; i < 3; i++ {
		if err := b.Write(sample(i), 10*time.Millisecond); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	n, err := b.Count(10 * time.Millisecond)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 3 {
		t.Fatalf("count = %d, want 3", n)
	}
}

func TestReadSnapshotReturnsOldestFirst(t *testing.T) {
	b := New(8)
	for i := 0; i < 5; i++ {
		b.Write(sample(i), 10*time.Millisecond)
	}
	dst := make([]RawSample, 3)
	n, err := b.ReadSnapshot(dst, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if n != 3 {
		t.Fatalf("n = %d, want 3", n)
	}
	for i := 0; i < 3; i++ {
		if dst[i] != sample(i) {
			t.Errorf("dst[%d] = %+v, want %+v", i, dst[i], sample(i))
		}
	}
}

func TestReadDoesNotAdvanceCursor(t *testing.T) {
	b := New(8)
	for i := 0; i < 4; i++ {
		b.Write(sample(i), 10*time.Millisecond)
	}
	before, _ := b.Count(10 * time.Millisecond)

	dst := make([]RawSample, 4)
	b.ReadSnapshot(dst, 100*time.Millisecond)
	b.ReadSnapshot(dst, 100*time.Millisecond)

	after, _ := b.Count(10 * time.Millisecond)
	if before != after {
		t.Fatalf("count changed across reads: before=%d after=%d", before, after)
	}

	// A second snapshot must see the exact same samples.
	dst2 := make([]RawSample, 4)
	b.ReadSnapshot(dst2, 100*time.Millisecond)
	for i := range dst {
		if dst[i] != dst2[i] {
			t.Errorf("snapshot changed at %d: %+v != %+v", i, dst[i], dst2[i])
		}
	}
}

func TestWriteOverwritesOldestWhenFull(t *testing.T) {
	b := New(4)
	for i := 0; i < 4; i++ {
		b.Write(sample(i), 10*time.Millisecond)
	}
	// Buffer full at capacity 4, holding samples 0..3. One more write
	// must overwrite sample 0 and advance the read cursor past it.
	b.Write(sample(4), 10*time.Millisecond)

	n, _ := b.Count(10 * time.Millisecond)
	if n != 4 {
		t.Fatalf("count = %d, want 4 (capacity)", n)
	}

	dst := make([]RawSample, 4)
	b.ReadSnapshot(dst, 100*time.Millisecond)
	want := []RawSample{sample(1), sample(2), sample(3), sample(4)}
	for i := range want {
		if dst[i] != want[i] {
			t.Errorf("dst[%d] = %+v, want %+v", i, dst[i], want[i])
		}
	}
}

func TestReadSnapshotPartialWhenFewerThanRequested(t *testing.T) {
	b := New(8)
	b.Write(sample(0), 10*time.Millisecond)
	b.Write(sample(1), 10*time.Millisecond)

	dst := make([]RawSample, 5)
	n, err := b.ReadSnapshot(dst, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if n != 2 {
		t.Fatalf("n = %d, want 2", n)
	}
}

func TestWriteTimeoutWhenLocked(t *testing.T) {
	b := New(4)
	// Hold the semaphore to simulate contention.
	<-b.sem
	defer func() { b.sem <- struct{}{} }()

	err := b.Write(sample(0), 5*time.Millisecond)
	if !errors.Is(err, amperr.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestReadSnapshotTimeoutWhenLocked(t *testing.T) {
	b := New(4)
	<-b.sem
	defer func() { b.sem <- struct{}{} }()

	dst := make([]RawSample, 1)
	_, err := b.ReadSnapshot(dst, 5*time.Millisecond)
	if !errors.Is(err, amperr.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestCapacityMatchesConstructor(t *testing.T) {
	b := New(16)
	if b.Capacity() != 16 {
		t.Fatalf("Capacity() = %d, want 16", b.Capacity())
	}
}
