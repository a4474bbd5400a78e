package sampler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"ampshield.dev/buffer"
	"ampshield.dev/internal/obslog"
)

type fakeReader struct {
	n      atomic.Int32
	failAt int32
}

func (f *fakeReader) ReadRaw(ctx context.Context) (uint16, uint16, error) {
	i := f.n.Add(1)
	if f.failAt != 0 && i == f.failAt {
		return 0, 0, errors.New("simulated hardware failure")
	}
	return uint16(i), uint16(i * 2), nil
}

func TestSamplerWritesSamples(t *testing.T) {
	buf := buffer.New(16)
	reader := &fakeReader{}
	s := New(reader, buf, 2*time.Millisecond, 10*time.Millisecond, obslog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	n, err := buf.Count(10 * time.Millisecond)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n == 0 {
		t.Fatal("expected at least one sample written")
	}
}

func TestSamplerSkipsTickOnHardwareFailure(t *testing.T) {
	buf := buffer.New(16)
	reader := &fakeReader{failAt: 1}
	s := New(reader, buf, 2*time.Millisecond, 10*time.Millisecond, obslog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	n, _ := buf.Count(10 * time.Millisecond)
	// The failed first tick must be skipped, not fatal; later ticks
	// still land in the buffer.
	if n == 0 {
		t.Fatal("expected later ticks to still be written after one failure")
	}
}
