package drain

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/compositor"
	"github.com/gogpu/compositor/internal/queue"
)

func frameEvent(seq uint64) compositor.FrameEvent {
	return compositor.Data(compositor.Frame{Output: "raw_output", Seq: seq, Width: 1, Height: 1, Pixels: make([]byte, 4)})
}

// stream returns a queue holding frames 1..n.
func stream(n int) *queue.Unbounded[compositor.FrameEvent] {
	q := queue.New[compositor.FrameEvent]()
	for i := 1; i <= n; i++ {
		q.Push(frameEvent(uint64(i)))
	}
	return q
}

func TestTryLatestEmpty(t *testing.T) {
	d := New(stream(0))
	if _, ok := d.TryLatest(); ok {
		t.Error("TryLatest() on empty stream returned a frame")
	}
	if d.Closed() {
		t.Error("Closed() = true for an open stream")
	}
}

func TestTryLatestReturnsNewest(t *testing.T) {
	tests := []struct {
		name     string
		buffered int
	}{
		{"one", 1},
		{"two", 2},
		{"many", 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := stream(tt.buffered)
			d := New(q)
			f, ok := d.TryLatest()
			if !ok {
				t.Fatal("TryLatest() returned no frame")
			}
			if f.Seq != uint64(tt.buffered) {
				t.Errorf("Seq = %d, want %d", f.Seq, tt.buffered)
			}
			if q.Len() != 0 {
				t.Errorf("stream still holds %d events", q.Len())
			}
			st := d.Stats()
			if st.Delivered != 1 || st.Dropped != uint64(tt.buffered-1) {
				t.Errorf("Stats() = %+v, want Delivered=1 Dropped=%d", st, tt.buffered-1)
			}
			if _, ok := d.TryLatest(); ok {
				t.Error("second TryLatest() returned a frame")
			}
		})
	}
}

func TestTryLatestStopsAtEndOfStream(t *testing.T) {
	q := stream(1)
	q.Push(compositor.EndOfStream())
	q.Push(frameEvent(2))
	d := New(q)

	f, ok := d.TryLatest()
	if !ok || f.Seq != 1 {
		t.Fatalf("TryLatest() = %d, %v; want 1, true", f.Seq, ok)
	}
	if !d.Closed() {
		t.Error("Closed() = false after EndOfStream")
	}
	if _, ok := d.TryLatest(); ok {
		t.Error("TryLatest() after EndOfStream returned a frame")
	}
}

func TestAwaitLatestBuffered(t *testing.T) {
	q := stream(5)
	d := New(q)
	f, err := d.AwaitLatest(context.Background())
	if err != nil {
		t.Fatalf("AwaitLatest() error = %v", err)
	}
	if f.Seq != 5 {
		t.Errorf("Seq = %d, want 5", f.Seq)
	}
	if q.Len() != 0 {
		t.Errorf("stream still holds %d events", q.Len())
	}
	if _, ok := d.TryLatest(); ok {
		t.Error("TryLatest() after AwaitLatest returned a stale frame")
	}
}

func TestAwaitLatestBlocksUntilFrame(t *testing.T) {
	q := stream(0)
	d := New(q)

	done := make(chan compositor.Frame, 1)
	go func() {
		f, err := d.AwaitLatest(context.Background())
		if err != nil {
			t.Errorf("AwaitLatest() error = %v", err)
		}
		done <- f
	}()

	select {
	case <-done:
		t.Fatal("AwaitLatest() returned before any frame was sent")
	case <-time.After(20 * time.Millisecond):
	}

	q.Push(frameEvent(7))
	select {
	case f := <-done:
		if f.Seq != 7 {
			t.Errorf("Seq = %d, want 7", f.Seq)
		}
	case <-time.After(time.Second):
		t.Fatal("AwaitLatest() did not return after a frame was sent")
	}
}

func TestAwaitLatestClosed(t *testing.T) {
	tests := []struct {
		name string
		ev   func() compositor.Events
	}{
		{"end of stream", func() compositor.Events {
			q := stream(0)
			q.Push(compositor.EndOfStream())
			return q
		}},
		{"closed stream", func() compositor.Events {
			q := stream(0)
			q.Close()
			return q
		}},
		{"nil stream", func() compositor.Events { return nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(tt.ev())
			_, err := d.AwaitLatest(context.Background())
			if !errors.Is(err, compositor.ErrChannelClosed) {
				t.Errorf("AwaitLatest() error = %v, want ErrChannelClosed", err)
			}
			if !d.Closed() {
				t.Error("Closed() = false")
			}
		})
	}
}

func TestAwaitLatestContextCancel(t *testing.T) {
	d := New(stream(0))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := d.AwaitLatest(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("AwaitLatest() error = %v, want DeadlineExceeded", err)
	}
}

func TestMonotonicAcrossCallers(t *testing.T) {
	q := stream(0)
	d := New(q)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 200; i++ {
			q.Push(frameEvent(uint64(i)))
		}
		q.Push(compositor.EndOfStream())
		q.Close()
	}()

	var mu sync.Mutex
	var seen []uint64
	record := func(seq uint64) {
		mu.Lock()
		seen = append(seen, seq)
		mu.Unlock()
	}

	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !d.Closed() {
				if f, ok := d.TryLatest(); ok {
					record(f.Seq)
				}
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	st := d.Stats()
	if st.Delivered != uint64(len(seen)) {
		t.Errorf("Delivered = %d, recorded %d", st.Delivered, len(seen))
	}
	var maxSeq uint64
	for _, s := range seen {
		if s > maxSeq {
			maxSeq = s
		}
	}
	if st.LastSeq != maxSeq {
		t.Errorf("LastSeq = %d, want %d", st.LastSeq, maxSeq)
	}
}

func TestAwaitLatestWakesOnClose(t *testing.T) {
	q := stream(0)
	d := New(q)

	errc := make(chan error, 1)
	go func() {
		_, err := d.AwaitLatest(context.Background())
		errc <- err
	}()
	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case err := <-errc:
		if !errors.Is(err, compositor.ErrChannelClosed) {
			t.Errorf("AwaitLatest() error = %v, want ErrChannelClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("AwaitLatest() not woken by Close")
	}
}

func TestLatestFrameProducerAhead(t *testing.T) {
	q := stream(0)
	d := New(q)
	var seq uint64
	for round := range 20 {
		for range 5 {
			seq++
			q.Push(frameEvent(seq))
		}
		var f compositor.Frame
		if round%2 == 0 {
			var err error
			if f, err = d.AwaitLatest(context.Background()); err != nil {
				t.Fatalf("round %d: AwaitLatest() error = %v", round, err)
			}
		} else {
			var ok bool
			if f, ok = d.TryLatest(); !ok {
				t.Fatalf("round %d: TryLatest() returned no frame", round)
			}
		}
		if f.Seq != seq {
			t.Fatalf("round %d: Seq = %d, want %d", round, f.Seq, seq)
		}
		if q.Len() != 0 {
			t.Fatalf("round %d: %d events left behind", round, q.Len())
		}
	}
	if st := d.Stats(); st.Dropped != 80 || st.Delivered != 20 {
		t.Errorf("Stats() = %+v, want Delivered=20 Dropped=80", st)
	}
}
