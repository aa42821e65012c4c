package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/compositor"
	"github.com/gogpu/compositor/internal/enginetest"
	"github.com/gogpu/compositor/output"
	"github.com/gogpu/compositor/scene"
)

// fakeClock advances by the requested duration whenever After is called,
// so loops run without real sleeps.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

// blockingClock never fires.
type blockingClock struct{}

func (blockingClock) Now() time.Time                       { return time.Time{} }
func (blockingClock) After(time.Duration) <-chan time.Time { return nil }

func testScenes() []*scene.Scene {
	b1 := scene.NewBuilder()
	img := b1.MustBuild(b1.Image("image"))
	b2 := scene.NewBuilder()
	vid := b2.MustBuild(b2.Layout(b2.Video("mp4_input"), scene.LayoutOptions{Mode: scene.ModeFill}))
	return []*scene.Scene{img, vid}
}

type recordingTarget struct {
	mu      sync.Mutex
	applied []*scene.Scene
}

func (r *recordingTarget) UpdateScene(_ context.Context, _ compositor.OutputID, s *scene.Scene) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applied = append(r.applied, s)
	return nil
}

func TestNext(t *testing.T) {
	tests := []struct {
		i, n, want int
	}{
		{0, 2, 1},
		{1, 2, 0},
		{0, 1, 0},
		{2, 3, 0},
		{4, 7, 5},
	}
	for _, tt := range tests {
		if got := Next(tt.i, tt.n); got != tt.want {
			t.Errorf("Next(%d, %d) = %d, want %d", tt.i, tt.n, got, tt.want)
		}
	}
}

func TestIndexAfterKTicks(t *testing.T) {
	scenes := testScenes()
	scenes = append(scenes, scene.Empty())
	for _, i0 := range []int{0, 1, 2} {
		for k := 1; k <= 7; k++ {
			tgt := &recordingTarget{}
			s := New(tgt, "raw_output", scenes,
				WithClock(newFakeClock()),
				WithInterval(time.Second),
				WithDuration(time.Duration(k)*time.Second),
				WithInitialIndex(i0))
			if err := s.Run(context.Background()); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			want := (i0 + k) % len(scenes)
			if s.Index() != want {
				t.Errorf("i0=%d k=%d: Index() = %d, want %d", i0, k, s.Index(), want)
			}
			if got := tgt.applied[len(tgt.applied)-1]; got != scenes[want] {
				t.Errorf("i0=%d k=%d: last applied %v, want %v", i0, k, got, scenes[want])
			}
		}
	}
}

func TestDurationPerformsExactSwaps(t *testing.T) {
	tgt := &recordingTarget{}
	scenes := testScenes()
	s := New(tgt, "mp4_output", scenes,
		WithClock(newFakeClock()),
		WithInterval(time.Second),
		WithDuration(5*time.Second))
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if s.Swaps() != 5 {
		t.Fatalf("Swaps() = %d, want 5", s.Swaps())
	}
	want := []*scene.Scene{scenes[1], scenes[0], scenes[1], scenes[0], scenes[1]}
	for i, got := range tgt.applied {
		if got != want[i] {
			t.Errorf("swap %d = %v, want %v", i, got, want[i])
		}
	}
}

func TestRunNoScenes(t *testing.T) {
	s := New(&recordingTarget{}, "raw_output", nil)
	if err := s.Run(context.Background()); !errors.Is(err, ErrNoScenes) {
		t.Errorf("Run() error = %v, want ErrNoScenes", err)
	}
}

func TestRunContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tgt := &recordingTarget{}
	run := New(tgt, "raw_output", testScenes(), WithClock(blockingClock{})).Start(ctx)

	cancel()
	select {
	case <-run.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not stop after cancel")
	}
	if err := run.Wait(); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() error = %v, want Canceled", err)
	}
}

func TestRunStop(t *testing.T) {
	run := New(&recordingTarget{}, "raw_output", testScenes(), WithClock(blockingClock{})).Start(context.Background())
	run.Stop()
	run.Stop()
	if err := run.Wait(); err != nil {
		t.Errorf("Wait() after Stop error = %v, want nil", err)
	}
	if run.Swaps() > 1 {
		t.Errorf("Swaps() = %d, want at most 1", run.Swaps())
	}
}

func TestRunStopsWhenOutputUnregistered(t *testing.T) {
	mux := output.New(enginetest.New())
	defer mux.Close()
	ctx := context.Background()
	if _, err := mux.RegisterOutput(ctx, "raw_output", compositor.OutputRaw,
		compositor.Resolution{Width: 16, Height: 9}, nil); err != nil {
		t.Fatal(err)
	}

	run := New(mux, "raw_output", testScenes(), WithClock(blockingClock{})).Start(ctx)
	if err := mux.UnregisterOutput(ctx, "raw_output"); err != nil {
		t.Fatal(err)
	}
	select {
	case <-run.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not stop after unregister")
	}
	if err := run.Wait(); err != nil && !errors.Is(err, compositor.ErrUnknownOutput) {
		t.Errorf("Wait() error = %v, want nil or ErrUnknownOutput", err)
	}
}

func TestFailurePolicy(t *testing.T) {
	transient := errors.New("engine busy")
	tests := []struct {
		name      string
		errs      []error
		max       int
		duration  time.Duration
		wantErr   error
		wantSwaps int
	}{
		{
			name:     "unknown output stops at once",
			errs:     []error{compositor.ErrUnknownOutput},
			max:      5,
			duration: 10 * time.Second,
			wantErr:  compositor.ErrUnknownOutput,
		},
		{
			name:      "transient failures are retried",
			errs:      []error{transient, transient},
			max:       5,
			duration:  5 * time.Second,
			wantSwaps: 3,
		},
		{
			name:     "consecutive failures stop the loop",
			errs:     []error{transient, transient, transient},
			max:      3,
			duration: 10 * time.Second,
			wantErr:  ErrTooManyFailures,
		},
		{
			name:      "success resets the counter",
			errs:      []error{transient, transient, nil, transient, transient},
			max:       3,
			duration:  6 * time.Second,
			wantSwaps: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tgt := &patternTarget{pattern: tt.errs}
			s := New(tgt, "raw_output", testScenes(),
				WithClock(newFakeClock()), WithDuration(tt.duration), WithMaxFailures(tt.max))
			err := s.Run(context.Background())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Run() error = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if s.Swaps() != tt.wantSwaps {
				t.Errorf("Swaps() = %d, want %d", s.Swaps(), tt.wantSwaps)
			}
		})
	}
}

// patternTarget returns pattern[i] on call i (nil meaning success) and
// succeeds once the pattern is exhausted.
type patternTarget struct {
	pattern []error
	calls   int
}

func (r *patternTarget) UpdateScene(context.Context, compositor.OutputID, *scene.Scene) error {
	i := r.calls
	r.calls++
	if i < len(r.pattern) {
		return r.pattern[i]
	}
	return nil
}
