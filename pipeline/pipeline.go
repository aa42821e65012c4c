// Package pipeline wires an engine, an output multiplexer and scene
// schedulers into the preview-plus-recording flow.
//
// A Pipeline registers one still image and one looping video, exposes a
// raw preview output that alternates between them, and records the same
// alternation to files on demand:
//
//	p, err := pipeline.New(ctx, soft.New(), "assets/image.png", "assets/clip.gif")
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	run := p.Start(ctx)
//	defer run.Stop()
//	rec, err := p.Record(ctx, "output.y4m", 5*time.Second)
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gogpu/compositor"
	"github.com/gogpu/compositor/output"
	"github.com/gogpu/compositor/scene"
	"github.com/gogpu/compositor/schedule"
	"github.com/gogpu/compositor/snapshot"
)

// Well-known ids registered by New.
const (
	PreviewOutput compositor.OutputID = "raw_output"
	ImageSource   scene.SourceID      = "image_input"
	VideoSource   scene.SourceID      = "mp4_input"
)

// ErrNoConverter is returned when a GPU frame must be read back but the
// pipeline has no readback.Converter.
var ErrNoConverter = errors.New("pipeline: no converter for GPU frame")

// Recording describes a finished recording.
type Recording struct {
	Output compositor.OutputID
	Path   string
	Swaps  int
}

// Pipeline is the preview and recording flow over one engine.
type Pipeline struct {
	opts    options
	mux     *output.Multiplexer
	preview *output.Handle
	scenes  []*scene.Scene

	mu     sync.Mutex
	runs   map[*schedule.Run]struct{}
	closed bool
}

// New registers the image and video sources with engine, hands engine to a
// new multiplexer and registers the preview output showing the placeholder
// scene. The pipeline owns engine from then on.
func New(ctx context.Context, engine compositor.Engine, imagePath, videoPath string, opts ...Option) (*Pipeline, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	log := compositor.Logger()

	if err := engine.RegisterImage(ImageSource, imagePath); err != nil {
		_ = engine.Close()
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	log.Info("pipeline: registered image input", "path", imagePath)
	if err := engine.RegisterVideo(VideoSource, videoPath, o.loop); err != nil {
		_ = engine.Close()
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	log.Info("pipeline: registered video input", "path", videoPath, "loop", o.loop)

	mux := output.New(engine)
	preview, err := mux.RegisterOutput(ctx, PreviewOutput, compositor.OutputRaw, o.resolution, scene.Empty())
	if err != nil {
		_ = mux.Close()
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	return &Pipeline{
		opts:    o,
		mux:     mux,
		preview: preview,
		scenes:  Scenes(o.resolution),
		runs:    make(map[*schedule.Run]struct{}),
	}, nil
}

// Scenes returns the two scenes the pipeline alternates between: the still
// image at its native size, and the video rescaled to fill res.
func Scenes(res compositor.Resolution) []*scene.Scene {
	b := scene.NewBuilder()
	img := b.MustBuild(b.Image(ImageSource))

	b = scene.NewBuilder()
	video := b.MustBuild(b.Layout(b.Video(VideoSource), scene.LayoutOptions{
		Size:  scene.Size{Width: float64(res.Width), Height: float64(res.Height)},
		Align: scene.AlignCenter,
		Mode:  scene.ModeFill,
	}))
	return []*scene.Scene{img, video}
}

// Multiplexer returns the multiplexer owning the engine.
func (p *Pipeline) Multiplexer() *output.Multiplexer { return p.mux }

// Preview returns the handle of the preview output.
func (p *Pipeline) Preview() *output.Handle { return p.preview }

// Scenes returns the alternated scenes.
func (p *Pipeline) Scenes() []*scene.Scene { return p.scenes }

func (p *Pipeline) schedule(id compositor.OutputID, extra ...schedule.Option) *schedule.Scheduler {
	opts := append([]schedule.Option{
		schedule.WithInterval(p.opts.interval),
		schedule.WithClock(p.opts.clock),
	}, extra...)
	return schedule.New(p.mux, id, p.scenes, opts...)
}

// Start alternates the preview output's scenes until ctx is cancelled, the
// returned run is stopped, or the pipeline is closed.
func (p *Pipeline) Start(ctx context.Context) *schedule.Run {
	run := p.schedule(PreviewOutput).Start(ctx)
	p.track(run)
	compositor.Logger().Info("pipeline: preview alternation started", "interval", p.opts.interval)
	return run
}

func (p *Pipeline) track(run *schedule.Run) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		run.Stop()
		return
	}
	p.runs[run] = struct{}{}
	go func() {
		<-run.Done()
		p.mu.Lock()
		delete(p.runs, run)
		p.mu.Unlock()
	}()
}

// Record records the scene alternation to path for duration and finalizes
// the file. An existing file at path is removed first. Record blocks until
// the recording is finished; cancelling ctx ends it early but still
// finalizes the file.
func (p *Pipeline) Record(ctx context.Context, path string, duration time.Duration) (Recording, error) {
	log := compositor.Logger()
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Recording{}, fmt.Errorf("pipeline: remove %s: %w: %w", path, compositor.ErrFileIO, err)
	}

	id := compositor.OutputID("record-" + uuid.NewString())
	h, err := p.mux.RegisterOutput(ctx, id, compositor.OutputFile, p.opts.resolution, scene.Empty(),
		output.WithPath(path))
	if err != nil {
		return Recording{}, fmt.Errorf("pipeline: %w", err)
	}
	log.Info("pipeline: recording started", "output", id, "path", path, "duration", duration)

	run := p.schedule(h.ID(), schedule.WithDuration(duration)).Start(ctx)
	p.track(run)
	runErr := run.Wait()

	// ctx may already be cancelled; the file still has to be finalized.
	unregErr := p.mux.UnregisterOutput(context.WithoutCancel(ctx), h.ID())
	rec := Recording{Output: h.ID(), Path: path, Swaps: run.Swaps()}
	if err := errors.Join(runErr, unregErr); err != nil {
		return rec, fmt.Errorf("pipeline: recording %s: %w", path, err)
	}
	log.Info("pipeline: recording stopped", "output", id, "path", path, "swaps", rec.Swaps)
	return rec, nil
}

// TryFrame returns the newest preview frame without blocking.
func (p *Pipeline) TryFrame() (compositor.Frame, bool) {
	return p.preview.Drainer().TryLatest()
}

// AwaitFrame blocks for the next preview frame and returns the newest one.
func (p *Pipeline) AwaitFrame(ctx context.Context) (compositor.Frame, error) {
	return p.preview.Drainer().AwaitLatest(ctx)
}

// FrameImage returns f as an RGBA image, reading GPU frames back through
// the pipeline's converter.
func (p *Pipeline) FrameImage(f compositor.Frame) (*image.RGBA, error) {
	if img, ok := f.Image(); ok {
		return img, nil
	}
	if !f.OnGPU() {
		return nil, fmt.Errorf("pipeline: frame %d of %q has no pixels", f.Seq, f.Output)
	}
	if p.opts.converter == nil {
		return nil, ErrNoConverter
	}
	return p.opts.converter.ToImage(f.Texture)
}

// Snapshot waits for the next preview frame and writes it to path. The
// image format follows the file extension.
func (p *Pipeline) Snapshot(ctx context.Context, path string) (compositor.Frame, error) {
	f, err := p.AwaitFrame(ctx)
	if err != nil {
		return compositor.Frame{}, fmt.Errorf("pipeline: snapshot: %w", err)
	}
	img, err := p.FrameImage(f)
	if err != nil {
		return f, fmt.Errorf("pipeline: snapshot: %w", err)
	}
	if err := snapshot.Write(path, img); err != nil {
		return f, fmt.Errorf("pipeline: snapshot: %w", err)
	}
	compositor.Logger().Info("pipeline: snapshot written", "path", path, "seq", f.Seq)
	return f, nil
}

// Close stops every scheduler started by the pipeline and closes the
// multiplexer, which unregisters the remaining outputs and closes the
// engine.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	runs := make([]*schedule.Run, 0, len(p.runs))
	for r := range p.runs {
		runs = append(runs, r)
	}
	p.mu.Unlock()

	for _, r := range runs {
		r.Stop()
	}
	return p.mux.Close()
}
