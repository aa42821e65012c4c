// Package soft is a CPU compositing engine built on gg.
//
// It implements compositor.Engine for still images, GIF animations and
// fit/fill/stretch layouts. Raw outputs deliver RGBA8 frames on their event
// stream; file outputs are encoded to YUV4MPEG2. It is the reference
// engine for the compositor packages and the composer command, not a
// production media stack.
package soft

import (
	"errors"
	"fmt"
	"image"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gg"

	"github.com/gogpu/compositor"
	"github.com/gogpu/compositor/internal/queue"
	"github.com/gogpu/compositor/internal/workers"
	"github.com/gogpu/compositor/record"
	"github.com/gogpu/compositor/scene"
)

// ErrUnknownSource is returned when a scene references a source that was
// never registered.
var ErrUnknownSource = errors.New("soft: unknown source")

type output struct {
	id   compositor.OutputID
	spec compositor.OutputSpec

	current atomic.Pointer[scene.Scene]

	// Owned by the render goroutine.
	dc     *gg.Context
	seq    uint64
	events *queue.Unbounded[compositor.FrameEvent]

	// mu guards writer and closed against UnregisterOutput.
	mu     sync.Mutex
	writer *record.Writer
	closed bool
}

// Engine composes registered sources into outputs on a fixed tick.
type Engine struct {
	opts options

	mu      sync.Mutex
	sources map[scene.SourceID]source
	outputs map[compositor.OutputID]*output
	closed  bool

	renderMu sync.Mutex
	ticks    atomic.Uint64
	pool     *workers.Pool

	watch *watcher

	stop     chan struct{}
	loopDone chan struct{}
	once     sync.Once
}

// New creates an engine and, unless WithManualTick is given, starts its
// render loop.
func New(opts ...Option) *Engine {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	e := &Engine{
		opts:     o,
		sources:  make(map[scene.SourceID]source),
		outputs:  make(map[compositor.OutputID]*output),
		stop:     make(chan struct{}),
		loopDone: make(chan struct{}),
		pool:     workers.New(o.workers),
	}
	if o.manual {
		close(e.loopDone)
	} else {
		go e.loop()
	}
	return e
}

// Framerate returns the configured frames per second.
func (e *Engine) Framerate() int { return e.opts.framerate }

func (e *Engine) loop() {
	defer close(e.loopDone)
	t := time.NewTicker(e.opts.interval())
	defer t.Stop()
	for {
		select {
		case <-e.stop:
			return
		case <-t.C:
			e.Tick()
		}
	}
}

// RegisterImage implements compositor.Engine. PNG, JPEG and WebP are
// supported.
func (e *Engine) RegisterImage(id scene.SourceID, path string) error {
	s, err := loadStill(path)
	if err != nil {
		return fmt.Errorf("register image %q: %w: %w", id, ErrUnsupportedSource, err)
	}
	if err := e.addSource(id, s); err != nil {
		return err
	}
	if e.opts.hotReload {
		e.watchStill(s)
	}
	return nil
}

// RegisterVideo implements compositor.Engine. GIF animations play back at
// their own frame delays; other image formats play as a single frame.
func (e *Engine) RegisterVideo(id scene.SourceID, path string, loop bool) error {
	s, err := loadVideo(path, loop)
	if err != nil {
		return fmt.Errorf("register video %q: %w", id, err)
	}
	return e.addSource(id, s)
}

func (e *Engine) addSource(id scene.SourceID, s source) error {
	if id == "" {
		return fmt.Errorf("register source: empty id: %w", compositor.ErrRegistration)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return compositor.ErrClosed
	}
	if _, ok := e.sources[id]; ok {
		return fmt.Errorf("register source %q: already registered: %w", id, compositor.ErrRegistration)
	}
	e.sources[id] = s
	w, h := s.size()
	compositor.Logger().Info("soft: source registered", "source", id, "width", w, "height", h)
	return nil
}

func (e *Engine) checkSourcesLocked(s *scene.Scene) error {
	for _, id := range s.Sources() {
		if _, ok := e.sources[id]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownSource, id)
		}
	}
	return nil
}

// RegisterOutput implements compositor.Engine. Raw outputs return their
// frame stream; file outputs return nil and write to spec.Path, replacing
// an existing file.
func (e *Engine) RegisterOutput(id compositor.OutputID, spec compositor.OutputSpec) (compositor.Events, error) {
	if !spec.Resolution.Valid() {
		return nil, fmt.Errorf("register output %q: resolution %s: %w", id, spec.Resolution, compositor.ErrRegistration)
	}
	if spec.Initial == nil {
		spec.Initial = scene.Empty()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, compositor.ErrClosed
	}
	if _, ok := e.outputs[id]; ok {
		return nil, fmt.Errorf("register output %q: already registered: %w", id, compositor.ErrRegistration)
	}
	if err := e.checkSourcesLocked(spec.Initial); err != nil {
		return nil, fmt.Errorf("register output %q: %w", id, err)
	}

	o := &output{
		id:   id,
		spec: spec,
		dc:   gg.NewContext(spec.Resolution.Width, spec.Resolution.Height),
	}
	o.current.Store(spec.Initial)

	var events compositor.Events
	switch spec.Kind {
	case compositor.OutputRaw:
		o.events = queue.New[compositor.FrameEvent]()
		events = o.events
	case compositor.OutputFile:
		w, err := record.Create(spec.Path, spec.Resolution.Width, spec.Resolution.Height, e.opts.framerate)
		if err != nil {
			return nil, fmt.Errorf("register output %q: %w", id, err)
		}
		o.writer = w
	default:
		return nil, fmt.Errorf("register output %q: kind %v: %w", id, spec.Kind, compositor.ErrRegistration)
	}

	e.outputs[id] = o
	return events, nil
}

// UpdateScene implements compositor.Engine.
func (e *Engine) UpdateScene(id compositor.OutputID, s *scene.Scene) error {
	if s == nil {
		s = scene.Empty()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.outputs[id]
	if !ok {
		return fmt.Errorf("update scene of %q: %w", id, compositor.ErrUnknownOutput)
	}
	if err := e.checkSourcesLocked(s); err != nil {
		return fmt.Errorf("update scene of %q: %w", id, err)
	}
	o.current.Store(s)
	return nil
}

// UnregisterOutput implements compositor.Engine. File outputs are flushed
// and closed; raw outputs receive EndOfStream.
func (e *Engine) UnregisterOutput(id compositor.OutputID) error {
	e.mu.Lock()
	o, ok := e.outputs[id]
	delete(e.outputs, id)
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("unregister output %q: %w", id, compositor.ErrUnknownOutput)
	}
	return e.finish(o)
}

func (e *Engine) finish(o *output) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true

	var err error
	if o.writer != nil {
		err = o.writer.Close()
	}
	if o.events != nil {
		o.events.Push(compositor.EndOfStream())
		o.events.Close()
	}
	return err
}

// Tick renders one frame for every registered output.
func (e *Engine) Tick() {
	e.renderMu.Lock()
	defer e.renderMu.Unlock()

	e.mu.Lock()
	outs := make([]*output, 0, len(e.outputs))
	for _, o := range e.outputs {
		outs = append(outs, o)
	}
	sources := make(map[scene.SourceID]source, len(e.sources))
	for id, s := range e.sources {
		sources[id] = s
	}
	e.mu.Unlock()
	sort.Slice(outs, func(i, j int) bool { return outs[i].id < outs[j].id })

	now := time.Duration(e.ticks.Add(1)-1) * e.opts.interval()
	jobs := make([]func(), len(outs))
	for i, o := range outs {
		jobs[i] = func() { e.render(o, sources, now) }
	}
	e.pool.Run(jobs)
}

func (e *Engine) render(o *output, sources map[scene.SourceID]source, now time.Duration) {
	pts := time.Duration(o.seq) * e.opts.interval()
	pix := e.compose(o, sources, now, pts)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.seq++
	if o.writer != nil {
		if err := o.writer.WriteFrame(pix); err != nil {
			compositor.Logger().Warn("soft: frame write failed", "output", o.id, "seq", o.seq, "error", err)
		}
		return
	}
	res := o.spec.Resolution
	o.events.Push(compositor.Data(compositor.Frame{
		Output: o.id,
		Seq:    o.seq,
		PTS:    pts,
		Width:  res.Width,
		Height: res.Height,
		Pixels: pix,
	}))
}

// compose draws the output's active scene and returns fresh RGBA8 pixels.
func (e *Engine) compose(o *output, sources map[scene.SourceID]source, now, pts time.Duration) []byte {
	dc := o.dc
	dc.Clear()

	s := o.current.Load()
	size := func(id scene.SourceID) (int, int) {
		if src, ok := sources[id]; ok {
			return src.size()
		}
		return 0, 0
	}
	if p, ok := place(s, dc.Width(), dc.Height(), size); ok {
		src := sources[p.source]
		srcRect := p.src
		dc.DrawImageEx(src.frameAt(now), gg.DrawImageOptions{
			X:             float64(p.dst.Min.X),
			Y:             float64(p.dst.Min.Y),
			DstWidth:      float64(p.dst.Dx()),
			DstHeight:     float64(p.dst.Dy()),
			SrcRect:       &srcRect,
			Interpolation: gg.InterpBilinear,
			Opacity:       1.0,
			BlendMode:     gg.BlendNormal,
		})
	}

	img := toRGBA(dc.Image())
	if e.opts.timecode {
		drawTimecode(img, pts)
	}
	return img.Pix
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) && rgba.Stride == rgba.Rect.Dx()*4 {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			rgba.Set(x, y, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return rgba
}

// Outputs returns the registered output ids in sorted order.
func (e *Engine) Outputs() []compositor.OutputID {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]compositor.OutputID, 0, len(e.outputs))
	for id := range e.outputs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Close stops the render loop and finishes every output. Close is
// idempotent.
func (e *Engine) Close() error {
	var err error
	e.once.Do(func() {
		close(e.stop)
		<-e.loopDone
		e.renderMu.Lock()
		e.pool.Close()
		e.renderMu.Unlock()

		e.mu.Lock()
		e.closed = true
		outs := make([]*output, 0, len(e.outputs))
		for _, o := range e.outputs {
			outs = append(outs, o)
		}
		e.outputs = make(map[compositor.OutputID]*output)
		w := e.watch
		e.watch = nil
		e.mu.Unlock()

		var errs []error
		for _, o := range outs {
			errs = append(errs, e.finish(o))
		}
		if w != nil {
			errs = append(errs, w.close())
		}
		err = errors.Join(errs...)
	})
	return err
}
