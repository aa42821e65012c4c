package soft

import (
	"errors"
	"fmt"
	"image"
	"image/gif"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/image/draw"

	"github.com/gogpu/gg"
)

// ErrUnsupportedSource is returned for source files the engine cannot
// decode.
var ErrUnsupportedSource = errors.New("soft: unsupported source")

// source yields the picture of a registered input at a point in time.
type source interface {
	frameAt(t time.Duration) *gg.ImageBuf
	size() (int, int)
}

// still is an image source. Its picture can be swapped by hot reload.
type still struct {
	path string
	buf  atomic.Pointer[gg.ImageBuf]
}

func loadStill(path string) (*still, error) {
	buf, err := gg.LoadImage(path)
	if err != nil {
		return nil, fmt.Errorf("load image %s: %w", path, err)
	}
	s := &still{path: path}
	s.buf.Store(buf)
	return s, nil
}

func (s *still) reload() error {
	buf, err := gg.LoadImage(s.path)
	if err != nil {
		return err
	}
	s.buf.Store(buf)
	return nil
}

func (s *still) frameAt(time.Duration) *gg.ImageBuf { return s.buf.Load() }

func (s *still) size() (int, int) { return s.buf.Load().Bounds() }

// animation is a decoded GIF played back by wall time.
type animation struct {
	frames []*gg.ImageBuf
	ends   []time.Duration // cumulative end time of each frame
	total  time.Duration
	loop   bool
}

// minFrameDelay replaces zero GIF delays, as browsers do.
const minFrameDelay = 100 * time.Millisecond

func loadAnimation(path string, loop bool) (*animation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load video %s: %w", path, err)
	}
	defer f.Close()

	g, err := gif.DecodeAll(f)
	if err != nil {
		return nil, fmt.Errorf("load video %s: %w", path, err)
	}
	if len(g.Image) == 0 {
		return nil, fmt.Errorf("load video %s: no frames: %w", path, ErrUnsupportedSource)
	}

	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if bounds.Empty() {
		bounds = g.Image[0].Bounds()
	}
	canvas := image.NewRGBA(bounds)
	a := &animation{loop: loop}
	for i, frame := range g.Image {
		var restore *image.RGBA
		if i < len(g.Disposal) && g.Disposal[i] == gif.DisposalPrevious {
			restore = image.NewRGBA(bounds)
			draw.Copy(restore, image.Point{}, canvas, bounds, draw.Src, nil)
		}
		draw.Draw(canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)

		a.frames = append(a.frames, gg.ImageBufFromImage(canvas))
		delay := time.Duration(g.Delay[i]) * 10 * time.Millisecond
		if delay <= 0 {
			delay = minFrameDelay
		}
		a.total += delay
		a.ends = append(a.ends, a.total)

		if i < len(g.Disposal) {
			switch g.Disposal[i] {
			case gif.DisposalBackground:
				draw.Draw(canvas, frame.Bounds(), image.Transparent, image.Point{}, draw.Src)
			case gif.DisposalPrevious:
				draw.Copy(canvas, image.Point{}, restore, bounds, draw.Src, nil)
			}
		}
	}
	return a, nil
}

func (a *animation) frameAt(t time.Duration) *gg.ImageBuf {
	if t < 0 {
		t = 0
	}
	if t >= a.total {
		if !a.loop {
			return a.frames[len(a.frames)-1]
		}
		t %= a.total
	}
	for i, end := range a.ends {
		if t < end {
			return a.frames[i]
		}
	}
	return a.frames[len(a.frames)-1]
}

func (a *animation) size() (int, int) { return a.frames[0].Bounds() }

// loadVideo opens a video source. GIF files are animated; still image
// formats play as a single frame.
func loadVideo(path string, loop bool) (source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gif":
		return loadAnimation(path, loop)
	case ".png", ".jpg", ".jpeg", ".webp":
		return loadStill(path)
	default:
		return nil, fmt.Errorf("load video %s: %w", path, ErrUnsupportedSource)
	}
}
