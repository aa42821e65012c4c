// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package display

import (
	"image"
	"math"

	"github.com/gogpu/gg"

	"github.com/gogpu/compositor"
)

// FrameSource yields the newest frame of an output without blocking.
// pipeline.Pipeline implements it.
type FrameSource interface {
	TryFrame() (compositor.Frame, bool)
}

// ImageFunc turns a frame into CPU pixels, reading GPU frames back when
// needed.
type ImageFunc func(compositor.Frame) (*image.RGBA, error)

func cpuImage(f compositor.Frame) (*image.RGBA, error) {
	img, ok := f.Image()
	if !ok {
		return nil, compositor.ErrUnsupportedFormat
	}
	return img, nil
}

// Presenter keeps the last frame pulled from a FrameSource and draws it
// letterboxed into a gg context. It is not safe for concurrent use; the
// window calls it from its draw callback only.
type Presenter struct {
	src     FrameSource
	toImage ImageFunc

	last    *gg.ImageBuf
	lastSeq uint64
	updates uint64
}

// NewPresenter creates a presenter over src. A nil toImage accepts CPU
// frames only.
func NewPresenter(src FrameSource, toImage ImageFunc) *Presenter {
	if toImage == nil {
		toImage = cpuImage
	}
	return &Presenter{src: src, toImage: toImage}
}

// Update pulls the newest frame. It reports whether the picture changed;
// when no frame is pending the previous picture stays on screen.
func (p *Presenter) Update() (bool, error) {
	f, ok := p.src.TryFrame()
	if !ok {
		return false, nil
	}
	img, err := p.toImage(f)
	if err != nil {
		return false, err
	}
	p.last = gg.ImageBufFromImage(img)
	p.lastSeq = f.Seq
	p.updates++
	return true, nil
}

// Seq returns the sequence number of the picture on screen, or 0.
func (p *Presenter) Seq() uint64 { return p.lastSeq }

// Updates returns how many frames have been taken from the source.
func (p *Presenter) Updates() uint64 { return p.updates }

// Draw clears dc to black and draws the current picture fitted into it.
func (p *Presenter) Draw(dc *gg.Context) {
	dc.ClearWithColor(gg.Black)
	if p.last == nil {
		return
	}
	w, h := p.last.Bounds()
	r := Fit(w, h, dc.Width(), dc.Height())
	if r.Empty() {
		return
	}
	dc.DrawImageEx(p.last, gg.DrawImageOptions{
		X:             float64(r.Min.X),
		Y:             float64(r.Min.Y),
		DstWidth:      float64(r.Dx()),
		DstHeight:     float64(r.Dy()),
		Interpolation: gg.InterpBilinear,
		Opacity:       1.0,
		BlendMode:     gg.BlendNormal,
	})
}

// Fit returns the largest rectangle with the aspect ratio of srcW x srcH
// centered inside a dstW x dstH area.
func Fit(srcW, srcH, dstW, dstH int) image.Rectangle {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return image.Rectangle{}
	}
	s := math.Min(float64(dstW)/float64(srcW), float64(dstH)/float64(srcH))
	w := int(math.Round(float64(srcW) * s))
	h := int(math.Round(float64(srcH) * s))
	x := (dstW - w) / 2
	y := (dstH - h) / 2
	return image.Rect(x, y, x+w, y+h)
}
