// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package display shows an output's live frames in a gogpu window.
//
// The window redraws continuously. Each redraw takes the newest frame from
// the source, discarding older ones, and keeps showing the previous picture
// when nothing new has arrived.
package display

import (
	"github.com/gogpu/gg/integration/ggcanvas"
	"github.com/gogpu/gogpu"

	"github.com/gogpu/compositor"
)

// Window presents a FrameSource in a native window.
type Window struct {
	opts      options
	presenter *Presenter
	app       *gogpu.App
	canvas    *ggcanvas.Canvas
}

// New creates the window. The window opens when Run is called.
func New(src FrameSource, opts ...Option) *Window {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	w := &Window{
		opts:      o,
		presenter: NewPresenter(src, o.toImage),
	}
	w.app = gogpu.NewApp(gogpu.DefaultConfig().
		WithTitle(o.title).
		WithSize(o.width, o.height).
		WithContinuousRender(true))
	w.app.OnDraw(w.draw)
	w.app.OnClose(w.close)
	return w
}

// Presenter returns the window's presenter.
func (w *Window) Presenter() *Presenter { return w.presenter }

// Run opens the window and blocks until it is closed. It must be called
// from the main goroutine.
func (w *Window) Run() error {
	return w.app.Run()
}

func (w *Window) draw(dc *gogpu.Context) {
	log := compositor.Logger()
	width, height := dc.Width(), dc.Height()
	if width <= 0 || height <= 0 {
		return
	}

	resized := false
	if w.canvas == nil {
		provider := w.app.GPUContextProvider()
		if provider == nil {
			return
		}
		c, err := ggcanvas.New(provider, width, height)
		if err != nil {
			log.Error("display: canvas creation failed", "error", err)
			return
		}
		w.canvas = c
		resized = true
		log.Info("display: canvas created", "width", width, "height", height)
		if w.opts.onDevice != nil {
			w.opts.onDevice(provider)
		}
	}
	if cw, ch := w.canvas.Size(); cw != width || ch != height {
		if err := w.canvas.Resize(width, height); err != nil {
			log.Warn("display: resize failed", "error", err)
		}
		resized = true
	}

	changed, err := w.presenter.Update()
	if err != nil {
		log.Warn("display: frame dropped", "error", err)
	}
	if changed || resized {
		if err := w.canvas.Draw(w.presenter.Draw); err != nil {
			log.Warn("display: draw failed", "error", err)
		}
	}
	if err := w.canvas.RenderTo(dc.AsTextureDrawer()); err != nil {
		log.Warn("display: present failed", "seq", w.presenter.Seq(), "error", err)
	}
}

func (w *Window) close() {
	if w.canvas != nil {
		_ = w.canvas.Close()
		w.canvas = nil
	}
	if w.opts.onClose != nil {
		w.opts.onClose()
	}
}
