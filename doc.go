// Package compositor orchestrates a live video compositing engine.
//
// # Overview
//
// compositor drives an external engine (see Engine) that blends registered
// image and video sources into named outputs. The module itself owns the
// parts that need care around concurrency and GPU memory:
//
//   - output: a multiplexer that owns the engine and serializes output
//     registration, scene swaps and unregistration through one goroutine
//   - schedule: cancellable timed loops that alternate an output's scene
//   - drain: "latest frame wins" extraction from an output's event stream
//   - readback: GPU format conversion and padded texture readback to RGBA8
//
// The scene package describes what an output renders. The engine/soft
// package is a CPU reference engine built on gg; pipeline wires everything
// into the preview-plus-recording flow used by the composer command, and
// display shows a live output in a gogpu window. Recordings are written by
// record (YUV4MPEG2) and stills by snapshot (PNG, BMP, TIFF).
//
// # Quick Start
//
//	eng := soft.New(soft.WithFramerate(10))
//	mux := output.New(eng)
//	defer mux.Close()
//
//	h, err := mux.RegisterOutput(ctx, "raw_output", compositor.OutputRaw,
//	    compositor.Resolution{Width: 1920, Height: 1080}, scene.Empty())
//
//	run := schedule.New(mux, h.ID(), scenes).Start(ctx)
//	frame, ok := h.Drainer().TryLatest()
//
// # Errors
//
// All packages report the sentinel errors declared here (ErrRegistration,
// ErrUnknownOutput, ErrChannelClosed, ErrUnsupportedFormat, ErrMapping,
// ErrFileIO, ErrClosed) wrapped with context; test them with errors.Is.
//
// # Logging
//
// compositor is silent by default. Call SetLogger to route diagnostics from
// every sub-package to a slog.Logger.
package compositor
