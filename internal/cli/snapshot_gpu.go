//go:build !nogpu

package cli

import (
	"context"

	"github.com/gogpu/compositor"
	"github.com/gogpu/compositor/readback"
	"github.com/gogpu/compositor/snapshot"
)

// writeViaGPU uploads f to a BGRA8 texture, converts and reads it back, and
// writes the result.
func writeViaGPU(ctx context.Context, path string, f compositor.Frame) error {
	logger := loggerFromContext(ctx)
	conv, err := readback.OpenDevice()
	if err != nil {
		return err
	}
	defer conv.Close()

	tex, err := conv.Upload(uint32(f.Width), uint32(f.Height), readback.BGRAFor(conv.TargetFormat()), f.Pixels)
	if err != nil {
		return err
	}
	defer conv.Release(tex)

	img, err := conv.ToImage(tex)
	if err != nil {
		return err
	}
	logger.Debug("Frame read back from GPU", "format", tex.Format, "pipelines", conv.Pipelines())
	return snapshot.Write(path, img)
}
