//go:build !nogpu

package readback

import (
	"fmt"

	"github.com/gogpu/compositor"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Upload creates a texture of the given format from tight RGBA8 pixels. The
// texture can be rendered to, sampled and copied. Copyable formats and BGRA8
// (swizzled on the CPU) can be uploaded; release the texture with Release.
func (c *Converter) Upload(width, height uint32, format gputypes.TextureFormat, pixels []byte) (*compositor.Texture, error) {
	if !IsUploadable(format) {
		return nil, fmt.Errorf("upload: format %v: %w", format, compositor.ErrUnsupportedFormat)
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("upload: empty size %dx%d", width, height)
	}
	if want := int(width) * int(height) * bytesPerPixel; len(pixels) != want {
		return nil, fmt.Errorf("upload: got %d bytes, want %d", len(pixels), want)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, compositor.ErrClosed
	}

	tex, err := c.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "readback_upload",
		Size:          hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage: gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst |
			gputypes.TextureUsageCopySrc | gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		return nil, fmt.Errorf("upload: create texture: %w", err)
	}

	data := pixels
	if !IsCopyable(format) {
		data = SwapRedBlue(pixels)
	}
	c.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: tex, MipLevel: 0},
		data,
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: width * bytesPerPixel, RowsPerImage: height},
		&hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
	)
	return &compositor.Texture{Raw: tex, Format: format, Width: width, Height: height}, nil
}
