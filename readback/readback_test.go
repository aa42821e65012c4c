//go:build !nogpu

package readback

import (
	"errors"
	"testing"

	"github.com/gogpu/compositor"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// createNoopDevice creates a noop device and queue for testing.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		openDev.Device.Destroy()
		instance.Destroy()
	})
	return openDev.Device, openDev.Queue
}

func newNoopConverter(t *testing.T, opts ...Option) *Converter {
	t.Helper()
	device, queue := createNoopDevice(t)
	c := New(device, queue, opts...)
	t.Cleanup(c.Close)
	return c
}

func createTexture(t *testing.T, c *Converter, w, h uint32, format gputypes.TextureFormat) *compositor.Texture {
	t.Helper()
	raw, err := c.Device().CreateTexture(&hal.TextureDescriptor{
		Label:         "test_texture",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		t.Fatalf("CreateTexture failed: %v", err)
	}
	t.Cleanup(func() { c.Device().DestroyTexture(raw) })
	return &compositor.Texture{Raw: raw, Format: format, Width: w, Height: h}
}

func TestEnsureCopyableIdentity(t *testing.T) {
	c := newNoopConverter(t)
	for _, f := range []gputypes.TextureFormat{gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatRGBA8UnormSrgb} {
		tex := createTexture(t, c, 4, 4, f)
		got, err := c.EnsureCopyable(tex)
		if err != nil {
			t.Fatalf("EnsureCopyable(%v) error = %v", f, err)
		}
		if got != tex {
			t.Errorf("EnsureCopyable(%v) returned a new texture", f)
		}
	}
	if c.Pipelines() != 0 {
		t.Errorf("Pipelines() = %d, want 0 for copyable inputs", c.Pipelines())
	}
}

func TestEnsureCopyableConverts(t *testing.T) {
	c := newNoopConverter(t)
	tex := createTexture(t, c, 8, 2, gputypes.TextureFormatBGRA8Unorm)

	got, err := c.EnsureCopyable(tex)
	if err != nil {
		t.Fatalf("EnsureCopyable() error = %v", err)
	}
	defer c.Release(got)
	if got == tex {
		t.Fatal("EnsureCopyable() returned the non-copyable input")
	}
	if got.Format != gputypes.TextureFormatRGBA8UnormSrgb || got.Width != 8 || got.Height != 2 {
		t.Errorf("converted = %v %dx%d", got.Format, got.Width, got.Height)
	}

	// The pipeline for a target format is built once.
	again, err := c.EnsureCopyable(tex)
	if err != nil {
		t.Fatal(err)
	}
	c.Release(again)
	if c.Pipelines() != 1 {
		t.Errorf("Pipelines() = %d, want 1", c.Pipelines())
	}
}

func TestEnsureCopyableWideFormats(t *testing.T) {
	c := newNoopConverter(t)
	for _, f := range []gputypes.TextureFormat{
		gputypes.TextureFormatRGBA16Float,
		gputypes.TextureFormatRGB10A2Unorm,
		gputypes.TextureFormatRG8Unorm,
	} {
		tex := createTexture(t, c, 4, 4, f)
		got, err := c.EnsureCopyable(tex)
		if err != nil {
			t.Fatalf("EnsureCopyable(%v) error = %v", f, err)
		}
		if got == tex || got.Format != c.TargetFormat() {
			t.Errorf("EnsureCopyable(%v) = %v, want a %v copy", f, got.Format, c.TargetFormat())
		}
		c.Release(got)
	}
	if c.Pipelines() != 1 {
		t.Errorf("Pipelines() = %d, want 1 shared conversion pipeline", c.Pipelines())
	}
}

func TestEnsureCopyableUnsupported(t *testing.T) {
	c := newNoopConverter(t)
	tex := &compositor.Texture{Raw: createTexture(t, c, 2, 2, gputypes.TextureFormatRGBA8Unorm).Raw,
		Format: gputypes.TextureFormatDepth24PlusStencil8, Width: 2, Height: 2}
	if _, err := c.EnsureCopyable(tex); !errors.Is(err, compositor.ErrUnsupportedFormat) {
		t.Errorf("EnsureCopyable() error = %v, want ErrUnsupportedFormat", err)
	}
	if _, err := c.ReadPixels(tex); !errors.Is(err, compositor.ErrUnsupportedFormat) {
		t.Errorf("ReadPixels() error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestReadPixelsSize(t *testing.T) {
	c := newNoopConverter(t)
	for _, w := range []uint32{1, 3, 255, 256, 257} {
		tex := createTexture(t, c, w, 3, gputypes.TextureFormatRGBA8UnormSrgb)
		pix, err := c.ReadPixels(tex)
		if err != nil {
			t.Fatalf("ReadPixels(%d) error = %v", w, err)
		}
		if len(pix) != int(w)*3*4 {
			t.Errorf("ReadPixels(%d) len = %d, want %d", w, len(pix), int(w)*3*4)
		}
	}
}

func TestToImage(t *testing.T) {
	c := newNoopConverter(t)
	tex := createTexture(t, c, 5, 4, gputypes.TextureFormatBGRA8Unorm)
	img, err := c.ToImage(tex)
	if err != nil {
		t.Fatalf("ToImage() error = %v", err)
	}
	if b := img.Bounds(); b.Dx() != 5 || b.Dy() != 4 {
		t.Errorf("bounds = %v, want 5x4", b)
	}
	if img.Stride != 20 || len(img.Pix) != 80 {
		t.Errorf("stride %d len %d", img.Stride, len(img.Pix))
	}
}

func TestUpload(t *testing.T) {
	c := newNoopConverter(t)
	pix := make([]byte, 4*2*4)
	tex, err := c.Upload(4, 2, gputypes.TextureFormatRGBA8Unorm, pix)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	defer c.Release(tex)
	if tex.Width != 4 || tex.Height != 2 || tex.Format != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("uploaded = %v %dx%d", tex.Format, tex.Width, tex.Height)
	}

	bgra, err := c.Upload(4, 2, gputypes.TextureFormatBGRA8UnormSrgb, pix)
	if err != nil {
		t.Fatalf("Upload(BGRA8) error = %v", err)
	}
	defer c.Release(bgra)
	if _, err := c.ToImage(bgra); err != nil {
		t.Errorf("ToImage(BGRA8 upload) error = %v", err)
	}
	if c.Pipelines() != 1 {
		t.Errorf("Pipelines() = %d, want 1 after converting the BGRA8 upload", c.Pipelines())
	}
	if _, err := c.Upload(4, 2, gputypes.TextureFormatRGBA16Float, pix); !errors.Is(err, compositor.ErrUnsupportedFormat) {
		t.Errorf("Upload(RGBA16Float) error = %v, want ErrUnsupportedFormat", err)
	}
	if _, err := c.Upload(4, 2, gputypes.TextureFormatRGBA8Unorm, pix[:3]); err == nil {
		t.Error("Upload() with short buffer should fail")
	}
}

func TestClosedConverter(t *testing.T) {
	device, queue := createNoopDevice(t)
	c := New(device, queue)
	tex := createTexture(t, c, 2, 2, gputypes.TextureFormatRGBA8Unorm)
	c.Close()
	c.Close()
	if _, err := c.ReadPixels(tex); !errors.Is(err, compositor.ErrClosed) {
		t.Errorf("ReadPixels() after Close error = %v, want ErrClosed", err)
	}
	if _, err := c.ReadPixels(&compositor.Texture{Format: gputypes.TextureFormatRGBA8Unorm}); err == nil {
		t.Error("ReadPixels() with nil raw texture should fail")
	}
}

func TestFromProvider(t *testing.T) {
	device, queue := createNoopDevice(t)
	c, err := FromProvider(fakeProvider{device: device, queue: queue})
	if err != nil {
		t.Fatalf("FromProvider() error = %v", err)
	}
	defer c.Close()
	if c.Device() != device || c.Queue() != queue {
		t.Error("FromProvider() did not keep the shared device")
	}

	if _, err := FromProvider(struct{}{}); err == nil {
		t.Error("FromProvider() should reject providers without HAL accessors")
	}
	if _, err := FromProvider(fakeProvider{}); err == nil {
		t.Error("FromProvider() should reject nil devices")
	}
}

type fakeProvider struct {
	device hal.Device
	queue  hal.Queue
}

func (p fakeProvider) HalDevice() any { return p.device }
func (p fakeProvider) HalQueue() any  { return p.queue }
