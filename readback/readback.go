// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package readback turns GPU render targets into CPU pixel buffers.
//
// A Converter first makes a texture copyable, rendering it through a
// pass-through shader into an RGBA8 target when its format cannot be copied
// directly, then copies it to a staging buffer with 256-byte aligned rows
// and strips the padding. Image encoders assume sRGB data, so the default
// conversion target is RGBA8UnormSrgb.
package readback

import (
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/compositor"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Converter performs format conversion and readback on one device.
// It is safe for concurrent use; GPU work is serialized.
type Converter struct {
	device hal.Device
	queue  hal.Queue
	opts   options

	// Set when the Converter opened the device itself.
	instance hal.Instance
	owned    bool

	mu         sync.Mutex
	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	sampler    hal.Sampler
	pipelines  map[gputypes.TextureFormat]hal.RenderPipeline
	closed     bool
}

// New creates a Converter on an existing device and queue. The device is
// not destroyed by Close.
func New(device hal.Device, queue hal.Queue, opts ...Option) *Converter {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Converter{
		device:    device,
		queue:     queue,
		opts:      o,
		pipelines: make(map[gputypes.TextureFormat]hal.RenderPipeline),
	}
}

// TargetFormat returns the format non-copyable textures are converted to.
func (c *Converter) TargetFormat() gputypes.TextureFormat {
	return c.opts.target
}

// Device returns the underlying device.
func (c *Converter) Device() hal.Device { return c.device }

// Queue returns the underlying queue.
func (c *Converter) Queue() hal.Queue { return c.queue }

// EnsureCopyable returns tex unchanged when its format is directly
// copyable. Otherwise it renders tex into a new texture of the target
// format and returns that; the caller releases it with Release.
//
// It fails with compositor.ErrUnsupportedFormat for formats that cannot be
// sampled as filterable float data.
func (c *Converter) EnsureCopyable(tex *compositor.Texture) (*compositor.Texture, error) {
	if tex == nil || tex.Raw == nil {
		return nil, fmt.Errorf("ensure copyable: nil texture")
	}
	if IsCopyable(tex.Format) {
		return tex, nil
	}
	if !IsConvertible(tex.Format) {
		return nil, fmt.Errorf("ensure copyable: format %v: %w", tex.Format, compositor.ErrUnsupportedFormat)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, compositor.ErrClosed
	}

	pipeline, err := c.pipelineLocked(c.opts.target)
	if err != nil {
		return nil, fmt.Errorf("ensure copyable: %w", err)
	}
	dst, err := c.convertLocked(tex, pipeline)
	if err != nil {
		return nil, fmt.Errorf("ensure copyable: %w", err)
	}
	compositor.Logger().Debug("readback: converted texture",
		"from", tex.Format, "to", dst.Format, "width", tex.Width, "height", tex.Height)
	return dst, nil
}

func (c *Converter) convertLocked(src *compositor.Texture, pipeline hal.RenderPipeline) (*compositor.Texture, error) {
	target := c.opts.target
	dstTex, err := c.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "readback_convert_target",
		Size:          hal.Extent3D{Width: src.Width, Height: src.Height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        target,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc | gputypes.TextureUsageTextureBinding,
	})
	if err != nil {
		return nil, fmt.Errorf("create target texture: %w", err)
	}
	ok := false
	defer func() {
		if !ok {
			c.device.DestroyTexture(dstTex)
		}
	}()

	srcView, err := c.device.CreateTextureView(src.Raw, &hal.TextureViewDescriptor{
		Label:         "readback_convert_src_view",
		Format:        src.Format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("create source view: %w", err)
	}
	defer c.device.DestroyTextureView(srcView)

	dstView, err := c.device.CreateTextureView(dstTex, &hal.TextureViewDescriptor{
		Label:         "readback_convert_target_view",
		Format:        target,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("create target view: %w", err)
	}
	defer c.device.DestroyTextureView(dstView)

	bindGroup, err := c.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "readback_convert_bind",
		Layout: c.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.TextureViewBinding{TextureView: gputypes.TextureViewHandle(srcView.NativeHandle())}},
			{Binding: 1, Resource: gputypes.SamplerBinding{Sampler: gputypes.SamplerHandle(c.sampler.NativeHandle())}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create bind group: %w", err)
	}
	defer c.device.DestroyBindGroup(bindGroup)

	encoder, err := c.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "readback_convert_encoder"})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("readback_convert"); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "readback_convert_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       dstView,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: 0, G: 0, B: 0, A: 0},
		}},
	})
	rp.SetPipeline(pipeline)
	rp.SetBindGroup(0, bindGroup, nil)
	rp.Draw(3, 1, 0, 0)
	rp.End()

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	defer c.device.FreeCommandBuffer(cmdBuf)

	if err := c.submitAndWait(cmdBuf); err != nil {
		return nil, err
	}

	ok = true
	return &compositor.Texture{Raw: dstTex, Format: target, Width: src.Width, Height: src.Height}, nil
}

// ReadPixels copies a copyable texture to the CPU and returns its pixels as
// a tight width*height*4 RGBA8 buffer.
//
// It fails with compositor.ErrUnsupportedFormat if tex is not copyable and
// with compositor.ErrMapping if the staging buffer cannot be read.
func (c *Converter) ReadPixels(tex *compositor.Texture) ([]byte, error) {
	if tex == nil || tex.Raw == nil {
		return nil, fmt.Errorf("read pixels: nil texture")
	}
	if !IsCopyable(tex.Format) {
		return nil, fmt.Errorf("read pixels: format %v: %w", tex.Format, compositor.ErrUnsupportedFormat)
	}
	if tex.Width == 0 || tex.Height == 0 {
		return []byte{}, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, compositor.ErrClosed
	}

	w, h := tex.Width, tex.Height
	stride := PaddedBytesPerRow(w)
	stagingSize := uint64(stride) * uint64(h)

	staging, err := c.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "readback_staging",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("read pixels: create staging buffer: %w", err)
	}
	defer c.device.DestroyBuffer(staging)

	encoder, err := c.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "readback_copy_encoder"})
	if err != nil {
		return nil, fmt.Errorf("read pixels: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("readback_copy"); err != nil {
		return nil, fmt.Errorf("read pixels: begin encoding: %w", err)
	}

	// Render targets sit in the attachment layout; the copy needs the
	// transfer-source layout.
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: tex.Raw,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	encoder.CopyTextureToBuffer(tex.Raw, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: stride, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: tex.Raw, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: tex.Raw,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("read pixels: end encoding: %w", err)
	}
	defer c.device.FreeCommandBuffer(cmdBuf)

	if err := c.submitAndWait(cmdBuf); err != nil {
		return nil, fmt.Errorf("read pixels: %w", err)
	}

	padded := make([]byte, stagingSize)
	if err := c.queue.ReadBuffer(staging, 0, padded); err != nil {
		return nil, fmt.Errorf("read pixels: %w: %w", compositor.ErrMapping, err)
	}
	compositor.Logger().Debug("readback: read pixels",
		"width", w, "height", h, "stride", stride, "staging_bytes", stagingSize)
	return StripPadding(padded, w, h, stride), nil
}

// ToImage converts tex if needed, reads it back and wraps the pixels in an
// image.RGBA. Intermediate textures are released before returning.
func (c *Converter) ToImage(tex *compositor.Texture) (*image.RGBA, error) {
	copyable, err := c.EnsureCopyable(tex)
	if err != nil {
		return nil, err
	}
	if copyable != tex {
		defer c.Release(copyable)
	}
	pix, err := c.ReadPixels(copyable)
	if err != nil {
		return nil, err
	}
	w, h := int(copyable.Width), int(copyable.Height)
	return &image.RGBA{Pix: pix, Stride: w * bytesPerPixel, Rect: image.Rect(0, 0, w, h)}, nil
}

// Release destroys a texture created by EnsureCopyable or Upload.
func (c *Converter) Release(tex *compositor.Texture) {
	if tex == nil || tex.Raw == nil {
		return
	}
	c.device.DestroyTexture(tex.Raw)
	tex.Raw = nil
}

// submitAndWait submits cmdBuf and blocks until the GPU signals the fence.
func (c *Converter) submitAndWait(cmdBuf hal.CommandBuffer) error {
	fence, err := c.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer c.device.DestroyFence(fence)

	if err := c.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	fenceOK, err := c.device.Wait(fence, 1, c.opts.timeout)
	if err != nil {
		return fmt.Errorf("%w: wait for GPU: %w", compositor.ErrMapping, err)
	}
	if !fenceOK {
		return fmt.Errorf("%w: wait for GPU: timed out after %v", compositor.ErrMapping, c.opts.timeout)
	}
	return nil
}

// pipelineLocked returns the cached conversion pipeline for target,
// creating the shared objects on first use.
func (c *Converter) pipelineLocked(target gputypes.TextureFormat) (hal.RenderPipeline, error) {
	if p, ok := c.pipelines[target]; ok {
		return p, nil
	}
	if err := c.initSharedLocked(); err != nil {
		return nil, err
	}

	pipeline, err := c.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "readback_convert_pipeline",
		Layout: c.pipeLayout,
		Vertex: hal.VertexState{
			Module:     c.shader,
			EntryPoint: "vs_main",
		},
		Fragment: &hal.FragmentState{
			Module:     c.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{{
				Format:    target,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create render pipeline: %w", err)
	}
	c.pipelines[target] = pipeline
	return pipeline, nil
}

func (c *Converter) initSharedLocked() error {
	if c.shader != nil {
		return nil
	}

	source, err := shaderSource(c.opts.spirv)
	if err != nil {
		return err
	}
	shader, err := c.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "readback_convert",
		Source: source,
	})
	if err != nil {
		return fmt.Errorf("create shader module: %w", err)
	}

	bindLayout, err := c.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "readback_convert_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		c.device.DestroyShaderModule(shader)
		return fmt.Errorf("create bind group layout: %w", err)
	}

	pipeLayout, err := c.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "readback_convert_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{bindLayout},
	})
	if err != nil {
		c.device.DestroyBindGroupLayout(bindLayout)
		c.device.DestroyShaderModule(shader)
		return fmt.Errorf("create pipeline layout: %w", err)
	}

	sampler, err := c.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "readback_convert_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeLinear,
	})
	if err != nil {
		c.device.DestroyPipelineLayout(pipeLayout)
		c.device.DestroyBindGroupLayout(bindLayout)
		c.device.DestroyShaderModule(shader)
		return fmt.Errorf("create sampler: %w", err)
	}

	c.shader, c.bindLayout, c.pipeLayout, c.sampler = shader, bindLayout, pipeLayout, sampler
	return nil
}

// Close destroys the cached pipelines, and the device if the Converter
// opened it. Close is idempotent.
func (c *Converter) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true

	for f, p := range c.pipelines {
		c.device.DestroyRenderPipeline(p)
		delete(c.pipelines, f)
	}
	if c.sampler != nil {
		c.device.DestroySampler(c.sampler)
	}
	if c.pipeLayout != nil {
		c.device.DestroyPipelineLayout(c.pipeLayout)
	}
	if c.bindLayout != nil {
		c.device.DestroyBindGroupLayout(c.bindLayout)
	}
	if c.shader != nil {
		c.device.DestroyShaderModule(c.shader)
	}
	c.sampler, c.pipeLayout, c.bindLayout, c.shader = nil, nil, nil, nil

	if c.owned {
		c.device.Destroy()
		if c.instance != nil {
			c.instance.Destroy()
		}
	}
}

// Pipelines returns how many conversion pipelines are cached.
func (c *Converter) Pipelines() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pipelines)
}
