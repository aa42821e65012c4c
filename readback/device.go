// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package readback

import (
	"errors"
	"fmt"

	"github.com/gogpu/compositor"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// ErrNoAdapter is returned by OpenDevice when no GPU adapter is available.
var ErrNoAdapter = errors.New("readback: no GPU adapter")

// OpenDevice opens a Vulkan device, preferring discrete and integrated GPUs,
// and returns a Converter that owns it.
func OpenDevice(opts ...Option) (*Converter, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("open device: vulkan backend not available: %w", ErrNoAdapter)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("open device: create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("open device: %w", ErrNoAdapter)
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open device: %w", err)
	}

	c := New(openDev.Device, openDev.Queue, opts...)
	c.instance = instance
	c.owned = true
	compositor.Logger().Info("readback: device opened", "adapter", selected.Info.Name)
	return c, nil
}

// FromProvider returns a Converter on a device shared by provider, which
// must expose HalDevice() any and HalQueue() any returning hal.Device and
// hal.Queue (as gogpu's GPU context provider does). The shared device is
// not destroyed by Close.
func FromProvider(provider any, opts ...Option) (*Converter, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("readback: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("readback: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("readback: provider HalQueue is not hal.Queue")
	}
	return New(device, queue, opts...), nil
}
