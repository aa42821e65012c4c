package readback

import "github.com/gogpu/gputypes"

// CopyPitchAlignment is the row alignment required for texture to buffer
// copies.
const CopyPitchAlignment = 256

// bytesPerPixel of every copyable format.
const bytesPerPixel = 4

// IsCopyable reports whether textures of format f can be copied to a buffer
// and read back as RGBA8 without conversion.
func IsCopyable(f gputypes.TextureFormat) bool {
	switch f {
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatRGBA8UnormSrgb:
		return true
	default:
		return false
	}
}

// IsConvertible reports whether a shader pass can sample textures of format
// f into a copyable target: every format that samples as filterable float.
// Depth, stencil, integer and 32-bit float formats are not convertible.
func IsConvertible(f gputypes.TextureFormat) bool {
	if IsCopyable(f) {
		return true
	}
	if f.IsDepthStencil() {
		return false
	}
	if f >= gputypes.TextureFormatBC1RGBAUnorm && f <= gputypes.TextureFormatASTC12x12UnormSrgb {
		return true
	}
	switch f {
	case gputypes.TextureFormatR8Unorm, gputypes.TextureFormatR8Snorm,
		gputypes.TextureFormatR16Unorm, gputypes.TextureFormatR16Snorm, gputypes.TextureFormatR16Float,
		gputypes.TextureFormatRG8Unorm, gputypes.TextureFormatRG8Snorm,
		gputypes.TextureFormatRG16Unorm, gputypes.TextureFormatRG16Snorm, gputypes.TextureFormatRG16Float,
		gputypes.TextureFormatRGBA8Snorm,
		gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatBGRA8UnormSrgb,
		gputypes.TextureFormatRGB10A2Unorm, gputypes.TextureFormatRG11B10Ufloat, gputypes.TextureFormatRGB9E5Ufloat,
		gputypes.TextureFormatRGBA16Unorm, gputypes.TextureFormatRGBA16Snorm, gputypes.TextureFormatRGBA16Float:
		return true
	default:
		return false
	}
}

// IsUploadable reports whether Converter.Upload accepts format f.
func IsUploadable(f gputypes.TextureFormat) bool {
	switch f {
	case gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatBGRA8UnormSrgb:
		return true
	default:
		return IsCopyable(f)
	}
}

// BGRAFor returns the BGRA8 format with the same color encoding as the
// copyable format target.
func BGRAFor(target gputypes.TextureFormat) gputypes.TextureFormat {
	if target.IsSrgb() {
		return gputypes.TextureFormatBGRA8UnormSrgb
	}
	return gputypes.TextureFormatBGRA8Unorm
}

// SwapRedBlue returns a copy of 4-byte pixels with the first and third
// channel exchanged, converting between RGBA8 and BGRA8 layouts.
func SwapRedBlue(pixels []byte) []byte {
	out := make([]byte, len(pixels))
	for i := 0; i+3 < len(pixels); i += 4 {
		out[i], out[i+1], out[i+2], out[i+3] = pixels[i+2], pixels[i+1], pixels[i], pixels[i+3]
	}
	return out
}

// PaddedBytesPerRow returns the buffer stride used to copy a row of width
// RGBA8 pixels: width*4 rounded up to CopyPitchAlignment.
func PaddedBytesPerRow(width uint32) uint32 {
	unpadded := width * bytesPerPixel
	return (unpadded + CopyPitchAlignment - 1) &^ (CopyPitchAlignment - 1)
}

// StripPadding copies the first width*4 bytes of each padded row of src into
// a tight width*height*4 buffer.
func StripPadding(src []byte, width, height, paddedStride uint32) []byte {
	tight := width * bytesPerPixel
	dst := make([]byte, int(tight)*int(height))
	if tight == paddedStride {
		copy(dst, src)
		return dst
	}
	for y := uint32(0); y < height; y++ {
		srcOff := int(y) * int(paddedStride)
		dstOff := int(y) * int(tight)
		copy(dst[dstOff:dstOff+int(tight)], src[srcOff:srcOff+int(tight)])
	}
	return dst
}
