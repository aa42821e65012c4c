// Package snapshot encodes frames as still images.
package snapshot

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/gogpu/compositor"
)

// ErrUnknownFormat is returned for file extensions without an encoder.
var ErrUnknownFormat = errors.New("snapshot: unknown image format")

// Format is a still image encoding.
type Format uint8

const (
	PNG Format = iota
	BMP
	TIFF
)

// String returns the string representation of Format.
func (f Format) String() string {
	switch f {
	case PNG:
		return "png"
	case BMP:
		return "bmp"
	case TIFF:
		return "tiff"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return PNG, nil
	case ".bmp":
		return BMP, nil
	case ".tif", ".tiff":
		return TIFF, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, filepath.Ext(path))
	}
}

// Encode writes img to w in format f.
func Encode(w io.Writer, f Format, img image.Image) error {
	switch f {
	case PNG:
		return png.Encode(w, img)
	case BMP:
		return bmp.Encode(w, img)
	case TIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return fmt.Errorf("%w: %v", ErrUnknownFormat, f)
	}
}

// Write encodes img to path, replacing an existing file. The format follows
// the extension.
func Write(path string, img image.Image) (err error) {
	f, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("snapshot %s: %w: %w", path, compositor.ErrFileIO, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("snapshot %s: %w: %w", path, compositor.ErrFileIO, cerr)
		}
	}()

	bw := bufio.NewWriter(file)
	if err := Encode(bw, f, img); err != nil {
		return fmt.Errorf("snapshot %s: encode %v: %w: %w", path, f, compositor.ErrFileIO, err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("snapshot %s: %w: %w", path, compositor.ErrFileIO, err)
	}
	compositor.Logger().Info("snapshot written", "path", path, "format", f, "size", img.Bounds().Size())
	return nil
}

// WriteFrame writes a CPU frame to path. GPU frames must be read back first.
func WriteFrame(path string, frame compositor.Frame) error {
	img, ok := frame.Image()
	if !ok {
		return fmt.Errorf("snapshot %s: frame %d has no CPU pixels", path, frame.Seq)
	}
	return Write(path, img)
}
