// Package record writes frames to YUV4MPEG2 (.y4m) video files.
//
// Y4M is an uncompressed container understood by ffmpeg, mpv and most
// encoders, so recordings can be transcoded to H.264 offline.
package record

import (
	"bufio"
	"errors"
	"fmt"
	"image/color"
	"os"

	"github.com/gogpu/compositor"
)

// ErrFrameSize is returned when a frame's pixel buffer does not match the
// writer's resolution.
var ErrFrameSize = errors.New("record: frame size mismatch")

// Writer encodes RGBA8 frames as 4:2:0 Y4M.
type Writer struct {
	path   string
	file   *os.File
	bw     *bufio.Writer
	width  int
	height int
	frames int

	y, cb, cr []byte
}

// Create creates or truncates path and writes the stream header.
func Create(path string, width, height, fps int) (*Writer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("record %s: invalid size %dx%d", path, width, height)
	}
	if fps <= 0 {
		return nil, fmt.Errorf("record %s: invalid framerate %d", path, fps)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w: %w", path, compositor.ErrFileIO, err)
	}
	w := &Writer{
		path:   path,
		file:   file,
		bw:     bufio.NewWriterSize(file, 1<<20),
		width:  width,
		height: height,
	}
	cw, ch := w.chromaSize()
	w.y = make([]byte, width*height)
	w.cb = make([]byte, cw*ch)
	w.cr = make([]byte, cw*ch)

	if _, err := fmt.Fprintf(w.bw, "YUV4MPEG2 W%d H%d F%d:1 Ip A1:1 C420jpeg\n", width, height, fps); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("record %s: %w: %w", path, compositor.ErrFileIO, err)
	}
	return w, nil
}

func (w *Writer) chromaSize() (int, int) {
	return (w.width + 1) / 2, (w.height + 1) / 2
}

// Frames returns how many frames were written.
func (w *Writer) Frames() int { return w.frames }

// Path returns the destination file.
func (w *Writer) Path() string { return w.path }

// WriteFrame appends one tight RGBA8 frame.
func (w *Writer) WriteFrame(pix []byte) error {
	if len(pix) != w.width*w.height*4 {
		return fmt.Errorf("%w: got %d bytes for %dx%d", ErrFrameSize, len(pix), w.width, w.height)
	}
	w.convert(pix)

	if _, err := w.bw.WriteString("FRAME\n"); err != nil {
		return fmt.Errorf("record %s: %w: %w", w.path, compositor.ErrFileIO, err)
	}
	for _, plane := range [][]byte{w.y, w.cb, w.cr} {
		if _, err := w.bw.Write(plane); err != nil {
			return fmt.Errorf("record %s: %w: %w", w.path, compositor.ErrFileIO, err)
		}
	}
	w.frames++
	return nil
}

// convert fills the planes from pix. Chroma is averaged over 2x2 blocks;
// alpha is ignored.
func (w *Writer) convert(pix []byte) {
	cw, _ := w.chromaSize()
	sumCb := make([]int, len(w.cb))
	sumCr := make([]int, len(w.cr))
	count := make([]int, len(w.cb))

	for y := 0; y < w.height; y++ {
		row := pix[y*w.width*4:]
		for x := 0; x < w.width; x++ {
			r, g, b := row[x*4], row[x*4+1], row[x*4+2]
			yy, cb, cr := color.RGBToYCbCr(r, g, b)
			w.y[y*w.width+x] = yy
			ci := (y/2)*cw + x/2
			sumCb[ci] += int(cb)
			sumCr[ci] += int(cr)
			count[ci]++
		}
	}
	for i := range w.cb {
		w.cb[i] = byte(sumCb[i] / count[i])
		w.cr[i] = byte(sumCr[i] / count[i])
	}
}

// Close flushes buffered frames and closes the file. A recording is only
// valid after Close returns nil.
func (w *Writer) Close() error {
	if w.file == nil {
		return nil
	}
	ferr := w.bw.Flush()
	cerr := w.file.Close()
	w.file = nil
	if err := errors.Join(ferr, cerr); err != nil {
		return fmt.Errorf("record %s: %w: %w", w.path, compositor.ErrFileIO, err)
	}
	compositor.Logger().Info("recording finalized", "path", w.path, "frames", w.frames)
	return nil
}
