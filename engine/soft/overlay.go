package soft

import (
	"fmt"
	"image"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// formatTimecode renders d as HH:MM:SS.mmm.
func formatTimecode(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, d/time.Millisecond)
}

// drawTimecode writes the timecode into the bottom-left corner of img on a
// black backing box.
func drawTimecode(img *image.RGBA, pts time.Duration) {
	face := basicfont.Face7x13
	text := formatTimecode(pts)
	const pad = 4

	b := img.Bounds()
	width := font.MeasureString(face, text).Ceil()
	box := image.Rect(b.Min.X, b.Max.Y-face.Height-2*pad, b.Min.X+width+2*pad, b.Max.Y).Intersect(b)
	for y := box.Min.Y; y < box.Max.Y; y++ {
		row := img.Pix[img.PixOffset(box.Min.X, y):img.PixOffset(box.Max.X, y)]
		for i := 0; i < len(row); i += 4 {
			row[i], row[i+1], row[i+2], row[i+3] = 0, 0, 0, 255
		}
	}

	d := font.Drawer{
		Dst:  img,
		Src:  image.White,
		Face: face,
		Dot:  fixed.P(b.Min.X+pad, b.Max.Y-pad-face.Descent),
	}
	d.DrawString(text)
}
