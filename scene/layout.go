package scene

import (
	"fmt"
	"image"
	"math"
)

// Position is an offset from the top-left corner of the output, in pixels.
type Position struct {
	X, Y float64
}

// Size is a box size in pixels. A zero component means "fill the output".
type Size struct {
	Width, Height float64
}

// RescaleMode controls how content is scaled into a layout box.
type RescaleMode uint8

const (
	// ModeFit scales content to fit inside the box, preserving aspect ratio.
	ModeFit RescaleMode = iota

	// ModeFill scales content to cover the box, preserving aspect ratio.
	// Content outside the box is clipped.
	ModeFill

	// ModeStretch scales content to exactly the box size.
	ModeStretch
)

// String returns the string representation of RescaleMode.
func (m RescaleMode) String() string {
	switch m {
	case ModeFit:
		return "Fit"
	case ModeFill:
		return "Fill"
	case ModeStretch:
		return "Stretch"
	default:
		return fmt.Sprintf("RescaleMode(%d)", int(m))
	}
}

// Alignment places content inside a box along both axes.
type Alignment uint8

const (
	AlignCenter Alignment = iota
	AlignTopLeft
	AlignTop
	AlignTopRight
	AlignLeft
	AlignRight
	AlignBottomLeft
	AlignBottom
	AlignBottomRight
)

// factors returns the horizontal and vertical placement of content inside
// free space: 0 is start, 0.5 is center, 1 is end.
func (a Alignment) factors() (fx, fy float64) {
	switch a {
	case AlignTopLeft:
		return 0, 0
	case AlignTop:
		return 0.5, 0
	case AlignTopRight:
		return 1, 0
	case AlignLeft:
		return 0, 0.5
	case AlignRight:
		return 1, 0.5
	case AlignBottomLeft:
		return 0, 1
	case AlignBottom:
		return 0.5, 1
	case AlignBottomRight:
		return 1, 1
	default:
		return 0.5, 0.5
	}
}

// Box returns the layout box of n inside an output of the given size.
func (n Node) Box(outW, outH int) image.Rectangle {
	w, h := n.Size.Width, n.Size.Height
	if w <= 0 {
		w = float64(outW)
	}
	if h <= 0 {
		h = float64(outH)
	}
	x0, y0 := n.Position.X, n.Position.Y
	return image.Rect(
		int(math.Round(x0)), int(math.Round(y0)),
		int(math.Round(x0+w)), int(math.Round(y0+h)),
	)
}

// Place returns the destination rectangle for content of size srcW x srcH
// laid out by n inside box. The result may extend past box for ModeFill;
// callers clip to box.
func (n Node) Place(box image.Rectangle, srcW, srcH int) image.Rectangle {
	bw, bh := float64(box.Dx()), float64(box.Dy())
	if srcW <= 0 || srcH <= 0 || bw <= 0 || bh <= 0 {
		return image.Rectangle{Min: box.Min, Max: box.Min}
	}

	sx, sy := bw/float64(srcW), bh/float64(srcH)
	w, h := bw, bh
	switch n.Mode {
	case ModeFit:
		s := math.Min(sx, sy)
		w, h = float64(srcW)*s, float64(srcH)*s
	case ModeFill:
		s := math.Max(sx, sy)
		w, h = float64(srcW)*s, float64(srcH)*s
	}

	fx, fy := n.Align.factors()
	x := float64(box.Min.X) + (bw-w)*fx
	y := float64(box.Min.Y) + (bh-h)*fy
	return image.Rect(
		int(math.Round(x)), int(math.Round(y)),
		int(math.Round(x+w)), int(math.Round(y+h)),
	)
}
