package soft

import (
	"image"

	"github.com/gogpu/compositor/scene"
)

// placement is where one leaf lands in an output.
type placement struct {
	source scene.SourceID
	dst    image.Rectangle // on the output, already clipped
	src    image.Rectangle // region of the source picture
}

// place resolves s for an output of outW x outH pixels. srcSize reports the
// picture size of a source. It returns false when nothing is visible.
//
// Each Layout's box is relative to the box of the Layout above it; the
// innermost Layout rescales the leaf into its box and clips it there. A
// leaf without a Layout is drawn at its native size at the origin.
func place(s *scene.Scene, outW, outH int, srcSize func(scene.SourceID) (int, int)) (placement, bool) {
	if s.IsEmpty() {
		return placement{}, false
	}
	leafID, layouts, err := s.Leaf(s.Root())
	if err != nil {
		return placement{}, false
	}
	leaf, _ := s.Node(leafID)
	sw, sh := srcSize(leaf.Source)
	if sw <= 0 || sh <= 0 {
		return placement{}, false
	}

	clip := image.Rect(0, 0, outW, outH)
	dst := image.Rect(0, 0, sw, sh)
	if len(layouts) > 0 {
		box := clip
		for _, l := range layouts {
			box = l.Box(box.Dx(), box.Dy()).Add(box.Min).Intersect(box)
		}
		inner := layouts[len(layouts)-1]
		dst = inner.Place(box, sw, sh)
		clip = box
	}

	vis := dst.Intersect(clip)
	if vis.Empty() || dst.Empty() {
		return placement{}, false
	}

	// Map the visible part back into source pixels.
	sx := float64(sw) / float64(dst.Dx())
	sy := float64(sh) / float64(dst.Dy())
	src := image.Rect(
		int(float64(vis.Min.X-dst.Min.X)*sx),
		int(float64(vis.Min.Y-dst.Min.Y)*sy),
		int(float64(vis.Max.X-dst.Min.X)*sx+0.5),
		int(float64(vis.Max.Y-dst.Min.Y)*sy+0.5),
	).Intersect(image.Rect(0, 0, sw, sh))
	if src.Empty() {
		return placement{}, false
	}
	return placement{source: leaf.Source, dst: vis, src: src}, true
}
