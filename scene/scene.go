// Package scene describes what a compositor output renders.
//
// A Scene is an immutable arena of nodes addressed by NodeID with a single
// root. Leaves reference registered sources (a still image or a video
// stream); Layout nodes place exactly one child inside the output frame.
// Because a node can only reference nodes created before it, a Scene is a
// tree by construction and never contains cycles.
//
// Scenes are built with Builder and are safe to share between goroutines
// and between outputs:
//
//	b := scene.NewBuilder()
//	video := b.Video("mp4_input")
//	root := b.Layout(video, scene.LayoutOptions{Mode: scene.ModeFill})
//	s, err := b.Build(root)
package scene

import (
	"fmt"
	"strings"
)

// NodeID is the index of a node inside its Scene.
type NodeID int32

// InvalidNode is the NodeID returned for missing nodes.
const InvalidNode NodeID = -1

// SourceID names an image or video source registered with the engine.
type SourceID string

// Kind identifies the variant stored in a Node.
type Kind uint8

const (
	// KindImage renders a registered still image.
	KindImage Kind = iota + 1

	// KindVideo renders the current frame of a registered video stream.
	KindVideo

	// KindLayout positions and rescales a single child.
	KindLayout
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindImage:
		return "Image"
	case KindVideo:
		return "Video"
	case KindLayout:
		return "Layout"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// IsLeaf reports whether nodes of this kind render pixels themselves.
func (k Kind) IsLeaf() bool {
	return k == KindImage || k == KindVideo
}

// Node is one element of a Scene. Only the fields relevant to Kind are set.
type Node struct {
	Kind Kind

	// Source is set for KindImage and KindVideo.
	Source SourceID

	// Child is set for KindLayout.
	Child NodeID

	// Layout parameters, set for KindLayout.
	Position Position
	Size     Size
	Align    Alignment
	Mode     RescaleMode
}

// Scene is an immutable scene graph. The zero value and Empty() are the
// placeholder scene, which renders transparent black.
type Scene struct {
	nodes []Node
	root  NodeID
}

var empty = &Scene{root: InvalidNode}

// Empty returns the placeholder scene with no nodes.
func Empty() *Scene {
	return empty
}

// IsEmpty reports whether the scene renders nothing.
func (s *Scene) IsEmpty() bool {
	return s == nil || len(s.nodes) == 0
}

// Len returns the number of nodes in the scene.
func (s *Scene) Len() int {
	if s == nil {
		return 0
	}
	return len(s.nodes)
}

// Root returns the root node, or InvalidNode for an empty scene.
func (s *Scene) Root() NodeID {
	if s.IsEmpty() {
		return InvalidNode
	}
	return s.root
}

// Node returns the node with the given id.
func (s *Scene) Node(id NodeID) (Node, bool) {
	if s == nil || id < 0 || int(id) >= len(s.nodes) {
		return Node{}, false
	}
	return s.nodes[id], true
}

// Leaf follows the Layout chain starting at id and returns the renderable
// leaf it resolves to, together with the layouts crossed from the outermost
// to the innermost.
func (s *Scene) Leaf(id NodeID) (NodeID, []Node, error) {
	var layouts []Node
	for {
		n, ok := s.Node(id)
		if !ok {
			return InvalidNode, nil, fmt.Errorf("%w: %d", ErrInvalidNode, id)
		}
		if n.Kind.IsLeaf() {
			return id, layouts, nil
		}
		if n.Kind != KindLayout {
			return InvalidNode, nil, fmt.Errorf("%w: node %d has kind %v", ErrInvalidNode, id, n.Kind)
		}
		if n.Child >= id {
			return InvalidNode, nil, fmt.Errorf("%w: node %d", ErrCycle, id)
		}
		layouts = append(layouts, n)
		id = n.Child
	}
}

// Sources returns the distinct sources referenced by the scene in node order.
func (s *Scene) Sources() []SourceID {
	if s.IsEmpty() {
		return nil
	}
	seen := make(map[SourceID]struct{}, len(s.nodes))
	var out []SourceID
	for _, n := range s.nodes {
		if !n.Kind.IsLeaf() {
			continue
		}
		if _, ok := seen[n.Source]; ok {
			continue
		}
		seen[n.Source] = struct{}{}
		out = append(out, n.Source)
	}
	return out
}

// Clone returns a copy of the scene. Since scenes are immutable this is only
// needed when a caller wants to derive a new scene from an existing one.
func (s *Scene) Clone() *Scene {
	if s.IsEmpty() {
		return Empty()
	}
	nodes := make([]Node, len(s.nodes))
	copy(nodes, s.nodes)
	return &Scene{nodes: nodes, root: s.root}
}

// Validate checks the tree invariants: references point to earlier nodes,
// no node has two parents, every node is reachable from the root, and every
// Layout resolves to exactly one leaf.
func (s *Scene) Validate() error {
	if s.IsEmpty() {
		return nil
	}
	if s.root < 0 || int(s.root) >= len(s.nodes) {
		return fmt.Errorf("%w: root %d", ErrInvalidNode, s.root)
	}

	parents := make([]int, len(s.nodes))
	for i, n := range s.nodes {
		switch n.Kind {
		case KindImage, KindVideo:
			if n.Source == "" {
				return fmt.Errorf("%w: node %d", ErrEmptySource, i)
			}
		case KindLayout:
			if n.Child < 0 || int(n.Child) >= i {
				return fmt.Errorf("%w: node %d references %d", ErrCycle, i, n.Child)
			}
			parents[n.Child]++
			if parents[n.Child] > 1 {
				return fmt.Errorf("%w: node %d", ErrMultipleParents, n.Child)
			}
		default:
			return fmt.Errorf("%w: node %d has kind %v", ErrInvalidNode, i, n.Kind)
		}
	}

	// A valid tree rooted at root has exactly one path root -> leaf, so the
	// chain must visit every node.
	_, layouts, err := s.Leaf(s.root)
	if err != nil {
		return err
	}
	if len(layouts)+1 != len(s.nodes) {
		return fmt.Errorf("%w: %d of %d nodes reachable", ErrDetachedNode, len(layouts)+1, len(s.nodes))
	}
	return nil
}

// String returns a compact description such as "Layout(Fill)>Video(mp4_input)".
func (s *Scene) String() string {
	if s.IsEmpty() {
		return "Empty"
	}
	leaf, layouts, err := s.Leaf(s.root)
	if err != nil {
		return "Invalid"
	}
	var sb strings.Builder
	for _, l := range layouts {
		fmt.Fprintf(&sb, "Layout(%v)>", l.Mode)
	}
	n := s.nodes[leaf]
	fmt.Fprintf(&sb, "%v(%s)", n.Kind, n.Source)
	return sb.String()
}
