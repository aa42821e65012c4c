package scene

import (
	"errors"
	"fmt"
)

// Scene construction errors.
var (
	// ErrInvalidNode is returned when a NodeID does not refer to a node.
	ErrInvalidNode = errors.New("scene: invalid node")

	// ErrEmptySource is returned when an Image or Video node has no source.
	ErrEmptySource = errors.New("scene: leaf node has empty source id")

	// ErrCycle is returned when a node references itself or a later node.
	ErrCycle = errors.New("scene: node references itself or a later node")

	// ErrMultipleParents is returned when a node is the child of two layouts.
	ErrMultipleParents = errors.New("scene: node has more than one parent")

	// ErrDetachedNode is returned when a node is not reachable from the root.
	ErrDetachedNode = errors.New("scene: node not reachable from root")
)

// LayoutOptions configures a Layout node.
type LayoutOptions struct {
	// Position is the top-left offset of the layout box in output pixels.
	Position Position

	// Size is the layout box size. Zero components fill the output.
	Size Size

	// Align places the child inside the box when Mode leaves free space.
	Align Alignment

	// Mode controls how the child is rescaled into the box.
	Mode RescaleMode
}

// Builder accumulates nodes and produces immutable Scenes.
//
// Nodes can only reference nodes created earlier by the same Builder, which
// keeps every built Scene acyclic. A Builder may be reused: Build copies the
// nodes reachable from the requested root and renumbers them.
type Builder struct {
	nodes []Node
	err   error
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Image adds a still-image leaf.
func (b *Builder) Image(source SourceID) NodeID {
	return b.leaf(KindImage, source)
}

// Video adds a video-stream leaf.
func (b *Builder) Video(source SourceID) NodeID {
	return b.leaf(KindVideo, source)
}

// Layout adds a node that places child according to opts.
func (b *Builder) Layout(child NodeID, opts LayoutOptions) NodeID {
	if child < 0 || int(child) >= len(b.nodes) {
		b.fail(fmt.Errorf("%w: layout child %d", ErrInvalidNode, child))
		return InvalidNode
	}
	return b.add(Node{
		Kind:     KindLayout,
		Child:    child,
		Position: opts.Position,
		Size:     opts.Size,
		Align:    opts.Align,
		Mode:     opts.Mode,
	})
}

// Build returns the scene rooted at root. The first error recorded while
// adding nodes is returned here.
func (b *Builder) Build(root NodeID) (*Scene, error) {
	if b.err != nil {
		return nil, b.err
	}
	if root < 0 || int(root) >= len(b.nodes) {
		return nil, fmt.Errorf("%w: root %d", ErrInvalidNode, root)
	}

	// Collect the root -> leaf chain, then renumber leaf first so that
	// children keep lower ids than their parents.
	var chain []NodeID
	for id := root; ; {
		chain = append(chain, id)
		n := b.nodes[id]
		if n.Kind.IsLeaf() {
			break
		}
		id = n.Child
	}

	nodes := make([]Node, len(chain))
	for i := range chain {
		n := b.nodes[chain[len(chain)-1-i]]
		if n.Kind == KindLayout {
			n.Child = NodeID(i - 1)
		}
		nodes[i] = n
	}

	s := &Scene{nodes: nodes, root: NodeID(len(nodes) - 1)}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// MustBuild is like Build but panics on error. It is intended for scenes
// defined as package-level values.
func (b *Builder) MustBuild(root NodeID) *Scene {
	s, err := b.Build(root)
	if err != nil {
		panic(err)
	}
	return s
}

func (b *Builder) leaf(kind Kind, source SourceID) NodeID {
	if source == "" {
		b.fail(fmt.Errorf("%w: %v node", ErrEmptySource, kind))
		return InvalidNode
	}
	return b.add(Node{Kind: kind, Source: source, Child: InvalidNode})
}

func (b *Builder) add(n Node) NodeID {
	b.nodes = append(b.nodes, n)
	return NodeID(len(b.nodes) - 1)
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}
