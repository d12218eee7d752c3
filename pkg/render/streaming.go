package render

import (
	"bytes"

	"github.com/raven-ui/raven/pkg/dom"
	"github.com/raven-ui/raven/pkg/vdom"
)

// DefaultChunkSize bounds a streamed chunk when none is configured.
const DefaultChunkSize = 8 * 1024

// StreamOptions configures streaming serialization.
type StreamOptions struct {
	// ChunkSize is the maximum chunk length in bytes.
	ChunkSize int

	// Suspend marks subtrees whose content is not yet available. A
	// marked subtree is replaced by a placeholder carrying a stable
	// marker; render the real content later with RenderReplacement
	// and splice it in at the marker.
	Suspend func(*vdom.VNode) bool
}

// Stream yields a tree's markup as size-bounded chunks in document
// order. It is a plain pull iterator: drive it from any scheduler, and
// abandon it between chunks at no cost, since chunk boundaries never
// split a node's emission mid-mutation.
type Stream struct {
	buf       []byte
	off       int
	size      int
	suspended []vdom.NodeID
	err       error
}

// Stream begins streaming serialization of node.
func (r *Renderer) Stream(node *vdom.VNode, opts StreamOptions) *Stream {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}

	s := &Stream{size: opts.ChunkSize}
	var suspend func(*vdom.VNode) bool
	if opts.Suspend != nil {
		suspend = func(v *vdom.VNode) bool {
			if opts.Suspend(v) {
				s.suspended = append(s.suspended, v.ID)
				return true
			}
			return false
		}
	}

	var buf bytes.Buffer
	lastText := false
	s.err = r.renderNode(&buf, node, suspend, &lastText)
	s.buf = buf.Bytes()
	return s
}

// Next returns the next chunk. The second result is false once the
// stream is exhausted (or failed; see Err).
func (s *Stream) Next() ([]byte, bool) {
	if s.err != nil || s.off >= len(s.buf) {
		return nil, false
	}
	end := s.off + s.size
	if end > len(s.buf) {
		end = len(s.buf)
	}
	chunk := s.buf[s.off:end]
	s.off = end
	return chunk, true
}

// Err reports a serialization failure, if any.
func (s *Stream) Err() error { return s.err }

// Suspended returns the identities of subtrees that were replaced by
// placeholders, in document order.
func (s *Stream) Suspended() []vdom.NodeID { return s.suspended }

// Replacement is the out-of-band content for one suspended subtree.
type Replacement struct {
	Marker string // Placeholder marker to target
	Markup string // Serialized subtree content
}

// RenderReplacement serializes a previously suspended subtree for
// splicing in at its placeholder marker.
func (r *Renderer) RenderReplacement(node *vdom.VNode) (Replacement, error) {
	markup, err := r.RenderToString(node)
	if err != nil {
		return Replacement{}, err
	}
	return Replacement{Marker: dom.MarkerFor(node.ID), Markup: markup}, nil
}
