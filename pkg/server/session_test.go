package server

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"

	"github.com/raven-ui/raven/pkg/dom"
	"github.com/raven-ui/raven/pkg/protocol"
	"github.com/raven-ui/raven/pkg/vdom"
)

// counter is the test component: a button that bumps a count and a
// span showing it.
type counter struct {
	clicks int
}

func (c *counter) Render() *vdom.VNode {
	return vdom.Element("div", vdom.NewProps(vdom.Attr("class", "counter")),
		vdom.Element("button",
			vdom.NewProps(vdom.On("click", func(vdom.Event) { c.clicks++ })),
			vdom.Text("+"),
		),
		vdom.Element("span", nil, vdom.Text(strconv.Itoa(c.clicks))),
	)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSession(t *testing.T) (*Session, *counter) {
	t.Helper()
	c := &counter{}
	s := newSession("test-session", c, testLogger(), NewMetrics(), otel.Tracer("test"))
	if err := s.Mount(); err != nil {
		t.Fatalf("mount: %v", err)
	}
	return s, c
}

// findByTag walks the mirror depth-first for the first element with
// the given tag.
func findByTag(n *dom.Node, tag string) *dom.Node {
	if n.Kind() == dom.NodeElement && n.Tag() == tag {
		return n
	}
	for _, child := range n.Children() {
		if found := findByTag(child, tag); found != nil {
			return found
		}
	}
	return nil
}

func clickToken(t *testing.T, s *Session) dom.HandlerToken {
	t.Helper()
	button := findByTag(s.mirror.Root(), "button")
	if button == nil {
		t.Fatal("no button in mirror")
	}
	tok, ok := button.Listener("click")
	if !ok {
		t.Fatal("button has no click listener")
	}
	return tok
}

func TestSessionMountBuildsMirror(t *testing.T) {
	s, _ := newTestSession(t)

	if s.tree == nil {
		t.Fatal("no tree after mount")
	}
	span := findByTag(s.mirror.Root(), "span")
	if span == nil {
		t.Fatal("mirror missing span")
	}
	if got := span.Children()[0].Text(); got != "0" {
		t.Errorf("span text = %q, want 0", got)
	}
}

func TestSessionEventUpdatesState(t *testing.T) {
	s, c := newTestSession(t)
	tok := clickToken(t, s)

	// No connection is attached; the push fails but the state
	// transition must still happen.
	s.HandleEvent(context.Background(), &protocol.EventFrame{
		Seq:   1,
		Token: uint64(tok),
		Name:  "click",
	})

	if c.clicks != 1 {
		t.Errorf("clicks = %d, want 1", c.clicks)
	}
	span := findByTag(s.mirror.Root(), "span")
	if got := span.Children()[0].Text(); got != "1" {
		t.Errorf("mirror span text = %q, want 1", got)
	}
}

func TestSessionUnknownTokenIsNonFatal(t *testing.T) {
	s, c := newTestSession(t)

	s.HandleEvent(context.Background(), &protocol.EventFrame{
		Token: 9999,
		Name:  "click",
	})

	if c.clicks != 0 {
		t.Errorf("clicks = %d after bad token", c.clicks)
	}
	if s.IsClosed() {
		t.Error("session closed by unknown token")
	}
}

func TestSessionHandlerPanicRecovered(t *testing.T) {
	boom := vdom.Func(func() *vdom.VNode {
		return vdom.Element("button",
			vdom.NewProps(vdom.On("click", func(vdom.Event) { panic("boom") })),
		)
	})
	s := newSession("panicky", boom, testLogger(), NewMetrics(), otel.Tracer("test"))
	if err := s.Mount(); err != nil {
		t.Fatal(err)
	}
	tok := clickToken(t, s)

	s.HandleEvent(context.Background(), &protocol.EventFrame{Token: uint64(tok), Name: "click"})

	if s.IsClosed() {
		t.Error("session closed by handler panic")
	}
}

func TestSessionRerenderYieldsMinimalPatches(t *testing.T) {
	s, c := newTestSession(t)

	c.clicks = 5
	patches, err := s.rerender()
	if err != nil {
		t.Fatal(err)
	}
	if len(patches) != 1 {
		t.Fatalf("patches = %d, want 1", len(patches))
	}
	if patches[0].Op != vdom.PatchUpdateText || patches[0].Text != "5" {
		t.Errorf("patch = %+v", patches[0])
	}

	// Rendering the same state again is a no-op.
	patches, err = s.rerender()
	if err != nil {
		t.Fatal(err)
	}
	if len(patches) != 0 {
		t.Errorf("steady-state patches = %d, want 0", len(patches))
	}
}

func TestSessionSnapshotRoundTrip(t *testing.T) {
	s, c := newTestSession(t)
	c.clicks = 3
	if _, err := s.rerender(); err != nil {
		t.Fatal(err)
	}

	snap, err := s.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if snap.SessionID != s.ID {
		t.Errorf("SessionID = %q", snap.SessionID)
	}
	if snap.Markup == "" {
		t.Error("empty markup")
	}

	tree, err := protocol.DecodeVNode(protocol.NewDecoder(snap.Tree))
	if err != nil {
		t.Fatalf("decode tree: %v", err)
	}
	if tree.Tag != "div" || len(tree.Children) != 2 {
		t.Fatalf("decoded tree = %+v", tree)
	}
	if got := tree.Children[1].Children[0].Text; got != "3" {
		t.Errorf("decoded span text = %q, want 3", got)
	}
}

func TestResyncFramesSplitLargeMarkup(t *testing.T) {
	markup := strings.Repeat("<li>item</li>", resyncChunkSize/4)
	if len(markup) <= resyncChunkSize {
		t.Fatal("markup not large enough to exercise chunking")
	}

	frames := resyncFrames(markup)
	if len(frames) < 2 {
		t.Fatalf("frames = %d, want several", len(frames))
	}

	var rebuilt strings.Builder
	for i, data := range frames {
		f, err := protocol.DecodeFrame(data)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if f.Type != protocol.FrameControl {
			t.Errorf("frame %d type = %v", i, f.Type)
		}
		if len(f.Payload) > protocol.MaxPayloadSize {
			t.Errorf("frame %d payload %d exceeds limit", i, len(f.Payload))
		}
		final := i == len(frames)-1
		if f.Flags.Has(protocol.FlagFinal) != final {
			t.Errorf("frame %d final flag = %v, want %v", i, f.Flags.Has(protocol.FlagFinal), final)
		}
		ct, payload, err := protocol.DecodeControl(f.Payload)
		if err != nil {
			t.Fatalf("frame %d control: %v", i, err)
		}
		if ct != protocol.ControlResyncFull {
			t.Errorf("frame %d control type = %v", i, ct)
		}
		rebuilt.WriteString(payload.(*protocol.ResyncFull).Markup)
	}
	if rebuilt.String() != markup {
		t.Error("reassembled markup differs from the original")
	}
}

func TestResyncFramesSmallMarkupSingleFinalFrame(t *testing.T) {
	frames := resyncFrames("<div></div>")
	if len(frames) != 1 {
		t.Fatalf("frames = %d, want 1", len(frames))
	}
	f, err := protocol.DecodeFrame(frames[0])
	if err != nil {
		t.Fatal(err)
	}
	if !f.Flags.Has(protocol.FlagFinal) {
		t.Error("single frame must carry the final flag")
	}
}

func TestSessionCloseIdempotent(t *testing.T) {
	s, _ := newTestSession(t)
	s.Close()
	s.Close()
	if !s.IsClosed() {
		t.Error("not closed")
	}
}
