package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/raven-ui/raven/pkg/dom"
	"github.com/raven-ui/raven/pkg/protocol"
	"github.com/raven-ui/raven/pkg/render"
	"github.com/raven-ui/raven/pkg/snapshot"
	"github.com/raven-ui/raven/pkg/vdom"
)

// Session is one live view: a component instance, its last rendered
// tree, and a server-side mirror of the client's node tree.
//
// All tree access is confined to the goroutine that reads the
// session's WebSocket connection; only connection writes and
// attach/detach take the mutex.
type Session struct {
	ID        string
	CreatedAt time.Time

	comp     vdom.Component
	tree     *vdom.VNode
	mirror   *dom.Target
	renderer *render.Renderer

	conn       *websocket.Conn
	mu         sync.Mutex
	closed     atomic.Bool
	detachedAt atomic.Int64 // unix nanos, 0 while attached

	sendSeq atomic.Uint64 // next patch sequence
	ackSeq  atomic.Uint64 // last sequence the client acknowledged

	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

func newSession(id string, comp vdom.Component, logger *slog.Logger, metrics *Metrics, tracer trace.Tracer) *Session {
	s := &Session{
		ID:        id,
		CreatedAt: time.Now(),
		comp:      comp,
		mirror:    dom.NewTarget(),
		renderer:  render.NewRenderer(),
		logger:    logger.With("session", id),
		metrics:   metrics,
		tracer:    tracer,
	}
	s.detachedAt.Store(time.Now().UnixNano())
	s.sendSeq.Store(1)
	return s
}

// Mount renders the component for the first time and builds the
// mirror. Must be called once before the session serves anything.
func (s *Session) Mount() error {
	tree := s.comp.Render()
	s.metrics.RendersTotal.Inc()

	if err := s.mirror.Apply(vdom.Diff(nil, tree)); err != nil {
		return fmt.Errorf("server: mount session %s: %w", s.ID, err)
	}
	s.tree = tree
	return nil
}

// Markup serializes the session's current tree for a cold response.
func (s *Session) Markup() (string, error) {
	return s.renderer.RenderToString(s.tree)
}

// Seq returns the sequence number the next patch frame will carry.
func (s *Session) Seq() uint64 {
	return s.sendSeq.Load()
}

// HandleEvent dispatches one client event and pushes the resulting
// patches. A stale or unknown token is reported to the client but
// does not kill the session; the client may simply be behind.
func (s *Session) HandleEvent(ctx context.Context, ef *protocol.EventFrame) {
	_, span := s.tracer.Start(ctx, "session.event",
		trace.WithAttributes(
			attribute.String("session.id", s.ID),
			attribute.String("event.name", ef.Name),
		))
	defer span.End()

	if err := s.dispatch(ef); err != nil {
		s.metrics.EventErrors.Inc()
		s.logger.Warn("event dispatch failed", "event", ef.Name, "token", ef.Token, "error", err)
		s.sendError(protocol.ErrTokenNotFound, err.Error(), false)
		return
	}
	s.metrics.EventsTotal.Inc()

	patches, err := s.rerender()
	if err != nil {
		s.logger.Error("rerender failed", "error", err)
		s.sendError(protocol.ErrServerError, "render failed", true)
		s.Close()
		return
	}
	span.SetAttributes(attribute.Int("patch.count", len(patches)))

	if len(patches) == 0 {
		return
	}
	if err := s.sendPatches(patches); err != nil {
		s.logger.Warn("patch send failed", "error", err)
	}
}

// dispatch resolves the handler token against the mirror and invokes
// the handler, recovering from panics so one bad handler cannot take
// the server down.
func (s *Session) dispatch(ef *protocol.EventFrame) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.HandlerPanics.Inc()
			err = fmt.Errorf("server: handler panic: %v", r)
		}
	}()
	return s.mirror.Dispatch(dom.HandlerToken(ef.Token), vdom.Event{
		Name:  ef.Name,
		Value: ef.Value,
	})
}

// rerender produces the next tree, diffs it against the current one,
// and applies the patches to the mirror so both sides stay aligned.
func (s *Session) rerender() ([]vdom.Patch, error) {
	next := s.comp.Render()
	s.metrics.RendersTotal.Inc()

	patches := vdom.Diff(s.tree, next)
	if err := s.mirror.Apply(patches); err != nil {
		return nil, fmt.Errorf("server: mirror apply: %w", err)
	}
	s.tree = next
	return patches, nil
}

// sendPatches encodes a patch frame with the next sequence number and
// writes it to the connection. A patch set too large for one frame
// falls back to a full resync.
func (s *Session) sendPatches(patches []vdom.Patch) error {
	seq := s.sendSeq.Add(1) - 1
	payload := protocol.EncodePatchFrame(&protocol.PatchFrame{Seq: seq, Patches: patches})
	if len(payload) > protocol.MaxPayloadSize {
		return s.sendResyncFull()
	}
	data := protocol.NewFrame(protocol.FramePatches, payload).Encode()

	if err := s.writeMessage(data); err != nil {
		return err
	}
	s.metrics.PatchesSent.Add(float64(len(patches)))
	s.metrics.PatchBytesSent.Add(float64(len(data)))
	return nil
}

// resyncChunkSize bounds the markup carried by one resync frame,
// leaving room for the control type byte and string length prefix.
const resyncChunkSize = protocol.MaxPayloadSize - 16

// sendResyncFull re-serializes the whole tree and sends it as control
// frames. Used when the client's state cannot be trusted.
func (s *Session) sendResyncFull() error {
	markup, err := s.Markup()
	if err != nil {
		return err
	}
	for _, data := range resyncFrames(markup) {
		if err := s.writeMessage(data); err != nil {
			return err
		}
	}
	s.metrics.ResyncsSent.Inc()
	return nil
}

// resyncFrames splits markup across as many resync control frames as
// the payload bound requires. Only the last frame carries FlagFinal;
// the client buffers until the flag and swaps its document in one
// step.
func resyncFrames(markup string) [][]byte {
	var frames [][]byte
	for {
		chunk := markup
		if len(chunk) > resyncChunkSize {
			chunk = markup[:resyncChunkSize]
		}
		markup = markup[len(chunk):]

		payload := protocol.EncodeControl(protocol.ControlResyncFull, &protocol.ResyncFull{Markup: chunk})
		f := protocol.NewFrame(protocol.FrameControl, payload)
		if len(markup) == 0 {
			f.Flags = protocol.FlagFinal
		}
		frames = append(frames, f.Encode())
		if len(markup) == 0 {
			return frames
		}
	}
}

func (s *Session) sendError(code protocol.ErrorCode, msg string, fatal bool) {
	payload := protocol.EncodeErrorMessage(&protocol.ErrorMessage{Code: code, Message: msg, Fatal: fatal})
	data := protocol.NewFrame(protocol.FrameError, payload).Encode()
	if err := s.writeMessage(data); err != nil {
		s.logger.Debug("error frame send failed", "error", err)
	}
}

func (s *Session) sendPong(timestamp uint64) {
	payload := protocol.EncodeControl(protocol.ControlPong, &protocol.PingPong{Timestamp: timestamp})
	data := protocol.NewFrame(protocol.FrameControl, payload).Encode()
	if err := s.writeMessage(data); err != nil {
		s.logger.Debug("pong send failed", "error", err)
	}
}

// writeMessage writes one binary message under the connection mutex.
func (s *Session) writeMessage(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("server: session %s has no connection", s.ID)
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(websocket.BinaryMessage, data)
}

// attach binds a connection to the session, replacing any previous
// one. Returns the connection that was displaced, if any.
func (s *Session) attach(conn *websocket.Conn) *websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.conn
	s.conn = conn
	s.detachedAt.Store(0)
	return old
}

// detach drops the connection but keeps the session alive so the
// client can resume within the window.
func (s *Session) detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = nil
	s.detachedAt.Store(time.Now().UnixNano())
}

// Attached reports whether a connection is currently bound.
func (s *Session) Attached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// DetachedSince returns when the session lost its connection, or the
// zero time while attached.
func (s *Session) DetachedSince() time.Time {
	ns := s.detachedAt.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Close tears the session down. Safe to call more than once.
func (s *Session) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// IsClosed reports whether Close has been called.
func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// Snapshot captures the session's render state for persistence. The
// tree is stored in wire form; handlers do not survive a snapshot and
// a restored session re-renders from a fresh component instance.
func (s *Session) Snapshot() (*snapshot.Snapshot, error) {
	markup, err := s.Markup()
	if err != nil {
		return nil, err
	}
	e := protocol.NewEncoder()
	protocol.EncodeVNode(e, s.tree)
	return &snapshot.Snapshot{
		SessionID: s.ID,
		Markup:    markup,
		Tree:      e.Bytes(),
		Seq:       s.sendSeq.Load(),
	}, nil
}
