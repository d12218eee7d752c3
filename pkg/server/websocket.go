package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/raven-ui/raven/pkg/protocol"
)

const (
	handshakeTimeout = 10 * time.Second
	readTimeout      = 60 * time.Second
	writeTimeout     = 10 * time.Second
)

// handleWebSocket upgrades the connection, completes the handshake,
// and runs the session's read loop until the client goes away.
func (srv *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := srv.upgrader.Upgrade(w, r, nil)
	if err != nil {
		srv.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	s, needResync, ok := srv.handshake(conn, r)
	if !ok {
		conn.Close()
		return
	}

	if old := s.attach(conn); old != nil {
		// A reconnect displaces the stale connection.
		old.Close()
	}
	srv.sendServerHello(conn, protocol.HandshakeOK, s.ID, s.Seq())

	if needResync {
		if err := s.sendResyncFull(); err != nil {
			srv.logger.Warn("resync failed", "session", s.ID, "error", err)
		}
	}

	srv.readLoop(s, conn)
}

// handshake reads the client hello and resolves it to a session. A
// failed handshake reports its status to the client and returns
// ok=false.
func (srv *Server) handshake(conn *websocket.Conn, r *http.Request) (*Session, bool, bool) {
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, false, false
	}

	frame, err := protocol.DecodeFrame(msg)
	if err != nil || frame.Type != protocol.FrameHandshake {
		srv.sendHandshakeError(conn, protocol.HandshakeInvalidFormat)
		return nil, false, false
	}
	ch, err := protocol.DecodeClientHello(frame.Payload)
	if err != nil {
		srv.sendHandshakeError(conn, protocol.HandshakeInvalidFormat)
		return nil, false, false
	}
	if ch.Version != protocol.Version {
		srv.sendHandshakeError(conn, protocol.HandshakeVersionMismatch)
		return nil, false, false
	}

	ctx := r.Context()
	if ch.SessionID == "" {
		// No page render preceded this connect; the session starts
		// empty and the client builds its tree from the resync.
		s, err := srv.sessions.Create(ctx)
		if err != nil {
			srv.sendHandshakeError(conn, handshakeStatusFor(err))
			return nil, false, false
		}
		return s, true, true
	}

	s, needResync, err := srv.sessions.Resume(ctx, ch.SessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			srv.sendHandshakeError(conn, protocol.HandshakeSessionExpired)
		} else {
			srv.logger.Error("resume failed", "session", ch.SessionID, "error", err)
			srv.sendHandshakeError(conn, protocol.HandshakeInternalError)
		}
		return nil, false, false
	}
	return s, needResync, true
}

func handshakeStatusFor(err error) protocol.HandshakeStatus {
	if errors.Is(err, ErrTooManySessions) {
		return protocol.HandshakeServerBusy
	}
	return protocol.HandshakeInternalError
}

func (srv *Server) sendServerHello(conn *websocket.Conn, status protocol.HandshakeStatus, sessionID string, nextSeq uint64) {
	payload := protocol.EncodeServerHello(&protocol.ServerHello{
		Status:    status,
		SessionID: sessionID,
		NextSeq:   nextSeq,
	})
	data := protocol.NewFrame(protocol.FrameHandshake, payload).Encode()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		srv.logger.Debug("server hello send failed", "error", err)
	}
}

func (srv *Server) sendHandshakeError(conn *websocket.Conn, status protocol.HandshakeStatus) {
	srv.sendServerHello(conn, status, "", 0)
}

// readLoop processes frames until the connection drops. Events are
// handled on this goroutine, which keeps per-session event ordering
// without any further synchronization.
func (srv *Server) readLoop(s *Session, conn *websocket.Conn) {
	defer func() {
		if !s.IsClosed() {
			srv.sessions.Detach(srv.baseCtx, s)
		}
	}()

	ctx := srv.baseCtx
	for {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.logger.Warn("read error", "error", err)
			}
			return
		}
		srv.metrics.FramesReceived.Inc()

		frame, err := protocol.DecodeFrame(msg)
		if err != nil {
			s.logger.Warn("frame decode error", "error", err)
			s.sendError(protocol.ErrInvalidFrame, "bad frame", false)
			continue
		}

		switch frame.Type {
		case protocol.FrameEvent:
			ef, err := protocol.DecodeEventFrame(frame.Payload)
			if err != nil {
				s.metrics.EventErrors.Inc()
				s.sendError(protocol.ErrInvalidEvent, "bad event", false)
				continue
			}
			s.HandleEvent(ctx, ef)

		case protocol.FrameControl:
			if done := srv.handleControl(s, frame.Payload); done {
				return
			}

		case protocol.FrameAck:
			ack, err := protocol.DecodeAck(frame.Payload)
			if err != nil {
				s.logger.Warn("ack decode error", "error", err)
				continue
			}
			s.ackSeq.Store(ack.LastSeq)

		default:
			s.logger.Warn("unknown frame type", "type", frame.Type)
		}
	}
}

// handleControl processes one control frame. Returns true when the
// session is finished and the read loop should exit.
func (srv *Server) handleControl(s *Session, payload []byte) bool {
	ct, data, err := protocol.DecodeControl(payload)
	if err != nil {
		s.logger.Warn("control decode error", "error", err)
		return false
	}

	switch ct {
	case protocol.ControlPing:
		if pp, ok := data.(*protocol.PingPong); ok {
			s.sendPong(pp.Timestamp)
		}

	case protocol.ControlPong:
		s.logger.Debug("pong received")

	case protocol.ControlResyncRequest:
		// Patch history is not kept; any gap means a full resync.
		if err := s.sendResyncFull(); err != nil {
			s.logger.Warn("resync failed", "error", err)
		}

	case protocol.ControlClose:
		if cm, ok := data.(*protocol.CloseMessage); ok {
			s.logger.Info("client closed session", "reason", cm.Reason.String())
		}
		srv.sessions.Remove(srv.baseCtx, s.ID)
		return true
	}
	return false
}
