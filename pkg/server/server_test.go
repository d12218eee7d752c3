package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/raven-ui/raven/internal/config"
	"github.com/raven-ui/raven/pkg/protocol"
	"github.com/raven-ui/raven/pkg/vdom"
)

var sessionMeta = regexp.MustCompile(`<meta name="raven-session" content="([^"]+)">`)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv, err := New(config.Default(), func() vdom.Component { return &counter{} }, WithLogger(testLogger()))
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Shutdown()
	})
	return srv, ts
}

func getPage(t *testing.T, ts *httptest.Server) (string, string) {
	t.Helper()
	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	m := sessionMeta.FindStringSubmatch(string(body))
	if m == nil {
		t.Fatalf("no session meta in page:\n%s", body)
	}
	return string(body), m[1]
}

func TestPageRender(t *testing.T) {
	srv, ts := newTestServer(t)
	body, sessionID := getPage(t, ts)

	if !strings.Contains(body, "<!doctype html>") {
		t.Error("missing doctype")
	}
	if !strings.Contains(body, "data-raven-id=") {
		t.Error("markup has no node markers")
	}
	if !strings.Contains(body, `class="counter"`) {
		t.Error("component markup missing")
	}
	if _, ok := srv.Sessions().Get(sessionID); !ok {
		t.Error("page session not registered")
	}
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "raven_sessions_active") {
		t.Error("metrics output missing session gauge")
	}
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/raven/live"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, ft protocol.FrameType, payload []byte) {
	t.Helper()
	data := protocol.NewFrame(ft, payload).Encode()
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) *protocol.Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	frame, err := protocol.DecodeFrame(msg)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return frame
}

func shakeHands(t *testing.T, conn *websocket.Conn, sessionID string) *protocol.ServerHello {
	t.Helper()
	sendFrame(t, conn, protocol.FrameHandshake, protocol.EncodeClientHello(&protocol.ClientHello{
		Version:   protocol.Version,
		SessionID: sessionID,
	}))
	frame := readFrame(t, conn)
	if frame.Type != protocol.FrameHandshake {
		t.Fatalf("frame type = %v, want handshake", frame.Type)
	}
	sh, err := protocol.DecodeServerHello(frame.Payload)
	if err != nil {
		t.Fatal(err)
	}
	return sh
}

func TestWebSocketEventProducesPatches(t *testing.T) {
	srv, ts := newTestServer(t)
	_, sessionID := getPage(t, ts)

	conn := dialWS(t, ts)
	sh := shakeHands(t, conn, sessionID)
	if sh.Status != protocol.HandshakeOK {
		t.Fatalf("status = %v", sh.Status)
	}
	if sh.SessionID != sessionID {
		t.Errorf("SessionID = %q, want %q", sh.SessionID, sessionID)
	}

	s, ok := srv.Sessions().Get(sessionID)
	if !ok {
		t.Fatal("session missing")
	}
	tok := clickToken(t, s)

	sendFrame(t, conn, protocol.FrameEvent, protocol.EncodeEventFrame(&protocol.EventFrame{
		Seq:   1,
		Token: uint64(tok),
		Name:  "click",
	}))

	frame := readFrame(t, conn)
	if frame.Type != protocol.FramePatches {
		t.Fatalf("frame type = %v, want patches", frame.Type)
	}
	pf, err := protocol.DecodePatchFrame(frame.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if len(pf.Patches) != 1 {
		t.Fatalf("patches = %d, want 1", len(pf.Patches))
	}
	p := pf.Patches[0]
	if p.Op != vdom.PatchUpdateText || p.Text != "1" {
		t.Errorf("patch = %+v", p)
	}
}

func TestWebSocketPing(t *testing.T) {
	_, ts := newTestServer(t)
	_, sessionID := getPage(t, ts)

	conn := dialWS(t, ts)
	if sh := shakeHands(t, conn, sessionID); sh.Status != protocol.HandshakeOK {
		t.Fatalf("status = %v", sh.Status)
	}

	sendFrame(t, conn, protocol.FrameControl, protocol.EncodeControl(
		protocol.ControlPing, &protocol.PingPong{Timestamp: 12345}))

	frame := readFrame(t, conn)
	if frame.Type != protocol.FrameControl {
		t.Fatalf("frame type = %v", frame.Type)
	}
	ct, data, err := protocol.DecodeControl(frame.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if ct != protocol.ControlPong {
		t.Fatalf("control = %v, want pong", ct)
	}
	if pp := data.(*protocol.PingPong); pp.Timestamp != 12345 {
		t.Errorf("timestamp = %d", pp.Timestamp)
	}
}

func TestWebSocketFreshConnectionGetsResync(t *testing.T) {
	_, ts := newTestServer(t)

	conn := dialWS(t, ts)
	sh := shakeHands(t, conn, "")
	if sh.Status != protocol.HandshakeOK {
		t.Fatalf("status = %v", sh.Status)
	}
	if sh.SessionID == "" {
		t.Fatal("no session assigned")
	}

	frame := readFrame(t, conn)
	if frame.Type != protocol.FrameControl {
		t.Fatalf("frame type = %v, want control", frame.Type)
	}
	ct, data, err := protocol.DecodeControl(frame.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if ct != protocol.ControlResyncFull {
		t.Fatalf("control = %v, want resync full", ct)
	}
	if rf := data.(*protocol.ResyncFull); !strings.Contains(rf.Markup, `class="counter"`) {
		t.Errorf("resync markup = %q", rf.Markup)
	}
}

func TestWebSocketVersionMismatch(t *testing.T) {
	_, ts := newTestServer(t)

	conn := dialWS(t, ts)
	sendFrame(t, conn, protocol.FrameHandshake, protocol.EncodeClientHello(&protocol.ClientHello{
		Version: protocol.Version + 1,
	}))
	frame := readFrame(t, conn)
	sh, err := protocol.DecodeServerHello(frame.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if sh.Status != protocol.HandshakeVersionMismatch {
		t.Errorf("status = %v, want version mismatch", sh.Status)
	}
}

func TestWebSocketUnknownSession(t *testing.T) {
	_, ts := newTestServer(t)

	conn := dialWS(t, ts)
	sh := shakeHands(t, conn, "f81d4fae-7dec-11d0-a765-00a0c91e6bf6")
	if sh.Status != protocol.HandshakeSessionExpired {
		t.Errorf("status = %v, want session expired", sh.Status)
	}
}
