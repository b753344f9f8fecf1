package remote

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/liuscraft/noizee/internal/mediactl"
)

func dial(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+s.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMsg(t *testing.T, conn *websocket.Conn) outbound {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg outbound
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return msg
}

func TestRemoteRoundTrip(t *testing.T) {
	s, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer s.Close()

	actions := make(chan mediactl.Action, 4)
	for _, a := range mediactl.Actions {
		s.SetActionHandler(a, func() { actions <- a })
	}
	s.SetMetadata(mediactl.Metadata{Title: "noizee"})
	s.SetPlaybackState(mediactl.StatePaused)

	conn := dial(t, s)
	if msg := readMsg(t, conn); msg.Type != "metadata" || msg.Metadata == nil || msg.Metadata.Title != "noizee" {
		t.Fatalf("expected metadata first, got %+v", msg)
	}
	if msg := readMsg(t, conn); msg.Type != "state" || msg.State != mediactl.StatePaused {
		t.Fatalf("expected current state, got %+v", msg)
	}

	if err := conn.WriteJSON(inbound{Action: mediactl.ActionStop}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	select {
	case a := <-actions:
		if a != mediactl.ActionStop {
			t.Fatalf("expected stop, got %s", a)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler not invoked")
	}

	s.SetPlaybackState(mediactl.StatePlaying)
	if msg := readMsg(t, conn); msg.Type != "state" || msg.State != mediactl.StatePlaying {
		t.Fatalf("expected playing broadcast, got %+v", msg)
	}
}

func TestRemoteRejectsUnknownAction(t *testing.T) {
	s, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer s.Close()

	conn := dial(t, s)
	readMsg(t, conn)

	conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"rewind"}`))
	if msg := readMsg(t, conn); msg.Type != "error" {
		t.Fatalf("expected error reply, got %+v", msg)
	}
	conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
	if msg := readMsg(t, conn); msg.Type != "error" {
		t.Fatalf("expected error reply, got %+v", msg)
	}
}

func TestRemoteClose(t *testing.T) {
	s, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	conn := dial(t, s)
	readMsg(t, conn)

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected the connection to be closed")
	}
	if err := s.SetPlaybackState(mediactl.StatePlaying); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
