// Package remote serves a WebSocket media control surface. Clients send
// {"action":"play"|"pause"|"stop"} and receive state and metadata updates.
package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/liuscraft/noizee/internal/logging"
	"github.com/liuscraft/noizee/internal/mediactl"
)

const (
	sendBuffer   = 16
	writeTimeout = 5 * time.Second
)

var ErrClosed = errors.New("remote: server closed")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type inbound struct {
	Action mediactl.Action `json:"action"`
}

type outbound struct {
	Type     string                 `json:"type"`
	State    mediactl.PlaybackState `json:"state,omitempty"`
	Metadata *mediactl.Metadata     `json:"metadata,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

type client struct {
	conn *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// enqueue reports false when the client's buffer is full.
func (c *client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Server 远程控制面
type Server struct {
	ln  net.Listener
	srv *http.Server

	mu       sync.Mutex
	clients  map[*client]struct{}
	handlers map[mediactl.Action]func()
	state    mediactl.PlaybackState
	metadata *mediactl.Metadata
	closed   bool
}

var _ mediactl.Surface = (*Server)(nil)

// Listen binds addr and starts serving /ws in the background.
func Listen(addr string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	s := &Server{
		ln:       ln,
		clients:  make(map[*client]struct{}),
		handlers: make(map[mediactl.Action]func()),
		state:    mediactl.StateNone,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	s.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Errorf("Remote: serve: %v", err)
		}
	}()
	logging.Infof("Remote: listening on ws://%s/ws", ln.Addr())
	return s, nil
}

func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

func (s *Server) SetMetadata(md mediactl.Metadata) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.metadata = &md
	s.mu.Unlock()

	s.broadcast(outbound{Type: "metadata", Metadata: &md})
	return nil
}

func (s *Server) SetActionHandler(action mediactl.Action, handler func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.handlers[action] = handler
	return nil
}

func (s *Server) SetPlaybackState(state mediactl.PlaybackState) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.state = state
	s.mu.Unlock()

	s.broadcast(outbound{Type: "state", State: state})
	return nil
}

func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	clients := s.clients
	s.clients = make(map[*client]struct{})
	s.mu.Unlock()

	for c := range clients {
		c.close()
	}
	return s.srv.Close()
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warnf("Remote: websocket upgrade: %v", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.clients[c] = struct{}{}
	state, md := s.state, s.metadata
	s.mu.Unlock()

	logging.Infof("Remote: client %s connected", conn.RemoteAddr())
	go s.writeLoop(c)

	if md != nil {
		s.sendTo(c, outbound{Type: "metadata", Metadata: md})
	}
	s.sendTo(c, outbound{Type: "state", State: state})
	s.readLoop(c)
}

func (s *Server) readLoop(c *client) {
	defer s.drop(c)
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendTo(c, outbound{Type: "error", Error: "invalid message"})
			continue
		}

		s.mu.Lock()
		h := s.handlers[msg.Action]
		s.mu.Unlock()
		if h == nil {
			s.sendTo(c, outbound{Type: "error", Error: fmt.Sprintf("unknown action %q", msg.Action)})
			continue
		}
		h()
	}
}

func (s *Server) writeLoop(c *client) {
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			logging.Debugf("Remote: write to %s: %v", c.conn.RemoteAddr(), err)
			s.drop(c)
			return
		}
	}
}

func (s *Server) drop(c *client) {
	s.mu.Lock()
	_, ok := s.clients[c]
	delete(s.clients, c)
	s.mu.Unlock()
	if ok {
		logging.Infof("Remote: client %s disconnected", c.conn.RemoteAddr())
	}
	c.close()
}

func (s *Server) broadcast(msg outbound) {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		s.sendTo(c, msg)
	}
}

// sendTo never blocks; a client that cannot keep up is dropped.
func (s *Server) sendTo(c *client, msg outbound) {
	data, err := json.Marshal(msg)
	if err != nil {
		logging.Errorf("Remote: encode %s: %v", msg.Type, err)
		return
	}
	if !c.enqueue(data) {
		logging.Warnf("Remote: client %s too slow, dropping", c.conn.RemoteAddr())
		s.drop(c)
	}
}
