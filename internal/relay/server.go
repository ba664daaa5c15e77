package relay

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/gorilla/websocket"

	logx "voxchat/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

// Source yields status envelopes. events.Bus satisfies it.
type Source interface {
	Subscribe(ctx context.Context) (<-chan *message.Message, error)
}

// Server broadcasts status envelopes to every connected websocket client.
type Server struct {
	source   Source
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}

	subscribed     chan struct{}
	subscribedOnce sync.Once
}

func NewServer(source Source) *Server {
	return &Server{
		source: source,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients:    make(map[*client]struct{}),
		subscribed: make(chan struct{}),
	}
}

// Handler serves GET /events.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", s.serveEvents)
	return mux
}

// ClientCount reports the number of connected observers.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Run forwards bus messages to clients until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	messages, err := s.source.Subscribe(ctx)
	if err != nil {
		return err
	}
	s.subscribedOnce.Do(func() { close(s.subscribed) })
	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return nil
		case msg, ok := <-messages:
			if !ok {
				s.closeAll()
				return nil
			}
			s.broadcast(msg.Payload)
			msg.Ack()
		}
	}
}

// ListenAndServe runs the relay on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	runErr := make(chan error, 1)
	go func() { runErr <- s.Run(ctx) }()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logx.Info().Str("addr", addr).Msg("status relay listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-runErr
}

func (s *Server) serveEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logx.Warn().Err(err).Msg("relay upgrade failed")
		return
	}

	c := &client{server: s, conn: conn, send: make(chan []byte, sendBuffer)}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	logx.Debug().Str("remote", r.RemoteAddr).Msg("relay client connected")

	go c.writePump()
	go c.readPump()
}

func (s *Server) broadcast(payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- payload:
		default:
			logx.Warn().Msg("relay client send buffer full, dropping client")
			s.removeLocked(c)
		}
	}
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	s.removeLocked(c)
	s.mu.Unlock()
}

func (s *Server) removeLocked(c *client) {
	if _, ok := s.clients[c]; !ok {
		return
	}
	delete(s.clients, c)
	close(c.send)
}

func (s *Server) closeAll() {
	s.mu.Lock()
	for c := range s.clients {
		s.removeLocked(c)
	}
	s.mu.Unlock()
}

type client struct {
	server *Server
	conn   *websocket.Conn
	send   chan []byte
}

// readPump only services control frames; observers never send data.
func (c *client) readPump() {
	defer func() {
		c.server.unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logx.Debug().Err(err).Msg("relay client closed unexpectedly")
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
