package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"SignalSentinel/internal/metrics"
	"SignalSentinel/internal/publisher"
	"SignalSentinel/internal/recorder"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 50 * time.Second
	subscriberSend = 64
)

// Hub pushes every recorded decision to connected WebSocket subscribers.
// A subscriber that cannot keep up is disconnected.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*subscriber]struct{}

	m   *metrics.Recorder
	log zerolog.Logger
}

type subscriber struct {
	conn    *websocket.Conn
	send    chan []byte
	symbols map[string]bool // empty means all
}

func (s *subscriber) wants(symbol string) bool {
	return len(s.symbols) == 0 || s.symbols[symbol]
}

// NewHub creates an empty hub.
func NewHub(log zerolog.Logger, m *metrics.Recorder) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*subscriber]struct{}),
		m:       m,
		log:     log.With().Str("component", "stream").Logger(),
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// PublishDecision queues rec for every interested subscriber.
func (h *Hub) PublishDecision(_ context.Context, rec *recorder.DecisionRecord) error {
	msg, err := json.Marshal(publisher.NewDecisionEvent(rec))
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.clients {
		if !s.wants(rec.Symbol) {
			continue
		}
		select {
		case s.send <- msg:
			h.m.RecordPublish("stream", nil)
		default:
			h.log.Warn().Str("remote", s.conn.RemoteAddr().String()).Msg("slow subscriber dropped")
			h.dropLocked(s)
			h.m.RecordPublish("stream", fmt.Errorf("subscriber buffer full"))
		}
	}
	return nil
}

// ServeWS upgrades the request. ?symbols=EURUSD,AAPL narrows the stream.
func (h *Hub) ServeWS(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the error response.
		return nil
	}
	s := &subscriber{conn: conn, send: make(chan []byte, subscriberSend), symbols: map[string]bool{}}
	for _, sym := range strings.Split(c.QueryParam("symbols"), ",") {
		if sym = strings.ToUpper(strings.TrimSpace(sym)); sym != "" {
			s.symbols[sym] = true
		}
	}

	h.mu.Lock()
	h.clients[s] = struct{}{}
	h.m.SetStreamClients(len(h.clients))
	h.mu.Unlock()
	h.log.Debug().Str("remote", conn.RemoteAddr().String()).Int("symbols", len(s.symbols)).Msg("subscriber connected")

	go h.writeLoop(s)
	h.readLoop(s)
	return nil
}

// readLoop discards client frames and returns once the peer goes away.
func (h *Hub) readLoop(s *subscriber) {
	defer h.drop(s)
	s.conn.SetReadLimit(512)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(s *subscriber) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) drop(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(s)
}

func (h *Hub) dropLocked(s *subscriber) {
	if _, ok := h.clients[s]; !ok {
		return
	}
	delete(h.clients, s)
	close(s.send)
	h.m.SetStreamClients(len(h.clients))
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.clients {
		h.dropLocked(s)
	}
}
