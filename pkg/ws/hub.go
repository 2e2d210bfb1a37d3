package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"FinFuse/pkg/logger"
)

// ErrClosed is returned by ServeWS once the hub has been closed.
var ErrClosed = errors.New("stream hub closed")

// Event is the envelope written to every subscriber.
type Event struct {
	Type   string    `json:"type"`
	Data   any       `json:"data"`
	SentAt time.Time `json:"sent_at"`
}

// Option configures a Hub.
type Option func(*Hub)

// WithPingInterval sets how often idle subscribers are pinged.
func WithPingInterval(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.pingInterval = d
		}
	}
}

// WithWriteTimeout bounds every frame written to a subscriber.
func WithWriteTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.writeTimeout = d
		}
	}
}

// WithSendBuffer sets how many events may queue per subscriber before it is dropped.
func WithSendBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

// WithAllowedOrigins restricts browser origins. An empty list accepts any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Hub) {
		if len(origins) == 0 {
			return
		}
		allowed := make(map[string]struct{}, len(origins))
		for _, o := range origins {
			allowed[o] = struct{}{}
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			_, ok := allowed[origin]
			return ok
		}
	}
}

// WithRegisterer sets the Prometheus registerer for hub metrics.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(h *Hub) { h.registerer = reg }
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (s *subscriber) finish() { s.once.Do(func() { close(s.done) }) }

// Hub fans engine events out to websocket subscribers. Slow subscribers are
// disconnected rather than allowed to stall a broadcast.
type Hub struct {
	log          *logger.Logger
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	writeTimeout time.Duration
	sendBuffer   int
	registerer   prometheus.Registerer
	now          func() time.Time

	mu      sync.RWMutex
	subs    map[*subscriber]struct{}
	closed  bool
	clients prometheus.Gauge
	events  *prometheus.CounterVec
}

// NewHub creates an empty hub.
func NewHub(log *logger.Logger, opts ...Option) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	h := &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		pingInterval: 30 * time.Second,
		writeTimeout: 5 * time.Second,
		sendBuffer:   32,
		registerer:   prometheus.DefaultRegisterer,
		now:          time.Now,
		subs:         make(map[*subscriber]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.clients = register(h.registerer, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fusion_stream_subscribers", Help: "Connected websocket subscribers",
	}))
	h.events = register(h.registerer, prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fusion_stream_events_total", Help: "Events offered to subscribers by result"},
		[]string{"type", "result"},
	))
	return h
}

// ServeWS upgrades the request and streams events until the subscriber leaves
// or the hub closes. It blocks for the lifetime of the connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("websocket upgrade: %w", err)
	}
	s := &subscriber{conn: conn, send: make(chan []byte, h.sendBuffer), done: make(chan struct{})}
	if !h.add(s) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(h.writeTimeout))
		_ = conn.Close()
		return ErrClosed
	}
	h.log.Debug("stream subscriber connected", logger.String("remote", r.RemoteAddr))

	go h.writeLoop(s)
	h.readLoop(s)
	return nil
}

// Broadcast queues an event for every subscriber.
func (h *Hub) Broadcast(kind string, v any) error {
	b, err := json.Marshal(Event{Type: kind, Data: v, SentAt: h.now().UTC()})
	if err != nil {
		return fmt.Errorf("encode %s event: %w", kind, err)
	}

	var slow []*subscriber
	h.mu.RLock()
	for s := range h.subs {
		select {
		case s.send <- b:
			h.events.WithLabelValues(kind, "sent").Inc()
		default:
			h.events.WithLabelValues(kind, "dropped").Inc()
			slow = append(slow, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range slow {
		h.log.Warn("stream subscriber too slow, disconnecting", logger.String("event", kind))
		h.remove(s)
	}
	return nil
}

// Len returns the number of connected subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close disconnects every subscriber and rejects new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	subs := h.subs
	h.subs = make(map[*subscriber]struct{})
	h.mu.Unlock()

	for s := range subs {
		s.finish()
	}
	h.clients.Set(0)
	return nil
}

func (h *Hub) add(s *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.subs[s] = struct{}{}
	h.clients.Set(float64(len(h.subs)))
	return true
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		h.clients.Set(float64(len(h.subs)))
	}
	h.mu.Unlock()
	s.finish()
}

func (h *Hub) pongWait() time.Duration { return 2 * h.pingInterval }

// readLoop discards inbound frames; it only exists to process control frames
// and to notice when the peer goes away.
func (h *Hub) readLoop(s *subscriber) {
	defer h.remove(s)
	s.conn.SetReadLimit(512)
	_ = s.conn.SetReadDeadline(time.Now().Add(h.pongWait()))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(h.pongWait()))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(s *subscriber) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()
	for {
		select {
		case b := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(h.writeTimeout))
			return
		}
	}
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}
