package httpserver

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"chocolate-storefront/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = 50 * time.Second
	streamSendBuffer = 16
)

// streamMessage is one catalog signal pushed to browsers.
type streamMessage struct {
	Type      string                   `json:"type"`
	Products  []domain.Product         `json:"products,omitempty"`
	Shipping  *domain.ShippingSettings `json:"shipping,omitempty"`
	ProductID string                   `json:"productId,omitempty"`
	Error     string                   `json:"error,omitempty"`
}

type streamClient struct {
	conn *websocket.Conn
	send chan []byte
}

// CatalogStream fans catalog changes out to connected websocket clients.
// It implements catalog.Notifier.
type CatalogStream struct {
	upgrader websocket.Upgrader
	logger   *log.Logger

	mu      sync.RWMutex
	clients map[*streamClient]bool
}

func NewCatalogStream(allowedOrigins []string, logger *log.Logger) *CatalogStream {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &CatalogStream{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowed) == 0 || allowed[origin]
			},
		},
		logger:  logger,
		clients: make(map[*streamClient]bool),
	}
}

// Clients returns the number of connected clients.
func (s *CatalogStream) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *CatalogStream) unregister(c *streamClient) {
	s.mu.Lock()
	if s.clients[c] {
		delete(s.clients, c)
		close(c.send)
	}
	s.mu.Unlock()
}

func (s *CatalogStream) broadcast(msg streamMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		s.logger.Printf("httpserver: marshal stream message type=%s error=%v", msg.Type, err)
		return
	}
	var lagging []*streamClient
	s.mu.RLock()
	for c := range s.clients {
		select {
		case c.send <- payload:
		default:
			lagging = append(lagging, c)
		}
	}
	s.mu.RUnlock()
	// A client that missed a change is disconnected; it reconnects to a fresh snapshot.
	for _, c := range lagging {
		s.logger.Printf("debug: stream client lagging, dropped type=%s", msg.Type)
		s.unregister(c)
	}
}

func (s *CatalogStream) ProductsChanged(products []domain.Product) {
	s.broadcast(streamMessage{Type: "products", Products: products})
}

func (s *CatalogStream) ShippingChanged(settings domain.ShippingSettings) {
	s.broadcast(streamMessage{Type: "shipping", Shipping: &settings})
}

func (s *CatalogStream) SyncLost(err error) {
	s.broadcast(streamMessage{Type: "stale", Error: err.Error()})
}

func (s *CatalogStream) MutationFailed(productID string, err error) {
	s.broadcast(streamMessage{Type: "mutation_failed", ProductID: productID, Error: err.Error()})
}

// Serve upgrades the request and streams until the client goes away. The
// client is registered before snapshot is read, and no broadcast can slip in
// between, so the first messages are never older than what follows.
func (s *CatalogStream) Serve(w http.ResponseWriter, r *http.Request, snapshot func() []streamMessage) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("httpserver: websocket upgrade failed error=%v", err)
		return
	}
	client := &streamClient{conn: conn, send: make(chan []byte, streamSendBuffer)}
	s.mu.Lock()
	s.clients[client] = true
	for _, msg := range snapshot() {
		payload, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		client.send <- payload
	}
	s.mu.Unlock()
	go s.writePump(client)
	s.readPump(client)
}

func (s *CatalogStream) readPump(c *streamClient) {
	defer func() {
		s.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *CatalogStream) writePump(c *streamClient) {
	ticker := time.NewTicker(streamPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *handlers) catalogStream(c *gin.Context) {
	if h.deps.Stream == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "stream disabled"})
		return
	}
	h.deps.Stream.Serve(c.Writer, c.Request, func() []streamMessage {
		shipping := h.deps.Catalog.Shipping()
		return []streamMessage{
			{Type: "products", Products: h.deps.Catalog.Products()},
			{Type: "shipping", Shipping: &shipping},
		}
	})
}
