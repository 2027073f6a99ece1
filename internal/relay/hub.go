// Package relay fans engine events out to WebSocket clients.
package relay

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/dgnsrekt/ytchat-downloader/internal/chat"
	"github.com/dgnsrekt/ytchat-downloader/internal/telemetry"
	"github.com/dgnsrekt/ytchat-downloader/internal/youtube"
)

const broadcastBuffer = 256

// Hub manages WebSocket connections. It is a chat.Sink: every event is
// encoded once and queued for all connected clients.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
	logger     *zap.Logger
}

var _ chat.Sink = (*Hub)(nil)

// NewHub creates a new Hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, broadcastBuffer),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run processes hub events. Call this in a goroutine.
// Returns when context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("relay hub shutting down")
			h.shutdown()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			telemetry.SetRelayClients(n)
			h.logger.Debug("client registered", zap.String("connID", client.connID))

		case client := <-h.unregister:
			h.remove(client)

		case msg := <-h.broadcast:
			h.mu.RLock()
			var slow []*Client
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					slow = append(slow, client)
				}
			}
			h.mu.RUnlock()
			for _, c := range slow {
				h.logger.Debug("dropping slow client", zap.String("connID", c.connID))
				h.remove(c)
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	telemetry.SetRelayClients(n)
	h.logger.Debug("client unregistered", zap.String("connID", client.connID))
}

// shutdown gracefully closes all client connections.
func (h *Hub) shutdown() {
	h.stopOnce.Do(func() { close(h.done) })

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	telemetry.SetRelayClients(0)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// publish queues a frame without blocking the caller. Frames are dropped
// when the hub has stopped or its queue is full.
func (h *Hub) publish(f Frame) {
	msg, err := encodeFrame(f)
	if err != nil {
		h.logger.Warn("encoding relay frame", zap.String("type", string(f.Type)), zap.Error(err))
		return
	}
	select {
	case <-h.done:
	case h.broadcast <- msg:
	default:
		h.logger.Warn("relay queue full, dropping frame", zap.String("type", string(f.Type)))
	}
}

func (h *Hub) Progress(actions []youtube.Action) {
	h.publish(Frame{Type: chat.EventProgress, Actions: actions})
}

func (h *Hub) AssetProgress(url, path string) {
	h.publish(Frame{Type: chat.EventAsset, URL: url, Path: path})
}

func (h *Hub) AssetError(url string, err error) {
	h.publish(Frame{Type: chat.EventAssetError, URL: url, Error: err.Error()})
}

func (h *Hub) Error(err error) {
	h.publish(Frame{Type: chat.EventError, Error: err.Error()})
}

func (h *Hub) Finish() {
	h.publish(Frame{Type: chat.EventFinish})
}
