package messaging

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/AtRiskMedia/clicktrail-go/internal/domain/events"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/observability/logging"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

// StreamMessage is the frame sent for each pushed event.
type StreamMessage struct {
	PageID string       `json:"pageId"`
	Event  events.Event `json:"event"`
	SentAt time.Time    `json:"sentAt"`
}

// StreamClient is a single connected stream consumer.
type StreamClient struct {
	Conn *websocket.Conn
	Send chan []byte
}

// NewStreamClient wraps conn with a buffered send queue.
func NewStreamClient(conn *websocket.Conn) *StreamClient {
	return &StreamClient{Conn: conn, Send: make(chan []byte, sendBuffer)}
}

// StreamBroadcaster fans event-queue entries out to every connected client.
type StreamBroadcaster struct {
	clients    map[*StreamClient]bool
	register   chan *StreamClient
	unregister chan *StreamClient
	broadcast  chan []byte
	done       chan struct{}
	logger     *logging.ChanneledLogger
	mu         sync.RWMutex
}

// NewStreamBroadcaster creates a new broadcaster instance.
func NewStreamBroadcaster(logger *logging.ChanneledLogger) *StreamBroadcaster {
	return &StreamBroadcaster{
		clients:    make(map[*StreamClient]bool),
		register:   make(chan *StreamClient),
		unregister: make(chan *StreamClient),
		broadcast:  make(chan []byte, sendBuffer),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the broadcaster's main loop. This should be run as a goroutine.
func (b *StreamBroadcaster) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(b.done)
			b.mu.Lock()
			for client := range b.clients {
				delete(b.clients, client)
				close(client.Send)
			}
			b.mu.Unlock()
			b.logger.Stream().Info("DataLayer stream stopped")
			return

		case client := <-b.register:
			b.mu.Lock()
			b.clients[client] = true
			count := len(b.clients)
			b.mu.Unlock()
			b.logger.Stream().Debug("Stream client registered", "clients", count)

		case client := <-b.unregister:
			b.mu.Lock()
			if _, ok := b.clients[client]; ok {
				delete(b.clients, client)
				close(client.Send)
			}
			count := len(b.clients)
			b.mu.Unlock()
			b.logger.Stream().Debug("Stream client unregistered", "clients", count)

		case message := <-b.broadcast:
			b.mu.RLock()
			for client := range b.clients {
				select {
				case client.Send <- message:
				default:
					b.logger.Stream().Warn("Stream client buffer full, message dropped")
				}
			}
			b.mu.RUnlock()
		}
	}
}

// Register queues a client for registration. After the broadcaster has
// stopped the client's send queue is closed instead.
func (b *StreamBroadcaster) Register(client *StreamClient) {
	select {
	case b.register <- client:
	case <-b.done:
		close(client.Send)
	}
}

// Unregister queues a client for unregistration.
func (b *StreamBroadcaster) Unregister(client *StreamClient) {
	select {
	case b.unregister <- client:
	case <-b.done:
	}
}

// ClientCount returns the number of connected clients.
func (b *StreamBroadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Publish queues e for every client. It never blocks the caller; when the
// broadcast queue is full the event is dropped.
func (b *StreamBroadcaster) Publish(pageID string, e events.Event) {
	message, err := json.Marshal(StreamMessage{PageID: pageID, Event: e, SentAt: time.Now().UTC()})
	if err != nil {
		b.logger.Stream().Error("Failed to encode stream message", "error", err.Error(), "pageId", pageID)
		return
	}
	select {
	case b.broadcast <- message:
	default:
		b.logger.Stream().Warn("Stream broadcast queue full, message dropped", "pageId", pageID)
	}
}

// Serve pumps messages to client until the connection closes. It registers
// the client and blocks; call it from the upgrade handler.
func (b *StreamBroadcaster) Serve(client *StreamClient) {
	b.Register(client)
	go b.readPump(client)
	b.writePump(client)
}

// readPump discards inbound frames and keeps the read deadline fresh.
func (b *StreamBroadcaster) readPump(client *StreamClient) {
	defer func() {
		b.Unregister(client)
		client.Conn.Close()
	}()
	client.Conn.SetReadLimit(512)
	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		return client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				b.logger.Stream().Warn("Stream client closed unexpectedly", "error", err.Error())
			}
			return
		}
	}
}

func (b *StreamBroadcaster) writePump(client *StreamClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
