package logging

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// LogEntry is a single log line as sent to stream clients.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Channel   string `json:"channel"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

// Client is one connection listening for logs.
type Client struct {
	id      string
	Channel chan []byte
	filters AppliedFilters
}

// AppliedFilters selects which entries reach a client.
type AppliedFilters struct {
	Channel Channel // "all" matches every channel
	Level   slog.Level
}

func (f AppliedFilters) match(entry LogEntry) bool {
	if f.Channel != "all" && f.Channel != Channel(entry.Channel) {
		return false
	}
	return ParseLevel(entry.Level) >= f.Level
}

// LogBroadcaster fans log entries out to registered clients.
type LogBroadcaster struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	mu         sync.RWMutex
	logger     *slog.Logger
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewLogBroadcaster creates a broadcaster and starts its loop.
func NewLogBroadcaster() *LogBroadcaster {
	b := &LogBroadcaster{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 1000),
		logger:     slog.Default().With("component", "LogBroadcaster"),
		stop:       make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *LogBroadcaster) run() {
	for {
		select {
		case <-b.stop:
			b.mu.Lock()
			for client := range b.clients {
				delete(b.clients, client)
				close(client.Channel)
			}
			b.mu.Unlock()
			return
		case client := <-b.register:
			b.mu.Lock()
			b.clients[client] = true
			b.mu.Unlock()
			b.logger.Debug("Log client registered", "id", client.id, "channel", client.filters.Channel)
		case client := <-b.unregister:
			b.mu.Lock()
			if _, ok := b.clients[client]; ok {
				delete(b.clients, client)
				close(client.Channel)
			}
			b.mu.Unlock()
		case message := <-b.broadcast:
			b.distribute(message)
		}
	}
}

func (b *LogBroadcaster) distribute(message []byte) {
	var entry LogEntry
	if err := json.Unmarshal(message, &entry); err != nil {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for client := range b.clients {
		if !client.filters.match(entry) {
			continue
		}
		select {
		case client.Channel <- message:
		default:
			// slow client, drop
		}
	}
}

// SubmitLog queues entry for distribution. It never blocks; entries are
// dropped when the queue is full.
func (b *LogBroadcaster) SubmitLog(entry LogEntry) {
	message, err := json.Marshal(entry)
	if err != nil {
		return
	}
	select {
	case b.broadcast <- message:
	default:
	}
}

// NewClient creates a client with the given filters. It still has to be
// registered.
func (b *LogBroadcaster) NewClient(filters AppliedFilters) *Client {
	if filters.Channel == "" {
		filters.Channel = "all"
	}
	return &Client{
		id:      fmt.Sprintf("%d", time.Now().UnixNano()),
		Channel: make(chan []byte, 100),
		filters: filters,
	}
}

// Shutdown stops the loop and closes every client channel.
func (b *LogBroadcaster) Shutdown() {
	b.stopOnce.Do(func() { close(b.stop) })
}

// RegisterClient adds client. After Shutdown the client's channel is closed
// straight away.
func (b *LogBroadcaster) RegisterClient(client *Client) {
	select {
	case b.register <- client:
	case <-b.stop:
		close(client.Channel)
	}
}

// UnregisterClient removes client and closes its channel.
func (b *LogBroadcaster) UnregisterClient(client *Client) {
	select {
	case b.unregister <- client:
	case <-b.stop:
	}
}
