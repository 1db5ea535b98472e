// Package ws streams companion state snapshots to websocket clients and
// accepts chat and action commands from them.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"talking-pet/companion/internal/models"
	"talking-pet/companion/internal/store"
	"talking-pet/companion/pkg/logger"
	wstypes "talking-pet/companion/pkg/ws"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024

	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	// The control surface only listens on loopback
	CheckOrigin:      func(r *http.Request) bool { return true },
	HandshakeTimeout: 10 * time.Second,
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
}

// Companion is the store surface the hub needs
type Companion interface {
	Snapshot() store.Snapshot
	Subscribe(f func(store.Snapshot)) func()
	SendMessage(ctx context.Context, content string) error
	Action(ctx context.Context, action models.Action) error
}

// Client is a single websocket connection
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
	Hub  *Hub

	mu     sync.Mutex
	closed bool
}

// Hub fans state snapshots out to every connected client. Snapshots are
// coalesced: a slow hub only ever delivers the latest one.
type Hub struct {
	companion Companion
	log       *logger.Logger

	clients    map[*Client]bool
	count      atomic.Int32
	register   chan *Client
	unregister chan *Client

	latestMu sync.Mutex
	latest   []byte
	changed  chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHub creates a hub bound to the companion store
func NewHub(companion Companion, log *logger.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		companion:  companion,
		log:        log.Named("ws"),
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		changed:    make(chan struct{}, 1),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start runs the hub loop in the background until Stop is called
func (h *Hub) Start() {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.run()
	}()
}

func (h *Hub) run() {
	unsubscribe := h.companion.Subscribe(h.publish)
	defer unsubscribe()

	for {
		select {
		case <-h.ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			h.count.Add(1)
			h.log.Debug("Client registered", "client", client.ID)
			if frame, err := encodeState(h.companion.Snapshot()); err == nil {
				h.deliver(client, frame)
			}

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				h.log.Debug("Client unregistered", "client", client.ID)
			}

		case <-h.changed:
			h.latestMu.Lock()
			frame := h.latest
			h.latestMu.Unlock()
			for client := range h.clients {
				h.deliver(client, frame)
			}
		}
	}
}

// Stop disconnects every client and waits for the hub loop and pumps to exit
func (h *Hub) Stop() {
	h.cancel()
	h.wg.Wait()
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// publish is the store subscription; it must not block
func (h *Hub) publish(snap store.Snapshot) {
	frame, err := encodeState(snap)
	if err != nil {
		h.log.LogError(err, "Failed to encode snapshot")
		return
	}
	h.latestMu.Lock()
	h.latest = frame
	h.latestMu.Unlock()

	select {
	case h.changed <- struct{}{}:
	default:
	}
}

// deliver queues frame for client, dropping a client that cannot keep up
func (h *Hub) deliver(client *Client, frame []byte) {
	if !client.enqueue(frame) {
		h.drop(client)
		h.log.Warn("Client removed due to blocked channel", "client", client.ID)
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	client.close()
	h.count.Add(-1)
}

func encodeState(snap store.Snapshot) ([]byte, error) {
	return json.Marshal(wstypes.Message{Type: wstypes.TypeState, Content: snap})
}
