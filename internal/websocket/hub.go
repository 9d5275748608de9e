package websocket

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"polls-service/internal/services"
)

type pollFrame struct {
	pollID uint
	data   []byte
}

// Hub fans live poll results out to the websocket viewers of each poll. One
// goroutine owns the subscription maps; a second one relays Redis messages.
type Hub struct {
	// Viewers by poll id
	pollClients map[uint]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan pollFrame

	redisService *services.RedisService

	ctx    context.Context
	cancel context.CancelFunc

	mu sync.RWMutex
}

func NewHub(redisService *services.RedisService) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		pollClients:  make(map[uint]map[*Client]bool),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		broadcast:    make(chan pollFrame, 64),
		redisService: redisService,
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (h *Hub) Run() {
	h.subscribeToRedis()

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case frame := <-h.broadcast:
			h.broadcastToPoll(frame)

		case <-h.ctx.Done():
			h.closeAll()
			slog.Info("WebSocket hub shutting down")
			return
		}
	}
}

func (h *Hub) Stop() {
	h.cancel()
}

// ViewerCount returns the number of live viewers of pollID.
func (h *Hub) ViewerCount(pollID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.pollClients[pollID])
}

func (h *Hub) subscribeToRedis() {
	pubsub := h.redisService.PSubscribe(h.ctx, services.ResultsChannelGlob)
	ch := pubsub.Channel()

	go func() {
		defer pubsub.Close()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				pollID, err := pollIDFromChannel(msg.Channel)
				if err != nil {
					slog.Warn("Ignoring message on unexpected channel", "channel", msg.Channel)
					continue
				}
				select {
				case h.broadcast <- pollFrame{pollID: pollID, data: []byte(msg.Payload)}:
				case <-h.ctx.Done():
					return
				}
			case <-h.ctx.Done():
				return
			}
		}
	}()
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.pollClients[client.pollID] == nil {
		h.pollClients[client.pollID] = make(map[*Client]bool)
	}
	h.pollClients[client.pollID][client] = true

	slog.Debug("Viewer registered", "clientID", client.id, "pollID", client.pollID)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client)
}

func (h *Hub) removeLocked(client *Client) {
	viewers, ok := h.pollClients[client.pollID]
	if !ok || !viewers[client] {
		return
	}
	delete(viewers, client)
	if len(viewers) == 0 {
		delete(h.pollClients, client.pollID)
	}
	close(client.send)
	slog.Debug("Viewer unregistered", "clientID", client.id, "pollID", client.pollID)
}

func (h *Hub) broadcastToPoll(frame pollFrame) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.pollClients[frame.pollID] {
		select {
		case client.send <- frame.data:
		default:
			slog.Warn("Send buffer full, dropping viewer", "clientID", client.id, "pollID", frame.pollID)
			h.removeLocked(client)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, viewers := range h.pollClients {
		for client := range viewers {
			h.removeLocked(client)
		}
	}
}

// pollIDFromChannel parses "poll:<id>:results".
func pollIDFromChannel(channel string) (uint, error) {
	raw := strings.TrimSuffix(strings.TrimPrefix(channel, "poll:"), ":results")
	id, err := strconv.ParseUint(raw, 10, 0)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
