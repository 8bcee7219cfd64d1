package sse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	redisclient "github.com/zapdeck/session-server/internal/redis"
)

const (
	HeartbeatInterval = 30 * time.Second
	clientBufferSize  = 100
)

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type Client struct {
	OwnerID string
	Events  chan Event
	Done    chan struct{}
}

// Broker fans session lifecycle events out to dashboards. Events travel through
// redis pub/sub so every replica sees them.
type Broker struct {
	redis   *redisclient.Client
	clients map[string]map[*Client]bool // ownerID -> set of clients
	cancels map[string]context.CancelFunc
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewBroker(redisClient *redisclient.Client) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		redis:   redisClient,
		clients: make(map[string]map[*Client]bool),
		cancels: make(map[string]context.CancelFunc),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (b *Broker) Subscribe(ownerID string) *Client {
	client := &Client{
		OwnerID: ownerID,
		Events:  make(chan Event, clientBufferSize),
		Done:    make(chan struct{}),
	}

	b.mu.Lock()
	if b.clients[ownerID] == nil {
		b.clients[ownerID] = make(map[*Client]bool)
		if b.redis != nil {
			ctx, cancel := context.WithCancel(b.ctx)
			b.cancels[ownerID] = cancel
			go b.subscribeToRedis(ctx, ownerID)
		}
	}
	b.clients[ownerID][client] = true
	clientCount := len(b.clients[ownerID])
	b.mu.Unlock()

	log.Info().
		Str("ownerId", ownerID).
		Int("clientCount", clientCount).
		Msg("sse client subscribed")

	return client
}

func (b *Broker) Unsubscribe(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	clients, ok := b.clients[client.OwnerID]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	close(client.Done)

	if len(clients) == 0 {
		delete(b.clients, client.OwnerID)
		if cancel, ok := b.cancels[client.OwnerID]; ok {
			cancel()
			delete(b.cancels, client.OwnerID)
		}
	}

	log.Info().
		Str("ownerId", client.OwnerID).
		Int("clientCount", len(clients)).
		Msg("sse client unsubscribed")
}

// Publish sends event to every dashboard of ownerID on any replica.
// Without redis it delivers to local subscribers only.
func (b *Broker) Publish(ctx context.Context, ownerID string, event Event) error {
	if b.redis == nil {
		b.broadcast(ownerID, event)
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	channel := redisclient.SessionEventChannel(ownerID)
	return b.redis.Publish(ctx, channel, data).Err()
}

func (b *Broker) subscribeToRedis(ctx context.Context, ownerID string) {
	channel := redisclient.SessionEventChannel(ownerID)
	pubsub := b.redis.Subscribe(ctx, channel)
	defer pubsub.Close()

	log.Debug().
		Str("ownerId", ownerID).
		Str("channel", channel).
		Msg("redis pubsub subscribed")

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Msg("failed to unmarshal event")
				continue
			}

			b.broadcast(ownerID, event)
		}
	}
}

func (b *Broker) broadcast(ownerID string, event Event) {
	b.mu.RLock()
	clients := make([]*Client, 0, len(b.clients[ownerID]))
	for client := range b.clients[ownerID] {
		clients = append(clients, client)
	}
	b.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.Events <- event:
		default:
			log.Warn().
				Str("ownerId", ownerID).
				Str("event", event.Type).
				Msg("client event buffer full, dropping event")
		}
	}
}

func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, clients := range b.clients {
		for client := range clients {
			close(client.Done)
		}
	}
	b.clients = make(map[string]map[*Client]bool)
	b.cancels = make(map[string]context.CancelFunc)
}

func (b *Broker) ClientCount(ownerID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients[ownerID])
}

func (b *Broker) TotalClients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	for _, clients := range b.clients {
		total += len(clients)
	}
	return total
}
