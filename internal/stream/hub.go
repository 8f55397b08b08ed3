// Package stream fans engine state out to observers. Each state category of a
// ride is a topic; subscribers get the topic's current value immediately and
// deltas afterwards. Delivery never blocks the producer: client buffers are
// bounded and drop their oldest entry on overflow, so a slow UI can lag but
// telemetry ingestion cannot stall.
package stream

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const clientBuffer = 64

// Topic names for a ride's state categories.
func SessionTopic(rideID string) string    { return "ride:" + rideID + ":session" }
func SafetyTopic(rideID string) string     { return "ride:" + rideID + ":safety" }
func EscalationTopic(rideID string) string { return "ride:" + rideID + ":escalation" }

type Hub struct {
	id      string
	redis   *redis.Client
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	latest  map[string][]byte
}

// Client is one observer. Send stays open for the client's lifetime; done is
// closed on Unsubscribe and tells both the hub and the reader to stop.
type Client struct {
	Topic string
	Send  chan []byte
	done  chan struct{}
}

// Done is closed once the client has been unsubscribed.
func (c *Client) Done() <-chan struct{} { return c.done }

func NewHub(redisClient *redis.Client) *Hub {
	h := &Hub{
		id:      uuid.NewString(),
		redis:   redisClient,
		clients: map[string]map[*Client]struct{}{},
		latest:  map[string][]byte{},
	}

	if redisClient != nil {
		go h.subscribeRedis()
	}
	return h
}

// Subscribe registers an observer on a topic. The topic's current value, if
// one was ever published, is queued before any delta.
func (h *Hub) Subscribe(topic string) *Client {
	client := &Client{
		Topic: topic,
		Send:  make(chan []byte, clientBuffer),
		done:  make(chan struct{}),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[topic] == nil {
		h.clients[topic] = map[*Client]struct{}{}
	}
	h.clients[topic][client] = struct{}{}
	if snapshot, ok := h.latest[topic]; ok {
		client.Send <- snapshot
	}
	return client
}

// Unsubscribe removes the client and closes its done channel. Send is left
// open so a publish racing the removal can never hit a closed channel; it is
// simply no longer read. Safe to call more than once.
func (h *Hub) Unsubscribe(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	topicClients, ok := h.clients[client.Topic]
	if !ok {
		return
	}
	if _, present := topicClients[client]; !present {
		return
	}
	delete(topicClients, client)
	if len(topicClients) == 0 {
		delete(h.clients, client.Topic)
	}
	close(client.done)
}

// Publish records the topic's new current value and fans it out.
func (h *Hub) Publish(topic string, payload []byte) {
	h.broadcast(topic, payload)

	if h.redis != nil {
		msg := append([]byte(h.id+"|"), payload...)
		if err := h.redis.Publish(context.Background(), redisChannel(topic), msg).Err(); err != nil {
			log.Printf("redis publish error: %v", err)
		}
	}
}

func (h *Hub) broadcast(topic string, payload []byte) {
	h.mu.Lock()
	h.latest[topic] = payload
	clients := make([]*Client, 0, len(h.clients[topic]))
	for c := range h.clients[topic] {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, client := range clients {
		deliver(client, payload)
	}
}

// deliver enqueues without blocking, evicting the oldest buffered message
// when the client is full.
func deliver(client *Client, payload []byte) {
	for {
		select {
		case <-client.done:
			return
		case client.Send <- payload:
			return
		default:
			select {
			case <-client.Send:
			default:
			}
		}
	}
}

func (h *Hub) subscribeRedis() {
	ctx := context.Background()
	pubsub := h.redis.PSubscribe(ctx, "engine:*")
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		topic := topicFromChannel(msg.Channel)
		if topic == "" {
			continue
		}
		origin, payload := splitOrigin([]byte(msg.Payload))
		if origin == h.id {
			// our own publish echoed back; local delivery already happened
			continue
		}
		h.broadcast(topic, payload)
	}
}

func redisChannel(topic string) string {
	return "engine:" + topic
}

func topicFromChannel(ch string) string {
	return strings.TrimPrefix(ch, "engine:")
}

// splitOrigin strips the publishing hub's instance id from a wire message.
// Messages without the prefix (e.g. published by another tool directly) pass
// through whole with an empty origin.
func splitOrigin(b []byte) (string, []byte) {
	const idLen = 36 // uuid text form
	if len(b) > idLen && b[idLen] == '|' {
		if id, err := uuid.Parse(string(b[:idLen])); err == nil {
			return id.String(), b[idLen+1:]
		}
	}
	return "", b
}
