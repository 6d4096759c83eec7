package grpc

import (
	"sync"
	"sync/atomic"

	"github.com/mr1hm/go-accident-alerts/internal/models"
)

// Broadcaster fans broadcast-channel notifications out to live subscribers
// (gRPC streams and websocket clients).
type Broadcaster struct {
	subscribers map[uint64]chan *models.ChannelNotification
	nextID      atomic.Uint64
	mu          sync.RWMutex
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[uint64]chan *models.ChannelNotification),
	}
}

func (b *Broadcaster) Subscribe() (uint64, chan *models.ChannelNotification) {
	id := b.nextID.Add(1)
	ch := make(chan *models.ChannelNotification, 64)

	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()

	return id, ch
}

func (b *Broadcaster) Unsubscribe(id uint64) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

// Broadcast never blocks; it returns the number of subscribers that accepted n.
func (b *Broadcaster) Broadcast(n *models.ChannelNotification) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for _, ch := range b.subscribers {
		select {
		case ch <- n:
			delivered++
		default:
			// Skip slow subscribers
		}
	}
	return delivered
}

func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes all subscriber channels, causing streams to exit gracefully
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}
