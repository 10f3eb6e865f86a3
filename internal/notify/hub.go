// Package notify fans admitted threat records out to live subscribers.
package notify

import (
	"sync"

	"go.uber.org/zap"

	"github.com/Muchai10/safeguardcrawler/internal/metrics"
	"github.com/Muchai10/safeguardcrawler/internal/storage/models"
	"github.com/Muchai10/safeguardcrawler/pkg/logger"
)

const subscriberBuffer = 64

// Message is what a subscriber receives, serialised as
// {"type":"alert","post_url":...}.
type Message struct {
	Type string `json:"type"`
	models.ThreatRecord
}

type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Message
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Message)}
}

// Subscribe registers a listener. The returned cancel func must be called
// once; it closes the channel.
func (h *Hub) Subscribe() (<-chan Message, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Message, subscriberBuffer)
	h.subs[id] = ch
	metrics.LiveSubscribers.Set(float64(len(h.subs)))

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
			close(ch)
			metrics.LiveSubscribers.Set(float64(len(h.subs)))
		})
	}
	return ch, cancel
}

// Publish never blocks the scan loop. A subscriber whose buffer is full misses
// the message.
func (h *Hub) Publish(records []models.ThreatRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, r := range records {
		msg := Message{Type: "alert", ThreatRecord: r}
		for id, ch := range h.subs {
			select {
			case ch <- msg:
			default:
				logger.Warn("Live subscriber lagging, dropping alert", zap.Int("subscriber", id))
			}
		}
	}
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
