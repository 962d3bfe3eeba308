package stream

import (
	"fmt"
	"sync"
)

// PriceTick is one instrument update pushed to stream subscribers.
type PriceTick struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	ChangePercent float64 `json:"change_percent"`
}

type subscriber struct {
	sessionID string
	userID    string
	all       bool
	symbols   map[string]struct{}
	send      chan []PriceTick
}

// Hub fans refreshed prices out to connected sessions. Slow consumers drop
// ticks instead of blocking the broadcaster.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]*subscriber)}
}

func (h *Hub) Add(sessionID, userID string) (<-chan []PriceTick, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sessionID == "" || userID == "" {
		return nil, fmt.Errorf("sessionID and userID are required")
	}
	if _, ok := h.subscribers[sessionID]; ok {
		return nil, fmt.Errorf("session already exists")
	}
	sub := &subscriber{
		sessionID: sessionID,
		userID:    userID,
		symbols:   map[string]struct{}{},
		send:      make(chan []PriceTick, 8),
	}
	h.subscribers[sessionID] = sub
	return sub.send, nil
}

func (h *Hub) Remove(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subscribers, sessionID)
}

func (h *Hub) SubscribeAll(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subscribers[sessionID]; ok {
		sub.all = true
	}
}

func (h *Hub) SubscribeSymbol(sessionID, symbol string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subscribers[sessionID]; ok {
		sub.symbols[symbol] = struct{}{}
	}
}

func (h *Hub) UnsubscribeSymbol(sessionID, symbol string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subscribers[sessionID]; ok {
		delete(sub.symbols, symbol)
	}
}

// Broadcast delivers ticks to every session subscribed to them.
func (h *Hub) Broadcast(ticks []PriceTick) {
	if len(ticks) == 0 {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subscribers {
		matched := ticks
		if !sub.all {
			matched = matched[:0:0]
			for _, tick := range ticks {
				if _, ok := sub.symbols[tick.Symbol]; ok {
					matched = append(matched, tick)
				}
			}
		}
		if len(matched) == 0 {
			continue
		}
		select {
		case sub.send <- matched:
		default:
		}
	}
}
