package websocket

import (
	"encoding/json"
	"sync"
)

// BalanceUpdate is pushed to a user after a settlement or top-up has
// committed. It is notification only; the balance of record lives in
// the users table.
type BalanceUpdate struct {
	Balance string `json:"balance"`
	Reason  string `json:"reason"`
}

// Hub fans committed balance changes out to every live connection a
// user holds.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]map[*Client]struct{})}
}

func (h *Hub) Register(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.conns[userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.conns[userID] = set
	}
	set[client] = struct{}{}
}

func (h *Hub) Unregister(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.conns[userID]
	if !ok {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.conns, userID)
	}
}

// BroadcastBalance pushes a settled balance to every connection the
// user holds. Slow consumers are skipped, not waited on.
func (h *Hub) BroadcastBalance(userID string, update BalanceUpdate) {
	payload, err := json.Marshal(update)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.conns[userID] {
		select {
		case client.send <- payload:
		default:
		}
	}
}
