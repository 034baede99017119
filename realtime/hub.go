// Package realtime is the room-based broadcaster behind the live dashboard:
// it authorizes campaign room membership and fans scan/submission events out
// to every joined connection.
package realtime

import (
	"context"
	"sync"

	"github.com/scanradar/scanradar/log"
)

// CampaignOwnership answers whether a user owns a campaign. Satisfied by
// store.Store.
type CampaignOwnership interface {
	CampaignOwnedBy(ctx context.Context, campaignID, userID int64) (bool, error)
}

// Hub tracks connected clients and per-campaign rooms. All membership
// mutations and deliveries go through one mutex; Publish is fire-and-forget
// and at-most-once per connection.
type Hub struct {
	owners CampaignOwnership

	mu      sync.Mutex
	clients map[*Client]bool
	rooms   map[string]map[*Client]bool
	recent  *recentKeys
}

func NewHub(owners CampaignOwnership) *Hub {
	return &Hub{
		owners:  owners,
		clients: make(map[*Client]bool),
		rooms:   make(map[string]map[*Client]bool),
		recent:  newRecentKeys(512),
	}
}

// sendTo delivers to one live client without blocking. Callers hold h.mu, so
// a send can never race the channel close in unregister.
func (h *Hub) sendTo(c *Client, msg Message) {
	if !h.clients[c] {
		return
	}
	select {
	case c.send <- msg:
	default:
		// slow consumer, the message is dropped
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	total := len(h.clients)
	h.mu.Unlock()
	log.Debugf("realtime.connect: user %d (%d clients)", c.userID, total)
}

// unregister drops the client from every room. Peers are not notified.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	for room, members := range h.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	total := len(h.clients)
	h.mu.Unlock()
	log.Debugf("realtime.disconnect: user %d (%d clients)", c.userID, total)
}

// joinRoom authorizes and adds the client to a campaign room. On any failure
// only the caller gets an error event; room state is unchanged.
func (h *Hub) joinRoom(ctx context.Context, c *Client, campaignID int64) {
	owned, err := h.owners.CampaignOwnedBy(ctx, campaignID, c.userID)

	h.mu.Lock()
	defer h.mu.Unlock()

	if err != nil {
		log.Errorf("realtime.join.ownership: %s", err)
		h.sendTo(c, Message{Event: EventError, Data: map[string]any{"message": "Failed to join campaign"}})
		return
	}
	if !owned {
		h.sendTo(c, Message{Event: EventError, Data: map[string]any{"message": "Campaign not found"}})
		return
	}
	if !h.clients[c] {
		// disconnected while the ownership check was in flight
		return
	}

	room := RoomKey(campaignID)
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]bool)
		h.rooms[room] = members
	}
	members[c] = true

	h.sendTo(c, Message{Event: EventJoinedCampaign, Data: map[string]any{"campaignId": campaignID}})
}

// leaveRoom is unconditional and idempotent.
func (h *Hub) leaveRoom(c *Client, campaignID int64) {
	room := RoomKey(campaignID)

	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}

	h.sendTo(c, Message{Event: EventLeftCampaign, Data: map[string]any{"campaignId": campaignID}})
}

// Publish delivers the event to every current member of the room. The same
// logical event can arrive twice (in-process publish plus change feed); the
// recent-key ring drops the second copy.
func (h *Hub) Publish(room string, event Event) {
	msg := Message{Event: event.Name, Data: event.Data}

	h.mu.Lock()
	defer h.mu.Unlock()

	if event.Key != "" && h.recent.observe(room+"/"+event.Key) {
		log.Debugf("realtime.publish: duplicate %s dropped", event.Key)
		return
	}
	for c := range h.rooms[room] {
		h.sendTo(c, msg)
	}
}

// RoomSize reports current membership, mainly for tests and logs.
func (h *Hub) RoomSize(room string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[room])
}

// recentKeys is a fixed-size ring of delivered event keys.
type recentKeys struct {
	keys []string
	next int
	seen map[string]bool
}

func newRecentKeys(size int) *recentKeys {
	return &recentKeys{
		keys: make([]string, size),
		seen: make(map[string]bool, size),
	}
}

// observe reports whether key was already delivered, recording it otherwise.
func (r *recentKeys) observe(key string) bool {
	if r.seen[key] {
		return true
	}
	if old := r.keys[r.next]; old != "" {
		delete(r.seen, old)
	}
	r.keys[r.next] = key
	r.seen[key] = true
	r.next = (r.next + 1) % len(r.keys)
	return false
}
