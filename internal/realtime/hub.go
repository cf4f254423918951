package realtime

import (
	"sync"
	"time"

	"gridwalk/server/internal/auth"
)

// Config assembles the tuning for every hub component.
type Config struct {
	Sync  SyncConfig
	Rate  LimiterConfig
	Clock func() time.Time // injectable for tests; nil means time.Now
}

// Hub owns all live session, room, and rate-limit state. One mutex serializes
// every mutation, which keeps the room transfer in JoinRoom atomic and the
// registry/room index mutually consistent. The hub knows nothing about the
// transport; the gateway holds the connections and asks the hub who to
// notify.
type Hub struct {
	mu       sync.Mutex
	registry *registry
	rooms    *roomIndex
	limiter  *limiter
	sync     *synchronizer
	clock    func() time.Time
}

func NewHub(cfg Config) *Hub {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Hub{
		registry: newRegistry(),
		rooms:    newRoomIndex(),
		limiter:  newLimiter(cfg.Rate),
		sync:     newSynchronizer(cfg.Sync),
		clock:    clock,
	}
}

// AddClient registers a fresh session for an authenticated connection.
func (h *Hub) AddClient(id string, identity auth.Identity) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.registry.add(id, identity, h.clock())
	return err
}

// RemoveClient tears down the session: leaves its room, drops its rate-limit
// windows, and returns the departed room plus the members still in it so the
// gateway can notify them. ok is false when the id was never registered.
func (h *Hub) RemoveClient(id string) (roomID string, remaining []string, identity auth.Identity, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	state, found := h.registry.remove(id)
	if !found {
		return "", nil, auth.Identity{}, false
	}
	if state.RoomID != "" {
		roomID = state.RoomID
		h.rooms.leave(id, roomID)
		remaining = h.rooms.members(roomID)
	}
	h.limiter.release(id)
	return roomID, remaining, state.Identity, true
}

// State returns a copy of the client's session state.
func (h *Hub) State(id string) (ClientSnapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	state, ok := h.registry.get(id)
	if !ok {
		return ClientSnapshot{}, false
	}
	return state.snapshot(), true
}

// RoomChange describes the outcome of a join: who was left behind, who was
// already there, and their last known state for the joiner's initial
// snapshot.
type RoomChange struct {
	RoomID      string
	Members     []string // every member id, joiner included
	Others      []ClientSnapshot
	PrevRoom    string
	PrevMembers []string // members remaining in the previous room
	Rejoined    bool     // already a member; no notifications needed
}

// JoinRoom moves the client into roomID, leaving any previous room in the
// same critical section so the client is never in two rooms at once.
func (h *Hub) JoinRoom(id, roomID string) (RoomChange, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	state, ok := h.registry.get(id)
	if !ok {
		return RoomChange{}, false
	}

	change := RoomChange{RoomID: roomID}
	if state.RoomID == roomID {
		change.Rejoined = true
	} else {
		prev := h.rooms.join(id, roomID)
		state.RoomID = roomID
		if prev != "" {
			change.PrevRoom = prev
			change.PrevMembers = h.rooms.members(prev)
		}
	}

	change.Members = h.rooms.members(roomID)
	for _, memberID := range change.Members {
		if memberID == id {
			continue
		}
		if member, ok := h.registry.get(memberID); ok {
			change.Others = append(change.Others, member.snapshot())
		}
	}
	return change, true
}

// LeaveRoom removes the client from roomID and returns the remaining member
// ids. ok is false when the client is not a member of that room.
func (h *Hub) LeaveRoom(id, roomID string) ([]string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	state, found := h.registry.get(id)
	if !found || state.RoomID != roomID {
		return nil, false
	}
	h.rooms.leave(id, roomID)
	state.RoomID = ""
	return h.rooms.members(roomID), true
}

// ApplyUpdate runs the throttle/threshold filter over an inbound state patch.
// When the update is significant it returns the minimal delta plus the ids of
// the other room members to broadcast it to; the sender is never a recipient.
func (h *Hub) ApplyUpdate(id string, patch Patch) (Delta, []string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	state, ok := h.registry.get(id)
	if !ok {
		return Delta{}, nil, false
	}

	delta, accepted := h.sync.apply(state, patch, h.clock())
	if !accepted {
		return Delta{}, nil, false
	}

	var recipients []string
	if state.RoomID != "" {
		for _, memberID := range h.rooms.members(state.RoomID) {
			if memberID != id {
				recipients = append(recipients, memberID)
			}
		}
	}
	return delta, recipients, true
}

// Allow counts one event of the given kind against the client's rate window.
func (h *Hub) Allow(id string, kind LimitKind) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.limiter.allow(id, kind, h.clock())
}

func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.registry.count()
}

func (h *Hub) RoomCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rooms.roomCount()
}

// Members returns a snapshot of the room's member ids.
func (h *Hub) Members(roomID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rooms.members(roomID)
}
