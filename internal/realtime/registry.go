package realtime

import (
	"time"

	"github.com/pkg/errors"

	"gridwalk/server/internal/auth"
)

// Vec2 is a 2D vector in world units. It is shared by session state and the
// wire payloads.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// clientState is the per-connection session owned by the registry. It exists
// exactly as long as the transport connection does.
type clientState struct {
	ID       string
	Identity auth.Identity

	Position Vec2
	Rotation float64
	Velocity Vec2

	RoomID string

	LastUpdate    time.Time
	LastBroadcast time.Time
}

// ClientSnapshot is a copy of a session's shareable state, safe to hold
// outside the hub lock.
type ClientSnapshot struct {
	ID       string
	Identity auth.Identity
	Position Vec2
	Rotation float64
	Velocity Vec2
	RoomID   string
}

func (c *clientState) snapshot() ClientSnapshot {
	return ClientSnapshot{
		ID:       c.ID,
		Identity: c.Identity,
		Position: c.Position,
		Rotation: c.Rotation,
		Velocity: c.Velocity,
		RoomID:   c.RoomID,
	}
}

// registry maps connection ids to live sessions. Callers synchronize; every
// method runs under the hub mutex.
type registry struct {
	clients map[string]*clientState
}

func newRegistry() *registry {
	return &registry{clients: make(map[string]*clientState)}
}

// add creates a fresh session at the origin with no room. The transport
// guarantees unique ids, so a duplicate is a programmer error.
func (r *registry) add(id string, identity auth.Identity, now time.Time) (*clientState, error) {
	if _, exists := r.clients[id]; exists {
		return nil, errors.Errorf("client %s already registered", id)
	}
	state := &clientState{
		ID:         id,
		Identity:   identity,
		LastUpdate: now,
	}
	r.clients[id] = state
	return state, nil
}

func (r *registry) remove(id string) (*clientState, bool) {
	state, ok := r.clients[id]
	if !ok {
		return nil, false
	}
	delete(r.clients, id)
	return state, true
}

func (r *registry) get(id string) (*clientState, bool) {
	state, ok := r.clients[id]
	return state, ok
}

func (r *registry) count() int {
	return len(r.clients)
}
