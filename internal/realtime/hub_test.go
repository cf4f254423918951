package realtime

import (
	"testing"
	"time"

	"gridwalk/server/internal/auth"
)

// fakeClock lets tests step hub time deterministically.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestHub() (*Hub, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	hub := NewHub(Config{
		Sync:  testSyncConfig(),
		Rate:  testLimiterConfig(),
		Clock: clock.Now,
	})
	return hub, clock
}

func TestHubSessionExistsIffConnected(t *testing.T) {
	hub, _ := newTestHub()

	if _, ok := hub.State("a"); ok {
		t.Fatalf("state should not exist before AddClient")
	}

	if err := hub.AddClient("a", auth.Identity{ID: "u1", Username: "alice"}); err != nil {
		t.Fatalf("AddClient failed: %v", err)
	}
	if _, ok := hub.State("a"); !ok {
		t.Fatalf("state should exist after AddClient")
	}
	if hub.ClientCount() != 1 {
		t.Fatalf("expected 1 client, got %d", hub.ClientCount())
	}

	if _, _, _, ok := hub.RemoveClient("a"); !ok {
		t.Fatalf("RemoveClient should succeed")
	}
	if _, ok := hub.State("a"); ok {
		t.Fatalf("state should be gone after RemoveClient")
	}
	if _, _, _, ok := hub.RemoveClient("a"); ok {
		t.Fatalf("second RemoveClient should be a no-op")
	}
}

func TestHubJoinRoomAtomicTransfer(t *testing.T) {
	hub, _ := newTestHub()
	hub.AddClient("a", auth.Identity{ID: "u1"})
	hub.AddClient("b", auth.Identity{ID: "u2"})

	hub.JoinRoom("a", "r1")
	hub.JoinRoom("b", "r1")

	change, ok := hub.JoinRoom("a", "r2")
	if !ok {
		t.Fatalf("JoinRoom failed")
	}
	if change.PrevRoom != "r1" {
		t.Fatalf("expected previous room r1, got %q", change.PrevRoom)
	}
	if len(change.PrevMembers) != 1 || change.PrevMembers[0] != "b" {
		t.Fatalf("unexpected previous members: %v", change.PrevMembers)
	}

	snap, _ := hub.State("a")
	if snap.RoomID != "r2" {
		t.Fatalf("session room should be r2, got %q", snap.RoomID)
	}
	if got := hub.Members("r2"); len(got) != 1 || got[0] != "a" {
		t.Fatalf("unexpected r2 members: %v", got)
	}
	if hub.RoomCount() != 2 {
		t.Fatalf("expected rooms r1 and r2, got %d", hub.RoomCount())
	}
}

func TestHubJoinRoomEmptiesPreviousRoom(t *testing.T) {
	hub, _ := newTestHub()
	hub.AddClient("a", auth.Identity{ID: "u1"})

	hub.JoinRoom("a", "r1")
	change, _ := hub.JoinRoom("a", "r2")

	if change.PrevRoom != "r1" || len(change.PrevMembers) != 0 {
		t.Fatalf("unexpected change: %+v", change)
	}
	if hub.RoomCount() != 1 {
		t.Fatalf("empty r1 should be dropped, rooms=%d", hub.RoomCount())
	}
}

func TestHubJoinRoomSnapshotExcludesJoiner(t *testing.T) {
	hub, clock := newTestHub()
	hub.AddClient("a", auth.Identity{ID: "u1", Username: "alice"})
	hub.AddClient("b", auth.Identity{ID: "u2", Username: "bob"})

	hub.JoinRoom("a", "r1")
	hub.ApplyUpdate("a", Patch{Position: vec(10, 20)})
	clock.advance(time.Second)

	change, _ := hub.JoinRoom("b", "r1")
	if len(change.Members) != 2 {
		t.Fatalf("expected both members, got %v", change.Members)
	}
	if len(change.Others) != 1 || change.Others[0].ID != "a" {
		t.Fatalf("others should contain only a: %+v", change.Others)
	}
	if change.Others[0].Position.X != 10 || change.Others[0].Position.Y != 20 {
		t.Fatalf("snapshot should carry a's last known position: %+v", change.Others[0].Position)
	}
}

func TestHubRejoinSameRoom(t *testing.T) {
	hub, _ := newTestHub()
	hub.AddClient("a", auth.Identity{ID: "u1"})

	hub.JoinRoom("a", "r1")
	change, ok := hub.JoinRoom("a", "r1")
	if !ok || !change.Rejoined {
		t.Fatalf("rejoin should be flagged: %+v", change)
	}
	if hub.RoomCount() != 1 {
		t.Fatalf("rejoin should not duplicate rooms")
	}
}

func TestHubApplyUpdateExcludesSender(t *testing.T) {
	hub, _ := newTestHub()
	hub.AddClient("a", auth.Identity{ID: "u1"})
	hub.AddClient("b", auth.Identity{ID: "u2"})
	hub.AddClient("c", auth.Identity{ID: "u3"})
	hub.JoinRoom("a", "r1")
	hub.JoinRoom("b", "r1")
	hub.JoinRoom("c", "r1")

	delta, recipients, ok := hub.ApplyUpdate("a", Patch{Position: vec(5, 5)})
	if !ok {
		t.Fatalf("update should be accepted")
	}
	if delta.PlayerID != "a" {
		t.Fatalf("delta sender mismatch: %q", delta.PlayerID)
	}
	if len(recipients) != 2 {
		t.Fatalf("expected 2 recipients, got %v", recipients)
	}
	for _, id := range recipients {
		if id == "a" {
			t.Fatalf("sender must never be a recipient")
		}
	}
}

func TestHubApplyUpdateThrottle(t *testing.T) {
	hub, clock := newTestHub()
	hub.AddClient("a", auth.Identity{ID: "u1"})
	hub.JoinRoom("a", "r1")

	if _, _, ok := hub.ApplyUpdate("a", Patch{Position: vec(10, 20)}); !ok {
		t.Fatalf("first update should be accepted")
	}
	// Same instant: inside the throttle window.
	if _, _, ok := hub.ApplyUpdate("a", Patch{Position: vec(15, 25)}); ok {
		t.Fatalf("second update inside the throttle window should be dropped")
	}
	snap, _ := hub.State("a")
	if snap.Position.X != 10 {
		t.Fatalf("throttled update mutated state: %+v", snap.Position)
	}

	clock.advance(34 * time.Millisecond)
	if _, _, ok := hub.ApplyUpdate("a", Patch{Position: vec(15, 25)}); !ok {
		t.Fatalf("update past the throttle window should be accepted")
	}
}

func TestHubUpdateOutsideRoomHasNoRecipients(t *testing.T) {
	hub, _ := newTestHub()
	hub.AddClient("a", auth.Identity{ID: "u1"})

	_, recipients, ok := hub.ApplyUpdate("a", Patch{Position: vec(1, 1)})
	if !ok {
		t.Fatalf("update should still be accepted without a room")
	}
	if len(recipients) != 0 {
		t.Fatalf("no recipients expected, got %v", recipients)
	}
}

func TestHubRemoveClientLeavesRoom(t *testing.T) {
	hub, _ := newTestHub()
	hub.AddClient("a", auth.Identity{ID: "u1"})
	hub.AddClient("b", auth.Identity{ID: "u2"})
	hub.JoinRoom("a", "r1")
	hub.JoinRoom("b", "r1")

	roomID, remaining, identity, ok := hub.RemoveClient("a")
	if !ok || roomID != "r1" {
		t.Fatalf("expected departure from r1, got %q ok=%v", roomID, ok)
	}
	if identity.ID != "u1" {
		t.Fatalf("identity mismatch: %+v", identity)
	}
	if len(remaining) != 1 || remaining[0] != "b" {
		t.Fatalf("unexpected remaining members: %v", remaining)
	}
	if hub.RoomCount() != 1 {
		t.Fatalf("room with b still present should survive")
	}
}

func TestHubRateLimitAcrossKinds(t *testing.T) {
	hub, _ := newTestHub()
	hub.AddClient("a", auth.Identity{ID: "u1"})

	for i := 0; i < 30; i++ {
		if !hub.Allow("a", LimitGeneral) {
			t.Fatalf("general event %d should be allowed", i+1)
		}
	}
	if hub.Allow("a", LimitGeneral) {
		t.Fatalf("31st general event should be rejected")
	}
	if !hub.Allow("a", LimitPosition) {
		t.Fatalf("position window should be independent")
	}

	// Disconnect drops rate state; a reconnecting client starts fresh.
	hub.RemoveClient("a")
	hub.AddClient("a", auth.Identity{ID: "u1"})
	if !hub.Allow("a", LimitGeneral) {
		t.Fatalf("windows should reset after disconnect")
	}
}
