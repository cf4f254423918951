package realtime

import (
	"math"
	"time"
)

// SyncConfig carries the broadcast throttle and the per-field significance
// thresholds. The values are part of the wire contract; see config.Sync.
type SyncConfig struct {
	ThrottleInterval time.Duration
	PositionEpsilon  float64
	RotationEpsilon  float64
	VelocityEpsilon  float64
}

// Patch is a partial state update with explicit per-field presence. A nil
// field was not sent by the client and is never evaluated; this is distinct
// from a field sent with a zero value.
type Patch struct {
	Position *Vec2
	Rotation *float64
	Velocity *Vec2
}

// Delta is the minimal broadcast payload produced by an accepted update:
// only the fields that changed significantly, plus the sender and the server
// timestamp.
type Delta struct {
	PlayerID  string
	Position  *Vec2
	Rotation  *float64
	Velocity  *Vec2
	Timestamp int64
}

// synchronizer decides whether an inbound state update is worth relaying.
// Callers synchronize; apply mutates the session under the hub mutex.
type synchronizer struct {
	conf SyncConfig
}

func newSynchronizer(conf SyncConfig) *synchronizer {
	return &synchronizer{conf: conf}
}

// apply runs the two-phase filter: the throttle gate first, then each
// supplied field against its own threshold. An update can be discarded for
// being too frequent or for being too small; only an accepted update mutates
// the session and stamps LastBroadcast.
func (s *synchronizer) apply(state *clientState, patch Patch, now time.Time) (Delta, bool) {
	if now.Sub(state.LastBroadcast) < s.conf.ThrottleInterval {
		return Delta{}, false
	}

	delta := Delta{PlayerID: state.ID, Timestamp: now.UnixMilli()}
	changed := false

	if patch.Position != nil {
		if math.Abs(patch.Position.X-state.Position.X) > s.conf.PositionEpsilon ||
			math.Abs(patch.Position.Y-state.Position.Y) > s.conf.PositionEpsilon {
			pos := *patch.Position
			delta.Position = &pos
			changed = true
		}
	}
	if patch.Rotation != nil {
		if math.Abs(*patch.Rotation-state.Rotation) > s.conf.RotationEpsilon {
			rot := *patch.Rotation
			delta.Rotation = &rot
			changed = true
		}
	}
	if patch.Velocity != nil {
		if math.Abs(patch.Velocity.X-state.Velocity.X) > s.conf.VelocityEpsilon ||
			math.Abs(patch.Velocity.Y-state.Velocity.Y) > s.conf.VelocityEpsilon {
			vel := *patch.Velocity
			delta.Velocity = &vel
			changed = true
		}
	}

	if !changed {
		// Insignificant fields keep their last accepted value so jitter
		// never accumulates into a broadcast.
		return Delta{}, false
	}

	if delta.Position != nil {
		state.Position = *delta.Position
	}
	if delta.Rotation != nil {
		state.Rotation = *delta.Rotation
	}
	if delta.Velocity != nil {
		state.Velocity = *delta.Velocity
	}
	state.LastBroadcast = now
	state.LastUpdate = now

	return delta, true
}
