// Package proto defines the JSON wire contract spoken on the /game websocket.
// Every frame is an Envelope; the event name selects the payload type. Event
// names and field shapes are shared with the browser client and must not
// drift.
package proto

import (
	"encoding/json"

	"gridwalk/server/internal/realtime"
)

// Inbound event names (client -> server).
const (
	EventJoinRoom       = "join-room"
	EventLeaveRoom      = "leave-room"
	EventPlayerMove     = "player-move"
	EventPlayerPosition = "player-position"
	EventPing           = "ping"
	EventGetServerInfo  = "get-server-info"
)

// Outbound event names (server -> client or room).
const (
	EventConnected      = "connected"
	EventClientsCount   = "clients-count"
	EventPlayerJoined   = "player-joined"
	EventPlayerLeft     = "player-left"
	EventRoomJoined     = "room-joined"
	EventRoomLeft       = "room-left"
	EventPlayerMoved    = "player-moved"
	EventPositionUpdate = "position-update"
	EventPong           = "pong"
	EventServerInfo     = "server-info"
	EventError          = "error"
)

// Error codes carried in ErrorMessage.Code.
const (
	CodeAuthenticationFailed = "AUTHENTICATION_FAILED"
	CodeRateLimited          = "RATE_LIMITED"
	CodeValidationFailed     = "VALIDATION_FAILED"
)

// Envelope frames every message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ---- inbound payloads ----

type JoinRoomRequest struct {
	RoomID string `json:"roomId" validate:"required"`
}

type LeaveRoomRequest struct {
	RoomID string `json:"roomId" validate:"required"`
}

// MoveRequest is a continuous movement tick; every state field is optional.
type MoveRequest struct {
	RoomID   string         `json:"roomId"`
	Position *realtime.Vec2 `json:"position"`
	Rotation *float64       `json:"rotation"`
	Velocity *realtime.Vec2 `json:"velocity"`
}

// PositionRequest is an absolute state report; position is mandatory.
type PositionRequest struct {
	RoomID   string         `json:"roomId" validate:"required"`
	Position *realtime.Vec2 `json:"position" validate:"required"`
	Rotation *float64       `json:"rotation"`
	Velocity *realtime.Vec2 `json:"velocity"`
}

// ---- outbound payloads ----

type Connected struct {
	ClientID  string `json:"clientId"`
	Timestamp int64  `json:"timestamp"`
}

type ClientsCount struct {
	Count int `json:"count"`
}

// PlayerState is a member's last known state, sent in room snapshots and
// join notifications.
type PlayerState struct {
	ID       string        `json:"id"`
	Username string        `json:"username"`
	Position realtime.Vec2 `json:"position"`
	Rotation float64       `json:"rotation"`
	Velocity realtime.Vec2 `json:"velocity"`
}

type PlayerJoined struct {
	PlayerID   string      `json:"playerId"`
	PlayerData PlayerState `json:"playerData"`
	RoomID     string      `json:"roomId"`
	Timestamp  int64       `json:"timestamp"`
}

type PlayerLeft struct {
	PlayerID  string `json:"playerId"`
	RoomID    string `json:"roomId"`
	Timestamp int64  `json:"timestamp"`
}

type RoomJoined struct {
	RoomID       string        `json:"roomId"`
	Players      []string      `json:"players"`
	PlayerCount  int           `json:"playerCount"`
	PlayersState []PlayerState `json:"playersState"`
}

type RoomLeft struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

// PlayerDelta carries only the fields that changed significantly. It is the
// payload of both player-moved and position-update.
type PlayerDelta struct {
	PlayerID  string         `json:"playerId"`
	Position  *realtime.Vec2 `json:"position,omitempty"`
	Rotation  *float64       `json:"rotation,omitempty"`
	Velocity  *realtime.Vec2 `json:"velocity,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

type Pong struct {
	Timestamp int64 `json:"timestamp"`
}

type ServerInfo struct {
	ConnectedClients int   `json:"connectedClients"`
	ActiveRooms      int   `json:"activeRooms"`
	Timestamp        int64 `json:"timestamp"`
}

type ErrorMessage struct {
	Message string `json:"message"`
	Code    string `json:"error,omitempty"`
}

// DeltaPayload converts a hub delta into its wire form.
func DeltaPayload(delta realtime.Delta) PlayerDelta {
	return PlayerDelta{
		PlayerID:  delta.PlayerID,
		Position:  delta.Position,
		Rotation:  delta.Rotation,
		Velocity:  delta.Velocity,
		Timestamp: delta.Timestamp,
	}
}

// StatePayload converts a session snapshot into its wire form.
func StatePayload(snap realtime.ClientSnapshot) PlayerState {
	return PlayerState{
		ID:       snap.ID,
		Username: snap.Identity.Username,
		Position: snap.Position,
		Rotation: snap.Rotation,
		Velocity: snap.Velocity,
	}
}
