// Package ws is the protocol orchestrator for the /game websocket endpoint:
// it authenticates new connections, owns the live session set, dispatches
// inbound events through validate -> rate-limit -> handler, and fans out
// broadcasts the hub asks for.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"gridwalk/server/internal/auth"
	"gridwalk/server/internal/net/proto"
	"gridwalk/server/internal/realtime"
	"gridwalk/server/internal/telemetry"
	"gridwalk/server/logging"
)

type Config struct {
	// AuthTimeout bounds the verification call; a timeout counts as failure.
	AuthTimeout time.Duration
	// ClientTTL is the read deadline refreshed on every inbound frame.
	ClientTTL time.Duration
	// CloseGrace lets a rejection error frame flush before the close.
	CloseGrace time.Duration
}

func (c *Config) norm() {
	if c.AuthTimeout <= 0 {
		c.AuthTimeout = 5 * time.Second
	}
	if c.ClientTTL <= 0 {
		c.ClientTTL = 60 * time.Second
	}
	if c.CloseGrace <= 0 {
		c.CloseGrace = 100 * time.Millisecond
	}
}

// Gateway serves the game namespace. The hub owns all shared state; the
// gateway only maps client ids to connections, so a misbehaving connection
// can never corrupt another session.
type Gateway struct {
	hub      *realtime.Hub
	gate     auth.Gate
	counters *telemetry.Counters
	cfg      Config
	validate *validator.Validate
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	sessions map[string]*session
}

func NewGateway(hub *realtime.Hub, gate auth.Gate, counters *telemetry.Counters, cfg Config) *Gateway {
	cfg.norm()
	if counters == nil {
		counters = telemetry.NewCounters()
	}
	return &Gateway{
		hub:      hub,
		gate:     gate,
		counters: counters,
		cfg:      cfg,
		validate: validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		sessions: make(map[string]*session),
	}
}

// Handle upgrades the request and runs the connection to completion.
func (g *Gateway) Handle(c *gin.Context) {
	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warnf("websocket upgrade failed: %v", err)
		return
	}

	token := extractToken(c.Request)
	ctx, cancel := context.WithTimeout(context.Background(), g.cfg.AuthTimeout)
	identity, err := g.gate.Verify(ctx, token)
	cancel()
	if err != nil {
		g.counters.RecordAuthFailure()
		logging.Warnf("authentication failed from %s: %v", conn.RemoteAddr(), err)
		g.reject(conn)
		return
	}

	id := uuid.NewString()
	sess := newSession(id, conn)
	if err := g.hub.AddClient(id, identity); err != nil {
		logging.Errorf("failed to register %s: %v", id, err)
		sess.close()
		return
	}

	g.mu.Lock()
	g.sessions[id] = sess
	g.mu.Unlock()

	logging.Infof("client connected id=%s user=%s", id, identity.Username)

	if err := sess.send(proto.EventConnected, proto.Connected{ClientID: id, Timestamp: time.Now().UnixMilli()}); err != nil {
		g.teardown(sess)
		return
	}
	g.broadcastAll(proto.EventClientsCount, proto.ClientsCount{Count: g.hub.ClientCount()})

	conn.SetReadDeadline(time.Now().Add(g.cfg.ClientTTL))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(g.cfg.ClientTTL))
		return nil
	})

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			break
		}
		conn.SetReadDeadline(time.Now().Add(g.cfg.ClientTTL))
		g.dispatch(sess, payload)
	}

	g.teardown(sess)
}

// reject notifies an unauthenticated connection and closes it after a short
// grace so the error frame can flush.
func (g *Gateway) reject(conn *websocket.Conn) {
	sess := newSession("", conn)
	_ = sess.sendError(proto.CodeAuthenticationFailed, proto.CodeAuthenticationFailed)
	time.Sleep(g.cfg.CloseGrace)
	sess.close()
}

// teardown removes the session everywhere and notifies whoever shared a room
// with it. Safe to call once per connection; RemoveClient is a no-op for
// unknown ids.
func (g *Gateway) teardown(sess *session) {
	g.mu.Lock()
	if current, ok := g.sessions[sess.id]; ok && current == sess {
		delete(g.sessions, sess.id)
	}
	g.mu.Unlock()

	roomID, remaining, identity, ok := g.hub.RemoveClient(sess.id)
	sess.close()
	if !ok {
		return
	}

	logging.Infof("client disconnected id=%s user=%s", sess.id, identity.Username)
	if roomID != "" {
		g.emit(remaining, proto.EventPlayerLeft, proto.PlayerLeft{
			PlayerID:  sess.id,
			RoomID:    roomID,
			Timestamp: time.Now().UnixMilli(),
		})
	}
	g.broadcastAll(proto.EventClientsCount, proto.ClientsCount{Count: g.hub.ClientCount()})
}

// dispatch handles one inbound frame to completion. A panicking handler is
// contained to the offending client; broadcasts in flight elsewhere are
// unaffected.
func (g *Gateway) dispatch(sess *session, raw []byte) {
	g.counters.RecordMessage()
	defer func() {
		if r := recover(); r != nil {
			g.counters.RecordHandlerPanic()
			logging.Errorf("handler panic for %s: %v", sess.id, r)
			_ = sess.sendError("internal server error", "")
		}
	}()

	var env proto.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		logging.Debugf("discarding malformed frame from %s: %v", sess.id, err)
		_ = sess.sendError("invalid message", proto.CodeValidationFailed)
		return
	}

	switch env.Event {
	case proto.EventJoinRoom:
		g.handleJoinRoom(sess, env.Data)
	case proto.EventLeaveRoom:
		g.handleLeaveRoom(sess, env.Data)
	case proto.EventPlayerMove:
		g.handleMove(sess, env.Data)
	case proto.EventPlayerPosition:
		g.handlePosition(sess, env.Data)
	case proto.EventPing:
		g.handlePing(sess)
	case proto.EventGetServerInfo:
		g.handleServerInfo(sess)
	default:
		logging.Debugf("unknown event %q from %s", env.Event, sess.id)
	}
}

// decode unmarshals and validates an inbound payload. Malformed payloads are
// rejected before any handler state is touched.
func (g *Gateway) decode(sess *session, data json.RawMessage, dst any) bool {
	if len(data) > 0 {
		if err := json.Unmarshal(data, dst); err != nil {
			_ = sess.sendError("invalid payload", proto.CodeValidationFailed)
			return false
		}
	}
	if err := g.validate.Struct(dst); err != nil {
		_ = sess.sendError("invalid payload", proto.CodeValidationFailed)
		return false
	}
	return true
}

// generalGate applies the control-traffic rate limit and reports the
// rejection to the client.
func (g *Gateway) generalGate(sess *session) bool {
	if g.hub.Allow(sess.id, realtime.LimitGeneral) {
		return true
	}
	g.counters.RecordRateLimited()
	_ = sess.sendError("rate limit exceeded", proto.CodeRateLimited)
	return false
}

func (g *Gateway) handleJoinRoom(sess *session, data json.RawMessage) {
	var req proto.JoinRoomRequest
	if !g.decode(sess, data, &req) {
		return
	}
	if !g.generalGate(sess) {
		return
	}

	change, ok := g.hub.JoinRoom(sess.id, req.RoomID)
	if !ok {
		_ = sess.sendError("unknown session", "")
		return
	}

	now := time.Now().UnixMilli()
	if change.PrevRoom != "" {
		g.emit(change.PrevMembers, proto.EventPlayerLeft, proto.PlayerLeft{
			PlayerID:  sess.id,
			RoomID:    change.PrevRoom,
			Timestamp: now,
		})
	}

	states := make([]proto.PlayerState, 0, len(change.Others))
	for _, snap := range change.Others {
		states = append(states, proto.StatePayload(snap))
	}
	_ = sess.send(proto.EventRoomJoined, proto.RoomJoined{
		RoomID:       change.RoomID,
		Players:      change.Members,
		PlayerCount:  len(change.Members),
		PlayersState: states,
	})

	if !change.Rejoined {
		snap, _ := g.hub.State(sess.id)
		joined := proto.PlayerJoined{
			PlayerID:   sess.id,
			PlayerData: proto.StatePayload(snap),
			RoomID:     change.RoomID,
			Timestamp:  now,
		}
		g.emitExcept(change.Members, sess.id, proto.EventPlayerJoined, joined)
	}
}

func (g *Gateway) handleLeaveRoom(sess *session, data json.RawMessage) {
	var req proto.LeaveRoomRequest
	if !g.decode(sess, data, &req) {
		return
	}
	if !g.generalGate(sess) {
		return
	}

	remaining, ok := g.hub.LeaveRoom(sess.id, req.RoomID)
	if !ok {
		_ = sess.sendError("not in room", "")
		return
	}

	g.emit(remaining, proto.EventPlayerLeft, proto.PlayerLeft{
		PlayerID:  sess.id,
		RoomID:    req.RoomID,
		Timestamp: time.Now().UnixMilli(),
	})
	_ = sess.send(proto.EventRoomLeft, proto.RoomLeft{RoomID: req.RoomID, Message: "left room"})
}

func (g *Gateway) handleMove(sess *session, data json.RawMessage) {
	var req proto.MoveRequest
	if !g.decode(sess, data, &req) {
		return
	}
	patch := realtime.Patch{Position: req.Position, Rotation: req.Rotation, Velocity: req.Velocity}
	g.relayUpdate(sess, patch, proto.EventPlayerMoved)
}

func (g *Gateway) handlePosition(sess *session, data json.RawMessage) {
	var req proto.PositionRequest
	if !g.decode(sess, data, &req) {
		return
	}
	patch := realtime.Patch{Position: req.Position, Rotation: req.Rotation, Velocity: req.Velocity}
	g.relayUpdate(sess, patch, proto.EventPositionUpdate)
}

// relayUpdate is the shared path for both position message kinds. Position
// traffic over the limit is dropped silently: the client's next tick retries
// anyway, and an error per dropped frame would just add chatter.
func (g *Gateway) relayUpdate(sess *session, patch realtime.Patch, outEvent string) {
	if !g.hub.Allow(sess.id, realtime.LimitPosition) {
		g.counters.RecordPositionDropped()
		return
	}

	delta, recipients, ok := g.hub.ApplyUpdate(sess.id, patch)
	if !ok {
		g.counters.RecordThrottled()
		return
	}
	g.emit(recipients, outEvent, proto.DeltaPayload(delta))
}

func (g *Gateway) handlePing(sess *session) {
	if !g.generalGate(sess) {
		return
	}
	_ = sess.send(proto.EventPong, proto.Pong{Timestamp: time.Now().UnixMilli()})
}

func (g *Gateway) handleServerInfo(sess *session) {
	if !g.generalGate(sess) {
		return
	}
	_ = sess.send(proto.EventServerInfo, proto.ServerInfo{
		ConnectedClients: g.hub.ClientCount(),
		ActiveRooms:      g.hub.RoomCount(),
		Timestamp:        time.Now().UnixMilli(),
	})
}

// emit marshals once and writes the frame to every listed client. A write
// failure only logs; the failing connection's own read loop will notice the
// broken pipe and tear the session down.
func (g *Gateway) emit(ids []string, event string, payload any) {
	if len(ids) == 0 {
		return
	}
	frame, err := marshalEnvelope(event, payload)
	if err != nil {
		logging.Errorf("failed to marshal %s broadcast: %v", event, err)
		return
	}

	g.mu.RLock()
	targets := make([]*session, 0, len(ids))
	for _, id := range ids {
		if sess, ok := g.sessions[id]; ok {
			targets = append(targets, sess)
		}
	}
	g.mu.RUnlock()

	for _, sess := range targets {
		if err := sess.writeRaw(frame); err != nil {
			logging.Debugf("failed to send %s to %s: %v", event, sess.id, err)
			continue
		}
		g.counters.RecordBroadcast(len(frame))
	}
}

func (g *Gateway) emitExcept(ids []string, exclude string, event string, payload any) {
	filtered := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != exclude {
			filtered = append(filtered, id)
		}
	}
	g.emit(filtered, event, payload)
}

// broadcastAll sends to every connected client, room or not.
func (g *Gateway) broadcastAll(event string, payload any) {
	frame, err := marshalEnvelope(event, payload)
	if err != nil {
		logging.Errorf("failed to marshal %s broadcast: %v", event, err)
		return
	}

	g.mu.RLock()
	targets := make([]*session, 0, len(g.sessions))
	for _, sess := range g.sessions {
		targets = append(targets, sess)
	}
	g.mu.RUnlock()

	for _, sess := range targets {
		if err := sess.writeRaw(frame); err != nil {
			logging.Debugf("failed to send %s to %s: %v", event, sess.id, err)
			continue
		}
		g.counters.RecordBroadcast(len(frame))
	}
}

func marshalEnvelope(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(proto.Envelope{Event: event, Data: data})
}

// extractToken picks the first non-empty credential from the handshake auth
// field, the Authorization header, and the token query parameter, in that
// order.
func extractToken(r *http.Request) string {
	if v := r.URL.Query().Get("auth"); v != "" {
		return v
	}
	if h := r.Header.Get("Authorization"); h != "" {
		const prefix = "Bearer "
		if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
			return strings.TrimSpace(h[len(prefix):])
		}
	}
	return r.URL.Query().Get("token")
}
