package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"gridwalk/server/internal/net/proto"
)

const writeWait = 10 * time.Second

// session wraps one websocket connection. Broadcasts arrive from other
// clients' read goroutines, so every write goes through the session mutex
// and carries a deadline.
type session struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func newSession(id string, conn *websocket.Conn) *session {
	return &session{id: id, conn: conn}
}

// send marshals the payload into an envelope and writes it as one text frame.
func (s *session) send(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(proto.Envelope{Event: event, Data: data})
	if err != nil {
		return err
	}
	return s.writeRaw(frame)
}

// writeRaw writes a pre-marshaled frame under the session write lock.
func (s *session) writeRaw(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

func (s *session) sendError(message, code string) error {
	return s.send(proto.EventError, proto.ErrorMessage{Message: message, Code: code})
}

func (s *session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.Close()
}
