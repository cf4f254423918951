// Package telemetry keeps cheap process-local counters for the diagnostics
// endpoint. Counters are atomics; recording never blocks a message handler.
package telemetry

import "sync/atomic"

type Counters struct {
	messagesIn       atomic.Uint64
	broadcasts       atomic.Uint64
	broadcastBytes   atomic.Uint64
	throttledUpdates atomic.Uint64
	rateLimited      atomic.Uint64
	positionDropped  atomic.Uint64
	authFailures     atomic.Uint64
	handlerPanics    atomic.Uint64
}

type Snapshot struct {
	MessagesIn       uint64 `json:"messagesIn"`
	Broadcasts       uint64 `json:"broadcasts"`
	BroadcastBytes   uint64 `json:"broadcastBytes"`
	ThrottledUpdates uint64 `json:"throttledUpdates"`
	RateLimited      uint64 `json:"rateLimited"`
	PositionDropped  uint64 `json:"positionDropped"`
	AuthFailures     uint64 `json:"authFailures"`
	HandlerPanics    uint64 `json:"handlerPanics"`
}

func NewCounters() *Counters {
	return &Counters{}
}

func (c *Counters) RecordMessage() {
	c.messagesIn.Add(1)
}

func (c *Counters) RecordBroadcast(bytes int) {
	if bytes < 0 {
		bytes = 0
	}
	c.broadcasts.Add(1)
	c.broadcastBytes.Add(uint64(bytes))
}

func (c *Counters) RecordThrottled() {
	c.throttledUpdates.Add(1)
}

func (c *Counters) RecordRateLimited() {
	c.rateLimited.Add(1)
}

func (c *Counters) RecordPositionDropped() {
	c.positionDropped.Add(1)
}

func (c *Counters) RecordAuthFailure() {
	c.authFailures.Add(1)
}

func (c *Counters) RecordHandlerPanic() {
	c.handlerPanics.Add(1)
}

func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		MessagesIn:       c.messagesIn.Load(),
		Broadcasts:       c.broadcasts.Load(),
		BroadcastBytes:   c.broadcastBytes.Load(),
		ThrottledUpdates: c.throttledUpdates.Load(),
		RateLimited:      c.rateLimited.Load(),
		PositionDropped:  c.positionDropped.Load(),
		AuthFailures:     c.authFailures.Load(),
		HandlerPanics:    c.handlerPanics.Load(),
	}
}
