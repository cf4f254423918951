package realtime

import "time"

// LimitKind selects which sliding window a check runs against. Position
// traffic gets its own, much tighter window so that a fast client cannot
// starve its own control messages.
type LimitKind int

const (
	LimitGeneral LimitKind = iota
	LimitPosition
)

// LimiterConfig bounds accepted events per client per kind.
type LimiterConfig struct {
	GeneralMax     int
	GeneralWindow  time.Duration
	PositionMax    int
	PositionWindow time.Duration
}

type limitWindow struct {
	count   int
	resetAt time.Time
}

// limiter tracks per-client sliding windows. Windows are created lazily on
// the first checked event and dropped on disconnect. Callers synchronize;
// every method runs under the hub mutex.
type limiter struct {
	conf    LimiterConfig
	windows map[string]*clientWindows
}

type clientWindows struct {
	general  limitWindow
	position limitWindow
}

func newLimiter(conf LimiterConfig) *limiter {
	return &limiter{
		conf:    conf,
		windows: make(map[string]*clientWindows),
	}
}

// allow counts one event against the client's window for kind and reports
// whether it fits. The counter keeps incrementing past the max, so repeated
// calls stay rejected until the window resets.
func (l *limiter) allow(id string, kind LimitKind, now time.Time) bool {
	w, ok := l.windows[id]
	if !ok {
		w = &clientWindows{}
		l.windows[id] = w
	}

	var win *limitWindow
	var max int
	var span time.Duration
	switch kind {
	case LimitPosition:
		win, max, span = &w.position, l.conf.PositionMax, l.conf.PositionWindow
	default:
		win, max, span = &w.general, l.conf.GeneralMax, l.conf.GeneralWindow
	}

	if win.resetAt.IsZero() || !now.Before(win.resetAt) {
		win.count = 0
		win.resetAt = now.Add(span)
	}
	win.count++
	return win.count <= max
}

// release drops every window for the client.
func (l *limiter) release(id string) {
	delete(l.windows, id)
}
