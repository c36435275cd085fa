package activity

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Visibility is the state of the candidate's interview tab.
type Visibility string

const (
	Hidden  Visibility = "hidden"
	Visible Visibility = "visible"
)

var ErrInvalidVisibility = errors.New(`status must be either "hidden" or "visible"`)

// Event is one visibility change reported by the client.
type Event struct {
	Status        Visibility `json:"status"`
	Timestamp     int64      `json:"timestamp"`
	FormattedTime string     `json:"formatted_time"`
}

// Metrics summarises tab switching for a session.
type Metrics struct {
	TabSwitchCount    int     `json:"tabSwitchCount"`
	TimeAwaySeconds   float64 `json:"timeAwaySeconds"`
	TimeAwayFormatted string  `json:"timeAwayFormatted"`
}

// Report is what the activity endpoint returns.
type Report struct {
	Activities []Event `json:"activities"`
	Metrics    Metrics `json:"metrics"`
}

// Tracker keeps visibility events per session in memory.
type Tracker struct {
	mu     sync.RWMutex
	events map[string][]Event
	now    func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		events: make(map[string][]Event),
		now:    time.Now,
	}
}

// Track appends a visibility change. A zero time means now.
func (t *Tracker) Track(sessionID string, status Visibility, at time.Time) (Event, error) {
	if status != Hidden && status != Visible {
		return Event{}, ErrInvalidVisibility
	}
	if at.IsZero() {
		at = t.now()
	}
	event := Event{
		Status:        status,
		Timestamp:     at.UnixMilli(),
		FormattedTime: at.Format("15:04:05"),
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.events[sessionID] = append(t.events[sessionID], event)
	return event, nil
}

// Report returns the events and metrics for a session. Time spent hidden at the end of
// the log counts until now.
func (t *Tracker) Report(sessionID string) Report {
	t.mu.RLock()
	events := append([]Event(nil), t.events[sessionID]...)
	t.mu.RUnlock()

	return Report{Activities: events, Metrics: Summarise(events, t.now())}
}

// Forget drops a session's events.
func (t *Tracker) Forget(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.events, sessionID)
}

// Summarise counts hidden events and sums hidden→visible intervals.
func Summarise(events []Event, now time.Time) Metrics {
	var (
		count       int
		awayMillis  int64
		hiddenStart int64
		hidden      bool
	)
	for _, e := range events {
		switch e.Status {
		case Hidden:
			count++
			hiddenStart = e.Timestamp
			hidden = true
		case Visible:
			if hidden {
				awayMillis += e.Timestamp - hiddenStart
				hidden = false
			}
		}
	}
	if hidden {
		awayMillis += now.UnixMilli() - hiddenStart
	}

	away := time.Duration(awayMillis) * time.Millisecond
	return Metrics{
		TabSwitchCount:    count,
		TimeAwaySeconds:   float64(awayMillis/10) / 100,
		TimeAwayFormatted: fmt.Sprintf("%dm %ds", int(away.Minutes()), int(away.Seconds())%60),
	}
}
