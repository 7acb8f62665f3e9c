package engine

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"sanitization-status-backend/internal/clock"
)

// AlertGenerator turns transitions and overdue findings into alerts and owns
// their read state. Writers serialize on mu and publish a fresh snapshot;
// readers never block.
type AlertGenerator struct {
	mu        sync.Mutex
	seq       uint64
	alerts    atomic.Pointer[[]Alert]
	clock     clock.Clock
	newID     func() string
	settings  func() Settings
	retention int
}

// NewAlertGenerator builds a generator. settings supplies the current
// escalation threshold and overdue alert toggles; retention caps the number
// of kept alerts (0 keeps everything).
func NewAlertGenerator(c clock.Clock, newID func() string, settings func() Settings, retention int) *AlertGenerator {
	g := &AlertGenerator{clock: c, newID: newID, settings: settings, retention: retention}
	empty := make([]Alert, 0)
	g.alerts.Store(&empty)
	return g
}

// OnTransition returns the alert raised by a transition, or nil when the
// transition is operational only.
func (g *AlertGenerator) OnTransition(t Transition) *Alert {
	if t.From == t.To {
		return nil
	}
	if t.Cause == CauseScheduleMiss {
		return g.OnOverdue(t.Station, t.Overdue)
	}
	policy, ok := alertPolicies[t.Cause]
	if !ok {
		return nil
	}
	return g.emit(t.Station, t.To, policy)
}

// OnOverdue returns the alert for a station that missed its schedule by
// overdue. A miss within the escalation threshold is gated by
// MissedCleaningAlert, an escalated one by DelayedCleaningAlert.
func (g *AlertGenerator) OnOverdue(station Station, overdue time.Duration) *Alert {
	if overdue <= 0 {
		return nil
	}
	s := g.settings()
	target := overdueTarget(overdue, s.AttentionEscalationThreshold)
	if target == StatusNeedsAttention && !s.DelayedCleaningAlert {
		return nil
	}
	if target == StatusDirty && !s.MissedCleaningAlert {
		return nil
	}
	return g.emit(station, target, overduePolicy(overdue, s.AttentionEscalationThreshold))
}

func (g *AlertGenerator) emit(station Station, status Status, policy alertPolicy) *Alert {
	alert := Alert{
		ID:          g.newID(),
		StationID:   station.ID,
		StationName: station.Name,
		Status:      status,
		Timestamp:   g.clock.Now(),
		Message:     policy.Message,
		Priority:    policy.Priority,
	}

	g.mu.Lock()
	g.seq++
	alert.Seq = g.seq
	next := append(*g.alerts.Load(), alert)
	next = g.evict(next)
	g.alerts.Store(&next)
	g.mu.Unlock()

	return &alert
}

// evict drops the oldest read alerts while over retention. Unread alerts are kept.
func (g *AlertGenerator) evict(list []Alert) []Alert {
	if g.retention <= 0 || len(list) <= g.retention {
		return list
	}
	excess := len(list) - g.retention
	kept := make([]Alert, 0, len(list))
	for _, a := range list {
		if excess > 0 && a.IsRead {
			excess--
			continue
		}
		kept = append(kept, a)
	}
	return kept
}

func (g *AlertGenerator) restore(alerts []Alert) {
	g.mu.Lock()
	defer g.mu.Unlock()
	next := make([]Alert, len(alerts))
	copy(next, alerts)
	g.seq = 0
	for _, a := range next {
		g.seq = max(g.seq, a.Seq)
	}
	next = g.evict(next)
	g.alerts.Store(&next)
}

// Alerts returns every alert in creation order.
func (g *AlertGenerator) Alerts() []Alert {
	cur := *g.alerts.Load()
	return cur[:len(cur):len(cur)]
}

// UnreadCount returns the number of unread alerts.
func (g *AlertGenerator) UnreadCount() int {
	n := 0
	for _, a := range g.Alerts() {
		if !a.IsRead {
			n++
		}
	}
	return n
}

// MarkRead flips one alert to read. It reports whether anything changed;
// re-marking a read alert is a no-op.
func (g *AlertGenerator) MarkRead(id string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	cur := *g.alerts.Load()
	idx := -1
	for i := range cur {
		if cur[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, fmt.Errorf("%w: alert %q", ErrNotFound, id)
	}
	if cur[idx].IsRead {
		return false, nil
	}

	next := make([]Alert, len(cur))
	copy(next, cur)
	next[idx].IsRead = true
	g.alerts.Store(&next)
	return true, nil
}

// MarkAllRead flips every unread alert in one published step and returns the
// ids that changed.
func (g *AlertGenerator) MarkAllRead() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	cur := *g.alerts.Load()
	var changed []string
	next := make([]Alert, len(cur))
	copy(next, cur)
	for i := range next {
		if !next[i].IsRead {
			next[i].IsRead = true
			changed = append(changed, next[i].ID)
		}
	}
	if len(changed) == 0 {
		return nil
	}
	g.alerts.Store(&next)
	return changed
}
