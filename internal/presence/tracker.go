// Package presence tracks the upstream connection state of each instance.
//
// Instances report their state ("open", "connecting", "close") through the
// admin API. The websocket channel consults IsConnected before
// broadcasting, and a background reaper marks instances that stop
// reporting as closed so their transport handles can be released.
package presence

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// State is an instance's upstream connection state.
type State string

const (
	StateOpen       State = "open"
	StateConnecting State = "connecting"
	StateClose      State = "close"
)

// ParseState validates a reported state.
func ParseState(s string) (State, error) {
	switch st := State(s); st {
	case StateOpen, StateConnecting, StateClose:
		return st, nil
	}
	return "", fmt.Errorf("unknown state %q (want open, connecting or close)", s)
}

// Entry is a snapshot of one instance.
type Entry struct {
	Instance    string    `json:"instance"`
	State       State     `json:"state"`
	LastSeen    time.Time `json:"last_seen"`
	FirstSeen   time.Time `json:"first_seen"`
	IdleSecs    float64   `json:"idle_secs"`
	ReportCount int64     `json:"report_count"`
	Reaped      bool      `json:"reaped,omitempty"`
	ReapedAt    time.Time `json:"reaped_at,omitempty"`
}

// ReaperConfig configures the background reaper.
type ReaperConfig struct {
	// DeadThreshold is how long an instance may go without reporting
	// before it is considered closed. Default: 10 minutes.
	DeadThreshold time.Duration

	// EvictAfter is how long a reaped instance stays in the roster.
	// Default: 1 hour.
	EvictAfter time.Duration

	// SweepInterval is how often the reaper runs. Default: 30 seconds.
	SweepInterval time.Duration

	// OnDead is called, outside the lock, for each newly reaped instance.
	OnDead func(instance string)
}

// Tracker is an in-memory map of instance states.
type Tracker struct {
	mu        sync.RWMutex
	instances map[string]*instanceState
	now       func() time.Time

	reaperStop chan struct{}
	reaperDone chan struct{}
}

type instanceState struct {
	state       State
	firstSeen   time.Time
	lastSeen    time.Time
	reportCount int64
	reaped      bool
	reapedAt    time.Time
}

func New() *Tracker {
	return &Tracker{
		instances: make(map[string]*instanceState),
		now:       time.Now,
	}
}

// RecordState stores a state report for instance.
func (t *Tracker) RecordState(instance string, state State) {
	if instance == "" {
		return
	}

	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.instances[instance]
	if !ok {
		st = &instanceState{firstSeen: now}
		t.instances[instance] = st
	}
	if st.reaped {
		slog.Info("presence: instance reporting again", "instance", instance, "state", state)
		st.reaped = false
		st.reapedAt = time.Time{}
	}
	st.state = state
	st.lastSeen = now
	st.reportCount++
}

// IsConnected reports whether the instance's last known state is open.
// Unknown and reaped instances are not connected.
func (t *Tracker) IsConnected(instance string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st, ok := t.instances[instance]
	return ok && !st.reaped && st.state == StateOpen
}

// Roster returns every tracked instance, most recently seen first.
// Instances idle for longer than staleThreshold are omitted; 0 keeps all.
func (t *Tracker) Roster(staleThreshold time.Duration) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := t.now()
	entries := make([]Entry, 0, len(t.instances))
	for name, st := range t.instances {
		idle := now.Sub(st.lastSeen)
		if staleThreshold > 0 && idle > staleThreshold {
			continue
		}
		entries = append(entries, Entry{
			Instance:    name,
			State:       st.state,
			LastSeen:    st.lastSeen,
			FirstSeen:   st.firstSeen,
			IdleSecs:    idle.Seconds(),
			ReportCount: st.reportCount,
			Reaped:      st.reaped,
			ReapedAt:    st.reapedAt,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].LastSeen.Equal(entries[j].LastSeen) {
			return entries[i].Instance < entries[j].Instance
		}
		return entries[i].LastSeen.After(entries[j].LastSeen)
	})
	return entries
}

// StartReaper launches the background reaper. Call Stop to end it.
func (t *Tracker) StartReaper(cfg *ReaperConfig) {
	if cfg == nil {
		cfg = &ReaperConfig{}
	}
	if cfg.DeadThreshold == 0 {
		cfg.DeadThreshold = 10 * time.Minute
	}
	if cfg.EvictAfter == 0 {
		cfg.EvictAfter = time.Hour
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 30 * time.Second
	}

	t.reaperStop = make(chan struct{})
	t.reaperDone = make(chan struct{})

	go t.reapLoop(cfg)
	slog.Info("presence: reaper started",
		"dead_threshold", cfg.DeadThreshold,
		"sweep_interval", cfg.SweepInterval)
}

// Stop shuts down the reaper goroutine.
func (t *Tracker) Stop() {
	if t.reaperStop != nil {
		close(t.reaperStop)
		<-t.reaperDone
		t.reaperStop = nil
		t.reaperDone = nil
	}
}

func (t *Tracker) reapLoop(cfg *ReaperConfig) {
	defer close(t.reaperDone)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.reaperStop:
			return
		case <-ticker.C:
			t.sweep(cfg)
		}
	}
}

func (t *Tracker) sweep(cfg *ReaperConfig) {
	now := t.now()
	var newlyDead []string

	t.mu.Lock()
	for name, st := range t.instances {
		if st.reaped {
			if now.Sub(st.reapedAt) > cfg.EvictAfter {
				delete(t.instances, name)
			}
			continue
		}
		// An explicit close is final: release right away.
		if st.state == StateClose || now.Sub(st.lastSeen) > cfg.DeadThreshold {
			st.reaped = true
			st.reapedAt = now
			newlyDead = append(newlyDead, name)
		}
	}
	t.mu.Unlock()

	sort.Strings(newlyDead)
	for _, name := range newlyDead {
		slog.Info("presence: reaper marked instance closed", "instance", name, "threshold", cfg.DeadThreshold)
		if cfg.OnDead != nil {
			cfg.OnDead(name)
		}
	}
}
