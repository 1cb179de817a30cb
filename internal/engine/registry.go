package engine

import (
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry tracks in-flight remote requests and the busy reason for each.
// It is shared between the engine goroutine and observers.
type Registry struct {
	mu    sync.Mutex
	busy  map[string]string
	cache *StatusCache
}

// NewRegistry creates a registry that publishes into cache. cache may be nil.
func NewRegistry(cache *StatusCache) *Registry {
	return &Registry{busy: make(map[string]string), cache: cache}
}

// Add registers a new in-flight request and returns its id.
func (r *Registry) Add(reason string) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.busy[id] = reason
	reasons := r.reasonsLocked()
	r.mu.Unlock()
	r.publish(reasons)
	return id
}

// Remove drops a request. Unknown ids are ignored.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	if _, ok := r.busy[id]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.busy, id)
	reasons := r.reasonsLocked()
	r.mu.Unlock()
	r.publish(reasons)
}

// Reasons returns the busy reasons of all in-flight requests, sorted.
func (r *Registry) Reasons() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reasonsLocked()
}

func (r *Registry) reasonsLocked() []string {
	reasons := make([]string, 0, len(r.busy))
	for _, reason := range r.busy {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	return reasons
}

func (r *Registry) publish(reasons []string) {
	if r.cache != nil {
		r.cache.setBusy(reasons)
	}
}

// Snapshot is a point-in-time view of the engine for observers.
type Snapshot struct {
	Busy        bool      `json:"busy"`
	BusyReasons []string  `json:"busy_reasons"`
	Phase       Phase     `json:"phase"`
	LastResult  *Result   `json:"last_result,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StatusCache holds the latest engine status for observers and notifies
// subscribers on every busy/idle transition.
type StatusCache struct {
	mu          sync.RWMutex
	snap        Snapshot
	subscribers []func(Snapshot)
	now         func() time.Time
}

// NewStatusCache creates an idle status cache.
func NewStatusCache() *StatusCache {
	c := &StatusCache{now: time.Now}
	c.snap.BusyReasons = []string{}
	c.snap.UpdatedAt = c.now()
	return c
}

// Snapshot returns a copy of the current status.
func (c *StatusCache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := c.snap
	snap.BusyReasons = append([]string(nil), c.snap.BusyReasons...)
	if c.snap.LastResult != nil {
		res := *c.snap.LastResult
		snap.LastResult = &res
	}
	return snap
}

// Subscribe registers fn to be called after every busy/idle transition.
func (c *StatusCache) Subscribe(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

func (c *StatusCache) setBusy(reasons []string) {
	c.update(func(s *Snapshot) {
		s.BusyReasons = reasons
	})
}

func (c *StatusCache) setPhase(p Phase) {
	c.update(func(s *Snapshot) {
		s.Phase = p
	})
}

func (c *StatusCache) setResult(res Result) {
	c.update(func(s *Snapshot) {
		s.LastResult = &res
		s.LastError = res.Message()
	})
}

func (c *StatusCache) update(fn func(*Snapshot)) {
	c.mu.Lock()
	wasBusy := c.snap.Busy
	fn(&c.snap)
	c.snap.Busy = len(c.snap.BusyReasons) > 0 || c.snap.Phase != PhaseIdle
	c.snap.UpdatedAt = c.now()
	changed := wasBusy != c.snap.Busy
	subscribers := slices.Clone(c.subscribers)
	c.mu.Unlock()

	if changed {
		snap := c.Snapshot()
		for _, fn := range subscribers {
			fn(snap)
		}
	}
}
