package engine

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_AddRemove(t *testing.T) {
	cache := NewStatusCache()
	r := NewRegistry(cache)

	a := r.Add("Fetching new activities")
	b := r.Add("Fetching older activities")
	require.NotEqual(t, a, b)
	require.Equal(t, []string{"Fetching new activities", "Fetching older activities"}, r.Reasons())
	require.True(t, cache.Snapshot().Busy)

	r.Remove(a)
	r.Remove(a)
	r.Remove("unknown")
	require.Equal(t, []string{"Fetching older activities"}, r.Reasons())

	r.Remove(b)
	require.Empty(t, r.Reasons())
	require.False(t, cache.Snapshot().Busy)
}

func TestStatusCache_NotifiesOnBusyTransitions(t *testing.T) {
	cache := NewStatusCache()
	var mu sync.Mutex
	var seen []bool
	cache.Subscribe(func(s Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s.Busy)
	})

	r := NewRegistry(cache)
	a := r.Add("Fetching new activities")
	b := r.Add("Fetching older activities")
	cache.setPhase(PhaseFetchRemoteIncremental)
	r.Remove(a)
	r.Remove(b)
	require.True(t, cache.Snapshot().Busy)
	cache.setPhase(PhaseIdle)
	require.False(t, cache.Snapshot().Busy)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []bool{true, false}, seen)
}

func TestStatusCache_RecordsResult(t *testing.T) {
	cache := NewStatusCache()
	cache.setResult(Result{Op: OpRefresh, Status: StatusServerError, Err: errors.New("E1: nope")})

	snap := cache.Snapshot()
	require.NotNil(t, snap.LastResult)
	require.Equal(t, StatusServerError, snap.LastResult.Status)
	require.NotEmpty(t, snap.LastError)
	require.False(t, snap.Busy)

	snap.LastResult.Status = StatusSuccess
	require.Equal(t, StatusServerError, cache.Snapshot().LastResult.Status)
}
