package integration_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/feedsync/internal/devicedb"
	"github.com/rpggio/feedsync/internal/devicelog"
	"github.com/rpggio/feedsync/internal/domain/timeline"
	"github.com/rpggio/feedsync/internal/domain/watermark"
	"github.com/rpggio/feedsync/internal/engine"
	"github.com/rpggio/feedsync/internal/remote"
	"github.com/rpggio/feedsync/internal/sqlite"
)

var now = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

// countingStore records the size of every batch write.
type countingStore struct {
	*sqlite.TimelineRepository

	mu     sync.Mutex
	writes []int
}

func (s *countingStore) WriteTimelineBatch(ctx context.Context, records []timeline.Record) error {
	s.mu.Lock()
	s.writes = append(s.writes, len(records))
	s.mu.Unlock()
	return s.TimelineRepository.WriteTimelineBatch(ctx, records)
}

func (s *countingStore) Writes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.writes...)
}

type testEnv struct {
	db         *sqlite.DB
	store      *countingStore
	watermarks *sqlite.WatermarkRepository
	device     *devicedb.DB
	seed       func(query string, args ...any)

	mu      sync.Mutex
	queries []string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { _ = db.Close() })

	path := filepath.Join(t.TempDir(), "device.db")
	fixture, err := devicedb.CreateFixture(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fixture.Close() })

	device, err := devicedb.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = device.Close() })

	return &testEnv{
		db:         db,
		store:      &countingStore{TimelineRepository: sqlite.NewTimelineRepository(db, 0)},
		watermarks: sqlite.NewWatermarkRepository(db),
		device:     device,
		seed: func(query string, args ...any) {
			t.Helper()
			_, err := fixture.Exec(query, args...)
			require.NoError(t, err)
		},
	}
}

func (e *testEnv) deps() devicelog.Deps {
	return devicelog.Deps{
		Timeline:   e.store,
		Watermarks: e.watermarks,
		Contacts:   sqlite.NewContactRepository(e.db),
		Location:   time.UTC,
	}
}

// remote serves body for every activities request and records the filters.
func (e *testEnv) remote(t *testing.T, body string) remote.Fetcher {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.mu.Lock()
		e.queries = append(e.queries, strings.Join(r.URL.Query()["filter"], " "))
		e.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return remote.NewClient(srv.URL, "token", nil, nil)
}

func (e *testEnv) Queries() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.queries...)
}

func (e *testEnv) controller(fetcher remote.Fetcher) *engine.Controller {
	return engine.NewController(engine.Config{Location: time.UTC}, engine.Deps{
		Timeline:   e.store,
		Watermarks: e.watermarks,
		Fetcher:    fetcher,
		Readers: &devicelog.Readers{
			Calls: devicedb.NewCallLog(e.device),
			SMS:   devicedb.NewSMS(e.device),
			MMS:   devicedb.NewMMS(e.device),
			Deps:  e.deps(),
		},
		Connectivity: engine.NewToggle(true),
		Readiness:    engine.NewToggle(true),
		Clock:        func() time.Time { return now },
	})
}

func (e *testEnv) mark(t *testing.T, kind watermark.Kind) watermark.Watermark {
	t.Helper()
	w, err := e.watermarks.Get(context.Background(), kind)
	require.NoError(t, err)
	return w
}

func drive(t *testing.T, c *engine.Controller, res <-chan engine.Result) engine.Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	r, err := engine.Drive(ctx, c, res)
	require.NoError(t, err)
	return r
}

func TestIntegration_FirstEverSync(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	c := env.controller(env.remote(t, `{"activities":[
		{"activityid":"1","time":100,"text":"one"},
		{"activityid":"2","time":200,"text":"two"},
		{"activityid":"3","time":300,"text":"three"}
	]}`))

	res := drive(t, c, c.RequestRefresh())
	require.Equal(t, engine.Result{Op: engine.OpRefresh, Status: engine.StatusSuccess}, res)

	count, err := env.store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), count)
	require.Equal(t, watermark.Watermark{
		Oldest: now.Add(-7 * 24 * time.Hour).UnixMilli(),
		Newest: 300_000,
	}, env.mark(t, watermark.KindRemoteStatus))
	require.Equal(t, []string{"status=true lids=0-150 sort=updated?rev"}, env.Queries())

	// Both device phases ran over empty logs.
	require.False(t, env.mark(t, watermark.KindCall).IsSet())
	require.Equal(t, engine.PhaseIdle, c.Status().Snapshot().Phase)
}

func TestIntegration_RefreshDedupsAgainstStore(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	require.NoError(t, env.store.WriteTimelineBatch(ctx, []timeline.Record{{
		NativeID:   "7",
		Source:     timeline.SourceRemoteStatus,
		Timestamp:  250_000,
		Title:      "seven",
		ActivityID: "7",
	}}))
	oldest, newest := int64(100_000), int64(300_000)
	require.NoError(t, env.watermarks.Set(ctx, watermark.KindRemoteStatus, &oldest, &newest))

	c := env.controller(env.remote(t, `{"activities":[
		{"activityid":"7","time":250,"text":"seven"},
		{"activityid":"9","time":350,"text":"nine"}
	]}`))

	res := drive(t, c, c.RequestRefresh())
	require.Equal(t, engine.StatusSuccess, res.Status)
	require.Equal(t, []string{"status=true updated>300"}, env.Queries())
	require.Equal(t, []int{1, 1}, env.store.Writes())

	records, err := env.store.List(ctx, timeline.ListOptions{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "9", records[0].ActivityID)
	require.Equal(t, "7", records[1].ActivityID)
	require.Equal(t, watermark.Watermark{Oldest: 100_000, Newest: 350_000}, env.mark(t, watermark.KindRemoteStatus))
}

func TestIntegration_OlderCallLogInvocationIsCapped(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	for i := 1; i <= 25; i++ {
		env.seed(`INSERT INTO calls (_id, number, date, type) VALUES (?, ?, ?, ?)`, i, "555-0100", int64(i)*1000, 1)
	}
	oldest, newest := int64(1_000_000), int64(2_000_000)
	require.NoError(t, env.watermarks.Set(ctx, watermark.KindCall, &oldest, &newest))

	reader := devicelog.NewCallLogReader(devicedb.NewCallLog(env.device), env.deps(), false)
	t.Cleanup(reader.Cancel)

	progress, err := reader.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, devicelog.Progress{Done: false, Updated: true}, progress)
	require.Equal(t, []int{10, 10}, env.store.Writes())
	require.Equal(t, int64(6_000), env.mark(t, watermark.KindCall).Oldest)

	progress, err = reader.Run(ctx)
	require.NoError(t, err)
	require.True(t, progress.Done)
	require.Equal(t, []int{10, 10, 5}, env.store.Writes())

	count, err := env.store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(25), count)
	require.Equal(t, watermark.Watermark{Oldest: 1_000, Newest: 2_000_000}, env.mark(t, watermark.KindCall))
}

func TestIntegration_DisconnectedLeavesWatermarks(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	oldest, newest := int64(100_000), int64(300_000)
	require.NoError(t, env.watermarks.Set(ctx, watermark.KindRemoteStatus, &oldest, &newest))

	c := engine.NewController(engine.Config{}, engine.Deps{
		Timeline:     env.store,
		Watermarks:   env.watermarks,
		Fetcher:      env.remote(t, `{"activities":[]}`),
		Readers:      &devicelog.Readers{Deps: env.deps()},
		Connectivity: engine.NewToggle(false),
		Readiness:    engine.NewToggle(true),
	})

	for _, ch := range []<-chan engine.Result{c.RequestRefresh(), c.RequestOlder()} {
		require.Equal(t, engine.StatusNoConnectivity, drive(t, c, ch).Status)
	}
	require.Empty(t, env.Queries())
	require.Equal(t, watermark.Watermark{Oldest: 100_000, Newest: 300_000}, env.mark(t, watermark.KindRemoteStatus))
}
