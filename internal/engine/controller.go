package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rpggio/feedsync/internal/devicelog"
	"github.com/rpggio/feedsync/internal/domain/timeline"
	"github.com/rpggio/feedsync/internal/domain/watermark"
	"github.com/rpggio/feedsync/internal/remote"
)

// Never is returned by NextRunTime when the controller waits for a request.
const Never int64 = math.MaxInt64

// Connectivity reports whether the remote transport is usable.
type Connectivity interface {
	Connected() bool
}

// Readiness reports whether prerequisite syncs have completed.
type Readiness interface {
	Ready() bool
}

// Toggle is a settable Connectivity and Readiness.
type Toggle struct {
	on atomic.Bool
}

// NewToggle creates a Toggle with the given initial value.
func NewToggle(on bool) *Toggle {
	t := &Toggle{}
	t.on.Store(on)
	return t
}

// Set switches the toggle on or off.
func (t *Toggle) Set(on bool) { t.on.Store(on) }

// Connected implements Connectivity.
func (t *Toggle) Connected() bool { return t.on.Load() }

// Ready implements Readiness.
func (t *Toggle) Ready() bool { return t.on.Load() }

// ReaderFactory builds device log readers for one phase.
type ReaderFactory interface {
	CallLog(refresh bool) devicelog.Reader
	MessageLog(refresh bool) devicelog.Reader
}

// Config tunes the controller.
type Config struct {
	FirstPageSize     int
	OlderWindow       time.Duration
	FirstSyncLookback time.Duration
	RemoteTimeout     time.Duration
	NotReadyRetry     time.Duration
	DescriptionCap    int
	Location          *time.Location
}

// DefaultConfig returns the reference settings.
func DefaultConfig() Config {
	return Config{
		FirstPageSize:     remote.DefaultFirstPageSize,
		OlderWindow:       7 * 24 * time.Hour,
		FirstSyncLookback: 7 * 24 * time.Hour,
		RemoteTimeout:     30 * time.Second,
		NotReadyRetry:     time.Minute,
		DescriptionCap:    timeline.MaxDescriptionRunes,
		Location:          time.Local,
	}
}

// Deps are the controller's collaborators.
type Deps struct {
	Timeline     timeline.Store
	Watermarks   watermark.Store
	Fetcher      remote.Fetcher
	Readers      ReaderFactory
	Connectivity Connectivity
	Readiness    Readiness
	Status       *StatusCache
	Clock        func() time.Time
	Logger       *slog.Logger
}

type request struct {
	op      Op
	kind    DeviceKind
	waiters []chan Result
}

type remoteResponse struct {
	id    string
	mode   RemoteMode
	filter remote.Filter
	batch  *remote.Batch
	err   error
}

// Controller is the sync state machine's driver. Request methods are safe
// for concurrent use; Run and NextRunTime must be called from a single
// engine goroutine.
type Controller struct {
	cfg      Config
	deps     Deps
	dedup    *Deduplicator
	registry *Registry
	status   *StatusCache
	logger   *slog.Logger
	wake     chan struct{}

	mu              sync.Mutex
	pending         []*request
	inbox           []remoteResponse
	cancelRequested bool

	state     State
	current   *request
	reader    devicelog.Reader
	readerDue bool
	remoteID  string
	retryAt   time.Time
}

// NewController creates an idle controller.
func NewController(cfg Config, deps Deps) *Controller {
	def := DefaultConfig()
	if cfg.FirstPageSize <= 0 {
		cfg.FirstPageSize = def.FirstPageSize
	}
	if cfg.OlderWindow <= 0 {
		cfg.OlderWindow = def.OlderWindow
	}
	if cfg.FirstSyncLookback <= 0 {
		cfg.FirstSyncLookback = def.FirstSyncLookback
	}
	if cfg.RemoteTimeout <= 0 {
		cfg.RemoteTimeout = def.RemoteTimeout
	}
	if cfg.NotReadyRetry <= 0 {
		cfg.NotReadyRetry = def.NotReadyRetry
	}
	if cfg.DescriptionCap <= 0 {
		cfg.DescriptionCap = def.DescriptionCap
	}
	if cfg.Location == nil {
		cfg.Location = def.Location
	}
	if deps.Status == nil {
		deps.Status = NewStatusCache()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}

	return &Controller{
		cfg:      cfg,
		deps:     deps,
		dedup:    NewDeduplicator(deps.Timeline),
		registry: NewRegistry(deps.Status),
		status:   deps.Status,
		logger:   deps.Logger,
		wake:     make(chan struct{}, 1),
	}
}

// RequestRefresh fetches remote activities newer than the newest watermark.
func (c *Controller) RequestRefresh() <-chan Result {
	return c.enqueue(OpRefresh, 0)
}

// RequestOlder fetches remote activities older than the oldest watermark,
// then older call log and message log pages.
func (c *Controller) RequestOlder() <-chan Result {
	return c.enqueue(OpOlder, 0)
}

// RequestDeviceChanged pulls new events from one device log.
func (c *Controller) RequestDeviceChanged(kind DeviceKind) <-chan Result {
	return c.enqueue(OpDeviceChanged, kind)
}

// Cancel aborts the running operation at the next invocation.
func (c *Controller) Cancel() {
	c.mu.Lock()
	c.cancelRequested = true
	c.mu.Unlock()
	c.signal()
}

// Wake is signalled whenever the controller has new work.
func (c *Controller) Wake() <-chan struct{} {
	return c.wake
}

// Status returns the shared status cache.
func (c *Controller) Status() *StatusCache {
	return c.status
}

// Registry returns the in-flight remote request registry.
func (c *Controller) Registry() *Registry {
	return c.registry
}

// Phase returns the current phase. Call it from the engine goroutine.
func (c *Controller) Phase() Phase {
	return c.state.Phase
}

func (c *Controller) enqueue(op Op, kind DeviceKind) <-chan Result {
	ch := make(chan Result, 1)
	if c.deps.Connectivity != nil && !c.deps.Connectivity.Connected() {
		c.logger.Info("sync request rejected", "op", op, "status", StatusNoConnectivity)
		ch <- Result{Op: op, Status: StatusNoConnectivity}
		return ch
	}

	c.mu.Lock()
	coalesced := false
	for _, req := range c.pending {
		if req.op == op && req.kind == kind {
			req.waiters = append(req.waiters, ch)
			coalesced = true
			break
		}
	}
	if !coalesced {
		c.pending = append(c.pending, &request{op: op, kind: kind, waiters: []chan Result{ch}})
	}
	c.mu.Unlock()

	c.signal()
	return ch
}

func (c *Controller) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Controller) now() time.Time {
	return c.deps.Clock()
}

// NextRunTime returns 0 when Run should be called now, a future epoch
// millisecond to sleep until, or Never.
func (c *Controller) NextRunTime(now time.Time) int64 {
	c.mu.Lock()
	urgent := len(c.inbox) > 0 || c.cancelRequested
	hasPending := len(c.pending) > 0
	c.mu.Unlock()

	if urgent || (c.readerDue && c.reader != nil) {
		return 0
	}
	if c.state.Phase == PhaseIdle {
		if hasPending {
			return 0
		}
		if c.state.RemoteFetchRequired {
			if !now.Before(c.retryAt) {
				return 0
			}
			return c.retryAt.UnixMilli()
		}
	}
	return Never
}

// Run performs one invocation: it handles cancellation and delivered remote
// responses, starts the next queued request when idle and advances the
// current device reader by one step.
func (c *Controller) Run(ctx context.Context) {
	c.mu.Lock()
	cancel := c.cancelRequested
	c.cancelRequested = false
	inbox := c.inbox
	c.inbox = nil
	c.mu.Unlock()

	if cancel {
		c.apply(ctx, Cancelled{})
	}
	for _, resp := range inbox {
		c.handleResponse(ctx, resp)
	}

	if c.state.Phase == PhaseIdle {
		if req := c.nextRequest(); req != nil {
			c.start(ctx, req)
		}
	}

	if c.readerDue && c.reader != nil && c.state.Phase.IsDevice() {
		c.readerDue = false
		progress, err := c.reader.Run(ctx)
		if err != nil {
			c.apply(ctx, PhaseFailed{Err: err})
		} else {
			c.apply(ctx, PhaseProgress{Done: progress.Done, Updated: progress.Updated})
		}
	}
}

func (c *Controller) nextRequest() *request {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) == 0 {
		if c.state.RemoteFetchRequired && !c.now().Before(c.retryAt) {
			c.logger.Debug("retrying deferred refresh")
			return &request{op: OpRefresh}
		}
		return nil
	}
	req := c.pending[0]
	c.pending = c.pending[1:]
	return req
}

func (c *Controller) start(ctx context.Context, req *request) {
	c.current = req
	ready := c.deps.Readiness == nil || c.deps.Readiness.Ready()

	var ev Event
	switch req.op {
	case OpRefresh:
		w, err := c.deps.Watermarks.Get(ctx, watermark.KindRemoteStatus)
		if err != nil {
			c.complete(Result{Op: req.op, Status: StatusInternalError, Err: fmt.Errorf("reading remote watermark: %w", err)})
			return
		}
		ev = RefreshRequested{FirstTime: w.Newest == watermark.Unset, Ready: ready}
	case OpOlder:
		ev = OlderRequested{Ready: ready}
	default:
		ev = DeviceChanged{Kind: req.kind, Ready: ready}
	}
	c.logger.Debug("sync request started", "op", req.op)
	c.apply(ctx, ev)
}

func (c *Controller) apply(ctx context.Context, ev Event) {
	prev := c.state
	next, effects := Transition(prev, ev)
	c.state = next
	if prev.Phase != next.Phase {
		c.logger.Debug("phase transition", "from", prev.Phase, "to", next.Phase, "event", fmt.Sprintf("%T", ev))
		c.status.setPhase(next.Phase)
	}
	for _, eff := range effects {
		c.perform(ctx, eff)
	}
}

func (c *Controller) perform(ctx context.Context, eff Effect) {
	switch eff := eff.(type) {
	case FetchRemote:
		c.fetchRemote(ctx, eff.Mode)
	case StartReader:
		if c.reader != nil {
			c.reader.Cancel()
		}
		if eff.Reader == ReaderMessageLog {
			c.reader = c.deps.Readers.MessageLog(eff.Refresh)
		} else {
			c.reader = c.deps.Readers.CallLog(eff.Refresh)
		}
		c.readerDue = true
	case ContinueReader:
		c.readerDue = true
	case CancelReader:
		if c.reader != nil {
			c.reader.Cancel()
			c.reader = nil
		}
		c.readerDue = false
	case Prune:
		pruned, err := c.deps.Timeline.PruneTimeline(ctx)
		if err != nil {
			c.logger.Warn("timeline prune failed", "error", err)
		} else if pruned > 0 {
			c.logger.Debug("timeline pruned", "rows", pruned)
		}
	case Complete:
		c.complete(Result{Op: c.state.Op, Status: eff.Status, Err: eff.Err})
	}
}

func (c *Controller) complete(res Result) {
	if c.remoteID != "" {
		c.registry.Remove(c.remoteID)
		c.remoteID = ""
	}
	c.reader = nil
	c.readerDue = false
	if res.Status == StatusNotReady {
		c.retryAt = c.now().Add(c.cfg.NotReadyRetry)
	}

	if res.Err != nil {
		c.logger.Info("sync finished", "op", res.Op, "status", res.Status, "error", res.Err)
	} else {
		c.logger.Info("sync finished", "op", res.Op, "status", res.Status)
	}
	c.status.setResult(res)

	if c.current != nil {
		for _, ch := range c.current.waiters {
			ch <- res
		}
		c.current = nil
	}
}

func (c *Controller) fetchRemote(ctx context.Context, mode RemoteMode) {
	if c.deps.Connectivity != nil && !c.deps.Connectivity.Connected() {
		c.apply(ctx, RemoteFailed{Status: StatusNoConnectivity, Err: remote.ErrUnavailable})
		return
	}
	filter, err := c.remoteFilter(ctx, mode)
	if err != nil {
		c.apply(ctx, RemoteFailed{Status: StatusInternalError, Err: err})
		return
	}

	id := c.registry.Add(busyReason(mode))
	c.remoteID = id
	timeout := c.cfg.RemoteTimeout
	c.logger.Debug("remote fetch issued", "request_id", id, "mode", mode, "filter", filter.String())

	go func() {
		fetchCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		batch, err := c.deps.Fetcher.FetchActivities(fetchCtx, filter)
		if err != nil && errors.Is(fetchCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, remote.ErrTimeout) {
			err = fmt.Errorf("%w: %v", remote.ErrTimeout, err)
		}
		c.deliver(remoteResponse{id: id, mode: mode, filter: filter, batch: batch, err: err})
	}()
}

func (c *Controller) deliver(resp remoteResponse) {
	c.mu.Lock()
	c.inbox = append(c.inbox, resp)
	c.mu.Unlock()
	c.signal()
}

func (c *Controller) remoteFilter(ctx context.Context, mode RemoteMode) (remote.Filter, error) {
	if mode == RemoteFirstPage {
		return remote.FirstPageFilter(c.cfg.FirstPageSize), nil
	}
	w, err := c.deps.Watermarks.Get(ctx, watermark.KindRemoteStatus)
	if err != nil {
		return remote.Filter{}, fmt.Errorf("reading remote watermark: %w", err)
	}
	if mode == RemoteIncremental {
		return remote.RefreshFilter(w.Newest), nil
	}
	oldest := w.Oldest
	if oldest == watermark.Unset {
		oldest = c.now().UnixMilli()
	}
	return remote.OlderFilter(oldest, c.cfg.OlderWindow), nil
}

func (c *Controller) handleResponse(ctx context.Context, resp remoteResponse) {
	if resp.id != c.remoteID || !c.state.Phase.IsRemote() {
		c.logger.Debug("ignoring stale remote response", "request_id", resp.id)
		return
	}
	c.registry.Remove(resp.id)
	c.remoteID = ""

	if resp.err != nil {
		c.apply(ctx, RemoteFailed{Status: classifyRemoteError(resp.err), Err: resp.err})
		return
	}
	if err := c.applyBatch(ctx, resp.mode, resp.filter, resp.batch); err != nil {
		c.apply(ctx, RemoteFailed{Status: StatusInternalError, Err: err})
		return
	}
	c.apply(ctx, RemoteFetched{})
}

// applyBatch dedups and writes a remote batch, then moves the remote watermarks.
// An older fetch that writes nothing still moves oldest back to the lower
// bound of its window so the next fetch asks for the window before it.
func (c *Controller) applyBatch(ctx context.Context, mode RemoteMode, filter remote.Filter, batch *remote.Batch) error {
	if batch != nil && batch.Dropped > 0 {
		c.logger.Warn("remote batch had undecodable records", "dropped", batch.Dropped)
	}
	records := batch.Records(c.cfg.Location, c.cfg.DescriptionCap)
	fresh, err := c.dedup.Filter(ctx, records)
	if err != nil {
		return err
	}

	w, err := c.deps.Watermarks.Get(ctx, watermark.KindRemoteStatus)
	if err != nil {
		return fmt.Errorf("reading remote watermark: %w", err)
	}
	next := w
	if len(fresh) > 0 {
		if err := c.deps.Timeline.WriteTimelineBatch(ctx, fresh); err != nil {
			return fmt.Errorf("writing remote batch: %w", err)
		}
		minTS, maxTS, _ := timeline.Bounds(fresh)
		next, _ = w.Extend(minTS, maxTS)
	}
	switch mode {
	case RemoteFirstPage:
		if w.Oldest == watermark.Unset {
			next.Oldest = c.now().Add(-c.cfg.FirstSyncLookback).UnixMilli()
		}
		// An empty first page still counts as the first sync.
		if next.Newest == watermark.Unset {
			next.Newest = c.now().UnixMilli()
		}
	case RemoteOlder:
		if len(fresh) == 0 && filter.UpdatedAfter > 0 {
			if floor := filter.UpdatedAfter * 1000; next.Oldest == watermark.Unset || floor < next.Oldest {
				next.Oldest = floor
			}
		}
	}
	c.logger.Info("remote batch applied", "mode", mode, "fetched", len(records), "written", len(fresh))

	var oldest, newest *int64
	if next.Oldest != w.Oldest {
		oldest = &next.Oldest
	}
	if next.Newest != w.Newest {
		newest = &next.Newest
	}
	if oldest == nil && newest == nil {
		return nil
	}
	if err := c.deps.Watermarks.Set(ctx, watermark.KindRemoteStatus, oldest, newest); err != nil {
		return fmt.Errorf("saving remote watermark: %w", err)
	}
	return nil
}

func classifyRemoteError(err error) Status {
	var serverErr *remote.ServerError
	switch {
	case errors.Is(err, remote.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return StatusCommsTimeout
	case errors.As(err, &serverErr), errors.Is(err, remote.ErrMalformedResponse):
		return StatusServerError
	case errors.Is(err, remote.ErrUnavailable):
		return StatusNoConnectivity
	default:
		return StatusInternalError
	}
}

func busyReason(mode RemoteMode) string {
	switch mode {
	case RemoteFirstPage:
		return "Fetching activities for the first time"
	case RemoteOlder:
		return "Fetching older activities"
	default:
		return "Fetching new activities"
	}
}
