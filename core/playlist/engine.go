package playlist

import (
	"context"
	"errors"
	"sync"
	"time"

	"PlaySync/logger"
	"PlaySync/metrics"
	"PlaySync/model"
	"PlaySync/repository"
)

// Catalog is the media storage collaborator as seen by the engine.
type Catalog interface {
	ListByPlaylist(ctx context.Context, playlistID string) ([]*model.MediaItem, error)
	FindInPlaylist(ctx context.Context, playlistID, id string) (*model.MediaItem, error)
	DeleteByID(ctx context.Context, id string) error
}

const (
	DefaultTickInterval   = 250 * time.Millisecond
	DefaultStallThreshold = 5 * time.Second
)

// EngineConfig tunes the tick loop.
type EngineConfig struct {
	Interval       time.Duration
	StallThreshold time.Duration // 0 disables stall reports
}

// Engine advances playback on every tick.
type Engine struct {
	reg      *Registry
	dispatch *Dispatcher
	catalog  Catalog
	pending  *PendingDeletions
	clock    Clock
	cfg      EngineConfig
}

// NewEngine 创建自动推进引擎
func NewEngine(reg *Registry, dispatch *Dispatcher, catalog Catalog, pending *PendingDeletions, cfg EngineConfig) *Engine {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultTickInterval
	}
	return &Engine{
		reg:      reg,
		dispatch: dispatch,
		catalog:  catalog,
		pending:  pending,
		clock:    reg.clock,
		cfg:      cfg,
	}
}

// Run ticks every cfg.Interval until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	logger.Info("tick loop started", logger.Duration("interval", e.cfg.Interval))
	for {
		select {
		case <-ctx.Done():
			logger.Info("tick loop stopped", logger.Int("playlists", e.reg.Len()))
			return
		case <-ticker.C:
			e.sweep(nil)
		}
	}
}

// EngineStats is a point-in-time view of the engine for health checks.
type EngineStats struct {
	Playlists        []string `json:"playlists"`
	PendingDeletions int      `json:"pendingDeletions"`
}

// Stats reports live playlists and media still waiting for deletion.
func (e *Engine) Stats() EngineStats {
	return EngineStats{
		Playlists:        e.reg.IDs(),
		PendingDeletions: e.pending.Len(),
	}
}

// Tick dispatches one tick to every playlist. The returned channel closes when
// every dispatched tick has finished. Playlists still busy from an earlier tick
// coalesce this one into the queued tick.
func (e *Engine) Tick() <-chan struct{} {
	var wg sync.WaitGroup
	e.sweep(&wg)
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}

// sweep never waits on an actor, so one slow playlist cannot hold up the rest.
// It walks a snapshot; a teardown evicts its own entry after its final broadcast.
func (e *Engine) sweep(wg *sync.WaitGroup) {
	start := time.Now()
	now := e.clock.Now()

	for _, a := range e.reg.snapshot() {
		e.checkStall(a, now)
		if wg != nil {
			wg.Add(1)
		}
		req := tickRequest{run: e.tick, wg: wg}
		if !a.offerTick(req) {
			req.done()
		}
	}
	metrics.TickDuration.Observe(time.Since(start).Seconds())
}

func (e *Engine) checkStall(a *actor, now time.Time) {
	if e.cfg.StallThreshold <= 0 {
		return
	}
	since := a.busySince.Load()
	if since == 0 {
		return
	}
	busy := now.Sub(time.Unix(0, since))
	if busy >= e.cfg.StallThreshold && a.stallLogged.CompareAndSwap(false, true) {
		metrics.TickStalls.Inc()
		logger.Error("playlist stalled, ticks are coalescing",
			logger.String("playListId", a.id),
			logger.Duration("busy", busy))
	}
}

// tick runs on the playlist's actor.
func (e *Engine) tick(a *actor) {
	now := e.clock.Now()
	delta := now.Sub(a.lastTick).Seconds()
	a.lastTick = now

	st := &a.state
	if !st.IsPlaying {
		return
	}
	st.Position += delta

	deleting := e.pending.Contains(st.CurrentMediaID)
	if !deleting && st.Position < st.Duration {
		return
	}
	e.advance(a, deleting)
}

// advance moves to the item after the current one, wrapping to the first. A
// pending current item is deleted first; if it was the only item the playlist
// is torn down.
func (e *Engine) advance(a *actor, deleting bool) {
	ctx := a.reg.ctx
	cur := a.state.CurrentMediaID

	items, err := e.catalog.ListByPlaylist(ctx, a.id)
	if err != nil {
		metrics.Advances.WithLabelValues("error").Inc()
		logger.Error("list playlist failed, retrying next tick",
			logger.String("playListId", a.id),
			logger.ErrorField(err))
		return
	}
	next := nextItem(items, cur)

	if deleting {
		if err := e.catalog.DeleteByID(ctx, cur); err != nil && !errors.Is(err, repository.ErrMediaNotFound) {
			metrics.Advances.WithLabelValues("error").Inc()
			logger.Error("deferred delete failed, retrying next tick",
				logger.String("playListId", a.id),
				logger.String("mediaId", cur),
				logger.ErrorField(err))
			return
		}
		e.pending.Remove(cur)
		if next != nil && next.ID == cur {
			next = nil
		}
		logger.Info("pending media deleted",
			logger.String("playListId", a.id),
			logger.String("mediaId", cur))
	}

	if next == nil {
		e.dispatch.BroadcastIdle(a.id)
		a.retire = true
		metrics.Advances.WithLabelValues("teardown").Inc()
		logger.Info("playlist torn down", logger.String("playListId", a.id))
		return
	}

	a.state.CurrentMediaID = next.ID
	a.state.CurrentFilePath = next.FilePath
	a.state.Duration = next.DurationSeconds
	a.state.IsPlaying = true
	a.state.Position = 0
	e.dispatch.Broadcast(a.id, a.state.Status())
	metrics.Advances.WithLabelValues("next").Inc()
}

// nextItem returns the item after cur in items, wrapping around. If cur is not
// in items the first item is used; nil means items is empty.
func nextItem(items []*model.MediaItem, cur string) *model.MediaItem {
	if len(items) == 0 {
		return nil
	}
	for i, item := range items {
		if item.ID == cur {
			return items[(i+1)%len(items)]
		}
	}
	return items[0]
}

// Activate seeds state for a newly uploaded item's playlist and, if it was
// created, pushes the initial status to existing subscribers.
func (e *Engine) Activate(ctx context.Context, item *model.MediaItem) (model.PlaylistState, bool, error) {
	st, created, err := e.reg.Seed(ctx, item, func(st model.PlaylistState) {
		e.dispatch.Broadcast(st.PlaylistID, st.Status())
	})
	if err != nil {
		return model.PlaylistState{}, false, err
	}
	if created {
		logger.Info("playlist activated",
			logger.String("playListId", item.PlaylistID),
			logger.String("mediaId", item.ID))
	}
	return st, created, nil
}
