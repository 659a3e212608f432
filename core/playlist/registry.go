package playlist

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"PlaySync/logger"
	"PlaySync/metrics"
	"PlaySync/model"
)

var (
	// ErrPlaylistNotFound is returned for playlists without live state.
	ErrPlaylistNotFound = errors.New("playlist not found")

	errRetired = errors.New("playlist actor retired")
)

type tickRequest struct {
	run func(a *actor)
	wg  *sync.WaitGroup // nil when nobody waits for the sweep
}

func (t tickRequest) done() {
	if t.wg != nil {
		t.wg.Done()
	}
}

// actor owns one playlist's state. Every read and write of state happens on
// its goroutine, one job at a time.
type actor struct {
	id    string
	reg   *Registry
	state model.PlaylistState
	jobs  chan func(a *actor) // unbuffered: a sent job always runs
	ticks chan tickRequest    // one slot, extra ticks coalesce
	done  chan struct{}

	// owned by the actor goroutine
	lastTick time.Time
	retire   bool

	mu      sync.Mutex // guards retired against tick offers
	retired bool

	busySince   atomic.Int64 // unix nanos of the running job, 0 when idle
	stallLogged atomic.Bool
}

func (a *actor) loop(ctx context.Context, onStart func(a *actor)) {
	defer a.reg.wg.Done()

	if onStart != nil {
		a.run(onStart)
	}
	for {
		var finished tickRequest
		select {
		case fn := <-a.jobs:
			a.run(fn)
		case t := <-a.ticks:
			a.run(t.run)
			finished = t
		case <-ctx.Done():
			a.shutdown()
			return
		}
		if a.retire {
			a.shutdown()
		}
		// released after eviction, so a finished sweep never sees a torn-down playlist
		finished.done()
		if a.retire {
			return
		}
	}
}

func (a *actor) run(fn func(a *actor)) {
	a.busySince.Store(a.reg.clock.Now().UnixNano())
	fn(a)
	a.busySince.Store(0)
	a.stallLogged.Store(false)
}

// shutdown evicts the actor before closing done, so a caller that sees done
// closed and retries finds either nothing or a fresh actor.
func (a *actor) shutdown() {
	a.reg.evict(a)

	a.mu.Lock()
	a.retired = true
	for drained := false; !drained; {
		select {
		case t := <-a.ticks:
			t.done()
		default:
			drained = true
		}
	}
	a.mu.Unlock()
	close(a.done)
}

// do runs fn on the actor and waits for it.
func (a *actor) do(ctx context.Context, fn func(a *actor)) error {
	finished := make(chan struct{})
	job := func(a *actor) {
		defer close(finished)
		fn(a)
	}
	select {
	case a.jobs <- job:
	case <-a.done:
		return errRetired
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

// offerTick queues a tick unless one is already queued or the actor is gone.
func (a *actor) offerTick(t tickRequest) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.retired {
		return false
	}
	select {
	case a.ticks <- t:
		return true
	default:
		return false
	}
}

// Registry maps playlist ids to their actors.
type Registry struct {
	mu     sync.RWMutex
	actors map[string]*actor
	clock  Clock

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRegistry 创建播放列表注册表
func NewRegistry(clock Clock) *Registry {
	if clock == nil {
		clock = SystemClock
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		actors: make(map[string]*actor),
		clock:  clock,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (r *Registry) lookup(id string) *actor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.actors[id]
}

// spawn returns the live actor for st.PlaylistID, creating it from st if absent.
func (r *Registry) spawn(st model.PlaylistState, onStart func(a *actor)) (*actor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.actors[st.PlaylistID]; ok {
		return a, false
	}
	if r.ctx.Err() != nil {
		return nil, false
	}
	a := &actor{
		id:       st.PlaylistID,
		reg:      r,
		state:    st,
		jobs:     make(chan func(a *actor)),
		ticks:    make(chan tickRequest, 1),
		done:     make(chan struct{}),
		lastTick: r.clock.Now(),
	}
	r.actors[st.PlaylistID] = a
	r.wg.Add(1)
	go a.loop(r.ctx, onStart)
	metrics.ActivePlaylists.Inc()
	return a, true
}

func (r *Registry) evict(a *actor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.actors[a.id]; ok && cur == a {
		delete(r.actors, a.id)
		metrics.ActivePlaylists.Dec()
	}
}

func (r *Registry) snapshot() []*actor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*actor, 0, len(r.actors))
	for _, a := range r.actors {
		out = append(out, a)
	}
	return out
}

// View runs fn with the playlist's state on its actor. Nothing else touches
// the playlist until fn returns, so fn must not block.
func (r *Registry) View(ctx context.Context, playlistID string, fn func(st model.PlaylistState)) bool {
	a := r.lookup(playlistID)
	if a == nil {
		return false
	}
	return a.do(ctx, func(a *actor) { fn(a.state) }) == nil
}

// get copies the playlist's state, waiting for any in-flight job.
func (r *Registry) get(ctx context.Context, playlistID string) (model.PlaylistState, bool) {
	var out model.PlaylistState
	ok := r.View(ctx, playlistID, func(st model.PlaylistState) { out = st })
	return out, ok
}

// Mutate applies fn to a copy of the playlist's state and commits it when fn
// returns nil. fn runs on the playlist's actor.
func (r *Registry) Mutate(ctx context.Context, playlistID string, fn func(st *model.PlaylistState) error) (model.PlaylistState, error) {
	a := r.lookup(playlistID)
	if a == nil {
		return model.PlaylistState{}, ErrPlaylistNotFound
	}
	var (
		out  model.PlaylistState
		ferr error
	)
	err := a.do(ctx, func(a *actor) {
		next := a.state
		if ferr = fn(&next); ferr == nil {
			a.state = next
		}
		out = a.state
	})
	if errors.Is(err, errRetired) {
		return model.PlaylistState{}, ErrPlaylistNotFound
	}
	if err != nil {
		return model.PlaylistState{}, err
	}
	return out, ferr
}

// Seed creates state for item's playlist if none exists. onCreate runs on the
// new actor before anything else can touch it. The returned bool reports
// whether state was created.
func (r *Registry) Seed(ctx context.Context, item *model.MediaItem, onCreate func(st model.PlaylistState)) (model.PlaylistState, bool, error) {
	initial := model.NewPlaylistState(item)
	var onStart func(a *actor)
	if onCreate != nil {
		onStart = func(a *actor) { onCreate(a.state) }
	}
	for {
		a, created := r.spawn(initial, onStart)
		if a == nil {
			return model.PlaylistState{}, false, context.Canceled
		}
		if created {
			return initial, true, nil
		}
		var st model.PlaylistState
		err := a.do(ctx, func(a *actor) { st = a.state })
		if errors.Is(err, errRetired) {
			// lost a race with teardown; the old actor is already evicted
			continue
		}
		if err != nil {
			return model.PlaylistState{}, false, err
		}
		return st, false, nil
	}
}

// SeedFromCatalog seeds every playlist in items that has no state yet, using
// its lowest sortOrder item. It returns the number of playlists created.
func (r *Registry) SeedFromCatalog(items []*model.MediaItem) int {
	first := make(map[string]*model.MediaItem)
	for _, item := range items {
		if cur, ok := first[item.PlaylistID]; !ok || item.SortOrder < cur.SortOrder {
			first[item.PlaylistID] = item
		}
	}
	created := 0
	for _, item := range first {
		if _, ok := r.spawn(model.NewPlaylistState(item), nil); ok {
			created++
		}
	}
	logger.Info("playlists seeded from catalog",
		logger.Int("items", len(items)),
		logger.Int("created", created))
	return created
}

// Remove evicts playlistID. It reports whether a playlist was removed.
func (r *Registry) Remove(ctx context.Context, playlistID string) bool {
	a := r.lookup(playlistID)
	if a == nil {
		return false
	}
	if err := a.do(ctx, func(a *actor) { a.retire = true }); err != nil {
		return false
	}
	<-a.done
	return true
}

// IDs returns the sorted ids of live playlists.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.actors))
	for id := range r.actors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of live playlists.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.actors)
}

// Close stops every actor and waits for them to exit.
func (r *Registry) Close() {
	r.mu.Lock()
	r.cancel()
	r.mu.Unlock()
	r.wg.Wait()
}
