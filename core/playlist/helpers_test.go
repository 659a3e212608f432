package playlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"PlaySync/core/auth"
	"PlaySync/model"
	"PlaySync/repository"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeCatalog is an in-memory media catalog.
type fakeCatalog struct {
	mu        sync.Mutex
	items     map[string][]*model.MediaItem
	nextOrder map[string]int
	listErr   error
	deleteErr error
	block     map[string]chan struct{} // ListByPlaylist waits on these
	lists     int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		items:     make(map[string][]*model.MediaItem),
		nextOrder: make(map[string]int),
		block:     make(map[string]chan struct{}),
	}
}

func (f *fakeCatalog) add(playlistID, id string, duration float64) *model.MediaItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextOrder[playlistID]++
	item := &model.MediaItem{
		ID:              id,
		PlaylistID:      playlistID,
		FilePath:        "/uploads/" + id + ".mp3",
		DurationSeconds: duration,
		SortOrder:       f.nextOrder[playlistID],
	}
	f.items[playlistID] = append(f.items[playlistID], item)
	return item
}

func (f *fakeCatalog) all() []*model.MediaItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.MediaItem
	for _, items := range f.items {
		out = append(out, items...)
	}
	return out
}

func (f *fakeCatalog) ids(playlistID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []string{}
	for _, item := range f.items[playlistID] {
		out = append(out, item.ID)
	}
	return out
}

func (f *fakeCatalog) setErrors(list, del error) {
	f.mu.Lock()
	f.listErr, f.deleteErr = list, del
	f.mu.Unlock()
}

func (f *fakeCatalog) blockList(playlistID string) chan struct{} {
	ch := make(chan struct{})
	f.mu.Lock()
	f.block[playlistID] = ch
	f.mu.Unlock()
	return ch
}

func (f *fakeCatalog) ListByPlaylist(ctx context.Context, playlistID string) ([]*model.MediaItem, error) {
	f.mu.Lock()
	ch := f.block[playlistID]
	f.mu.Unlock()
	if ch != nil {
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]*model.MediaItem, len(f.items[playlistID]))
	copy(out, f.items[playlistID])
	return out, nil
}

func (f *fakeCatalog) FindInPlaylist(_ context.Context, playlistID, id string) (*model.MediaItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range f.items[playlistID] {
		if item.ID == id {
			return item, nil
		}
	}
	return nil, repository.ErrMediaNotFound
}

func (f *fakeCatalog) DeleteByID(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for pl, items := range f.items {
		for i, item := range items {
			if item.ID == id {
				f.items[pl] = append(items[:i:i], items[i+1:]...)
				return nil
			}
		}
	}
	return repository.ErrMediaNotFound
}

// fakeConn records what it is sent.
type fakeConn struct {
	id  string
	mu  sync.Mutex
	raw [][]byte
	err error
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.raw = append(c.raw, msg)
	return nil
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	c.raw = nil
	c.mu.Unlock()
}

func (c *fakeConn) statuses(t *testing.T) []model.Status {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := []model.Status{}
	for _, raw := range c.raw {
		var msg WSMessage
		require.NoError(t, json.Unmarshal(raw, &msg))
		if msg.Type != MsgTypeStatus {
			continue
		}
		var st model.Status
		require.NoError(t, json.Unmarshal(msg.Data, &st))
		out = append(out, st)
	}
	return out
}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.raw)
}

type testEnv struct {
	clock    *fakeClock
	catalog  *fakeCatalog
	reg      *Registry
	subs     *Subscribers
	dispatch *Dispatcher
	pending  *PendingDeletions
	engine   *Engine
	users    *auth.Allowlist
	handler  *CommandHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	e := &testEnv{
		clock:   newFakeClock(),
		catalog: newFakeCatalog(),
		subs:    NewSubscribers(),
		pending: NewPendingDeletions(),
		users:   auth.NewAllowlist(nil),
	}
	e.reg = NewRegistry(e.clock)
	e.dispatch = NewDispatcher(e.subs)
	e.engine = NewEngine(e.reg, e.dispatch, e.catalog, e.pending, EngineConfig{
		Interval:       DefaultTickInterval,
		StallThreshold: time.Second,
	})
	gate := auth.NewGate(auth.NewSystemKeys([]string{"system-secret"}), e.users)
	e.handler = NewCommandHandler(e.reg, e.subs, e.dispatch, e.catalog, gate)
	require.NoError(t, e.users.Add(context.Background(), "admin"))
	t.Cleanup(e.reg.Close)
	return e
}

// seed loads the catalog into the registry.
func (e *testEnv) seed() {
	e.reg.SeedFromCatalog(e.catalog.all())
}

// tick advances the clock by d and runs one sweep to completion.
func (e *testEnv) tick(t *testing.T, d time.Duration) {
	t.Helper()
	e.clock.Advance(d)
	select {
	case <-e.engine.Tick():
	case <-time.After(2 * time.Second):
		t.Fatal("tick did not finish")
	}
}

func (e *testEnv) state(t *testing.T, playlistID string) model.PlaylistState {
	t.Helper()
	st, ok := e.reg.get(context.Background(), playlistID)
	require.True(t, ok, "playlist %s should exist", playlistID)
	return st
}

func (e *testEnv) send(c Conn, typ MessageType, data map[string]interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		panic(fmt.Sprintf("marshal test payload: %v", err))
	}
	return e.handler.Handle(context.Background(), c, &WSMessage{Type: typ, Data: raw})
}

func (e *testEnv) subscribe(t *testing.T, playlistID string, conns ...*fakeConn) {
	t.Helper()
	for _, c := range conns {
		require.NoError(t, e.send(c, MsgTypeSubscribe, map[string]interface{}{"playListId": playlistID}))
		c.reset()
	}
}

// setPosition moves playback directly, bypassing commands.
func (e *testEnv) setPosition(t *testing.T, playlistID string, pos float64) {
	t.Helper()
	_, err := e.reg.Mutate(context.Background(), playlistID, func(st *model.PlaylistState) error {
		st.Position = pos
		return nil
	})
	require.NoError(t, err)
}

var errCatalogDown = errors.New("catalog down")
