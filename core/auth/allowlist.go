package auth

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"PlaySync/logger"
)

// TokenStore persists admin tokens. cache.TokenCache implements it.
type TokenStore interface {
	Add(ctx context.Context, token string) error
	Remove(ctx context.Context, token string) error
	All(ctx context.Context) ([]string, error)
}

// Allowlist is the set of admin tokens allowed to issue playback commands.
// Reads hit an immutable snapshot; writers copy and swap under mu.
type Allowlist struct {
	mu    sync.Mutex
	snap  atomic.Pointer[map[string]struct{}]
	store TokenStore
}

// NewAllowlist creates an empty allowlist. store may be nil for memory-only mode.
func NewAllowlist(store TokenStore) *Allowlist {
	a := &Allowlist{store: store}
	empty := map[string]struct{}{}
	a.snap.Store(&empty)
	return a
}

// Load merges tokens from the store into memory.
func (a *Allowlist) Load(ctx context.Context) error {
	if a.store == nil {
		return nil
	}
	tokens, err := a.store.All(ctx)
	if err != nil {
		return fmt.Errorf("load admin tokens: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	next := a.copyLocked()
	for _, t := range tokens {
		if t != "" {
			next[t] = struct{}{}
		}
	}
	a.snap.Store(&next)
	logger.Info("admin tokens loaded", logger.Int("count", len(next)))
	return nil
}

// Add inserts token. It is a no-op if already present.
func (a *Allowlist) Add(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("%w: empty token", ErrUnauthorized)
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.store != nil {
		if err := a.store.Add(ctx, token); err != nil {
			return err
		}
	}
	next := a.copyLocked()
	next[token] = struct{}{}
	a.snap.Store(&next)
	return nil
}

// Remove deletes token. Removing an unknown token succeeds.
func (a *Allowlist) Remove(ctx context.Context, token string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.store != nil {
		if err := a.store.Remove(ctx, token); err != nil {
			return err
		}
	}
	next := a.copyLocked()
	delete(next, token)
	a.snap.Store(&next)
	return nil
}

// Contains reports whether token is allowlisted.
func (a *Allowlist) Contains(token string) bool {
	_, ok := (*a.snap.Load())[token]
	return ok
}

// Tokens returns the sorted allowlist.
func (a *Allowlist) Tokens() []string {
	m := *a.snap.Load()
	out := make([]string, 0, len(m))
	for t := range m {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (a *Allowlist) copyLocked() map[string]struct{} {
	cur := *a.snap.Load()
	next := make(map[string]struct{}, len(cur)+1)
	for t := range cur {
		next[t] = struct{}{}
	}
	return next
}
