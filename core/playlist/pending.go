package playlist

import (
	"sync"

	"PlaySync/metrics"
)

// PendingDeletions holds media ids marked for deletion that the tick has not processed yet.
type PendingDeletions struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewPendingDeletions 创建待删除集合
func NewPendingDeletions() *PendingDeletions {
	return &PendingDeletions{ids: make(map[string]struct{})}
}

// Add marks id for deletion.
func (p *PendingDeletions) Add(id string) {
	p.mu.Lock()
	p.ids[id] = struct{}{}
	n := len(p.ids)
	p.mu.Unlock()
	metrics.PendingDeletions.Set(float64(n))
}

// Remove clears id once its deletion is done.
func (p *PendingDeletions) Remove(id string) {
	p.mu.Lock()
	delete(p.ids, id)
	n := len(p.ids)
	p.mu.Unlock()
	metrics.PendingDeletions.Set(float64(n))
}

// Contains reports whether id is waiting for deletion.
func (p *PendingDeletions) Contains(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.ids[id]
	return ok
}

// Len returns the number of pending ids.
func (p *PendingDeletions) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.ids)
}
