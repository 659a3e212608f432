package playlist

import (
	"sync"

	"PlaySync/logger"
	"PlaySync/metrics"
)

// Conn is a subscriber handle. Send must not block.
type Conn interface {
	ID() string
	Send(msg []byte) error
}

// Subscribers 播放列表订阅者管理
// Each playlist maps to an immutable slice; writers replace the slice under mu,
// so a reader's snapshot never changes underneath a fan-out.
type Subscribers struct {
	mu   sync.RWMutex
	sets map[string][]Conn
}

// NewSubscribers 创建订阅者注册表
func NewSubscribers() *Subscribers {
	return &Subscribers{sets: make(map[string][]Conn)}
}

// Add subscribes c to playlistID. Returns false if it was already a member.
func (s *Subscribers) Add(playlistID string, c Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.sets[playlistID]
	for _, existing := range cur {
		if existing.ID() == c.ID() {
			return false
		}
	}
	next := make([]Conn, len(cur), len(cur)+1)
	copy(next, cur)
	s.sets[playlistID] = append(next, c)
	metrics.Subscribers.Inc()

	logger.Debug("subscriber added",
		logger.String("playListId", playlistID),
		logger.String("conn", c.ID()),
		logger.Int("total", len(next)+1))
	return true
}

// RemoveEverywhere drops c from every playlist and returns how many it left.
func (s *Subscribers) RemoveEverywhere(c Conn) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, cur := range s.sets {
		idx := -1
		for i, existing := range cur {
			if existing.ID() == c.ID() {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue
		}
		removed++
		if len(cur) == 1 {
			delete(s.sets, id)
			continue
		}
		next := make([]Conn, 0, len(cur)-1)
		next = append(next, cur[:idx]...)
		next = append(next, cur[idx+1:]...)
		s.sets[id] = next
	}
	metrics.Subscribers.Sub(float64(removed))
	return removed
}

// Of returns the subscribers of playlistID, never nil. Callers must not modify it.
func (s *Subscribers) Of(playlistID string) []Conn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if cur, ok := s.sets[playlistID]; ok {
		return cur
	}
	return []Conn{}
}

// Count returns the number of subscribers of playlistID.
func (s *Subscribers) Count(playlistID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sets[playlistID])
}
