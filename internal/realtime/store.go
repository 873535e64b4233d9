package realtime

import (
	"sort"
	"sync"

	"github.com/brainmap/realtime/internal/domain"
)

// Store is the single source of truth for the notification collection.
// It reconciles two inputs: full refresh fetches (Replace) and incremental
// pushes (Upsert). The collection is kept sorted by CreatedAt descending
// and holds at most one entry per id. The unread counter is maintained
// incrementally from read-flag transitions so it always matches the
// collection.
type Store struct {
	mu     sync.RWMutex
	items  []domain.Notification
	unread int
}

func NewStore() *Store {
	return &Store{}
}

// Replace swaps in the full collection from a refresh. The fetched set is
// authoritative: entries missing from it are dropped, whatever pushes were
// merged since the request went out.
func (s *Store) Replace(list []domain.Notification) {
	items := make([]domain.Notification, len(list))
	unread := 0
	for i, n := range list {
		items[i] = n.Clone()
		if !n.IsRead {
			unread++
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = items
	s.unread = unread
	s.sortLocked()
}

// Upsert merges a push event. A known id is overwritten in place (incoming
// wins), an unknown one is prepended. Returns true when the entry is new.
func (s *Store) Upsert(n domain.Notification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID == n.ID {
			if s.items[i].IsRead != n.IsRead {
				if n.IsRead {
					s.unread--
				} else {
					s.unread++
				}
			}
			s.items[i] = n.Clone()
			s.sortLocked()
			return false
		}
	}

	s.items = append([]domain.Notification{n.Clone()}, s.items...)
	if !n.IsRead {
		s.unread++
	}
	s.sortLocked()
	return true
}

// Get returns a copy of the entry with the given id.
func (s *Store) Get(id string) (domain.Notification, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.items {
		if s.items[i].ID == id {
			return s.items[i].Clone(), true
		}
	}
	return domain.Notification{}, false
}

// Snapshot returns a copy of the ordered collection.
func (s *Store) Snapshot() []domain.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Notification, len(s.items))
	for i := range s.items {
		out[i] = s.items[i].Clone()
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread
}

// mutate applies fn to the entry with the given id, adjusting the unread
// counter by the read-flag transition. Returns false when the id is
// unknown. Used by the optimistic action layer for apply and rollback, so
// a rollback that writes the snapshot back restores the counter exactly.
func (s *Store) mutate(id string, fn func(*domain.Notification)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID == id {
			wasRead := s.items[i].IsRead
			fn(&s.items[i])
			if wasRead != s.items[i].IsRead {
				if s.items[i].IsRead {
					s.unread--
				} else {
					s.unread++
				}
			}
			s.sortLocked()
			return true
		}
	}
	return false
}

// sortLocked keeps newest-first order; the stable sort preserves insertion
// order for equal timestamps.
func (s *Store) sortLocked() {
	sort.SliceStable(s.items, func(i, j int) bool {
		return s.items[i].CreatedAt.After(s.items[j].CreatedAt)
	})
}
