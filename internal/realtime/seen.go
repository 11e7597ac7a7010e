package realtime

import "sync"

// DefaultSeenCeiling bounds a SeenSet when no ceiling is configured.
const DefaultSeenCeiling = 1000

// SeenSet remembers recently processed event identities. When an insert
// pushes it past its ceiling, the oldest fifth of the identities (by
// insertion order) is dropped.
type SeenSet struct {
	mu      sync.Mutex
	ceiling int
	order   []string
	ids     map[string]struct{}
}

func NewSeenSet(ceiling int) *SeenSet {
	if ceiling <= 0 {
		ceiling = DefaultSeenCeiling
	}
	return &SeenSet{
		ceiling: ceiling,
		order:   make([]string, 0, ceiling+1),
		ids:     make(map[string]struct{}, ceiling+1),
	}
}

// Add records id and reports whether it was new.
func (s *SeenSet) Add(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	s.order = append(s.order, id)

	if len(s.order) > s.ceiling {
		n := s.ceiling / 5
		if n == 0 {
			n = 1
		}
		for _, old := range s.order[:n] {
			delete(s.ids, old)
		}
		// copy so the backing array does not grow forever
		s.order = append(make([]string, 0, s.ceiling+1), s.order[n:]...)
	}
	return true
}

func (s *SeenSet) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

func (s *SeenSet) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = make([]string, 0, s.ceiling+1)
	s.ids = make(map[string]struct{}, s.ceiling+1)
}
