package runner

import (
	"iter"
	"sync"

	"pseudobench/internal/connector"
)

// RecordSet collects the references of created records. It only grows, so every snapshot is an
// immutable prefix that stays valid while other goroutines keep appending.
type RecordSet struct {
	mu   sync.RWMutex
	refs []connector.RecordRef
}

func NewRecordSet() *RecordSet {
	return &RecordSet{}
}

func (s *RecordSet) Add(ref connector.RecordRef) {
	s.mu.Lock()
	s.refs = append(s.refs, ref)
	s.mu.Unlock()
}

func (s *RecordSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.refs)
}

// Snapshot returns the references added so far. The result must not be modified.
func (s *RecordSet) Snapshot() []connector.RecordRef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refs[:len(s.refs):len(s.refs)]
}

// All iterates a snapshot taken when iteration starts.
func (s *RecordSet) All() iter.Seq[connector.RecordRef] {
	return func(yield func(connector.RecordRef) bool) {
		for _, ref := range s.Snapshot() {
			if !yield(ref) {
				return
			}
		}
	}
}
