package progress

import (
	"sync"

	"github.com/desertthunder/binder/internal/models"
)

// Store is the in-memory owner of the progress tree. It is safe for concurrent use.
//
// Store never persists on its own. Mutations that must reach disk and the remote go through a [Toggler]
// or through the caller that replaced the contents.
type Store struct {
	mu   sync.RWMutex
	data models.Progress
}

// NewStore creates a Store holding a copy of initial.
func NewStore(initial models.Progress) *Store {
	if initial == nil {
		initial = models.Progress{}
	}
	return &Store{data: initial.Clone()}
}

// Get returns the flag at (scope, card, variant), false if any level is absent.
func (s *Store) Get(scope, card, variant string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Get(scope, card, variant)
}

// Set writes a flag, creating intermediate levels. It reports whether the value changed.
func (s *Store) Set(scope, card, variant string, value bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Set(scope, card, variant, value)
}

// ReplaceAll discards the current contents in favour of a copy of p. A nil p empties the store.
func (s *Store) ReplaceAll(p models.Progress) {
	if p == nil {
		p = models.Progress{}
	}
	next := p.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = next
}

// Snapshot returns a deep copy of the current contents.
func (s *Store) Snapshot() models.Progress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Clone()
}

// Card returns a copy of the flags recorded for one card.
func (s *Store) Card(scope, card string) models.VariantFlags {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Card(scope, card)
}

// ComputeCompletion reports whether every applicable variant of the card is collected.
// An empty applicable set is vacuously complete.
func (s *Store) ComputeCompletion(scope, card string, applicable []string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return complete(s.data, scope, card, applicable)
}

// EnsureScopes creates empty entries for any scope not yet present and reports whether any were added.
func (s *Store) EnsureScopes(scopes ...string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	added := false
	for _, scope := range scopes {
		if s.data.EnsureScope(scope) {
			added = true
		}
	}
	return added
}

// Update runs fn against the live contents under the write lock. fn reports whether it changed anything.
func (s *Store) Update(fn func(models.Progress) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

func complete(p models.Progress, scope, card string, applicable []string) bool {
	for _, v := range applicable {
		if !p.Get(scope, card, v) {
			return false
		}
	}
	return true
}
