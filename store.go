package inbox

import (
	"sort"
	"sync"
)

// ============================================================================
// Store
// ============================================================================

// ThreadUpdate is one decoded entry of a full-list refresh. A negative
// MessageCount leaves the stored count as it is.
type ThreadUpdate struct {
	Counterpart  string
	Subject      Subject
	MessageCount int
	Messages     []Message
}

// Store holds the product-scoped and store-scoped conversation collections.
// It is safe for concurrent use. Every write is a read-modify-write of a single
// conversation performed under the lock with a pure merge function, so a
// conversation is never observed half-updated.
type Store struct {
	mu      sync.RWMutex
	product map[string]Conversation
	store   map[string]Conversation
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		product: make(map[string]Conversation),
		store:   make(map[string]Conversation),
	}
}

// collection returns the map for scope; the caller must hold mu.
func (s *Store) collection(scope Scope) map[string]Conversation {
	switch scope {
	case ScopeProduct:
		return s.product
	case ScopeStore:
		return s.store
	}
	return nil
}

// ── Reads ────────────────────────────────────────────────

// Get returns a copy of the conversation with the given scope and id.
func (s *Store) Get(scope Scope, id string) (Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collection(scope)[id]
	if !ok {
		return Conversation{}, false
	}
	return c.clone(), true
}

// List returns copies of every conversation in scope, most recent first.
func (s *Store) List(scope Scope) []Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	coll := s.collection(scope)
	result := make([]Conversation, 0, len(coll))
	for _, c := range coll {
		result = append(result, c.clone())
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].LastTimestamp.Equal(result[j].LastTimestamp) {
			return result[i].LastTimestamp.After(result[j].LastTimestamp)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// Len returns the number of conversations held in scope.
func (s *Store) Len(scope Scope) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collection(scope))
}

// Snapshot returns copies of all conversations in both scopes.
func (s *Store) Snapshot() []Conversation {
	var all []Conversation
	for _, scope := range Scopes {
		all = append(all, s.List(scope)...)
	}
	return all
}

// ── Writes ───────────────────────────────────────────────

// ApplyRefresh reconciles a full-list refresh for one scope. Threads not yet
// known are inserted; known threads are merged. Conversations absent from
// updates are kept as they are. Updates whose subject belongs to another scope
// are ignored. It returns how many threads were inserted and merged.
func (s *Store) ApplyRefresh(scope Scope, updates []ThreadUpdate) (inserted, merged int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll := s.collection(scope)
	if coll == nil {
		return 0, 0
	}
	for _, u := range updates {
		if u.Subject == nil || u.Subject.Scope() != scope {
			continue
		}
		fresh := NewConversation(u.Counterpart, u.Subject)
		existing, ok := coll[fresh.ID]
		if !ok {
			existing = fresh
			inserted++
		} else {
			merged++
			if label := u.Subject.Label(); label != "" {
				existing.Subject = u.Subject
			}
		}
		next := Reconcile(existing, u.Messages)
		if u.MessageCount >= 0 {
			next.MessageCount = u.MessageCount
		}
		coll[next.ID] = next
	}
	return inserted, merged
}

// Reconcile merges batch into the conversation (scope, id) and returns the new state.
func (s *Store) Reconcile(scope Scope, id string, batch []Message) (Conversation, error) {
	c, _, err := s.update(scope, id, func(c Conversation) (Conversation, bool) {
		return Reconcile(c, batch), true
	})
	return c, err
}

// AppendLocal adds an optimistic message to (scope, id). It reports whether the
// message was added; an identical message already present is not duplicated.
func (s *Store) AppendLocal(scope Scope, id string, m Message) (Conversation, bool, error) {
	return s.update(scope, id, func(c Conversation) (Conversation, bool) {
		return appendLocal(c, m)
	})
}

// RemoveLocal rolls back the optimistic message m from (scope, id).
func (s *Store) RemoveLocal(scope Scope, id string, m Message) (Conversation, bool, error) {
	return s.update(scope, id, func(c Conversation) (Conversation, bool) {
		return removeLocal(c, m)
	})
}

// Restore inserts previously persisted conversations, replacing any held under
// the same scope and id.
func (s *Store) Restore(convs []Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range convs {
		if coll := s.collection(c.Scope()); coll != nil {
			coll[c.ID] = c.clone()
		}
	}
}

func (s *Store) update(scope Scope, id string, fn func(Conversation) (Conversation, bool)) (Conversation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll := s.collection(scope)
	c, ok := coll[id]
	if !ok {
		return Conversation{}, false, ErrConversationNotFound
	}
	next, changed := fn(c)
	if changed {
		coll[id] = next
	}
	return next.clone(), changed, nil
}
