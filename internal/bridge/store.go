package bridge

import (
	"sync"

	"go.uber.org/zap"
)

// DefaultStoreCap bounds how many transfers are retained per account; the
// oldest terminal records are evicted first.
const DefaultStoreCap = 50

// Store is the in-memory transfer registry. It exclusively owns the canonical
// records: reads return copies, and all mutation goes through Update so each
// record has single-writer-at-a-time semantics.
type Store struct {
	mu            sync.RWMutex
	transfers     map[string]*Transfer
	byAccount     map[string][]string // transfer ids, insertion order
	maxPerAccount int
	logger        *zap.Logger
}

func NewStore(maxPerAccount int, logger *zap.Logger) *Store {
	if maxPerAccount <= 0 {
		maxPerAccount = DefaultStoreCap
	}
	return &Store{
		transfers:     make(map[string]*Transfer),
		byAccount:     make(map[string][]string),
		maxPerAccount: maxPerAccount,
		logger:        logger.Named("store"),
	}
}

// Put registers a new transfer, evicting the account's oldest settled record
// when over capacity.
func (s *Store) Put(t *Transfer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transfers[t.ID] = t.Clone()
	ids := append(s.byAccount[t.Sender], t.ID)

	if len(ids) > s.maxPerAccount {
		ids = s.evictLocked(ids)
	}
	s.byAccount[t.Sender] = ids
}

// evictLocked drops the oldest terminal transfer, or the oldest outright when
// every record is still in flight.
func (s *Store) evictLocked(ids []string) []string {
	victim := -1
	for i, id := range ids {
		if t, ok := s.transfers[id]; ok && t.State.Terminal() {
			victim = i
			break
		}
	}
	if victim == -1 {
		victim = 0
	}
	evicted := ids[victim]
	delete(s.transfers, evicted)
	s.logger.Debug("Evicted transfer over store capacity", zap.String("id", evicted))
	return append(ids[:victim], ids[victim+1:]...)
}

// Get returns a copy of the transfer with the given id.
func (s *Store) Get(id string) (*Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.transfers[id]
	if !ok {
		return nil, ErrTransferNotFound
	}
	return t.Clone(), nil
}

// ListByAccount returns the account's transfers, newest first.
func (s *Store) ListByAccount(account string) []*Transfer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byAccount[account]
	out := make([]*Transfer, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		if t, ok := s.transfers[ids[i]]; ok {
			out = append(out, t.Clone())
		}
	}
	return out
}

// ListNonTerminal returns every transfer still in flight, for reconciler
// resumption.
func (s *Store) ListNonTerminal() []*Transfer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Transfer
	for _, t := range s.transfers {
		if !t.State.Terminal() {
			out = append(out, t.Clone())
		}
	}
	return out
}

// Update applies fn to the canonical record under the store lock and returns
// a copy of the result. fn returning an error leaves the record untouched,
// because it operates on a scratch copy.
func (s *Store) Update(id string, fn func(*Transfer) error) (*Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.transfers[id]
	if !ok {
		return nil, ErrTransferNotFound
	}
	scratch := t.Clone()
	if err := fn(scratch); err != nil {
		return nil, err
	}
	s.transfers[id] = scratch
	return scratch.Clone(), nil
}

// Len reports the number of retained transfers.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.transfers)
}
