package ops

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Store is the operation registry. Implementations must be safe for
// concurrent use; state mutation happens on the Operation itself so the
// store only guards membership.
type Store interface {
	Put(op *Operation) error
	Get(id string) (*Operation, error)
	Delete(id string) error
	List() []*Operation
}

// MemoryStore is the in-process Store. Operations are lost on restart;
// nothing here is durable by design.
type MemoryStore struct {
	mu  sync.RWMutex
	ops map[string]*Operation
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{ops: make(map[string]*Operation)}
}

// Put registers an operation under its id.
func (s *MemoryStore) Put(op *Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ops[op.ID()] = op

	return nil
}

// Get returns the operation with the given id.
func (s *MemoryStore) Get(id string) (*Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	op, ok := s.ops[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOperationNotFound, id)
	}

	return op, nil
}

// Delete removes the operation with the given id. Unknown ids are ignored.
func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.ops, id)

	return nil
}

// List returns all registered operations.
func (s *MemoryStore) List() []*Operation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*Operation, 0, len(s.ops))
	for _, op := range s.ops {
		list = append(list, op)
	}

	return list
}

// EvictFunc is notified with the id of every evicted operation, so owners
// of per-operation state (stored result sets, subscriptions) release it in
// the same pass. May be nil.
type EvictFunc func(id string)

// RunJanitor evicts terminal operations older than retention, checking every
// interval until ctx is done. An unbounded registry is a memory leak under
// sustained use.
func RunJanitor(ctx context.Context, store Store, retention, interval time.Duration, onEvict EvictFunc) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			evictExpired(store, now, retention, onEvict)
		}
	}
}

func evictExpired(store Store, now time.Time, retention time.Duration, onEvict EvictFunc) {
	for _, op := range store.List() {
		snap := op.Snapshot()
		if !snap.Status.Terminal() || snap.CompletedAt == nil {
			continue
		}

		if now.Sub(*snap.CompletedAt) >= retention {
			_ = store.Delete(snap.ID)

			if onEvict != nil {
				onEvict(snap.ID)
			}
		}
	}
}
