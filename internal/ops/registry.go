package ops

// Registry layers ownership checks over a Store. Transport boundaries go
// through the Registry; workers that own an operation hold the *Operation
// directly.
type Registry struct {
	store Store
}

// NewRegistry creates a registry over the given store.
func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

// Store returns the underlying store, for the janitor.
func (r *Registry) Store() Store {
	return r.store
}

// Create registers a new pending operation owned by userID.
func (r *Registry) Create(userID string) (*Operation, error) {
	op := NewOperation(userID)

	if err := r.store.Put(op); err != nil {
		return nil, err
	}

	return op, nil
}

// Get returns a snapshot of an operation. Unknown ids yield
// [ErrOperationNotFound]; other users' operations yield [ErrForbidden].
func (r *Registry) Get(id, userID string) (Snapshot, error) {
	op, err := r.authorized(id, userID)
	if err != nil {
		return Snapshot{}, err
	}

	return op.Snapshot(), nil
}

// Cancel requests cancellation of an operation. Cancelling an already
// terminal operation is a no-op, not an error.
func (r *Registry) Cancel(id, userID string) (Snapshot, error) {
	op, err := r.authorized(id, userID)
	if err != nil {
		return Snapshot{}, err
	}

	op.Cancel()

	return op.Snapshot(), nil
}

func (r *Registry) authorized(id, userID string) (*Operation, error) {
	op, err := r.store.Get(id)
	if err != nil {
		return nil, err
	}

	if !op.OwnedBy(userID) {
		return nil, ErrForbidden
	}

	return op, nil
}
