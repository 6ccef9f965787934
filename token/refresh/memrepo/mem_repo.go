package memrepo

import (
	"context"
	"sync"

	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/token/refresh"
)

var _ refresh.Repo = (*MemRepo)(nil)

// MemRepo keeps values for the lifetime of the process, the equivalent of a
// browser tab's session storage.
type MemRepo struct {
	values map[string]string
	lock   sync.RWMutex
}

func New() *MemRepo {
	return &MemRepo{
		values: make(map[string]string),
	}
}

func (r *MemRepo) Get(_ context.Context, key string) (string, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	v, ok := r.values[key]
	if !ok {
		return "", autherrors.ErrNotFound
	}
	return v, nil
}

func (r *MemRepo) Set(_ context.Context, key, value string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.values[key] = value
	return nil
}

func (r *MemRepo) Delete(_ context.Context, key string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.values, key)
	return nil
}

// Keys lists the stored keys.
func (r *MemRepo) Keys() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()

	keys := make([]string, 0, len(r.values))
	for k := range r.values {
		keys = append(keys, k)
	}
	return keys
}
