package refresh

import "context"

// Repo is the tab scoped durable storage holding the raw refresh token.
// Implementations survive a reload of the owning tab but are never shared
// with another tab. Get returns errors.ErrNotFound when the key is absent.
type Repo interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
