package health

import (
	"bytes"
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/dyncache/pkg/cache"
)

// StoreCheck exercises a cache store with a short-lived write, read and remove
// under a random key.
func StoreCheck(store cache.Store) CheckFunc {
	return func(ctx context.Context) error {
		key := "health-" + uuid.NewString()
		want := []byte(key)

		if err := store.Set(ctx, key, want, cache.EntryOptions{AbsoluteExpirationRelativeToNow: time.Minute}); err != nil {
			return err
		}
		defer func() { _ = store.Remove(context.WithoutCancel(ctx), key) }()

		got, err := store.Get(ctx, key)
		if err != nil {
			return err
		}
		if !bytes.Equal(got, want) {
			return ErrStoreMismatch
		}
		return nil
	}
}
