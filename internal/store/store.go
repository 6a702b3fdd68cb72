package store

import "context"

// Store is the persistent key-value contract the core consumes. Get
// reports absence through its second return instead of an error, so
// callers can distinguish "missing" from "broken".
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Has(ctx context.Context, key string) (bool, error)
}
