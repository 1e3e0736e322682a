package core

import "context"

// Cache is a read-through store for derived views (fee statements, report cards).
// A key groups fields that are invalidated together.
//
// Every Invalidate bumps the key's generation. Get returns the generation it observed and
// Set only writes when the key is still at that generation, so a view computed from data
// read before an invalidation is never stored after it.
type Cache interface {
	// Get decodes the cached value into dst and reports whether it was found.
	Get(ctx context.Context, key, field string, dst interface{}) (found bool, gen int64, err error)
	// Set stores value unless key was invalidated after gen was read. A skipped write is not an error.
	Set(ctx context.Context, key, field string, value interface{}, gen int64) error
	Invalidate(ctx context.Context, keys ...string) error
}

// NopCache never holds anything.
type NopCache struct{}

var _ Cache = NopCache{}

func (NopCache) Get(context.Context, string, string, interface{}) (bool, int64, error) {
	return false, 0, nil
}
func (NopCache) Set(context.Context, string, string, interface{}, int64) error { return nil }
func (NopCache) Invalidate(context.Context, ...string) error                  { return nil }
