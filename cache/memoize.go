package cache

import (
	"context"
	"time"
)

// Memoize wraps fn so that results are cached under the namespace for ttl.
// On a miss the underlying fn is called and its result cached; a failed
// call caches nothing, so the next invocation retries rather than serving
// a poisoned entry. Concurrent calls with an identical key before the
// first resolves are not deduplicated; each triggers its own fn call.
func Memoize[A any, V any](c *Cache, namespace string, ttl time.Duration, fn func(context.Context, A) (V, error)) func(context.Context, A) (V, error) {
	return func(ctx context.Context, args A) (V, error) {
		key := Key(namespace, args)

		if cached, ok := c.Get(key); ok {
			if v, ok := cached.(V); ok {
				return v, nil
			}
			// A namespace collision across types; treat as a miss.
			c.Delete(key)
		}

		v, err := fn(ctx, args)
		if err != nil {
			var zero V
			return zero, err
		}

		c.Set(key, v, ttl)
		return v, nil
	}
}
