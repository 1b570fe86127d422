// Package middleware wraps a ports.SnapshotStore to transform snapshots on
// their way to and from retention.
//
// Middlewares compose with Chain; the first one listed sees a Save first:
//
//	store = middleware.Chain(
//		middleware.NewRedactionMiddleware([]string{"(?i)password"}),
//		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}),
//	)(redisStore)
package middleware

import "github.com/aretw0/argview/pkg/ports"

// Middleware allows wrapping a SnapshotStore to add behavior.
type Middleware func(ports.SnapshotStore) ports.SnapshotStore

// Chain applies mws so that mws[0] is the outermost wrapper.
func Chain(mws ...Middleware) Middleware {
	return func(next ports.SnapshotStore) ports.SnapshotStore {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}
