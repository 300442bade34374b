// Package groutine starts goroutines tagged with a name, visible as a pprof
// label in profiles and recoverable from the context for log fields.
package groutine

import (
	"context"
	"runtime/pprof"
)

type ctxKey struct{}

const labelKey = "goroutine_name"

// Go runs fn in a new goroutine labelled name.
//
//	groutine.Go(ctx, "session-scan", func(ctx context.Context) {
//	    // work
//	})
//
// A nil parent falls back to context.Background().
func Go(parent context.Context, name string, fn func(ctx context.Context)) {
	if parent == nil {
		parent = context.Background()
	}

	go pprof.Do(parent, pprof.Labels(labelKey, name), func(ctx context.Context) {
		fn(context.WithValue(ctx, ctxKey{}, name))
	})
}

// Name returns the name given to Go for the goroutine owning ctx, or "".
func Name(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	name, _ := ctx.Value(ctxKey{}).(string)
	return name
}
