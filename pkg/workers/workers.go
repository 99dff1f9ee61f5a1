package workers

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// nopLogger silently discards all messages.
type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// OrNop returns l, or a logger that discards everything when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return nopLogger{}
	}
	return l
}

// Map applies fn to every item with at most workers calls in flight and returns the results in
// input order. With workers <= 1 items are processed sequentially, in order. fn must not fail:
// per-item problems belong in R. Items not started before ctx is done keep their zero value.
func Map[T, R any](ctx context.Context, items []T, workers int, fn func(ctx context.Context, i int, item T) R) []R {
	out := make([]R, len(items))
	if workers <= 1 {
		for i, it := range items {
			if ctx.Err() != nil {
				break
			}
			out[i] = fn(ctx, i, it)
		}
		return out
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, it := range items {
		if gctx.Err() != nil {
			break
		}
		i, it := i, it
		g.Go(func() error {
			out[i] = fn(gctx, i, it)
			return nil
		})
	}
	_ = g.Wait()
	return out
}
