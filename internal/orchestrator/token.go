package orchestrator

import (
	"context"
	"sync"
)

// Token is a one-shot cooperative cancellation signal. Sessions observe it
// at every suspension point via the derived context; external actors request
// termination with Cancel. Cancelling twice is a no-op.
type Token struct {
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

func newToken() *Token {
	ctx, cancel := context.WithCancel(context.Background())
	return &Token{ctx: ctx, cancel: cancel}
}

// Cancel requests early termination. Idempotent.
func (t *Token) Cancel() {
	t.once.Do(t.cancel)
}

// Cancelled reports whether Cancel has been called.
func (t *Token) Cancelled() bool {
	return t.ctx.Err() != nil
}

// Context returns the context carrying this token's signal, for attaching
// to outbound requests.
func (t *Token) Context() context.Context {
	return t.ctx
}
