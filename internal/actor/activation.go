package actor

import (
	"context"
	"sync"
)

// ActivationGuard ties cooperative cancellation to recipe activations.
// Each activation owns a context derived from the process context; when
// the next activation begins (or the guard is shut down) the previous
// context is cancelled, so long-running streaming operations tied to the
// old configuration tear down before new device actors — which may reuse
// device identities — start.
type ActivationGuard struct {
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewActivationGuard returns a guard with no running activation.
func NewActivationGuard() *ActivationGuard {
	return &ActivationGuard{}
}

// Begin cancels the previous activation, if any, and returns the context
// of the new one, derived from parent.
func (g *ActivationGuard) Begin(parent context.Context) context.Context {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		g.cancel()
	}
	g.ctx, g.cancel = context.WithCancel(parent)
	return g.ctx
}

// Context returns the current activation context, or a cancelled context
// when no activation is running.
func (g *ActivationGuard) Context() context.Context {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ctx == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	return g.ctx
}

// Abort cancels the current activation without starting a new one.
func (g *ActivationGuard) Abort() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		g.cancel()
		g.ctx, g.cancel = nil, nil
	}
}
