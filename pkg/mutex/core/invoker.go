package core

import "sync"

// Invoker spawns a function as an independently-scheduled activity.
// Grounded in the teacher's core.Invoker / InvokerInstance() pattern
// (pkg/mcast/core/peer.go) and its test double, test/testing.go's
// TestInvoker: production code spawns bare goroutines tracked by a
// WaitGroup so Stop can drain them deterministically, and tests can swap
// in a double that asserts on the set of spawned work.
type Invoker interface {
	// Spawn runs f as an independent activity.
	Spawn(f func())

	// Stop blocks until every spawned activity that will ever finish has
	// finished. Activities that block forever (e.g. blocked on a timer
	// that was already cancelled) must return promptly once their
	// governing context is cancelled.
	Stop()
}

// WaitGroupInvoker is the production Invoker: every Spawn is a goroutine
// tracked by a sync.WaitGroup.
type WaitGroupInvoker struct {
	group *sync.WaitGroup
}

// NewInvoker creates a WaitGroupInvoker.
func NewInvoker() Invoker {
	return &WaitGroupInvoker{group: &sync.WaitGroup{}}
}

func (w *WaitGroupInvoker) Spawn(f func()) {
	w.group.Add(1)
	go func() {
		defer w.group.Done()
		f()
	}()
}

func (w *WaitGroupInvoker) Stop() {
	w.group.Wait()
}
