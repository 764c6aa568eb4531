// Package testutil adapts the teacher's test/testing.go harness (the
// TestInvoker plus a cluster-of-unities builder) to the new domain: a
// TestInvoker plus a cluster-of-peers builder wired with in-memory
// transports and directory, so the state machine can be exercised
// without real sockets or a relt broker.
package testutil

import "sync"

// TestInvoker is functionally identical to core.WaitGroupInvoker; kept
// as its own type, the same way the teacher keeps a distinct
// test.TestInvoker next to core's production invoker, so tests never
// depend on an internal package's concrete type.
type TestInvoker struct {
	group sync.WaitGroup
}

// NewInvoker builds a TestInvoker.
func NewInvoker() *TestInvoker {
	return &TestInvoker{}
}

func (t *TestInvoker) Spawn(f func()) {
	t.group.Add(1)
	go func() {
		defer t.group.Done()
		f()
	}()
}

func (t *TestInvoker) Stop() {
	t.group.Wait()
}
