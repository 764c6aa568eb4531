package core

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestWaitGroupInvoker_StopWaitsForSpawned(t *testing.T) {
	invoker := NewInvoker()
	var done int32

	for i := 0; i < 10; i++ {
		invoker.Spawn(func() {
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&done, 1)
		})
	}

	invoker.Stop()
	if atomic.LoadInt32(&done) != 10 {
		t.Fatalf("expected all 10 spawned activities to finish, got %d", done)
	}
}
