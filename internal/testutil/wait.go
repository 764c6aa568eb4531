package testutil

import (
	"runtime"
	"testing"
	"time"
)

// WaitThisOrTimeout runs cb and reports whether it finished before
// duration elapsed, the same shutdown-deadline guard the teacher's
// test/testing.go uses around cluster teardown.
func WaitThisOrTimeout(cb func(), duration time.Duration) bool {
	done := make(chan struct{})
	go func() {
		cb()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(duration):
		return false
	}
}

// PrintStackTrace dumps every goroutine's stack into the test log,
// used when a shutdown hangs and the cause needs to be dumped.
func PrintStackTrace(t *testing.T) {
	buf := make([]byte, 1<<16)
	n := runtime.Stack(buf, true)
	t.Errorf("%s", buf[:n])
}
