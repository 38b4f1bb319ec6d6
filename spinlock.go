// Copyright 2025 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ioq

import (
	"runtime"
	"sync/atomic"
)

// spinDelay delays resumption of a spinloop.
// Usage:
//	var attempts uint
//	for try_something {
//	   attempts = spinDelay(attempts)
//	}
func spinDelay(attempts uint) uint {
	if attempts < 7 {
		for i := 0; i != 1<<attempts; i++ {
		}
		attempts++
	} else {
		runtime.Gosched()
	}
	return attempts
}

// A spinMu is a short-critical-section spinlock.  It never sleeps and never
// allocates, so it is safe to take from contexts that forbid blocking.  It
// is not reentrant.  Critical sections guarded by it must be O(queue depth)
// at worst and must not invoke callbacks.
type spinMu struct {
	word uint32
}

// lock acquires the spinlock, spinning with backoff until it is free.
func (m *spinMu) lock() {
	var attempts uint
	old := atomic.LoadUint32(&m.word)
	for old != 0 || !atomic.CompareAndSwapUint32(&m.word, 0, 1) { // acquire CAS
		attempts = spinDelay(attempts)
		old = atomic.LoadUint32(&m.word)
	}
}

// unlock releases the spinlock.
func (m *spinMu) unlock() {
	atomic.StoreUint32(&m.word, 0) // release store
}
