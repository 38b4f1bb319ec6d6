// Copyright 2025 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ioq

import (
	"sync/atomic"

	"v.io/x/lib/nsync"
)

// Gate state is a single atomic word: the low bit is the closing flag, the
// rest is the admission count.  Acquire and Release are lock-free CAS/add
// on the word; the nsync mutex and condition variable serve only the
// drain-wait slow path.
const (
	gateClosing   = 1 // teardown has begun; no new admissions
	gateAdmission = 2 // one admission
)

// A Gate guards the lifetime of a device-like resource.  Every operation
// that touches the resource brackets itself with Acquire/Release; teardown
// calls CloseAndWait, after which the resource may be destroyed: no
// admission is outstanding and none can start.
//
// The zero Gate is valid and open.  Acquire and Release are non-blocking
// and allocation free, safe to call from contexts that forbid sleeping.
// A Gate moves through three states: Active (open), Draining (closing
// requested, admissions outstanding) and Closed, and never reopens.
type Gate struct {
	word    atomic.Uint64
	mu      nsync.Mu
	drained nsync.CV
}

// An Admission is the scoped guard returned by a successful Acquire.  The
// holder must call Release exactly once when done with the resource,
// typically via defer.  The zero Admission is empty; releasing it panics.
type Admission struct {
	g *Gate
}

// Acquire admits the caller to the gated resource.  It fails, returning an
// empty Admission and false, once teardown has begun.  Acquire never blocks
// and never allocates.
func (g *Gate) Acquire() (Admission, bool) {
	for {
		w := g.word.Load()
		if w&gateClosing != 0 {
			return Admission{}, false
		}
		if g.word.CompareAndSwap(w, w+gateAdmission) { // acquire CAS
			return Admission{g: g}, true
		}
	}
}

// Release gives up the admission.  If this was the last admission and
// teardown has begun, the teardown waiter is woken; the decrement
// happens-before the wake.  Releasing an Admission twice panics.
func (a *Admission) Release() {
	g := a.g
	if g == nil {
		panic("ioq: Release of empty Admission")
	}
	a.g = nil
	w := g.word.Add(^uint64(gateAdmission - 1)) // release decrement
	if w >= 1<<63 {
		panic("ioq: Gate release without matching acquire")
	}
	if w == gateClosing {
		// Last admission out while draining: wake the closer.  Taking the
		// mutex here pairs with the closer's predicate check, so the wake
		// cannot be lost.
		g.mu.Lock()
		g.drained.Broadcast()
		g.mu.Unlock()
	}
}

// Close begins teardown: it sets the closing flag atomically with respect to
// concurrent Acquire, so after it returns no new admission can succeed.  It
// does not wait for outstanding admissions; see Wait.  Closing a Gate twice
// panics: teardown happens once per resource.
func (g *Gate) Close() {
	for {
		w := g.word.Load()
		if w&gateClosing != 0 {
			panic("ioq: Gate closed twice")
		}
		if g.word.CompareAndSwap(w, w|gateClosing) {
			return
		}
	}
}

// Wait blocks the caller until all outstanding admissions have been
// released.  It requires that Close has been called.  Wait is the sole
// blocking operation on a Gate.
func (g *Gate) Wait() {
	if g.word.Load()&gateClosing == 0 {
		panic("ioq: Gate.Wait before Close")
	}
	g.mu.Lock()
	for g.word.Load() != gateClosing {
		g.drained.Wait(&g.mu)
	}
	g.mu.Unlock()
}

// CloseAndWait performs teardown in one step: Close then Wait.  When it
// returns the gate is permanently Closed, every prior successful Acquire has
// had its matching Release, and the caller may destroy the guarded resource.
func (g *Gate) CloseAndWait() {
	g.Close()
	g.Wait()
}

// Closing returns whether teardown has begun.
func (g *Gate) Closing() bool {
	return g.word.Load()&gateClosing != 0
}

// Closed returns whether teardown has begun and no admission is outstanding.
func (g *Gate) Closed() bool {
	return g.word.Load() == gateClosing
}
