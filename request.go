// Copyright 2025 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ioq manages the lifetime of asynchronous requests flowing through
// a device-like component that can be torn down while requests are still
// outstanding.  It provides the request Handle (exactly-once completion),
// the cancellable request Queue, the device admission Gate, and the dispatch
// Router.
//
// The package is written for hot paths: no operation blocks or allocates,
// with the single exception of Gate.Wait, which is the one legal blocking
// point and is invoked once per device during teardown.  Internal
// locks are short-critical-section spinlocks; completion callbacks are never
// invoked with a lock held.
package ioq

import (
	"sync/atomic"

	"v.io/x/ioq/ilist"
)

// A Request is one in-flight unit of work.  Requests are created by the
// origin of the work (a client, a test, a stress driver), handed to a
// dispatcher inside a Handle, and completed exactly once, either
// synchronously by a handler, later by a producer draining a queue, or by
// cancellation.
//
// The completion function and any OnComplete hooks must be in place before
// the request is dispatched; they are not synchronized against completion.
type Request struct {
	ilist.Entry[*Request]

	kind Kind
	tag  any
	data []byte

	// scratch carries handler-private progress across requeues, such as the
	// number of bytes a partially-satisfied write has consumed so far.
	scratch int

	done      func(Result, int)
	completed atomic.Bool

	// Cancellation state.  cancelled is the sticky "cancel requested" flag;
	// owner is the queue currently responsible for delivering the
	// cancellation, if any.  queued is guarded by the owner's lock.
	cancelled atomic.Bool
	owner     atomic.Pointer[Queue]
	queued    bool
}

// NewRequest returns a request of the given kind.  tag groups requests for
// filtered queue removal (for example a session identifier) and must be
// comparable; it may be nil.  data is the request's transfer buffer; it may
// be nil for kinds that carry none.  done, if non-nil, is invoked exactly
// once when the request completes, with the completion result and the
// transfer count.
func NewRequest(kind Kind, tag any, data []byte, done func(Result, int)) *Request {
	return &Request{kind: kind, tag: tag, data: data, done: done}
}

// Kind returns the request's kind.
func (r *Request) Kind() Kind { return r.kind }

// Tag returns the request's grouping tag.
func (r *Request) Tag() any { return r.tag }

// Data returns the request's transfer buffer.
func (r *Request) Data() []byte { return r.data }

// Scratch returns the handler-private progress word.
func (r *Request) Scratch() int { return r.scratch }

// SetScratch sets the handler-private progress word.  Only the handler that
// currently owns the request may call it.
func (r *Request) SetScratch(v int) { r.scratch = v }

// OnComplete registers fn to run when the request completes, after the
// request's completion function and any previously registered hooks.  It
// must be called before the request is dispatched or parked.
func (r *Request) OnComplete(fn func(Result, int)) {
	prev := r.done
	r.done = func(res Result, n int) {
		if prev != nil {
			prev(res, n)
		}
		fn(res, n)
	}
}

// Cancel requests cancellation of the request.  It may be called from any
// goroutine at any time, including while the request is being inserted into
// or removed from a queue; the queue's locking protocol guarantees the
// request is completed exactly once regardless.  If the request is not
// parked in a queue when the signal lands, the flag is remembered and
// honoured by the next insertion.  Cancel never blocks.
func (r *Request) Cancel() {
	r.cancelled.Store(true)
	if q := r.owner.Load(); q != nil {
		q.deliverCancel(r)
	}
}

// finish marks the request completed and delivers the result to its origin.
// Completing a request twice is a programmer error.
func (r *Request) finish(res Result, n int) Result {
	if r.completed.Swap(true) {
		panic("ioq: request completed twice")
	}
	if r.done != nil {
		r.done(res, n)
	}
	return res
}
