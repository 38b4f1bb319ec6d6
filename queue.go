// Copyright 2025 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ioq

import "v.io/x/ioq/ilist"

// A CancelFunc completes a request that was detached from a queue by a
// cancellation signal.  It is invoked with the queue lock released and takes
// ownership of the handle.
type CancelFunc func(Handle)

// defaultCancel completes the request with Cancelled and no payload.
func defaultCancel(h Handle) {
	h.Complete(Cancelled, 0)
}

// store is the request-storage policy behind a Queue, selected at
// construction.  All methods are called with the queue lock held.
type store interface {
	// insert stores r.  Overfilling a bounded store is a caller
	// precondition violation, not a runtime error.
	insert(r *Request)
	// removeNext detaches and returns the first stored request matching
	// tag, or any request if tag is nil; it returns nil if none match.
	// Non-matching requests are left in place, in order.
	removeNext(tag any) *Request
	// remove detaches r if it is still stored here, reporting whether it
	// was.  Implementations must verify identity: storage may have been
	// reused since the caller last looked.
	remove(r *Request) bool
}

// listStore keeps pending requests in FIFO order on an intrusive list.
type listStore struct {
	pending ilist.List[*Request]
}

func (s *listStore) insert(r *Request) {
	s.pending.PushBack(r)
}

func (s *listStore) removeNext(tag any) *Request {
	for e := s.pending.Front(); e != nil; e = s.pending.Next(e) {
		if tag == nil || e.tag == tag {
			s.pending.Remove(e)
			return e
		}
	}
	return nil
}

func (s *listStore) remove(r *Request) bool {
	if !r.queued {
		return false
	}
	s.pending.Remove(r)
	return true
}

// slotStore holds at most one pending request.
type slotStore struct {
	r *Request
}

func (s *slotStore) insert(r *Request) {
	if s.r != nil {
		panic("ioq: insert into occupied slot queue")
	}
	s.r = r
}

func (s *slotStore) removeNext(tag any) *Request {
	r := s.r
	if r == nil || (tag != nil && r.tag != tag) {
		return nil
	}
	s.r = nil
	return r
}

func (s *slotStore) remove(r *Request) bool {
	// The slot may have been emptied and refilled since the canceller
	// looked; only a pointer match may be cancelled.
	if s.r != r {
		return false
	}
	s.r = nil
	return true
}

// A Queue parks pending requests until a producer drains them or a
// cancellation signal completes them.  The storage policy is fixed at
// construction: NewQueue keeps an unbounded FIFO, NewSlotQueue a single
// pending slot.  All operations are safe for concurrent use, never block
// (the internal lock is a spinlock) and never allocate.
//
// The queue does not own requests; it only arranges where handles currently
// live.  A request removed by cancellation is completed through the queue's
// cancel function, with the lock released first, so the completion path may
// itself take locks.
type Queue struct {
	mu       spinMu
	store    store
	onCancel CancelFunc
}

// NewQueue returns a queue holding pending requests in FIFO order, with the
// default cancellation policy of completing with Cancelled and no payload.
func NewQueue() *Queue {
	return NewQueueWithCancel(nil)
}

// NewQueueWithCancel is like NewQueue with an explicit cancellation policy.
// A nil fn selects the default.
func NewQueueWithCancel(fn CancelFunc) *Queue {
	if fn == nil {
		fn = defaultCancel
	}
	return &Queue{store: &listStore{}, onCancel: fn}
}

// NewSlotQueue returns a queue holding at most one pending request, with the
// default cancellation policy.  Inserting into an occupied slot is a caller
// precondition violation and panics.
func NewSlotQueue() *Queue {
	return NewSlotQueueWithCancel(nil)
}

// NewSlotQueueWithCancel is like NewSlotQueue with an explicit cancellation
// policy.  A nil fn selects the default.
func NewSlotQueueWithCancel(fn CancelFunc) *Queue {
	if fn == nil {
		fn = defaultCancel
	}
	return &Queue{store: &slotStore{}, onCancel: fn}
}

// Insert consumes the handle, parking its request in the queue.  If a
// cancellation signal arrived before or during the insertion it is honoured
// immediately after, so a cancelled request never lingers in the queue.
func (q *Queue) Insert(h *Handle) {
	r := h.Detach()
	q.mu.lock()
	r.owner.Store(q)
	r.queued = true
	q.store.insert(r)
	q.mu.unlock()
	if r.cancelled.Load() {
		q.deliverCancel(r)
	}
}

// RemoveNext detaches and returns the next pending request.  With a nil tag
// it returns the head of the queue; with a non-nil tag it scans past
// non-matching requests, leaving them in place and in order, and returns the
// first whose Tag equals tag.  The scan is O(queue depth).  The second
// return value is false if no request matched.
func (q *Queue) RemoveNext(tag any) (Handle, bool) {
	q.mu.lock()
	r := q.store.removeNext(tag)
	if r != nil {
		r.queued = false
		r.owner.Store(nil)
	}
	q.mu.unlock()
	if r == nil {
		return Handle{}, false
	}
	return NewHandle(r), true
}

// deliverCancel runs the two-phase cancellation protocol: detach under the
// lock, release the lock, and only then complete.  It is a no-op if r is no
// longer stored here, which resolves the race with a concurrent RemoveNext
// or with slot reuse to exactly one completion.
func (q *Queue) deliverCancel(r *Request) {
	q.mu.lock()
	ok := r.queued && r.owner.Load() == q && q.store.remove(r)
	if ok {
		r.queued = false
		r.owner.Store(nil)
	}
	q.mu.unlock()
	if !ok {
		return
	}
	q.onCancel(NewHandle(r))
}
