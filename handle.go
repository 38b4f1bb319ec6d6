// Copyright 2025 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ioq

// A Handle owns zero or one request.  It encodes the "must be completed or
// forwarded exactly once" discipline: Complete, Forward and Queue.Insert all
// consume the handle, leaving it empty, and any further use of an empty
// handle panics.  Pass a Handle by value and treat the passing as a move;
// the request-level completion flag backstops the discipline even through a
// stale copy.
type Handle struct {
	r *Request
}

// NewHandle returns a handle owning r.
func NewHandle(r *Request) Handle {
	return Handle{r: r}
}

// Empty returns whether the handle owns no request.
func (h *Handle) Empty() bool { return h.r == nil }

// Request returns the owned request without consuming the handle, for
// inspection by handlers.  The handle must be non-empty.
func (h *Handle) Request() *Request {
	if h.r == nil {
		panic("ioq: Request on empty Handle")
	}
	return h.r
}

// Attach gives the handle ownership of r.  The handle must be empty.
func (h *Handle) Attach(r *Request) {
	if h.r != nil {
		panic("ioq: Attach to non-empty Handle")
	}
	h.r = r
}

// Detach takes the owned request out of the handle, leaving it empty.  The
// handle must be non-empty.
func (h *Handle) Detach() *Request {
	if h.r == nil {
		panic("ioq: Detach from empty Handle")
	}
	r := h.r
	h.r = nil
	return r
}

// Complete consumes the handle, completing the owned request with the given
// result and transfer count, and returns the same result for convenient
// propagation.  The caller must own the handle exclusively.
func (h *Handle) Complete(res Result, n int) Result {
	return h.Detach().finish(res, n)
}

// Forward consumes the handle, handing the owned request to a downstream
// dispatcher, and returns the downstream result.
func (h *Handle) Forward(d Dispatcher) Result {
	return d.Dispatch(NewHandle(h.Detach()))
}
