// Copyright 2025 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ioq

// A Handler processes one request, taking ownership of the handle: it must
// complete it, forward it, or park it in a queue before returning.  The
// returned result is propagated verbatim to the dispatcher's caller.
type Handler func(Handle) Result

// A Dispatcher accepts ownership of a request handle and routes it to
// whatever processes it.  Router implements Dispatcher; so do higher-level
// device types built on it.
type Dispatcher interface {
	Dispatch(Handle) Result
}

// A Router maps a request's kind to its handler.  The table is fixed at
// construction and the router itself performs no synchronization; handlers
// are responsible for admission-gate discipline.
type Router struct {
	handlers []Handler
	fallback Handler
}

// A RouterOpt configures a Router under construction.
type RouterOpt func(*Router)

// WithHandler registers h for requests of kind k.
func WithHandler(k Kind, h Handler) RouterOpt {
	return func(r *Router) {
		if n := int(k) + 1; n > len(r.handlers) {
			grown := make([]Handler, n)
			copy(grown, r.handlers)
			r.handlers = grown
		}
		r.handlers[k] = h
	}
}

// WithDefault replaces the fallback handler invoked for kinds with no
// registered handler.  The library default completes the request with
// NotSupported; pass-through components typically substitute a handler that
// forwards the request unchanged.
func WithDefault(h Handler) RouterOpt {
	return func(r *Router) {
		r.fallback = h
	}
}

// NewRouter returns a router configured by opts.
func NewRouter(opts ...RouterOpt) *Router {
	r := &Router{fallback: NotSupportedHandler}
	for _, o := range opts {
		o(r)
	}
	return r
}

// NotSupportedHandler completes the request with NotSupported.  It is the
// default fallback handler.
func NotSupportedHandler(h Handle) Result {
	return h.Complete(NotSupported, 0)
}

// Dispatch routes the request to the handler registered for its kind, or to
// the fallback handler, passing ownership of the handle along.
func (r *Router) Dispatch(h Handle) Result {
	k := h.Request().Kind()
	if int(k) < len(r.handlers) && r.handlers[k] != nil {
		return r.handlers[k](h)
	}
	return r.fallback(h)
}
