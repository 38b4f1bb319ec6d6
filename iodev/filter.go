// Copyright 2025 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package iodev

import (
	"v.io/x/ioq"
)

// A Filter is a pass-through device sitting above a downstream dispatcher.
// Requests it has no handler for are forwarded unchanged, under the
// filter's own admission, so the filter cannot be destroyed while a request
// it passed down is still being dispatched.
type Filter struct {
	dev  *Device
	next ioq.Dispatcher
}

// NewFilter returns a filter forwarding to next.  opts may register
// handlers for the kinds the filter intercepts; everything else falls
// through to the forwarding default.
func NewFilter(next ioq.Dispatcher, opts ...ioq.RouterOpt) *Filter {
	f := &Filter{next: next}
	opts = append(opts, ioq.WithDefault(f.forward))
	f.dev = NewDevice(ioq.NewRouter(opts...))
	return f
}

// forward hands the request to the downstream dispatcher unchanged.
func (f *Filter) forward(h ioq.Handle) ioq.Result {
	return h.Forward(f.next)
}

// Dispatch admits the request into the filter and routes it.
func (f *Filter) Dispatch(h ioq.Handle) ioq.Result {
	return f.dev.Dispatch(h)
}

// Teardown drains the filter and detaches it from the downstream
// dispatcher.  The downstream device is not torn down; it has its own gate.
func (f *Filter) Teardown() {
	f.dev.Teardown()
	f.next = nil
}
