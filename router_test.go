// Copyright 2025 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ioq_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"v.io/x/ioq"
)

func TestRouterDispatchesByKind(t *testing.T) {
	var gotRead, gotWrite *ioq.Request
	router := ioq.NewRouter(
		ioq.WithHandler(ioq.KindRead, func(h ioq.Handle) ioq.Result {
			gotRead = h.Request()
			return h.Complete(ioq.Success, 1)
		}),
		ioq.WithHandler(ioq.KindWrite, func(h ioq.Handle) ioq.Result {
			gotWrite = h.Request()
			return h.Complete(ioq.Success, 2)
		}),
	)

	r, rec := newRequest(ioq.KindRead, nil)
	require.Equal(t, ioq.Success, router.Dispatch(ioq.NewHandle(r)))
	require.Same(t, r, gotRead)
	require.Nil(t, gotWrite)
	require.Equal(t, int32(1), rec.n.Load())

	w, wrec := newRequest(ioq.KindWrite, nil)
	require.Equal(t, ioq.Success, router.Dispatch(ioq.NewHandle(w)))
	require.Same(t, w, gotWrite)
	require.Equal(t, int32(2), wrec.n.Load())
}

func TestRouterDefaultNotSupported(t *testing.T) {
	router := ioq.NewRouter(
		ioq.WithHandler(ioq.KindRead, func(h ioq.Handle) ioq.Result {
			return h.Complete(ioq.Success, 0)
		}),
	)
	r, rec := newRequest(ioq.KindControl, nil)
	require.Equal(t, ioq.NotSupported, router.Dispatch(ioq.NewHandle(r)))
	require.Equal(t, int32(1), rec.count.Load())
	require.Equal(t, ioq.NotSupported, rec.result())

	u, urec := newRequest(ioq.KindUser+3, nil)
	require.Equal(t, ioq.NotSupported, router.Dispatch(ioq.NewHandle(u)))
	require.Equal(t, ioq.NotSupported, urec.result())
}

func TestRouterCustomDefaultForwards(t *testing.T) {
	// A pass-through configuration: unregistered kinds are forwarded
	// unchanged to a downstream dispatcher.
	downstream := ioq.NewRouter(
		ioq.WithHandler(ioq.KindControl, func(h ioq.Handle) ioq.Result {
			return h.Complete(ioq.Success, 99)
		}),
	)
	filter := ioq.NewRouter(
		ioq.WithDefault(func(h ioq.Handle) ioq.Result {
			return h.Forward(downstream)
		}),
	)

	r, rec := newRequest(ioq.KindControl, nil)
	require.Equal(t, ioq.Success, filter.Dispatch(ioq.NewHandle(r)))
	require.Equal(t, int32(1), rec.count.Load())
	require.Equal(t, int32(99), rec.n.Load())
}

func TestRouterPropagatesPending(t *testing.T) {
	q := ioq.NewQueue()
	router := ioq.NewRouter(
		ioq.WithHandler(ioq.KindRead, func(h ioq.Handle) ioq.Result {
			q.Insert(&h)
			return ioq.Pending
		}),
	)
	r, rec := newRequest(ioq.KindRead, nil)
	require.Equal(t, ioq.Pending, router.Dispatch(ioq.NewHandle(r)))
	require.Equal(t, int32(0), rec.count.Load(), "parked request is not yet complete")

	h, ok := q.RemoveNext(nil)
	require.True(t, ok)
	h.Complete(ioq.Success, 0)
	require.Equal(t, int32(1), rec.count.Load())
}
