// Copyright 2025 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package iodev_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"v.io/x/ioq"
	"v.io/x/ioq/iodev"
)

func TestPipeWriteThenRead(t *testing.T) {
	p := iodev.NewPipe(64)
	defer p.Teardown()

	w, wrec := newRequest(ioq.KindWrite, nil, []byte("hello"))
	require.Equal(t, ioq.Success, p.Dispatch(ioq.NewHandle(w)))
	require.Equal(t, int32(5), wrec.n.Load())

	buf := make([]byte, 8)
	r, rrec := newRequest(ioq.KindRead, nil, buf)
	require.Equal(t, ioq.Success, p.Dispatch(ioq.NewHandle(r)))
	require.Equal(t, int32(5), rrec.n.Load())
	require.Equal(t, []byte("hello"), buf[:5])
}

func TestPipeReadParksUntilWrite(t *testing.T) {
	p := iodev.NewPipe(64)
	defer p.Teardown()

	buf := make([]byte, 8)
	r, rrec := newRequest(ioq.KindRead, nil, buf)
	require.Equal(t, ioq.Pending, p.Dispatch(ioq.NewHandle(r)))
	require.Equal(t, int32(0), rrec.count.Load(), "read must park on an empty pipe")

	w, wrec := newRequest(ioq.KindWrite, nil, []byte("abc"))
	require.Equal(t, ioq.Success, p.Dispatch(ioq.NewHandle(w)))
	require.Equal(t, int32(3), wrec.n.Load())

	// The write's arrival completed the parked read.
	require.Equal(t, int32(1), rrec.count.Load())
	require.Equal(t, ioq.Success, rrec.result())
	require.Equal(t, []byte("abc"), buf[:3])
}

// TestPipePartialWriteDrains parks a write larger than the whole buffer and
// drains it with a sequence of small reads, checking that the write makes
// incremental progress and finally completes with its full length.
func TestPipePartialWriteDrains(t *testing.T) {
	p := iodev.NewPipe(4)
	defer p.Teardown()

	payload := []byte("0123456789")
	w, wrec := newRequest(ioq.KindWrite, nil, payload)
	require.Equal(t, ioq.Pending, p.Dispatch(ioq.NewHandle(w)))
	require.Equal(t, int32(0), wrec.count.Load(), "oversized write must park")

	var got []byte
	for len(got) < len(payload) {
		buf := make([]byte, 4)
		r, rrec := newRequest(ioq.KindRead, nil, buf)
		require.Equal(t, ioq.Success, p.Dispatch(ioq.NewHandle(r)))
		got = append(got, buf[:rrec.n.Load()]...)
	}
	require.Equal(t, payload, got)
	require.Equal(t, int32(1), wrec.count.Load())
	require.Equal(t, ioq.Success, wrec.result())
	require.Equal(t, int32(len(payload)), wrec.n.Load())
}

func TestPipeCleanupBySession(t *testing.T) {
	type session string
	s1, s2 := session("s1"), session("s2")

	p := iodev.NewPipe(64)
	defer p.Teardown()

	r1, rec1 := newRequest(ioq.KindRead, s1, make([]byte, 4))
	r2, rec2 := newRequest(ioq.KindRead, s2, make([]byte, 4))
	require.Equal(t, ioq.Pending, p.Dispatch(ioq.NewHandle(r1)))
	require.Equal(t, ioq.Pending, p.Dispatch(ioq.NewHandle(r2)))

	c, crec := newRequest(ioq.KindCleanup, s1, nil)
	require.Equal(t, ioq.Success, p.Dispatch(ioq.NewHandle(c)))
	require.Equal(t, int32(1), crec.count.Load())

	// Only s1's parked read was cancelled; s2's still waits for data.
	require.Equal(t, int32(1), rec1.count.Load())
	require.Equal(t, ioq.Cancelled, rec1.result())
	require.Equal(t, int32(0), rec2.count.Load())

	w, _ := newRequest(ioq.KindWrite, s2, []byte("ok"))
	require.Equal(t, ioq.Success, p.Dispatch(ioq.NewHandle(w)))
	require.Equal(t, int32(1), rec2.count.Load())
	require.Equal(t, ioq.Success, rec2.result())
}

func TestPipeCancelParkedRead(t *testing.T) {
	p := iodev.NewPipe(64)
	defer p.Teardown()

	r, rec := newRequest(ioq.KindRead, nil, make([]byte, 4))
	require.Equal(t, ioq.Pending, p.Dispatch(ioq.NewHandle(r)))

	r.Cancel()
	require.Equal(t, int32(1), rec.count.Load())
	require.Equal(t, ioq.Cancelled, rec.result())

	// Data written afterwards stays buffered for the next reader rather
	// than chasing the cancelled request.
	w, _ := newRequest(ioq.KindWrite, nil, []byte("xy"))
	require.Equal(t, ioq.Success, p.Dispatch(ioq.NewHandle(w)))
	buf := make([]byte, 4)
	r2, rec2 := newRequest(ioq.KindRead, nil, buf)
	require.Equal(t, ioq.Success, p.Dispatch(ioq.NewHandle(r2)))
	require.Equal(t, []byte("xy"), buf[:rec2.n.Load()])
}

func TestPipeTeardownCancelsParkedRead(t *testing.T) {
	p := iodev.NewPipe(4)

	r, rec := newRequest(ioq.KindRead, nil, make([]byte, 4))
	require.Equal(t, ioq.Pending, p.Dispatch(ioq.NewHandle(r)))

	p.Teardown()
	require.Equal(t, int32(1), rec.count.Load())
	require.Equal(t, ioq.Cancelled, rec.result())

	r2, rec2 := newRequest(ioq.KindRead, nil, make([]byte, 4))
	require.Equal(t, ioq.GoingAway, p.Dispatch(ioq.NewHandle(r2)))
	require.Equal(t, ioq.GoingAway, rec2.result())
}

func TestPipeTeardownReportsWriteProgress(t *testing.T) {
	p := iodev.NewPipe(4)

	// The first four bytes fit; the write parks with its progress recorded.
	w, rec := newRequest(ioq.KindWrite, nil, []byte("overflow"))
	require.Equal(t, ioq.Pending, p.Dispatch(ioq.NewHandle(w)))

	p.Teardown()
	require.Equal(t, int32(1), rec.count.Load())
	require.Equal(t, ioq.Cancelled, rec.result())
	require.Equal(t, int32(4), rec.n.Load(), "cancelled write reports the bytes it buffered")
}

func TestPipeOpenClose(t *testing.T) {
	p := iodev.NewPipe(64)
	defer p.Teardown()
	require.Zero(t, p.Opened())

	c1, _ := newRequest(ioq.KindCreate, "s1", nil)
	require.Equal(t, ioq.Success, p.Dispatch(ioq.NewHandle(c1)))
	c2, _ := newRequest(ioq.KindCreate, "s2", nil)
	require.Equal(t, ioq.Success, p.Dispatch(ioq.NewHandle(c2)))
	require.Equal(t, 2, p.Opened())

	cl, _ := newRequest(ioq.KindClose, "s1", nil)
	require.Equal(t, ioq.Success, p.Dispatch(ioq.NewHandle(cl)))
	require.Equal(t, 1, p.Opened())
}

// TestPipeConcurrentTransfer streams a payload through a small pipe with a
// writer and a reader running concurrently, each keeping one request in
// flight, and checks the bytes arrive intact and in order.
func TestPipeConcurrentTransfer(t *testing.T) {
	const total = 64 << 10
	const chunk = 97 // deliberately not a divisor of the buffer size

	p := iodev.NewPipe(256)
	defer p.Teardown()

	payload := make([]byte, total)
	for i := range payload {
		payload[i] = byte(i % 251)
	}

	var g errgroup.Group
	g.Go(func() error {
		for off := 0; off < total; off += chunk {
			end := min(off+chunk, total)
			done := make(chan struct{})
			w := ioq.NewRequest(ioq.KindWrite, nil, payload[off:end],
				func(ioq.Result, int) { close(done) })
			p.Dispatch(ioq.NewHandle(w))
			<-done
		}
		return nil
	})

	received := make([]byte, 0, total)
	g.Go(func() error {
		for len(received) < total {
			done := make(chan struct{})
			var got int
			buf := make([]byte, 113)
			r := ioq.NewRequest(ioq.KindRead, nil, buf,
				func(_ ioq.Result, n int) {
					got = n
					close(done)
				})
			p.Dispatch(ioq.NewHandle(r))
			<-done
			received = append(received, buf[:got]...)
		}
		return nil
	})

	require.NoError(t, g.Wait())
	require.True(t, bytes.Equal(payload, received), "payload must arrive intact and in order")
}
