// Copyright 2025 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package iodev

import (
	"sync"
	"sync/atomic"

	"v.io/x/lib/vlog"

	"v.io/x/ioq"
)

// A pipeBuffer is a bounded byte queue.  Appends and consumes assume the
// caller holds the pipe's buffer lock.
type pipeBuffer struct {
	data []byte
	used int
}

func (b *pipeBuffer) free() int   { return len(b.data) - b.used }
func (b *pipeBuffer) size() int   { return b.used }
func (b *pipeBuffer) empty() bool { return b.used == 0 }

// append copies p into the buffer.  p must fit in the free space.
func (b *pipeBuffer) append(p []byte) {
	if b.used+len(p) > len(b.data) {
		panic("iodev: pipe buffer overflow")
	}
	copy(b.data[b.used:], p)
	b.used += len(p)
}

// consume copies up to len(p) buffered bytes into p and discards them,
// returning the number copied.
func (b *pipeBuffer) consume(p []byte) int {
	n := copy(p, b.data[:b.used])
	if n == b.used {
		b.used = 0
	} else {
		copy(b.data, b.data[n:b.used])
		b.used -= n
	}
	return n
}

// A Pipe is a buffered in-memory byte device.  Reads complete synchronously
// while data is buffered and otherwise park in a cancellable queue; writes
// complete synchronously while buffer space lasts and otherwise park with
// their progress recorded, draining as readers catch up.  A request's Tag
// identifies its session: Cleanup cancels all of one session's parked
// requests, and Teardown cancels everything before the device goes away.
type Pipe struct {
	dev  *Device
	inQ  *ioq.Queue // parked reads
	outQ *ioq.Queue // parked writes

	mu   sync.Mutex // guards buf
	buf  pipeBuffer
	open atomic.Int32
}

// NewPipe returns a pipe buffering at most size bytes.
func NewPipe(size int) *Pipe {
	p := &Pipe{
		inQ:  ioq.NewQueue(),
		outQ: ioq.NewQueue(),
	}
	p.buf.data = make([]byte, size)
	p.dev = NewDevice(ioq.NewRouter(
		ioq.WithHandler(ioq.KindCreate, p.create),
		ioq.WithHandler(ioq.KindClose, p.closeHandle),
		ioq.WithHandler(ioq.KindCleanup, p.cleanup),
		ioq.WithHandler(ioq.KindRead, p.read),
		ioq.WithHandler(ioq.KindWrite, p.write),
	), OnClosing(p.drainAll))
	return p
}

// Dispatch admits the request into the pipe and routes it.
func (p *Pipe) Dispatch(h ioq.Handle) ioq.Result {
	return p.dev.Dispatch(h)
}

// Opened returns the number of sessions currently open.
func (p *Pipe) Opened() int {
	return int(p.open.Load())
}

// Teardown cancels all parked requests, waits for in-flight requests to
// complete and shuts the pipe down.  Call exactly once.
func (p *Pipe) Teardown() {
	p.dev.Teardown()
}

func (p *Pipe) create(h ioq.Handle) ioq.Result {
	p.open.Add(1)
	return h.Complete(ioq.Success, 0)
}

func (p *Pipe) closeHandle(h ioq.Handle) ioq.Result {
	p.open.Add(-1)
	return h.Complete(ioq.Success, 0)
}

// cleanup cancels every parked request belonging to the request's session,
// in arrival order, leaving other sessions' requests untouched.
func (p *Pipe) cleanup(h ioq.Handle) ioq.Result {
	tag := h.Request().Tag()
	for {
		pending, ok := p.inQ.RemoveNext(tag)
		if !ok {
			break
		}
		pending.Complete(ioq.Cancelled, 0)
	}
	for {
		pending, ok := p.outQ.RemoveNext(tag)
		if !ok {
			break
		}
		pending.Complete(ioq.Cancelled, pending.Request().Scratch())
	}
	vlog.VI(2).Infof("iodev: pipe cleanup for session %v", tag)
	return h.Complete(ioq.Success, 0)
}

// drainAll cancels every parked request; runs during Teardown after the
// gate has stopped admitting new work.
func (p *Pipe) drainAll() {
	for {
		pending, ok := p.inQ.RemoveNext(nil)
		if !ok {
			break
		}
		pending.Complete(ioq.Cancelled, 0)
	}
	for {
		pending, ok := p.outQ.RemoveNext(nil)
		if !ok {
			break
		}
		pending.Complete(ioq.Cancelled, pending.Request().Scratch())
	}
}

// read satisfies the request from the buffer when it can, otherwise parks
// it.  Either way it then gives parked writes a chance to refill the space
// it just made.
func (p *Pipe) read(h ioq.Handle) ioq.Result {
	r := h.Request()
	var res ioq.Result
	p.mu.Lock()
	if !p.buf.empty() {
		n := p.buf.consume(r.Data())
		// Never complete while holding the buffer lock.
		p.mu.Unlock()
		res = h.Complete(ioq.Success, n)
	} else {
		p.mu.Unlock()
		p.inQ.Insert(&h)
		res = ioq.Pending
	}
	p.processPendingWrites()
	return res
}

// write copies the request's data into the buffer.  A write that does not
// fit parks with its progress in the request's scratch word and finishes as
// readers drain the buffer.
func (p *Pipe) write(h ioq.Handle) ioq.Result {
	r := h.Request()
	data := r.Data()
	var res ioq.Result
	p.mu.Lock()
	if p.buf.free() >= len(data) {
		p.buf.append(data)
		p.mu.Unlock()
		res = h.Complete(ioq.Success, len(data))
	} else {
		taken := p.buf.free()
		p.buf.append(data[:taken])
		p.mu.Unlock()
		r.SetScratch(taken)
		p.outQ.Insert(&h)
		res = ioq.Pending
	}
	p.processPendingReads()
	return res
}

// processPendingReads completes parked reads while buffered data lasts.  If
// any read consumed data, parked writes get a chance at the freed space.
func (p *Pipe) processPendingReads() {
	progressed := false
	for {
		pending, ok := p.inQ.RemoveNext(nil)
		if !ok {
			break
		}
		r := pending.Request()
		p.mu.Lock()
		if p.buf.empty() {
			p.mu.Unlock()
			// Nothing to read; put it back and stop.
			p.inQ.Insert(&pending)
			break
		}
		n := p.buf.consume(r.Data())
		p.mu.Unlock()
		progressed = true
		pending.Complete(ioq.Success, n)
	}
	if progressed {
		p.processPendingWrites()
	}
}

// processPendingWrites feeds parked writes into the buffer while space
// lasts.  If the buffer grew, parked reads get a chance at the new data.
func (p *Pipe) processPendingWrites() {
	progressed := false
	for {
		pending, ok := p.outQ.RemoveNext(nil)
		if !ok {
			break
		}
		r := pending.Request()
		taken := r.Scratch()
		remainder := r.Data()[taken:]
		p.mu.Lock()
		free := p.buf.free()
		if free == 0 {
			p.mu.Unlock()
			p.outQ.Insert(&pending)
			break
		}
		n := min(free, len(remainder))
		p.buf.append(remainder[:n])
		p.mu.Unlock()
		progressed = true
		if n == len(remainder) {
			pending.Complete(ioq.Success, taken+n)
		} else {
			r.SetScratch(taken + n)
			p.outQ.Insert(&pending)
			break
		}
	}
	if progressed {
		p.processPendingReads()
	}
}
