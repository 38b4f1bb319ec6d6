// Copyright 2025 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package iodev builds admission-gated devices on top of the ioq core.  A
// Device couples one admission gate with a dispatch router: every dispatched
// request holds an admission until it completes, and Teardown refuses new
// work, cancels parked work, waits for the rest to drain and only then lets
// the owner destroy device state.
package iodev

import (
	"v.io/x/lib/vlog"

	"v.io/x/ioq"
)

// A Device is a lifetime-managed dispatch target.  Its gate guarantees the
// device's state outlives every request referencing it.
type Device struct {
	gate      ioq.Gate
	router    *ioq.Router
	onClosing func()
	onDestroy func()
}

// A DeviceOpt configures a Device under construction.
type DeviceOpt func(*Device)

// OnClosing registers fn to run during Teardown after the gate has stopped
// admitting new work but before it waits for outstanding admissions.  This
// is where a device cancels parked requests, whose completions release the
// admissions the wait needs.
func OnClosing(fn func()) DeviceOpt {
	return func(d *Device) { d.onClosing = fn }
}

// OnDestroy registers fn to run at the end of Teardown, once no request
// references the device.  Device state may be torn down there.
func OnDestroy(fn func()) DeviceOpt {
	return func(d *Device) { d.onDestroy = fn }
}

// NewDevice returns a device routing requests through router.
func NewDevice(router *ioq.Router, opts ...DeviceOpt) *Device {
	d := &Device{router: router}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Gate returns the device's admission gate, for handlers that need extra
// admissions (for example to hand work to a helper goroutine).
func (d *Device) Gate() *ioq.Gate { return &d.gate }

// Dispatch admits the request and routes it.  If the device is going away
// the request is completed with GoingAway immediately.  Otherwise the
// admission is tied to the request: it is released when the request
// completes, wherever and whenever that happens, so forgetting to release
// is not possible.
func (d *Device) Dispatch(h ioq.Handle) ioq.Result {
	adm, ok := d.gate.Acquire()
	if !ok {
		return h.Complete(ioq.GoingAway, 0)
	}
	h.Request().OnComplete(func(ioq.Result, int) {
		adm.Release()
	})
	return d.router.Dispatch(h)
}

// Teardown drains the device and runs the destroy hook.  After it returns
// no Dispatch succeeds and no request references the device.  Teardown must
// be called exactly once, from a context where blocking is legal.
func (d *Device) Teardown() {
	d.gate.Close()
	if d.onClosing != nil {
		d.onClosing()
	}
	d.gate.Wait()
	if d.onDestroy != nil {
		d.onDestroy()
	}
	vlog.VI(1).Infof("iodev: device torn down")
}
