// Copyright 2025 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ioq

// Result is the outcome of dispatching or completing a request.  Handlers
// propagate results verbatim to the dispatcher's caller; the core never acts
// on them itself.
type Result int32

const (
	// Success indicates the request completed successfully.
	Success Result = iota
	// Pending indicates the request was accepted and parked; it will be
	// completed later by a producer or by cancellation.
	Pending
	// Cancelled indicates the request was completed by a cancellation
	// signal before a producer got to it.
	Cancelled
	// ResourceExhausted indicates the request could not be accepted for
	// lack of buffer or queue space.
	ResourceExhausted
	// GoingAway indicates the target device is draining for teardown and
	// admits no new work.
	GoingAway
	// NotSupported indicates no handler is registered for the request's
	// kind.
	NotSupported
)

// IsError returns whether r represents a failure.  Success and Pending are
// not failures.
func (r Result) IsError() bool {
	return r != Success && r != Pending
}

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case Pending:
		return "pending"
	case Cancelled:
		return "cancelled"
	case ResourceExhausted:
		return "resource-exhausted"
	case GoingAway:
		return "going-away"
	case NotSupported:
		return "not-supported"
	}
	return "unknown"
}

// Kind selects the handler a request is dispatched to.  The built-in kinds
// mirror the operations of a simple device; users may define further kinds
// starting at KindUser.
type Kind uint8

const (
	// KindCreate opens a new session against a device.
	KindCreate Kind = iota
	// KindCleanup cancels all pending requests belonging to one session,
	// ahead of the session closing.
	KindCleanup
	// KindClose closes a session.
	KindClose
	// KindRead transfers data from the device into the request buffer.
	KindRead
	// KindWrite transfers the request buffer into the device.
	KindWrite
	// KindControl carries a device-specific control operation.
	KindControl

	// KindUser is the first kind available for user-defined request types.
	KindUser Kind = 32
)

func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "create"
	case KindCleanup:
		return "cleanup"
	case KindClose:
		return "close"
	case KindRead:
		return "read"
	case KindWrite:
		return "write"
	case KindControl:
		return "control"
	}
	return "user"
}
