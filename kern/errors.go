// Copyright 2026 The rtkern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

// kernError is an error string known at compile time. All kernel entry
// points return one of the sentinel values below (or nil); callers compare
// with errors.Is, which reduces to equality for these constants.
type kernError string

func (e kernError) Error() string { return string(e) }

const (
	// ErrArg reports a bad handle or parameter.
	ErrArg = kernError("kern: invalid argument or handle")

	// ErrDepleted reports an empty object pool.
	ErrDepleted = kernError("kern: object pool depleted")

	// ErrTimeout reports that a wait ended because its deadline fired.
	// The object was not acquired.
	ErrTimeout = kernError("kern: timeout")

	// ErrWouldBlock reports that a non-blocking attempt found the object
	// unavailable.
	ErrWouldBlock = kernError("kern: operation would block")

	// ErrFlush reports that a waiter was released by a flush or a delete
	// of the object it was blocked on. The object was not acquired.
	ErrFlush = kernError("kern: unblocked by flush")

	// ErrState reports an operation that is illegal in the object's
	// current state.
	ErrState = kernError("kern: invalid state for operation")

	// ErrNotAllowed reports a call that is forbidden in the current
	// execution context (typically a blocking call from an ISR).
	ErrNotAllowed = kernError("kern: not allowed in this context")

	// ErrMemory reports an allocation failure.
	ErrMemory = kernError("kern: out of memory")

	// ErrFail is the generic failure code.
	ErrFail = kernError("kern: failure")
)

// NotifyEvent identifies an asynchronous condition reported through the
// user notification callback. These conditions are not attributable to a
// single call site, so they do not surface as return values.
type NotifyEvent uint8

const (
	// NotifyStackOverflow: a task's stack pointer crossed the stack
	// bottom. Reported once per task.
	NotifyStackOverflow NotifyEvent = iota + 1

	// NotifyStackThreshold: the guard words near a task's stack bottom
	// were altered. Reported once per task.
	NotifyStackThreshold

	// NotifyError: a kernel call detected misuse (bad handle, double
	// give, forbidden context) and is about to return an error to the
	// caller.
	NotifyError
)

// NotifyFunc receives asynchronous kernel notifications. arg is the handle
// of the object involved when one exists, 0 otherwise. The default is a
// no-op; the application overrides it through Config.Notify.
type NotifyFunc func(event NotifyEvent, arg Handle)

func nopNotify(NotifyEvent, Handle) {}

// throw reports an unrecoverable kernel invariant violation.
func (k *Kernel) throw(s string) {
	panic("kern: " + s)
}
