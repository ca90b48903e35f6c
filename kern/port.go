// Copyright 2026 The rtkern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

// Port is the contract between the kernel core and the platform layer.
//
// On the target this is the board support package: tick source, deferred
// switch exception, cycle counter. On a host it is a simulation driven by a
// clock; see package hostbsp. The port delivers tick interrupts by calling
// IntEnter, Tick, IntExit on its own goroutine.
type Port interface {
	// Timestamp returns a monotonic time base for the CPU-usage and
	// critical-section statistics. The unit is the port's own; only
	// differences are meaningful.
	Timestamp() uint32

	// SetTickRate reprograms the tick source to hz ticks per second.
	SetTickRate(hz uint32) error

	// StackFrame lays down the initial frame on a new task's stack and
	// returns the resulting top-of-stack index. Returning from the first
	// switch into the task must begin executing its entry function.
	StackFrame(stack []uint32) uint32

	// MaxSleepTicks is the longest interval the sleep timer can be
	// programmed for (the hardware reload cap).
	MaxSleepTicks() uint32

	// Sleep programs the sleep timer for up to n ticks and waits for an
	// interrupt. It is called by the idle task outside the critical
	// section, only when TickStretch is enabled.
	//
	// It returns the number of ticks that elapsed, excluding the final
	// expiry tick, and whether the timer expired. On expiry the port
	// must NOT deliver the final tick itself: the kernel replays the
	// elapsed ticks and then runs the tick interrupt, so a wait due at
	// tick T fires at T exactly. On an early (non-timer) wakeup, fired
	// is false and elapsed counts the ticks actually slept.
	Sleep(n uint32) (elapsed uint32, fired bool)
}

// minStackWords is the smallest stack the kernel accepts: the port's
// initial frame plus the two guard words watched by the threshold check.
const minStackWords = 16
