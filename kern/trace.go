// Copyright 2026 The rtkern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

// Tracer receives kernel trace events. Every significant state transition
// invokes a hook; the default tracer does nothing, so production builds pay
// only the call. Most hooks run inside the critical section (TaskCreated
// and TimerExpired run outside it); no hook may call back into the
// kernel. Package ktrace provides a structured-logging
// implementation.
type Tracer interface {
	TaskSwitch(from, to uint16)
	TaskCreated(task uint16)
	TaskDeleted(task uint16)
	TaskReady(task uint16)
	TaskDelayed(task uint16)
	TaskSuspended(task uint16)
	TaskResumed(task uint16)
	TaskPriority(task uint16, prio uint8)

	MutexTake(task, mutex uint16)
	MutexGive(task, mutex uint16)
	MutexWait(task, mutex uint16)

	SemTake(task, sem uint16)
	SemGive(task, sem uint16)
	SemWait(task, sem uint16)

	QueueGive(task, queue uint16)
	QueueTake(task, queue uint16)
	QueueWait(task, queue uint16)

	TimerExpired(timer uint16)
	Tick(count uint32)
	InterruptEnter()
	InterruptExit()
}

type nopTracer struct{}

func (nopTracer) TaskSwitch(from, to uint16)             {}
func (nopTracer) TaskCreated(task uint16)                {}
func (nopTracer) TaskDeleted(task uint16)                {}
func (nopTracer) TaskReady(task uint16)                  {}
func (nopTracer) TaskDelayed(task uint16)                {}
func (nopTracer) TaskSuspended(task uint16)              {}
func (nopTracer) TaskResumed(task uint16)                {}
func (nopTracer) TaskPriority(task uint16, prio uint8)   {}
func (nopTracer) MutexTake(task, mutex uint16)           {}
func (nopTracer) MutexGive(task, mutex uint16)           {}
func (nopTracer) MutexWait(task, mutex uint16)           {}
func (nopTracer) SemTake(task, sem uint16)               {}
func (nopTracer) SemGive(task, sem uint16)               {}
func (nopTracer) SemWait(task, sem uint16)               {}
func (nopTracer) QueueGive(task, queue uint16)           {}
func (nopTracer) QueueTake(task, queue uint16)           {}
func (nopTracer) QueueWait(task, queue uint16)           {}
func (nopTracer) TimerExpired(timer uint16)              {}
func (nopTracer) Tick(count uint32)                      {}
func (nopTracer) InterruptEnter()                        {}
func (nopTracer) InterruptExit()                         {}
