// Copyright 2026 The rtkern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

import "runtime"

// Scheduling and the host context switch.
//
// schedule runs in task context whenever the ready set may have changed.
// It picks the highest-priority ready task and, if it differs from the
// running one, hands the CPU over: the chosen task's goroutine is started
// or unparked, and the calling goroutine parks on its own TCB until it is
// switched in again. The kernel lock is dropped across the park, exactly
// as the target drops the interrupt mask across the switch exception.
//
// Interrupt context never switches directly: IntExit pends the switch and
// the preempted task performs it at its next kernel entry (enterTask).

// enterTask is the prologue of every task-context entry point: it takes
// the critical section and consumes a switch pended by interrupt context.
// The caller must be the running task's goroutine.
func (k *Kernel) enterTask() {
	k.criticalEnter()
	k.consumePend()
}

func (k *Kernel) consumePend() {
	if k.pendSwitch && k.running && k.isrNest == 0 && !k.halted {
		k.pendSwitch = false
		k.next = k.readyFirst(k.highestPrio())
		if k.next != k.cur {
			k.switchNow()
		}
	}
}

// schedule picks the next runnable task and switches to it if needed.
// No-op before Start and in interrupt context (IntExit pends instead).
func (k *Kernel) schedule() {
	k.criticalEnter()
	if k.running && k.isrNest == 0 && !k.halted {
		k.pendSwitch = false
		k.next = k.readyFirst(k.highestPrio())
		if k.next != k.cur {
			k.switchNow()
		}
	}
	k.criticalExit()
}

// switchNow performs the context switch to k.next. Called with the
// critical section held by the goroutine of k.cur; returns with it held,
// running as k.cur again. If the current task deleted itself the calling
// goroutine does not return.
func (k *Kernel) switchNow() {
	k.assertCritical()
	prev := k.cur
	next := k.next
	if next == prev || k.halted {
		return
	}

	k.checkStack(prev)
	if k.cfg.WithTaskStat {
		now := k.port.Timestamp()
		d := now - k.tsSwitch
		prev.cpuUsage += d
		k.cpuUsage += d
		k.tsSwitch = now
	}
	k.trace.TaskSwitch(prev.index, next.index)

	k.cur = next
	k.resume(next)

	dead := prev.state == StateNone
	gen := prev.gen

	// Drop the interrupt mask across the hand-off, restoring the nesting
	// level when we are switched back in.
	saved := k.critNest
	k.critNest = 0
	k.cs.Unlock()

	if dead {
		// Self-deleted: the stack is still in use until this goroutine
		// dies, so the TCB was left on the zombie list for the idle
		// task.
		runtime.Goexit()
	}

	<-prev.park

	k.cs.Lock()
	k.critNest = saved
	if k.cfg.WithCriticalStat {
		k.tsCritical = k.port.Timestamp()
	}
	if k.halted || prev.gen != gen || prev.state == StateNone {
		// Halted, or the task was deleted while parked.
		k.critNest = 0
		k.cs.Unlock()
		runtime.Goexit()
	}
}

// resume makes t's goroutine runnable: spawned on the first switch-in,
// unparked afterwards. The park channel is buffered so the signal latches
// even if the goroutine has not reached its park yet.
func (k *Kernel) resume(t *tcb) {
	k.assertCritical()
	if !t.started {
		t.started = true
		go k.taskRun(t)
		return
	}
	t.wakeGoroutine()
}

func (t *tcb) wakeGoroutine() {
	select {
	case t.park <- struct{}{}:
	default:
	}
}

// taskRun is the goroutine body of every task: run the entry function,
// then delete the task (the fall-through return address of the initial
// stack frame on the target).
func (k *Kernel) taskRun(t *tcb) {
	t.entry(t.arg)
	_ = k.TaskDelete(SelfTask) // does not return on success
	runtime.Goexit()
}

// checkStack runs the outgoing task's stack checks: overflow first, then
// the two guard words above the stack bottom. Each condition notifies only
// once per task.
func (k *Kernel) checkStack(t *tcb) {
	if t.flags&FlagStackCheck == 0 {
		return
	}
	if t.sp == 0 || t.sp > uint32(len(t.stack)) {
		if t.flags&flagStackOvfl == 0 {
			t.flags |= flagStackOvfl
			k.notify(NotifyStackOverflow, t.handle())
		}
		return
	}
	if t.stack[7] != stackPattern || t.stack[8] != stackPattern {
		if t.flags&flagStackThr == 0 {
			t.flags |= flagStackThr
			k.notify(NotifyStackThreshold, t.handle())
		}
	}
}

// tcbPutInList moves an awakened task to the ready list, or to the
// suspended list when suspension was requested while it was blocked.
// Reports whether a reschedule is needed (the task outranks the current
// one). Must be called inside the critical section.
func (k *Kernel) tcbPutInList(t *tcb) bool {
	k.assertCritical()
	if t.flags&flagSuspendReq != 0 {
		t.flags &^= flagSuspendReq
		t.state = StateSuspended
		k.suspended.addHead(&t.node)
		k.trace.TaskSuspended(t.index)
		return false
	}
	k.addReady(t)
	k.trace.TaskReady(t.index)
	return t.prio > k.cur.prio
}

// removeTaskFromLists unlinks a delayed or blocked task from the delayed
// list and from the wait list its state designates. Ready and suspended
// tasks are not handled here. For a mutex waiter the owner's inherited
// priority is recomputed when the departing waiter was the source of it.
func (k *Kernel) removeTaskFromLists(t *tcb) error {
	k.assertCritical()
	if t.node.inUse() {
		k.removeFromDelayed(&t.node)
	}

	switch t.state {
	case StateDelayed, StateSigWait:
		// Only the delayed list.
	case StateQueueWait:
		q := t.wait.queue
		if t.flags&flagQueuePut != 0 {
			q.putWait.remove(&t.waitNode)
			t.flags &^= flagQueuePut
		} else {
			q.getWait.remove(&t.waitNode)
		}
		t.wait.queue = nil
	case StateMutexWait:
		m := t.wait.mutex
		owner := m.owner
		m.waiting.remove(&t.waitNode)
		// The departing waiter may have been the one the owner
		// inherited its priority from.
		if owner != nil && owner.prio == t.prio && owner.prio != owner.basePrio {
			k.mutexNewPrio(owner)
		}
		t.wait.mutex = nil
	case StateSemWait:
		t.wait.sem.waiting.remove(&t.waitNode)
		t.wait.sem = nil
	case StateIoWait:
		t.wait.io.waiting.remove(&t.waitNode)
		t.wait.io = nil
	default:
		return ErrState
	}
	return nil
}

// idleEntry is the idle task: reclaim zombies, honour pended switches,
// then sleep through the port when tick stretching is enabled.
func (k *Kernel) idleEntry(any) {
	for {
		k.taskFreeZombies()

		k.enterTask()
		halted := k.halted
		k.criticalExit()
		if halted {
			runtime.Goexit()
		}

		if k.cfg.TickStretch {
			k.tickStretch()
		} else {
			runtime.Gosched()
		}
	}
}
