// Copyright 2026 The rtkern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

// Task signals: 32 per-task event bits. A task waits for any or all bits
// of a mask; senders set bits on the target, which latch until a wait
// consumes them. Pulse delivers without latching. A signal waiter sits
// only in the delayed list; there is no object wait list.

// sigSatisfied reports whether recv meets the wait condition.
func sigSatisfied(recv, want Signals, all bool) bool {
	if want == 0 {
		return false
	}
	if all {
		return recv&want == want
	}
	return recv&want != 0
}

// SignalWait blocks until the signals in mask are received: all of them
// when all is set, any one otherwise. Bits already pending satisfy the
// wait immediately. The satisfied bits are consumed and returned.
// Waiting up to timeout ticks (0 waits forever).
func (k *Kernel) SignalWait(mask Signals, all bool, timeout uint32) (Signals, error) {
	if mask == 0 {
		return 0, ErrArg
	}

	k.enterTask()
	if k.inISR() {
		k.criticalExit()
		k.notify(NotifyError, 0)
		return 0, ErrNotAllowed
	}
	cur := k.cur

	if sigSatisfied(cur.sigsRecv, mask, all) {
		got := cur.sigsRecv & mask
		cur.sigsRecv &^= got
		k.criticalExit()
		return got, nil
	}

	k.removeReady(cur)
	cur.state = StateSigWait
	cur.sigsWait = mask
	cur.flags &^= flagTimeout
	if all {
		cur.flags |= flagSignalAnd
	} else {
		cur.flags &^= flagSignalAnd
	}
	k.addToDelayed(cur, timeout)
	k.criticalExit()

	k.schedule()

	k.criticalEnter()
	cur.sigsWait = 0
	if cur.flags&flagTimeout != 0 {
		cur.flags &^= flagTimeout
		k.criticalExit()
		return 0, ErrTimeout
	}
	got := cur.wait.sigs
	cur.wait.sigs = 0
	k.criticalExit()
	return got, nil
}

// signalDeliver wakes t if the bits now pending satisfy its wait.
// Reports whether it woke, and whether a reschedule is needed. Must be
// called inside the critical section.
func (k *Kernel) signalDeliver(t *tcb) (woken, request bool) {
	if t.state != StateSigWait {
		return false, false
	}
	all := t.flags&flagSignalAnd != 0
	if !sigSatisfied(t.sigsRecv, t.sigsWait, all) {
		return false, false
	}
	got := t.sigsRecv & t.sigsWait
	t.sigsRecv &^= got
	t.wait.sigs = got
	_ = k.removeTaskFromLists(t)
	return true, k.tcbPutInList(t)
}

// SignalSend sets signal bits on a task. Bits not consumed by a pending
// wait latch until a later SignalWait. Callable from an ISR.
func (k *Kernel) SignalSend(id Handle, sigs Signals) error {
	if sigs == 0 {
		return ErrArg
	}
	t, err := k.getTcb(id)
	if err != nil {
		return err
	}

	k.enterTask()
	if t.state == StateNone {
		k.criticalExit()
		return ErrState
	}
	t.sigsRecv |= sigs
	_, request := k.signalDeliver(t)
	k.criticalExit()

	if request {
		k.schedule()
	}
	return nil
}

// SignalPulse delivers signal bits only to a wait in progress: bits that
// do not complete one are dropped instead of latching. Callable from an
// ISR.
func (k *Kernel) SignalPulse(id Handle, sigs Signals) error {
	if sigs == 0 {
		return ErrArg
	}
	t, err := k.getTcb(id)
	if err != nil {
		return err
	}

	k.enterTask()
	if t.state == StateNone {
		k.criticalExit()
		return ErrState
	}
	saved := t.sigsRecv
	t.sigsRecv |= sigs
	woken, request := k.signalDeliver(t)
	if !woken {
		// Nothing woke up; pulses do not latch.
		t.sigsRecv = saved
	}
	k.criticalExit()

	if request {
		k.schedule()
	}
	return nil
}
