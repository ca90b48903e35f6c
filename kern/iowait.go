// Copyright 2026 The rtkern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

// I/O driver wait: the bridge between interrupt handlers and tasks
// blocked on external events (receive data available, transfer complete,
// buffer space). A driver embeds one DriverDesc per wait condition; tasks
// block on it with IoWait and the driver's ISR releases them with
// IoResume.

// DriverDesc is a driver-side wait list descriptor. Zero value is not
// ready; call Init (or NewDriverDesc) first.
type DriverDesc struct {
	waiting listHead
}

// NewDriverDesc returns an initialized driver descriptor.
func NewDriverDesc() *DriverDesc {
	d := &DriverDesc{}
	d.Init()
	return d
}

// Init prepares the descriptor's wait list.
func (d *DriverDesc) Init() { d.waiting.init() }

// IoIsWaiting reports whether at least one task blocks on the
// descriptor.
func (k *Kernel) IoIsWaiting(d *DriverDesc) bool {
	k.criticalEnter()
	waiting := !d.waiting.isEmpty()
	k.criticalExit()
	return waiting
}

// IoWait blocks the running task on the driver's wait list, at the tail
// (FIFO) or ordered by priority, waiting up to timeout ticks (0 waits
// forever). Returns nil when the driver resumed the task, ErrTimeout
// when the deadline fired first.
func (k *Kernel) IoWait(d *DriverDesc, ordered bool, timeout uint32) error {
	k.enterTask()
	if k.inISR() {
		k.criticalExit()
		k.notify(NotifyError, 0)
		return ErrNotAllowed
	}
	cur := k.cur

	k.removeReady(cur)
	cur.state = StateIoWait
	cur.wait.io = d
	cur.flags &^= flagTimeout
	if ordered {
		cur.waitNode.value = uint32(cur.prio)
		d.waiting.addOrdered(&cur.waitNode)
	} else {
		d.waiting.addTail(&cur.waitNode)
	}
	k.addToDelayed(cur, timeout)
	k.criticalExit()

	k.schedule()

	k.criticalEnter()
	if cur.flags&flagTimeout != 0 {
		cur.flags &^= flagTimeout
		k.criticalExit()
		return ErrTimeout
	}
	k.criticalExit()
	return nil
}

// IoResume releases the task at the head of the driver's wait list and
// returns its handle; ok is false when nobody was waiting. Callable from
// an ISR.
func (k *Kernel) IoResume(d *DriverDesc) (Handle, bool) {
	k.enterTask()
	n := d.waiting.removeHead()
	if n == nil {
		k.criticalExit()
		return 0, false
	}
	t := n.owner.(*tcb)
	t.wait.io = nil
	if t.node.inUse() {
		k.removeFromDelayed(&t.node)
	}
	request := k.tcbPutInList(t)
	k.criticalExit()

	if request {
		k.schedule()
	}
	return t.handle(), true
}
