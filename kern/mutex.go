// Copyright 2026 The rtkern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

// Recursive mutex with priority inheritance.
//
// Ownership hands off directly: give does not decrement the count when a
// waiter exists, the head waiter simply becomes the owner. Waiters queue
// ordered by priority. While a higher-priority task waits, the owner runs
// with the waiter's priority; the boost follows chains of owners blocked
// on further mutexes and is dropped when the mutex is released or the
// waiter leaves.

// mutexMaxCount bounds recursion; reaching it usually means a take/give
// imbalance in a loop.
const mutexMaxCount = 32767

// mucb is a mutex control block. node links it into the owning task's
// owned-mutex list while taken.
type mucb struct {
	node    listNode
	waiting listHead // ordered by priority, head = highest
	owner   *tcb
	index   uint16
	count   int16
	alloc   bool
}

func (m *mucb) handle() Handle { return makeHandle(KindMutex, m.index) }

func (k *Kernel) initMutexes() {
	k.mutexes = make([]mucb, k.cfg.MutexMax)
	k.freeMux = make([]*mucb, 0, k.cfg.MutexMax)
	for i := k.cfg.MutexMax - 1; i >= 0; i-- {
		m := &k.mutexes[i]
		m.index = uint16(i)
		m.node.owner = m
		k.freeMux = append(k.freeMux, m)
	}
}

func (k *Kernel) getMutex(id Handle) (*mucb, error) {
	if k.cfg.WithArgCheck {
		if id.Kind() != KindMutex || int(id.Index()) >= len(k.mutexes) {
			k.notify(NotifyError, id)
			return nil, ErrArg
		}
		m := &k.mutexes[id.Index()]
		k.criticalEnter()
		alloc := m.alloc
		k.criticalExit()
		if !alloc {
			k.notify(NotifyError, id)
			return nil, ErrArg
		}
		return m, nil
	}
	return &k.mutexes[id.Index()], nil
}

// MutexIsValid reports whether id currently names an allocated mutex.
func (k *Kernel) MutexIsValid(id Handle) bool {
	if id.Kind() != KindMutex || int(id.Index()) >= len(k.mutexes) {
		return false
	}
	k.criticalEnter()
	ok := k.mutexes[id.Index()].alloc
	k.criticalExit()
	return ok
}

// MutexCreate allocates a mutex from the pool. Not callable from an ISR.
func (k *Kernel) MutexCreate() (Handle, error) {
	k.criticalEnter()
	if k.inISR() {
		k.criticalExit()
		k.notify(NotifyError, 0)
		return 0, ErrNotAllowed
	}
	if len(k.freeMux) == 0 {
		k.criticalExit()
		k.notify(NotifyError, 0)
		return 0, ErrDepleted
	}
	m := k.freeMux[len(k.freeMux)-1]
	k.freeMux = k.freeMux[:len(k.freeMux)-1]
	m.count = 0
	m.owner = nil
	m.node.clear()
	m.waiting.init()
	m.alloc = true
	k.criticalExit()
	return m.handle(), nil
}

// MutexDelete returns an available mutex to the pool. A taken mutex
// cannot be deleted.
func (k *Kernel) MutexDelete(id Handle) error {
	m, err := k.getMutex(id)
	if err != nil {
		return err
	}
	k.criticalEnter()
	if k.inISR() {
		k.criticalExit()
		k.notify(NotifyError, id)
		return ErrNotAllowed
	}
	if m.count != 0 {
		k.criticalExit()
		k.notify(NotifyError, id)
		return ErrState
	}
	m.alloc = false
	k.freeMux = append(k.freeMux, m)
	k.criticalExit()
	return nil
}

//--------------------------------------------------------------------------
// Priority inheritance

// priorityWaitList returns the priority-ordered wait list t occupies, or
// nil when it is in none (FIFO queue wait lists included).
func (k *Kernel) priorityWaitList(t *tcb) *listHead {
	switch t.state {
	case StateMutexWait:
		return &t.wait.mutex.waiting
	case StateSemWait:
		return &t.wait.sem.waiting
	case StateQueueWait:
		q := t.wait.queue
		if q.flags&queueFlagPriority == 0 {
			return nil
		}
		if t.flags&flagQueuePut != 0 {
			return &q.putWait
		}
		return &q.getWait
	}
	return nil
}

// setPrio applies a new effective priority to t and fixes its position in
// whatever priority-sensitive list it occupies: the ready list, or a
// priority-ordered wait list. Reports whether a reschedule is required
// (t is ready and moved). Must be called inside the critical section.
func (k *Kernel) setPrio(t *tcb, prio uint8) bool {
	k.assertCritical()
	if t.state == StateReady {
		k.removeReady(t)
		t.prio = prio
		k.addReady(t)
		return true
	}
	if l := k.priorityWaitList(t); l != nil {
		t.prio = prio
		t.waitNode.value = uint32(prio)
		if !l.count1() {
			l.remove(&t.waitNode)
			l.addOrdered(&t.waitNode)
		}
		return false
	}
	// Delayed, suspended or otherwise unordered; the number alone
	// changes.
	t.prio = prio
	return false
}

// mutexPropagate pushes the priority of a task waiting on a mutex up the
// chain of owners: the owner inherits the waiter's priority, and when the
// owner itself waits on a mutex the boost continues with that mutex's
// owner. Terminates because priorities only move upward. Call only while
// t waits on a mutex, inside the critical section.
func (k *Kernel) mutexPropagate(t *tcb) {
	k.assertCritical()
	m := t.wait.mutex
	owner := m.owner
	for owner != nil && owner.prio < t.prio {
		k.trace.TaskPriority(owner.index, t.prio)
		chained := owner.state == StateMutexWait
		k.setPrio(owner, t.prio)
		if !chained {
			break
		}
		m = owner.wait.mutex
		owner = m.owner
	}
}

// mutexNewPrio recomputes t's effective priority: the maximum of its base
// priority and the head waiters of every mutex it owns. Reports whether a
// reschedule is required. Must be called inside the critical section.
func (k *Kernel) mutexNewPrio(t *tcb) bool {
	k.assertCritical()
	high := t.basePrio
	for n := t.mutexList.first(); !t.mutexList.isEnd(n); n = n.next {
		m := n.owner.(*mucb)
		if !m.waiting.isEmpty() {
			if p := uint8(m.waiting.first().value); p > high {
				high = p
			}
		}
	}
	if t.prio == high {
		return false
	}
	k.trace.TaskPriority(t.index, high)
	return k.setPrio(t, high)
}

//--------------------------------------------------------------------------

// MutexTake acquires the mutex, waiting up to timeout ticks (0 waits
// forever). The same owner may take recursively up to the recursion
// bound. Forbidden in an ISR; unconditional before Start.
func (k *Kernel) MutexTake(id Handle, timeout uint32) error {
	return k.mutexTake(id, timeout, false)
}

// MutexTryTake acquires the mutex only if that needs no wait.
func (k *Kernel) MutexTryTake(id Handle) error {
	return k.mutexTake(id, 0, true)
}

func (k *Kernel) mutexTake(id Handle, timeout uint32, try bool) error {
	m, err := k.getMutex(id)
	if err != nil {
		return err
	}

	k.enterTask()
	if k.inISR() {
		k.criticalExit()
		k.notify(NotifyError, id)
		return ErrNotAllowed
	}
	if !k.running {
		k.criticalExit()
		return nil // always granted while the kernel is stopped
	}
	cur := k.cur

	if m.count == 0 {
		m.count = 1
		m.owner = cur
		cur.mutexList.addHead(&m.node)
		k.trace.MutexTake(cur.index, m.index)
		k.criticalExit()
		return nil
	}

	if m.owner == cur {
		if m.count == mutexMaxCount {
			k.criticalExit()
			k.notify(NotifyError, id)
			return ErrFail
		}
		m.count++
		k.trace.MutexTake(cur.index, m.index)
		k.criticalExit()
		return nil
	}

	if try {
		k.criticalExit()
		return ErrWouldBlock
	}

	// Block. Raise the owner first if we outrank it.
	cur.wait.mutex = m
	if cur.prio > m.owner.prio {
		k.mutexPropagate(cur)
	}

	k.removeReady(cur)
	cur.state = StateMutexWait
	cur.flags &^= flagTimeout
	cur.waitNode.value = uint32(cur.prio)
	m.waiting.addOrdered(&cur.waitNode)
	k.addToDelayed(cur, timeout)
	k.trace.MutexWait(cur.index, m.index)
	k.criticalExit()

	k.schedule()

	k.criticalEnter()
	if cur.flags&flagTimeout != 0 {
		cur.flags &^= flagTimeout
		k.criticalExit()
		return ErrTimeout
	}
	// The giver handed the mutex off without decrementing the count:
	// we are the owner already, only our owned list needs the entry.
	cur.mutexList.addHead(&m.node)
	k.trace.MutexTake(cur.index, m.index)
	k.criticalExit()
	return nil
}

// MutexGive releases one level of ownership. When the outermost level is
// released and a waiter exists, the highest-priority waiter becomes the
// owner directly; any inherited priority of the giver is dropped first.
func (k *Kernel) MutexGive(id Handle) error {
	m, err := k.getMutex(id)
	if err != nil {
		return err
	}

	k.enterTask()
	if k.inISR() {
		k.criticalExit()
		k.notify(NotifyError, id)
		return ErrNotAllowed
	}
	if !k.running {
		k.criticalExit()
		return nil
	}
	cur := k.cur

	if m.count == 0 || m.owner != cur {
		k.criticalExit()
		k.notify(NotifyError, id)
		return ErrState
	}

	if m.count > 1 {
		m.count--
		k.trace.MutexGive(cur.index, m.index)
		k.criticalExit()
		return nil
	}

	k.trace.MutexGive(cur.index, m.index)
	cur.mutexList.remove(&m.node)
	request := k.mutexNewPrio(cur)

	if n := m.waiting.removeHead(); n != nil {
		// Hand off to the highest-priority waiter, count untouched.
		t := n.owner.(*tcb)
		t.wait.mutex = nil
		if t.node.inUse() {
			k.removeFromDelayed(&t.node)
		}
		request = k.tcbPutInList(t)
		m.owner = t
	} else {
		m.count--
		m.owner = nil
	}
	k.criticalExit()

	if request {
		k.schedule()
	}
	return nil
}
