// Copyright 2026 The rtkern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

// Task lifecycle: create, delete, delay, suspend, resume, yield, wakeup,
// priorities, diagnostics.

// getTcb resolves a task handle. SelfTask resolves to the running task.
func (k *Kernel) getTcb(id Handle) (*tcb, error) {
	if id == SelfTask {
		return k.cur, nil
	}
	if k.cfg.WithArgCheck {
		if id.Kind() != KindTask || int(id.Index()) >= len(k.tcbs) {
			k.notify(NotifyError, id)
			return nil, ErrArg
		}
		t := &k.tcbs[id.Index()]
		k.criticalEnter()
		free := t.state == StateNone
		k.criticalExit()
		if free {
			return nil, ErrArg // free, or being deleted
		}
		return t, nil
	}
	return &k.tcbs[id.Index()], nil
}

// TaskIsValid reports whether id currently names an allocated task.
func (k *Kernel) TaskIsValid(id Handle) bool {
	if id.Kind() != KindTask || int(id.Index()) >= len(k.tcbs) {
		return false
	}
	k.criticalEnter()
	ok := k.tcbs[id.Index()].state != StateNone
	k.criticalExit()
	return ok
}

func defaultTaskName(index uint16) string {
	return string([]byte{'t', '_', byte('0' + index/10%10), byte('0' + index%10)})
}

// TaskCreate allocates a TCB from the pool and makes the task ready (or
// suspended when FlagSuspended is set). Priority 0 is reserved for the
// first-created task, the idle task. A nil stack asks the kernel to own
// one of stackSize words; a supplied stack's length is its size. With
// FlagStackCheck the stack is pattern-filled for the switch-time checks.
func (k *Kernel) TaskCreate(prio uint8, name string, entry TaskFunc, arg any,
	stack []uint32, stackSize int, flags uint16) (Handle, error) {

	// A zombie freed here can be reused immediately.
	k.taskFreeZombies()

	if entry == nil || int(prio) >= k.cfg.PrioCount {
		k.notify(NotifyError, 0)
		return 0, ErrArg
	}
	if stack != nil {
		stackSize = len(stack)
	}
	if stackSize < minStackWords {
		k.notify(NotifyError, 0)
		return 0, ErrArg
	}

	k.criticalEnter()
	if prio == 0 {
		// Only the very first task (TCB 0) may take priority 0.
		if len(k.freeTCB) == 0 || k.freeTCB[len(k.freeTCB)-1] != &k.tcbs[0] {
			k.criticalExit()
			k.notify(NotifyError, 0)
			return 0, ErrArg
		}
	}
	if len(k.freeTCB) == 0 {
		k.criticalExit()
		k.notify(NotifyError, 0)
		return 0, ErrDepleted
	}
	t := k.freeTCB[len(k.freeTCB)-1]
	k.freeTCB = k.freeTCB[:len(k.freeTCB)-1]
	k.criticalExit()

	t.mutexList.init()
	t.prio = prio
	t.basePrio = prio
	t.flags = flags & flagUserMask
	t.cpuUsage = 0
	t.sigsWait = 0
	t.sigsRecv = 0
	t.wait = waitRef{}
	t.entry = entry
	t.arg = arg
	t.park = make(chan struct{}, 1)
	t.started = false
	t.gen++

	if stack == nil {
		stack = make([]uint32, stackSize)
		t.flags |= flagKernelStack
	}
	t.stack = stack
	if t.flags&FlagStackCheck != 0 {
		for i := range t.stack {
			t.stack[i] = stackPattern
		}
	}
	t.sp = k.port.StackFrame(t.stack)

	if name == "" {
		name = defaultTaskName(t.index)
	}
	t.name = name

	k.trace.TaskCreated(t.index)

	k.criticalEnter()
	if flags&FlagSuspended != 0 {
		t.state = StateSuspended
		k.suspended.addHead(&t.node)
	} else {
		k.addReady(t)
	}
	k.criticalExit()

	if flags&FlagSuspended == 0 {
		k.schedule()
	}
	return t.handle(), nil
}

// freeTaskStack releases a deleted task's stack. A kernel-owned stack is
// simply dropped; an application-owned one goes through the release
// callback, whose refusal defers the TCB to the zombie list.
func (k *Kernel) freeTaskStack(t *tcb) error {
	if t.flags&flagKernelStack != 0 {
		t.stack = nil
		return nil
	}
	if k.cfg.ReleaseStack != nil {
		if err := k.cfg.ReleaseStack(t.stack); err != nil {
			return ErrFail
		}
	}
	t.stack = nil
	return nil
}

// taskFreeZombies drains the deleted-tasks list: release each zombie's
// stack and return the TCB to the free pool. Runs in the idle task and at
// task creation. Bounded per call; a zombie whose stack release is
// refused goes back to the tail and is not retried before the next pass.
func (k *Kernel) taskFreeZombies() {
	var unreleased *tcb

	for i := 0; i < 4; i++ {
		k.criticalEnter()
		n := k.deleted.removeHead()
		if n == nil {
			k.criticalExit()
			break
		}
		t := n.owner.(*tcb)
		if t == unreleased {
			// Already refused once in this pass; put it back and
			// stop.
			k.deleted.addHead(&t.node)
			k.criticalExit()
			break
		}
		k.criticalExit()

		err := k.freeTaskStack(t)

		k.criticalEnter()
		if err != nil {
			k.deleted.addTail(&t.node)
			if unreleased == nil {
				unreleased = t
			}
		} else {
			k.freeTCB = append(k.freeTCB, t)
		}
		k.criticalExit()
	}
}

// TaskDelete removes a task. Deleting self never returns: the TCB joins
// the zombie list (the stack is still in use) and the idle task reclaims
// it. Deleting another task releases its stack immediately when possible.
// The idle task cannot be deleted.
func (k *Kernel) TaskDelete(id Handle) error {
	t, err := k.getTcb(id)
	if err != nil {
		return err
	}
	if t.basePrio == 0 {
		k.notify(NotifyError, t.handle())
		return ErrArg
	}

	k.enterTask()

	k.trace.TaskDeleted(t.index)

	switch t.state {
	case StateNone:
		k.criticalExit()
		return ErrState
	case StateReady:
		k.removeReady(t)
	case StateSuspended:
		k.suspended.remove(&t.node)
	default:
		_ = k.removeTaskFromLists(t)
	}

	t.state = StateNone
	t.gen++

	if t == k.cur {
		// Self-delete: the stack is still ours; delegate disposal and
		// switch away for good.
		k.deleted.addTail(&t.node)
		k.criticalExit()
		k.schedule() // does not return
		return nil
	}

	k.criticalExit()

	// Free the stack outside the critical section; the release callback
	// may be slow.
	err = k.freeTaskStack(t)

	k.criticalEnter()
	if err != nil {
		k.deleted.addTail(&t.node)
	} else {
		k.freeTCB = append(k.freeTCB, t)
	}
	if t.started {
		// Let the victim's parked goroutine notice and exit.
		t.wakeGoroutine()
	}
	k.criticalExit()
	return nil
}

// TaskYield rotates the running task to the tail of its priority level.
// A no-op unless another ready task shares the priority.
func (k *Kernel) TaskYield() error {
	k.enterTask()
	if k.inISR() {
		k.criticalExit()
		k.notify(NotifyError, 0)
		return ErrNotAllowed
	}
	rotate := !k.ready[k.cur.prio].count1()
	if rotate {
		cur := k.cur
		k.removeReady(cur)
		k.addReady(cur)
	}
	k.criticalExit()

	if rotate {
		k.schedule()
	}
	return nil
}

// TaskDelay blocks the running task for the given number of ticks.
// Infinite delays only end through TaskWakeUp. A delay of 0
// returns immediately.
func (k *Kernel) TaskDelay(ticks uint32) error {
	if ticks == 0 {
		return nil
	}
	k.enterTask()
	if k.inISR() {
		k.criticalExit()
		k.notify(NotifyError, 0)
		return ErrNotAllowed
	}
	cur := k.cur
	k.removeReady(cur)
	cur.state = StateDelayed
	k.addToDelayed(cur, ticks)
	k.trace.TaskDelayed(cur.index)
	k.criticalExit()

	k.schedule()

	k.criticalEnter()
	k.cur.flags &^= flagTimeout
	k.criticalExit()
	return nil
}

// TaskWakeUp forces a delayed or blocked task out of its wait lists, as
// if its timeout had fired. Callable from an ISR.
func (k *Kernel) TaskWakeUp(id Handle) error {
	t, err := k.getTcb(id)
	if err != nil {
		return err
	}

	k.enterTask()
	if t.state == StateReady || t.state == StateSuspended || t.state == StateNone {
		k.criticalExit()
		return ErrState
	}
	_ = k.removeTaskFromLists(t)
	t.flags |= flagTimeout
	request := k.tcbPutInList(t)
	k.criticalExit()

	if request {
		k.schedule()
	}
	return nil
}

// TaskSuspend suspends a task. A ready task moves to the suspended list
// at once; a blocked or delayed one is marked and will suspend instead of
// becoming ready at its next wakeup. Suspension does not release any
// synchronization object the task holds.
func (k *Kernel) TaskSuspend(id Handle) error {
	t, err := k.getTcb(id)
	if err != nil {
		return err
	}

	k.enterTask()
	if t.state == StateReady {
		k.removeReady(t)
		t.state = StateSuspended
		k.suspended.addHead(&t.node)
		k.trace.TaskSuspended(t.index)
	} else {
		t.flags |= flagSuspendReq
	}
	k.criticalExit()

	if t == k.cur {
		k.schedule()
	}
	return nil
}

// TaskResume undoes a suspension: a suspended task becomes ready; a
// merely marked one has the mark cleared.
func (k *Kernel) TaskResume(id Handle) error {
	t, err := k.getTcb(id)
	if err != nil {
		return err
	}
	if t == k.cur {
		return nil // the running task is not suspended
	}

	k.enterTask()
	request := false
	if t.state == StateSuspended {
		k.suspended.remove(&t.node)
		k.trace.TaskResumed(t.index)
		k.addReady(t)
		request = t.prio > k.cur.prio
	} else {
		t.flags &^= flagSuspendReq
	}
	k.criticalExit()

	if request {
		k.schedule()
	}
	return nil
}

// TaskSetPriority changes a task's base priority. The effective priority
// is recomputed against owned mutexes; a task waiting in a
// priority-ordered list is repositioned, and a task waiting on a mutex
// propagates the change to the owner chain. Priority 0 and the idle task
// are off limits.
func (k *Kernel) TaskSetPriority(id Handle, newBase uint8) error {
	t, err := k.getTcb(id)
	if err != nil {
		return err
	}
	if t.basePrio == 0 || newBase == 0 || int(newBase) >= k.cfg.PrioCount {
		return ErrArg
	}

	k.enterTask()
	t.basePrio = newBase
	k.mutexNewPrio(t)
	if t.state == StateMutexWait {
		k.mutexPropagate(t)
	}
	if t.basePrio == t.prio {
		k.trace.TaskPriority(t.index, newBase)
	}
	k.criticalExit()

	k.schedule()
	return nil
}

// TaskBasePriority returns a task's base priority, which differs from the
// effective one only under priority inheritance.
func (k *Kernel) TaskBasePriority(id Handle) (uint8, error) {
	t, err := k.getTcb(id)
	if err != nil {
		return 0, err
	}
	k.criticalEnter()
	p := t.basePrio
	k.criticalExit()
	return p, nil
}

// TaskPriority returns a task's current effective priority.
func (k *Kernel) TaskPriority(id Handle) (uint8, error) {
	t, err := k.getTcb(id)
	if err != nil {
		return 0, err
	}
	k.criticalEnter()
	p := t.prio
	k.criticalExit()
	return p, nil
}

// TaskName returns a task's name.
func (k *Kernel) TaskName(id Handle) (string, error) {
	t, err := k.getTcb(id)
	if err != nil {
		return "", err
	}
	k.criticalEnter()
	name := t.name
	k.criticalExit()
	return name, nil
}

// TaskSelf returns the handle of the running task.
func (k *Kernel) TaskSelf() Handle {
	k.criticalEnter()
	h := k.cur.handle()
	k.criticalExit()
	return h
}

// TaskCheckStack returns the count of never-used stack words of a task
// created with FlagStackCheck. The task should not be deleted while the
// scan runs.
func (k *Kernel) TaskCheckStack(id Handle) (uint32, error) {
	t, err := k.getTcb(id)
	if err != nil {
		return 0, err
	}
	k.criticalEnter()
	checked := t.flags&FlagStackCheck != 0
	stack := t.stack
	k.criticalExit()
	if !checked {
		return 0, ErrState
	}
	// The scan itself runs outside the critical section; it can be
	// lengthy and never-used words do not change under the task.
	for i := 0; i < len(stack); i++ {
		if stack[i] != stackPattern {
			return uint32(i), nil
		}
	}
	return uint32(len(stack)), nil
}

// Info takes a diagnostic snapshot: one entry per allocated task, the tick
// counter, the accumulated CPU total and the critical-section high-water
// mark. The stack scans run outside the critical section. Safe from any
// goroutine.
func (k *Kernel) Info() Snapshot {
	var s Snapshot

	k.criticalEnter()
	for i := range k.tcbs {
		t := &k.tcbs[i]
		if t.state == StateNone {
			continue
		}
		s.Tasks = append(s.Tasks, TaskInfo{
			ID:           t.handle(),
			Name:         t.name,
			State:        t.state,
			Priority:     t.prio,
			BasePriority: t.basePrio,
			CPUUsage:     t.cpuUsage,
		})
	}
	s.TickCount = k.tickCount
	s.CPUTotal = k.cpuUsage
	s.CriticalUsage = k.critUsage
	k.criticalExit()

	for i := range s.Tasks {
		free, err := k.TaskCheckStack(s.Tasks[i].ID)
		if err == nil {
			s.Tasks[i].StackFree = free
		}
	}
	return s
}

// StatClear resets the CPU-usage accumulators and the critical-section
// high-water mark.
func (k *Kernel) StatClear() {
	k.criticalEnter()
	for i := range k.tcbs {
		k.tcbs[i].cpuUsage = 0
	}
	k.cpuUsage = 0
	k.critUsage = 0
	// Leave without criticalExit, which would record this very section
	// as the new high-water mark.
	k.critNest--
	k.cs.Unlock()
}
