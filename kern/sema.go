// Copyright 2026 The rtkern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

// Counting semaphore.
//
// The count is signed. Give hands off directly when a waiter exists: the
// head of the priority-ordered wait list is released and the count is not
// incremented, which together with mutex priority inheritance keeps a
// high-priority taker from being starved by the count bouncing through
// lower-priority tasks.

// The count clamps at these bounds: a give or take that would pass one
// leaves the count at the bound, notifies and continues.
const (
	semMaxCount = 32767
	semMinCount = -32768
)

// semcb is a semaphore control block.
type semcb struct {
	waiting listHead // ordered by priority, head = highest
	owner   *tcb     // last task the semaphore was handed to
	count   int32
	index   uint16
	alloc   bool
}

func (s *semcb) handle() Handle { return makeHandle(KindSem, s.index) }

func (k *Kernel) initSems() {
	k.sems = make([]semcb, k.cfg.SemMax)
	k.freeSem = make([]*semcb, 0, k.cfg.SemMax)
	for i := k.cfg.SemMax - 1; i >= 0; i-- {
		s := &k.sems[i]
		s.index = uint16(i)
		k.freeSem = append(k.freeSem, s)
	}
}

func (k *Kernel) getSem(id Handle) (*semcb, error) {
	if k.cfg.WithArgCheck {
		if id.Kind() != KindSem || int(id.Index()) >= len(k.sems) {
			k.notify(NotifyError, id)
			return nil, ErrArg
		}
		s := &k.sems[id.Index()]
		k.criticalEnter()
		alloc := s.alloc
		k.criticalExit()
		if !alloc {
			k.notify(NotifyError, id)
			return nil, ErrArg
		}
		return s, nil
	}
	return &k.sems[id.Index()], nil
}

// SemIsValid reports whether id currently names an allocated semaphore.
func (k *Kernel) SemIsValid(id Handle) bool {
	if id.Kind() != KindSem || int(id.Index()) >= len(k.sems) {
		return false
	}
	k.criticalEnter()
	ok := k.sems[id.Index()].alloc
	k.criticalExit()
	return ok
}

// SemCreate allocates a semaphore with the given initial count. A
// positive count can be taken immediately.
func (k *Kernel) SemCreate(count int32) (Handle, error) {
	k.criticalEnter()
	if len(k.freeSem) == 0 {
		k.criticalExit()
		k.notify(NotifyError, 0)
		return 0, ErrDepleted
	}
	s := k.freeSem[len(k.freeSem)-1]
	k.freeSem = k.freeSem[:len(k.freeSem)-1]
	s.count = count
	s.owner = nil
	s.waiting.init()
	s.alloc = true
	k.criticalExit()
	return s.handle(), nil
}

// SemDelete returns a semaphore to the pool. Waiting tasks are released
// with ErrFlush first.
func (k *Kernel) SemDelete(id Handle) error {
	s, err := k.getSem(id)
	if err != nil {
		return err
	}
	if !s.waiting.isEmpty() {
		_ = k.SemFlush(id)
	}
	k.criticalEnter()
	s.alloc = false
	k.freeSem = append(k.freeSem, s)
	k.criticalExit()
	return nil
}

// SemTake acquires the semaphore, waiting up to timeout ticks (0 waits
// forever). A waiter released by flush or delete gets ErrFlush without
// the semaphore. Forbidden in an ISR; before Start the count just
// decrements.
func (k *Kernel) SemTake(id Handle, timeout uint32) error {
	return k.semTake(id, timeout, false)
}

// SemTryTake acquires the semaphore only if that needs no wait.
func (k *Kernel) SemTryTake(id Handle) error {
	return k.semTake(id, 0, true)
}

func (k *Kernel) semTake(id Handle, timeout uint32, try bool) error {
	s, err := k.getSem(id)
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
		if s.count > semMinCount {
			s.count--
		} else {
			k.notify(NotifyError, id)
		}
		k.criticalExit()
		return nil
	}
	cur := k.cur

	if s.count > 0 {
		s.count--
		k.trace.SemTake(cur.index, s.index)
		k.criticalExit()
		return nil
	}

	if try {
		k.criticalExit()
		return ErrWouldBlock
	}

	k.removeReady(cur)
	cur.state = StateSemWait
	cur.wait.sem = s
	cur.flags &^= flagFlush | flagTimeout
	cur.waitNode.value = uint32(cur.prio)
	s.waiting.addOrdered(&cur.waitNode)
	k.addToDelayed(cur, timeout)
	k.trace.SemWait(cur.index, s.index)
	k.criticalExit()

	k.schedule()

	k.criticalEnter()
	if cur.flags&flagFlush != 0 {
		cur.flags &^= flagFlush
		k.criticalExit()
		return ErrFlush
	}
	if cur.flags&flagTimeout != 0 {
		cur.flags &^= flagTimeout
		k.criticalExit()
		return ErrTimeout
	}
	// Handed off by give without incrementing the count.
	k.trace.SemTake(cur.index, s.index)
	k.criticalExit()
	return nil
}

// SemGive releases the semaphore: a waiter, if any, is unblocked without
// the count changing; otherwise the count increments. Callable from an
// ISR.
func (k *Kernel) SemGive(id Handle) error {
	s, err := k.getSem(id)
	if err != nil {
		return err
	}

	k.enterTask()
	if !k.running {
		if s.count < semMaxCount {
			s.count++
		} else {
			k.notify(NotifyError, id)
		}
		k.criticalExit()
		return nil
	}
	k.trace.SemGive(k.cur.index, s.index)

	if s.count < 0 {
		// Takes outran gives before the kernel started; no task can be
		// waiting.
		s.count++
		k.criticalExit()
		return nil
	}

	request := false
	if n := s.waiting.removeHead(); n != nil {
		t := n.owner.(*tcb)
		t.wait.sem = nil
		s.owner = t
		if t.node.inUse() {
			k.removeFromDelayed(&t.node)
		}
		request = k.tcbPutInList(t)
	} else if s.count < semMaxCount {
		s.count++
	} else {
		k.notify(NotifyError, id)
	}
	k.criticalExit()

	if request {
		k.schedule()
	}
	return nil
}

// SemFlush atomically unblocks every waiter: all of them leave the wait
// list, marked to return ErrFlush, before any runs. The count is
// unchanged. Useful as a broadcast.
func (k *Kernel) SemFlush(id Handle) error {
	s, err := k.getSem(id)
	if err != nil {
		return err
	}

	k.enterTask()
	request := false
	for {
		n := s.waiting.removeHead()
		if n == nil {
			break
		}
		t := n.owner.(*tcb)
		t.wait.sem = nil
		t.flags |= flagFlush
		if t.node.inUse() {
			k.removeFromDelayed(&t.node)
		}
		if k.tcbPutInList(t) {
			request = true
		}
	}
	k.criticalExit()

	if request {
		k.schedule()
	}
	return nil
}

// SemReset sets the count to a new value. Only legal while no task waits.
func (k *Kernel) SemReset(id Handle, count int32) error {
	s, err := k.getSem(id)
	if err != nil {
		return err
	}

	k.criticalEnter()
	if !s.waiting.isEmpty() {
		k.criticalExit()
		k.notify(NotifyError, id)
		return ErrState
	}
	s.count = count
	k.criticalExit()
	return nil
}
