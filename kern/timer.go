// Copyright 2026 The rtkern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

// Software watchdog timers, driven by the kernel tick. Active timers sit
// in a delta-encoded list like the delayed task list, so each tick costs
// one head decrement. Expired callbacks run outside the critical section,
// in tick-interrupt context; a callback returning true restarts its timer
// with the original reload.

// TimerFunc is a timer expiry callback. Returning true restarts the
// timer with its reload value; false leaves it stopped. The callback may
// call TimerSet to change the parameters before restarting.
type TimerFunc func(arg any) bool

// tmcb is a timer control block. node links it into the active list
// while the timer runs; a stopped timer is in no list.
type tmcb struct {
	node    listNode
	fn      TimerFunc
	arg     any
	timeout uint32 // reload, in ticks
	index   uint16
	alloc   bool
}

func (t *tmcb) handle() Handle { return makeHandle(KindTimer, t.index) }

func (k *Kernel) initTimers() {
	k.timerList.init()
	k.timers = make([]tmcb, k.cfg.TimerMax)
	k.freeTimer = make([]*tmcb, 0, k.cfg.TimerMax)
	for i := k.cfg.TimerMax - 1; i >= 0; i-- {
		t := &k.timers[i]
		t.index = uint16(i)
		t.node.owner = t
		k.freeTimer = append(k.freeTimer, t)
	}
}

func (k *Kernel) getTimer(id Handle) (*tmcb, error) {
	if k.cfg.WithArgCheck {
		if id.Kind() != KindTimer || int(id.Index()) >= len(k.timers) {
			k.notify(NotifyError, id)
			return nil, ErrArg
		}
		t := &k.timers[id.Index()]
		k.criticalEnter()
		alloc := t.alloc
		k.criticalExit()
		if !alloc {
			k.notify(NotifyError, id)
			return nil, ErrArg
		}
		return t, nil
	}
	return &k.timers[id.Index()], nil
}

// TimerIsValid reports whether id currently names an allocated timer.
func (k *Kernel) TimerIsValid(id Handle) bool {
	if id.Kind() != KindTimer || int(id.Index()) >= len(k.timers) {
		return false
	}
	k.criticalEnter()
	ok := k.timers[id.Index()].alloc
	k.criticalExit()
	return ok
}

// TimerCreate allocates a timer. It must be configured with TimerSet
// before it can start.
func (k *Kernel) TimerCreate() (Handle, error) {
	k.criticalEnter()
	if len(k.freeTimer) == 0 {
		k.criticalExit()
		k.notify(NotifyError, 0)
		return 0, ErrDepleted
	}
	t := k.freeTimer[len(k.freeTimer)-1]
	k.freeTimer = k.freeTimer[:len(k.freeTimer)-1]
	t.timeout = 1
	t.fn = nil
	t.arg = nil
	t.node.clear()
	t.alloc = true
	k.criticalExit()
	return t.handle(), nil
}

// TimerDelete stops a timer and returns it to the pool.
func (k *Kernel) TimerDelete(id Handle) error {
	t, err := k.getTimer(id)
	if err != nil {
		return err
	}
	if err := k.TimerStop(id); err != nil {
		return err
	}
	k.criticalEnter()
	t.fn = nil
	t.arg = nil
	t.alloc = false
	k.freeTimer = append(k.freeTimer, t)
	k.criticalExit()
	return nil
}

// TimerSet configures callback, argument and reload. Only legal while
// the timer is stopped. The reload must be at least 1 tick and finite.
func (k *Kernel) TimerSet(id Handle, fn TimerFunc, arg any, timeout uint32) error {
	t, err := k.getTimer(id)
	if err != nil {
		return err
	}
	if fn == nil || timeout == 0 || timeout == Infinite {
		return ErrArg
	}
	k.criticalEnter()
	if t.node.inUse() {
		k.criticalExit()
		return ErrState
	}
	t.fn = fn
	t.arg = arg
	t.timeout = timeout
	k.criticalExit()
	return nil
}

// TimerStart arms the timer for its reload interval. Starting a running
// timer restarts it from the full reload.
func (k *Kernel) TimerStart(id Handle) error {
	t, err := k.getTimer(id)
	if err != nil {
		return err
	}
	k.criticalEnter()
	if t.fn == nil {
		k.criticalExit()
		return ErrState
	}
	if t.node.inUse() {
		k.removeFromTimerList(&t.node)
	}
	k.addToTimerList(&t.node, t.timeout)
	k.criticalExit()
	return nil
}

// TimerStop disarms the timer. Stopping a stopped timer is a no-op.
func (k *Kernel) TimerStop(id Handle) error {
	t, err := k.getTimer(id)
	if err != nil {
		return err
	}
	k.criticalEnter()
	if t.node.inUse() {
		k.removeFromTimerList(&t.node)
	}
	k.criticalExit()
	return nil
}

//--------------------------------------------------------------------------
// Active timer list

func (k *Kernel) addToTimerList(n *listNode, timeout uint32) {
	k.assertCritical()
	delay := timeout
	pos := k.timerList.sentinel()
	for !k.timerList.isLast(pos) {
		if delay <= pos.next.value {
			pos.next.value -= delay
			break
		}
		pos = pos.next
		delay -= pos.value
	}
	n.value = delay
	k.timerList.addAfter(pos, n)
}

func (k *Kernel) removeFromTimerList(n *listNode) {
	k.assertCritical()
	if !k.timerList.isLast(n) {
		n.next.value += n.value
	}
	k.timerList.remove(n)
}

// timerTicksToWait returns the ticks until the nearest timer expiry,
// Infinite when no timer runs. For tick stretching.
func (k *Kernel) timerTicksToWait() uint32 {
	k.assertCritical()
	if n := k.timerList.first(); !k.timerList.isEnd(n) {
		return n.value
	}
	return Infinite
}

// timerUpdateTick ages the head of the active list by n elapsed ticks
// after a stretched sleep.
func (k *Kernel) timerUpdateTick(n uint32) {
	k.assertCritical()
	if h := k.timerList.first(); !k.timerList.isEnd(h) {
		if h.value <= n {
			k.throw("stretched sleep overran a timer deadline")
		}
		h.value -= n
	}
}

// timerTick decrements the head of the active list and fires every timer
// that reaches zero. Called from Tick.
func (k *Kernel) timerTick() {
	if len(k.timers) == 0 {
		return
	}
	k.criticalEnter()

	n := k.timerList.first()
	if !k.timerList.isEnd(n) {
		if n.value == 0 {
			k.throw("timer list head already expired")
		}
		n.value--

		for !k.timerList.isEnd(n) && n.value == 0 {
			// Expired: the delta is 0, so no successor adjustment.
			k.timerList.remove(n)
			t := n.owner.(*tmcb)

			// The callback runs outside the critical section.
			k.criticalExit()
			k.trace.TimerExpired(t.index)
			again := t.fn(t.arg)
			k.criticalEnter()

			if again {
				k.addToTimerList(&t.node, t.timeout)
			}
			n = k.timerList.first()
		}
	}
	k.criticalExit()
}
