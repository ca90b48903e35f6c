// Copyright 2026 The rtkern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package kern implements a small fixed-priority preemptive kernel core:
// tasks drawn from a fixed pool, an O(1) ready-queue accelerator, a
// delta-encoded delayed list, mutexes with priority inheritance, counting
// semaphores, message queues, buffer pools, software timers, signals and an
// I/O wait primitive.
//
// On a host, every task is backed by one goroutine and the kernel
// guarantees that at most one task goroutine runs between kernel entry
// points; the platform context switch becomes a goroutine hand-off through
// the port. Interrupt handlers (the tick source, drivers) run on their own
// goroutines and bracket their work with IntEnter and IntExit, which pends
// a deferred switch exactly like the low-priority switch exception on the
// target.
//
// Entry points that may block or reschedule must be called from a task or
// from an IntEnter/IntExit bracket. TickCount, Info, Halt and the IsValid
// probes are safe from any goroutine.
package kern

import (
	"math/bits"
	"sync"
)

// Infinite is the delay value meaning "no deadline". For the blocking
// entry points a timeout of 0 also means wait forever; the Try variants
// provide the non-blocking attempt.
const Infinite = ^uint32(0)

const prioGroupBits = 32

const kernVersion = (1 << 16) | 0

// Kernel is the kernel record: every piece of state of the core, mutated
// only inside the critical section. Entry points are methods on it.
type Kernel struct {
	cfg    Config
	port   Port
	trace  Tracer
	notify NotifyFunc

	// The critical section. cs is the interrupt mask of the target:
	// everything the kernel owns is protected by it alone, which is
	// acceptable because every hold window is O(1) or O(waiters).
	cs       sync.Mutex
	critNest int32
	isrNest  int32

	running bool
	halted  bool
	done    chan struct{}

	tickCount uint32

	cur        *tcb // the running task
	next       *tcb // chosen by the scheduler, consumed by the switch
	pendSwitch bool // a switch was pended from interrupt context

	tcbs    []tcb
	freeTCB []*tcb // free stack, top at the end

	// Ready-queue accelerator: one list per priority plus a bitmap in
	// which bit p of word p/32 is set iff ready[p] is not empty. With
	// more than two words a second-level bitmap indexes the non-zero
	// words, so the highest ready priority always costs two MSB
	// lookups.
	ready          []listHead
	prioGroup      []uint32
	prioGroupIndex uint32

	delayed   listHead // delta-encoded deadlines, Infinite at the tail
	suspended listHead
	deleted   listHead // zombies waiting for the idle task

	mutexes   []mucb
	freeMux   []*mucb
	sems      []semcb
	freeSem   []*semcb
	queues    []qcb
	freeQueue []*qcb
	pools     []bpcb
	freePool  []*bpcb
	timers    []tmcb
	freeTimer []*tmcb
	timerList listHead

	// Statistics.
	cpuUsage   uint32 // total task CPU time, port timestamp units
	tsSwitch   uint32 // timestamp of the last switch
	critUsage  uint32 // longest critical section observed
	tsCritical uint32 // timestamp of the outermost criticalEnter
}

// New builds a kernel from cfg and port and creates the idle task (the
// first task, priority 0, TCB 0). User tasks may be created right away;
// nothing runs until Start.
func New(cfg Config, port Port) (*Kernel, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if port == nil {
		return nil, ErrArg
	}
	k := &Kernel{
		cfg:    cfg,
		port:   port,
		trace:  cfg.Tracer,
		notify: cfg.Notify,
		done:   make(chan struct{}),
	}
	if k.trace == nil {
		k.trace = nopTracer{}
	}
	if k.notify == nil {
		k.notify = nopNotify
	}

	k.tcbs = make([]tcb, cfg.TaskMax)
	k.freeTCB = make([]*tcb, 0, cfg.TaskMax)
	k.suspended.init()
	k.deleted.init()
	k.delayed.init()

	k.ready = make([]listHead, cfg.PrioCount)
	for i := range k.ready {
		k.ready[i].init()
	}
	k.prioGroup = make([]uint32, (cfg.PrioCount+prioGroupBits-1)/prioGroupBits)

	// The free task list is a stack, filled from the last TCB down so
	// TCB 0 is on top for the idle task.
	for i := cfg.TaskMax - 1; i >= 0; i-- {
		t := &k.tcbs[i]
		t.index = uint16(i)
		t.state = StateNone
		t.node.owner = t
		t.waitNode.owner = t
		k.freeTCB = append(k.freeTCB, t)
	}

	k.initMutexes()
	k.initSems()
	k.initQueues()
	k.initBufPools()
	k.initTimers()

	if _, err := k.TaskCreate(0, "tIdle", k.idleEntry, nil, nil,
		cfg.IdleStackSize, 0); err != nil {
		return nil, err
	}
	// The idle task is the current task until the first real switch.
	k.cur = &k.tcbs[0]

	return k, nil
}

// Version returns the kernel version as major<<16 | minor.
func Version() uint32 { return kernVersion }

//--------------------------------------------------------------------------
// Critical section

func (k *Kernel) criticalEnter() {
	k.cs.Lock()
	k.critNest++
	if k.cfg.WithCriticalStat && k.critNest == 1 {
		k.tsCritical = k.port.Timestamp()
	}
}

func (k *Kernel) criticalExit() {
	if k.critNest <= 0 {
		k.throw("critical section nesting underflow")
	}
	if k.cfg.WithCriticalStat && k.critNest == 1 {
		d := k.port.Timestamp() - k.tsCritical
		if d > k.critUsage {
			k.critUsage = d
		}
	}
	k.critNest--
	k.cs.Unlock()
}

func (k *Kernel) assertCritical() {
	if k.critNest == 0 {
		k.throw("kernel state touched outside the critical section")
	}
}

// CriticalEnter opens a critical section for application code that shares
// data with ISRs or other tasks. Not reentrant: pair every CriticalEnter
// with exactly one CriticalExit before the next.
func (k *Kernel) CriticalEnter() { k.criticalEnter() }

// CriticalExit closes the critical section opened by CriticalEnter.
func (k *Kernel) CriticalExit() { k.criticalExit() }

//--------------------------------------------------------------------------
// Interrupt context

// inISR reports whether an interrupt bracket is open. Read inside the
// critical section.
func (k *Kernel) inISR() bool { return k.isrNest != 0 }

// IntEnter marks the start of an interrupt handler. Every ISR that calls
// into the kernel must bracket its body with IntEnter and IntExit.
func (k *Kernel) IntEnter() {
	k.criticalEnter()
	k.isrNest++
	if k.isrNest == 0 {
		k.throw("interrupt nesting overflow")
	}
	k.trace.InterruptEnter()
	k.criticalExit()
}

// IntExit marks the end of an interrupt handler. On the outermost exit,
// if the interrupt made a higher-priority task ready, a deferred switch is
// pended; the preempted task performs it at its next kernel entry point.
func (k *Kernel) IntExit() {
	k.criticalEnter()
	if k.isrNest == 0 {
		k.throw("IntExit without IntEnter")
	}
	k.isrNest--
	if k.isrNest == 0 && k.running {
		k.next = k.readyFirst(k.highestPrio())
		if k.next != k.cur {
			k.pendSwitch = true
		}
	}
	k.trace.InterruptExit()
	k.criticalExit()
}

//--------------------------------------------------------------------------
// Ready-queue accelerator

// highestPrio returns the highest priority with a ready task. There is
// always one: the idle task never leaves the ready set.
func (k *Kernel) highestPrio() uint8 {
	switch len(k.prioGroup) {
	case 1:
		if k.prioGroup[0] == 0 {
			k.throw("ready bitmap empty")
		}
		return uint8(bits.Len32(k.prioGroup[0]) - 1)
	case 2:
		if k.prioGroup[1] != 0 {
			return uint8(prioGroupBits + bits.Len32(k.prioGroup[1]) - 1)
		}
		if k.prioGroup[0] == 0 {
			k.throw("ready bitmap empty")
		}
		return uint8(bits.Len32(k.prioGroup[0]) - 1)
	default:
		if k.prioGroupIndex == 0 {
			k.throw("ready bitmap empty")
		}
		group := bits.Len32(k.prioGroupIndex) - 1
		return uint8(group*prioGroupBits + bits.Len32(k.prioGroup[group]) - 1)
	}
}

func (k *Kernel) readyFirst(prio uint8) *tcb {
	return k.ready[prio].first().owner.(*tcb)
}

// addReady inserts t at the tail of the ready list for its current
// priority and sets the accelerator bits.
func (k *Kernel) addReady(t *tcb) {
	k.assertCritical()
	prio := int(t.prio)
	if k.ready[prio].isEmpty() {
		group := prio / prioGroupBits
		k.prioGroup[group] |= 1 << (prio % prioGroupBits)
		if len(k.prioGroup) > 2 {
			k.prioGroupIndex |= 1 << group
		}
	}
	t.state = StateReady // clears a pending suspended state
	k.ready[prio].addTail(&t.node)
}

// removeReady removes t from its ready list; when the list empties the
// accelerator bits are cleared. The idle task is never removed.
func (k *Kernel) removeReady(t *tcb) {
	k.assertCritical()
	if t == &k.tcbs[0] {
		k.throw("idle task removed from the ready set")
	}
	prio := int(t.prio)
	if k.ready[prio].count1() {
		group := prio / prioGroupBits
		k.prioGroup[group] &^= 1 << (prio % prioGroupBits)
		if len(k.prioGroup) > 2 && k.prioGroup[group] == 0 {
			k.prioGroupIndex &^= 1 << group
			if k.prioGroupIndex == 0 {
				k.throw("ready bitmap empty")
			}
		}
	}
	k.ready[prio].remove(&t.node)
}

//--------------------------------------------------------------------------
// Lifecycle

// Start begins multitasking: the highest-priority ready task runs first.
// Start blocks until Halt; on the target the equivalent never returns.
func (k *Kernel) Start() error {
	k.criticalEnter()
	if k.running || k.halted {
		k.criticalExit()
		return ErrState
	}
	k.running = true
	k.tsSwitch = k.port.Timestamp()
	k.next = k.readyFirst(k.highestPrio())
	k.cur = k.next
	k.resume(k.cur)
	k.criticalExit()

	<-k.done
	return nil
}

// Halt stops the kernel: every parked task goroutine exits, Start
// returns. Used by host teardown; there is no restart.
func (k *Kernel) Halt() {
	k.criticalEnter()
	if k.halted {
		k.criticalExit()
		return
	}
	k.halted = true
	k.running = false
	for i := range k.tcbs {
		t := &k.tcbs[i]
		if t.started {
			select {
			case t.park <- struct{}{}:
			default:
			}
		}
	}
	close(k.done)
	k.criticalExit()
}

// TickCount returns the kernel tick counter. Safe from any context.
func (k *Kernel) TickCount() uint32 {
	k.criticalEnter()
	n := k.tickCount
	k.criticalExit()
	return n
}

// SetTickRate asks the port to reprogram the tick source.
func (k *Kernel) SetTickRate(hz uint32) error {
	if hz == 0 {
		return ErrArg
	}
	if err := k.port.SetTickRate(hz); err != nil {
		return err
	}
	k.criticalEnter()
	k.cfg.TickRate = hz
	k.criticalExit()
	return nil
}
