// Copyright 2026 The rtkern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

// TaskState names the list that currently holds a task's state node, or
// the ready bitmap for StateReady.
type TaskState uint8

const (
	StateNone TaskState = iota // TCB free, or being deleted
	StateReady
	StateDelayed
	StateSuspended
	StateMutexWait
	StateSemWait
	StateSigWait
	StateQueueWait
	StateIoWait
)

var taskStateNames = [...]string{
	"None", "Ready", "Delayed", "Suspended",
	"MutexWait", "SemWait", "SigWait", "QueueWait", "IoWait",
}

func (s TaskState) String() string {
	if int(s) < len(taskStateNames) {
		return taskStateNames[s]
	}
	return "Invalid"
}

// Task flags. The low four bits are user flags, passed to TaskCreate; the
// rest are kernel internal.
const (
	// FlagStackCheck requests pattern fill of the stack at creation and
	// the overflow/threshold checks at every switch.
	FlagStackCheck uint16 = 0x0001

	// FlagSuspended creates the task suspended instead of ready.
	FlagSuspended uint16 = 0x0002

	flagUserMask uint16 = 0x000F

	flagTimeout     uint16 = 0x0100 // awoken by expired timeout
	flagFlush       uint16 = 0x0200 // awoken by flush, object not acquired
	flagSignalAnd   uint16 = 0x0400 // signal wait needs all bits
	flagQueuePut    uint16 = 0x0800 // waiting on the queue put list
	flagKernelStack uint16 = 0x1000 // stack allocated by the kernel
	flagStackThr    uint16 = 0x2000 // stack threshold already reported
	flagStackOvfl   uint16 = 0x4000 // stack overflow already reported
	flagSuspendReq  uint16 = 0x8000 // enter Suspended instead of Ready on wake
)

// TaskFunc is a task entry point. A task that returns from its entry
// deletes itself.
type TaskFunc func(arg any)

// Signals is a set of task signal bits.
type Signals uint32

// waitRef identifies what a blocked task is waiting on. The task's state
// is the tag; exactly one field is non-nil while the task sits in a wait
// list, and sigs carries the bits that satisfied a signal wait.
type waitRef struct {
	mutex *mucb
	sem   *semcb
	queue *qcb
	io    *DriverDesc
	sigs  Signals
}

// tcb is a task control block. TCBs live in a fixed array owned by the
// kernel; a free stack holds the unused ones.
//
// A TCB is in at most one state list at a time through node, except that a
// task waiting on a synchronization object with a timeout is in the
// delayed list through node and in the object's wait list through waitNode
// at the same time.
type tcb struct {
	sp uint32 // top-of-stack index into stack, in words

	name string

	node      listNode // ready / delayed / suspended / deleted list
	waitNode  listNode // synchronization object wait list
	mutexList listHead // mutexes owned by this task

	wait waitRef

	index    uint16
	prio     uint8 // differs from basePrio only under priority inheritance
	basePrio uint8
	state    TaskState

	stack []uint32
	flags uint16

	sigsWait Signals
	sigsRecv Signals

	cpuUsage uint32

	// Host execution context. Each task is backed by one goroutine,
	// spawned at its first switch-in. park is the hand-off channel the
	// goroutine blocks on while the task is not current; it is buffered
	// so the switch-in signal never blocks the sender.
	entry   TaskFunc
	arg     any
	park    chan struct{}
	started bool
	gen     uint32 // bumped at creation; lets a parked goroutine detect reuse
}

func (t *tcb) handle() Handle { return makeHandle(KindTask, t.index) }

// stackPattern marks never-used stack words when stack checking is on.
const stackPattern uint32 = 0xDEADBEEF

// TaskInfo is a diagnostic snapshot of one task.
type TaskInfo struct {
	ID           Handle
	Name         string
	State        TaskState
	Priority     uint8
	BasePriority uint8
	CPUUsage     uint32
	StackFree    uint32
}

// Snapshot is a diagnostic snapshot of the kernel, taken atomically inside
// the critical section (except the stack scans, which run after).
type Snapshot struct {
	Tasks         []TaskInfo
	TickCount     uint32
	CPUTotal      uint32
	CriticalUsage uint32
}
