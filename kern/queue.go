// Copyright 2026 The rtkern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

// Message queue: a fixed-size circular buffer of fixed-size messages,
// copied in and out, or of opaque references when created in pointer
// mode. Senders and receivers block on separate wait lists, FIFO by
// default or priority-ordered on request; priority-ordered queue waiters
// take part in mutex priority propagation.

// QueueFlag selects queue behaviour at creation.
type QueueFlag uint16

const (
	// QueuePriority orders both wait lists by priority instead of FIFO.
	QueuePriority QueueFlag = 1 << iota

	// QueuePointer stores references instead of copying bytes; use the
	// Ptr entry points.
	QueuePointer
)

const (
	queueFlagPriority  uint16 = 0x01
	queueFlagPointer   uint16 = 0x02
	queueFlagKernelBuf uint16 = 0x04
)

const queueMsgMax = 0xFFFF

// qcb is a queue control block.
type qcb struct {
	putWait listHead
	getWait listHead

	buf  []byte // copy mode: msgCount slots of msgSize bytes
	ptrs []any  // pointer mode: msgCount reference slots

	msgSize  uint16
	msgCount uint16
	msgUsed  uint16
	r, w     uint16 // slot indices

	flags uint16
	index uint16
	alloc bool
}

func (q *qcb) handle() Handle { return makeHandle(KindQueue, q.index) }

func (k *Kernel) initQueues() {
	k.queues = make([]qcb, k.cfg.QueueMax)
	k.freeQueue = make([]*qcb, 0, k.cfg.QueueMax)
	for i := k.cfg.QueueMax - 1; i >= 0; i-- {
		q := &k.queues[i]
		q.index = uint16(i)
		k.freeQueue = append(k.freeQueue, q)
	}
}

func (k *Kernel) getQueue(id Handle) (*qcb, error) {
	if k.cfg.WithArgCheck {
		if id.Kind() != KindQueue || int(id.Index()) >= len(k.queues) {
			k.notify(NotifyError, id)
			return nil, ErrArg
		}
		q := &k.queues[id.Index()]
		k.criticalEnter()
		alloc := q.alloc
		k.criticalExit()
		if !alloc {
			k.notify(NotifyError, id)
			return nil, ErrArg
		}
		return q, nil
	}
	return &k.queues[id.Index()], nil
}

// QueueIsValid reports whether id currently names an allocated queue.
func (k *Kernel) QueueIsValid(id Handle) bool {
	if id.Kind() != KindQueue || int(id.Index()) >= len(k.queues) {
		return false
	}
	k.criticalEnter()
	ok := k.queues[id.Index()].alloc
	k.criticalExit()
	return ok
}

// QueueCreate allocates a queue of msgCount messages of msgSize bytes.
// A nil buf asks the kernel to own the message buffer; a supplied buf
// must hold msgSize*msgCount bytes. In pointer mode msgSize is ignored
// and the reference slots are always kernel-owned.
func (k *Kernel) QueueCreate(msgSize, msgCount int, buf []byte, flags QueueFlag) (Handle, error) {
	if msgCount <= 0 || msgCount > queueMsgMax {
		k.notify(NotifyError, 0)
		return 0, ErrArg
	}
	pointer := flags&QueuePointer != 0
	if !pointer {
		if msgSize <= 0 || msgSize > queueMsgMax {
			k.notify(NotifyError, 0)
			return 0, ErrArg
		}
		if buf != nil && len(buf) < msgSize*msgCount {
			k.notify(NotifyError, 0)
			return 0, ErrArg
		}
	}

	k.criticalEnter()
	if len(k.freeQueue) == 0 {
		k.criticalExit()
		k.notify(NotifyError, 0)
		return 0, ErrDepleted
	}
	q := k.freeQueue[len(k.freeQueue)-1]
	k.freeQueue = k.freeQueue[:len(k.freeQueue)-1]
	k.criticalExit()

	q.msgCount = uint16(msgCount)
	q.msgUsed = 0
	q.r = 0
	q.w = 0
	q.putWait.init()
	q.getWait.init()
	q.flags = 0
	if flags&QueuePriority != 0 {
		q.flags |= queueFlagPriority
	}
	if pointer {
		q.flags |= queueFlagPointer
		q.msgSize = 0
		q.ptrs = make([]any, msgCount)
	} else {
		q.msgSize = uint16(msgSize)
		if buf == nil {
			buf = make([]byte, msgSize*msgCount)
			q.flags |= queueFlagKernelBuf
		}
		q.buf = buf
	}
	q.alloc = true
	return q.handle(), nil
}

// QueueDelete returns a queue to the pool. Every blocked sender and
// receiver is released with ErrFlush; a reference obtained through
// QueuePeek must not be used past this point.
func (k *Kernel) QueueDelete(id Handle) error {
	q, err := k.getQueue(id)
	if err != nil {
		return err
	}

	k.enterTask()
	request := false
	for !q.putWait.isEmpty() {
		if k.queueRelease(&q.putWait, flagFlush) {
			request = true
		}
	}
	for !q.getWait.isEmpty() {
		if k.queueRelease(&q.getWait, flagFlush) {
			request = true
		}
	}
	q.buf = nil
	q.ptrs = nil
	q.alloc = false
	k.freeQueue = append(k.freeQueue, q)
	k.criticalExit()

	if request {
		k.schedule()
	}
	return nil
}

// queueRelease wakes the task at the head of a queue wait list, marking
// the given wake cause. Reports whether a reschedule is needed. Must be
// called inside the critical section with a non-empty list.
func (k *Kernel) queueRelease(l *listHead, cause uint16) bool {
	k.assertCritical()
	n := l.removeHead()
	t := n.owner.(*tcb)
	t.flags |= cause
	t.flags &^= flagQueuePut
	t.wait.queue = nil
	if t.node.inUse() {
		k.removeFromDelayed(&t.node)
	}
	return k.tcbPutInList(t)
}

// queueWait blocks the running task on one of the queue's wait lists.
// Returns inside the critical section with the wake cause classified;
// a nil return only means the task was woken, the caller re-checks the
// buffer state (wakes can race with other senders and receivers).
func (k *Kernel) queueWait(q *qcb, put bool, timeout uint32, try bool) error {
	k.assertCritical()
	if try {
		return ErrWouldBlock
	}
	if k.inISR() {
		k.notify(NotifyError, q.handle())
		return ErrWouldBlock
	}
	cur := k.cur

	k.removeReady(cur)
	cur.state = StateQueueWait
	cur.flags &^= flagQueuePut | flagFlush | flagTimeout
	cur.wait.queue = q
	cur.waitNode.value = uint32(cur.prio)

	l := &q.getWait
	if put {
		cur.flags |= flagQueuePut
		l = &q.putWait
	}
	if q.flags&queueFlagPriority != 0 {
		l.addOrdered(&cur.waitNode)
	} else {
		l.addTail(&cur.waitNode)
	}
	k.addToDelayed(cur, timeout)
	k.trace.QueueWait(cur.index, q.index)
	k.criticalExit()

	k.schedule()

	k.criticalEnter()
	if cur.flags&flagFlush != 0 {
		cur.flags &^= flagFlush
		return ErrFlush
	}
	if cur.flags&flagTimeout != 0 {
		cur.flags &^= flagTimeout
		return ErrTimeout
	}
	return nil
}

// QueueGive copies a message into the queue, waiting up to timeout ticks
// for room (0 waits forever). The message may be shorter than the
// queue's message size. Callable from an ISR only through QueueTryGive.
func (k *Kernel) QueueGive(id Handle, data []byte, timeout uint32) error {
	return k.queueGive(id, data, timeout, false)
}

// QueueTryGive copies a message only if the queue has room.
func (k *Kernel) QueueTryGive(id Handle, data []byte) error {
	return k.queueGive(id, data, 0, true)
}

func (k *Kernel) queueGive(id Handle, data []byte, timeout uint32, try bool) error {
	q, err := k.getQueue(id)
	if err != nil {
		return err
	}
	if q.flags&queueFlagPointer != 0 {
		k.notify(NotifyError, id)
		return ErrState
	}
	if len(data) == 0 || len(data) > int(q.msgSize) {
		k.notify(NotifyError, id)
		return ErrArg
	}

	for {
		k.enterTask()
		if q.msgUsed != q.msgCount {
			break
		}
		// Full; wait and re-check, another sender may have won the
		// slot.
		if err := k.queueWait(q, true, timeout, try); err != nil {
			k.criticalExit()
			return err
		}
		k.criticalExit()
	}

	off := int(q.w) * int(q.msgSize)
	copy(q.buf[off:off+int(q.msgSize)], data)
	q.w++
	if q.w == q.msgCount {
		q.w = 0
	}
	q.msgUsed++
	k.trace.QueueGive(k.cur.index, q.index)

	request := false
	if !q.getWait.isEmpty() {
		request = k.queueRelease(&q.getWait, 0)
	}
	k.criticalExit()

	if request {
		k.schedule()
	}
	return nil
}

// QueueGivePtr stores a reference into a pointer-mode queue.
func (k *Kernel) QueueGivePtr(id Handle, v any, timeout uint32) error {
	return k.queueGivePtr(id, v, timeout, false)
}

// QueueTryGivePtr stores a reference only if the queue has room.
func (k *Kernel) QueueTryGivePtr(id Handle, v any) error {
	return k.queueGivePtr(id, v, 0, true)
}

func (k *Kernel) queueGivePtr(id Handle, v any, timeout uint32, try bool) error {
	q, err := k.getQueue(id)
	if err != nil {
		return err
	}
	if q.flags&queueFlagPointer == 0 {
		k.notify(NotifyError, id)
		return ErrState
	}

	for {
		k.enterTask()
		if q.msgUsed != q.msgCount {
			break
		}
		if err := k.queueWait(q, true, timeout, try); err != nil {
			k.criticalExit()
			return err
		}
		k.criticalExit()
	}

	q.ptrs[q.w] = v
	q.w++
	if q.w == q.msgCount {
		q.w = 0
	}
	q.msgUsed++
	k.trace.QueueGive(k.cur.index, q.index)

	request := false
	if !q.getWait.isEmpty() {
		request = k.queueRelease(&q.getWait, 0)
	}
	k.criticalExit()

	if request {
		k.schedule()
	}
	return nil
}

// QueueTake copies the oldest message into dst, waiting up to timeout
// ticks for one (0 waits forever). It returns the number of bytes
// copied: the queue's message size, or len(dst) if that is shorter.
func (k *Kernel) QueueTake(id Handle, dst []byte, timeout uint32) (int, error) {
	return k.queueTake(id, dst, timeout, false)
}

// QueueTryTake copies the oldest message only if one is present.
func (k *Kernel) QueueTryTake(id Handle, dst []byte) (int, error) {
	return k.queueTake(id, dst, 0, true)
}

func (k *Kernel) queueTake(id Handle, dst []byte, timeout uint32, try bool) (int, error) {
	q, err := k.getQueue(id)
	if err != nil {
		return 0, err
	}
	if q.flags&queueFlagPointer != 0 {
		k.notify(NotifyError, id)
		return 0, ErrState
	}
	if len(dst) == 0 {
		k.notify(NotifyError, id)
		return 0, ErrArg
	}
	n := int(q.msgSize)
	if len(dst) < n {
		n = len(dst)
	}

	for {
		k.enterTask()
		if q.msgUsed != 0 {
			break
		}
		if err := k.queueWait(q, false, timeout, try); err != nil {
			k.criticalExit()
			return 0, err
		}
		k.criticalExit()
	}

	off := int(q.r) * int(q.msgSize)
	copy(dst[:n], q.buf[off:])
	q.r++
	if q.r == q.msgCount {
		q.r = 0
	}
	q.msgUsed--
	k.trace.QueueTake(k.cur.index, q.index)

	request := false
	if !q.putWait.isEmpty() {
		request = k.queueRelease(&q.putWait, 0)
	}
	k.criticalExit()

	if request {
		k.schedule()
	}
	return n, nil
}

// QueueTakePtr removes and returns the oldest reference of a
// pointer-mode queue.
func (k *Kernel) QueueTakePtr(id Handle, timeout uint32) (any, error) {
	return k.queueTakePtr(id, timeout, false)
}

// QueueTryTakePtr removes the oldest reference only if one is present.
func (k *Kernel) QueueTryTakePtr(id Handle) (any, error) {
	return k.queueTakePtr(id, 0, true)
}

func (k *Kernel) queueTakePtr(id Handle, timeout uint32, try bool) (any, error) {
	q, err := k.getQueue(id)
	if err != nil {
		return nil, err
	}
	if q.flags&queueFlagPointer == 0 {
		k.notify(NotifyError, id)
		return nil, ErrState
	}

	for {
		k.enterTask()
		if q.msgUsed != 0 {
			break
		}
		if err := k.queueWait(q, false, timeout, try); err != nil {
			k.criticalExit()
			return nil, err
		}
		k.criticalExit()
	}

	v := q.ptrs[q.r]
	q.ptrs[q.r] = nil
	q.r++
	if q.r == q.msgCount {
		q.r = 0
	}
	q.msgUsed--
	k.trace.QueueTake(k.cur.index, q.index)

	request := false
	if !q.putWait.isEmpty() {
		request = k.queueRelease(&q.putWait, 0)
	}
	k.criticalExit()

	if request {
		k.schedule()
	}
	return v, nil
}

// QueuePeek returns the oldest message in place, without removing it,
// waiting up to timeout ticks for one. The returned slice aliases the
// queue buffer: it is valid only until the next take or purge on this
// queue, and other receivers may race for it.
func (k *Kernel) QueuePeek(id Handle, timeout uint32) ([]byte, error) {
	q, err := k.getQueue(id)
	if err != nil {
		return nil, err
	}
	if q.flags&queueFlagPointer != 0 {
		k.notify(NotifyError, id)
		return nil, ErrState
	}

	for {
		k.enterTask()
		if q.msgUsed != 0 {
			break
		}
		if err := k.queueWait(q, false, timeout, false); err != nil {
			k.criticalExit()
			return nil, err
		}
		k.criticalExit()
	}

	off := int(q.r) * int(q.msgSize)
	msg := q.buf[off : off+int(q.msgSize)]
	k.criticalExit()
	return msg, nil
}

// QueuePurge drops the oldest message, if any. Use with caution when
// several receivers share the queue.
func (k *Kernel) QueuePurge(id Handle) error {
	q, err := k.getQueue(id)
	if err != nil {
		return err
	}

	k.enterTask()
	request := false
	if q.msgUsed != 0 {
		if q.flags&queueFlagPointer != 0 {
			q.ptrs[q.r] = nil
		}
		q.r++
		if q.r == q.msgCount {
			q.r = 0
		}
		q.msgUsed--
		if !q.putWait.isEmpty() {
			request = k.queueRelease(&q.putWait, 0)
		}
	}
	k.criticalExit()

	if request {
		k.schedule()
	}
	return nil
}

// QueueCount returns the number of messages currently buffered.
func (k *Kernel) QueueCount(id Handle) (int, error) {
	q, err := k.getQueue(id)
	if err != nil {
		return 0, err
	}
	k.criticalEnter()
	n := int(q.msgUsed)
	k.criticalExit()
	return n, nil
}
