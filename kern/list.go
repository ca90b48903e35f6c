// Copyright 2026 The rtkern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

// Intrusive doubly linked list with a sentinel head.
//
// The head's sentinel node makes the list in practice never empty: an empty
// list is one whose sentinel points to itself, so insertion and removal
// need no empty-list branches. A node that is not in any list has nil next
// and prev pointers, which is how the kernel tells whether a TCB currently
// sits in the delayed list.
//
// This list is intrusive: nodes are embedded in the structures they link
// (TCBs embed two, one for the state list and one for the wait list). owner
// points back at the embedding structure. value is user data; the delayed
// and timer lists keep tick deltas there, the wait lists keep the waiter's
// priority.

type listNode struct {
	next  *listNode
	prev  *listNode
	owner any
	value uint32
}

type listHead struct {
	root listNode
}

func (h *listHead) init() {
	h.root.next = &h.root
	h.root.prev = &h.root
}

// sentinel returns the head's sentinel node, the end-of-list iterator.
func (h *listHead) sentinel() *listNode { return &h.root }

func (n *listNode) clear() {
	n.next = nil
	n.prev = nil
}

// inUse reports whether n is linked into some list.
func (n *listNode) inUse() bool { return n.next != nil }

// addAfter inserts n after pos. pos may be the sentinel, which inserts at
// the head of the list.
func (h *listHead) addAfter(pos, n *listNode) {
	n.next = pos.next
	n.prev = pos
	pos.next.prev = n
	pos.next = n
}

func (h *listHead) addHead(n *listNode) { h.addAfter(&h.root, n) }

func (h *listHead) addTail(n *listNode) { h.addAfter(h.root.prev, n) }

func (h *listHead) remove(n *listNode) {
	n.prev.next = n.next
	n.next.prev = n.prev
	n.clear()
}

func (h *listHead) isEmpty() bool { return h.root.next == &h.root }

// count1 reports whether the list holds exactly one node.
func (h *listHead) count1() bool {
	return h.root.next != &h.root && h.root.next == h.root.prev
}

// isEnd reports whether n is the sentinel of h.
func (h *listHead) isEnd(n *listNode) bool { return n == &h.root }

// isLast reports whether n is the last node of h. True for the sentinel of
// an empty list.
func (h *listHead) isLast(n *listNode) bool { return n.next == &h.root }

func (h *listHead) first() *listNode { return h.root.next }

// removeHead removes and returns the first node, or nil if the list is
// empty.
func (h *listHead) removeHead() *listNode {
	n := h.root.next
	if n == &h.root {
		return nil
	}
	h.remove(n)
	return n
}

// addOrdered inserts n so the list stays ordered by decreasing value. For
// the synchronization wait lists value is the waiter's priority, so the
// head is the highest-priority waiter and waiters of equal priority are
// last in, first out.
func (h *listHead) addOrdered(n *listNode) {
	pos := &h.root
	for !h.isLast(pos) {
		if pos.next.value <= n.value {
			break
		}
		pos = pos.next
	}
	h.addAfter(pos, n)
}
