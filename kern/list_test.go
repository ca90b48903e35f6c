// Copyright 2026 The rtkern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func listValues(h *listHead) []uint32 {
	var out []uint32
	for n := h.first(); !h.isEnd(n); n = n.next {
		out = append(out, n.value)
	}
	return out
}

func TestListBasics(t *testing.T) {
	var h listHead
	h.init()
	require.True(t, h.isEmpty())
	require.False(t, h.count1())
	require.Nil(t, h.removeHead())

	n1 := &listNode{value: 1}
	n2 := &listNode{value: 2}
	n3 := &listNode{value: 3}

	h.addTail(n1)
	require.False(t, h.isEmpty())
	require.True(t, h.count1())
	require.True(t, n1.inUse())

	h.addTail(n2)
	h.addHead(n3)
	require.Equal(t, []uint32{3, 1, 2}, listValues(&h))

	h.remove(n1)
	require.False(t, n1.inUse())
	require.Equal(t, []uint32{3, 2}, listValues(&h))

	first := h.removeHead()
	require.Same(t, n3, first)
	require.True(t, h.count1())
}

func TestListOrderedInsertDescending(t *testing.T) {
	var h listHead
	h.init()

	for _, v := range []uint32{2, 5, 1, 3} {
		h.addOrdered(&listNode{value: v})
	}
	require.Equal(t, []uint32{5, 3, 2, 1}, listValues(&h))
}

// Equal values go in before their peers: last in, first out, as the
// wait lists tie-break at equal priority.
func TestListOrderedInsertLIFOTie(t *testing.T) {
	var h listHead
	h.init()

	a := &listNode{value: 3, owner: "a"}
	b := &listNode{value: 3, owner: "b"}
	c := &listNode{value: 3, owner: "c"}
	h.addOrdered(a)
	h.addOrdered(b)
	h.addOrdered(c)

	require.Same(t, c, h.first())
	require.Same(t, b, h.first().next)
	require.Same(t, a, h.first().next.next)
}

func TestListOrderedAroundExisting(t *testing.T) {
	var h listHead
	h.init()
	h.addOrdered(&listNode{value: 7})
	h.addOrdered(&listNode{value: 1})

	mid := &listNode{value: 4}
	h.addOrdered(mid)
	require.Equal(t, []uint32{7, 4, 1}, listValues(&h))

	top := &listNode{value: 9}
	h.addOrdered(top)
	require.Same(t, top, h.first())

	bottom := &listNode{value: 0}
	h.addOrdered(bottom)
	require.Equal(t, []uint32{9, 7, 4, 1, 0}, listValues(&h))
}
