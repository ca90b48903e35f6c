// Copyright 2026 The rtkern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBufPoolTakeGive(t *testing.T) {
	e := newTestEnv(t)
	k := e.k

	p, err := k.BufPoolCreate(3, 8, nil)
	require.NoError(t, err)

	n, err := k.BufPoolCount(p)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	var blocks [][]byte
	for i := 0; i < 3; i++ {
		b, err := k.BufPoolTake(p)
		require.NoError(t, err)
		require.Len(t, b, 8)
		blocks = append(blocks, b)
	}
	_, err = k.BufPoolTake(p)
	require.ErrorIs(t, err, ErrDepleted)

	// Blocks are distinct slots.
	blocks[0][0] = 1
	blocks[1][0] = 2
	require.NotEqual(t, blocks[0][0], blocks[1][0])

	for _, b := range blocks {
		require.NoError(t, k.BufPoolGive(p, b))
	}
	n, _ = k.BufPoolCount(p)
	require.Equal(t, 3, n)
}

func TestBufPoolGiveValidation(t *testing.T) {
	e := newTestEnv(t)
	k := e.k

	p, err := k.BufPoolCreate(2, 8, nil)
	require.NoError(t, err)

	// Foreign memory.
	require.ErrorIs(t, k.BufPoolGive(p, make([]byte, 8)), ErrArg)

	b, err := k.BufPoolTake(p)
	require.NoError(t, err)
	// Not on a slot boundary.
	require.ErrorIs(t, k.BufPoolGive(p, b[1:]), ErrArg)
	require.NoError(t, k.BufPoolGive(p, b))

	// Giving more than the pool holds is refused.
	require.ErrorIs(t, k.BufPoolGive(p, b), ErrState)
}

func TestBufPoolDeleteAndReset(t *testing.T) {
	e := newTestEnv(t)
	k := e.k

	p, err := k.BufPoolCreate(2, 8, nil)
	require.NoError(t, err)

	b, err := k.BufPoolTake(p)
	require.NoError(t, err)
	_ = b

	// A block is out: plain delete is refused.
	require.ErrorIs(t, k.BufPoolDelete(p, false), ErrState)

	// Reset reclaims everything.
	require.NoError(t, k.BufPoolReset(p))
	n, _ := k.BufPoolCount(p)
	require.Equal(t, 2, n)

	require.NoError(t, k.BufPoolDelete(p, false))
	require.False(t, k.BufPoolIsValid(p))
	_, err = k.BufPoolTake(p)
	require.ErrorIs(t, err, ErrArg)
}

func TestBufPoolUserBuffer(t *testing.T) {
	e := newTestEnv(t)
	k := e.k

	backing := make([]byte, 4*4)
	p, err := k.BufPoolCreate(4, 4, backing)
	require.NoError(t, err)

	b, err := k.BufPoolTake(p)
	require.NoError(t, err)
	b[0] = 0xEE
	require.Contains(t, backing, byte(0xEE))

	_, err = k.BufPoolCreate(4, 4, make([]byte, 3))
	require.ErrorIs(t, err, ErrArg)
}
