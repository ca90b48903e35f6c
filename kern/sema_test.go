// Copyright 2026 The rtkern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// give followed by take on a fresh zero semaphore never blocks.
func TestSemGiveThenTake(t *testing.T) {
	e := newTestEnv(t)
	k := e.k

	sem, err := k.SemCreate(0)
	require.NoError(t, err)

	var res atomic.Value
	_, err = k.TaskCreate(2, "t", func(any) {
		require.NoError(t, k.SemGive(sem))
		res.Store([]error{k.SemTake(sem, 0)})
	}, nil, nil, 64, 0)
	require.NoError(t, err)

	e.start()
	require.Eventually(t, func() bool { return res.Load() != nil },
		waitFor, pollTick)
	require.NoError(t, res.Load().([]error)[0])
}

func TestSemInitialCountAndTry(t *testing.T) {
	e := newTestEnv(t)
	k := e.k

	sem, err := k.SemCreate(2)
	require.NoError(t, err)

	var errs atomic.Value
	_, err = k.TaskCreate(2, "t", func(any) {
		e1 := k.SemTryTake(sem)
		e2 := k.SemTryTake(sem)
		e3 := k.SemTryTake(sem)
		errs.Store([]error{e1, e2, e3})
	}, nil, nil, 64, 0)
	require.NoError(t, err)

	e.start()
	require.Eventually(t, func() bool { return errs.Load() != nil },
		waitFor, pollTick)
	got := errs.Load().([]error)
	require.NoError(t, got[0])
	require.NoError(t, got[1])
	require.ErrorIs(t, got[2], ErrWouldBlock)
}

// A give from interrupt context hands off directly to the
// highest-priority waiter.
func TestSemGiveFromISRHandsOffByPriority(t *testing.T) {
	e := newTestEnv(t)
	k := e.k
	rec := &recorder{}

	sem, err := k.SemCreate(0)
	require.NoError(t, err)

	mk := func(name string, prio uint8) Handle {
		id, err := k.TaskCreate(prio, name, func(any) {
			require.NoError(t, k.SemTake(sem, 0))
			rec.add(name)
		}, nil, nil, 64, 0)
		require.NoError(t, err)
		return id
	}
	low := mk("tLow", 2)
	high := mk("tHigh", 4)
	mid := mk("tMid", 3)

	e.start()
	e.waitState(low, StateSemWait)
	e.waitState(high, StateSemWait)
	e.waitState(mid, StateSemWait)

	for i := 0; i < 3; i++ {
		e.isr(func() { require.NoError(t, k.SemGive(sem)) })
	}
	require.Eventually(t, func() bool { return rec.len() == 3 },
		waitFor, pollTick)
	require.Equal(t, []string{"tHigh", "tMid", "tLow"}, rec.list())

	// All hand-offs; the count never moved.
	k.criticalEnter()
	count := k.sems[sem.Index()].count
	k.criticalExit()
	require.Equal(t, int32(0), count)
}

func TestSemTakeTimeout(t *testing.T) {
	e := newTestEnv(t)
	k := e.k

	sem, err := k.SemCreate(0)
	require.NoError(t, err)

	var res atomic.Value
	id, err := k.TaskCreate(2, "t", func(any) {
		res.Store(k.SemTake(sem, 4))
	}, nil, nil, 64, 0)
	require.NoError(t, err)

	e.start()
	e.waitState(id, StateSemWait)
	e.tick(4)
	require.Eventually(t, func() bool { return res.Load() != nil },
		waitFor, pollTick)
	require.ErrorIs(t, res.Load().(error), ErrTimeout)
}

// Flush releases every waiter with ErrFlush before any of them runs; the
// count is untouched.
func TestSemFlushReleasesAllWaiters(t *testing.T) {
	e := newTestEnv(t)
	k := e.k

	sem, err := k.SemCreate(0)
	require.NoError(t, err)

	var flushed atomic.Int32
	ids := make([]Handle, 4)
	for i := range ids {
		id, err := k.TaskCreate(2, "", func(any) {
			if err := k.SemTake(sem, 10); err == ErrFlush {
				flushed.Add(1)
			}
		}, nil, nil, 64, 0)
		require.NoError(t, err)
		ids[i] = id
	}

	e.start()
	for _, id := range ids {
		e.waitState(id, StateSemWait)
	}

	e.isr(func() { require.NoError(t, k.SemFlush(sem)) })
	require.Eventually(t, func() bool { return flushed.Load() == 4 },
		waitFor, pollTick)

	// The waiters also left the delayed list.
	require.Empty(t, e.delayedRemaining())
	e.checkInvariants()
}

// Deleting a semaphore with waiters behaves as a flush.
func TestSemDeleteFlushesWaiters(t *testing.T) {
	e := newTestEnv(t)
	k := e.k

	sem, err := k.SemCreate(0)
	require.NoError(t, err)

	var res atomic.Value
	id, err := k.TaskCreate(2, "t", func(any) {
		res.Store(k.SemTake(sem, 0))
	}, nil, nil, 64, 0)
	require.NoError(t, err)

	e.start()
	e.waitState(id, StateSemWait)

	e.isr(func() { require.NoError(t, k.SemDelete(sem)) })
	require.Eventually(t, func() bool { return res.Load() != nil },
		waitFor, pollTick)
	require.ErrorIs(t, res.Load().(error), ErrFlush)
	require.False(t, k.SemIsValid(sem))
}

func TestSemResetRequiresNoWaiters(t *testing.T) {
	e := newTestEnv(t)
	k := e.k

	sem, err := k.SemCreate(3)
	require.NoError(t, err)
	require.NoError(t, k.SemReset(sem, -1))

	var res atomic.Value
	id, err := k.TaskCreate(2, "t", func(any) {
		res.Store(k.SemTake(sem, 0))
	}, nil, nil, 64, 0)
	require.NoError(t, err)

	e.start()
	e.waitState(id, StateSemWait)
	require.ErrorIs(t, k.SemReset(sem, 1), ErrState)

	e.isr(func() { _ = k.SemFlush(sem) })
	require.Eventually(t, func() bool { return res.Load() != nil },
		waitFor, pollTick)
}

func TestSemPoolDepletion(t *testing.T) {
	e := newTestEnv(t)
	k := e.k

	handles := make([]Handle, 0, k.cfg.SemMax)
	for i := 0; i < k.cfg.SemMax; i++ {
		h, err := k.SemCreate(0)
		require.NoError(t, err)
		handles = append(handles, h)
	}
	_, err := k.SemCreate(0)
	require.ErrorIs(t, err, ErrDepleted)

	require.NoError(t, k.SemDelete(handles[0]))
	_, err = k.SemCreate(0)
	require.NoError(t, err)
}
