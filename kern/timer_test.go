// Copyright 2026 The rtkern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTimerFiresAtTimeout(t *testing.T) {
	e := newTestEnv(t)
	k := e.k

	var firedAt atomic.Uint32
	tm, err := k.TimerCreate()
	require.NoError(t, err)
	require.NoError(t, k.TimerSet(tm, func(any) bool {
		firedAt.Store(k.TickCount())
		return false
	}, nil, 5))
	require.NoError(t, k.TimerStart(tm))

	e.tick(4)
	require.Zero(t, firedAt.Load())
	e.tick(1)
	require.Equal(t, uint32(5), firedAt.Load())

	// One-shot: no further expiry.
	e.tick(10)
	require.Equal(t, uint32(5), firedAt.Load())
}

func TestTimerPeriodicRestart(t *testing.T) {
	e := newTestEnv(t)
	k := e.k

	var mu sync.Mutex
	var fires []uint32
	tm, err := k.TimerCreate()
	require.NoError(t, err)
	require.NoError(t, k.TimerSet(tm, func(any) bool {
		mu.Lock()
		fires = append(fires, k.TickCount())
		mu.Unlock()
		return len(fires) < 3
	}, nil, 4))
	require.NoError(t, k.TimerStart(tm))

	e.tick(12)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []uint32{4, 8, 12}, fires)
}

func TestTimerDeltaOrdering(t *testing.T) {
	e := newTestEnv(t)
	k := e.k

	var mu sync.Mutex
	var order []string
	mk := func(name string, timeout uint32) Handle {
		tm, err := k.TimerCreate()
		require.NoError(t, err)
		require.NoError(t, k.TimerSet(tm, func(any) bool {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return false
		}, nil, timeout))
		require.NoError(t, k.TimerStart(tm))
		return tm
	}
	mk("c", 7)
	mk("a", 2)
	mk("b", 5)

	e.tick(7)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"a", "b", "c"}, order)
}

// start(timer); stop(timer) leaves the timer exactly as after set.
func TestTimerStartStopRoundTrip(t *testing.T) {
	e := newTestEnv(t)
	k := e.k

	var fired atomic.Int32
	tm, err := k.TimerCreate()
	require.NoError(t, err)
	require.NoError(t, k.TimerSet(tm, func(any) bool {
		fired.Add(1)
		return false
	}, nil, 3))

	require.NoError(t, k.TimerStart(tm))
	require.NoError(t, k.TimerStop(tm))
	// Stopping again is a no-op.
	require.NoError(t, k.TimerStop(tm))

	e.tick(10)
	require.Zero(t, fired.Load())

	// Still armed correctly after the round trip.
	require.NoError(t, k.TimerStart(tm))
	e.tick(3)
	require.Equal(t, int32(1), fired.Load())
}

// Starting a running timer restarts it from the full reload.
func TestTimerRestartWhileRunning(t *testing.T) {
	e := newTestEnv(t)
	k := e.k

	var firedAt atomic.Uint32
	tm, err := k.TimerCreate()
	require.NoError(t, err)
	require.NoError(t, k.TimerSet(tm, func(any) bool {
		firedAt.Store(k.TickCount())
		return false
	}, nil, 5))
	require.NoError(t, k.TimerStart(tm))

	e.tick(3)
	require.NoError(t, k.TimerStart(tm)) // restart at tick 3
	e.tick(4)
	require.Zero(t, firedAt.Load())
	e.tick(1)
	require.Equal(t, uint32(8), firedAt.Load())
}

func TestTimerLifecycleRules(t *testing.T) {
	e := newTestEnv(t)
	k := e.k

	tm, err := k.TimerCreate()
	require.NoError(t, err)

	// Unset timers cannot start.
	require.ErrorIs(t, k.TimerStart(tm), ErrState)

	// Bad parameters.
	require.ErrorIs(t, k.TimerSet(tm, nil, nil, 5), ErrArg)
	require.ErrorIs(t, k.TimerSet(tm, func(any) bool { return false }, nil, 0), ErrArg)
	require.ErrorIs(t, k.TimerSet(tm, func(any) bool { return false }, nil, Infinite), ErrArg)

	require.NoError(t, k.TimerSet(tm, func(any) bool { return false }, nil, 5))
	require.NoError(t, k.TimerStart(tm))
	// Set while running is refused.
	require.ErrorIs(t, k.TimerSet(tm, func(any) bool { return false }, nil, 6), ErrState)

	require.NoError(t, k.TimerDelete(tm))
	require.False(t, k.TimerIsValid(tm))
	require.ErrorIs(t, k.TimerStart(tm), ErrArg)

	// Pool depletion.
	handles := make([]Handle, 0, k.cfg.TimerMax)
	for i := 0; i < k.cfg.TimerMax; i++ {
		h, err := k.TimerCreate()
		require.NoError(t, err)
		handles = append(handles, h)
	}
	_, err = k.TimerCreate()
	require.ErrorIs(t, err, ErrDepleted)
	require.NoError(t, k.TimerDelete(handles[0]))
	_, err = k.TimerCreate()
	require.NoError(t, err)
}
