// Copyright 2026 The rtkern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignalWaitAny(t *testing.T) {
	e := newTestEnv(t)
	k := e.k

	var got atomic.Value
	id, err := k.TaskCreate(2, "t", func(any) {
		sigs, err := k.SignalWait(0b101, false, 0)
		require.NoError(t, err)
		got.Store(sigs)
	}, nil, nil, 64, 0)
	require.NoError(t, err)

	e.start()
	e.waitState(id, StateSigWait)

	// A bit outside the mask latches but does not wake.
	e.isr(func() { require.NoError(t, k.SignalSend(id, 0b010)) })
	require.Equal(t, StateSigWait, e.state(id))

	e.isr(func() { require.NoError(t, k.SignalSend(id, 0b100)) })
	require.Eventually(t, func() bool { return got.Load() != nil },
		waitFor, pollTick)
	require.Equal(t, Signals(0b100), got.Load().(Signals))
}

func TestSignalWaitAll(t *testing.T) {
	e := newTestEnv(t)
	k := e.k

	var got atomic.Value
	id, err := k.TaskCreate(2, "t", func(any) {
		sigs, err := k.SignalWait(0b11, true, 0)
		require.NoError(t, err)
		got.Store(sigs)
	}, nil, nil, 64, 0)
	require.NoError(t, err)

	e.start()
	e.waitState(id, StateSigWait)

	e.isr(func() { require.NoError(t, k.SignalSend(id, 0b01)) })
	require.Equal(t, StateSigWait, e.state(id))

	e.isr(func() { require.NoError(t, k.SignalSend(id, 0b10)) })
	require.Eventually(t, func() bool { return got.Load() != nil },
		waitFor, pollTick)
	require.Equal(t, Signals(0b11), got.Load().(Signals))
}

// Signals sent before the wait are consumed immediately.
func TestSignalLatched(t *testing.T) {
	e := newTestEnv(t)
	k := e.k
	rec := &recorder{}

	var id Handle
	var err error
	id, err = k.TaskCreate(2, "t", func(any) {
		_ = k.TaskDelay(2)
		sigs, err := k.SignalWait(0b1, false, 0)
		require.NoError(t, err)
		require.Equal(t, Signals(0b1), sigs)
		rec.add("woke")
	}, nil, nil, 64, 0)
	require.NoError(t, err)

	e.start()
	e.waitState(id, StateDelayed)
	e.isr(func() { require.NoError(t, k.SignalSend(id, 0b1)) })

	e.tick(2)
	require.Eventually(t, func() bool { return rec.len() == 1 },
		waitFor, pollTick)
}

// Pulsed bits that complete no wait are dropped.
func TestSignalPulseDoesNotLatch(t *testing.T) {
	e := newTestEnv(t)
	k := e.k

	var res atomic.Value
	id, err := k.TaskCreate(2, "t", func(any) {
		_ = k.TaskDelay(2)
		// The pulse sent while we were delayed must be gone.
		_, err := k.SignalWait(0b1, false, 3)
		res.Store(err)
	}, nil, nil, 64, 0)
	require.NoError(t, err)

	e.start()
	e.waitState(id, StateDelayed)
	e.isr(func() { require.NoError(t, k.SignalPulse(id, 0b1)) })

	e.tick(2)
	e.waitState(id, StateSigWait)
	e.tick(3)
	require.Eventually(t, func() bool { return res.Load() != nil },
		waitFor, pollTick)
	require.ErrorIs(t, res.Load().(error), ErrTimeout)
}

// A pulse completing a wait in progress delivers normally.
func TestSignalPulseWakesWaiter(t *testing.T) {
	e := newTestEnv(t)
	k := e.k

	var got atomic.Value
	id, err := k.TaskCreate(2, "t", func(any) {
		sigs, err := k.SignalWait(0b10, false, 0)
		require.NoError(t, err)
		got.Store(sigs)
	}, nil, nil, 64, 0)
	require.NoError(t, err)

	e.start()
	e.waitState(id, StateSigWait)
	e.isr(func() { require.NoError(t, k.SignalPulse(id, 0b10)) })
	require.Eventually(t, func() bool { return got.Load() != nil },
		waitFor, pollTick)
	require.Equal(t, Signals(0b10), got.Load().(Signals))
}

func TestSignalWaitTimeout(t *testing.T) {
	e := newTestEnv(t)
	k := e.k

	var res atomic.Value
	id, err := k.TaskCreate(2, "t", func(any) {
		_, err := k.SignalWait(0b1, false, 4)
		res.Store(err)
	}, nil, nil, 64, 0)
	require.NoError(t, err)

	e.start()
	e.waitState(id, StateSigWait)
	e.tick(4)
	require.Eventually(t, func() bool { return res.Load() != nil },
		waitFor, pollTick)
	require.ErrorIs(t, res.Load().(error), ErrTimeout)
}
