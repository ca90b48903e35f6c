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

// Tick stretch: with nothing runnable and a timer due in 1000 ticks the
// idle task sleeps for the whole interval; an asynchronous wakeup at 400
// elapsed ticks replays exactly 400, the kernel re-sleeps for the 600
// remaining, and the timer fires at absolute tick 1000.
func TestTickStretchReplaysElapsedTicks(t *testing.T) {
	var (
		mu     sync.Mutex
		sleeps []uint32
		stop   = make(chan struct{})
		once   sync.Once
	)
	e := newTestEnv(t, func(c *Config) { c.TickStretch = true })
	t.Cleanup(func() { once.Do(func() { close(stop) }) })

	e.port.sleepFn = func(n uint32) (uint32, bool) {
		mu.Lock()
		sleeps = append(sleeps, n)
		call := len(sleeps)
		mu.Unlock()
		switch call {
		case 1:
			// Early asynchronous wakeup after 400 of the 1000 ticks.
			return 400, false
		case 2:
			// Full expiry: all but the final tick elapsed.
			return n - 1, true
		default:
			<-stop
			return 0, false
		}
	}

	var firedAt atomic.Uint32
	tm, err := e.k.TimerCreate()
	require.NoError(t, err)
	require.NoError(t, e.k.TimerSet(tm, func(any) bool {
		firedAt.Store(e.k.TickCount())
		return false
	}, nil, 1000))
	require.NoError(t, e.k.TimerStart(tm))

	e.start()

	require.Eventually(t, func() bool { return firedAt.Load() != 0 },
		waitFor, pollTick, "timer never fired")
	require.Equal(t, uint32(1000), firedAt.Load(),
		"timer must fire at absolute tick 1000")

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(sleeps), 2)
	require.Equal(t, uint32(1000), sleeps[0], "first sleep covers the full interval")
	require.Equal(t, uint32(600), sleeps[1], "second sleep covers the remainder")
}

// The stretched sleep also honours the delayed task list: the sleep
// request is the minimum of the two deadline lists.
func TestTickStretchUsesNearestDeadline(t *testing.T) {
	var (
		mu     sync.Mutex
		sleeps []uint32
		stop   = make(chan struct{})
		once   sync.Once
	)
	e := newTestEnv(t, func(c *Config) { c.TickStretch = true })
	t.Cleanup(func() { once.Do(func() { close(stop) }) })
	k := e.k

	e.port.sleepFn = func(n uint32) (uint32, bool) {
		mu.Lock()
		sleeps = append(sleeps, n)
		call := len(sleeps)
		mu.Unlock()
		if call == 1 {
			return n - 1, true
		}
		<-stop
		return 0, false
	}

	tm, err := k.TimerCreate()
	require.NoError(t, err)
	require.NoError(t, k.TimerSet(tm, func(any) bool { return false }, nil, 500))
	require.NoError(t, k.TimerStart(tm))

	var woke atomic.Bool
	_, err = k.TaskCreate(2, "tNap", func(any) {
		require.NoError(t, k.TaskDelay(200))
		woke.Store(true)
	}, nil, nil, 64, 0)
	require.NoError(t, err)

	e.start()
	require.Eventually(t, func() bool { return woke.Load() },
		waitFor, pollTick)
	require.Equal(t, uint32(200), k.TickCount(),
		"task due at tick 200 must wake at 200 exactly")

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, uint32(200), sleeps[0],
		"sleep must be bounded by the nearest deadline")
}

// Ticks delivered while several deadlines expire together wake every
// task whose delta reached zero.
func TestTickWakesCoincidentDeadlines(t *testing.T) {
	e := newTestEnv(t)
	k := e.k

	var wakes atomic.Int32
	for i := 0; i < 3; i++ {
		_, err := k.TaskCreate(2, "", func(any) {
			require.NoError(t, k.TaskDelay(4))
			wakes.Add(1)
		}, nil, nil, 64, 0)
		require.NoError(t, err)
	}

	e.start()
	e.settle()
	require.Equal(t, []uint32{4, 4, 4}, e.delayedRemaining())

	e.tick(4)
	require.Eventually(t, func() bool { return wakes.Load() == 3 },
		waitFor, pollTick)
	require.Empty(t, e.delayedRemaining())
	e.checkInvariants()
}
