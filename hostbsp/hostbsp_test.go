// Copyright 2026 The rtkern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hostbsp

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/veezhang/rtkern/kern"
)

func TestNewValidation(t *testing.T) {
	_, err := New(nil, 1000)
	require.Error(t, err)
	_, err = New(clock.NewMock(), 0)
	require.Error(t, err)
}

func TestTimestampFollowsClock(t *testing.T) {
	mock := clock.NewMock()
	b, err := New(mock, 1000)
	require.NoError(t, err)

	t0 := b.Timestamp()
	mock.Add(2 * time.Millisecond)
	require.Equal(t, uint32(2000), b.Timestamp()-t0)
}

func TestSetTickRate(t *testing.T) {
	b, err := New(clock.NewMock(), 1000)
	require.NoError(t, err)
	require.Error(t, b.SetTickRate(0))
	require.NoError(t, b.SetTickRate(100))
	require.Equal(t, 10*time.Millisecond, b.tickPeriod())
}

func TestStackFrame(t *testing.T) {
	b, err := New(clock.NewMock(), 1000)
	require.NoError(t, err)

	stack := make([]uint32, 64)
	for i := range stack {
		stack[i] = 0xFFFFFFFF
	}
	sp := b.StackFrame(stack)
	require.Equal(t, uint32(48), sp)
	for i := 48; i < 64; i++ {
		require.Zero(t, stack[i], "frame word %d", i)
	}
	require.Equal(t, uint32(0xFFFFFFFF), stack[47])
}

func TestRunDeliversTicks(t *testing.T) {
	mock := clock.NewMock()
	b, err := New(mock, 1000)
	require.NoError(t, err)

	k, err := kern.New(kern.DefaultConfig(), b)
	require.NoError(t, err)
	b.Attach(k)

	var woke atomic.Bool
	_, err = k.TaskCreate(2, "tNap", func(any) {
		_ = k.TaskDelay(3)
		woke.Store(true)
	}, nil, nil, 64, 0)
	require.NoError(t, err)

	go func() { _ = b.Run() }()
	go func() { _ = k.Start() }()
	t.Cleanup(k.Halt)
	t.Cleanup(b.Stop)

	require.Eventually(t, func() bool {
		mock.Add(time.Millisecond)
		return woke.Load()
	}, 5*time.Second, time.Millisecond)
}

func TestSleepEarlyInterrupt(t *testing.T) {
	mock := clock.NewMock()
	b, err := New(mock, 1000)
	require.NoError(t, err)

	done := make(chan struct{})
	var elapsed uint32
	var fired bool
	go func() {
		elapsed, fired = b.Sleep(100)
		close(done)
	}()

	// Sleep must give way to an asynchronous interrupt at once.
	require.Eventually(t, func() bool {
		b.Interrupt()
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, 5*time.Second, time.Millisecond)
	require.False(t, fired)
	require.Less(t, elapsed, uint32(100))
}
