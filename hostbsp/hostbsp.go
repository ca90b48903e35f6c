// Copyright 2026 The rtkern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hostbsp is the board support layer for running the kernel on a
// host: the tick source is a clock.Clock (the real clock in the demo,
// clock.NewMock in tests), delivered to the kernel through the interrupt
// entry points on a dedicated goroutine. With tick stretching enabled the
// periodic source pauses while the kernel sleeps and the programmed
// interval is waited on the same clock, so mocked time drives the whole
// power-saving path.
package hostbsp

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/veezhang/rtkern/kern"
)

// maxSleepTicks models the hardware sleep timer's reload cap.
const maxSleepTicks = 1 << 24

// BSP drives a kernel from a host clock.
type BSP struct {
	clk   clock.Clock
	epoch time.Time

	mu       sync.Mutex
	k        *kern.Kernel
	hz       uint32
	sleeping bool
	stopped  bool

	interrupt chan struct{} // external interrupt latch, wakes Sleep early
	stop      chan struct{}
	wg        sync.WaitGroup
}

// New builds a BSP ticking at hz on clk.
func New(clk clock.Clock, hz uint32) (*BSP, error) {
	if clk == nil || hz == 0 {
		return nil, errors.New("hostbsp: need a clock and a non-zero tick rate")
	}
	return &BSP{
		clk:       clk,
		epoch:     clk.Now(),
		hz:        hz,
		interrupt: make(chan struct{}, 1),
		stop:      make(chan struct{}),
	}, nil
}

// Attach binds the kernel whose interrupts this BSP delivers. Must be
// called before Run.
func (b *BSP) Attach(k *kern.Kernel) { b.k = k }

func (b *BSP) tickPeriod() time.Duration {
	b.mu.Lock()
	hz := b.hz
	b.mu.Unlock()
	return time.Second / time.Duration(hz)
}

// Run delivers periodic tick interrupts until Stop. Call on its own
// goroutine, after Attach and alongside Kernel.Start.
func (b *BSP) Run() error {
	if b.k == nil {
		return errors.New("hostbsp: no kernel attached")
	}
	b.wg.Add(1)
	defer b.wg.Done()

	period := b.tickPeriod()
	ticker := b.clk.Ticker(period)
	defer func() { ticker.Stop() }()
	for {
		select {
		case <-b.stop:
			return nil
		case <-ticker.C:
			if p := b.tickPeriod(); p != period {
				// SetTickRate changed the rate: reprogram the source.
				ticker.Stop()
				period = p
				ticker = b.clk.Ticker(period)
			}
			b.mu.Lock()
			skip := b.sleeping || b.stopped
			b.mu.Unlock()
			if skip {
				// The kernel owns time while it sleeps.
				continue
			}
			b.k.IntEnter()
			b.k.Tick()
			b.k.IntExit()
		}
	}
}

// Stop ends tick delivery and releases a sleeping kernel.
func (b *BSP) Stop() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	b.mu.Unlock()
	close(b.stop)
	b.wg.Wait()
}

// Interrupt simulates an asynchronous external interrupt: a sleeping
// kernel wakes early. Used by driver simulations delivering events.
func (b *BSP) Interrupt() {
	select {
	case b.interrupt <- struct{}{}:
	default:
	}
}

//--------------------------------------------------------------------------
// kern.Port

// Timestamp returns microseconds since the BSP epoch.
func (b *BSP) Timestamp() uint32 {
	return uint32(b.clk.Since(b.epoch) / time.Microsecond)
}

// SetTickRate reprograms the periodic tick frequency. Takes effect at
// the next Run ticker rollover.
func (b *BSP) SetTickRate(hz uint32) error {
	if hz == 0 {
		return errors.Wrap(kern.ErrArg, "hostbsp: tick rate")
	}
	b.mu.Lock()
	b.hz = hz
	b.mu.Unlock()
	return nil
}

// StackFrame lays the simulated initial frame: a return-address slot and
// the callee-saved register block, as the target port would.
func (b *BSP) StackFrame(stack []uint32) uint32 {
	top := len(stack)
	// 16 words: r4-r11, r0-r3, r12, lr, pc, xPSR on the modelled
	// target.
	for i := 1; i <= 16 && top-i >= 0; i++ {
		stack[top-i] = 0
	}
	return uint32(top - 16)
}

// MaxSleepTicks is the sleep timer reload cap.
func (b *BSP) MaxSleepTicks() uint32 { return maxSleepTicks }

// Sleep waits up to n ticks on the clock, returning early on an external
// interrupt or Stop. The final expiry tick is not counted and not
// delivered; the kernel replays elapsed time and runs the tick interrupt
// itself.
func (b *BSP) Sleep(n uint32) (uint32, bool) {
	period := b.tickPeriod()

	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return 0, false
	}
	b.sleeping = true
	b.mu.Unlock()

	start := b.clk.Now()
	timer := b.clk.Timer(time.Duration(n) * period)
	fired := false
	select {
	case <-timer.C:
		fired = true
	case <-b.interrupt:
		timer.Stop()
	case <-b.stop:
		timer.Stop()
	}

	b.mu.Lock()
	b.sleeping = false
	b.mu.Unlock()

	if fired {
		return n - 1, true
	}
	elapsed := uint32(b.clk.Since(start) / period)
	if elapsed >= n {
		elapsed = n - 1
	}
	return elapsed, false
}
