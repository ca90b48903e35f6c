// Copyright 2026 The rtkern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"encoding/binary"

	"go.uber.org/zap"

	"github.com/veezhang/rtkern/kern"
)

// scenarioRoundRobin: three tasks at one priority, each yielding in a
// loop. The switch order is strict round robin.
func scenarioRoundRobin(e *env, done chan<- struct{}) error {
	for _, name := range []string{"tA", "tB", "tC"} {
		name := name
		_, err := e.k.TaskCreate(3, name, func(any) {
			for i := 0; i < 5; i++ {
				e.log.Info("running", zap.String("task", name), zap.Int("round", i))
				_ = e.k.TaskYield()
			}
		}, nil, nil, 256, 0)
		if err != nil {
			return err
		}
	}
	return nil
}

// scenarioInherit: a low-priority owner, a middle spinner and a
// high-priority contender. Without inheritance the spinner would starve
// the owner; watch the owner's effective priority jump.
func scenarioInherit(e *env, done chan<- struct{}) error {
	k := e.k
	m, err := k.MutexCreate()
	if err != nil {
		return err
	}

	low, err := k.TaskCreate(1, "tLow", func(any) {
		_ = k.MutexTake(m, 0)
		for i := 0; i < 3; i++ {
			prio, _ := k.TaskPriority(kern.SelfTask)
			e.log.Info("owner working", zap.Uint8("effective_prio", prio))
			_ = k.TaskYield()
		}
		_ = k.MutexGive(m)
		e.log.Info("owner released")
	}, nil, nil, 256, 0)
	if err != nil {
		return err
	}

	if _, err = k.TaskCreate(2, "tMid", func(any) {
		for i := 0; i < 6; i++ {
			e.log.Info("middle spinning")
			_ = k.TaskDelay(1)
		}
	}, nil, nil, 256, 0); err != nil {
		return err
	}

	_, err = k.TaskCreate(3, "tHigh", func(any) {
		_ = k.TaskDelay(2)
		e.log.Info("contender wants the mutex")
		if err := k.MutexTake(m, 0); err == nil {
			e.log.Info("contender got the mutex")
			_ = k.MutexGive(m)
		}
		lowPrio, _ := k.TaskPriority(low)
		e.log.Info("owner after release", zap.Uint8("effective_prio", lowPrio))
	}, nil, nil, 256, 0)
	return err
}

// scenarioQueue: one producer, two consumers over a byte-copy queue.
func scenarioQueue(e *env, done chan<- struct{}) error {
	k := e.k
	q, err := k.QueueCreate(4, 8, nil, 0)
	if err != nil {
		return err
	}

	if _, err = k.TaskCreate(3, "tProd", func(any) {
		var msg [4]byte
		for i := uint32(0); i < 16; i++ {
			binary.LittleEndian.PutUint32(msg[:], i)
			_ = k.QueueGive(q, msg[:], 0)
			_ = k.TaskDelay(1)
		}
		_ = k.QueueDelete(q)
	}, nil, nil, 256, 0); err != nil {
		return err
	}

	for _, name := range []string{"tCons0", "tCons1"} {
		name := name
		if _, err = k.TaskCreate(2, name, func(any) {
			var msg [4]byte
			for {
				if _, err := k.QueueTake(q, msg[:], 0); err != nil {
					e.log.Info("consumer done", zap.String("task", name),
						zap.Error(err))
					return
				}
				e.log.Info("consumed", zap.String("task", name),
					zap.Uint32("msg", binary.LittleEndian.Uint32(msg[:])))
			}
		}, nil, nil, 256, 0); err != nil {
			return err
		}
	}
	return nil
}

// scenarioStretch: nothing runnable but one watchdog timer. The idle
// task sleeps through the port only when the config enables
// tick_stretch; the default config leaves it off, and the idle task then
// yields between periodic ticks. The timer fires on time either way.
func scenarioStretch(e *env, done chan<- struct{}) error {
	k := e.k

	tm, err := k.TimerCreate()
	if err != nil {
		return err
	}
	fired := 0
	if err = k.TimerSet(tm, func(any) bool {
		fired++
		e.log.Info("watchdog fired",
			zap.Int("count", fired), zap.Uint32("tick", k.TickCount()))
		return fired < 3
	}, nil, 500); err != nil {
		return err
	}

	_, err = k.TaskCreate(1, "tArm", func(any) {
		_ = k.TimerStart(tm)
		e.log.Info("timer armed, going quiet", zap.Uint32("tick", k.TickCount()))
	}, nil, nil, 256, 0)
	return err
}
