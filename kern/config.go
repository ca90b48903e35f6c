// Copyright 2026 The rtkern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kern

// Config fixes the kernel's pool sizes and feature set. Everything here is
// decided once, at New; the kernel never grows a pool afterwards.
type Config struct {
	// PrioCount is the number of priority levels. Priority 0 is reserved
	// for the idle task. The ready-queue accelerator uses one bitmap
	// word up to 32 levels, two words up to 64, and a two-level bitmap
	// beyond that.
	PrioCount int `yaml:"prio_count"`

	TaskMax    int `yaml:"task_max"`
	MutexMax   int `yaml:"mutex_max"`
	SemMax     int `yaml:"sem_max"`
	QueueMax   int `yaml:"queue_max"`
	BufPoolMax int `yaml:"bufpool_max"`
	TimerMax   int `yaml:"timer_max"`

	// TickRate is the tick frequency in Hz requested from the port.
	TickRate uint32 `yaml:"tick_rate"`

	// TickStretch lets the idle task coalesce idle ticks into one
	// programmed sleep through the port.
	TickStretch bool `yaml:"tick_stretch"`

	// WithTaskStat accumulates per-task CPU usage at every switch.
	WithTaskStat bool `yaml:"with_taskstat"`

	// WithCriticalStat keeps a high-water mark of the time spent inside
	// the critical section.
	WithCriticalStat bool `yaml:"with_criticalstat"`

	// WithArgCheck enables defensive validation of every handle at every
	// entry point.
	WithArgCheck bool `yaml:"with_argcheck"`

	// IdleStackSize is the word count of the idle task's stack.
	IdleStackSize int `yaml:"idle_stack_size"`

	// Tracer receives kernel trace events. Nil means no tracing.
	Tracer Tracer `yaml:"-"`

	// Notify receives asynchronous notifications. Nil means ignore.
	Notify NotifyFunc `yaml:"-"`

	// ReleaseStack is consulted when a task with an application-owned
	// stack is deleted. A non-nil error defers the TCB to the zombie
	// list for the idle task to retry. Nil means stacks release
	// immediately.
	ReleaseStack func(stack []uint32) error `yaml:"-"`
}

// DefaultConfig returns the configuration used by the demo board: eight
// priority levels and small fixed pools.
func DefaultConfig() Config {
	return Config{
		PrioCount:     8,
		TaskMax:       16,
		MutexMax:      8,
		SemMax:        8,
		QueueMax:      8,
		BufPoolMax:    4,
		TimerMax:      8,
		TickRate:      1000,
		WithArgCheck:  true,
		IdleStackSize: 128,
	}
}

func (c *Config) validate() error {
	if c.PrioCount < 2 || c.PrioCount > prioGroupBits*prioGroupBits {
		return ErrArg
	}
	if c.TaskMax < 2 || c.TaskMax > int(handleIndexMask) {
		return ErrArg
	}
	if c.MutexMax < 0 || c.SemMax < 0 || c.QueueMax < 0 ||
		c.BufPoolMax < 0 || c.TimerMax < 0 {
		return ErrArg
	}
	if c.IdleStackSize <= minStackWords {
		c.IdleStackSize = minStackWords + 1
	}
	return nil
}
