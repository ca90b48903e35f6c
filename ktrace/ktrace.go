// Copyright 2026 The rtkern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ktrace adapts the kernel trace hooks to a zap logger. Intended
// for development: most hooks run inside the critical section, so a slow
// sink stretches the critical windows. Production keeps the default
// no-op tracer.
package ktrace

import "go.uber.org/zap"

// Tracer logs every kernel trace event at debug level.
type Tracer struct {
	log *zap.Logger
}

// New returns a Tracer writing to log.
func New(log *zap.Logger) *Tracer {
	return &Tracer{log: log}
}

func (t *Tracer) TaskSwitch(from, to uint16) {
	t.log.Debug("task switch",
		zap.Uint16("from", from), zap.Uint16("to", to))
}

func (t *Tracer) TaskCreated(task uint16) {
	t.log.Debug("task created", zap.Uint16("task", task))
}

func (t *Tracer) TaskDeleted(task uint16) {
	t.log.Debug("task deleted", zap.Uint16("task", task))
}

func (t *Tracer) TaskReady(task uint16) {
	t.log.Debug("task ready", zap.Uint16("task", task))
}

func (t *Tracer) TaskDelayed(task uint16) {
	t.log.Debug("task delayed", zap.Uint16("task", task))
}

func (t *Tracer) TaskSuspended(task uint16) {
	t.log.Debug("task suspended", zap.Uint16("task", task))
}

func (t *Tracer) TaskResumed(task uint16) {
	t.log.Debug("task resumed", zap.Uint16("task", task))
}

func (t *Tracer) TaskPriority(task uint16, prio uint8) {
	t.log.Debug("task priority",
		zap.Uint16("task", task), zap.Uint8("prio", prio))
}

func (t *Tracer) MutexTake(task, mutex uint16) {
	t.log.Debug("mutex take",
		zap.Uint16("task", task), zap.Uint16("mutex", mutex))
}

func (t *Tracer) MutexGive(task, mutex uint16) {
	t.log.Debug("mutex give",
		zap.Uint16("task", task), zap.Uint16("mutex", mutex))
}

func (t *Tracer) MutexWait(task, mutex uint16) {
	t.log.Debug("mutex wait",
		zap.Uint16("task", task), zap.Uint16("mutex", mutex))
}

func (t *Tracer) SemTake(task, sem uint16) {
	t.log.Debug("sem take",
		zap.Uint16("task", task), zap.Uint16("sem", sem))
}

func (t *Tracer) SemGive(task, sem uint16) {
	t.log.Debug("sem give",
		zap.Uint16("task", task), zap.Uint16("sem", sem))
}

func (t *Tracer) SemWait(task, sem uint16) {
	t.log.Debug("sem wait",
		zap.Uint16("task", task), zap.Uint16("sem", sem))
}

func (t *Tracer) QueueGive(task, queue uint16) {
	t.log.Debug("queue give",
		zap.Uint16("task", task), zap.Uint16("queue", queue))
}

func (t *Tracer) QueueTake(task, queue uint16) {
	t.log.Debug("queue take",
		zap.Uint16("task", task), zap.Uint16("queue", queue))
}

func (t *Tracer) QueueWait(task, queue uint16) {
	t.log.Debug("queue wait",
		zap.Uint16("task", task), zap.Uint16("queue", queue))
}

func (t *Tracer) TimerExpired(timer uint16) {
	t.log.Debug("timer expired", zap.Uint16("timer", timer))
}

func (t *Tracer) Tick(count uint32) {
	t.log.Debug("tick", zap.Uint32("count", count))
}

func (t *Tracer) InterruptEnter() { t.log.Debug("interrupt enter") }

func (t *Tracer) InterruptExit() { t.log.Debug("interrupt exit") }
