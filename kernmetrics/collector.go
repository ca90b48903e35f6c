// Copyright 2026 The rtkern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package kernmetrics exports the kernel's task-stat and critical-stat
// instrumentation as Prometheus metrics. Scraping takes one kernel
// snapshot; per-task series are labelled by task name and handle.
package kernmetrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/veezhang/rtkern/kern"
)

// Collector implements prometheus.Collector over a kernel.
type Collector struct {
	k *kern.Kernel

	tickCount     *prometheus.Desc
	cpuTotal      *prometheus.Desc
	criticalUsage *prometheus.Desc
	taskCPU       *prometheus.Desc
	taskPrio      *prometheus.Desc
	taskStackFree *prometheus.Desc
	taskState     *prometheus.Desc
}

// New returns a Collector for k.
func New(k *kern.Kernel) *Collector {
	taskLabels := []string{"task", "name"}
	return &Collector{
		k: k,
		tickCount: prometheus.NewDesc("rtkern_tick_count",
			"Kernel tick counter.", nil, nil),
		cpuTotal: prometheus.NewDesc("rtkern_cpu_usage_total",
			"Accumulated CPU time of all tasks, port timestamp units.", nil, nil),
		criticalUsage: prometheus.NewDesc("rtkern_critical_usage_max",
			"Longest observed critical section, port timestamp units.", nil, nil),
		taskCPU: prometheus.NewDesc("rtkern_task_cpu_usage",
			"Accumulated CPU time of a task, port timestamp units.", taskLabels, nil),
		taskPrio: prometheus.NewDesc("rtkern_task_priority",
			"Current effective priority of a task.", taskLabels, nil),
		taskStackFree: prometheus.NewDesc("rtkern_task_stack_free_words",
			"Never-used stack words of a task (stack check tasks only).", taskLabels, nil),
		taskState: prometheus.NewDesc("rtkern_task_state",
			"Task state enum value.", taskLabels, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.tickCount
	ch <- c.cpuTotal
	ch <- c.criticalUsage
	ch <- c.taskCPU
	ch <- c.taskPrio
	ch <- c.taskStackFree
	ch <- c.taskState
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.k.Info()

	ch <- prometheus.MustNewConstMetric(c.tickCount,
		prometheus.CounterValue, float64(s.TickCount))
	ch <- prometheus.MustNewConstMetric(c.cpuTotal,
		prometheus.CounterValue, float64(s.CPUTotal))
	ch <- prometheus.MustNewConstMetric(c.criticalUsage,
		prometheus.GaugeValue, float64(s.CriticalUsage))

	for _, t := range s.Tasks {
		id := strconv.Itoa(int(t.ID.Index()))
		ch <- prometheus.MustNewConstMetric(c.taskCPU,
			prometheus.CounterValue, float64(t.CPUUsage), id, t.Name)
		ch <- prometheus.MustNewConstMetric(c.taskPrio,
			prometheus.GaugeValue, float64(t.Priority), id, t.Name)
		ch <- prometheus.MustNewConstMetric(c.taskStackFree,
			prometheus.GaugeValue, float64(t.StackFree), id, t.Name)
		ch <- prometheus.MustNewConstMetric(c.taskState,
			prometheus.GaugeValue, float64(t.State), id, t.Name)
	}
}
