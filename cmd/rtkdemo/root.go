// Copyright 2026 The rtkern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"net/http"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/veezhang/rtkern/hostbsp"
	"github.com/veezhang/rtkern/kern"
	"github.com/veezhang/rtkern/kernmetrics"
	"github.com/veezhang/rtkern/ktrace"
)

type options struct {
	configPath  string
	metricsAddr string
	debug       bool
	duration    time.Duration
}

func (o *options) bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.configPath, "config", "c", "", "kernel config YAML")
	fs.StringVar(&o.metricsAddr, "metrics", "", "expose /metrics on this address")
	fs.BoolVar(&o.debug, "debug", false, "log every kernel trace event")
	fs.DurationVarP(&o.duration, "duration", "d", 3*time.Second, "scenario run time")
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "rtkdemo",
		Short:         "Run rtkern demonstration scenarios on the host port",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	opts.bind(root.PersistentFlags())

	root.AddCommand(
		newScenarioCmd(opts, "roundrobin",
			"Three equal-priority tasks sharing the CPU by yield", scenarioRoundRobin),
		newScenarioCmd(opts, "inherit",
			"Priority inheritance across a mutex owner chain", scenarioInherit),
		newScenarioCmd(opts, "queue",
			"Producer/consumer pipeline over a message queue", scenarioQueue),
		newScenarioCmd(opts, "stretch",
			"Watchdog timer on an idle system (tick stretching when the config enables it)", scenarioStretch),
	)
	return root
}

func loadConfig(path string) (kern.Config, error) {
	cfg := kern.DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, errors.Wrap(err, "parse config")
	}
	return cfg, nil
}

// env is one assembled scenario environment: kernel, BSP, logging.
type env struct {
	k   *kern.Kernel
	bsp *hostbsp.BSP
	log *zap.Logger
}

type scenarioFunc func(e *env, done chan<- struct{}) error

func newScenarioCmd(opts *options, name, short string, fn scenarioFunc) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(opts, fn)
		},
	}
}

func runScenario(opts *options, fn scenarioFunc) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}

	var log *zap.Logger
	if opts.debug {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		return errors.Wrap(err, "logger")
	}
	defer func() { _ = log.Sync() }()

	bsp, err := hostbsp.New(clock.New(), cfg.TickRate)
	if err != nil {
		return err
	}
	if opts.debug {
		cfg.Tracer = ktrace.New(log.Named("trace"))
	}

	k, err := kern.New(cfg, bsp)
	if err != nil {
		return errors.Wrap(err, "kernel")
	}
	bsp.Attach(k)

	e := &env{k: k, bsp: bsp, log: log}
	done := make(chan struct{})
	if err := fn(e, done); err != nil {
		return err
	}

	var g errgroup.Group
	g.Go(bsp.Run)
	g.Go(k.Start)

	var srv *http.Server
	if opts.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		if err := reg.Register(kernmetrics.New(k)); err != nil {
			return errors.Wrap(err, "metrics")
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv = &http.Server{Addr: opts.metricsAddr, Handler: mux}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}

	select {
	case <-done:
	case <-time.After(opts.duration):
	}

	snapshot := k.Info()
	for _, t := range snapshot.Tasks {
		log.Info("task",
			zap.String("name", t.Name),
			zap.String("state", t.State.String()),
			zap.Uint8("prio", t.Priority),
			zap.Uint32("cpu", t.CPUUsage),
			zap.Uint32("stack_free", t.StackFree))
	}
	log.Info("kernel",
		zap.Uint32("ticks", snapshot.TickCount),
		zap.Uint32("critical_max", snapshot.CriticalUsage))

	bsp.Stop()
	k.Halt()
	if srv != nil {
		_ = srv.Close()
	}
	return g.Wait()
}
