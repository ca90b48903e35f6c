// Copyright 2026 The rtkern Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernmetrics

import (
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/veezhang/rtkern/hostbsp"
	"github.com/veezhang/rtkern/kern"
)

func TestCollectorExportsKernelState(t *testing.T) {
	bsp, err := hostbsp.New(clock.NewMock(), 1000)
	require.NoError(t, err)
	k, err := kern.New(kern.DefaultConfig(), bsp)
	require.NoError(t, err)

	_, err = k.TaskCreate(2, "tWork", func(any) {}, nil, nil, 64, kern.FlagSuspended)
	require.NoError(t, err)

	c := New(k)
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))

	// 3 kernel series plus 4 per task (idle + tWork).
	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	require.Equal(t, 3+4*2, n)
}
