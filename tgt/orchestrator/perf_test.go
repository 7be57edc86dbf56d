// (c) Copyright 2025 Hewlett Packard Enterprise Development LP

package orchestrator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hpe-storage/tgt-manager/tgt/cerrors"
	"github.com/hpe-storage/tgt-manager/tgt/executor/fake"
	"github.com/hpe-storage/tgt-manager/tgt/model"
	"github.com/hpe-storage/tgt-manager/tgt/perf"
	"github.com/stretchr/testify/assert"
)

func newMonitorOrchestrator(t *testing.T, d *fake.Tgtd) (*Orchestrator, perf.Paths) {
	dir := t.TempDir()
	paths := perf.Paths{
		ResultsFile:    filepath.Join(dir, "iscsi_performance.json"),
		MonitorScript:  filepath.Join(dir, "monitor_lun_performance.sh"),
		OptimizeScript: filepath.Join(dir, "optimize_lun.sh"),
	}
	assert.Nil(t, os.WriteFile(paths.MonitorScript, []byte("#!/bin/bash\n"), 0755))
	d.Script(paths.MonitorScript, "").Script(paths.OptimizeScript, "tuned 2 LUNs\n")
	o, _ := newTestOrchestrator(d, Options{Monitor: perf.NewMonitor(d, paths)})
	return o, paths
}

func TestPerformanceNotConfigured(t *testing.T) {
	o, _ := newTestOrchestrator(fake.New(), Options{})
	for name, call := range map[string]func() *model.Result{
		"Performance":  o.Performance,
		"StartMonitor": o.StartMonitor,
		"StopMonitor":  o.StopMonitor,
		"Optimize":     o.Optimize,
	} {
		result := call()
		assert.False(t, result.Success, name)
		assert.Equal(t, cerrors.Unavailable.String(), result.ErrorCode, name)
	}
}

func TestMonitorLifecycle(t *testing.T) {
	d := fake.New()
	o, paths := newMonitorOrchestrator(t, d)

	result := o.Performance()
	assert.False(t, result.Success)
	assert.Equal(t, cerrors.MonitorNotRunning.String(), result.ErrorCode)

	result = o.StartMonitor()
	assert.True(t, result.Success)
	assert.Equal(t, &model.MonitorState{Running: true, Pid: "4242"}, result.Data)

	assert.Nil(t, os.WriteFile(paths.ResultsFile, []byte(`{"luns":[]}`), 0644))
	result = o.Performance()
	assert.True(t, result.Success)
	performance := result.Data.(*model.Performance)
	assert.True(t, performance.Running)
	assert.JSONEq(t, `{"luns":[]}`, string(performance.Samples))

	result = o.StopMonitor()
	assert.True(t, result.Success)
	result = o.StopMonitor()
	assert.Equal(t, cerrors.MonitorNotRunning.String(), result.ErrorCode)

	assert.Nil(t, os.Remove(paths.MonitorScript))
	result = o.StartMonitor()
	assert.Equal(t, cerrors.ScriptNotFound.String(), result.ErrorCode)
}

func TestOptimize(t *testing.T) {
	d := fake.New()
	o, _ := newMonitorOrchestrator(t, d)

	result := o.Optimize()
	assert.True(t, result.Success)
	assert.Equal(t, "tuned 2 LUNs\n", result.Data.(*model.CommandDetails).Stdout)

	d.Fail("optimize_lun.sh", 0, "optimize_lun.sh: unable to set nr_requests")
	result = o.Optimize()
	assert.False(t, result.Success)
	assert.Equal(t, cerrors.CommandFailed.String(), result.ErrorCode)
	assert.Equal(t, "optimize_lun.sh: unable to set nr_requests", result.Error)
	assert.Empty(t, d.CallsMatching("tgtadm"))
}
