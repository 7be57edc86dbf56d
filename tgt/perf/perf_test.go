// (c) Copyright 2025 Hewlett Packard Enterprise Development LP

package perf

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/hpe-storage/tgt-manager/tgt/cerrors"
	"github.com/hpe-storage/tgt-manager/tgt/executor/fake"
	"github.com/hpe-storage/tgt-manager/tgt/model"
	"github.com/stretchr/testify/assert"
)

// newTestMonitor installs a monitor script in a temporary directory and registers it with d
func newTestMonitor(t *testing.T, d *fake.Tgtd) (*Monitor, Paths) {
	dir := t.TempDir()
	paths := Paths{
		ResultsFile:    filepath.Join(dir, "iscsi_performance.json"),
		MonitorScript:  filepath.Join(dir, "optimize dir", "monitor_lun_performance.sh"),
		OptimizeScript: filepath.Join(dir, "optimize_lun.sh"),
	}
	assert.Nil(t, os.MkdirAll(filepath.Dir(paths.MonitorScript), 0755))
	assert.Nil(t, os.WriteFile(paths.MonitorScript, []byte("#!/bin/bash\n"), 0755))
	d.Script(paths.MonitorScript, "")
	return NewMonitor(d, paths), paths
}

func TestNewMonitorDefaults(t *testing.T) {
	m := NewMonitor(fake.New(), Paths{ResultsFile: "/var/tmp/perf.json"})
	assert.Equal(t, Paths{
		ResultsFile:    "/var/tmp/perf.json",
		MonitorScript:  DefaultMonitorScript,
		OptimizeScript: DefaultOptimizeScript,
	}, m.paths)
}

func TestStartStop(t *testing.T) {
	d := fake.New()
	m, paths := newTestMonitor(t, d)
	assert.False(t, m.Running())

	state, err := m.Start()
	assert.Nil(t, err)
	assert.Equal(t, &model.MonitorState{Running: true, Pid: "4242"}, state)
	assert.Equal(t, []string{"bash '" + paths.MonitorScript + "'"}, d.Processes())
	assert.True(t, m.Running())

	// a second start finds the running process
	state, err = m.Start()
	assert.Nil(t, err)
	assert.Equal(t, "4242", state.Pid)
	assert.Len(t, d.Processes(), 1)
	assert.Len(t, d.CallsMatching("bash "), 1)

	state, err = m.Stop()
	assert.Nil(t, err)
	assert.False(t, state.Running)
	assert.Empty(t, d.Processes())
	assert.False(t, m.Running())

	_, err = m.Stop()
	assert.Equal(t, cerrors.MonitorNotRunning, cerrors.GetCode(err))
}

func TestStartErrors(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(d *fake.Tgtd, paths Paths)
		wantCode cerrors.TgtErrorCode
	}{
		{"missing script", func(d *fake.Tgtd, paths Paths) {
			assert.Nil(t, os.Remove(paths.MonitorScript))
		}, cerrors.ScriptNotFound},
		{"script is a directory", func(d *fake.Tgtd, paths Paths) {
			assert.Nil(t, os.Remove(paths.MonitorScript))
			assert.Nil(t, os.Mkdir(paths.MonitorScript, 0755))
		}, cerrors.ScriptNotFound},
		{"launch fails", func(d *fake.Tgtd, paths Paths) {
			d.Fail("bash", 0, "bash: permission denied")
		}, cerrors.CommandFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := fake.New()
			m, paths := newTestMonitor(t, d)
			tt.setup(d, paths)
			state, err := m.Start()
			assert.Nil(t, state)
			assert.Equal(t, tt.wantCode, cerrors.GetCode(err))
			assert.Empty(t, d.Processes())
		})
	}
}

// foregroundOnly exposes Execute of the fake but not Launch
type foregroundOnly struct {
	d *fake.Tgtd
}

func (f foregroundOnly) Execute(commandLine string) *model.CommandResult {
	return f.d.Execute(commandLine)
}

func TestStartWithoutLauncher(t *testing.T) {
	d := fake.New()
	_, paths := newTestMonitor(t, d)
	m := NewMonitor(foregroundOnly{d}, paths)
	_, err := m.Start()
	assert.Equal(t, cerrors.Unavailable, cerrors.GetCode(err))
}

func TestStopFailure(t *testing.T) {
	d := fake.New()
	m, _ := newTestMonitor(t, d)
	_, err := m.Start()
	assert.Nil(t, err)

	d.Fail("pkill", 0, "pkill: killing pid 4242 failed: Operation not permitted")
	_, err = m.Stop()
	assert.Equal(t, cerrors.CommandFailed, cerrors.GetCode(err))
	assert.Len(t, d.Processes(), 1)
}

func TestResults(t *testing.T) {
	samples := `{"luns":[{"tid":1,"lun":1,"read_iops":1200,"write_iops":300}]}`
	tests := []struct {
		name     string
		write    bool
		content  string
		wantCode cerrors.TgtErrorCode
	}{
		{"never started", false, "", cerrors.MonitorNotRunning},
		{"truncated", true, `{"luns":[`, cerrors.Internal},
		{"samples", true, samples, cerrors.OK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := fake.New()
			m, paths := newTestMonitor(t, d)
			if tt.write {
				assert.Nil(t, os.WriteFile(paths.ResultsFile, []byte(tt.content), 0644))
			}
			perf, err := m.Results()
			assert.Equal(t, tt.wantCode, cerrors.GetCode(err))
			if tt.wantCode != cerrors.OK {
				assert.Nil(t, perf)
				return
			}
			assert.False(t, perf.Running)
			assert.False(t, perf.UpdatedAt.IsZero())
			assert.JSONEq(t, samples, string(perf.Samples))

			encoded, err := json.Marshal(perf)
			assert.Nil(t, err)
			assert.Contains(t, string(encoded), `"samples":{"luns":`)
		})
	}
}

func TestOptimize(t *testing.T) {
	d := fake.New()
	m, paths := newTestMonitor(t, d)

	result := m.Optimize()
	assert.False(t, result.Success)
	assert.Equal(t, 127, result.Details.ExitCode)

	d.Script(paths.OptimizeScript, "queue depth set to 128\n")
	result = m.Optimize()
	assert.True(t, result.Success)
	assert.Equal(t, "queue depth set to 128\n", result.Output)
	assert.Equal(t, []string{"bash " + paths.OptimizeScript, "bash " + paths.OptimizeScript}, d.CallsMatching("optimize_lun.sh"))
}
