// (c) Copyright 2025 Hewlett Packard Enterprise Development LP

// Package perf drives the LUN performance monitor and the LUN optimization script installed next
// to tgtd.  Both are shell scripts; the monitor runs in the background and rewrites a JSON results
// file that is served as is.
package perf

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	log "github.com/hpe-storage/tgt-manager/logger"
	"github.com/hpe-storage/tgt-manager/tgt/cerrors"
	"github.com/hpe-storage/tgt-manager/tgt/executor"
	"github.com/hpe-storage/tgt-manager/tgt/model"
	"github.com/hpe-storage/tgt-manager/tgt/tgtadm"
	"github.com/hpe-storage/tgt-manager/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	DefaultResultsFile    = "/tmp/iscsi_performance.json"
	DefaultMonitorScript  = "/app/config/optimize/monitor_lun_performance.sh"
	DefaultOptimizeScript = "/optimize_lun.sh"

	shell = "bash"

	// pgrep and pkill exit with 1 when no process matched
	exitNoMatch = 1
)

var monitorRunning = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "tgt_manager",
	Name:      "performance_monitor_running",
	Help:      "1 while the LUN performance monitor is running.",
})

// Paths locates the scripts and the monitor output
type Paths struct {
	ResultsFile    string `mapstructure:"resultsFile"`
	MonitorScript  string `mapstructure:"monitorScript"`
	OptimizeScript string `mapstructure:"optimizeScript"`
}

func DefaultPaths() Paths {
	return Paths{
		ResultsFile:    DefaultResultsFile,
		MonitorScript:  DefaultMonitorScript,
		OptimizeScript: DefaultOptimizeScript,
	}
}

// Monitor starts, stops and reads the performance monitor
type Monitor struct {
	exec  executor.Executor
	paths Paths
	// serializes start and stop
	mu sync.Mutex
}

// NewMonitor returns a Monitor.  e must also implement executor.Launcher for Start to work.
func NewMonitor(e executor.Executor, paths Paths) *Monitor {
	defaults := DefaultPaths()
	if paths.ResultsFile == "" {
		paths.ResultsFile = defaults.ResultsFile
	}
	if paths.MonitorScript == "" {
		paths.MonitorScript = defaults.MonitorScript
	}
	if paths.OptimizeScript == "" {
		paths.OptimizeScript = defaults.OptimizeScript
	}
	return &Monitor{exec: e, paths: paths}
}

// pattern matches the monitor process by script name, whatever directory it was started from
func (m *Monitor) pattern() string {
	return tgtadm.Quote(filepath.Base(m.paths.MonitorScript))
}

// Running reports whether a monitor process is alive
func (m *Monitor) Running() bool {
	result := m.exec.Execute("pgrep -f " + m.pattern())
	running := result != nil && result.Success
	setRunning(running)
	return running
}

// Start launches the monitor unless it is already running
func (m *Monitor) Start() (*model.MonitorState, error) {
	log.Trace(">>>>> Start")
	defer log.Trace("<<<<< Start")

	m.mu.Lock()
	defer m.mu.Unlock()

	exists, isDir, err := util.FileExists(m.paths.MonitorScript)
	if err != nil {
		return nil, cerrors.NewTgtErrorf(cerrors.Internal, "unable to stat %s: %v", m.paths.MonitorScript, err)
	}
	if !exists || isDir {
		return nil, cerrors.NewTgtErrorf(cerrors.ScriptNotFound,
			"performance monitor script %s does not exist, run the LUN optimization first", m.paths.MonitorScript)
	}

	if result := m.exec.Execute("pgrep -f " + m.pattern()); result != nil && result.Success {
		log.Infof("Performance monitor already running, pid=%s", strings.TrimSpace(result.Output))
		setRunning(true)
		return &model.MonitorState{Running: true, Pid: firstLine(result.Output)}, nil
	}

	launcher, ok := m.exec.(executor.Launcher)
	if !ok {
		return nil, cerrors.NewTgtError(cerrors.Unavailable, "background commands are not supported by this executor")
	}
	result := launcher.Launch(shell + " " + tgtadm.Quote(m.paths.MonitorScript))
	if !result.Success {
		return nil, cerrors.NewTgtErrorf(cerrors.CommandFailed, "unable to start the performance monitor: %s", result.Error)
	}
	log.Infof("Performance monitor started, pid=%s", result.Output)
	setRunning(true)
	return &model.MonitorState{Running: true, Pid: result.Output}, nil
}

// Stop kills every monitor process
func (m *Monitor) Stop() (*model.MonitorState, error) {
	log.Trace(">>>>> Stop")
	defer log.Trace("<<<<< Stop")

	m.mu.Lock()
	defer m.mu.Unlock()

	result := m.exec.Execute("pkill -f " + m.pattern())
	if !result.Success {
		if result.Details != nil && result.Details.ExitCode == exitNoMatch {
			setRunning(false)
			return nil, cerrors.NewTgtError(cerrors.MonitorNotRunning, "no performance monitor is running")
		}
		return nil, cerrors.NewTgtErrorf(cerrors.CommandFailed, "unable to stop the performance monitor: %s", result.Error)
	}
	setRunning(false)
	return &model.MonitorState{Running: false}, nil
}

// Results returns the latest monitor output.  A missing results file means the monitor was never
// started.
func (m *Monitor) Results() (*model.Performance, error) {
	log.Trace(">>>>> Results")
	defer log.Trace("<<<<< Results")

	info, err := os.Stat(m.paths.ResultsFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, cerrors.NewTgtError(cerrors.MonitorNotRunning, "performance monitoring has not been started")
		}
		return nil, cerrors.NewTgtErrorf(cerrors.Internal, "unable to read performance data: %v", err)
	}
	data, err := os.ReadFile(m.paths.ResultsFile)
	if err != nil {
		return nil, cerrors.NewTgtErrorf(cerrors.Internal, "unable to read performance data: %v", err)
	}
	if !json.Valid(data) {
		return nil, cerrors.NewTgtErrorf(cerrors.Internal, "unable to read performance data: %s is not valid JSON", m.paths.ResultsFile)
	}
	return &model.Performance{
		Running:   m.Running(),
		UpdatedAt: info.ModTime(),
		Samples:   json.RawMessage(data),
	}, nil
}

// Optimize runs the LUN optimization script and waits for it
func (m *Monitor) Optimize() *model.CommandResult {
	log.Trace(">>>>> Optimize")
	defer log.Trace("<<<<< Optimize")
	return m.exec.Execute(shell + " " + tgtadm.Quote(m.paths.OptimizeScript))
}

func setRunning(running bool) {
	if running {
		monitorRunning.Set(1)
	} else {
		monitorRunning.Set(0)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
