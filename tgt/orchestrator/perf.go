// (c) Copyright 2025 Hewlett Packard Enterprise Development LP

package orchestrator

import (
	log "github.com/hpe-storage/tgt-manager/logger"
	"github.com/hpe-storage/tgt-manager/tgt/cerrors"
	"github.com/hpe-storage/tgt-manager/tgt/model"
)

const errorMessageNoMonitor = "performance monitoring is not configured"

// Performance returns the latest LUN performance samples
func (o *Orchestrator) Performance() *model.Result {
	log.Trace(">>>>> Performance")
	defer log.Trace("<<<<< Performance")

	if o.opts.Monitor == nil {
		return rejected(cerrors.NewTgtError(cerrors.Unavailable, errorMessageNoMonitor))
	}
	performance, err := o.opts.Monitor.Results()
	if err != nil {
		return rejected(err)
	}
	return succeeded("", performance)
}

// StartMonitor launches the performance monitor, an already running monitor is reported as is
func (o *Orchestrator) StartMonitor() *model.Result {
	if o.opts.Monitor == nil {
		return rejected(cerrors.NewTgtError(cerrors.Unavailable, errorMessageNoMonitor))
	}
	op := o.begin("StartMonitor", nil)
	state, err := o.opts.Monitor.Start()
	if err != nil {
		return op.end(rejected(err))
	}
	return op.end(succeeded("performance monitor running", state))
}

// StopMonitor kills the performance monitor
func (o *Orchestrator) StopMonitor() *model.Result {
	if o.opts.Monitor == nil {
		return rejected(cerrors.NewTgtError(cerrors.Unavailable, errorMessageNoMonitor))
	}
	op := o.begin("StopMonitor", nil)
	state, err := o.opts.Monitor.Stop()
	if err != nil {
		return op.end(rejected(err))
	}
	return op.end(succeeded("performance monitor stopped", state))
}

// Optimize runs the LUN optimization script.  The script tunes the host and tgtd parameters; it
// never adds or removes targets, so no target is locked and nothing is persisted.
func (o *Orchestrator) Optimize() *model.Result {
	if o.opts.Monitor == nil {
		return rejected(cerrors.NewTgtError(cerrors.Unavailable, errorMessageNoMonitor))
	}
	op := o.begin("Optimize", nil)
	result := o.opts.Monitor.Optimize()
	if !result.Success {
		return op.end(commandFailed("LUN optimization failed", result))
	}
	return op.end(succeeded("LUN optimization completed", result.Details))
}
