// (c) Copyright 2025 Hewlett Packard Enterprise Development LP

// Package orchestrator implements the compound target, LUN and ACL operations as ordered
// sequences of tgtadm commands.  tgtd has no transactions: a sequence that fails part way leaves
// whatever the earlier steps did in place and reports it.  With Options.Compensate the inverse of
// every completed step is issued in reverse order instead.
package orchestrator

import (
	"strconv"
	"strings"

	"github.com/hpe-storage/tgt-manager/concurrent"
	log "github.com/hpe-storage/tgt-manager/logger"
	"github.com/hpe-storage/tgt-manager/tgt/cerrors"
	"github.com/hpe-storage/tgt-manager/tgt/executor"
	"github.com/hpe-storage/tgt-manager/tgt/model"
	"github.com/hpe-storage/tgt-manager/tgt/perf"
	"github.com/hpe-storage/tgt-manager/tgt/persist"
	"github.com/hpe-storage/tgt-manager/tgt/snapshot"
	"github.com/hpe-storage/tgt-manager/tgt/tgtadm"
	"github.com/opentracing/opentracing-go"
	uuid "github.com/satori/go.uuid"
)

// Persister saves the live configuration after a successful mutation
type Persister interface {
	Persist() error
}

// Options tune the orchestrator
type Options struct {
	// Compensate issues the inverse of each completed step when a sequence fails
	Compensate bool
	// DiskDir is scanned for disk images by ListDisks
	DiskDir string
	// DurableDir is reported by Status as free bytes
	DurableDir string
	// DefaultIQNs are reported by Status
	DefaultIQNs map[string]string
	// Monitor serves performance monitoring and LUN optimization, nil disables both
	Monitor *perf.Monitor
}

// Orchestrator runs management operations against one tgtd
type Orchestrator struct {
	exec        executor.Executor
	commands    *tgtadm.Commands
	snapshot    *snapshot.Service
	persister   Persister
	diskMethods *persist.DiskMethods
	prober      *snapshot.Prober
	locks       *concurrent.MapMutex
	opts        Options
}

// New returns an Orchestrator.  persister and diskMethods may be nil.
func New(e executor.Executor, commands *tgtadm.Commands, snap *snapshot.Service, persister Persister,
	diskMethods *persist.DiskMethods, opts Options) *Orchestrator {
	if commands == nil {
		commands = tgtadm.Default()
	}
	if snap == nil {
		snap = snapshot.NewService(e, commands)
	}
	return &Orchestrator{
		exec:        e,
		commands:    commands,
		snapshot:    snap,
		persister:   persister,
		diskMethods: diskMethods,
		prober:      snapshot.NewProber(),
		locks:       concurrent.NewMapMutex(),
		opts:        opts,
	}
}

// operation carries the logging and tracing context of one request
type operation struct {
	name   string
	logger *log.Entry
	span   opentracing.Span
}

func (o *Orchestrator) begin(name string, fields log.Fields) *operation {
	if fields == nil {
		fields = log.Fields{}
	}
	fields["operation"] = name
	fields["opID"] = uuid.NewV4().String()
	op := &operation{
		name:   name,
		logger: log.WithFields(fields),
		span:   log.StartSpan(name, fields),
	}
	op.logger.Info("Operation started")
	return op
}

func (op *operation) end(result *model.Result) *model.Result {
	op.span.SetTag("success", result.Success)
	if result.Success {
		op.logger.Infof("Operation succeeded: %s", result.Message)
	} else {
		op.span.SetTag("error", true)
		op.logger.Errorf("Operation failed: %s (%s)", result.Message, result.Error)
	}
	op.span.Finish()
	return result
}

// run executes one write command.  Writes are never retried.
func (o *Orchestrator) run(op *operation, commandLine string) *model.CommandResult {
	result := o.exec.Execute(commandLine)
	if result == nil {
		result = &model.CommandResult{Error: "no result", Details: &model.CommandDetails{Command: commandLine, ExitCode: -1}}
	}
	if !result.Success {
		op.logger.Warnf("Command failed: %s: %s", commandLine, result.Error)
	}
	return result
}

// lock serializes operations on the same targets
func (o *Orchestrator) lock(tids ...int) func() {
	keys := make([]string, len(tids))
	for i, tid := range tids {
		keys[i] = strconv.Itoa(tid)
	}
	return o.locks.LockAll(keys...)
}

// persist is best effort, failure never changes the outcome of the operation
func (o *Orchestrator) persist(op *operation) {
	if o.persister == nil {
		return
	}
	if err := o.persister.Persist(); err != nil {
		op.logger.Errorf("Unable to persist tgtd configuration, err=%v", err)
	}
}

///////////////////////////////////////////////////////////////////////////////////////////////////
// Compensation
///////////////////////////////////////////////////////////////////////////////////////////////////

type undoStack struct {
	enabled  bool
	commands []string
}

func (o *Orchestrator) newUndo() *undoStack {
	return &undoStack{enabled: o.opts.Compensate}
}

func (u *undoStack) push(commandLine string) {
	u.commands = append(u.commands, commandLine)
}

// unwind issues the recorded inverse commands, newest first.  A failing inverse is reported and
// the rest are still attempted.
func (u *undoStack) unwind(o *Orchestrator, op *operation) []*model.CompensationStep {
	if !u.enabled || len(u.commands) == 0 {
		return nil
	}
	op.logger.Warnf("Compensating %d completed steps", len(u.commands))
	steps := make([]*model.CompensationStep, 0, len(u.commands))
	for i := len(u.commands) - 1; i >= 0; i-- {
		result := o.run(op, u.commands[i])
		steps = append(steps, &model.CompensationStep{
			Command: u.commands[i],
			Success: result.Success,
			Error:   result.Error,
		})
	}
	u.commands = nil
	return steps
}

///////////////////////////////////////////////////////////////////////////////////////////////////
// Result envelopes
///////////////////////////////////////////////////////////////////////////////////////////////////

func succeeded(message string, data interface{}) *model.Result {
	return &model.Result{Success: true, Message: message, Data: data}
}

func rejected(err error) *model.Result {
	tgtErr := cerrors.NewTgtError(err)
	return &model.Result{
		Success:   false,
		Message:   tgtErr.Text,
		Error:     tgtErr.Text,
		ErrorCode: tgtErr.Code.String(),
		Fields:    tgtErr.Fields,
	}
}

func commandFailed(message string, result *model.CommandResult) *model.Result {
	return &model.Result{
		Success:   false,
		Message:   message + ": " + result.Error,
		Error:     result.Error,
		ErrorCode: cerrors.CommandFailed.String(),
		Details:   result.Details,
	}
}

// stepFailed reports a multi-step operation that stopped at failure.Step.  code is PartialFailure
// when earlier steps changed tgtd state.
func stepFailed(message string, code cerrors.TgtErrorCode, errText string, failure *model.StepFailure) *model.Result {
	return &model.Result{
		Success:   false,
		Message:   message + ": " + errText,
		Error:     errText,
		ErrorCode: code.String(),
		Details:   failure,
	}
}

// splitInitiators splits a comma separated initiator list, dropping empty entries
func splitInitiators(raw string) []string {
	var initiators []string
	for _, entry := range strings.Split(raw, ",") {
		if entry = strings.TrimSpace(entry); entry != "" {
			initiators = append(initiators, entry)
		}
	}
	return initiators
}
