// (c) Copyright 2025 Hewlett Packard Enterprise Development LP

// Package snapshot reads a point-in-time view of every target from tgtd.  Nothing is cached: each
// call re-runs the show command and parses its output.
package snapshot

import (
	"time"

	log "github.com/hpe-storage/tgt-manager/logger"
	"github.com/hpe-storage/tgt-manager/tgt/cerrors"
	"github.com/hpe-storage/tgt-manager/tgt/executor"
	"github.com/hpe-storage/tgt-manager/tgt/model"
	"github.com/hpe-storage/tgt-manager/tgt/parser"
	"github.com/hpe-storage/tgt-manager/tgt/tgtadm"
)

const (
	DefaultAttempts = 3
	DefaultDelay    = 1 * time.Second

	errorMessageUnavailable = "unable to read target state from tgtd"
)

// Service produces target snapshots
type Service struct {
	exec     executor.Executor
	commands *tgtadm.Commands

	// Attempts is the number of times the show command is tried before giving up
	Attempts int
	// Delay between two attempts
	Delay time.Duration
}

// NewService returns a Service with the default retry policy
func NewService(e executor.Executor, commands *tgtadm.Commands) *Service {
	if commands == nil {
		commands = tgtadm.Default()
	}
	return &Service{
		exec:     e,
		commands: commands,
		Attempts: DefaultAttempts,
		Delay:    DefaultDelay,
	}
}

// RawOutput returns the unparsed show output.  A cerrors.Unavailable error is returned when every
// attempt failed, so callers never mistake an unreachable tgtd for one with no targets.
func (s *Service) RawOutput() (string, error) {
	log.Trace(">>>>> RawOutput")
	defer log.Trace("<<<<< RawOutput")

	result := executor.ExecuteWithRetry(s.exec, s.commands.ShowTargets(), s.Attempts, s.Delay)
	if !result.Success {
		err := cerrors.NewTgtErrorf(cerrors.Unavailable, "%s: %s", errorMessageUnavailable, result.Error)
		log.Error(err.Error())
		return "", err
	}
	return result.Output, nil
}

// GetTargets returns every target in the order tgtd reports them
func (s *Service) GetTargets() ([]*model.Target, error) {
	log.Trace(">>>>> GetTargets")
	defer log.Trace("<<<<< GetTargets")

	output, err := s.RawOutput()
	if err != nil {
		return nil, err
	}
	return parser.Parse(output), nil
}

// FindTarget returns the target with the given ID, cerrors.TargetNotFound if there is none
func (s *Service) FindTarget(tid int) (*model.Target, error) {
	log.Tracef(">>>>> FindTarget, tid=%v", tid)
	defer log.Trace("<<<<< FindTarget")

	targets, err := s.GetTargets()
	if err != nil {
		return nil, err
	}
	for _, target := range targets {
		if target.Tid == tid {
			return target, nil
		}
	}
	return nil, cerrors.NewTgtErrorf(cerrors.TargetNotFound, "target %d not found", tid)
}

// Running returns true if tgtd answers a system show.  It is a liveness probe and is not retried.
func (s *Service) Running() bool {
	return s.exec.Execute(s.commands.ShowSystem()).Success
}
