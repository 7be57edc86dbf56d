// (c) Copyright 2025 Hewlett Packard Enterprise Development LP

package executor

import (
	"bytes"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/hpe-storage/tgt-manager/logger"
	"github.com/hpe-storage/tgt-manager/tgt/model"
	shellwords "github.com/mattn/go-shellwords"
)

const (
	errorMessageEmptyCommand  = "empty command line"
	errorMessageCommandFailed = "command execution failed"
)

// Executor runs a single control plane command line.  Failures are returned as data in the
// CommandResult, an Executor never panics or returns a Go error.
type Executor interface {
	Execute(commandLine string) *model.CommandResult
}

// Launcher starts a long running command without waiting for it to exit.  The result is
// successful once the process is running and carries its pid in Output.
type Launcher interface {
	Launch(commandLine string) *model.CommandResult
}

// ShellExecutor runs commands with os/exec after tokenizing the command line.  No shell is
// involved, so operators such as pipes or redirections are not supported.
type ShellExecutor struct {
	// Env is appended to the daemon environment of every command
	Env []string
}

// NewShellExecutor returns an executor pinned to a UTF-8 C locale so tgtd output is stable
func NewShellExecutor() *ShellExecutor {
	return &ShellExecutor{Env: []string{"LC_ALL=C.UTF-8", "LANG=C.UTF-8"}}
}

// Execute runs commandLine and captures stdout, stderr and the exit code
func (e *ShellExecutor) Execute(commandLine string) *model.CommandResult {
	log.Tracef(">>>>> Execute, command=%v", commandLine)
	defer log.Trace("<<<<< Execute")

	args, err := shellwords.Parse(commandLine)
	if err != nil {
		return spawnFailure(commandLine, err.Error())
	}
	if len(args) == 0 {
		return spawnFailure(commandLine, errorMessageEmptyCommand)
	}
	log.Infof("Executing command: %s", strings.Join(log.Scrubber(args), " "))

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if len(e.Env) != 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}

	start := time.Now()
	err = cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			// the process never started (binary missing, permission denied, ...)
			log.Errorf("Unable to run command %s, err=%v", args[0], err)
			observe(args[0], outcomeSpawnError, elapsed)
			return spawnFailure(commandLine, err.Error())
		}
		errText := stderr.String()
		if errText == "" {
			errText = errorMessageCommandFailed
		}
		log.Errorf("Command failed, exitCode=%d, stderr=%s, stdout=%s", exitErr.ExitCode(), stderr.String(), stdout.String())
		observe(args[0], outcomeFailure, elapsed)
		return &model.CommandResult{
			Success: false,
			Output:  stdout.String(),
			Error:   errText,
			Details: &model.CommandDetails{
				Command:  commandLine,
				ExitCode: exitErr.ExitCode(),
				Stdout:   stdout.String(),
				Stderr:   errText,
			},
		}
	}

	observe(args[0], outcomeSuccess, elapsed)
	log.Tracef("Command succeeded in %v", elapsed)
	return &model.CommandResult{
		Success: true,
		Output:  stdout.String(),
		Details: &model.CommandDetails{
			Command:  commandLine,
			ExitCode: 0,
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
		},
	}
}

// Launch starts commandLine in the background.  Output of the process is discarded and the
// process is reaped when it exits.
func (e *ShellExecutor) Launch(commandLine string) *model.CommandResult {
	log.Tracef(">>>>> Launch, command=%v", commandLine)
	defer log.Trace("<<<<< Launch")

	args, err := shellwords.Parse(commandLine)
	if err != nil {
		return spawnFailure(commandLine, err.Error())
	}
	if len(args) == 0 {
		return spawnFailure(commandLine, errorMessageEmptyCommand)
	}
	log.Infof("Launching command: %s", strings.Join(log.Scrubber(args), " "))

	cmd := exec.Command(args[0], args[1:]...)
	if len(e.Env) != 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}
	start := time.Now()
	if err = cmd.Start(); err != nil {
		log.Errorf("Unable to launch command %s, err=%v", args[0], err)
		observe(args[0], outcomeSpawnError, time.Since(start))
		return spawnFailure(commandLine, err.Error())
	}
	observe(args[0], outcomeSuccess, time.Since(start))

	pid := strconv.Itoa(cmd.Process.Pid)
	go func() {
		err := cmd.Wait()
		log.Infof("Background command %s (pid %s) exited, err=%v", args[0], pid, err)
	}()
	return &model.CommandResult{
		Success: true,
		Output:  pid,
		Details: &model.CommandDetails{
			Command:  commandLine,
			ExitCode: 0,
			Stdout:   pid,
		},
	}
}

func spawnFailure(commandLine, errText string) *model.CommandResult {
	return &model.CommandResult{
		Success: false,
		Error:   errText,
		Details: &model.CommandDetails{
			Command:  commandLine,
			ExitCode: -1,
			Stderr:   errText,
		},
	}
}

// ExecuteWithRetry runs commandLine up to maxAttempts times, sleeping delay between attempts,
// until it succeeds.  The result of the last attempt is returned.  Only idempotent read
// commands may be passed here; writes are never retried.
func ExecuteWithRetry(e Executor, commandLine string, maxAttempts int, delay time.Duration) *model.CommandResult {
	log.Tracef(">>>>> ExecuteWithRetry, command=%v, maxAttempts=%v, delay=%v", commandLine, maxAttempts, delay)
	defer log.Trace("<<<<< ExecuteWithRetry")

	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var result *model.CommandResult
	attempt := 0
	operation := func() error {
		attempt++
		result = safeExecute(e, commandLine)
		if result.Success {
			return nil
		}
		log.Warnf("Attempt %d/%d of %s failed: %s", attempt, maxAttempts, commandLine, result.Error)
		return errRetry
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), uint64(maxAttempts-1))
	if err := backoff.Retry(operation, policy); err != nil {
		log.Errorf("%s failed after %d attempts", commandLine, attempt)
	}
	return result
}

// safeExecute converts a panicking Executor into a failed result so the retry loop keeps going
func safeExecute(e Executor, commandLine string) (result *model.CommandResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Executor panic running %s: %v", commandLine, r)
			result = spawnFailure(commandLine, errorMessageCommandFailed)
		}
	}()
	result = e.Execute(commandLine)
	if result == nil {
		result = spawnFailure(commandLine, errorMessageCommandFailed)
	}
	return result
}

type retryError struct{}

func (retryError) Error() string { return errorMessageCommandFailed }

var errRetry = retryError{}
