// (c) Copyright 2025 Hewlett Packard Enterprise Development LP

package executor

import (
	"fmt"
	"strconv"
	"testing"

	"github.com/hpe-storage/tgt-manager/tgt/model"
	"github.com/stretchr/testify/assert"
)

// scripted returns the queued outcomes in order, repeating the last one
type scripted struct {
	outcomes []bool
	calls    int
	panicAt  int
}

func (s *scripted) Execute(commandLine string) *model.CommandResult {
	s.calls++
	if s.panicAt == s.calls {
		panic("boom")
	}
	i := s.calls - 1
	if i >= len(s.outcomes) {
		i = len(s.outcomes) - 1
	}
	if s.outcomes[i] {
		return &model.CommandResult{Success: true, Output: fmt.Sprintf("attempt %d", s.calls)}
	}
	return &model.CommandResult{Success: false, Error: fmt.Sprintf("attempt %d failed", s.calls)}
}

func TestExecuteWithRetry(t *testing.T) {
	tests := []struct {
		name        string
		outcomes    []bool
		maxAttempts int
		wantCalls   int
		wantSuccess bool
		wantText    string
	}{
		{"first attempt", []bool{true}, 3, 1, true, "attempt 1"},
		{"second attempt", []bool{false, true}, 3, 2, true, "attempt 2"},
		{"third attempt", []bool{false, false, true}, 3, 3, true, "attempt 3"},
		{"exhausted", []bool{false}, 3, 3, false, "attempt 3 failed"},
		{"single attempt", []bool{false}, 1, 1, false, "attempt 1 failed"},
		{"zero attempts", []bool{false}, 0, 1, false, "attempt 1 failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &scripted{outcomes: tt.outcomes}
			result := ExecuteWithRetry(s, "tgtadm --mode target --op show", tt.maxAttempts, 0)
			assert.Equal(t, tt.wantCalls, s.calls)
			assert.Equal(t, tt.wantSuccess, result.Success)
			if tt.wantSuccess {
				assert.Equal(t, tt.wantText, result.Output)
			} else {
				assert.Equal(t, tt.wantText, result.Error)
			}
		})
	}
}

func TestExecuteWithRetryRecoversPanic(t *testing.T) {
	s := &scripted{outcomes: []bool{true}, panicAt: 1}
	result := ExecuteWithRetry(s, "tgtadm --mode target --op show", 2, 0)
	assert.Equal(t, 2, s.calls)
	assert.True(t, result.Success)
}

func TestShellExecutor(t *testing.T) {
	e := NewShellExecutor()

	result := e.Execute("echo 'hello world'")
	assert.True(t, result.Success)
	assert.Equal(t, "hello world\n", result.Output)
	assert.Equal(t, 0, result.Details.ExitCode)
	assert.Equal(t, "echo 'hello world'", result.Details.Command)

	result = e.Execute("false")
	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Details.ExitCode)
	assert.Equal(t, errorMessageCommandFailed, result.Error)

	result = e.Execute("ls /this/path/does/not/exist")
	assert.False(t, result.Success)
	assert.NotEqual(t, 0, result.Details.ExitCode)
	assert.NotEmpty(t, result.Error)
	assert.Equal(t, result.Error, result.Details.Stderr)
}

func TestShellExecutorSpawnErrors(t *testing.T) {
	e := NewShellExecutor()
	tests := []struct {
		name        string
		commandLine string
	}{
		{"missing binary", "tgt-manager-no-such-binary --op show"},
		{"unbalanced quote", "tgtadm --targetname 'iqn"},
		{"empty", "   "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := e.Execute(tt.commandLine)
			assert.False(t, result.Success)
			assert.NotEmpty(t, result.Error)
			assert.Equal(t, -1, result.Details.ExitCode)
		})
	}
}

func TestShellExecutorNoShell(t *testing.T) {
	// shell operators reach the program as plain arguments
	result := NewShellExecutor().Execute("echo a ';' touch /tmp/should-not-exist")
	assert.True(t, result.Success)
	assert.Equal(t, "a ; touch /tmp/should-not-exist\n", result.Output)
}

func TestShellExecutorLaunch(t *testing.T) {
	var e Executor = NewShellExecutor()
	launcher, ok := e.(Launcher)
	if !assert.True(t, ok) {
		return
	}

	result := launcher.Launch("sleep 0.1")
	assert.True(t, result.Success)
	pid, err := strconv.Atoi(result.Output)
	assert.Nil(t, err)
	assert.True(t, pid > 0)

	for _, commandLine := range []string{"tgt-manager-no-such-binary", "sh -c 'x", ""} {
		result = launcher.Launch(commandLine)
		assert.False(t, result.Success, commandLine)
		assert.Equal(t, -1, result.Details.ExitCode)
	}
}
