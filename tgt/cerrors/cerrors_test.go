// (c) Copyright 2025 Hewlett Packard Enterprise Development LP

package cerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTgtError(t *testing.T) {

	var err *TgtError
	errorMessage := "this is a simple test error message"
	errorTemplate := `Invalid TgtError, received %v:"%v", expected %v:"%v"`

	err = NewTgtError(CommandFailed, errorMessage)
	if (err.Code != CommandFailed) || (err.Text != errorMessage) {
		t.Errorf(errorTemplate, err.Code, err.Text, CommandFailed, errorMessage)
	}

	err = NewTgtError(TargetNotFound)
	if (err.Code != TargetNotFound) || (err.Text != err.Code.String()) {
		t.Errorf(errorTemplate, err.Code, err.Text, TargetNotFound, err.Code.String())
	}

	err = NewTgtError(errorMessage)
	if (err.Code != Unknown) || (err.Text != errorMessage) {
		t.Errorf(errorTemplate, err.Code, err.Text, Unknown, errorMessage)
	}

	err = NewTgtError(errors.New(errorMessage))
	if (err.Code != Unknown) || (err.Text != errorMessage) {
		t.Errorf(errorTemplate, err.Code, err.Text, Unknown, errorMessage)
	}

	err = NewTgtError(Unavailable, errors.New(errorMessage))
	if (err.Code != Unavailable) || (err.Text != errorMessage) {
		t.Errorf(errorTemplate, err.Code, err.Text, Unavailable, errorMessage)
	}

	err = NewTgtError(NewTgtError(errorMessage), PartialFailure)
	if (err.Code != PartialFailure) || (err.Text != errorMessage) {
		t.Errorf(errorTemplate, err.Code, err.Text, PartialFailure, errorMessage)
	}

	err = NewTgtError()
	if (err.Code != Internal) || (err.Text != errorMessageInvalidInputParameters) {
		t.Errorf(errorTemplate, err.Code, err.Text, Internal, errorMessageInvalidInputParameters)
	}
}

func TestNewTgtErrorDoesNotAliasInput(t *testing.T) {
	original := NewTgtError(TargetNotFound, "missing")
	derived := NewTgtError(original, Unavailable)
	assert.Equal(t, TargetNotFound, original.Code)
	assert.Equal(t, Unavailable, derived.Code)
}

func TestValidationErrors(t *testing.T) {
	err := NewValidationError(InvalidTargetID, "bad tid", "tid")
	assert.True(t, err.IsValidation())
	assert.Equal(t, []string{"tid"}, err.Fields)
	assert.Equal(t, "INVALID_TARGET_ID", err.Code.String())

	assert.False(t, NewTgtError(CommandFailed, "boom").IsValidation())
	assert.Equal(t, OK, GetCode(nil))
	assert.Equal(t, Unknown, GetCode(errors.New("plain")))
	assert.Equal(t, LunNotFound, GetCode(NewTgtError(LunNotFound)))
}

func TestTgtErrorCodeString(t *testing.T) {
	tests := []struct {
		code TgtErrorCode
		want string
	}{
		{MissingParams, "MISSING_PARAMS"},
		{InvalidLunID, "INVALID_LUN_ID"},
		{Unavailable, "CONTROL_PLANE_UNAVAILABLE"},
		{ScriptNotFound, "SCRIPT_NOT_FOUND"},
		{MonitorNotRunning, "MONITOR_NOT_RUNNING"},
		{TgtErrorCode(99), "Code(99)"},
	}
	for _, tt := range tests {
		if got := tt.code.String(); got != tt.want {
			t.Errorf("String() = %v, want %v", got, tt.want)
		}
	}
}
