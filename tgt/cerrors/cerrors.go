// (c) Copyright 2025 Hewlett Packard Enterprise Development LP

package cerrors

import (
	"fmt"
	"strconv"

	log "github.com/hpe-storage/tgt-manager/logger"
)

type TgtErrorCode uint32

const (
	OK                     TgtErrorCode = 0
	Unknown                TgtErrorCode = 1
	InvalidArgument        TgtErrorCode = 2
	MissingParams          TgtErrorCode = 3
	InvalidTargetID        TgtErrorCode = 4
	InvalidLunID           TgtErrorCode = 5
	InvalidAction          TgtErrorCode = 6
	InvalidInitiatorFormat TgtErrorCode = 7
	TargetNotFound         TgtErrorCode = 8
	LunNotFound            TgtErrorCode = 9
	CommandFailed          TgtErrorCode = 10
	PartialFailure         TgtErrorCode = 11
	Unavailable            TgtErrorCode = 12
	Internal               TgtErrorCode = 13
	ScriptNotFound         TgtErrorCode = 14
	MonitorNotRunning      TgtErrorCode = 15
	_maxCode               TgtErrorCode = 16
)

const (
	errorMessageInvalidInputParameters = "invalid input parameters"
)

// TgtError is the error type returned by every tgt-manager package.  Fields names the offending
// request parameters for validation failures.
type TgtError struct {
	Code   TgtErrorCode `json:"code"`
	Text   string       `json:"text,omitempty"`
	Fields []string     `json:"fields,omitempty"`
}

// NewTgtError takes an array of objects and returns a pointer to a TgtError object.  The
// following input parameters, in any order, are supported:
//     TgtError     - TgtError object
//     error        - All other error objects
//     TgtErrorCode - error code
//     string       - error text
//     []string     - offending field names
func NewTgtError(args ...interface{}) *TgtError {
	var tgtError *TgtError
	var otherError error
	var fields []string
	errorCode := _maxCode
	errorMessage := ""

	for _, arg := range args {
		switch v := arg.(type) {
		case TgtErrorCode:
			errorCode = v
		case string:
			errorMessage = v
		case []string:
			fields = v
		case TgtError:
			err := v
			tgtError = &err
		case *TgtError:
			tgtError = v
		case error:
			otherError = v
		}
	}

	err := &TgtError{Code: _maxCode}
	if tgtError != nil {
		copied := *tgtError
		err = &copied
	} else if otherError != nil {
		err.Text = otherError.Error()
	} else if errorMessage != "" {
		err.Text = errorMessage
	}

	if errorCode < _maxCode {
		err.Code = errorCode
	}
	if fields != nil {
		err.Fields = fields
	}

	// If neither an error message or an error code were provided, fail with generic error
	if (err.Code == _maxCode) && (err.Text == "") {
		return &TgtError{Code: Internal, Text: errorMessageInvalidInputParameters}
	}
	if err.Code == _maxCode {
		err.Code = Unknown
	}
	if err.Text == "" {
		err.Text = err.Code.String()
	}
	return err
}

func NewTgtErrorf(c TgtErrorCode, format string, a ...interface{}) *TgtError {
	return &TgtError{Code: c, Text: fmt.Sprintf(format, a...)}
}

// NewValidationError returns an error naming the offending request fields
func NewValidationError(c TgtErrorCode, text string, fields ...string) *TgtError {
	return &TgtError{Code: c, Text: text, Fields: fields}
}

func (e *TgtError) Error() string {
	return fmt.Sprintf("status: %s msg: %s", e.Code, e.Text)
}

func (e *TgtError) LogAndError() TgtError {
	log.Errorln(e.Error())
	return *e
}

// ErrorCode returns the status code contained in TgtError
func (e *TgtError) ErrorCode() TgtErrorCode {
	if e == nil {
		return OK
	}
	return e.Code
}

// ErrorText returns the text contained in TgtError
func (e *TgtError) ErrorText() string {
	if e == nil {
		return ""
	}
	return e.Text
}

// IsValidation returns true for errors raised before any command was issued
func (e *TgtError) IsValidation() bool {
	switch e.ErrorCode() {
	case InvalidArgument, MissingParams, InvalidTargetID, InvalidLunID, InvalidAction, InvalidInitiatorFormat:
		return true
	}
	return false
}

// GetCode returns the TgtErrorCode of err, Unknown for foreign errors and OK for nil
func GetCode(err error) TgtErrorCode {
	if err == nil {
		return OK
	}
	if e, ok := err.(*TgtError); ok {
		return e.ErrorCode()
	}
	return Unknown
}

// String returns the machine-readable name reported to API clients
func (c TgtErrorCode) String() string {
	switch c {
	case OK:
		return "OK"
	case Unknown:
		return "UNKNOWN"
	case InvalidArgument:
		return "INVALID_ARGUMENT"
	case MissingParams:
		return "MISSING_PARAMS"
	case InvalidTargetID:
		return "INVALID_TARGET_ID"
	case InvalidLunID:
		return "INVALID_LUN_ID"
	case InvalidAction:
		return "INVALID_ACTION"
	case InvalidInitiatorFormat:
		return "INVALID_INITIATOR_FORMAT"
	case TargetNotFound:
		return "TARGET_NOT_FOUND"
	case LunNotFound:
		return "LUN_NOT_FOUND"
	case CommandFailed:
		return "COMMAND_FAILED"
	case PartialFailure:
		return "PARTIAL_FAILURE"
	case Unavailable:
		return "CONTROL_PLANE_UNAVAILABLE"
	case Internal:
		return "INTERNAL"
	case ScriptNotFound:
		return "SCRIPT_NOT_FOUND"
	case MonitorNotRunning:
		return "MONITOR_NOT_RUNNING"
	default:
		return "Code(" + strconv.FormatInt(int64(c), 10) + ")"
	}
}
