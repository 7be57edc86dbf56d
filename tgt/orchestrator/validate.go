// (c) Copyright 2025 Hewlett Packard Enterprise Development LP

package orchestrator

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hpe-storage/tgt-manager/tgt/cerrors"
	"github.com/hpe-storage/tgt-manager/tgt/model"
)

// Requests carry the raw form values; every ID is checked for range before any command is issued.

type CreateTargetRequest struct {
	Tid        string `form:"tid" validate:"required,tid"`
	Name       string `form:"target_name" validate:"required"`
	AclMode    string `form:"acl_mode" validate:"omitempty,oneof=whitelist all allow-all"`
	Initiators string `form:"initiator_address"`
}

type DeleteTargetRequest struct {
	Tid string `form:"tid" validate:"required,tid"`
}

type RenameTargetRequest struct {
	OldTid string `form:"old_tid" validate:"required,tid"`
	NewTid string `form:"new_tid" validate:"required,tid"`
}

type CreateLunRequest struct {
	Tid          string `form:"tid" validate:"required,tid"`
	LunID        string `form:"lun_id" validate:"required,lunid"`
	BackingStore string `form:"backing_store" validate:"required"`
}

type DeleteLunRequest struct {
	Tid   string `form:"tid" validate:"required,tid"`
	LunID string `form:"lun_id" validate:"required,lunid"`
}

type UpdateLunRequest struct {
	Tid      string `form:"tid" validate:"required,tid"`
	OldLunID string `form:"old_lun_id" validate:"required,lunid"`
	NewLunID string `form:"new_lun_id" validate:"required,lunid"`
}

type RebindLunRequest struct {
	NewTid       string `form:"new_tid" validate:"required,tid"`
	LunID        string `form:"lun_id" validate:"required,lunid"`
	BackingStore string `form:"backing_store" validate:"required"`
}

type SetACLRequest struct {
	Tid        string `form:"tid" validate:"required,tid"`
	Action     string `form:"action" validate:"required,oneof=bind unbind all allow-all"`
	Initiators string `form:"initiator_address"`
}

type ClearACLRequest struct {
	Tid string `form:"tid" validate:"required,tid"`
}

type TargetRequest struct {
	Tid string `form:"tid" validate:"required,tid"`
}

type DiskMethodRequest struct {
	DiskName string `form:"disk_name" json:"disk_name" validate:"required,excludesall=/\\"`
	Method   string `form:"create_method" json:"create_method" validate:"required"`
}

// ACL actions
const (
	ActionBind     = "bind"
	ActionUnbind   = "unbind"
	ActionAllowAll = "all"
)

var requestValidate *validator.Validate

func init() {
	requestValidate = validator.New()
	requestValidate.RegisterTagNameFunc(func(field reflect.StructField) string {
		return field.Tag.Get("form")
	})
	_ = requestValidate.RegisterValidation("tid", func(fl validator.FieldLevel) bool {
		return inRange(fl.Field().String(), model.MinTargetID, model.MaxTargetID)
	})
	_ = requestValidate.RegisterValidation("lunid", func(fl validator.FieldLevel) bool {
		return inRange(fl.Field().String(), model.MinLunID, model.MaxLunID)
	})
}

// parseID parses a decimal ID.  Leading and trailing blanks are ignored.
func parseID(value string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(value))
}

func inRange(value string, min, max int) bool {
	id, err := parseID(value)
	return err == nil && id >= min && id <= max
}

// mustID is only called on values that passed validation
func mustID(value string) int {
	id, _ := parseID(value)
	return id
}

func codeForTag(tag string) cerrors.TgtErrorCode {
	switch tag {
	case "required":
		return cerrors.MissingParams
	case "tid":
		return cerrors.InvalidTargetID
	case "lunid":
		return cerrors.InvalidLunID
	case "oneof":
		return cerrors.InvalidAction
	}
	return cerrors.InvalidArgument
}

func messageForCode(code cerrors.TgtErrorCode, fields []string) string {
	switch code {
	case cerrors.MissingParams:
		return "missing required parameters: " + strings.Join(fields, ", ")
	case cerrors.InvalidTargetID:
		return fmt.Sprintf("target ID must be a number between %d and %d", model.MinTargetID, model.MaxTargetID)
	case cerrors.InvalidLunID:
		return fmt.Sprintf("LUN ID must be a number between %d and %d", model.MinLunID, model.MaxLunID)
	case cerrors.InvalidAction:
		return "invalid value for " + strings.Join(fields, ", ")
	}
	return "invalid parameters: " + strings.Join(fields, ", ")
}

// validate checks a request struct.  The error code is taken from the first failing field and
// Fields lists every field failing for the same reason.
func validate(request interface{}) *cerrors.TgtError {
	err := requestValidate.Struct(request)
	if err == nil {
		return nil
	}
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok || len(validationErrors) == 0 {
		return cerrors.NewTgtError(cerrors.InvalidArgument, err.Error())
	}

	code := codeForTag(validationErrors[0].Tag())
	var fields []string
	for _, fieldError := range validationErrors {
		if codeForTag(fieldError.Tag()) == code {
			fields = append(fields, fieldError.Field())
		}
	}
	return cerrors.NewValidationError(code, messageForCode(code, fields), fields...)
}

// validateInitiators rejects an empty or blank-only initiator list
func validateInitiators(raw string) ([]string, *cerrors.TgtError) {
	if strings.TrimSpace(raw) == "" {
		return nil, cerrors.NewValidationError(cerrors.MissingParams, "missing required parameters: initiator_address", "initiator_address")
	}
	initiators := splitInitiators(raw)
	if len(initiators) == 0 {
		return nil, cerrors.NewValidationError(cerrors.InvalidInitiatorFormat, "initiator_address contains no initiator", "initiator_address")
	}
	return initiators, nil
}
