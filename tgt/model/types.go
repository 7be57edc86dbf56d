// (c) Copyright 2025 Hewlett Packard Enterprise Development LP

package model

import (
	"encoding/json"
	"time"
)

///////////////////////////////////////////////////////////////////////////////////////////////////
//
// This model package defines the objects produced by parsing the tgtd control plane and the
// envelope returned for every management operation.  Target records are materialized fresh on
// every snapshot; nothing in here is cached or mutated after parsing.
//
///////////////////////////////////////////////////////////////////////////////////////////////////

const (
	// MinTargetID is the lowest target ID accepted by tgtd
	MinTargetID = 1
	// MaxTargetID is the highest target ID accepted by tgtd
	MaxTargetID = 65535
	// MinLunID is the lowest user LUN ID (LUN 0 is the controller)
	MinLunID = 1
	// MaxLunID is the highest LUN ID within one target
	MaxLunID = 255
)

const (
	// AclAllowAll is the control plane sentinel that matches every initiator
	AclAllowAll = "ALL"

	// AclModeWhitelist - only listed initiators may connect
	AclModeWhitelist = "whitelist"
	// AclModeAllowAll - the AclAllowAll sentinel overrides every concrete entry
	AclModeAllowAll = "allow-all"
)

const (
	// LunTypeController is tgtd's reserved pseudo-LUN, never exposed to callers
	LunTypeController = "controller"

	// LunStatusOnline - LUN reported "Online: Yes"
	LunStatusOnline = "online"
	// LunStatusOffline - LUN reported anything else
	LunStatusOffline = "offline"
)

///////////////////////////////////////////////////////////////////////////////////////////////////
// Target Object
///////////////////////////////////////////////////////////////////////////////////////////////////

// Target : one iSCSI target as reported by "tgtadm --op show"
type Target struct {
	Tid               int               `json:"tid"`
	Name              string            `json:"name"`
	Luns              []*Lun            `json:"luns"`
	AclList           []string          `json:"acl_list"`
	Sessions          []*Session        `json:"nexus_information"`
	SystemInformation map[string]string `json:"system_information,omitempty"`
}

// AclMode is derived from AclList on every call and never stored
func (t *Target) AclMode() string {
	if t.HasAllowAll() {
		return AclModeAllowAll
	}
	return AclModeWhitelist
}

// HasAllowAll returns true if the allow-all sentinel is bound to the target
func (t *Target) HasAllowAll() bool {
	for _, entry := range t.AclList {
		if entry == AclAllowAll {
			return true
		}
	}
	return false
}

// GetLun returns the LUN with the given ID or nil
func (t *Target) GetLun(lunID int) *Lun {
	for _, lun := range t.Luns {
		if lun.LunID == lunID {
			return lun
		}
	}
	return nil
}

// MarshalJSON adds the derived acl_mode property
func (t *Target) MarshalJSON() ([]byte, error) {
	type target Target
	return json.Marshal(&struct {
		*target
		AclMode string `json:"acl_mode"`
	}{(*target)(t), t.AclMode()})
}

///////////////////////////////////////////////////////////////////////////////////////////////////
// LUN Object
///////////////////////////////////////////////////////////////////////////////////////////////////

// Lun : logical unit belonging to exactly one target
type Lun struct {
	LunID        int     `json:"lun_id"`
	Type         string  `json:"type,omitempty"`
	Size         string  `json:"size,omitempty"`   // "2.00 GB", or the raw text if it could not be parsed
	BackingStore *string `json:"backing_store"`    // nil when tgtd reports "None"
	Status       string  `json:"status,omitempty"` // online / offline
}

// BackingStorePath returns the backing store or an empty string
func (l *Lun) BackingStorePath() string {
	if l.BackingStore == nil {
		return ""
	}
	return *l.BackingStore
}

///////////////////////////////////////////////////////////////////////////////////////////////////
// Session (I_T nexus) Object
///////////////////////////////////////////////////////////////////////////////////////////////////

// Session : connected initiator, observed only
type Session struct {
	NexusID   string `json:"nexus_id"`
	Initiator string `json:"initiator,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`
}

///////////////////////////////////////////////////////////////////////////////////////////////////
// Command execution result
///////////////////////////////////////////////////////////////////////////////////////////////////

// CommandDetails : full diagnostics of one external command
type CommandDetails struct {
	Command  string `json:"command"`
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

// CommandResult : outcome of one external command, failures are data and never Go errors
type CommandResult struct {
	Success bool            `json:"success"`
	Output  string          `json:"output"`
	Error   string          `json:"error,omitempty"`
	Details *CommandDetails `json:"details,omitempty"`
}

///////////////////////////////////////////////////////////////////////////////////////////////////
// Operation result envelope
///////////////////////////////////////////////////////////////////////////////////////////////////

// Result : uniform envelope returned for every management operation
type Result struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	ErrorCode string      `json:"error_code,omitempty"`
	Fields    []string    `json:"fields,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

// FailedInitiator : one failed bind/unbind within an ACL reconciliation
type FailedInitiator struct {
	Initiator string          `json:"initiator"`
	Error     string          `json:"error"`
	Details   *CommandDetails `json:"details,omitempty"`
}

// ResourceRef : identifies the objects a mutation acted on
type ResourceRef struct {
	Tid          int    `json:"tid"`
	NewTid       int    `json:"new_tid,omitempty"`
	LunID        int    `json:"lun_id,omitempty"`
	NewLunID     int    `json:"new_lun_id,omitempty"`
	BackingStore string `json:"backing_store,omitempty"`
	Operation    string `json:"operation,omitempty"`
}

// TargetACL : access policy of one target
type TargetACL struct {
	Tid     int      `json:"tid"`
	Name    string   `json:"name"`
	AclMode string   `json:"acl_mode"`
	AclList []string `json:"acl_list"`
}

// TargetSession : a connected initiator and the target it is logged into
type TargetSession struct {
	Tid        int    `json:"tid"`
	TargetName string `json:"target_name"`
	*Session
	Reachable *bool `json:"reachable,omitempty"`
}

// StepFailure : names the step of a multi-step operation that failed
type StepFailure struct {
	Step         string              `json:"step"`
	LunID        int                 `json:"lun_id,omitempty"`
	Initiator    string              `json:"initiator,omitempty"`
	Command      *CommandDetails     `json:"command,omitempty"`
	Compensation []*CompensationStep `json:"compensation,omitempty"`
}

// CompensationStep : one inverse command issued while unwinding a failed operation
type CompensationStep struct {
	Command string `json:"command"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// AclReport : outcome of an ACL reconciliation
type AclReport struct {
	Tid              int                `json:"tid"`
	Action           string             `json:"action"`
	Initiators       []string           `json:"initiator_address"`
	FailedInitiators []*FailedInitiator `json:"failed_initiators,omitempty"`
}

///////////////////////////////////////////////////////////////////////////////////////////////////
// Disk image inventory
///////////////////////////////////////////////////////////////////////////////////////////////////

// DiskFile : one disk image file found under the disk directory
type DiskFile struct {
	Path         string      `json:"path"`
	Name         string      `json:"name"`
	Size         string      `json:"size"`
	Type         string      `json:"type"`
	CreateMethod string      `json:"create_method"`
	UsedBy       *LunMapping `json:"used_by,omitempty"`
}

// LunMapping : the LUN a disk image is exported through
type LunMapping struct {
	TargetID   int    `json:"target_id"`
	LunID      int    `json:"lun_id"`
	TargetName string `json:"target_name"`
	LunSize    string `json:"lun_size"`
}

// Status : daemon and control plane summary
type Status struct {
	TgtRunning      bool              `json:"tgt_running"`
	TargetCount     int               `json:"target_count"`
	LunCount        int               `json:"lun_count"`
	SessionCount    int               `json:"session_count"`
	DiskCount       int               `json:"disk_count"`
	DurableFreeByte uint64            `json:"durable_free_bytes"`
	DefaultIQNs     map[string]string `json:"default_iqns,omitempty"`
}

///////////////////////////////////////////////////////////////////////////////////////////////////
// Performance monitoring
///////////////////////////////////////////////////////////////////////////////////////////////////

// Performance : the latest results written by the LUN performance monitor.  Samples is passed
// through exactly as the monitor wrote it.
type Performance struct {
	Running   bool            `json:"running"`
	UpdatedAt time.Time       `json:"updated_at"`
	Samples   json.RawMessage `json:"samples"`
}

// MonitorState : the performance monitor process after a start or stop request
type MonitorState struct {
	Running bool   `json:"running"`
	Pid     string `json:"pid,omitempty"`
}
