// (c) Copyright 2025 Hewlett Packard Enterprise Development LP

// Package handler adapts form-encoded REST requests to orchestrator operations and encodes every
// outcome as a JSON model.Result.
package handler

import (
	"encoding/json"
	"mime"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	log "github.com/hpe-storage/tgt-manager/logger"
	"github.com/hpe-storage/tgt-manager/tgt/cerrors"
	"github.com/hpe-storage/tgt-manager/tgt/model"
	"github.com/hpe-storage/tgt-manager/tgt/orchestrator"
	"github.com/mitchellh/mapstructure"
)

const (
	errorMessageNotConfigured = "target manager is not initialized"
	errorMessageBadRequest    = "unable to decode request: "
)

// Manager is the set of operations served over REST, implemented by orchestrator.Orchestrator
type Manager interface {
	ListTargets() *model.Result
	RawOutput() *model.Result
	Status() *model.Result
	ListSessions(probe bool) *model.Result
	ListDisks() *model.Result
	RecordDiskMethod(req *orchestrator.DiskMethodRequest) *model.Result
	CreateTarget(req *orchestrator.CreateTargetRequest) *model.Result
	DeleteTarget(req *orchestrator.DeleteTargetRequest) *model.Result
	RenameTargetID(req *orchestrator.RenameTargetRequest) *model.Result
	CreateLun(req *orchestrator.CreateLunRequest) *model.Result
	DeleteLun(req *orchestrator.DeleteLunRequest) *model.Result
	UpdateLunID(req *orchestrator.UpdateLunRequest) *model.Result
	RebindLun(req *orchestrator.RebindLunRequest) *model.Result
	SetACL(req *orchestrator.SetACLRequest) *model.Result
	ClearACL(req *orchestrator.ClearACLRequest) *model.Result
	GetTargetACL(req *orchestrator.TargetRequest) *model.Result
	Performance() *model.Result
	StartMonitor() *model.Result
	StopMonitor() *model.Result
	Optimize() *model.Result
}

var manager Manager

// SetManager installs the Manager every handler calls into
func SetManager(m Manager) {
	manager = m
}

//@APIVersion 1.0.0
//@Title GetTargets
//@Description lists every target with its LUNs, ACL and sessions
//@Router /api/targets [get]
func GetTargets(w http.ResponseWriter, r *http.Request) {
	serve(w, r, nil, func() *model.Result { return manager.ListTargets() })
}

//@APIVersion 1.0.0
//@Title RefreshTargets
//@Description re-reads the target list from tgtd
//@Router /refresh_targets [post]
func RefreshTargets(w http.ResponseWriter, r *http.Request) {
	serve(w, r, nil, func() *model.Result { return manager.ListTargets() })
}

//@APIVersion 1.0.0
//@Title GetTgtadmOutput
//@Description returns the unparsed target show output
//@Router /api/tgtadm [get]
func GetTgtadmOutput(w http.ResponseWriter, r *http.Request) {
	serve(w, r, nil, func() *model.Result { return manager.RawOutput() })
}

//@APIVersion 1.0.0
//@Title GetStatus
//@Description reports tgtd liveness and object counts
//@Router /api/status [get]
func GetStatus(w http.ResponseWriter, r *http.Request) {
	serve(w, r, nil, func() *model.Result { return manager.Status() })
}

//@APIVersion 1.0.0
//@Title GetSessions
//@Description lists connected initiators, ?probe=true pings each of them
//@Router /api/sessions [get]
func GetSessions(w http.ResponseWriter, r *http.Request) {
	probe, _ := strconv.ParseBool(r.URL.Query().Get("probe"))
	serve(w, r, nil, func() *model.Result { return manager.ListSessions(probe) })
}

//@APIVersion 1.0.0
//@Title GetDisks
//@Description lists disk image files and the LUN exporting each of them
//@Router /api/disks [get]
func GetDisks(w http.ResponseWriter, r *http.Request) {
	serve(w, r, nil, func() *model.Result { return manager.ListDisks() })
}

//@APIVersion 1.0.0
//@Title RecordDiskMethod
//@Description records the provisioning method of a disk image
//@Router /disk/method [post]
func RecordDiskMethod(w http.ResponseWriter, r *http.Request) {
	req := &orchestrator.DiskMethodRequest{}
	serve(w, r, req, func() *model.Result { return manager.RecordDiskMethod(req) })
}

//@APIVersion 1.0.0
//@Title CreateTarget
//@Description creates a target and applies its ACL policy
//@Router /target/create [post]
func CreateTarget(w http.ResponseWriter, r *http.Request) {
	req := &orchestrator.CreateTargetRequest{}
	serve(w, r, req, func() *model.Result { return manager.CreateTarget(req) })
}

//@APIVersion 1.0.0
//@Title DeleteTarget
//@Description deletes the target named in the path
//@Router /target/delete/{tid} [post]
func DeleteTarget(w http.ResponseWriter, r *http.Request) {
	req := &orchestrator.DeleteTargetRequest{}
	serve(w, r, req, func() *model.Result { return manager.DeleteTarget(req) })
}

//@APIVersion 1.0.0
//@Title UpdateTargetID
//@Description moves a target, its LUNs and ACL to a new target ID
//@Router /target/update_id [post]
func UpdateTargetID(w http.ResponseWriter, r *http.Request) {
	req := &orchestrator.RenameTargetRequest{}
	serve(w, r, req, func() *model.Result { return manager.RenameTargetID(req) })
}

//@APIVersion 1.0.0
//@Title GetTargetACL
//@Description returns the ACL policy of the target named in the path
//@Router /target/get_acl/{tid} [get]
func GetTargetACL(w http.ResponseWriter, r *http.Request) {
	req := &orchestrator.TargetRequest{}
	serve(w, r, req, func() *model.Result { return manager.GetTargetACL(req) })
}

//@APIVersion 1.0.0
//@Title ClearTargetACL
//@Description unbinds every ACL entry of a target
//@Router /target/clear_acl [post]
func ClearTargetACL(w http.ResponseWriter, r *http.Request) {
	req := &orchestrator.ClearACLRequest{}
	serve(w, r, req, func() *model.Result { return manager.ClearACL(req) })
}

//@APIVersion 1.0.0
//@Title SetTargetACL
//@Description binds, unbinds or allows all initiators
//@Router /target/acl [post]
func SetTargetACL(w http.ResponseWriter, r *http.Request) {
	req := &orchestrator.SetACLRequest{}
	serve(w, r, req, func() *model.Result { return manager.SetACL(req) })
}

//@APIVersion 1.0.0
//@Title CreateLun
//@Router /lun/create [post]
func CreateLun(w http.ResponseWriter, r *http.Request) {
	req := &orchestrator.CreateLunRequest{}
	serve(w, r, req, func() *model.Result { return manager.CreateLun(req) })
}

//@APIVersion 1.0.0
//@Title DeleteLun
//@Router /lun/delete [post]
func DeleteLun(w http.ResponseWriter, r *http.Request) {
	req := &orchestrator.DeleteLunRequest{}
	serve(w, r, req, func() *model.Result { return manager.DeleteLun(req) })
}

//@APIVersion 1.0.0
//@Title UpdateLunID
//@Description re-exports a LUN under a new LUN ID
//@Router /lun/update_id [post]
func UpdateLunID(w http.ResponseWriter, r *http.Request) {
	req := &orchestrator.UpdateLunRequest{}
	serve(w, r, req, func() *model.Result { return manager.UpdateLunID(req) })
}

//@APIVersion 1.0.0
//@Title RebindLun
//@Description exports a backing store through another target
//@Router /lun/rebind [post]
func RebindLun(w http.ResponseWriter, r *http.Request) {
	req := &orchestrator.RebindLunRequest{}
	serve(w, r, req, func() *model.Result { return manager.RebindLun(req) })
}

//@APIVersion 1.0.0
//@Title GetPerformance
//@Description returns the latest LUN performance samples
//@Router /api/performance [get]
func GetPerformance(w http.ResponseWriter, r *http.Request) {
	serve(w, r, nil, func() *model.Result { return manager.Performance() })
}

//@APIVersion 1.0.0
//@Title StartPerformanceMonitor
//@Router /api/performance/start [post]
func StartPerformanceMonitor(w http.ResponseWriter, r *http.Request) {
	serve(w, r, nil, func() *model.Result { return manager.StartMonitor() })
}

//@APIVersion 1.0.0
//@Title StopPerformanceMonitor
//@Router /api/performance/stop [post]
func StopPerformanceMonitor(w http.ResponseWriter, r *http.Request) {
	serve(w, r, nil, func() *model.Result { return manager.StopMonitor() })
}

//@APIVersion 1.0.0
//@Title Optimize
//@Description runs the LUN optimization script and waits for it
//@Router /optimize [post]
func Optimize(w http.ResponseWriter, r *http.Request) {
	serve(w, r, nil, func() *model.Result { return manager.Optimize() })
}

// serve decodes the request into req (when not nil), runs op and writes its Result
func serve(w http.ResponseWriter, r *http.Request, req interface{}, op func() *model.Result) {
	if manager == nil {
		writeResult(w, &model.Result{Error: errorMessageNotConfigured, Message: errorMessageNotConfigured, ErrorCode: cerrors.Internal.String()})
		return
	}
	if req != nil {
		if err := decodeRequest(r, req); err != nil {
			log.Errorf("Unable to decode %s %s, err=%v", r.Method, r.URL.Path, err)
			text := errorMessageBadRequest + err.Error()
			writeResult(w, &model.Result{Error: text, Message: text, ErrorCode: cerrors.InvalidArgument.String()})
			return
		}
	}
	writeResult(w, op())
}

// decodeRequest fills req from the form (or JSON body) and the path variables.  Path variables
// win over body values of the same name.
func decodeRequest(r *http.Request, req interface{}) error {
	values := make(map[string]interface{})

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
			return err
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return err
		}
		for key := range r.Form {
			values[key] = r.Form.Get(key)
		}
	}
	for key, value := range mux.Vars(r) {
		values[key] = value
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "form",
		WeaklyTypedInput: true,
		Result:           req,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(values)
}

func writeResult(w http.ResponseWriter, result *model.Result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus(result))
	if err := json.NewEncoder(w).Encode(result); err != nil {
		log.Errorf("Unable to encode response, err=%v", err)
	}
}

// httpStatus maps a Result to the HTTP status code sent with it
func httpStatus(result *model.Result) int {
	if result.Success {
		return http.StatusOK
	}
	switch result.ErrorCode {
	case cerrors.InvalidArgument.String(), cerrors.MissingParams.String(), cerrors.InvalidTargetID.String(),
		cerrors.InvalidLunID.String(), cerrors.InvalidAction.String(), cerrors.InvalidInitiatorFormat.String():
		return http.StatusBadRequest
	case cerrors.TargetNotFound.String(), cerrors.LunNotFound.String(), cerrors.ScriptNotFound.String():
		return http.StatusNotFound
	case cerrors.MonitorNotRunning.String():
		return http.StatusConflict
	case cerrors.Unavailable.String():
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
