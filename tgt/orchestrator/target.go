// (c) Copyright 2025 Hewlett Packard Enterprise Development LP

package orchestrator

import (
	"fmt"

	log "github.com/hpe-storage/tgt-manager/logger"
	"github.com/hpe-storage/tgt-manager/tgt/cerrors"
	"github.com/hpe-storage/tgt-manager/tgt/model"
)

// Steps named in StepFailure
const (
	stepCreateTarget = "create_target"
	stepDeleteTarget = "delete_target"
	stepBindACL      = "bind_acl"
	stepUnbindACL    = "unbind_acl"
	stepCopyLun      = "copy_lun"
	stepCreateLun    = "create_lun"
	stepDeleteLun    = "delete_lun"
)

// CreateTarget creates a target and applies its ACL policy.  In allow-all mode the sentinel is
// bound; in whitelist mode each initiator is bound in order, stopping at the first failure.  A
// failed ACL step leaves the target in place and is reported as a partial failure.
func (o *Orchestrator) CreateTarget(req *CreateTargetRequest) *model.Result {
	log.Tracef(">>>>> CreateTarget, tid=%v, name=%v, aclMode=%v", req.Tid, req.Name, req.AclMode)
	defer log.Trace("<<<<< CreateTarget")

	if err := validate(req); err != nil {
		return rejected(err)
	}
	allowAll := req.AclMode == ActionAllowAll || req.AclMode == model.AclModeAllowAll
	initiators := []string{model.AclAllowAll}
	if !allowAll {
		var err *cerrors.TgtError
		if initiators, err = validateInitiators(req.Initiators); err != nil {
			return rejected(err)
		}
	}

	tid := mustID(req.Tid)
	op := o.begin("CreateTarget", log.Fields{"tid": tid})
	defer o.lock(tid)()

	result := o.run(op, o.commands.NewTarget(tid, req.Name))
	if !result.Success {
		return op.end(commandFailed(fmt.Sprintf("unable to create target %s", req.Name), result))
	}
	undo := o.newUndo()
	undo.push(o.commands.DeleteTarget(tid))

	for _, initiator := range initiators {
		result = o.run(op, o.commands.Bind(tid, initiator))
		if !result.Success {
			failure := &model.StepFailure{Step: stepBindACL, Initiator: initiator, Command: result.Details}
			failure.Compensation = undo.unwind(o, op)
			return op.end(stepFailed(fmt.Sprintf("target %s created, ACL configuration failed", req.Name),
				cerrors.PartialFailure, result.Error, failure))
		}
		undo.push(o.commands.Unbind(tid, initiator))
	}

	o.persist(op)
	target := &model.Target{
		Tid:      tid,
		Name:     req.Name,
		Luns:     []*model.Lun{},
		AclList:  initiators,
		Sessions: []*model.Session{},
	}
	return op.end(succeeded(fmt.Sprintf("target %s created with %s access", req.Name, target.AclMode()), target))
}

// DeleteTarget deletes a target with a single command
func (o *Orchestrator) DeleteTarget(req *DeleteTargetRequest) *model.Result {
	log.Tracef(">>>>> DeleteTarget, tid=%v", req.Tid)
	defer log.Trace("<<<<< DeleteTarget")

	if err := validate(req); err != nil {
		return rejected(err)
	}
	tid := mustID(req.Tid)
	op := o.begin("DeleteTarget", log.Fields{"tid": tid})
	defer o.lock(tid)()

	result := o.run(op, o.commands.DeleteTarget(tid))
	if !result.Success {
		return op.end(commandFailed(fmt.Sprintf("unable to delete target %d", tid), result))
	}
	o.persist(op)
	return op.end(succeeded(fmt.Sprintf("target %d deleted", tid), &model.ResourceRef{Tid: tid, Operation: "delete"}))
}

// RenameTargetID moves a target to a new ID: create the new target under the same name, copy
// every LUN (stopping at the first failure), replicate the ACL policy ignoring individual bind
// failures, then delete the old target.  The old target is only deleted once every LUN was
// copied, and the operation only succeeds if that delete succeeds.
func (o *Orchestrator) RenameTargetID(req *RenameTargetRequest) *model.Result {
	log.Tracef(">>>>> RenameTargetID, oldTid=%v, newTid=%v", req.OldTid, req.NewTid)
	defer log.Trace("<<<<< RenameTargetID")

	if err := validate(req); err != nil {
		return rejected(err)
	}
	oldTid, newTid := mustID(req.OldTid), mustID(req.NewTid)
	if oldTid == newTid {
		return rejected(cerrors.NewValidationError(cerrors.InvalidArgument, "new target ID is the current target ID", "old_tid", "new_tid"))
	}

	op := o.begin("RenameTargetID", log.Fields{"oldTid": oldTid, "newTid": newTid})
	defer o.lock(oldTid, newTid)()

	source, err := o.snapshot.FindTarget(oldTid)
	if err != nil {
		return op.end(rejected(err))
	}

	message := fmt.Sprintf("unable to change target ID %d to %d", oldTid, newTid)
	result := o.run(op, o.commands.NewTarget(newTid, source.Name))
	if !result.Success {
		return op.end(stepFailed(message, cerrors.CommandFailed, result.Error,
			&model.StepFailure{Step: stepCreateTarget, Command: result.Details}))
	}
	undo := o.newUndo()
	undo.push(o.commands.DeleteTarget(newTid))

	for _, lun := range source.Luns {
		if lun.BackingStore == nil {
			failure := &model.StepFailure{Step: stepCopyLun, LunID: lun.LunID}
			failure.Compensation = undo.unwind(o, op)
			return op.end(stepFailed(message, cerrors.PartialFailure,
				fmt.Sprintf("LUN %d has no backing store", lun.LunID), failure))
		}
		result = o.run(op, o.commands.NewLun(newTid, lun.LunID, *lun.BackingStore))
		if !result.Success {
			failure := &model.StepFailure{Step: stepCopyLun, LunID: lun.LunID, Command: result.Details}
			failure.Compensation = undo.unwind(o, op)
			return op.end(stepFailed(message, cerrors.PartialFailure, result.Error, failure))
		}
		undo.push(o.commands.DeleteLun(newTid, lun.LunID))
	}

	acl := source.AclList
	if source.HasAllowAll() {
		acl = []string{model.AclAllowAll}
	}
	for _, initiator := range acl {
		result = o.run(op, o.commands.Bind(newTid, initiator))
		if !result.Success {
			op.logger.Warnf("Unable to copy ACL entry %s to target %d: %s", initiator, newTid, result.Error)
			continue
		}
		undo.push(o.commands.Unbind(newTid, initiator))
	}

	result = o.run(op, o.commands.DeleteTarget(oldTid))
	if !result.Success {
		failure := &model.StepFailure{Step: stepDeleteTarget, Command: result.Details}
		failure.Compensation = undo.unwind(o, op)
		return op.end(stepFailed(message, cerrors.PartialFailure, result.Error, failure))
	}

	o.persist(op)
	return op.end(succeeded(fmt.Sprintf("target ID changed from %d to %d", oldTid, newTid),
		&model.ResourceRef{Tid: oldTid, NewTid: newTid, Operation: "update_id"}))
}
