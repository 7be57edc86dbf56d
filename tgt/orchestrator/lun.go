// (c) Copyright 2025 Hewlett Packard Enterprise Development LP

package orchestrator

import (
	"fmt"

	log "github.com/hpe-storage/tgt-manager/logger"
	"github.com/hpe-storage/tgt-manager/tgt/cerrors"
	"github.com/hpe-storage/tgt-manager/tgt/model"
)

func (o *Orchestrator) CreateLun(req *CreateLunRequest) *model.Result {
	log.Tracef(">>>>> CreateLun, tid=%v, lun=%v, backingStore=%v", req.Tid, req.LunID, req.BackingStore)
	defer log.Trace("<<<<< CreateLun")

	if err := validate(req); err != nil {
		return rejected(err)
	}
	tid, lunID := mustID(req.Tid), mustID(req.LunID)
	op := o.begin("CreateLun", log.Fields{"tid": tid, "lun": lunID})
	defer o.lock(tid)()

	result := o.run(op, o.commands.NewLun(tid, lunID, req.BackingStore))
	if !result.Success {
		return op.end(commandFailed(fmt.Sprintf("unable to create LUN %d on target %d", lunID, tid), result))
	}
	o.persist(op)
	return op.end(succeeded(fmt.Sprintf("LUN %d created on target %d", lunID, tid),
		&model.ResourceRef{Tid: tid, LunID: lunID, BackingStore: req.BackingStore, Operation: "create"}))
}

func (o *Orchestrator) DeleteLun(req *DeleteLunRequest) *model.Result {
	log.Tracef(">>>>> DeleteLun, tid=%v, lun=%v", req.Tid, req.LunID)
	defer log.Trace("<<<<< DeleteLun")

	if err := validate(req); err != nil {
		return rejected(err)
	}
	tid, lunID := mustID(req.Tid), mustID(req.LunID)
	op := o.begin("DeleteLun", log.Fields{"tid": tid, "lun": lunID})
	defer o.lock(tid)()

	result := o.run(op, o.commands.DeleteLun(tid, lunID))
	if !result.Success {
		return op.end(commandFailed(fmt.Sprintf("unable to delete LUN %d from target %d", lunID, tid), result))
	}
	o.persist(op)
	return op.end(succeeded(fmt.Sprintf("LUN %d deleted from target %d", lunID, tid),
		&model.ResourceRef{Tid: tid, LunID: lunID, Operation: "delete"}))
}

// UpdateLunID re-exports a LUN's backing store under a new LUN ID, then deletes the old LUN
func (o *Orchestrator) UpdateLunID(req *UpdateLunRequest) *model.Result {
	log.Tracef(">>>>> UpdateLunID, tid=%v, oldLun=%v, newLun=%v", req.Tid, req.OldLunID, req.NewLunID)
	defer log.Trace("<<<<< UpdateLunID")

	if err := validate(req); err != nil {
		return rejected(err)
	}
	tid, oldLunID, newLunID := mustID(req.Tid), mustID(req.OldLunID), mustID(req.NewLunID)
	if oldLunID == newLunID {
		return rejected(cerrors.NewValidationError(cerrors.InvalidArgument, "new LUN ID is the current LUN ID", "old_lun_id", "new_lun_id"))
	}

	op := o.begin("UpdateLunID", log.Fields{"tid": tid, "oldLun": oldLunID, "newLun": newLunID})
	defer o.lock(tid)()

	target, err := o.snapshot.FindTarget(tid)
	if err != nil {
		return op.end(rejected(err))
	}
	lun := target.GetLun(oldLunID)
	if lun == nil {
		return op.end(rejected(cerrors.NewTgtErrorf(cerrors.LunNotFound, "LUN %d not found on target %d", oldLunID, tid)))
	}
	if lun.BackingStore == nil {
		return op.end(rejected(cerrors.NewTgtErrorf(cerrors.InvalidArgument, "LUN %d has no backing store", oldLunID)))
	}

	message := fmt.Sprintf("unable to change LUN ID %d to %d", oldLunID, newLunID)
	result := o.run(op, o.commands.NewLun(tid, newLunID, *lun.BackingStore))
	if !result.Success {
		return op.end(stepFailed(message, cerrors.CommandFailed, result.Error,
			&model.StepFailure{Step: stepCreateLun, LunID: newLunID, Command: result.Details}))
	}
	undo := o.newUndo()
	undo.push(o.commands.DeleteLun(tid, newLunID))

	result = o.run(op, o.commands.DeleteLun(tid, oldLunID))
	if !result.Success {
		failure := &model.StepFailure{Step: stepDeleteLun, LunID: oldLunID, Command: result.Details}
		failure.Compensation = undo.unwind(o, op)
		return op.end(stepFailed(message, cerrors.PartialFailure, result.Error, failure))
	}

	o.persist(op)
	return op.end(succeeded(fmt.Sprintf("LUN ID changed from %d to %d", oldLunID, newLunID),
		&model.ResourceRef{Tid: tid, LunID: oldLunID, NewLunID: newLunID, BackingStore: *lun.BackingStore, Operation: "update_id"}))
}

// RebindLun exports backing store as a LUN of another target.  The LUN it was previously
// exported through is left alone; callers wanting a move delete it separately.
func (o *Orchestrator) RebindLun(req *RebindLunRequest) *model.Result {
	log.Tracef(">>>>> RebindLun, newTid=%v, lun=%v, backingStore=%v", req.NewTid, req.LunID, req.BackingStore)
	defer log.Trace("<<<<< RebindLun")

	if err := validate(req); err != nil {
		return rejected(err)
	}
	newTid, lunID := mustID(req.NewTid), mustID(req.LunID)
	op := o.begin("RebindLun", log.Fields{"newTid": newTid, "lun": lunID})
	defer o.lock(newTid)()

	result := o.run(op, o.commands.NewLun(newTid, lunID, req.BackingStore))
	if !result.Success {
		return op.end(commandFailed(fmt.Sprintf("unable to bind LUN %d to target %d", lunID, newTid), result))
	}
	o.persist(op)
	return op.end(succeeded(fmt.Sprintf("LUN %d bound to target %d", lunID, newTid),
		&model.ResourceRef{Tid: newTid, LunID: lunID, BackingStore: req.BackingStore, Operation: "rebind"}))
}
