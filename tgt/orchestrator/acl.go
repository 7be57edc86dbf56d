// (c) Copyright 2025 Hewlett Packard Enterprise Development LP

package orchestrator

import (
	"fmt"

	log "github.com/hpe-storage/tgt-manager/logger"
	"github.com/hpe-storage/tgt-manager/tgt/cerrors"
	"github.com/hpe-storage/tgt-manager/tgt/model"
)

// SetACL reconciles the ACL of a target.
//
//	all    - unbind every concrete entry, stopping at the first failure, then bind the sentinel
//	bind   - unbind the sentinel if present, then bind each initiator
//	unbind - unbind each initiator
//
// Individual bind/unbind failures do not stop the loop: all succeeded is a success, some
// succeeded is a success listing the failures, none succeeded is a failure.  The configuration is
// persisted whenever at least one call succeeded.
func (o *Orchestrator) SetACL(req *SetACLRequest) *model.Result {
	log.Tracef(">>>>> SetACL, tid=%v, action=%v, initiators=%v", req.Tid, req.Action, req.Initiators)
	defer log.Trace("<<<<< SetACL")

	if err := validate(req); err != nil {
		return rejected(err)
	}
	action := req.Action
	if action == model.AclModeAllowAll {
		action = ActionAllowAll
	}
	var initiators []string
	if action != ActionAllowAll {
		var err *cerrors.TgtError
		if initiators, err = validateInitiators(req.Initiators); err != nil {
			return rejected(err)
		}
	}

	tid := mustID(req.Tid)
	op := o.begin("SetACL", log.Fields{"tid": tid, "action": action})
	defer o.lock(tid)()

	target, err := o.snapshot.FindTarget(tid)
	if err != nil {
		return op.end(rejected(err))
	}
	if action == ActionAllowAll {
		return op.end(o.allowAll(op, target))
	}

	anySucceeded := false
	defer func() {
		if anySucceeded {
			o.persist(op)
		}
	}()

	// a concrete whitelist and the sentinel are mutually exclusive
	if action == ActionBind && target.HasAllowAll() {
		result := o.run(op, o.commands.Unbind(tid, model.AclAllowAll))
		if !result.Success {
			return op.end(stepFailed("unable to remove allow-all access", cerrors.CommandFailed, result.Error,
				&model.StepFailure{Step: stepUnbindACL, Initiator: model.AclAllowAll, Command: result.Details}))
		}
		anySucceeded = true
	}

	report := &model.AclReport{Tid: tid, Action: action, Initiators: initiators}
	for _, initiator := range initiators {
		var result *model.CommandResult
		if action == ActionBind {
			result = o.run(op, o.commands.Bind(tid, initiator))
		} else {
			result = o.run(op, o.commands.Unbind(tid, initiator))
		}
		if result.Success {
			anySucceeded = true
			continue
		}
		report.FailedInitiators = append(report.FailedInitiators, &model.FailedInitiator{
			Initiator: initiator,
			Error:     result.Error,
			Details:   result.Details,
		})
	}

	failed := len(report.FailedInitiators)
	switch {
	case failed == 0:
		return op.end(succeeded(fmt.Sprintf("%s applied to all %d initiators", action, len(initiators)), report))
	case failed < len(initiators):
		return op.end(succeeded(fmt.Sprintf("%s partially applied (%d/%d)", action, len(initiators)-failed, len(initiators)), report))
	}
	return op.end(&model.Result{
		Success:   false,
		Message:   fmt.Sprintf("%s failed for all %d initiators", action, len(initiators)),
		Error:     report.FailedInitiators[0].Error,
		ErrorCode: cerrors.CommandFailed.String(),
		Details:   report,
	})
}

// allowAll unbinds every concrete entry then binds the sentinel.  steps counts the commands that
// changed tgtd state, both unbinds and the final bind.
func (o *Orchestrator) allowAll(op *operation, target *model.Target) *model.Result {
	steps := 0
	for _, initiator := range target.AclList {
		if initiator == model.AclAllowAll {
			continue
		}
		result := o.run(op, o.commands.Unbind(target.Tid, initiator))
		if !result.Success {
			if steps > 0 {
				o.persist(op)
			}
			return stepFailed(fmt.Sprintf("unable to unbind initiator %s", initiator), cerrors.CommandFailed, result.Error,
				&model.StepFailure{Step: stepUnbindACL, Initiator: initiator, Command: result.Details})
		}
		steps++
	}

	// an already bound sentinel is not bound again, tgtadm rejects duplicate rules
	if !target.HasAllowAll() {
		result := o.run(op, o.commands.Bind(target.Tid, model.AclAllowAll))
		if !result.Success {
			if steps > 0 {
				o.persist(op)
			}
			return stepFailed("unable to allow all initiators", cerrors.CommandFailed, result.Error,
				&model.StepFailure{Step: stepBindACL, Initiator: model.AclAllowAll, Command: result.Details})
		}
		steps++
	}

	if steps > 0 {
		o.persist(op)
	}
	return succeeded(fmt.Sprintf("target %d allows all initiators", target.Tid),
		&model.AclReport{Tid: target.Tid, Action: ActionAllowAll, Initiators: []string{model.AclAllowAll}})
}

// ClearACL unbinds every ACL entry, stopping at the first failure.  Unlike SetACL it does not
// continue past a failed unbind.
func (o *Orchestrator) ClearACL(req *ClearACLRequest) *model.Result {
	log.Tracef(">>>>> ClearACL, tid=%v", req.Tid)
	defer log.Trace("<<<<< ClearACL")

	if err := validate(req); err != nil {
		return rejected(err)
	}
	tid := mustID(req.Tid)
	op := o.begin("ClearACL", log.Fields{"tid": tid})
	defer o.lock(tid)()

	target, err := o.snapshot.FindTarget(tid)
	if err != nil {
		return op.end(rejected(err))
	}
	for _, initiator := range target.AclList {
		result := o.run(op, o.commands.Unbind(tid, initiator))
		if !result.Success {
			return op.end(stepFailed("unable to clear ACL", cerrors.CommandFailed, result.Error,
				&model.StepFailure{Step: stepUnbindACL, Initiator: initiator, Command: result.Details}))
		}
	}
	o.persist(op)
	return op.end(succeeded(fmt.Sprintf("all ACL entries of target %d removed", tid), &model.ResourceRef{Tid: tid, Operation: "clear_acl"}))
}

// GetTargetACL returns the ACL policy of one target
func (o *Orchestrator) GetTargetACL(req *TargetRequest) *model.Result {
	log.Tracef(">>>>> GetTargetACL, tid=%v", req.Tid)
	defer log.Trace("<<<<< GetTargetACL")

	if err := validate(req); err != nil {
		return rejected(err)
	}
	target, err := o.snapshot.FindTarget(mustID(req.Tid))
	if err != nil {
		return rejected(err)
	}
	return succeeded("", &model.TargetACL{
		Tid:     target.Tid,
		Name:    target.Name,
		AclMode: target.AclMode(),
		AclList: target.AclList,
	})
}
