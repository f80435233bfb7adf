package models

import "errors"

// Sentinel errors for governance flow control. Services wrap these with
// context; callers test with errors.Is.
var (
	// ErrAlreadyDecided is returned when a proposal already has an active
	// (non-superseded) decision. Concurrency guard, never retried.
	ErrAlreadyDecided = errors.New("proposal already decided")

	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned for malformed proposals or payloads.
	// Fatal: jobs failing with a validation error are never retried.
	ErrValidation = errors.New("validation failed")

	// ErrPolicyEvaluation is returned when a rule set cannot be evaluated
	// (misconfigured condition). Callers must log it and fall back to
	// "no auto-decision" - never approve on a broken rule.
	ErrPolicyEvaluation = errors.New("policy evaluation failed")

	// ErrExecutionTransient marks a collaborator failure worth retrying
	// (timeout, transient network error).
	ErrExecutionTransient = errors.New("transient execution failure")

	// ErrExecutionFatal marks a collaborator rejection that retrying cannot
	// fix (malformed payload, business-rule rejection). Dead-letters the job.
	ErrExecutionFatal = errors.New("fatal execution failure")

	// ErrBranchingDeadEnd is returned when no branch rule matches and the
	// step has no default edge. Fails the run instead of hanging it.
	ErrBranchingDeadEnd = errors.New("no matching branch rule and no default edge")

	// ErrTemplateImmutable is returned on attempts to edit a published
	// playbook template. Edits must clone a new version.
	ErrTemplateImmutable = errors.New("published template is immutable")
)
