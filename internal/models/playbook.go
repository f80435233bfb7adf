package models

import "time"

// PlaybookTemplate is a versioned, directed graph of steps. Published
// templates are immutable; edits clone a new version with ParentTemplateID
// pointing at the prior one.
type PlaybookTemplate struct {
	ID               string
	OrganizationID   string
	Key              string
	Version          int
	Status           string
	ParentTemplateID string
	EntryStepID      string
	CreatedAt        time.Time
	PublishedAt      *time.Time
}

// Template status constants.
const (
	TemplateDraft     = "DRAFT"
	TemplatePublished = "PUBLISHED"
	TemplateArchived  = "ARCHIVED"
)

// BranchRule is one ordered predicate -> target-step edge on a branching
// step. First matching rule wins.
type BranchRule struct {
	When       []Condition `json:"when"`
	NextStepID string      `json:"next_step_id"`
}

// TemplateStep is one node of a playbook template graph.
type TemplateStep struct {
	ID              string
	TemplateID      string
	Name            string
	StepType        string
	StepOrder       int
	ActionType      string
	Params          map[string]any
	NextStepID      string
	BranchRules     []BranchRule
	WaitForPrevious bool
	TimeoutSeconds  int
	CreatedAt       time.Time
}

// Step type constants. Closed set; the run engine dispatches per variant.
const (
	StepAction   = "ACTION"
	StepCheck    = "CHECK"
	StepWait     = "WAIT"
	StepBranch   = "BRANCH"
	StepAIRouter = "AI_ROUTER"
)

// ValidStepType reports whether t names a known step type.
func ValidStepType(t string) bool {
	switch t {
	case StepAction, StepCheck, StepWait, StepBranch, StepAIRouter:
		return true
	}
	return false
}

// Branching reports whether the step type routes via branch rules.
func Branching(stepType string) bool {
	return stepType == StepCheck || stepType == StepBranch || stepType == StepAIRouter
}

// PlaybookRun is one triggered instance of a template.
type PlaybookRun struct {
	ID                string
	OrganizationID    string
	TemplateID        string
	Status            string
	TriggerContext    map[string]any
	Outputs           map[string]any
	StalledNotifiedAt *time.Time
	StartedAt         *time.Time
	EndedAt           *time.Time
	CreatedAt         time.Time
}

// Run status constants.
const (
	RunCreated   = "CREATED"
	RunRunning   = "RUNNING"
	RunCompleted = "COMPLETED"
	RunFailed    = "FAILED"
	RunCancelled = "CANCELLED"
)

// RunTerminal reports whether a run status is terminal.
func RunTerminal(status string) bool {
	return status == RunCompleted || status == RunFailed || status == RunCancelled
}

// RunStep is one traversed step of a run. StepOrder preserves the authored
// order for audit even when wait_for_previous=false steps complete out of
// order.
type RunStep struct {
	ID                 string
	RunID              string
	TemplateStepID     string
	StepOrder          int
	Status             string
	Outputs            map[string]any
	SelectedNextStepID string
	EvaluationTrace    *EvaluationTrace
	ProposalID         string
	StartedAt          *time.Time
	EndedAt            *time.Time
	CreatedAt          time.Time
}

// Run step status constants.
const (
	RunStepPending = "PENDING"
	RunStepRunning = "RUNNING"
	RunStepDone    = "DONE"
	RunStepSkipped = "SKIPPED"
	RunStepFailed  = "FAILED"
)

// EvaluationTrace records which branch rule matched and the inputs it saw,
// for explainability. MatchedRule is -1 when the default edge was taken.
type EvaluationTrace struct {
	MatchedRule int            `json:"matched_rule"`
	Input       map[string]any `json:"input"`
	Reason      string         `json:"reason"`
}

// Well-known run step output keys written by the engine.
const (
	OutputStatus = "status"
	OutputError  = "error"
	OutputResult = "result"
)
