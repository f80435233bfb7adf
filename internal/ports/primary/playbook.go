package primary

import (
	"context"

	"github.com/example/warden/internal/models"
)

// PlaybookService defines the primary port for playbook templates and runs.
type PlaybookService interface {
	// CreateTemplate stores a new DRAFT template with its steps.
	CreateTemplate(ctx context.Context, req CreateTemplateRequest) (*models.PlaybookTemplate, error)

	// PublishTemplate freezes a DRAFT template. Published templates are
	// immutable; edits go through CloneTemplate.
	PublishTemplate(ctx context.Context, templateID string) error

	// CloneTemplate creates a new DRAFT version of a template with
	// parentTemplateId pointing at the source.
	CloneTemplate(ctx context.Context, templateID string) (*models.PlaybookTemplate, error)

	// GetTemplate retrieves a template and its steps.
	GetTemplate(ctx context.Context, templateID string) (*models.PlaybookTemplate, []*models.TemplateStep, error)

	// TriggerRun instantiates the latest published version of templateKey
	// and enqueues the entry step.
	TriggerRun(ctx context.Context, req TriggerRunRequest) (*models.PlaybookRun, error)

	// AdvanceStep drives one run step through its state machine. Called by
	// the job worker for ADVANCE_PLAYBOOK_STEP jobs; never by users.
	AdvanceStep(ctx context.Context, runStepID string) error

	// Signal resumes a parked WAIT step with an external event payload.
	Signal(ctx context.Context, runID, stepName string, payload map[string]any) error

	// CancelRun cancels a run and its still-queued jobs. Running jobs are
	// not forcibly killed; workers observe cancellation cooperatively.
	CancelRun(ctx context.Context, runID string) error

	// GetRun retrieves a run and its traversed steps.
	GetRun(ctx context.Context, runID string) (*models.PlaybookRun, []*models.RunStep, error)

	// SweepWaitTimeouts resumes WAIT steps whose timeout elapsed.
	SweepWaitTimeouts(ctx context.Context) (int, error)

	// SweepStalledRuns emits one outbox notice per stalled run.
	SweepStalledRuns(ctx context.Context) (int, error)
}

// CreateTemplateRequest contains a full template definition.
type CreateTemplateRequest struct {
	OrganizationID string
	Key            string
	Steps          []StepDefinition
}

// StepDefinition defines one template step. Steps are named; edges
// reference step names and are resolved to IDs at creation.
type StepDefinition struct {
	Name            string          `json:"name"`
	StepType        string          `json:"step_type"`
	ActionType      string          `json:"action_type,omitempty"`
	Params          map[string]any  `json:"params,omitempty"`
	Next            string          `json:"next,omitempty"`
	BranchRules     []BranchRuleDef `json:"branch_rules,omitempty"`
	WaitForPrevious *bool           `json:"wait_for_previous,omitempty"`
	TimeoutSeconds  int             `json:"timeout_seconds,omitempty"`
}

// BranchRuleDef is a branch rule referencing a target step by name.
type BranchRuleDef struct {
	When []models.Condition `json:"when"`
	Next string             `json:"next"`
}

// TriggerRunRequest contains parameters for triggering a run.
type TriggerRunRequest struct {
	OrganizationID string
	TemplateKey    string
	TriggerContext map[string]any
}
