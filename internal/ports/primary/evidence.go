package primary

import (
	"context"

	"github.com/example/warden/internal/models"
)

// EvidenceService defines the primary port for the evidence and reasoning
// ledger. Everything here appends; corrections are new entries.
type EvidenceService interface {
	// AddEvidence stores a redacted evidence object and returns it with
	// its content hash.
	AddEvidence(ctx context.Context, req AddEvidenceRequest) (*models.EvidenceObject, error)

	// LinkEvidence associates evidence with a governance record.
	LinkEvidence(ctx context.Context, req LinkEvidenceRequest) (*models.ExplainabilityLink, error)

	// ListLinks lists evidence links from a governance record.
	ListLinks(ctx context.Context, fromType, fromID string) ([]*models.ExplainabilityLink, error)

	// AppendReasoning writes a server-generated reasoning summary for an
	// entity. Free-form client text is rejected at the API boundary; this
	// method is called by the engine itself.
	AppendReasoning(ctx context.Context, req AppendReasoningRequest) (*models.ReasoningLedgerEntry, error)

	// LatestReasoning retrieves the authoritative (newest) reasoning entry
	// for an entity.
	LatestReasoning(ctx context.Context, entityType, entityID string) (*models.ReasoningLedgerEntry, error)

	// ListReasoning retrieves the full reasoning history for an entity.
	ListReasoning(ctx context.Context, entityType, entityID string) ([]*models.ReasoningLedgerEntry, error)
}

// AddEvidenceRequest contains parameters for storing evidence.
type AddEvidenceRequest struct {
	OrganizationID string
	Kind           string
	Content        string
}

// LinkEvidenceRequest contains parameters for linking evidence.
type LinkEvidenceRequest struct {
	FromType   string
	FromID     string
	EvidenceID string
	Weight     float64
	Note       string
}

// AppendReasoningRequest contains parameters for a reasoning entry.
type AppendReasoningRequest struct {
	EntityType string
	EntityID   string
	Summary    string
	Confidence float64
	Model      string
}
