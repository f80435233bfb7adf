package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/example/warden/internal/models"
	"github.com/example/warden/internal/ports/primary"
	"github.com/example/warden/internal/ports/secondary"
)

// EvidenceServiceImpl implements the EvidenceService interface.
type EvidenceServiceImpl struct {
	evidenceRepo secondary.EvidenceRepository
}

// NewEvidenceService creates a new EvidenceService with injected dependencies.
func NewEvidenceService(evidenceRepo secondary.EvidenceRepository) *EvidenceServiceImpl {
	return &EvidenceServiceImpl{evidenceRepo: evidenceRepo}
}

// AddEvidence stores a redacted evidence object with its content hash.
func (s *EvidenceServiceImpl) AddEvidence(ctx context.Context, req primary.AddEvidenceRequest) (*models.EvidenceObject, error) {
	if req.OrganizationID == "" {
		return nil, fmt.Errorf("organization is required: %w", models.ErrValidation)
	}
	if req.Content == "" {
		return nil, fmt.Errorf("evidence content is required: %w", models.ErrValidation)
	}

	sum := sha256.Sum256([]byte(req.Content))
	evidence := &models.EvidenceObject{
		ID:             newID("evd"),
		OrganizationID: req.OrganizationID,
		Kind:           req.Kind,
		Content:        req.Content,
		SHA256:         hex.EncodeToString(sum[:]),
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.evidenceRepo.CreateEvidence(ctx, evidence); err != nil {
		return nil, fmt.Errorf("failed to store evidence: %w", err)
	}
	return evidence, nil
}

// LinkEvidence associates evidence with a governance record.
func (s *EvidenceServiceImpl) LinkEvidence(ctx context.Context, req primary.LinkEvidenceRequest) (*models.ExplainabilityLink, error) {
	if !models.ValidLinkFromType(req.FromType) {
		return nil, fmt.Errorf("invalid link source type %q: %w", req.FromType, models.ErrValidation)
	}
	if _, err := s.evidenceRepo.GetEvidence(ctx, req.EvidenceID); err != nil {
		return nil, err
	}

	link := &models.ExplainabilityLink{
		ID:         newID("lnk"),
		FromType:   req.FromType,
		FromID:     req.FromID,
		EvidenceID: req.EvidenceID,
		Weight:     req.Weight,
		Note:       req.Note,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.evidenceRepo.CreateLink(ctx, link); err != nil {
		return nil, fmt.Errorf("failed to link evidence: %w", err)
	}
	return link, nil
}

// ListLinks lists evidence links from a governance record.
func (s *EvidenceServiceImpl) ListLinks(ctx context.Context, fromType, fromID string) ([]*models.ExplainabilityLink, error) {
	return s.evidenceRepo.ListLinks(ctx, fromType, fromID)
}

// AppendReasoning writes a server-generated reasoning summary. Corrections
// append; nothing here updates a prior entry.
func (s *EvidenceServiceImpl) AppendReasoning(ctx context.Context, req primary.AppendReasoningRequest) (*models.ReasoningLedgerEntry, error) {
	if req.Summary == "" {
		return nil, fmt.Errorf("reasoning summary is required: %w", models.ErrValidation)
	}
	if req.Confidence < 0 || req.Confidence > 1 {
		return nil, fmt.Errorf("confidence %v out of range [0,1]: %w", req.Confidence, models.ErrValidation)
	}

	entry := &models.ReasoningLedgerEntry{
		ID:         newID("rsn"),
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		Summary:    req.Summary,
		Confidence: req.Confidence,
		Model:      req.Model,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.evidenceRepo.CreateLedgerEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to append reasoning entry: %w", err)
	}
	return entry, nil
}

// LatestReasoning retrieves the authoritative reasoning entry for an entity.
func (s *EvidenceServiceImpl) LatestReasoning(ctx context.Context, entityType, entityID string) (*models.ReasoningLedgerEntry, error) {
	return s.evidenceRepo.LatestLedgerEntry(ctx, entityType, entityID)
}

// ListReasoning retrieves the full reasoning history for an entity.
func (s *EvidenceServiceImpl) ListReasoning(ctx context.Context, entityType, entityID string) ([]*models.ReasoningLedgerEntry, error) {
	return s.evidenceRepo.ListLedgerEntries(ctx, entityType, entityID)
}

// Ensure EvidenceServiceImpl implements the interface
var _ primary.EvidenceService = (*EvidenceServiceImpl)(nil)
