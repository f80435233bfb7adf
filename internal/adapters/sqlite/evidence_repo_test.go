package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/warden/internal/adapters/sqlite"
	"github.com/example/warden/internal/models"
)

func TestEvidenceRepository_EvidenceAndLinks(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewEvidenceRepository(db, nil)
	ctx := context.Background()
	now := time.Now().UTC()

	evidence := &models.EvidenceObject{
		ID:             "ev-001",
		OrganizationID: "org-001",
		Kind:           "customer_email",
		Content:        "please cancel my subscription",
		SHA256:         "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
		CreatedAt:      now,
	}
	if err := repo.CreateEvidence(ctx, evidence); err != nil {
		t.Fatalf("CreateEvidence failed: %v", err)
	}

	t.Run("round-trips evidence", func(t *testing.T) {
		got, err := repo.GetEvidence(ctx, "ev-001")
		if err != nil {
			t.Fatalf("GetEvidence failed: %v", err)
		}
		if got.Kind != "customer_email" {
			t.Errorf("Kind = %q, want customer_email", got.Kind)
		}
		if got.SHA256 != evidence.SHA256 {
			t.Errorf("SHA256 = %q, want %q", got.SHA256, evidence.SHA256)
		}
	})

	t.Run("links evidence to a proposal", func(t *testing.T) {
		seedProposal(t, db, "prop-001", "")
		link := &models.ExplainabilityLink{
			ID:         "link-001",
			FromType:   models.LinkFromProposal,
			FromID:     "prop-001",
			EvidenceID: "ev-001",
			Weight:     0.9,
			Note:       "triggering message",
			CreatedAt:  now,
		}
		if err := repo.CreateLink(ctx, link); err != nil {
			t.Fatalf("CreateLink failed: %v", err)
		}

		links, err := repo.ListLinks(ctx, models.LinkFromProposal, "prop-001")
		if err != nil {
			t.Fatalf("ListLinks failed: %v", err)
		}
		if len(links) != 1 {
			t.Fatalf("len = %d, want 1", len(links))
		}
		if links[0].Weight != 0.9 {
			t.Errorf("Weight = %v, want 0.9", links[0].Weight)
		}
	})

	t.Run("rejects unknown link source type", func(t *testing.T) {
		err := repo.CreateLink(ctx, &models.ExplainabilityLink{
			ID: "link-bad", FromType: "WIDGET", FromID: "w-1", EvidenceID: "ev-001", CreatedAt: now,
		})
		if !errors.Is(err, models.ErrValidation) {
			t.Errorf("err = %v, want ErrValidation", err)
		}
	})
}

func TestEvidenceRepository_ReasoningLedger(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewEvidenceRepository(db, nil)
	ctx := context.Background()
	now := time.Now().UTC()

	first := &models.ReasoningLedgerEntry{
		ID:         "rl-001",
		EntityType: "DECISION",
		EntityID:   "dec-001",
		Summary:    "approved: low risk, matches retention policy",
		Confidence: 0.82,
		Model:      "router-v2",
		CreatedAt:  now,
	}
	correction := &models.ReasoningLedgerEntry{
		ID:         "rl-002",
		EntityType: "DECISION",
		EntityID:   "dec-001",
		Summary:    "corrected: risk reassessed after new evidence",
		Confidence: 0.67,
		Model:      "router-v2",
		CreatedAt:  now.Add(time.Minute),
	}
	if err := repo.CreateLedgerEntry(ctx, first); err != nil {
		t.Fatalf("CreateLedgerEntry failed: %v", err)
	}
	if err := repo.CreateLedgerEntry(ctx, correction); err != nil {
		t.Fatalf("CreateLedgerEntry failed: %v", err)
	}

	t.Run("latest entry wins", func(t *testing.T) {
		got, err := repo.LatestLedgerEntry(ctx, "DECISION", "dec-001")
		if err != nil {
			t.Fatalf("LatestLedgerEntry failed: %v", err)
		}
		if got.ID != "rl-002" {
			t.Errorf("ID = %q, want rl-002", got.ID)
		}
		if got.Confidence != 0.67 {
			t.Errorf("Confidence = %v, want 0.67", got.Confidence)
		}
	})

	t.Run("history is preserved oldest first", func(t *testing.T) {
		entries, err := repo.ListLedgerEntries(ctx, "DECISION", "dec-001")
		if err != nil {
			t.Fatalf("ListLedgerEntries failed: %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("len = %d, want 2", len(entries))
		}
		if entries[0].ID != "rl-001" {
			t.Errorf("entries[0].ID = %q, want rl-001", entries[0].ID)
		}
	})

	t.Run("unknown entity is not found", func(t *testing.T) {
		_, err := repo.LatestLedgerEntry(ctx, "DECISION", "dec-999")
		if !errors.Is(err, models.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}
