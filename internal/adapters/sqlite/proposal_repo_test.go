package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/example/warden/internal/adapters/sqlite"
	"github.com/example/warden/internal/models"
	"github.com/example/warden/internal/ports/secondary"
)

func TestProposalRepository_Create(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewProposalRepository(db, nil)
	ctx := context.Background()

	t.Run("creates proposal successfully", func(t *testing.T) {
		proposal := testProposal("prop-001", "")
		proposal.CorrelationID = "run-step-9"

		err := repo.Create(ctx, proposal)
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		got, err := repo.GetByID(ctx, "prop-001")
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if got.ActionType != "send_email" {
			t.Errorf("ActionType = %q, want %q", got.ActionType, "send_email")
		}
		if got.RiskLevel != models.RiskLow {
			t.Errorf("RiskLevel = %q, want %q", got.RiskLevel, models.RiskLow)
		}
		if got.CorrelationID != "run-step-9" {
			t.Errorf("CorrelationID = %q, want %q", got.CorrelationID, "run-step-9")
		}
		if got.Payload["to"] != "ops@example.com" {
			t.Errorf("Payload[to] = %v, want ops@example.com", got.Payload["to"])
		}
	})

	t.Run("rejects duplicate id", func(t *testing.T) {
		err := repo.Create(ctx, testProposal("prop-001", ""))
		if err == nil {
			t.Fatal("expected error for duplicate id, got nil")
		}
	})
}

func TestProposalRepository_Exists(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewProposalRepository(db, nil)
	ctx := context.Background()

	seedProposal(t, db, "prop-001", "")

	t.Run("returns true for existing proposal", func(t *testing.T) {
		exists, err := repo.Exists(ctx, "prop-001")
		if err != nil {
			t.Fatalf("Exists failed: %v", err)
		}
		if !exists {
			t.Error("expected true, got false")
		}
	})

	t.Run("returns false for missing proposal", func(t *testing.T) {
		exists, err := repo.Exists(ctx, "prop-999")
		if err != nil {
			t.Fatalf("Exists failed: %v", err)
		}
		if exists {
			t.Error("expected false, got true")
		}
	})
}

func TestProposalRepository_GetByID_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewProposalRepository(db, nil)

	_, err := repo.GetByID(context.Background(), "prop-999")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestProposalRepository_List(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewProposalRepository(db, nil)
	ctx := context.Background()

	a := testProposal("prop-001", "org-001")
	b := testProposal("prop-002", "org-001")
	b.ActionType = "update_crm"
	c := testProposal("prop-003", "org-002")
	for _, p := range []*models.Proposal{a, b, c} {
		if err := repo.Create(ctx, p); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	t.Run("filters by organization", func(t *testing.T) {
		list, err := repo.List(ctx, secondary.ProposalFilters{OrganizationID: "org-001"})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(list) != 2 {
			t.Errorf("len = %d, want 2", len(list))
		}
	})

	t.Run("filters by action type", func(t *testing.T) {
		list, err := repo.List(ctx, secondary.ProposalFilters{ActionType: "update_crm"})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(list) != 1 {
			t.Fatalf("len = %d, want 1", len(list))
		}
		if list[0].ID != "prop-002" {
			t.Errorf("ID = %q, want prop-002", list[0].ID)
		}
	})

	t.Run("applies limit", func(t *testing.T) {
		list, err := repo.List(ctx, secondary.ProposalFilters{Limit: 1})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(list) != 1 {
			t.Errorf("len = %d, want 1", len(list))
		}
	})
}
