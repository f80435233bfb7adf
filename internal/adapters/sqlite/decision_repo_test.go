package sqlite_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/example/warden/internal/adapters/sqlite"
	"github.com/example/warden/internal/models"
)

func TestDecisionRepository_CreateIfAbsent(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewDecisionRepository(db, nil)
	ctx := context.Background()

	seedProposal(t, db, "prop-001", "")

	t.Run("creates first decision", func(t *testing.T) {
		err := repo.CreateIfAbsent(ctx, testDecision("dec-001", "prop-001", models.DecisionApproved))
		if err != nil {
			t.Fatalf("CreateIfAbsent failed: %v", err)
		}

		got, err := repo.GetActiveByProposal(ctx, "prop-001")
		if err != nil {
			t.Fatalf("GetActiveByProposal failed: %v", err)
		}
		if got.ID != "dec-001" {
			t.Errorf("ID = %q, want dec-001", got.ID)
		}
		if got.Decision != models.DecisionApproved {
			t.Errorf("Decision = %q, want APPROVED", got.Decision)
		}
	})

	t.Run("second decision returns ErrAlreadyDecided", func(t *testing.T) {
		err := repo.CreateIfAbsent(ctx, testDecision("dec-002", "prop-001", models.DecisionRejected))
		if !errors.Is(err, models.ErrAlreadyDecided) {
			t.Fatalf("err = %v, want ErrAlreadyDecided", err)
		}

		// The loser left no row behind.
		if _, err := repo.GetByID(ctx, "dec-002"); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("loser row err = %v, want ErrNotFound", err)
		}
	})
}

// Concurrent submitters racing on the same proposal: exactly one wins, the
// rest observe ErrAlreadyDecided. The guard is the partial unique index, not
// a read-then-write check.
func TestDecisionRepository_ConcurrentCreate(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewDecisionRepository(db, nil)
	ctx := context.Background()

	seedProposal(t, db, "prop-001", "")

	const racers = 8
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = repo.CreateIfAbsent(ctx, testDecision(fmt.Sprintf("dec-%03d", i), "prop-001", models.DecisionApproved))
		}(i)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, models.ErrAlreadyDecided):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("wins = %d, want 1", wins)
	}
	if conflicts != racers-1 {
		t.Errorf("conflicts = %d, want %d", conflicts, racers-1)
	}
}

func TestDecisionRepository_Supersede(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewDecisionRepository(db, nil)
	ctx := context.Background()

	seedProposal(t, db, "prop-001", "")
	if err := repo.CreateIfAbsent(ctx, testDecision("dec-001", "prop-001", models.DecisionApproved)); err != nil {
		t.Fatalf("CreateIfAbsent failed: %v", err)
	}

	t.Run("replaces the active decision", func(t *testing.T) {
		replacement := testDecision("dec-002", "prop-001", models.DecisionRejected)
		replacement.SupersedesID = "dec-001"
		replacement.Reason = "approved in error"

		if err := repo.Supersede(ctx, "dec-001", replacement); err != nil {
			t.Fatalf("Supersede failed: %v", err)
		}

		active, err := repo.GetActiveByProposal(ctx, "prop-001")
		if err != nil {
			t.Fatalf("GetActiveByProposal failed: %v", err)
		}
		if active.ID != "dec-002" {
			t.Errorf("active ID = %q, want dec-002", active.ID)
		}
		if active.SupersedesID != "dec-001" {
			t.Errorf("SupersedesID = %q, want dec-001", active.SupersedesID)
		}

		old, err := repo.GetByID(ctx, "dec-001")
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if old.SupersededBy != "dec-002" {
			t.Errorf("SupersededBy = %q, want dec-002", old.SupersededBy)
		}
	})

	t.Run("superseding a superseded decision fails", func(t *testing.T) {
		replacement := testDecision("dec-003", "prop-001", models.DecisionApproved)
		replacement.SupersedesID = "dec-001"

		err := repo.Supersede(ctx, "dec-001", replacement)
		if err == nil {
			t.Fatal("expected error, got nil")
		}

		// Failed supersede leaves no partial write.
		if _, err := repo.GetByID(ctx, "dec-003"); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("dec-003 err = %v, want ErrNotFound", err)
		}
	})
}

func TestDecisionRepository_GetActiveByProposal_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewDecisionRepository(db, nil)

	seedProposal(t, db, "prop-001", "")

	_, err := repo.GetActiveByProposal(context.Background(), "prop-001")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
