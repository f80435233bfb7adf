package sqlite_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/example/warden/internal/adapters/sqlite"
	"github.com/example/warden/internal/models"
	"github.com/example/warden/internal/ports/secondary"
)

func testJob(id string, priority int, scheduledAt time.Time) *models.AsyncJob {
	return &models.AsyncJob{
		ID:             id,
		OrganizationID: "org-001",
		Type:           models.JobExecuteDecision,
		EntityID:       "dec-001",
		Priority:       priority,
		MaxAttempts:    3,
		ScheduledAt:    scheduledAt,
		CreatedAt:      time.Now().UTC(),
	}
}

func TestJobRepository_Claim(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewJobRepository(db, nil)
	ctx := context.Background()
	past := time.Now().UTC().Add(-time.Minute)

	t.Run("returns nil on empty queue", func(t *testing.T) {
		job, err := repo.Claim(ctx, "worker-1")
		if err != nil {
			t.Fatalf("Claim failed: %v", err)
		}
		if job != nil {
			t.Errorf("job = %v, want nil", job)
		}
	})

	t.Run("claims by priority then age", func(t *testing.T) {
		if err := repo.Create(ctx, testJob("job-low", models.DefaultJobPriority, past)); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if err := repo.Create(ctx, testJob("job-high", 1, past.Add(time.Second))); err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		job, err := repo.Claim(ctx, "worker-1")
		if err != nil {
			t.Fatalf("Claim failed: %v", err)
		}
		if job == nil || job.ID != "job-high" {
			t.Fatalf("claimed %v, want job-high", job)
		}
		if job.Status != models.JobRunning {
			t.Errorf("Status = %q, want RUNNING", job.Status)
		}
		if job.ClaimedBy != "worker-1" {
			t.Errorf("ClaimedBy = %q, want worker-1", job.ClaimedBy)
		}
	})

	t.Run("skips jobs scheduled in the future", func(t *testing.T) {
		if err := repo.Create(ctx, testJob("job-future", 1, time.Now().UTC().Add(time.Hour))); err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		job, err := repo.Claim(ctx, "worker-1")
		if err != nil {
			t.Fatalf("Claim failed: %v", err)
		}
		if job == nil || job.ID != "job-low" {
			t.Fatalf("claimed %v, want job-low", job)
		}
	})
}

// K workers racing over N jobs: every job is claimed exactly once.
func TestJobRepository_ConcurrentClaim(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewJobRepository(db, nil)
	ctx := context.Background()
	past := time.Now().UTC().Add(-time.Minute)

	const jobs = 6
	for i := 0; i < jobs; i++ {
		if err := repo.Create(ctx, testJob(fmt.Sprintf("job-%03d", i), models.DefaultJobPriority, past)); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	const workers = 4
	var mu sync.Mutex
	claimed := make(map[string]string)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			workerID := fmt.Sprintf("worker-%d", w)
			for {
				job, err := repo.Claim(ctx, workerID)
				if err != nil {
					t.Errorf("Claim failed: %v", err)
					return
				}
				if job == nil {
					return
				}
				mu.Lock()
				if prev, dup := claimed[job.ID]; dup {
					t.Errorf("job %s claimed by both %s and %s", job.ID, prev, workerID)
				}
				claimed[job.ID] = workerID
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	if len(claimed) != jobs {
		t.Errorf("claimed %d jobs, want %d", len(claimed), jobs)
	}
}

func TestJobRepository_FailRetry(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewJobRepository(db, nil)
	ctx := context.Background()
	past := time.Now().UTC().Add(-time.Minute)

	if err := repo.Create(ctx, testJob("job-001", models.DefaultJobPriority, past)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := repo.Claim(ctx, "worker-1"); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}

	nextRun := time.Now().UTC().Add(30 * time.Second)
	if err := repo.FailRetry(ctx, "job-001", "connector timeout", nextRun); err != nil {
		t.Fatalf("FailRetry failed: %v", err)
	}

	job, err := repo.GetByID(ctx, "job-001")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if job.Status != models.JobQueued {
		t.Errorf("Status = %q, want QUEUED", job.Status)
	}
	if job.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", job.Attempts)
	}
	if job.LastError != "connector timeout" {
		t.Errorf("LastError = %q, want connector timeout", job.LastError)
	}
	if job.ClaimedBy != "" {
		t.Errorf("ClaimedBy = %q, want cleared", job.ClaimedBy)
	}

	// Requeued for the future, so not claimable yet.
	next, err := repo.Claim(ctx, "worker-2")
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if next != nil {
		t.Errorf("claimed %v before backoff elapsed", next)
	}
}

func TestJobRepository_FailDead(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewJobRepository(db, nil)
	ctx := context.Background()
	past := time.Now().UTC().Add(-time.Minute)

	if err := repo.Create(ctx, testJob("job-001", models.DefaultJobPriority, past)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := repo.Claim(ctx, "worker-1"); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}

	if err := repo.FailDead(ctx, "job-001", "invalid payload"); err != nil {
		t.Fatalf("FailDead failed: %v", err)
	}

	job, err := repo.GetByID(ctx, "job-001")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if job.Status != models.JobDeadLetter {
		t.Errorf("Status = %q, want DEAD_LETTER", job.Status)
	}
	if !job.Terminal() {
		t.Error("expected terminal job")
	}
}

func TestJobRepository_CancelQueuedByCorrelation(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewJobRepository(db, nil)
	ctx := context.Background()
	past := time.Now().UTC().Add(-time.Minute)

	queued := testJob("job-001", models.DefaultJobPriority, past)
	queued.CorrelationID = "run-001"
	running := testJob("job-002", 1, past) // claimed first
	running.CorrelationID = "run-001"
	other := testJob("job-003", models.DefaultJobPriority, past)
	other.CorrelationID = "run-002"
	for _, j := range []*models.AsyncJob{queued, running, other} {
		if err := repo.Create(ctx, j); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	claimed, err := repo.Claim(ctx, "worker-1")
	if err != nil || claimed == nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if claimed.ID != "job-002" {
		t.Fatalf("claimed %s, want job-002", claimed.ID)
	}

	n, err := repo.CancelQueuedByCorrelation(ctx, "run-001")
	if err != nil {
		t.Fatalf("CancelQueuedByCorrelation failed: %v", err)
	}
	if n != 1 {
		t.Errorf("cancelled = %d, want 1", n)
	}

	cancelled, _ := repo.GetByID(ctx, "job-001")
	if cancelled.Status != models.JobCancelled {
		t.Errorf("job-001 Status = %q, want CANCELLED", cancelled.Status)
	}
	untouched, _ := repo.GetByID(ctx, "job-002")
	if untouched.Status != models.JobRunning {
		t.Errorf("job-002 Status = %q, want RUNNING", untouched.Status)
	}
	unrelated, _ := repo.GetByID(ctx, "job-003")
	if unrelated.Status != models.JobQueued {
		t.Errorf("job-003 Status = %q, want QUEUED", unrelated.Status)
	}
}

func TestJobRepository_CountByStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewJobRepository(db, nil)
	ctx := context.Background()
	past := time.Now().UTC().Add(-time.Minute)

	for i := 0; i < 3; i++ {
		if err := repo.Create(ctx, testJob(fmt.Sprintf("job-%03d", i), models.DefaultJobPriority, past)); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	if _, err := repo.Claim(ctx, "worker-1"); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}

	counts, err := repo.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("CountByStatus failed: %v", err)
	}
	if counts[models.JobQueued] != 2 {
		t.Errorf("QUEUED = %d, want 2", counts[models.JobQueued])
	}
	if counts[models.JobRunning] != 1 {
		t.Errorf("RUNNING = %d, want 1", counts[models.JobRunning])
	}
}

func TestJobRepository_List(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewJobRepository(db, nil)
	ctx := context.Background()
	past := time.Now().UTC().Add(-time.Minute)

	a := testJob("job-001", models.DefaultJobPriority, past)
	a.CorrelationID = "run-001"
	b := testJob("job-002", models.DefaultJobPriority, past)
	b.Type = models.JobAdvancePlaybookStep
	for _, j := range []*models.AsyncJob{a, b} {
		if err := repo.Create(ctx, j); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	t.Run("filters by type", func(t *testing.T) {
		list, err := repo.List(ctx, secondary.JobFilters{Type: models.JobAdvancePlaybookStep})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(list) != 1 || list[0].ID != "job-002" {
			t.Errorf("list = %v, want [job-002]", list)
		}
	})

	t.Run("filters by correlation", func(t *testing.T) {
		list, err := repo.List(ctx, secondary.JobFilters{CorrelationID: "run-001"})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(list) != 1 || list[0].ID != "job-001" {
			t.Errorf("list = %v, want [job-001]", list)
		}
	})
}
