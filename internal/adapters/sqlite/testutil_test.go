// Package sqlite_test contains integration tests for SQLite repositories.
//
// # Schema Protection
//
// This file is the SINGLE POINT where the database schema is loaded for
// tests. All test setup functions use db.GetSchemaSQL() to ensure tests run
// against the authoritative schema, preventing drift between test and
// production.
//
// DO NOT hardcode CREATE TABLE statements in test files. Use setupTestDB()
// and the seed* helpers instead.
package sqlite_test

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/warden/internal/db"
	"github.com/example/warden/internal/models"
)

// setupTestDB creates an in-memory database with the authoritative schema.
// The pool is pinned to a single connection: each sqlite ":memory:"
// connection is its own empty database, so a second pooled connection would
// see no tables.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	testDB.SetMaxOpenConns(1)

	// Use the authoritative schema from schema.go
	_, err = testDB.Exec(db.GetSchemaSQL())
	if err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

// seedProposal inserts a test proposal and returns its ID.
func seedProposal(t *testing.T, db *sql.DB, id, orgID string) string {
	t.Helper()
	if id == "" {
		id = "prop-001"
	}
	if orgID == "" {
		orgID = "org-001"
	}
	_, err := db.Exec(
		"INSERT INTO proposals (id, organization_id, action_type, scope, payload, risk_level) VALUES (?, ?, 'send_email', 'USER', '{}', 'LOW')",
		id, orgID,
	)
	if err != nil {
		t.Fatalf("failed to seed proposal: %v", err)
	}
	return id
}

// seedDecision inserts an active APPROVED decision and returns its ID.
func seedDecision(t *testing.T, db *sql.DB, id, proposalID, orgID string) string {
	t.Helper()
	if id == "" {
		id = "dec-001"
	}
	if orgID == "" {
		orgID = "org-001"
	}
	_, err := db.Exec(
		"INSERT INTO decisions (id, proposal_id, organization_id, decision, decided_by, proposal_snapshot) VALUES (?, ?, ?, 'APPROVED', 'user:reviewer-1', '{}')",
		id, proposalID, orgID,
	)
	if err != nil {
		t.Fatalf("failed to seed decision: %v", err)
	}
	return id
}

// seedTemplate inserts a published template with a single ACTION step and
// returns (templateID, stepID).
func seedTemplate(t *testing.T, db *sql.DB, id, orgID string) (string, string) {
	t.Helper()
	if id == "" {
		id = "tmpl-001"
	}
	if orgID == "" {
		orgID = "org-001"
	}
	stepID := id + "-step-1"
	_, err := db.Exec(
		"INSERT INTO playbook_templates (id, organization_id, key, version, status, entry_step_id) VALUES (?, ?, 'incident-response', 1, 'PUBLISHED', ?)",
		id, orgID, stepID,
	)
	if err != nil {
		t.Fatalf("failed to seed template: %v", err)
	}
	_, err = db.Exec(
		"INSERT INTO template_steps (id, template_id, name, step_type, step_order, action_type) VALUES (?, ?, 'notify', 'ACTION', 1, 'send_email')",
		stepID, id,
	)
	if err != nil {
		t.Fatalf("failed to seed template step: %v", err)
	}
	return id, stepID
}

// seedRun inserts a RUNNING run for a template and returns its ID.
func seedRun(t *testing.T, db *sql.DB, id, templateID, orgID string) string {
	t.Helper()
	if id == "" {
		id = "run-001"
	}
	if orgID == "" {
		orgID = "org-001"
	}
	_, err := db.Exec(
		"INSERT INTO playbook_runs (id, organization_id, template_id, status) VALUES (?, ?, ?, 'RUNNING')",
		id, orgID, templateID,
	)
	if err != nil {
		t.Fatalf("failed to seed run: %v", err)
	}
	return id
}

// testProposal builds a proposal model for repository Create calls.
func testProposal(id, orgID string) *models.Proposal {
	if orgID == "" {
		orgID = "org-001"
	}
	return &models.Proposal{
		ID:             id,
		OrganizationID: orgID,
		ActionType:     "send_email",
		Scope:          models.ScopeUser,
		Payload:        map[string]any{"to": "ops@example.com"},
		RiskLevel:      models.RiskLow,
		CreatedAt:      time.Now().UTC(),
	}
}

// testDecision builds a decision model for repository Create calls.
func testDecision(id, proposalID, verdict string) *models.Decision {
	return &models.Decision{
		ID:               id,
		ProposalID:       proposalID,
		OrganizationID:   "org-001",
		Decision:         verdict,
		DecidedBy:        "user:reviewer-1",
		ProposalSnapshot: map[string]any{"payload": map[string]any{"to": "ops@example.com"}},
		CreatedAt:        time.Now().UTC(),
	}
}
