package api_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/warden/internal/adapters/connector"
	"github.com/example/warden/internal/adapters/sqlite"
	"github.com/example/warden/internal/api"
	"github.com/example/warden/internal/app"
	"github.com/example/warden/internal/config"
	"github.com/example/warden/internal/core/policy"
	"github.com/example/warden/internal/db"
	"github.com/example/warden/internal/models"
	"github.com/example/warden/internal/ports/primary"
)

type testServer struct {
	router      http.Handler
	policySvc   *app.PolicyServiceImpl
	playbookSvc *app.PlaybookServiceImpl
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	testDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	testDB.SetMaxOpenConns(1)
	if _, err := testDB.Exec(db.GetSchemaSQL()); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	t.Cleanup(func() { testDB.Close() })

	cfg := config.Default()
	proposalRepo := sqlite.NewProposalRepository(testDB, nil)
	decisionRepo := sqlite.NewDecisionRepository(testDB, nil)
	ruleRepo := sqlite.NewPolicyRuleRepository(testDB, nil)
	assignRepo := sqlite.NewAssignmentRepository(testDB, nil)
	jobRepo := sqlite.NewJobRepository(testDB, nil)
	executionRepo := sqlite.NewExecutionRepository(testDB, nil)
	playbookRepo := sqlite.NewPlaybookRepository(testDB, nil)
	evidenceRepo := sqlite.NewEvidenceRepository(testDB, nil)
	outboxRepo := sqlite.NewOutboxRepository(testDB, nil)

	policySvc := app.NewPolicyService(ruleRepo, policy.Config{Enabled: cfg.PolicyEngineEnabled})
	decisionSvc := app.NewDecisionService(decisionRepo, proposalRepo, assignRepo, jobRepo, playbookRepo, outboxRepo, evidenceRepo, cfg)
	proposalSvc := app.NewProposalService(proposalRepo, assignRepo, policySvc, decisionSvc, cfg)
	jobSvc := app.NewJobService(jobRepo, decisionRepo, playbookRepo, outboxRepo, cfg)
	_ = app.NewDecisionExecutor(decisionRepo, executionRepo, playbookRepo, jobSvc, connector.NewRegistry(), cfg)
	playbookSvc := app.NewPlaybookService(playbookRepo, proposalRepo, decisionRepo, executionRepo, jobRepo, outboxRepo, proposalSvc, cfg)
	outboxSvc := app.NewOutboxService(outboxRepo)

	handler := &api.Handler{
		DB:        testDB,
		Proposals: proposalSvc,
		Decisions: decisionSvc,
		Playbooks: playbookSvc,
		Outbox:    outboxSvc,
	}
	return &testServer{
		router:      api.NewRouter(handler),
		policySvc:   policySvc,
		playbookSvc: playbookSvc,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	res := httptest.NewRecorder()
	s.router.ServeHTTP(res, req)
	return res
}

func decode(t *testing.T, res *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func proposalBody(riskLevel string) map[string]any {
	return map[string]any{
		"organization_id": "org-001",
		"action_type":     "send_email",
		"scope":           models.ScopeUser,
		"payload":         map[string]any{"to": "ops@example.com"},
		"risk_level":      riskLevel,
	}
}

func TestCreateProposalAutoDecided(t *testing.T) {
	s := newTestServer(t)
	_, err := s.policySvc.AddRule(context.Background(), primary.AddRuleRequest{
		OrganizationID: "org-001",
		ActionType:     "send_email",
		Scope:          models.ScopeAny,
		MaxRiskLevel:   models.RiskLow,
		AutoDecision:   models.DecisionApproved,
	})
	if err != nil {
		t.Fatalf("add rule: %v", err)
	}

	res := s.do(t, http.MethodPost, "/v1/proposals", proposalBody(models.RiskLow))
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	body := decode(t, res)
	if body["status"] != "DECIDED" {
		t.Errorf("status = %v, want DECIDED", body["status"])
	}
	if body["decision"] == nil {
		t.Error("expected inline decision")
	}
}

func TestCreateProposalPendingApproval(t *testing.T) {
	s := newTestServer(t)

	res := s.do(t, http.MethodPost, "/v1/proposals", proposalBody(models.RiskHigh))
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", res.Code)
	}
	body := decode(t, res)
	if body["status"] != "PENDING_APPROVAL" {
		t.Errorf("status = %v, want PENDING_APPROVAL", body["status"])
	}
	if body["assignment_id"] == nil {
		t.Error("expected an assignment id")
	}
}

func TestCreateProposalValidation(t *testing.T) {
	s := newTestServer(t)

	res := s.do(t, http.MethodPost, "/v1/proposals", map[string]any{"action_type": "send_email"})
	if res.Code != http.StatusBadRequest {
		t.Errorf("missing org: expected 400, got %d", res.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/proposals", bytes.NewBufferString("{not json"))
	res = httptest.NewRecorder()
	s.router.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Errorf("bad json: expected 400, got %d", res.Code)
	}

	if res := s.do(t, http.MethodGet, "/v1/proposals", nil); res.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET: expected 405, got %d", res.Code)
	}
}

func TestRecordDecisionStatuses(t *testing.T) {
	s := newTestServer(t)

	created := decode(t, s.do(t, http.MethodPost, "/v1/proposals", proposalBody(models.RiskHigh)))
	proposalID, _ := created["proposal_id"].(string)
	if proposalID == "" {
		t.Fatal("missing proposal id")
	}

	decision := map[string]any{
		"proposal_id": proposalID,
		"decision":    models.DecisionApproved,
		"decided_by":  "user:reviewer-1",
		"reason":      "looks safe",
	}
	if res := s.do(t, http.MethodPost, "/v1/decisions", decision); res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}

	// The same proposal cannot be decided twice.
	if res := s.do(t, http.MethodPost, "/v1/decisions", decision); res.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", res.Code)
	}

	decision["proposal_id"] = "prop-missing"
	if res := s.do(t, http.MethodPost, "/v1/decisions", decision); res.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", res.Code)
	}

	decision["proposal_id"] = proposalID
	decision["decision"] = "MAYBE"
	if res := s.do(t, http.MethodPost, "/v1/decisions", decision); res.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", res.Code)
	}
}

func TestTriggerCancelSignalRoutes(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	template, err := s.playbookSvc.CreateTemplate(ctx, primary.CreateTemplateRequest{
		OrganizationID: "org-001",
		Key:            "maintenance",
		Steps: []primary.StepDefinition{
			{Name: "window", StepType: models.StepWait, Next: "done"},
			{Name: "done", StepType: models.StepCheck},
		},
	})
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	if err := s.playbookSvc.PublishTemplate(ctx, template.ID); err != nil {
		t.Fatalf("publish: %v", err)
	}

	res := s.do(t, http.MethodPost, "/v1/playbooks/maintenance/runs", map[string]any{
		"organization_id": "org-001",
		"trigger_context": map[string]any{"source": "api-test"},
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("trigger: expected 201, got %d: %s", res.Code, res.Body.String())
	}
	runID, _ := decode(t, res)["run_id"].(string)
	if runID == "" {
		t.Fatal("missing run id")
	}

	res = s.do(t, http.MethodPost, "/v1/playbooks/unknown-key/runs", map[string]any{"organization_id": "org-001"})
	if res.Code != http.StatusNotFound {
		t.Errorf("unknown key: expected 404, got %d", res.Code)
	}

	res = s.do(t, http.MethodPost, fmt.Sprintf("/v1/runs/%s/signal", runID), map[string]any{
		"step_name": "window",
		"payload":   map[string]any{"opened_by": "user:op-1"},
	})
	if res.Code != http.StatusAccepted {
		t.Errorf("signal: expected 202, got %d: %s", res.Code, res.Body.String())
	}

	res = s.do(t, http.MethodPost, fmt.Sprintf("/v1/runs/%s/cancel", runID), nil)
	if res.Code != http.StatusAccepted {
		t.Errorf("cancel: expected 202, got %d: %s", res.Code, res.Body.String())
	}

	// Cancelling a terminal run is a client error, and made-up run actions
	// are not routes.
	res = s.do(t, http.MethodPost, fmt.Sprintf("/v1/runs/%s/cancel", runID), nil)
	if res.Code != http.StatusBadRequest {
		t.Errorf("double cancel: expected 400, got %d", res.Code)
	}
	res = s.do(t, http.MethodPost, fmt.Sprintf("/v1/runs/%s/restart", runID), nil)
	if res.Code != http.StatusNotFound {
		t.Errorf("unknown action: expected 404, got %d", res.Code)
	}
}

func TestOutboxPollAndAck(t *testing.T) {
	s := newTestServer(t)

	created := decode(t, s.do(t, http.MethodPost, "/v1/proposals", proposalBody(models.RiskHigh)))
	proposalID, _ := created["proposal_id"].(string)
	s.do(t, http.MethodPost, "/v1/decisions", map[string]any{
		"proposal_id": proposalID,
		"decision":    models.DecisionRejected,
		"decided_by":  "user:reviewer-1",
	})

	res := s.do(t, http.MethodGet, "/v1/outbox?limit=10", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("poll: expected 200, got %d", res.Code)
	}
	entries, _ := decode(t, res)["entries"].([]any)
	if len(entries) != 1 {
		t.Fatalf("expected 1 queued entry, got %d", len(entries))
	}
	entry, _ := entries[0].(map[string]any)
	entryID, _ := entry["id"].(string)

	res = s.do(t, http.MethodPost, fmt.Sprintf("/v1/outbox/%s/ack", entryID), map[string]any{"status": models.OutboxSent})
	if res.Code != http.StatusOK {
		t.Fatalf("ack: expected 200, got %d: %s", res.Code, res.Body.String())
	}

	res = s.do(t, http.MethodGet, "/v1/outbox", nil)
	if entries, _ := decode(t, res)["entries"].([]any); len(entries) != 0 {
		t.Errorf("expected empty queue after ack, got %d entries", len(entries))
	}

	res = s.do(t, http.MethodPost, fmt.Sprintf("/v1/outbox/%s/ack", entryID), map[string]any{"status": "MAYBE"})
	if res.Code != http.StatusBadRequest {
		t.Errorf("bad ack status: expected 400, got %d", res.Code)
	}

	res = s.do(t, http.MethodGet, "/v1/outbox?limit=zero", nil)
	if res.Code != http.StatusBadRequest {
		t.Errorf("bad limit: expected 400, got %d", res.Code)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	res := s.do(t, http.MethodGet, "/healthz", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if body := decode(t, res); body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
}
