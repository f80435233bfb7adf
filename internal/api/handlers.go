// Package api exposes the governance engine over HTTP. Handlers are thin:
// decode, call the primary port, map the error to a status code.
package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/warden/internal/models"
	"github.com/example/warden/internal/ports/primary"
)

type Handler struct {
	DB        *sql.DB
	Proposals primary.ProposalService
	Decisions primary.DecisionService
	Playbooks primary.PlaybookService
	Outbox    primary.OutboxService
}

type proposalRequest struct {
	OrganizationID string         `json:"organization_id"`
	ActionType     string         `json:"action_type"`
	Scope          string         `json:"scope"`
	Payload        map[string]any `json:"payload"`
	RiskLevel      string         `json:"risk_level"`
	CorrelationID  string         `json:"correlation_id"`
}

type decisionView struct {
	ID         string `json:"id"`
	ProposalID string `json:"proposal_id"`
	Decision   string `json:"decision"`
	DecidedBy  string `json:"decided_by"`
	Reason     string `json:"reason,omitempty"`
}

func viewDecision(d *models.Decision) *decisionView {
	return &decisionView{
		ID:         d.ID,
		ProposalID: d.ProposalID,
		Decision:   d.Decision,
		DecidedBy:  d.DecidedBy,
		Reason:     d.Reason,
	}
}

func (h *Handler) CreateProposal(w http.ResponseWriter, r *http.Request) {
	var req proposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	resp, err := h.Proposals.CreateProposal(r.Context(), primary.CreateProposalRequest{
		OrganizationID: req.OrganizationID,
		ActionType:     req.ActionType,
		Scope:          req.Scope,
		Payload:        req.Payload,
		RiskLevel:      req.RiskLevel,
		CorrelationID:  req.CorrelationID,
	})
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}

	body := map[string]any{
		"proposal_id": resp.Proposal.ID,
		"status":      "PENDING_APPROVAL",
	}
	if resp.Decision != nil {
		body["status"] = "DECIDED"
		body["decision"] = viewDecision(resp.Decision)
	}
	if resp.Assignment != nil {
		body["assignment_id"] = resp.Assignment.ID
		body["reviewer_id"] = resp.Assignment.ReviewerID
	}
	writeJSON(w, http.StatusCreated, body)
}

type recordDecisionRequest struct {
	ProposalID      string         `json:"proposal_id"`
	Decision        string         `json:"decision"`
	DecidedBy       string         `json:"decided_by"`
	Reason          string         `json:"reason"`
	ModifiedPayload map[string]any `json:"modified_payload"`
}

func (h *Handler) RecordDecision(w http.ResponseWriter, r *http.Request) {
	var req recordDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	decision, err := h.Decisions.RecordDecision(r.Context(), primary.RecordDecisionRequest{
		ProposalID:      req.ProposalID,
		Decision:        req.Decision,
		DecidedBy:       req.DecidedBy,
		Reason:          req.Reason,
		ModifiedPayload: req.ModifiedPayload,
	})
	if err != nil {
		writeError(w, err, http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusCreated, viewDecision(decision))
}

type triggerRunRequest struct {
	OrganizationID string         `json:"organization_id"`
	TriggerContext map[string]any `json:"trigger_context"`
}

// TriggerRun handles POST /v1/playbooks/{templateKey}/runs.
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/playbooks/")
	templateKey := strings.TrimSuffix(rest, "/runs")
	if templateKey == "" || templateKey == rest {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	var req triggerRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	run, err := h.Playbooks.TriggerRun(r.Context(), primary.TriggerRunRequest{
		OrganizationID: req.OrganizationID,
		TemplateKey:    templateKey,
		TriggerContext: req.TriggerContext,
	})
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"run_id": run.ID,
		"status": run.Status,
	})
}

type signalRequest struct {
	StepName string         `json:"step_name"`
	Payload  map[string]any `json:"payload"`
}

// RunAction handles POST /v1/runs/{runId}/cancel and /v1/runs/{runId}/signal.
func (h *Handler) RunAction(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/runs/")
	runID, action, ok := strings.Cut(rest, "/")
	if !ok || runID == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	switch action {
	case "cancel":
		if err := h.Playbooks.CancelRun(r.Context(), runID); err != nil {
			writeError(w, err, http.StatusBadRequest)
			return
		}
	case "signal":
		var req signalRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
		if err := h.Playbooks.Signal(r.Context(), runID, req.StepName, req.Payload); err != nil {
			writeError(w, err, http.StatusBadRequest)
			return
		}
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

type outboxView struct {
	ID        string         `json:"id"`
	Topic     string         `json:"topic"`
	Payload   map[string]any `json:"payload"`
	Status    string         `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}

func (h *Handler) PollOutbox(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	entries, err := h.Outbox.PollQueued(r.Context(), limit)
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}

	views := make([]outboxView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, outboxView{
			ID:        entry.ID,
			Topic:     entry.Topic,
			Payload:   entry.Payload,
			Status:    entry.Status,
			CreatedAt: entry.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": views})
}

type ackRequest struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// AckOutbox handles POST /v1/outbox/{id}/ack.
func (h *Handler) AckOutbox(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/outbox/")
	entryID := strings.TrimSuffix(rest, "/ack")
	if entryID == "" || entryID == rest {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	var req ackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if err := h.Outbox.Ack(r.Context(), entryID, req.Status, req.Error); err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.DB != nil {
		if err := h.DB.PingContext(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeError maps domain sentinels to HTTP statuses. validationStatus lets
// routes disagree on what a validation failure is (400 vs 422).
func writeError(w http.ResponseWriter, err error, validationStatus int) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrAlreadyDecided):
		status = http.StatusConflict
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrValidation):
		status = validationStatus
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
