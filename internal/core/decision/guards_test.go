package decision

import (
	"strings"
	"testing"
)

func TestCanRecordDecision(t *testing.T) {
	base := RecordContext{
		ProposalID:     "prop-001",
		ProposalExists: true,
		Verdict:        "APPROVED",
		ValidVerdict:   true,
		Actor:          "user:reviewer-1",
	}

	t.Run("allows a valid decision", func(t *testing.T) {
		result := CanRecordDecision(base)
		if !result.Allowed {
			t.Errorf("expected allowed, got: %s", result.Reason)
		}
		if result.Error() != nil {
			t.Errorf("Error() = %v, want nil", result.Error())
		}
	})

	t.Run("rejects a missing proposal", func(t *testing.T) {
		ctx := base
		ctx.ProposalExists = false
		result := CanRecordDecision(ctx)
		if result.Allowed {
			t.Fatal("expected not allowed")
		}
		if !strings.Contains(result.Reason, "prop-001") {
			t.Errorf("reason should name the proposal: %s", result.Reason)
		}
	})

	t.Run("rejects an invalid verdict", func(t *testing.T) {
		ctx := base
		ctx.Verdict = "MAYBE"
		ctx.ValidVerdict = false
		result := CanRecordDecision(ctx)
		if result.Allowed {
			t.Fatal("expected not allowed")
		}
		if !strings.Contains(result.Reason, "MAYBE") {
			t.Errorf("reason should name the verdict: %s", result.Reason)
		}
	})

	t.Run("rejects a missing actor", func(t *testing.T) {
		ctx := base
		ctx.Actor = ""
		result := CanRecordDecision(ctx)
		if result.Allowed {
			t.Fatal("expected not allowed")
		}
	})

	t.Run("rejects a modified payload without MODIFIED verdict", func(t *testing.T) {
		ctx := base
		ctx.HasModified = true
		result := CanRecordDecision(ctx)
		if result.Allowed {
			t.Fatal("expected not allowed")
		}
	})

	t.Run("allows a modified payload with MODIFIED verdict", func(t *testing.T) {
		ctx := base
		ctx.Verdict = "MODIFIED"
		ctx.HasModified = true
		result := CanRecordDecision(ctx)
		if !result.Allowed {
			t.Errorf("expected allowed, got: %s", result.Reason)
		}
	})
}

func TestCanSupersedeDecision(t *testing.T) {
	t.Run("allows superseding an active decision", func(t *testing.T) {
		result := CanSupersedeDecision(SupersedeContext{
			DecisionID:     "dec-001",
			DecisionExists: true,
		})
		if !result.Allowed {
			t.Errorf("expected allowed, got: %s", result.Reason)
		}
	})

	t.Run("rejects a missing decision", func(t *testing.T) {
		result := CanSupersedeDecision(SupersedeContext{DecisionID: "dec-404"})
		if result.Allowed {
			t.Fatal("expected not allowed")
		}
		if !strings.Contains(result.Reason, "dec-404") {
			t.Errorf("reason should name the decision: %s", result.Reason)
		}
	})

	t.Run("rejects an already superseded decision", func(t *testing.T) {
		result := CanSupersedeDecision(SupersedeContext{
			DecisionID:        "dec-001",
			DecisionExists:    true,
			AlreadySuperseded: true,
		})
		if result.Allowed {
			t.Fatal("expected not allowed")
		}
		if !strings.Contains(result.Reason, "already superseded") {
			t.Errorf("unexpected reason: %s", result.Reason)
		}
	})
}
