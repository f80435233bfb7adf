package playbook

import (
	"errors"
	"testing"

	"github.com/example/warden/internal/models"
)

func TestEvaluateBranches(t *testing.T) {
	rules := []models.BranchRule{
		{
			When:       []models.Condition{{Field: "triage.severity", Op: models.OpEq, Value: "critical"}},
			NextStepID: "step-page-oncall",
		},
		{
			When:       []models.Condition{{Field: "triage.severity", Op: models.OpEq, Value: "major"}},
			NextStepID: "step-open-ticket",
		},
	}
	outputs := func(severity string) map[string]any {
		return map[string]any{"triage": map[string]any{"severity": severity}}
	}

	t.Run("first matching rule wins", func(t *testing.T) {
		sel, err := EvaluateBranches(rules, "step-log", outputs("critical"))
		if err != nil {
			t.Fatalf("EvaluateBranches failed: %v", err)
		}
		if sel.NextStepID != "step-page-oncall" {
			t.Errorf("NextStepID = %q, want step-page-oncall", sel.NextStepID)
		}
		if sel.MatchedRule != 0 || sel.Trace.MatchedRule != 0 {
			t.Errorf("MatchedRule = %d (trace %d), want 0", sel.MatchedRule, sel.Trace.MatchedRule)
		}
	})

	t.Run("later rules are reachable", func(t *testing.T) {
		sel, err := EvaluateBranches(rules, "step-log", outputs("major"))
		if err != nil {
			t.Fatalf("EvaluateBranches failed: %v", err)
		}
		if sel.NextStepID != "step-open-ticket" || sel.MatchedRule != 1 {
			t.Errorf("got %q rule %d, want step-open-ticket rule 1", sel.NextStepID, sel.MatchedRule)
		}
	})

	t.Run("no match takes the default edge", func(t *testing.T) {
		sel, err := EvaluateBranches(rules, "step-log", outputs("minor"))
		if err != nil {
			t.Fatalf("EvaluateBranches failed: %v", err)
		}
		if sel.NextStepID != "step-log" {
			t.Errorf("NextStepID = %q, want step-log", sel.NextStepID)
		}
		if sel.MatchedRule != -1 || sel.Trace.MatchedRule != -1 {
			t.Errorf("MatchedRule = %d (trace %d), want -1", sel.MatchedRule, sel.Trace.MatchedRule)
		}
	})

	t.Run("no match and no default is a dead end", func(t *testing.T) {
		_, err := EvaluateBranches(rules, "", outputs("minor"))
		if !errors.Is(err, models.ErrBranchingDeadEnd) {
			t.Errorf("err = %v, want ErrBranchingDeadEnd", err)
		}
	})

	t.Run("empty rule set with default is fine", func(t *testing.T) {
		sel, err := EvaluateBranches(nil, "step-log", nil)
		if err != nil {
			t.Fatalf("EvaluateBranches failed: %v", err)
		}
		if sel.NextStepID != "step-log" {
			t.Errorf("NextStepID = %q, want step-log", sel.NextStepID)
		}
	})

	t.Run("malformed condition aborts", func(t *testing.T) {
		broken := []models.BranchRule{{
			When:       []models.Condition{{Field: "triage.severity", Op: "LIKE", Value: "crit"}},
			NextStepID: "step-page-oncall",
		}}
		_, err := EvaluateBranches(broken, "step-log", outputs("critical"))
		if err == nil {
			t.Fatal("expected error for malformed condition")
		}
	})

	t.Run("trace carries the inputs", func(t *testing.T) {
		in := outputs("critical")
		sel, err := EvaluateBranches(rules, "", in)
		if err != nil {
			t.Fatalf("EvaluateBranches failed: %v", err)
		}
		if sel.Trace.Reason == "" {
			t.Error("trace reason is empty")
		}
		if sel.Trace.Input == nil {
			t.Error("trace input is nil")
		}
	})
}

func TestMergeOutputs(t *testing.T) {
	run := map[string]any{"triage": map[string]any{"severity": "major"}}

	merged := MergeOutputs(run, "notify", map[string]any{"sent": true})
	if _, ok := merged["triage"]; !ok {
		t.Error("existing outputs dropped")
	}
	step, ok := merged["notify"].(map[string]any)
	if !ok || step["sent"] != true {
		t.Errorf("merged[notify] = %v, want step outputs", merged["notify"])
	}
	if _, ok := run["notify"]; ok {
		t.Error("MergeOutputs mutated its input")
	}

	t.Run("nil step outputs are skipped", func(t *testing.T) {
		merged := MergeOutputs(run, "notify", nil)
		if _, ok := merged["notify"]; ok {
			t.Error("nil outputs should not add a key")
		}
	})
}
