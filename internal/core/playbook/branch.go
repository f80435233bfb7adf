// Package playbook contains the pure branching logic of the run engine.
// Given a fixed outputs snapshot and rule list, selection is deterministic
// and every selection carries an evaluation trace for explainability.
package playbook

import (
	"fmt"

	"github.com/example/warden/internal/core/predicate"
	"github.com/example/warden/internal/models"
)

// Selection is the outcome of evaluating a branching step.
type Selection struct {
	NextStepID string
	// MatchedRule is the index of the winning rule, or -1 when the default
	// edge was taken.
	MatchedRule int
	Trace       models.EvaluationTrace
}

// EvaluateBranches applies branch rules in order against the accumulated
// run outputs; the first matching rule wins. With no match the default edge
// is taken; with no match and no default edge the step is a dead end and
// models.ErrBranchingDeadEnd is returned (the run must fail, not hang).
//
// A malformed rule condition also aborts with an error: guessing an edge on
// a broken rule would make routing non-reproducible.
func EvaluateBranches(rules []models.BranchRule, defaultNext string, outputs map[string]any) (Selection, error) {
	for i, rule := range rules {
		ok, err := predicate.All(rule.When, outputs)
		if err != nil {
			return Selection{}, fmt.Errorf("branch rule %d: %w", i, err)
		}
		if !ok {
			continue
		}
		return Selection{
			NextStepID:  rule.NextStepID,
			MatchedRule: i,
			Trace: models.EvaluationTrace{
				MatchedRule: i,
				Input:       outputs,
				Reason:      fmt.Sprintf("branch rule %d matched", i),
			},
		}, nil
	}

	if defaultNext != "" {
		return Selection{
			NextStepID:  defaultNext,
			MatchedRule: -1,
			Trace: models.EvaluationTrace{
				MatchedRule: -1,
				Input:       outputs,
				Reason:      "no branch rule matched, default edge taken",
			},
		}, nil
	}

	return Selection{}, fmt.Errorf("%d rules evaluated: %w", len(rules), models.ErrBranchingDeadEnd)
}

// MergeOutputs folds a completed step's outputs into the run's accumulated
// outputs under the step name, so later branch rules can address them as
// "<step>.<key>". Returns a new map; inputs are not mutated.
func MergeOutputs(runOutputs map[string]any, stepName string, stepOutputs map[string]any) map[string]any {
	merged := make(map[string]any, len(runOutputs)+1)
	for k, v := range runOutputs {
		merged[k] = v
	}
	if stepName != "" && stepOutputs != nil {
		merged[stepName] = stepOutputs
	}
	return merged
}
