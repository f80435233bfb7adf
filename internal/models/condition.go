package models

// Condition is a structured predicate over a JSON-like document (a proposal
// payload or accumulated run outputs). Conditions are stored as JSON on
// policy rules and branch rules; evaluation lives in internal/core/predicate.
type Condition struct {
	// Field is a dotted path into the document, e.g. "amount" or "a.status".
	Field string `json:"field"`
	Op    string `json:"op"`
	Value any    `json:"value,omitempty"`
}

// Condition operators.
const (
	OpEq       = "EQ"
	OpNe       = "NE"
	OpGt       = "GT"
	OpGte      = "GTE"
	OpLt       = "LT"
	OpLte      = "LTE"
	OpIn       = "IN"
	OpContains = "CONTAINS"
	OpExists   = "EXISTS"
)

// ValidOp reports whether op is a known condition operator.
func ValidOp(op string) bool {
	switch op {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpIn, OpContains, OpExists:
		return true
	}
	return false
}
