package approval

import (
	"testing"
	"time"
)

func TestCanAck(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{"PENDING", true},
		{"ACKED", false},
		{"DONE", false},
		{"EXPIRED", false},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			result := CanAck(TransitionContext{AssignmentID: "asn-001", Status: tt.status})
			if result.Allowed != tt.want {
				t.Errorf("CanAck(%s) = %v, want %v (%s)", tt.status, result.Allowed, tt.want, result.Reason)
			}
		})
	}
}

func TestCanComplete(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{"PENDING", true},
		{"ACKED", true},
		{"DONE", false},
		{"EXPIRED", false},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			result := CanComplete(TransitionContext{AssignmentID: "asn-001", Status: tt.status})
			if result.Allowed != tt.want {
				t.Errorf("CanComplete(%s) = %v, want %v (%s)", tt.status, result.Allowed, tt.want, result.Reason)
			}
		})
	}
}

func TestEscalationDue(t *testing.T) {
	now := time.Now()
	breached := now.Add(-time.Minute)
	escalatedAt := now.Add(-30 * time.Second)

	t.Run("breached pending assignment is due", func(t *testing.T) {
		if !EscalationDue("PENDING", breached, nil, now) {
			t.Error("expected escalation due")
		}
	})

	t.Run("escalation fires at most once", func(t *testing.T) {
		if EscalationDue("PENDING", breached, &escalatedAt, now) {
			t.Error("already escalated assignment must not escalate again")
		}
	})

	t.Run("acked assignment never escalates", func(t *testing.T) {
		if EscalationDue("ACKED", breached, nil, now) {
			t.Error("ack stops escalation")
		}
	})

	t.Run("not due before the deadline", func(t *testing.T) {
		if EscalationDue("PENDING", now.Add(time.Minute), nil, now) {
			t.Error("escalated before SLA deadline")
		}
	})
}

func TestExpiryDue(t *testing.T) {
	now := time.Now()
	grace := time.Hour

	t.Run("expires past deadline plus grace", func(t *testing.T) {
		due := now.Add(-2 * time.Hour)
		if !ExpiryDue("PENDING", due, grace, now) {
			t.Error("expected expiry due")
		}
		if !ExpiryDue("ACKED", due, grace, now) {
			t.Error("acked assignments expire too")
		}
	})

	t.Run("grace period holds expiry back", func(t *testing.T) {
		due := now.Add(-30 * time.Minute)
		if ExpiryDue("PENDING", due, grace, now) {
			t.Error("expired inside the grace period")
		}
	})

	t.Run("closed assignments never expire", func(t *testing.T) {
		due := now.Add(-2 * time.Hour)
		if ExpiryDue("DONE", due, grace, now) {
			t.Error("DONE assignment expired")
		}
		if ExpiryDue("EXPIRED", due, grace, now) {
			t.Error("EXPIRED assignment expired again")
		}
	})
}
