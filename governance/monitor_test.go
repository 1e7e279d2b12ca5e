package governance

import (
	"context"
	"testing"

	"github.com/Vatscode/Mini-ERP/utils"
)

func TestMonitor_ConsumeUntilExhausted(t *testing.T) {
	m := NewMonitor(50)
	if err := m.Consume(OpCreate); err != nil { // 20
		t.Fatalf("first consume failed: %v", err)
	}
	if err := m.Consume(OpCreate); err != nil { // 40
		t.Fatalf("second consume failed: %v", err)
	}
	if err := m.Consume(OpCreate); err == nil { // would be 60
		t.Fatal("expected exhaustion error")
	} else if utils.KindOf(err) != utils.KindGovernanceExceeded {
		t.Fatalf("kind = %s, want GovernanceExceeded", utils.KindOf(err))
	}
	// The failed charge must not count.
	if m.Used() != 40 {
		t.Fatalf("used = %d, want 40", m.Used())
	}
	// A smaller charge still fits.
	if err := m.Consume(OpRead); err != nil {
		t.Fatalf("consume after failed charge: %v", err)
	}
	if m.Remaining() != 8 {
		t.Fatalf("remaining = %d, want 8", m.Remaining())
	}
}

func TestMonitor_ExactBudget(t *testing.T) {
	m := NewMonitor(30)
	if err := m.Consume(30); err != nil {
		t.Fatalf("charging the exact budget must succeed: %v", err)
	}
	if err := m.Consume(1); err == nil {
		t.Fatal("expected exhaustion at budget boundary")
	}
}

func TestConsume_NoMonitorIsUnlimited(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		if err := Consume(ctx, OpCreate); err != nil {
			t.Fatalf("consume without monitor: %v", err)
		}
	}
}

func TestConsume_FromContext(t *testing.T) {
	m := NewMonitor(25)
	ctx := SetInContext(context.Background(), m)
	if err := Consume(ctx, OpCreate); err != nil {
		t.Fatalf("first charge: %v", err)
	}
	if err := Consume(ctx, OpCreate); err == nil {
		t.Fatal("expected exhaustion through context")
	}
	got, ok := FromContext(ctx)
	if !ok || got != m {
		t.Fatal("FromContext must return the monitor set in context")
	}
	if got.Used() != 20 {
		t.Fatalf("used = %d, want 20", got.Used())
	}
}

func TestNewMonitor_DefaultsOnInvalidBudget(t *testing.T) {
	if m := NewMonitor(0); m.Budget() != DefaultBudget {
		t.Fatalf("budget = %d, want %d", m.Budget(), DefaultBudget)
	}
	if m := NewMonitor(-5); m.Budget() != DefaultBudget {
		t.Fatalf("budget = %d, want %d", m.Budget(), DefaultBudget)
	}
}

func TestBudgetFromEnv(t *testing.T) {
	t.Setenv("GOVERNANCE_BUDGET", "250")
	if got := BudgetFromEnv(); got != 250 {
		t.Fatalf("BudgetFromEnv = %d, want 250", got)
	}
	t.Setenv("GOVERNANCE_BUDGET", "not-a-number")
	if got := BudgetFromEnv(); got != DefaultBudget {
		t.Fatalf("BudgetFromEnv = %d, want default %d", got, DefaultBudget)
	}
	t.Setenv("GOVERNANCE_BUDGET", "")
	if got := BudgetFromEnv(); got != DefaultBudget {
		t.Fatalf("BudgetFromEnv = %d, want default %d", got, DefaultBudget)
	}
}
