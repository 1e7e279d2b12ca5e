// Package governance bounds how much work a single logical operation may
// perform. One Monitor is constructed per inbound request (middleware) or per
// scheduled job run, charged a fixed weight for every store or gateway
// primitive, and discarded when the operation ends. Budgets are never shared
// across concurrent operations.
package governance

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/Vatscode/Mini-ERP/appctx"
	"github.com/Vatscode/Mini-ERP/utils"
)

const DefaultBudget = 1000

// Operation weights in abstract units.
const (
	OpCreate = 20
	OpUpdate = 10
	OpDelete = 20
	OpSearch = 5
	OpRead   = 2
	OpRemote = 10
)

type Monitor struct {
	budget int
	used   int
}

func NewMonitor(budget int) *Monitor {
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &Monitor{budget: budget}
}

// BudgetFromEnv reads GOVERNANCE_BUDGET, falling back to DefaultBudget.
func BudgetFromEnv() int {
	v := strings.TrimSpace(os.Getenv("GOVERNANCE_BUDGET"))
	if v == "" {
		return DefaultBudget
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return DefaultBudget
	}
	return n
}

func (m *Monitor) Budget() int    { return m.budget }
func (m *Monitor) Used() int      { return m.used }
func (m *Monitor) Remaining() int { return m.budget - m.used }

// Consume charges weight against the budget. The first charge that would
// exceed the budget fails and leaves the running total untouched, so the
// error is reported at the operation that could not be afforded.
func (m *Monitor) Consume(weight int) error {
	if m.used+weight > m.budget {
		return utils.NewAppError(utils.KindGovernanceExceeded, "governance usage limit exceeded")
	}
	m.used += weight
	return nil
}

func SetInContext(ctx context.Context, m *Monitor) context.Context {
	return appctx.Set(ctx, appctx.ContextKeyGovernance, m)
}

func FromContext(ctx context.Context) (*Monitor, bool) {
	m, ok := ctx.Value(appctx.ContextKeyGovernance).(*Monitor)
	return m, ok
}

// Consume charges the context's monitor, if any. Operations running without a
// monitor (internal ops, tests) are unlimited.
func Consume(ctx context.Context, weight int) error {
	m, ok := FromContext(ctx)
	if !ok || m == nil {
		return nil
	}
	return m.Consume(weight)
}
