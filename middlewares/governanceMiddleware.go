package middlewares

import (
	"strconv"

	"github.com/Vatscode/Mini-ERP/governance"
	"github.com/gin-gonic/gin"
)

// usageWriter injects the running governance total just before the response
// is committed. Headers set after the first body write never reach the
// client, so the total has to go in at write time, not after c.Next().
type usageWriter struct {
	gin.ResponseWriter
	monitor *governance.Monitor
}

func (w *usageWriter) setUsage() {
	if !w.Written() {
		w.Header().Set("X-Governance-Used", strconv.Itoa(w.monitor.Used()))
	}
}

func (w *usageWriter) WriteHeader(code int) {
	w.setUsage()
	w.ResponseWriter.WriteHeader(code)
}

func (w *usageWriter) Write(b []byte) (int, error) {
	w.setUsage()
	return w.ResponseWriter.Write(b)
}

func (w *usageWriter) WriteString(s string) (int, error) {
	w.setUsage()
	return w.ResponseWriter.WriteString(s)
}

// GovernanceMiddleware attaches a fresh usage monitor to every request.
// Budgets are per-request, never shared, so one expensive caller cannot
// starve another. Usage is reported back in response headers.
func GovernanceMiddleware() gin.HandlerFunc {
	budget := governance.BudgetFromEnv()
	return func(c *gin.Context) {
		monitor := governance.NewMonitor(budget)
		c.Request = c.Request.WithContext(governance.SetInContext(c.Request.Context(), monitor))
		c.Header("X-Governance-Budget", strconv.Itoa(monitor.Budget()))
		c.Writer = &usageWriter{ResponseWriter: c.Writer, monitor: monitor}
		c.Next()
	}
}
