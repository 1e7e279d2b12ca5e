package middlewares

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/Vatscode/Mini-ERP/governance"
	"github.com/gin-gonic/gin"
)

// The headers must survive a real HTTP round trip. A ResponseRecorder keeps
// its header map live after the body is written, so only a wire-level check
// proves the usage total is set before the response commits.
func TestGovernanceHeadersReachTheClient(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GovernanceMiddleware())
	r.GET("/charge", func(c *gin.Context) {
		if err := governance.Consume(c.Request.Context(), governance.OpCreate); err != nil {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
			return
		}
		if err := governance.Consume(c.Request.Context(), governance.OpRead); err != nil {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/charge")
	if err != nil {
		t.Fatalf("GET /charge: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("X-Governance-Budget"); got != strconv.Itoa(governance.DefaultBudget) {
		t.Fatalf("X-Governance-Budget = %q, want %d", got, governance.DefaultBudget)
	}
	want := governance.OpCreate + governance.OpRead
	if got := resp.Header.Get("X-Governance-Used"); got != strconv.Itoa(want) {
		t.Fatalf("X-Governance-Used = %q, want %d", got, want)
	}
}

func TestGovernanceHeadersOnExhaustedBudget(t *testing.T) {
	t.Setenv("GOVERNANCE_BUDGET", "5")
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GovernanceMiddleware())
	r.GET("/charge", func(c *gin.Context) {
		if err := governance.Consume(c.Request.Context(), governance.OpCreate); err != nil {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/charge")
	if err != nil {
		t.Fatalf("GET /charge: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Governance-Budget"); got != "5" {
		t.Fatalf("X-Governance-Budget = %q, want 5", got)
	}
	// The failed charge leaves the total untouched.
	if got := resp.Header.Get("X-Governance-Used"); got != "0" {
		t.Fatalf("X-Governance-Used = %q, want 0", got)
	}
}
