package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/estateportal/internal/monitoring"
	appErrors "github.com/charlesng35/estateportal/pkg/errors"
	"github.com/charlesng35/estateportal/pkg/response"
)

// Health reports dependency status. A critical failure answers 503 with a
// "<component>_unavailable" code; optional failures only degrade the status.
func Health(checker *monitoring.Checker) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := checker.Evaluate(requestContext(c))
		if failed, ok := report.FirstCriticalFailure(); ok {
			err := appErrors.New(failed.Component+"_unavailable", "A required dependency is unreachable", http.StatusServiceUnavailable)
			response.Error(c, err.WithDetails(report.Checks))
			return
		}

		status := "ok"
		if report.Status != monitoring.StatusUp {
			status = string(report.Status)
		}
		response.Success(c, http.StatusOK, gin.H{"status": status, "checks": report.Checks})
	}
}
