package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/estateportal/pkg/errors"
	"github.com/charlesng35/estateportal/pkg/response"
	appValidator "github.com/charlesng35/estateportal/pkg/validator"
)

// bindAndValidate binds the JSON payload into dest and runs struct validation rules.
// When validation fails, an error response is automatically written and false is returned.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.New("invalid_json", "Request body must be valid JSON", http.StatusBadRequest))
		return false
	}

	if err := appValidator.ValidateStruct(dest); err != nil {
		message := "invalid request payload"
		var details any
		if ve, ok := err.(appValidator.ValidationErrors); ok && len(ve) > 0 {
			message = ve.Error()
			details = ve
		}
		appErr := appErrors.New(appErrors.ErrValidation.Code, message, appErrors.ErrValidation.StatusCode)
		if details != nil {
			appErr = appErr.WithDetails(details)
		}
		response.Error(c, appErr)
		return false
	}

	return true
}

func parseIntQuery(c *gin.Context, key string, fallback int) int {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// parseTimeQuery accepts RFC3339 timestamps. Unparseable values are ignored.
func parseTimeQuery(c *gin.Context, key string) *time.Time {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}
	parsed = parsed.UTC()
	return &parsed
}
