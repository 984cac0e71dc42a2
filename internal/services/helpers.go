package services

import (
	"strings"
	"time"

	"github.com/charlesng35/estateportal/internal/repository"
)

// RequestMeta carries the caller network details recorded with audit events.
type RequestMeta struct {
	IP        string
	UserAgent string
}

func normaliseIDs(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func optionalID(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func derefID(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func utcClock(clock func() time.Time) func() time.Time {
	if clock == nil {
		clock = time.Now
	}
	return func() time.Time { return clock().UTC() }
}

func pageOf(page, perPage int) repository.Pagination {
	return repository.Pagination{Page: page, PerPage: perPage}.Normalize()
}

func clampInt(value, fallback, minimum, maximum int) int {
	if value == 0 {
		return fallback
	}
	if value < minimum {
		return minimum
	}
	if value > maximum {
		return maximum
	}
	return value
}
