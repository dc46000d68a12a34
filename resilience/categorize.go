package resilience

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/parley-ai/parley/types"
)

// Categorize maps an arbitrary error from an external call to an
// ErrorRecord. Structured *types.Error values keep their category;
// everything else is classified from the error chain and message.
func Categorize(err error, dependency string) types.ErrorRecord {
	rec := types.ErrorRecord{
		Category:   types.ErrInternal,
		Severity:   types.SeverityMedium,
		Message:    err.Error(),
		Dependency: dependency,
		Timestamp:  time.Now(),
	}

	var structured *types.Error
	switch {
	case errors.As(err, &structured):
		rec.Category = structured.Code
	case errors.Is(err, context.DeadlineExceeded):
		rec.Category = types.ErrTimeout
	default:
		rec.Category = classify(err)
	}

	rec.Severity = severityFor(rec.Category)
	return rec
}

func classify(err error) types.ErrorCode {
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return types.ErrTimeout
		}
		return types.ErrNetwork
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "timeout", "timed out", "deadline exceeded"):
		return types.ErrTimeout
	case containsAny(msg, "connection refused", "connection reset", "no such host", "broken pipe", "eof"):
		return types.ErrNetwork
	case containsAny(msg, "rate limit", "too many requests", "429"):
		return types.ErrRateLimit
	case containsAny(msg, "unauthorized", "forbidden", "invalid api key", "401", "403"):
		return types.ErrAuth
	case containsAny(msg, "not found", "404"):
		return types.ErrNotFound
	case containsAny(msg, "internal server error", "bad gateway", "service unavailable", "500", "502", "503"):
		return types.ErrUpstreamServer
	case containsAny(msg, "out of memory", "quota", "resource exhausted"):
		return types.ErrResource
	case containsAny(msg, "parse", "unmarshal", "invalid json", "unexpected token"):
		return types.ErrParsing
	default:
		return types.ErrInternal
	}
}

func severityFor(code types.ErrorCode) types.Severity {
	switch code {
	case types.ErrAuth:
		return types.SeverityCritical
	case types.ErrUpstreamServer, types.ErrResource, types.ErrCircuitOpen:
		return types.SeverityHigh
	case types.ErrNetwork, types.ErrTimeout, types.ErrRateLimit, types.ErrSkillExecution:
		return types.SeverityMedium
	default:
		return types.SeverityLow
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
