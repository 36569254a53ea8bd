package data

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// FailureKind classifies a provider failure for breaker accounting and
// metrics. Unsupported symbols are cascade skips, never breaker hits.
type FailureKind string

const (
	FailureRateLimited FailureKind = "rate_limited"
	FailureTransient   FailureKind = "transient"
	FailureUnsupported FailureKind = "unsupported"
	FailureTerminal    FailureKind = "terminal"
)

// ErrSymbolUnsupported is returned by an adapter that cannot serve the
// requested symbol's market at all.
var ErrSymbolUnsupported = errors.New("symbol not supported by source")

// StatusError is a non-200 upstream HTTP response.
type StatusError struct {
	Source     string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 120 {
		body = body[:120]
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Source, e.StatusCode, body)
}

// banTokens are response fragments that indicate the upstream has
// blocked this client rather than merely hiccuped.
var banTokens = []string{"banned", "blocked", "forbidden", "too many requests", "rate limit", "访问频繁"}

// Classify maps a provider error to a failure kind.
//
//   - unsupported symbols never count against the source
//   - HTTP 429, and ban-flavored 403 bodies, are rate limiting
//   - timeouts, connection errors, and 5xx are transient
//   - anything else is terminal (bad credentials, parse failures)
func Classify(err error) FailureKind {
	if err == nil {
		return FailureTerminal
	}
	if errors.Is(err, ErrSymbolUnsupported) {
		return FailureUnsupported
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == 429:
			return FailureRateLimited
		case statusErr.StatusCode == 403 && containsBanToken(statusErr.Body):
			return FailureRateLimited
		case statusErr.StatusCode >= 500:
			return FailureTransient
		default:
			return FailureTerminal
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTransient
	}

	msg := strings.ToLower(err.Error())
	if containsBanToken(msg) {
		return FailureRateLimited
	}
	for _, fragment := range []string{"timeout", "connection refused", "connection reset", "broken pipe", "no such host", "eof", "tls handshake"} {
		if strings.Contains(msg, fragment) {
			return FailureTransient
		}
	}

	return FailureTerminal
}

func containsBanToken(s string) bool {
	lower := strings.ToLower(s)
	for _, token := range banTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}
