package data

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{"unsupported sentinel", ErrSymbolUnsupported, FailureUnsupported},
		{"wrapped unsupported", fmt.Errorf("akshare: %w", ErrSymbolUnsupported), FailureUnsupported},
		{"http 429", &StatusError{Source: "akshare", StatusCode: 429}, FailureRateLimited},
		{"http 403 ban body", &StatusError{Source: "akshare", StatusCode: 403, Body: "client banned"}, FailureRateLimited},
		{"http 403 plain", &StatusError{Source: "akshare", StatusCode: 403, Body: "nope"}, FailureTerminal},
		{"http 500", &StatusError{Source: "tushare", StatusCode: 500}, FailureTransient},
		{"http 502", &StatusError{Source: "tushare", StatusCode: 502}, FailureTransient},
		{"http 400", &StatusError{Source: "tushare", StatusCode: 400}, FailureTerminal},
		{"deadline", context.DeadlineExceeded, FailureTransient},
		{"connection refused", errors.New("dial tcp: connection refused"), FailureTransient},
		{"connection reset", errors.New("read: connection reset by peer"), FailureTransient},
		{"ban text", errors.New("request blocked by upstream"), FailureRateLimited},
		{"rate limit text", errors.New("rate limit exceeded"), FailureRateLimited},
		{"parse failure", errors.New("unexpected end of JSON input"), FailureTerminal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestStatusErrorTruncatesBody(t *testing.T) {
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	err := &StatusError{Source: "akshare", StatusCode: 500, Body: string(long)}
	assert.Less(t, len(err.Error()), 200)
}
