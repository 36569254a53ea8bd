package models

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateErrorShortMessageUnchanged(t *testing.T) {
	assert.Equal(t, "connection refused", TruncateError("connection refused", 200))
}

func TestTruncateErrorBoundsLongMessage(t *testing.T) {
	long := strings.Repeat("x", 500)
	out := TruncateError(long, 200)
	assert.Equal(t, long[:200]+"...", out)
}

func TestTruncateErrorDefaultsLimit(t *testing.T) {
	long := strings.Repeat("x", 500)
	out := TruncateError(long, 0)
	assert.Len(t, out, 203)
}

func TestTruncateErrorKeepsValidUTF8(t *testing.T) {
	// Provider errors are often Chinese; the cut must not split a rune.
	msg := strings.Repeat("访问频繁，请稍后再试。", 50)
	for limit := 195; limit <= 205; limit++ {
		out := TruncateError(msg, limit)
		assert.True(t, utf8.ValidString(out), "limit %d produced invalid UTF-8", limit)
		assert.LessOrEqual(t, len(out), limit+3)
		assert.True(t, strings.HasSuffix(out, "..."))
	}
}
