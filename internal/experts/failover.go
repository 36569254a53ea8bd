package experts

import "strings"

// switchableMarkers identify failures worth retrying on the next
// endpoint of the pool: auth/quota rejections, server-side errors, and
// anything network-shaped.
var switchableMarkers = []string{
	"401", "403", "429",
	"500", "502", "503", "504",
	"timeout", "timed out", "deadline",
	"connect", "connection", "network", "ssl", "tls",
	"unauthorized", "forbidden", "rate limit", "too many requests",
	"unavailable", "overloaded",
}

// isSwitchableError reports whether a model call failure should fail
// over to the next endpoint rather than fail the logical model.
func isSwitchableError(err error) bool {
	if err == nil {
		return false
	}
	lower := strings.ToLower(err.Error())
	for _, marker := range switchableMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
