package intent

import "strings"

// debugKeywords mark a message as a request to analyze captured browser logs
// rather than a generation request.
var debugKeywords = []string{
	"debug", "log", "console output", "what went wrong", "what happened",
	"analyze", "diagnose",
}

// DetectDebugRequest reports whether the message asks for log analysis. The
// caller should only honor this when a browser verification session exists,
// since words like "debug" in a fresh session usually describe a feature
// request instead.
func DetectDebugRequest(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range debugKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
