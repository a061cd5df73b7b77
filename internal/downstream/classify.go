package downstream

import "strings"

// Outcome is the stable local category for a remote-service failure.
type Outcome string

const (
	// OutcomeAuthInvalid means the remote service rejected the presented secret.
	OutcomeAuthInvalid Outcome = "auth_invalid"
	// OutcomeLimited means the secret was accepted but a usage/rate ceiling was
	// hit. The secret itself is valid.
	OutcomeLimited Outcome = "limited"
	// OutcomeUnreachable means a connectivity-class failure; secret validity is
	// indeterminate.
	OutcomeUnreachable Outcome = "unreachable"
	// OutcomeUnknown means nothing matched; treated conservatively as a failure.
	OutcomeUnknown Outcome = "unknown"
)

// The remote service reports failures only through message text, never
// structured codes, so classification is case-insensitive substring matching.
// This is best-effort by construction: the tables below are a starting point,
// not an exhaustive contract. Add new keywords here and nowhere else.
var (
	authKeywords = []string{
		"authentication failed",
		"invalid token",
		"invalid api key",
		"unauthorized",
		"401",
	}

	limitKeywords = []string{
		"usage limit",
		"rate limit",
		"quota exceeded",
		"too many requests",
		"429",
	}

	unreachableKeywords = []string{
		"connection error",
		"connection refused",
		"connection reset",
		"timeout",
		"deadline exceeded",
		"network is unreachable",
		"no such host",
		"dns lookup failed",
		"service unavailable",
		"503",
	}
)

// Classify maps a remote-service error onto a stable Outcome by inspecting
// its message text. Match order matters: auth and limit phrases are checked
// before connectivity ones so that e.g. "401" inside a proxy error is still
// treated as an auth rejection.
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeUnknown
	}
	msg := strings.ToLower(err.Error())

	for _, kw := range authKeywords {
		if strings.Contains(msg, kw) {
			return OutcomeAuthInvalid
		}
	}
	for _, kw := range limitKeywords {
		if strings.Contains(msg, kw) {
			return OutcomeLimited
		}
	}
	for _, kw := range unreachableKeywords {
		if strings.Contains(msg, kw) {
			return OutcomeUnreachable
		}
	}
	return OutcomeUnknown
}
