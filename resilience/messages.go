package resilience

import "github.com/parley-ai/parley/types"

// userMessages maps error categories to the human-readable fallback
// text a transport shows the user.
var userMessages = map[types.ErrorCode]string{
	types.ErrNetwork:            "I'm having trouble reaching the language model right now. Please try again in a moment.",
	types.ErrTimeout:            "That took longer than expected and timed out. Please try again.",
	types.ErrNotFound:           "I couldn't find what you asked for.",
	types.ErrUpstreamServer:     "The language model service reported an internal problem. Please try again shortly.",
	types.ErrAuth:               "I'm not authorized to reach the language model. The operator needs to check the credentials.",
	types.ErrRateLimit:          "I'm being rate limited. Give me a few seconds and try again.",
	types.ErrResource:           "I'm temporarily out of resources for that request.",
	types.ErrParsing:            "I received a response I couldn't understand. Please try again.",
	types.ErrSkillExecution:     "Something went wrong while running that skill.",
	types.ErrNoMatchingSkill:    "I don't have a skill matching that request. Try rephrasing it.",
	types.ErrCircularDependency: "That skill chain loops back on itself, so I can't run it.",
	types.ErrCircuitOpen:        "The language model looks unavailable right now, so I'm answering in degraded mode.",
	types.ErrSessionNotFound:    "I couldn't find that conversation.",
}

// DegradationWarning is appended to responses once consecutive
// unrecovered errors exceed the warning threshold.
const DegradationWarning = "Note: I've hit several errors in a row; responses may be degraded until the backend recovers."

// UserMessage returns the human-readable fallback text for a category.
func UserMessage(code types.ErrorCode) string {
	if msg, ok := userMessages[code]; ok {
		return msg
	}
	return "Something unexpected went wrong. Please try again."
}
