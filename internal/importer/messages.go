// messages.go maps technical errors to user-friendly messages with stable
// codes for support reference.
//
// Error codes are grouped by category:
//
//	FILE001 - File too large       FILE002 - Invalid CSV
//	FILE003 - Empty file           FILE004 - No headers
//	FILE005 - No file provided
//
//	SES001  - Session not found    SES002  - Wrong step for this action
//	SES003  - Row not found
//
//	IMP001  - System busy          IMP002  - Import cancelled
//	IMP003  - Request timeout
//
//	REQ001  - Malformed request
//
//	ERR000  - Fallback when no pattern matches
//
// Patterns are matched case-insensitively with strings.Contains; the first
// match wins, so specific patterns come before general ones.
package importer

import (
	"fmt"
	"strings"
)

// UserMessage provides user-facing error information with actionable guidance.
type UserMessage struct {
	Message string // what happened
	Action  string // what to do about it
	Code    string // stable code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "The file exceeds the maximum upload size",
			Action:  "Split the file into smaller parts and import them separately",
			Code:    "FILE001",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "The file is not valid CSV",
			Action:  "Check for unbalanced quotes and re-export the file",
			Code:    "FILE002",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The file has no data rows",
			Action:  "Upload a file with at least one contact below the header row",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no headers",
		msg: UserMessage{
			Message: "The file has no header row",
			Action:  "Add column names to the first row of the file",
			Code:    "FILE004",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Choose a CSV file to import",
			Code:    "FILE005",
		},
	},
	{
		pattern: "session not found",
		msg: UserMessage{
			Message: "This import session has expired",
			Action:  "Start a new import",
			Code:    "SES001",
		},
	},
	{
		pattern: "invalid state",
		msg: UserMessage{
			Message: "That action is not available at this step",
			Action:  "Follow the import steps in order, or start over",
			Code:    "SES002",
		},
	},
	{
		pattern: "row not found",
		msg: UserMessage{
			Message: "That row is no longer in the review set",
			Action:  "Reload the validation results and try again",
			Code:    "SES003",
		},
	},
	{
		pattern: "too many imports",
		msg: UserMessage{
			Message: "Too many imports are running right now",
			Action:  "Wait a moment and try again",
			Code:    "IMP001",
		},
	},
	{
		pattern: "bad request",
		msg: UserMessage{
			Message: "The request could not be understood",
			Action:  "Check the request format and try again",
			Code:    "REQ001",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "The import was cancelled",
			Action:  "Start a new import when ready",
			Code:    "IMP002",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "The operation timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "IMP003",
		},
	},
}

// MapError converts a technical error into a user-facing message. The
// original error text stays server-side; only the mapped message is shown.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{Message: "Success", Code: "OK"}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return UserMessage{
		Message: "An unexpected error occurred",
		Action:  "Please try again or contact support",
		Code:    "ERR000",
	}
}

// FormatUserError renders a UserMessage as a single line, suitable for
// plain-text contexts.
func FormatUserError(msg UserMessage) string {
	if msg.Action != "" {
		return fmt.Sprintf("%s. %s (%s)", msg.Message, msg.Action, msg.Code)
	}
	return fmt.Sprintf("%s (%s)", msg.Message, msg.Code)
}
