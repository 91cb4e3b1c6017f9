package core

// error_messages.go maps technical errors to messages a CRM user can act on.
//
// Each message carries a code that users can quote to support.
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Malformed input: the text is not valid CSV or JSON
//	IMP002 - Commit failed: the records could not be saved
//	IMP003 - Submit in progress: a submit for this import is already running
//	IMP004 - Invalid step: the import is not in a state that allows this action
//	IMP005 - Cancelled: the import was cancelled before it finished
//	IMP006 - Session not found: the import session expired or never existed
//	IMP007 - Unknown entity: no schema is registered under that name
//	IMP008 - Unknown format: the format is neither csv nor json
//	IMP009 - System busy: too many imports are committing right now
//	IMP010 - Queue disabled: background imports are not configured
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Record failed validation
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - Source too large
//	FILE002 - Source could not be read
//	FILE003 - No source provided
//
// # Store Errors (STORE001-STORE099)
//
//	STORE001 - Record not found
//	STORE002 - Duplicate key in the store
//	STORE003 - Store unreachable
//	STORE004 - Store timed out
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests
//
// # Default Error (ERR000)
//
// Fallback when nothing matches; check the logs for the technical error.
//
// Sentinel errors are matched with errors.Is first. Errors from drivers and
// the network are then matched by case-insensitive substring, first match
// wins, so specific patterns come before general ones.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type sentinelMessage struct {
	err error
	msg UserMessage
}

// Order matters: commit failures wrap store errors, so they are checked
// before the store sentinels.
var sentinelMessages = []sentinelMessage{
	{ErrMalformedInput, UserMessage{
		Message: "The import text is not valid for the selected format",
		Action:  "Check the CSV header or JSON syntax, or switch the format",
		Code:    "IMP001",
	}},
	{ErrSourceTooLarge, UserMessage{
		Message: "The import source exceeds the size limit",
		Action:  "Split the file into smaller chunks",
		Code:    "FILE001",
	}},
	{ErrEmptySource, UserMessage{
		Message: "No file or text was provided",
		Action:  "Choose a file or paste CSV or JSON text",
		Code:    "FILE003",
	}},
	{ErrRead, UserMessage{
		Message: "The import source could not be read",
		Action:  "Check the file and try again",
		Code:    "FILE002",
	}},
	{ErrTooManyImports, UserMessage{
		Message: "System is busy processing other imports",
		Action:  "Please wait a moment and try again",
		Code:    "IMP009",
	}},
	{ErrCommitFailed, UserMessage{
		Message: "The records could not be saved",
		Action:  "Nothing was reported as imported; submit the whole import again",
		Code:    "IMP002",
	}},
	{ErrSubmitInProgress, UserMessage{
		Message: "This import is already being submitted",
		Action:  "Wait for the current submit to finish",
		Code:    "IMP003",
	}},
	{ErrInvalidTransition, UserMessage{
		Message: "That action is not available at this step of the import",
		Action:  "Load a source first, or reset the import",
		Code:    "IMP004",
	}},
	{ErrImportCancelled, UserMessage{
		Message: "The import was cancelled",
		Action:  "Records may still have been saved; review them before importing again",
		Code:    "IMP005",
	}},
	{ErrSessionNotFound, UserMessage{
		Message: "Import session not found",
		Action:  "The import may have expired. Please start a new import",
		Code:    "IMP006",
	}},
	{ErrUnknownEntity, UserMessage{
		Message: "Unknown entity type",
		Action:  "Choose one of the listed entities",
		Code:    "IMP007",
	}},
	{ErrUnknownFormat, UserMessage{
		Message: "Unknown import format",
		Action:  "Use csv or json",
		Code:    "IMP008",
	}},
	{ErrQueueDisabled, UserMessage{
		Message: "Background imports are not enabled",
		Action:  "Use the direct import instead",
		Code:    "IMP010",
	}},
	{ErrValidation, UserMessage{
		Message: "The record failed validation",
		Action:  "Fix the listed fields and save again",
		Code:    "VAL001",
	}},
	{ErrNotFound, UserMessage{
		Message: "Record not found",
		Action:  "The record may have been deleted",
		Code:    "STORE001",
	}},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{"duplicate key", UserMessage{
		Message: "A record with this key already exists",
		Action:  "Review the source for duplicate keys",
		Code:    "STORE002",
	}},
	{"unique constraint", UserMessage{
		Message: "A record with this key already exists",
		Action:  "Review the source for duplicate keys",
		Code:    "STORE002",
	}},
	{"connection refused", UserMessage{
		Message: "Unable to connect to the data store",
		Action:  "Please try again in a few moments",
		Code:    "STORE003",
	}},
	{"connection reset", UserMessage{
		Message: "The data store connection was interrupted",
		Action:  "Please try again",
		Code:    "STORE003",
	}},
	{"context deadline exceeded", UserMessage{
		Message: "The operation timed out",
		Action:  "Try a smaller import or try again later",
		Code:    "STORE004",
	}},
	{"timeout", UserMessage{
		Message: "The operation timed out",
		Action:  "Try a smaller import or try again later",
		Code:    "STORE004",
	}},
	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// A nil error maps to the zero UserMessage.
//
//	msg := MapError(err)
//	// errors.Is(err, ErrMalformedInput) => msg.Code == "IMP001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
			return sm.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
