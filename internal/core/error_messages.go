package core

// error_messages.go maps technical errors to coded, user-facing messages.
//
// # Error Codes Reference
//
// When users report a problem they can quote the code, which points support
// staff at the failing stage. Codes are grouped by category:
//
// # Dataset Errors (DATA001-DATA099)
//
//	DATA001 - No dataset: No file has been loaded yet
//	          Action: Upload a CSV or Excel file first
//	          Match: ErrNoDataset
//
//	DATA002 - Load failed: The file could not be read as a table
//	          Action: Check that the file opens correctly and try again
//	          Match: *LoadError without a more specific cause
//
//	DATA003 - Invalid workbook: The Excel file is damaged or not a workbook
//	          Action: Open and re-save the file in Excel as .xlsx
//	          Patterns: "invalid workbook"
//
// # Column Errors (COL001-COL099)
//
//	COL001 - Column not found: The requested column does not exist
//	         Action: Use one of the names returned by the column listing
//	         Match: ErrColumnNotFound
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Invalid date: A date parameter could not be parsed
//	         Action: Use YYYY-MM-DD
//	         Patterns: "invalid date"
//
//	VAL002 - Invalid choice: A parameter is not one of the allowed values
//	         Action: Check the allowed values for this parameter
//	         Patterns: "must be one of"
//
//	VAL003 - Invalid request: A parameter is out of range
//	         Action: Check the request parameters
//	         Match: *ValidationError
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: File exceeds the maximum upload size
//	          Action: Split the file into smaller chunks
//	          Match: ErrFileTooLarge
//
//	FILE002 - Invalid CSV: Rows do not line up with the header
//	          Action: Ensure every row has the same number of columns
//	          Patterns: "invalid csv"
//
//	FILE003 - Unsupported format: Only CSV, XLS and XLSX files are accepted
//	          Action: Save the file as .csv or .xlsx
//	          Match: ErrUnsupportedFormat
//
//	FILE004 - No file: No file was sent with the request
//	          Action: Select a file to upload
//	          Patterns: "no file provided"
//
//	FILE005 - Empty file: The file has no header row
//	          Action: Upload a file with a header and data rows
//	          Match: ErrEmptyFile
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL001 - System busy: Too many uploads in progress
//	         Action: Please wait a moment and try again
//	         Match: ErrTooManyUploads
//
//	UPL002 - Request cancelled: The request was cancelled
//	         Action: Please try again
//	         Match: context.Canceled
//
//	UPL003 - Request timeout: The request took too long
//	         Action: Try a smaller file or narrower filters
//	         Match: context.DeadlineExceeded
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Rate limited: Too many requests
//	          Action: Please wait a moment before trying again
//	          Patterns: "rate limit"
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again or contact support
//
// # Matching
//
// Sentinel and typed errors are checked first with errors.Is and errors.As,
// walking the wrap chain from the most specific cause outwards. Remaining
// errors are matched case-insensitively against errorPatterns; the first
// matching pattern wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgNoDataset = UserMessage{
		Message: "No file has been loaded yet",
		Action:  "Upload a CSV or Excel file first",
		Code:    "DATA001",
	}
	msgLoadFailed = UserMessage{
		Message: "The file could not be read as a table",
		Action:  "Check that the file opens correctly and try again",
		Code:    "DATA002",
	}
	msgColumnNotFound = UserMessage{
		Message: "The requested column does not exist",
		Action:  "Use one of the names returned by the column listing",
		Code:    "COL001",
	}
	msgInvalidRequest = UserMessage{
		Message: "A request parameter is out of range",
		Action:  "Check the request parameters",
		Code:    "VAL003",
	}
	msgFileTooLarge = UserMessage{
		Message: "File exceeds the maximum upload size",
		Action:  "Split the file into smaller chunks",
		Code:    "FILE001",
	}
	msgUnsupportedFormat = UserMessage{
		Message: "Only CSV, XLS and XLSX files are accepted",
		Action:  "Save the file as .csv or .xlsx",
		Code:    "FILE003",
	}
	msgEmptyFile = UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Upload a file with a header and data rows",
		Code:    "FILE005",
	}
	msgTooManyUploads = UserMessage{
		Message: "System is busy processing other uploads",
		Action:  "Please wait a moment and try again",
		Code:    "UPL001",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL002",
	}
	msgTimeout = UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or narrower filters",
		Code:    "UPL003",
	}
)

// sentinelMessages is checked in order with errors.Is.
var sentinelMessages = []struct {
	target error
	msg    UserMessage
}{
	{ErrNoDataset, msgNoDataset},
	{ErrColumnNotFound, msgColumnNotFound},
	{ErrFileTooLarge, msgFileTooLarge},
	{ErrUnsupportedFormat, msgUnsupportedFormat},
	{ErrEmptyFile, msgEmptyFile},
	{ErrTooManyUploads, msgTooManyUploads},
	{context.DeadlineExceeded, msgTimeout},
	{context.Canceled, msgCancelled},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps error text (case-insensitive) to user messages. More
// specific patterns come first.
var errorPatterns = []errorPattern{
	{
		pattern: "invalid workbook",
		msg: UserMessage{
			Message: "The Excel file is damaged or not a workbook",
			Action:  "Open and re-save the file in Excel as .xlsx",
			Code:    "DATA003",
		},
	},
	{
		pattern: "invalid date",
		msg: UserMessage{
			Message: "A date parameter could not be parsed",
			Action:  "Use YYYY-MM-DD",
			Code:    "VAL001",
		},
	},
	{
		pattern: "must be one of",
		msg: UserMessage{
			Message: "A parameter is not one of the allowed values",
			Action:  "Check the allowed values for this parameter",
			Code:    "VAL002",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "Rows do not line up with the header",
			Action:  "Ensure every row has the same number of columns",
			Code:    "FILE002",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was sent with the request",
			Action:  "Select a file to upload",
			Code:    "FILE004",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000). Support staff
// should check the logs for the original error.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	msg := MapError(fmt.Errorf("query: %w", ErrNoDataset))
//	// msg.Code == "DATA001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, s := range sentinelMessages {
		if errors.Is(err, s.target) {
			return s.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return msgInvalidRequest
	}
	var le *LoadError
	if errors.As(err, &le) {
		return msgLoadFailed
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}
