package core

// error_messages.go maps technical errors to messages safe to show users.
//
// Each message carries a code that users can quote to support:
//
//	READ001-READ099  input could not be read or decoded
//	ENC001-ENC099    the spreadsheet could not be produced
//	FILE001-FILE099  problems with the uploaded file or output name
//	STO001-STO099    output storage
//	UPL001-UPL099    request lifecycle (busy, cancelled, timeout)
//	RATE001          client rate limit
//	ERR000           anything else
//
// Typed errors are matched first with errors.Is/As. Errors that only carry
// text (from libraries or other processes) fall through to substring
// patterns, matched case-insensitively in table order.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/csv2xlsx/internal/csvline"
	"github.com/JonMunkholm/csv2xlsx/internal/storage"
	"github.com/JonMunkholm/csv2xlsx/internal/xlsx"
)

// UserMessage is a user-facing description of an error.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgInvalidUTF8 = UserMessage{
		Message: "File contains bytes that are not valid UTF-8",
		Action:  "Save the file as UTF-8, choose its encoding, or enable sanitizing",
		Code:    "READ001",
	}
	msgLineTooLong = UserMessage{
		Message: "A line in the file is too long",
		Action:  "Check that the file uses line breaks between rows",
		Code:    "READ002",
	}
	msgReadFailed = UserMessage{
		Message: "The file could not be read",
		Action:  "Please upload the file again",
		Code:    "READ003",
	}
	msgBadEncoding = UserMessage{
		Message: "The requested character encoding is not supported",
		Action:  "Use a standard name such as utf-8 or windows-1252",
		Code:    "READ004",
	}
	msgBadEngine = UserMessage{
		Message: "The requested spreadsheet engine is not available",
		Action:  "Use native or excelize",
		Code:    "ENC005",
	}
	msgBadDelimiter = UserMessage{
		Message: "The delimiter must not be empty",
		Action:  "Provide a delimiter such as , or ;",
		Code:    "READ005",
	}

	msgEncodeFailed = UserMessage{
		Message: "The spreadsheet could not be created",
		Action:  "Please try again",
		Code:    "ENC001",
	}
	msgTooManyRows = UserMessage{
		Message: "The file has more rows than a worksheet can hold",
		Action:  "Split the file into parts of at most 1,048,576 lines",
		Code:    "ENC002",
	}
	msgTooManyColumns = UserMessage{
		Message: "A row has more columns than a worksheet can hold",
		Action:  "Check the delimiter; a worksheet holds at most 16,384 columns",
		Code:    "ENC003",
	}
	msgBadSheetName = UserMessage{
		Message: "The worksheet name is not valid",
		Action:  "Use a name of at most 31 characters without : \\ / ? * [ ]",
		Code:    "ENC004",
	}

	msgFileTooLarge = UserMessage{
		Message: "File exceeds the maximum upload size",
		Action:  "Split the file into smaller chunks",
		Code:    "FILE001",
	}
	msgNoFile = UserMessage{
		Message: "No file was selected",
		Action:  "Please select a CSV file to convert",
		Code:    "FILE002",
	}
	msgBadName = UserMessage{
		Message: "The output file name is not valid",
		Action:  "Use a plain file name without slashes or leading dots",
		Code:    "FILE003",
	}

	msgNotFound = UserMessage{
		Message: "The requested file does not exist",
		Action:  "It may have been downloaded already. Convert the file again",
		Code:    "STO001",
	}

	msgBusy = UserMessage{
		Message: "Too many conversions in progress",
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
		Action:  "Try a smaller file or check your connection",
		Code:    "UPL003",
	}

	msgRateLimited = UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}
)

// defaultMessage is returned when no rule matches.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support if the problem persists",
	Code:    "ERR000",
}

type errorRule struct {
	match func(error) bool
	msg   UserMessage
}

func is(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

// errorRules are checked in order; more specific sentinels come before the
// generic typed errors that wrap them.
var errorRules = []errorRule{
	{is(ErrInvalidUTF8), msgInvalidUTF8},
	{is(ErrLineTooLong), msgLineTooLong},
	{is(ErrUnsupportedEncoding), msgBadEncoding},
	{is(csvline.ErrEmptyDelimiter), msgBadDelimiter},

	{is(xlsx.ErrTooManyRows), msgTooManyRows},
	{is(xlsx.ErrTooManyColumns), msgTooManyColumns},
	{is(xlsx.ErrInvalidSheetName), msgBadSheetName},
	{is(xlsx.ErrUnknownEngine), msgBadEngine},

	{is(ErrFileTooLarge), msgFileTooLarge},
	{is(ErrNoFile), msgNoFile},
	{is(storage.ErrInvalidName), msgBadName},
	{is(storage.ErrNotFound), msgNotFound},

	{is(ErrTooManyConversions), msgBusy},
	{is(context.Canceled), msgCancelled},
	{is(context.DeadlineExceeded), msgTimeout},

	{func(err error) bool { var re *ReadError; return errors.As(err, &re) }, msgReadFailed},
	{func(err error) bool { var ee *xlsx.EncodingError; return errors.As(err, &ee) }, msgEncodeFailed},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns match on error text for errors without a typed form.
var errorPatterns = []errorPattern{
	{"request body too large", msgFileTooLarge},
	{"file too large", msgFileTooLarge},
	{"no such file", msgNotFound},
	{"rate limit", msgRateLimited},
	{"too many requests", msgRateLimited},
	{"invalid utf-8", msgInvalidUTF8},
	{"timeout", msgTimeout},
}

// MapError converts a technical error to a user-friendly message.
// Returns an empty UserMessage if err is nil and defaultMessage when nothing
// matches.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, r := range errorRules {
		if r.match(err) {
			return r.msg
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

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the generic ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error (for logs) with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
