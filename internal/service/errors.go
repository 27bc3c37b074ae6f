package service

import (
	"sort"
	"strings"
)

// Sentinel errors grouped by the class of response they produce. Handlers
// match them with errors.Is; the message is what the client sees.
var (
	ErrBookNotFound       = &NotFoundError{Msg: "Book not found"}
	ErrGroupNotFound      = &NotFoundError{Msg: "Group not found"}
	ErrChapterNotFound    = &NotFoundError{Msg: "Chapter not found"}
	ErrChapterNotInGroup  = &NotFoundError{Msg: "Chapter with the provided ID does not exist in this group."}
	ErrParentNotFound     = &NotFoundError{Msg: "Parent discussion does not exist."}
	ErrNoSuchGroup        = &NotFoundError{Msg: "Group with the provided ID does not exist."}
	ErrNoSuchChapter      = &NotFoundError{Msg: "Chapter with the provided ID does not exist."}
	ErrGroupNameRequired  = &ValidationError{Msg: "Group name is required."}
	ErrBookIDRequired     = &ValidationError{Msg: "Book ID is required"}
	ErrChapterIDRequired  = &ValidationError{Msg: "Chapter ID is required."}
	ErrContentRequired    = &ValidationError{Msg: "Content is required."}
	ErrMemberNameRequired = &ValidationError{Msg: "Username is required for members."}
	ErrNotGroupMember     = &ForbiddenError{Msg: "You are not a member of this group."}
	ErrAlreadyMember      = &ConflictError{Msg: "You are already part of the selected group."}
	ErrUsernameTaken      = &ConflictError{Msg: "A user with that username already exists."}
	ErrNoGroups           = &ValidationError{Msg: "User is not a member of any group."}
	ErrInvalidTimestamp   = &ValidationError{Msg: "Invalid timestamp format for last_fetched_at. Use ISO 8601 format like '2025-01-27T05:37:00Z'."}
	ErrInvalidCredentials = &UnauthenticatedError{Msg: "No active account found with the given credentials"}
	ErrInvalidToken       = &UnauthenticatedError{Msg: "Token is invalid or expired"}
)

type NotFoundError struct{ Msg string }

func (e *NotFoundError) Error() string { return e.Msg }

type ForbiddenError struct{ Msg string }

func (e *ForbiddenError) Error() string { return e.Msg }

type ConflictError struct{ Msg string }

func (e *ConflictError) Error() string { return e.Msg }

type UnauthenticatedError struct{ Msg string }

func (e *UnauthenticatedError) Error() string { return e.Msg }

// ValidationError reports bad input, either as one message or per field.
type ValidationError struct {
	Msg    string
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if e.Msg != "" || len(e.Fields) == 0 {
		return e.Msg
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return strings.Join(parts, "; ")
}

// Invalid builds a single-message ValidationError.
func Invalid(msg string) *ValidationError {
	return &ValidationError{Msg: msg}
}

// fieldErrors accumulates per-field validation failures.
type fieldErrors map[string]string

func (f fieldErrors) require(field, value string) {
	if strings.TrimSpace(value) == "" {
		f[field] = "This field is required."
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return &ValidationError{Fields: f}
}

