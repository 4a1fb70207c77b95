// Package services defines the business logic of the reporting platform:
// the conversation orchestrator and the report submission gateway. This file
// centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler layer.
package services

import "errors"

var (
	// ErrEmptyMessage is returned when a chat request carries no text.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrTooLong is returned when a chat message exceeds the maximum
	// configured length limit.
	ErrTooLong = errors.New("message too long")

	// ErrSessionNotFound indicates that the requested session does not
	// exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrReportNotFound indicates that no report matches the given public
	// id.
	ErrReportNotFound = errors.New("report not found")

	// ErrInvalidStatus is returned when a moderation request names a status
	// outside the allowed set.
	ErrInvalidStatus = errors.New("status must be one of: unverified, verified, rejected")

	// ErrSaveFailed is returned when a report could not be persisted. The
	// handler maps it to a reassurance that nothing was lost on the
	// survivor's side.
	ErrSaveFailed = errors.New("could not save report")
)
