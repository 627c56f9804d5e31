// Package services defines the business logic for the member directory and
// message attribution. This file centralizes common service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// These errors are intended for internal use by the service layer; handlers
// translate them into user-facing messages and HTTP status codes. All of the
// values below are validation failures: they are surfaced to the caller and
// never retried. Lookup misses are represented as nil results, not errors,
// and broker/cache faults are logged and swallowed at the point of use.
package services

import "errors"

// Member-related errors.
var (
	// ErrNameRequired is returned when a registration request carries a
	// blank or whitespace-only display name.
	ErrNameRequired = errors.New("name required")

	// ErrMemberIDRequired is returned when an activity touch carries a
	// blank member id.
	ErrMemberIDRequired = errors.New("member id required")
)

// Message-related errors. SendMessage checks these in a fixed order
// (sender, content, length) so error reporting is deterministic.
var (
	// ErrSenderIDRequired is returned when a send request carries a blank
	// sender id.
	ErrSenderIDRequired = errors.New("sender id required")

	// ErrContentRequired is returned when a send request carries blank or
	// whitespace-only content.
	ErrContentRequired = errors.New("content required")

	// ErrContentTooLong is returned when content exceeds the maximum
	// message length.
	ErrContentTooLong = errors.New("content too long")

	// ErrInvalidCount is returned when a recent-messages query asks for a
	// non-positive count.
	ErrInvalidCount = errors.New("count must be greater than zero")

	// ErrInvalidRange is returned when a history query's lower bound is
	// after its upper bound.
	ErrInvalidRange = errors.New("from must not be after to")

	// ErrQueryRequired is returned when a search request carries a blank
	// query string.
	ErrQueryRequired = errors.New("query required")
)
