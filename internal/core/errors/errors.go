// Package errors provides centralized error definitions for the application.
// Errors are organized by domain to avoid duplication and provide consistent naming.
//
// Naming conventions:
//   - Exported errors (Err*): Use for errors that callers need to check with errors.Is
//   - All sentinel errors should be defined as variables, not inline errors.New calls
//   - Use fmt.Errorf with %w to wrap sentinel errors with context
//
// Filter rejections and mapping-cache misses are ordinary outcomes and have no error here.
package errors

import "errors"

// Transport errors.
var (
	// ErrTransportUnavailable indicates the chat transport is not connected or not authorized.
	ErrTransportUnavailable = errors.New("transport unavailable")

	// ErrRetriesExhausted indicates a transport call kept failing after the bounded retries.
	ErrRetriesExhausted = errors.New("transport retries exhausted")
)

// Channel and entity resolution errors.
var (
	// ErrEntityResolution indicates a channel reference could not be resolved.
	ErrEntityResolution = errors.New("entity resolution failed")

	// ErrNotFound indicates the referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrPrivateOrForbidden indicates the entity exists but is not accessible.
	ErrPrivateOrForbidden = errors.New("private or forbidden")

	// ErrNotAChannel indicates the entity is not a channel type.
	ErrNotAChannel = errors.New("entity is not a channel")

	// ErrInvalidReference indicates a channel reference string could not be parsed.
	ErrInvalidReference = errors.New("invalid channel reference")
)

// Media errors.
var (
	// ErrDownload indicates a media payload could not be staged locally.
	ErrDownload = errors.New("media download failed")

	// ErrNoMedia indicates a download was requested for a message without downloadable media.
	ErrNoMedia = errors.New("message has no downloadable media")
)

// Delivery errors.
var (
	// ErrSend indicates a send attempt to a destination failed.
	ErrSend = errors.New("send failed")

	// ErrEdit indicates an in-place edit was refused.
	ErrEdit = errors.New("edit failed")

	// ErrDelete indicates a destination message could not be deleted.
	ErrDelete = errors.New("delete failed")

	// ErrLadderExhausted indicates every fallback tier failed for a destination.
	ErrLadderExhausted = errors.New("all delivery tiers failed")

	// ErrNoMessageID indicates the transport response did not carry the sent message id.
	ErrNoMessageID = errors.New("sent message id missing from response")
)

// Registry errors.
var (
	// ErrAlreadyExists indicates the channel or rule is already registered.
	ErrAlreadyExists = errors.New("already exists")

	// ErrNotRegistered indicates the channel or rule is not registered.
	ErrNotRegistered = errors.New("not registered")

	// ErrStoreUnsupported indicates the settings store does not support the operation.
	ErrStoreUnsupported = errors.New("operation not supported by settings store")
)

// Validation errors.
var (
	// ErrInvalidInput indicates invalid input was provided.
	ErrInvalidInput = errors.New("invalid input")

	// ErrMissingConfig indicates a required configuration value is absent for the selected mode.
	ErrMissingConfig = errors.New("missing required configuration")
)
