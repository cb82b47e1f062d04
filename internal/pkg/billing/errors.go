package billing

import "errors"

var (
	// ErrInvalidSignature is returned when a webhook delivery fails verification.
	// The delivery must not be processed.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrMalformedEvent marks a verified event whose payload cannot be decoded.
	// Retrying it will not help.
	ErrMalformedEvent = errors.New("malformed billing event")
	// ErrProviderCall wraps failures of outbound payment provider calls.
	ErrProviderCall = errors.New("payment provider call failed")
	// ErrUnresolvedIdentity means no subscriber could be attributed to an event.
	ErrUnresolvedIdentity = errors.New("unresolved subscriber identity")
)
