package billing

import "errors"

// OutcomeStatus is the typed result of handling one event.
type OutcomeStatus string

const (
	OutcomeApplied OutcomeStatus = "applied"
	OutcomeSkipped OutcomeStatus = "skipped"
	OutcomeIgnored OutcomeStatus = "ignored"
	OutcomeFailed  OutcomeStatus = "failed"
)

// Outcome is returned by every handler instead of a bare error so callers can
// tell a no-op from a failure.
type Outcome struct {
	Status OutcomeStatus `json:"status"`
	Reason string        `json:"reason,omitempty"`
	Err    error         `json:"-"`
}

// Skip reasons.
const (
	ReasonUnresolvedIdentity = "unresolved_identity"
	ReasonUnknownSubscriber  = "unknown_subscriber"
	ReasonUnhandledType      = "unhandled_type"
	ReasonNoRefunds          = "no_refunds"
)

func applied(reason string) Outcome { return Outcome{Status: OutcomeApplied, Reason: reason} }
func skipped(reason string) Outcome { return Outcome{Status: OutcomeSkipped, Reason: reason} }
func ignored(reason string) Outcome { return Outcome{Status: OutcomeIgnored, Reason: reason} }
func failed(err error) Outcome      { return Outcome{Status: OutcomeFailed, Err: err} }

// Failed reports whether the event could not be handled.
func (o Outcome) Failed() bool {
	return o.Status == OutcomeFailed
}

// Retryable reports whether redelivery could succeed. Malformed events are
// permanent failures; store and provider failures are not.
func (o Outcome) Retryable() bool {
	return o.Failed() && !errors.Is(o.Err, ErrMalformedEvent)
}

// ErrorString returns the failure text or "".
func (o Outcome) ErrorString() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}
