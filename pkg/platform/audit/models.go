// Package audit captures the append-only trail of registry actions.
//
// Events are emitted from domain logic and fanned out to stores and
// sinks. The registry is itself an audit system of record, so issuance
// and approval actions are compliance events: they are written
// synchronously and failures propagate to the caller.
package audit

import (
	"context"
	"time"

	id "certledger/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance:
	// issuer approval decisions, certificate issuance and finalization.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers events useful for debugging and
	// operational visibility: verification requests, sweep listings.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category      EventCategory
	Timestamp     time.Time
	IssuerID      id.IssuerID
	CertificateID id.CertificateID
	Action        string
	// Subject carries a non-PII identifier for the acted-on entity, e.g.
	// a fingerprint or anchor reference.
	Subject   string
	Reason    string
	RequestID string
}

// Registry event actions.
const (
	EventIssuerRegistered     = "issuer_registered"
	EventIssuerApproved       = "issuer_approved"
	EventIssuerRejected       = "issuer_rejected"
	EventIssuerRevoked        = "issuer_revoked"
	EventWalletBound          = "wallet_bound"
	EventCertificateDrafted   = "certificate_drafted"
	EventCertificateFinalized = "certificate_finalized"
)

// Store persists audit events. Append-only: there is deliberately no
// delete operation.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByIssuer(ctx context.Context, issuerID id.IssuerID) ([]Event, error)
}
