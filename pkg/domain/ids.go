// Package domain holds shared identifier types. Typed IDs keep issuer
// and certificate identifiers from being swapped at call sites.
package domain

import (
	"github.com/google/uuid"

	dErrors "certledger/pkg/domain-errors"
)

// IssuerID identifies an issuing institution.
type IssuerID uuid.UUID

// CertificateID identifies a certificate record.
type CertificateID uuid.UUID

// NewIssuerID returns a random issuer ID.
func NewIssuerID() IssuerID {
	return IssuerID(uuid.New())
}

// NewCertificateID returns a random certificate ID.
func NewCertificateID() CertificateID {
	return CertificateID(uuid.New())
}

// ParseIssuerID parses an issuer ID from its string form. IDs must be
// valid, non-empty, non-nil UUIDs.
func ParseIssuerID(s string) (IssuerID, error) {
	parsed, err := parseUUID(s, "issuer id")
	if err != nil {
		return IssuerID{}, err
	}
	return IssuerID(parsed), nil
}

// ParseCertificateID parses a certificate ID from its string form.
func ParseCertificateID(s string) (CertificateID, error) {
	parsed, err := parseUUID(s, "certificate id")
	if err != nil {
		return CertificateID{}, err
	}
	return CertificateID(parsed), nil
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is required", label)
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is not a valid UUID", label)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s must not be the nil UUID", label)
	}
	return parsed, nil
}

func (i IssuerID) String() string { return uuid.UUID(i).String() }

// IsZero reports whether the ID is unset.
func (i IssuerID) IsZero() bool { return uuid.UUID(i) == uuid.Nil }

// MarshalText renders the ID as a canonical UUID string, so JSON and
// map keys use the readable form.
func (i IssuerID) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

func (i *IssuerID) UnmarshalText(data []byte) error {
	parsed, err := ParseIssuerID(string(data))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

func (c CertificateID) String() string { return uuid.UUID(c).String() }

// IsZero reports whether the ID is unset.
func (c CertificateID) IsZero() bool { return uuid.UUID(c) == uuid.Nil }

func (c CertificateID) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *CertificateID) UnmarshalText(data []byte) error {
	parsed, err := ParseCertificateID(string(data))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
