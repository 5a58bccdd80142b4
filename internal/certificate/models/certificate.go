package models

import (
	"strings"
	"time"

	"certledger/internal/certificate/fingerprint"
	id "certledger/pkg/domain"
	dErrors "certledger/pkg/domain-errors"
)

// Certificate is an off-chain certificate record.
//
// Invariants:
//   - Descriptive fields (StudentName, StudentID, StudentEmail, Course,
//     Grade, IssueDate, Fingerprint) are immutable once the record
//     exists; stores enforce this, not just convention
//   - Fingerprint is globally unique across all records
//   - Finalized is monotonic false -> true; AnchorReference and
//     FinalizedAt are set exactly once, by finalization
//   - Records are never deleted (append-only audit trail)
//
// Descriptive fields are stored in canonical form: strings trimmed,
// IssueDate as the fixed YYYY-MM-DD calendar date. Verification can
// therefore re-derive the fingerprint byte-for-byte from the row alone.
type Certificate struct {
	ID           id.CertificateID `json:"id"`
	StudentName  string           `json:"student_name"`
	StudentID    string           `json:"student_id"`
	StudentEmail string           `json:"student_email"`
	Course       string           `json:"course"`
	Grade        string           `json:"grade"`
	IssueDate    string           `json:"issue_date"` // fingerprint.DateLayout
	IssuerID     id.IssuerID      `json:"issuer_id"`
	Fingerprint  string           `json:"fingerprint"`

	AnchorReference string     `json:"anchor_reference,omitempty"`
	Finalized       bool       `json:"finalized"`
	FinalizedAt     *time.Time `json:"finalized_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Canonical reconstructs the canonical metadata the fingerprint was
// computed over. Valid because descriptive fields are stored canonical.
func (c *Certificate) Canonical() fingerprint.Canonical {
	return fingerprint.Canonical{
		StudentName: c.StudentName,
		StudentID:   c.StudentID,
		Course:      c.Course,
		Grade:       c.Grade,
		IssueDate:   c.IssueDate,
	}
}

// CanFinalize checks the single allowed transition.
func (c *Certificate) CanFinalize() error {
	if c.Finalized {
		return dErrors.New(dErrors.CodeAlreadyFinalized, "certificate is already finalized")
	}
	return nil
}

// ApplyFinalization marks the record as durably anchored. Call
// CanFinalize first; stores run both under one lock.
func (c *Certificate) ApplyFinalization(anchorReference string, now time.Time) {
	c.AnchorReference = anchorReference
	c.Finalized = true
	t := now
	c.FinalizedAt = &t
}

// NewDraft constructs an unfinalized certificate record from canonical
// metadata. The fingerprint must have been computed from the same
// canonical form.
func NewDraft(certID id.CertificateID, issuerID id.IssuerID, canonical fingerprint.Canonical, studentEmail, fp string, now time.Time) (*Certificate, error) {
	studentEmail = strings.ToLower(strings.TrimSpace(studentEmail))
	if studentEmail == "" || !strings.Contains(studentEmail, "@") {
		return nil, dErrors.New(dErrors.CodeValidation, "studentEmail must be a valid email")
	}
	if !fingerprint.IsWellFormed(fp) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "fingerprint is malformed")
	}
	return &Certificate{
		ID:           certID,
		StudentName:  canonical.StudentName,
		StudentID:    canonical.StudentID,
		StudentEmail: studentEmail,
		Course:       canonical.Course,
		Grade:        canonical.Grade,
		IssueDate:    canonical.IssueDate,
		IssuerID:     issuerID,
		Fingerprint:  fp,
		Finalized:    false,
		CreatedAt:    now,
	}, nil
}
