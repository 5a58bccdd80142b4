// Package fingerprint is the canonicalization and hashing engine for
// certificate metadata.
//
// Issuance and verification MUST derive fingerprints through this
// package and nothing else. A single shared routine is what guarantees
// that a verifier re-derives the exact bytes the issuer hashed,
// regardless of how the metadata arrived.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	dErrors "certledger/pkg/domain-errors"
)

// Version tags the canonical byte layout. Bump only with a migration
// plan: every historical fingerprint depends on it.
const Version = "v1"

// DateLayout is the fixed calendar representation of the issue date.
// Time-of-day and timezone offset are discarded; the date is taken in
// UTC.
const DateLayout = "2006-01-02"

// Metadata is the raw descriptive input to a certificate fingerprint.
// StudentEmail is deliberately absent: it is stored on the record but
// never hashed, so a contact correction can never be confused with
// content tampering.
type Metadata struct {
	StudentName string
	StudentID   string
	Course      string
	Grade       string
	IssueDate   time.Time
}

// Canonical is normalized metadata. Construct only via Normalize.
type Canonical struct {
	StudentName string
	StudentID   string
	Course      string
	Grade       string
	IssueDate   string // DateLayout
}

// Normalize trims every string field and reduces the issue date to its
// UTC calendar date. All fields are required and must be non-empty
// after trimming.
func Normalize(m Metadata) (Canonical, error) {
	c := Canonical{
		StudentName: strings.TrimSpace(m.StudentName),
		StudentID:   strings.TrimSpace(m.StudentID),
		Course:      strings.TrimSpace(m.Course),
		Grade:       strings.TrimSpace(m.Grade),
	}
	if c.StudentName == "" {
		return Canonical{}, dErrors.New(dErrors.CodeValidation, "studentName is required")
	}
	if c.StudentID == "" {
		return Canonical{}, dErrors.New(dErrors.CodeValidation, "studentId is required")
	}
	if c.Course == "" {
		return Canonical{}, dErrors.New(dErrors.CodeValidation, "course is required")
	}
	if c.Grade == "" {
		return Canonical{}, dErrors.New(dErrors.CodeValidation, "grade is required")
	}
	if m.IssueDate.IsZero() {
		return Canonical{}, dErrors.New(dErrors.CodeValidation, "issueDate is required")
	}
	c.IssueDate = m.IssueDate.UTC().Format(DateLayout)
	return c, nil
}

// canonicalOrder is the fixed serialization order. It is NOT
// alphabetical and must never change: the order is part of the v1
// layout.
var canonicalOrder = [...]string{"studentName", "studentId", "course", "grade", "issueDate"}

// Bytes produces the canonical byte sequence. Each field is emitted as
// name:length:value; the length prefix keeps the encoding injective
// even if a value were to contain the separator characters.
func (c Canonical) Bytes() []byte {
	values := map[string]string{
		"studentName": c.StudentName,
		"studentId":   c.StudentID,
		"course":      c.Course,
		"grade":       c.Grade,
		"issueDate":   c.IssueDate,
	}
	var b strings.Builder
	b.WriteString("certledger.fingerprint.")
	b.WriteString(Version)
	b.WriteByte('\n')
	for _, name := range canonicalOrder {
		v := values[name]
		fmt.Fprintf(&b, "%s:%d:%s\n", name, len(v), v)
	}
	return []byte(b.String())
}

// Digest hashes the canonical bytes with SHA-256 and returns the
// lowercase fixed-width hex fingerprint.
func Digest(c Canonical) string {
	sum := sha256.Sum256(c.Bytes())
	return hex.EncodeToString(sum[:])
}

// Compute normalizes metadata and returns its fingerprint. Pure and
// total for any well-formed input: equal logical metadata always yields
// an identical digest.
func Compute(m Metadata) (string, error) {
	c, err := Normalize(m)
	if err != nil {
		return "", err
	}
	return Digest(c), nil
}

// HexLength is the width of a fingerprint in hex characters.
const HexLength = sha256.Size * 2

// IsWellFormed reports whether s looks like a fingerprint produced by
// Digest. It does not prove the fingerprint corresponds to any record.
func IsWellFormed(s string) bool {
	if len(s) != HexLength {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil && strings.ToLower(s) == s
}
