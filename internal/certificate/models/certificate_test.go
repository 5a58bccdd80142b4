package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certledger/internal/certificate/fingerprint"
	id "certledger/pkg/domain"
	dErrors "certledger/pkg/domain-errors"
)

func testCanonical() fingerprint.Canonical {
	return fingerprint.Canonical{
		StudentName: "Ada Lovelace",
		StudentID:   "S-1815",
		Course:      "Analytical Engines",
		Grade:       "A",
		IssueDate:   "2026-06-15",
	}
}

func TestNewDraft(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	canonical := testCanonical()
	fp := fingerprint.Digest(canonical)

	t.Run("builds an unfinalized record", func(t *testing.T) {
		cert, err := NewDraft(id.CertificateID(uuid.New()), id.IssuerID(uuid.New()), canonical, "Ada@Example.COM", fp, now)
		require.NoError(t, err)
		assert.False(t, cert.Finalized)
		assert.Empty(t, cert.AnchorReference)
		assert.Nil(t, cert.FinalizedAt)
		assert.Equal(t, "ada@example.com", cert.StudentEmail)
		assert.Equal(t, fp, cert.Fingerprint)
		assert.Equal(t, now, cert.CreatedAt)
	})

	t.Run("canonical round-trips from the record", func(t *testing.T) {
		cert, err := NewDraft(id.CertificateID(uuid.New()), id.IssuerID(uuid.New()), canonical, "ada@example.com", fp, now)
		require.NoError(t, err)
		assert.Equal(t, canonical, cert.Canonical())
		assert.Equal(t, fp, fingerprint.Digest(cert.Canonical()))
	})

	t.Run("rejects invalid student email", func(t *testing.T) {
		_, err := NewDraft(id.CertificateID(uuid.New()), id.IssuerID(uuid.New()), canonical, "not-an-email", fp, now)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects malformed fingerprint", func(t *testing.T) {
		_, err := NewDraft(id.CertificateID(uuid.New()), id.IssuerID(uuid.New()), canonical, "ada@example.com", "deadbeef", now)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestFinalization(t *testing.T) {
	now := time.Date(2026, 6, 16, 9, 0, 0, 0, time.UTC)
	canonical := testCanonical()
	fp := fingerprint.Digest(canonical)

	newDraft := func(t *testing.T) *Certificate {
		t.Helper()
		cert, err := NewDraft(id.CertificateID(uuid.New()), id.IssuerID(uuid.New()), canonical, "ada@example.com", fp, now)
		require.NoError(t, err)
		return cert
	}

	t.Run("finalizes once", func(t *testing.T) {
		cert := newDraft(t)
		require.NoError(t, cert.CanFinalize())
		cert.ApplyFinalization("0xanchor", now)
		assert.True(t, cert.Finalized)
		assert.Equal(t, "0xanchor", cert.AnchorReference)
		require.NotNil(t, cert.FinalizedAt)
		assert.Equal(t, now, *cert.FinalizedAt)
	})

	t.Run("second finalize is AlreadyFinalized", func(t *testing.T) {
		cert := newDraft(t)
		cert.ApplyFinalization("0xanchor", now)
		err := cert.CanFinalize()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAlreadyFinalized))
	})
}
