package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"certledger/internal/certificate/fingerprint"
	"certledger/internal/certificate/models"
	id "certledger/pkg/domain"
	"certledger/pkg/platform/sentinel"
)

type CertificateStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *CertificateStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestCertificateStoreSuite(t *testing.T) {
	suite.Run(t, new(CertificateStoreSuite))
}

// newDraft builds a draft whose fingerprint is genuinely derived from
// its descriptive fields, so every draft with a distinct student ID has
// a distinct fingerprint.
func (s *CertificateStoreSuite) newDraft(studentID string) *models.Certificate {
	canonical := fingerprint.Canonical{
		StudentName: "Ada Lovelace",
		StudentID:   studentID,
		Course:      "Analytical Engines",
		Grade:       "A",
		IssueDate:   "2026-06-15",
	}
	cert, err := models.NewDraft(
		id.CertificateID(uuid.New()), id.IssuerID(uuid.New()),
		canonical, "ada@example.com", fingerprint.Digest(canonical), time.Now(),
	)
	s.Require().NoError(err)
	return cert
}

func (s *CertificateStoreSuite) finalize(certID id.CertificateID, anchorRef string) (*models.Certificate, error) {
	return s.store.Execute(s.ctx, certID,
		func(c *models.Certificate) error { return c.CanFinalize() },
		func(c *models.Certificate) { c.ApplyFinalization(anchorRef, time.Now()) },
	)
}

func (s *CertificateStoreSuite) TestCreateDraft() {
	s.Run("creates and finds draft by ID", func() {
		cert := s.newDraft("S-1")
		s.Require().NoError(s.store.CreateDraft(s.ctx, cert))

		found, err := s.store.FindByID(s.ctx, cert.ID)
		s.Require().NoError(err)
		s.Equal(cert.Fingerprint, found.Fingerprint)
		s.False(found.Finalized)
	})

	s.Run("rejects duplicate fingerprint", func() {
		first := s.newDraft("S-dup")
		second := s.newDraft("S-dup")
		s.Require().NoError(s.store.CreateDraft(s.ctx, first))

		err := s.store.CreateDraft(s.ctx, second)
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("duplicate fingerprint is rejected even after finalization", func() {
		first := s.newDraft("S-anchored")
		s.Require().NoError(s.store.CreateDraft(s.ctx, first))
		_, err := s.finalize(first.ID, "0xanchor-s")
		s.Require().NoError(err)

		err = s.store.CreateDraft(s.ctx, s.newDraft("S-anchored"))
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})
}

func (s *CertificateStoreSuite) TestFinalization() {
	s.Run("finalize sets anchoring fields", func() {
		cert := s.newDraft("S-fin")
		s.Require().NoError(s.store.CreateDraft(s.ctx, cert))

		updated, err := s.finalize(cert.ID, "0xanchor-1")
		s.Require().NoError(err)
		s.True(updated.Finalized)
		s.Equal("0xanchor-1", updated.AnchorReference)
		s.NotNil(updated.FinalizedAt)
	})

	s.Run("second finalize loses", func() {
		cert := s.newDraft("S-twice")
		s.Require().NoError(s.store.CreateDraft(s.ctx, cert))
		_, err := s.finalize(cert.ID, "0xanchor-2")
		s.Require().NoError(err)

		_, err = s.finalize(cert.ID, "0xanchor-other")
		s.Require().Error(err)

		found, err := s.store.FindByID(s.ctx, cert.ID)
		s.Require().NoError(err)
		s.Equal("0xanchor-2", found.AnchorReference)
	})

	s.Run("anchor reference cannot be claimed twice", func() {
		first := s.newDraft("S-ref1")
		second := s.newDraft("S-ref2")
		s.Require().NoError(s.store.CreateDraft(s.ctx, first))
		s.Require().NoError(s.store.CreateDraft(s.ctx, second))

		_, err := s.finalize(first.ID, "0xshared")
		s.Require().NoError(err)

		_, err = s.finalize(second.ID, "0xshared")
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})
}

func (s *CertificateStoreSuite) TestImmutability() {
	mutations := map[string]func(*models.Certificate){
		"student name":  func(c *models.Certificate) { c.StudentName = "Mallory" },
		"student id":    func(c *models.Certificate) { c.StudentID = "S-other" },
		"student email": func(c *models.Certificate) { c.StudentEmail = "mallory@example.com" },
		"course":        func(c *models.Certificate) { c.Course = "Forgery 101" },
		"grade":         func(c *models.Certificate) { c.Grade = "A+" },
		"issue date":    func(c *models.Certificate) { c.IssueDate = "2027-01-01" },
		"fingerprint":   func(c *models.Certificate) { c.Fingerprint = c.Fingerprint[1:] + "0" },
		"issuer":        func(c *models.Certificate) { c.IssuerID = id.IssuerID(uuid.New()) },
		"created at":    func(c *models.Certificate) { c.CreatedAt = c.CreatedAt.Add(time.Hour) },
	}

	for name, mutate := range mutations {
		s.Run("rejects changing "+name, func() {
			cert := s.newDraft("S-immutable-" + name)
			s.Require().NoError(s.store.CreateDraft(s.ctx, cert))

			_, err := s.store.Execute(s.ctx, cert.ID,
				func(*models.Certificate) error { return nil },
				mutate,
			)
			s.Require().ErrorIs(err, sentinel.ErrImmutable)

			found, err := s.store.FindByID(s.ctx, cert.ID)
			s.Require().NoError(err)
			s.Equal(cert.Fingerprint, found.Fingerprint)
			s.Equal(cert.StudentName, found.StudentName)
		})
	}
}

func (s *CertificateStoreSuite) TestVerificationLookup() {
	s.Run("finds finalized record by anchor reference", func() {
		cert := s.newDraft("S-lookup")
		s.Require().NoError(s.store.CreateDraft(s.ctx, cert))
		_, err := s.finalize(cert.ID, "0xanchor-lookup")
		s.Require().NoError(err)

		found, err := s.store.FindFinalizedByAnchorRef(s.ctx, "0xanchor-lookup")
		s.Require().NoError(err)
		s.Equal(cert.ID, found.ID)
	})

	s.Run("unknown anchor reference is ErrNotFound", func() {
		_, err := s.store.FindFinalizedByAnchorRef(s.ctx, "0xghost")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *CertificateStoreSuite) TestListUnfinalized() {
	s.Run("returns only stale drafts", func() {
		old := s.newDraft("S-old")
		old.CreatedAt = time.Now().Add(-48 * time.Hour)
		fresh := s.newDraft("S-fresh")
		anchored := s.newDraft("S-done")
		anchored.CreatedAt = time.Now().Add(-48 * time.Hour)

		s.Require().NoError(s.store.CreateDraft(s.ctx, old))
		s.Require().NoError(s.store.CreateDraft(s.ctx, fresh))
		s.Require().NoError(s.store.CreateDraft(s.ctx, anchored))
		_, err := s.finalize(anchored.ID, "0xanchor-done")
		s.Require().NoError(err)

		got, err := s.store.ListUnfinalized(s.ctx, time.Now().Add(-24*time.Hour))
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal(old.ID, got[0].ID)
	})
}

func (s *CertificateStoreSuite) TestCountByIssuer() {
	s.Run("counts drafts and finalized records alike", func() {
		issuerID := id.IssuerID(uuid.New())
		first := s.newDraft("S-count1")
		first.IssuerID = issuerID
		second := s.newDraft("S-count2")
		second.IssuerID = issuerID
		other := s.newDraft("S-count3")

		s.Require().NoError(s.store.CreateDraft(s.ctx, first))
		s.Require().NoError(s.store.CreateDraft(s.ctx, second))
		s.Require().NoError(s.store.CreateDraft(s.ctx, other))

		count, err := s.store.CountByIssuer(s.ctx, issuerID)
		s.Require().NoError(err)
		s.Equal(2, count)
	})
}
