//go:build integration

package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"certledger/internal/certificate/fingerprint"
	certmodels "certledger/internal/certificate/models"
	"certledger/internal/certificate/store"
	issuermodels "certledger/internal/issuer/models"
	issuerstore "certledger/internal/issuer/store"
	id "certledger/pkg/domain"
	"certledger/pkg/platform/sentinel"
	"certledger/pkg/testutil/containers"
)

type PostgresCertificateSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
	issuers  *issuerstore.Postgres
	issuerID id.IssuerID
}

func TestPostgresCertificateSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresCertificateSuite))
}

func (s *PostgresCertificateSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T(), "../../../migrations")
	s.store = store.NewPostgres(s.postgres.DB)
	s.issuers = issuerstore.NewPostgres(s.postgres.DB)
}

func (s *PostgresCertificateSuite) TearDownSuite() {
	s.postgres.Terminate(context.Background())
}

func (s *PostgresCertificateSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "certificates", "issuers")
	s.Require().NoError(err)

	// The certificates table references issuers; every test needs one.
	now := time.Now().UTC().Truncate(time.Microsecond)
	issuer := &issuermodels.Issuer{
		ID:             id.IssuerID(uuid.New()),
		DisplayName:    "Test University",
		ContactAddress: "registrar@test.edu",
		Status:         issuermodels.IssuerStatusApproved,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.Require().NoError(s.issuers.CreateIfContactAvailable(ctx, issuer))
	s.issuerID = issuer.ID
}

func (s *PostgresCertificateSuite) newDraft(studentID string) *certmodels.Certificate {
	canonical := fingerprint.Canonical{
		StudentName: "Ada Lovelace",
		StudentID:   studentID,
		Course:      "Analytical Engines",
		Grade:       "A",
		IssueDate:   "2026-06-15",
	}
	cert, err := certmodels.NewDraft(
		id.CertificateID(uuid.New()), s.issuerID,
		canonical, "ada@example.com", fingerprint.Digest(canonical),
		time.Now().UTC().Truncate(time.Microsecond),
	)
	s.Require().NoError(err)
	return cert
}

func (s *PostgresCertificateSuite) finalize(certID id.CertificateID, anchorRef string) (*certmodels.Certificate, error) {
	return s.store.Execute(context.Background(), certID,
		func(c *certmodels.Certificate) error { return c.CanFinalize() },
		func(c *certmodels.Certificate) { c.ApplyFinalization(anchorRef, time.Now().UTC()) },
	)
}

func (s *PostgresCertificateSuite) TestRoundTrip() {
	ctx := context.Background()
	cert := s.newDraft("S-1")
	s.Require().NoError(s.store.CreateDraft(ctx, cert))

	found, err := s.store.FindByID(ctx, cert.ID)
	s.Require().NoError(err)
	s.Equal(cert.Fingerprint, found.Fingerprint)
	s.Equal("2026-06-15", found.IssueDate)
	s.False(found.Finalized)
	s.Nil(found.FinalizedAt)

	// The stored canonical form re-derives the same digest.
	s.Equal(cert.Fingerprint, fingerprint.Digest(found.Canonical()))
}

func (s *PostgresCertificateSuite) TestFingerprintUniqueness() {
	ctx := context.Background()
	s.Require().NoError(s.store.CreateDraft(ctx, s.newDraft("S-dup")))

	err := s.store.CreateDraft(ctx, s.newDraft("S-dup"))
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresCertificateSuite) TestConcurrentFinalize() {
	ctx := context.Background()
	cert := s.newDraft("S-race")
	s.Require().NoError(s.store.CreateDraft(ctx, cert))

	const goroutines = 10
	var wg sync.WaitGroup
	var successCount atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.finalize(cert.ID, "0xanchor-race")
			if err == nil {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one finalize should win")

	found, err := s.store.FindByID(ctx, cert.ID)
	s.Require().NoError(err)
	s.True(found.Finalized)
	s.Equal("0xanchor-race", found.AnchorReference)
}

func (s *PostgresCertificateSuite) TestImmutabilityEnforced() {
	ctx := context.Background()
	cert := s.newDraft("S-frozen")
	s.Require().NoError(s.store.CreateDraft(ctx, cert))

	_, err := s.store.Execute(ctx, cert.ID,
		func(*certmodels.Certificate) error { return nil },
		func(c *certmodels.Certificate) { c.Grade = "A+" },
	)
	s.Require().ErrorIs(err, sentinel.ErrImmutable)

	found, err := s.store.FindByID(ctx, cert.ID)
	s.Require().NoError(err)
	s.Equal("A", found.Grade)
}

func (s *PostgresCertificateSuite) TestAnchorReferenceUniqueness() {
	ctx := context.Background()
	first := s.newDraft("S-ref1")
	second := s.newDraft("S-ref2")
	s.Require().NoError(s.store.CreateDraft(ctx, first))
	s.Require().NoError(s.store.CreateDraft(ctx, second))

	_, err := s.finalize(first.ID, "0xshared")
	s.Require().NoError(err)

	_, err = s.finalize(second.ID, "0xshared")
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresCertificateSuite) TestVerificationLookup() {
	ctx := context.Background()
	cert := s.newDraft("S-lookup")
	s.Require().NoError(s.store.CreateDraft(ctx, cert))

	// Drafts never resolve publicly.
	_, err := s.store.FindFinalizedByAnchorRef(ctx, "0xanchor-lookup")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.finalize(cert.ID, "0xanchor-lookup")
	s.Require().NoError(err)

	found, err := s.store.FindFinalizedByAnchorRef(ctx, "0xanchor-lookup")
	s.Require().NoError(err)
	s.Equal(cert.ID, found.ID)
	s.NotNil(found.FinalizedAt)
}

func (s *PostgresCertificateSuite) TestListUnfinalizedAndCount() {
	ctx := context.Background()

	stale := s.newDraft("S-stale")
	stale.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
	fresh := s.newDraft("S-fresh")
	s.Require().NoError(s.store.CreateDraft(ctx, stale))
	s.Require().NoError(s.store.CreateDraft(ctx, fresh))

	drafts, err := s.store.ListUnfinalized(ctx, time.Now().UTC().Add(-24*time.Hour))
	s.Require().NoError(err)
	s.Require().Len(drafts, 1)
	s.Equal(stale.ID, drafts[0].ID)

	count, err := s.store.CountByIssuer(ctx, s.issuerID)
	s.Require().NoError(err)
	s.Equal(2, count)
}
