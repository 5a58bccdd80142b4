package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"certledger/internal/issuer/models"
	"certledger/internal/issuer/store"
	id "certledger/pkg/domain"
	dErrors "certledger/pkg/domain-errors"
	audit "certledger/pkg/platform/audit"
	auditpublisher "certledger/pkg/platform/audit/publisher"
	auditmemory "certledger/pkg/platform/audit/store/memory"
)

type IssuerServiceSuite struct {
	suite.Suite
	service *Service
	events  *auditmemory.InMemoryStore
	ctx     context.Context
}

func (s *IssuerServiceSuite) SetupTest() {
	s.events = auditmemory.NewInMemoryStore()
	s.service = New(store.NewInMemory(),
		WithAuditEmitter(auditpublisher.NewPublisher(s.events)),
	)
	s.ctx = context.Background()
}

func TestIssuerServiceSuite(t *testing.T) {
	suite.Run(t, new(IssuerServiceSuite))
}

func (s *IssuerServiceSuite) register(contact string) *models.Issuer {
	issuer, err := s.service.Register(s.ctx, "Test University", contact)
	s.Require().NoError(err)
	return issuer
}

func (s *IssuerServiceSuite) approve(issuerID id.IssuerID) *models.Issuer {
	issuer, err := s.service.Approve(s.ctx, issuerID)
	s.Require().NoError(err)
	return issuer
}

func (s *IssuerServiceSuite) lastAction() string {
	all := s.events.All()
	s.Require().NotEmpty(all)
	return all[len(all)-1].Action
}

func (s *IssuerServiceSuite) TestRegister() {
	s.Run("creates pending issuer and records the event", func() {
		issuer := s.register("registrar@test.edu")
		s.Equal(models.IssuerStatusPending, issuer.Status)
		s.Equal(audit.EventIssuerRegistered, s.lastAction())
	})

	s.Run("duplicate contact yields Conflict", func() {
		s.register("dup@test.edu")
		_, err := s.service.Register(s.ctx, "Another University", "dup@test.edu")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("invalid contact yields Validation", func() {
		_, err := s.service.Register(s.ctx, "Test University", "not-an-email")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *IssuerServiceSuite) TestDecisions() {
	s.Run("approve then revoke", func() {
		issuer := s.register("lifecycle@test.edu")

		approved := s.approve(issuer.ID)
		s.Equal(models.IssuerStatusApproved, approved.Status)
		s.Equal(audit.EventIssuerApproved, s.lastAction())

		revoked, err := s.service.Revoke(s.ctx, issuer.ID)
		s.Require().NoError(err)
		s.Equal(models.IssuerStatusRevoked, revoked.Status)
		s.Equal(audit.EventIssuerRevoked, s.lastAction())
	})

	s.Run("reject pending issuer", func() {
		issuer := s.register("reject@test.edu")
		rejected, err := s.service.Reject(s.ctx, issuer.ID)
		s.Require().NoError(err)
		s.Equal(models.IssuerStatusRejected, rejected.Status)
	})

	s.Run("double approval yields Conflict", func() {
		issuer := s.register("twice@test.edu")
		s.approve(issuer.ID)

		_, err := s.service.Approve(s.ctx, issuer.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("revoking a rejected issuer yields Conflict", func() {
		issuer := s.register("terminal@test.edu")
		_, err := s.service.Reject(s.ctx, issuer.ID)
		s.Require().NoError(err)

		_, err = s.service.Revoke(s.ctx, issuer.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("unknown issuer yields NotFound", func() {
		_, err := s.service.Approve(s.ctx, id.IssuerID(uuid.New()))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("zero issuer id yields InvalidInput", func() {
		_, err := s.service.Approve(s.ctx, id.IssuerID{})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *IssuerServiceSuite) TestBindWallet() {
	const wallet = "0xABCDEF0123456789abcdef0123456789abcdef01"

	s.Run("normalizes and binds for approved issuer", func() {
		issuer := s.register("wallet@test.edu")
		s.approve(issuer.ID)

		bound, err := s.service.BindWallet(s.ctx, issuer.ID, wallet)
		s.Require().NoError(err)
		s.Equal("0xabcdef0123456789abcdef0123456789abcdef01", bound.WalletAddress)
		s.Equal(audit.EventWalletBound, s.lastAction())
	})

	s.Run("second binding yields Conflict", func() {
		issuer := s.register("rebind@test.edu")
		s.approve(issuer.ID)
		_, err := s.service.BindWallet(s.ctx, issuer.ID, "0x1111111111111111111111111111111111111111")
		s.Require().NoError(err)

		_, err = s.service.BindWallet(s.ctx, issuer.ID, "0x2222222222222222222222222222222222222222")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("wallet taken by another issuer yields Conflict", func() {
		first := s.register("owner@test.edu")
		second := s.register("claimant@test.edu")
		s.approve(first.ID)
		s.approve(second.ID)

		shared := "0x3333333333333333333333333333333333333333"
		_, err := s.service.BindWallet(s.ctx, first.ID, shared)
		s.Require().NoError(err)

		_, err = s.service.BindWallet(s.ctx, second.ID, shared)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("pending issuer yields Forbidden", func() {
		issuer := s.register("notyet@test.edu")
		_, err := s.service.BindWallet(s.ctx, issuer.ID, wallet)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("malformed wallet yields Validation", func() {
		issuer := s.register("badaddr@test.edu")
		s.approve(issuer.ID)
		_, err := s.service.BindWallet(s.ctx, issuer.ID, "0xnothex")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *IssuerServiceSuite) TestResolveApprovedIssuer() {
	s.Run("resolves approved issuer by contact", func() {
		issuer := s.register("resolve@test.edu")
		s.approve(issuer.ID)

		resolved, err := s.service.ResolveApprovedIssuer(s.ctx, "resolve@test.edu")
		s.Require().NoError(err)
		s.Equal(issuer.ID, resolved.ID)
	})

	s.Run("pending issuer is Unauthorized", func() {
		s.register("unapproved@test.edu")
		_, err := s.service.ResolveApprovedIssuer(s.ctx, "unapproved@test.edu")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("revoked issuer is Unauthorized", func() {
		issuer := s.register("wasapproved@test.edu")
		s.approve(issuer.ID)
		_, err := s.service.Revoke(s.ctx, issuer.ID)
		s.Require().NoError(err)

		_, err = s.service.ResolveApprovedIssuer(s.ctx, "wasapproved@test.edu")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("unknown contact is indistinguishable from unapproved", func() {
		_, unknownErr := s.service.ResolveApprovedIssuer(s.ctx, "ghost@test.edu")
		s.Require().Error(unknownErr)

		s.register("real@test.edu")
		_, pendingErr := s.service.ResolveApprovedIssuer(s.ctx, "real@test.edu")
		s.Require().Error(pendingErr)

		s.Equal(dErrors.MessageOf(unknownErr), dErrors.MessageOf(pendingErr))
	})
}

func (s *IssuerServiceSuite) TestListIssuers() {
	s.Run("filters by status", func() {
		a := s.register("lista@test.edu")
		s.register("listb@test.edu")
		s.approve(a.ID)

		status := models.IssuerStatusPending
		got, err := s.service.ListIssuers(s.ctx, &status)
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal("listb@test.edu", got[0].ContactAddress)
	})
}
