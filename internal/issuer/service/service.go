// Package service orchestrates the issuer directory: registration,
// approval decisions, wallet binding, and approved-issuer resolution
// for the issuance path.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"certledger/internal/issuer/models"
	id "certledger/pkg/domain"
	dErrors "certledger/pkg/domain-errors"
	audit "certledger/pkg/platform/audit"
	"certledger/pkg/platform/sentinel"
	"certledger/pkg/requestcontext"
)

// Store is the persistence port for issuers. Execute and BindWallet
// must hold their lock (mutex or FOR UPDATE) across both callbacks.
type Store interface {
	CreateIfContactAvailable(ctx context.Context, issuer *models.Issuer) error
	FindByID(ctx context.Context, issuerID id.IssuerID) (*models.Issuer, error)
	FindByContact(ctx context.Context, contact string) (*models.Issuer, error)
	Execute(ctx context.Context, issuerID id.IssuerID, validate func(*models.Issuer) error, mutate func(*models.Issuer)) (*models.Issuer, error)
	BindWallet(ctx context.Context, issuerID id.IssuerID, wallet string, validate func(*models.Issuer) error, mutate func(*models.Issuer)) (*models.Issuer, error)
	List(ctx context.Context, status *models.IssuerStatus) ([]*models.Issuer, error)
}

// AuditEmitter records compliance events. Failures fail the operation.
type AuditEmitter interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service implements issuer directory operations.
type Service struct {
	issuers Store
	auditor AuditEmitter
	logger  *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

func WithAuditEmitter(a AuditEmitter) Option {
	return func(s *Service) { s.auditor = a }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(issuers Store, opts ...Option) *Service {
	s := &Service{issuers: issuers, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a pending issuer. The approval decision is a
// separate admin operation; registration never grants issuance rights.
func (s *Service) Register(ctx context.Context, displayName, contactAddress string) (*models.Issuer, error) {
	issuer, err := models.NewIssuer(id.NewIssuerID(), displayName, contactAddress, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.issuers.CreateIfContactAvailable(ctx, issuer); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "contact address is already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register issuer")
	}
	if err := s.emit(ctx, audit.EventIssuerRegistered, issuer.ID, ""); err != nil {
		return nil, err
	}
	return issuer, nil
}

// Approve transitions a pending issuer to approved.
func (s *Service) Approve(ctx context.Context, issuerID id.IssuerID) (*models.Issuer, error) {
	return s.decide(ctx, issuerID, audit.EventIssuerApproved,
		(*models.Issuer).CanApprove, (*models.Issuer).ApplyApproval)
}

// Reject transitions a pending issuer to rejected.
func (s *Service) Reject(ctx context.Context, issuerID id.IssuerID) (*models.Issuer, error) {
	return s.decide(ctx, issuerID, audit.EventIssuerRejected,
		(*models.Issuer).CanReject, (*models.Issuer).ApplyRejection)
}

// Revoke withdraws trust from an approved issuer. Existing records are
// kept (append-only), but verification reports them as IssuerNotTrusted
// from this point on.
func (s *Service) Revoke(ctx context.Context, issuerID id.IssuerID) (*models.Issuer, error) {
	return s.decide(ctx, issuerID, audit.EventIssuerRevoked,
		(*models.Issuer).CanRevoke, (*models.Issuer).ApplyRevocation)
}

func (s *Service) decide(ctx context.Context, issuerID id.IssuerID, action string,
	can func(*models.Issuer) error, apply func(*models.Issuer, time.Time)) (*models.Issuer, error) {

	if issuerID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "issuer id is required")
	}
	now := requestcontext.Now(ctx)
	issuer, err := s.issuers.Execute(ctx, issuerID,
		func(i *models.Issuer) error {
			if err := can(i); err != nil {
				if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
					return dErrors.Wrap(err, dErrors.CodeConflict, "issuer state does not allow this decision")
				}
				return err
			}
			return nil
		},
		func(i *models.Issuer) {
			apply(i, now)
		},
	)
	if err != nil {
		return nil, s.wrapStoreErr(err)
	}
	if err := s.emit(ctx, action, issuer.ID, ""); err != nil {
		return nil, err
	}
	return issuer, nil
}

// BindWallet binds a wallet address to an approved issuer, once.
func (s *Service) BindWallet(ctx context.Context, issuerID id.IssuerID, walletAddress string) (*models.Issuer, error) {
	if issuerID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "issuer id is required")
	}
	wallet, err := models.NormalizeWallet(walletAddress)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	issuer, err := s.issuers.BindWallet(ctx, issuerID, wallet,
		(*models.Issuer).CanBindWallet,
		func(i *models.Issuer) {
			i.ApplyWalletBinding(wallet, now)
		},
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "wallet address is already registered")
		}
		return nil, s.wrapStoreErr(err)
	}
	if err := s.emit(ctx, audit.EventWalletBound, issuer.ID, wallet); err != nil {
		return nil, err
	}
	return issuer, nil
}

// ResolveApprovedIssuer authorizes the issuance path: it returns the
// issuer for a contact address only if that issuer is currently
// approved. Anything else is Unauthorized; the caller learns nothing
// about whether the contact exists.
func (s *Service) ResolveApprovedIssuer(ctx context.Context, contactAddress string) (*models.Issuer, error) {
	issuer, err := s.issuers.FindByContact(ctx, contactAddress)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "issuer is not authorized to issue certificates")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve issuer")
	}
	if !issuer.IsApproved() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "issuer is not authorized to issue certificates")
	}
	return issuer, nil
}

// GetIssuer returns an issuer by ID.
func (s *Service) GetIssuer(ctx context.Context, issuerID id.IssuerID) (*models.Issuer, error) {
	if issuerID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "issuer id is required")
	}
	issuer, err := s.issuers.FindByID(ctx, issuerID)
	if err != nil {
		return nil, s.wrapStoreErr(err)
	}
	return issuer, nil
}

// ListIssuers returns issuers, optionally filtered by status.
func (s *Service) ListIssuers(ctx context.Context, status *models.IssuerStatus) ([]*models.Issuer, error) {
	issuers, err := s.issuers.List(ctx, status)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list issuers")
	}
	return issuers, nil
}

func (s *Service) emit(ctx context.Context, action string, issuerID id.IssuerID, subject string) error {
	if s.auditor == nil {
		return nil
	}
	err := s.auditor.Emit(ctx, audit.Event{
		Category:  audit.CategoryCompliance,
		Timestamp: requestcontext.Now(ctx),
		IssuerID:  issuerID,
		Action:    action,
		Subject:   subject,
		RequestID: requestcontext.RequestID(ctx),
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}

func (s *Service) wrapStoreErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "issuer not found")
	case dErrors.HasCode(err, dErrors.CodeInternal):
		return err
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "issuer store failure")
}
