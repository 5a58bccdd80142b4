// Package service implements the two-phase issuance coordinator and the
// verification pipeline.
package service

import (
	"context"
	"log/slog"
	"time"

	"certledger/internal/anchor"
	"certledger/internal/certificate/metrics"
	"certledger/internal/certificate/models"
	issuermodels "certledger/internal/issuer/models"
	id "certledger/pkg/domain"
	audit "certledger/pkg/platform/audit"
	"certledger/pkg/requestcontext"
)

// Store is the persistence port for certificate records. Execute must
// hold its lock (mutex or FOR UPDATE) across both callbacks and reject
// descriptive-field mutations at the storage layer.
type Store interface {
	CreateDraft(ctx context.Context, cert *models.Certificate) error
	FindByID(ctx context.Context, certID id.CertificateID) (*models.Certificate, error)
	FindFinalizedByAnchorRef(ctx context.Context, anchorRef string) (*models.Certificate, error)
	Execute(ctx context.Context, certID id.CertificateID, validate func(*models.Certificate) error, mutate func(*models.Certificate)) (*models.Certificate, error)
	ListUnfinalized(ctx context.Context, olderThan time.Time) ([]*models.Certificate, error)
	CountByIssuer(ctx context.Context, issuerID id.IssuerID) (int, error)
}

// IssuerDirectory is the authorization port into the issuer module.
type IssuerDirectory interface {
	// ResolveApprovedIssuer returns the issuer for the contact only if it
	// is currently approved, Unauthorized otherwise.
	ResolveApprovedIssuer(ctx context.Context, contactAddress string) (*issuermodels.Issuer, error)
	// GetIssuer returns any issuer by ID regardless of status; the
	// verification pipeline re-evaluates trust itself.
	GetIssuer(ctx context.Context, issuerID id.IssuerID) (*issuermodels.Issuer, error)
}

// AuditEmitter records compliance events. Failures fail the operation.
type AuditEmitter interface {
	Emit(ctx context.Context, event audit.Event) error
}

// VerdictCache holds recent verification verdicts keyed by anchor
// reference. Purely an ambient optimization with TTL-bounded staleness;
// the pipeline works identically without one.
type VerdictCache interface {
	Get(ctx context.Context, anchorRef string) (*Verdict, bool)
	Save(ctx context.Context, anchorRef string, verdict *Verdict) error
}

// Service coordinates certificate issuance and verification.
type Service struct {
	certs   Store
	issuers IssuerDirectory
	anchors anchor.Client
	auditor AuditEmitter
	cache   VerdictCache
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

func WithAuditEmitter(a AuditEmitter) Option {
	return func(s *Service) { s.auditor = a }
}

func WithVerdictCache(c VerdictCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// New constructs the certificate service. The anchor client is required
// by the verification pipeline; stores and directory are required by
// everything.
func New(certs Store, issuers IssuerDirectory, anchors anchor.Client, opts ...Option) *Service {
	s := &Service{
		certs:   certs,
		issuers: issuers,
		anchors: anchors,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) emit(ctx context.Context, action string, issuerID id.IssuerID, certID id.CertificateID, subject string) error {
	if s.auditor == nil {
		return nil
	}
	return s.auditor.Emit(ctx, audit.Event{
		Category:      audit.CategoryCompliance,
		Timestamp:     requestcontext.Now(ctx),
		IssuerID:      issuerID,
		CertificateID: certID,
		Action:        action,
		Subject:       subject,
		RequestID:     requestcontext.RequestID(ctx),
	})
}
