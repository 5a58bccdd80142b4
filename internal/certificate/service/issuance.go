package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"certledger/internal/certificate/fingerprint"
	"certledger/internal/certificate/models"
	id "certledger/pkg/domain"
	dErrors "certledger/pkg/domain-errors"
	audit "certledger/pkg/platform/audit"
	"certledger/pkg/platform/sentinel"
	"certledger/pkg/requestcontext"
)

// IssuanceRequest carries everything needed to draft a certificate.
type IssuanceRequest struct {
	IssuerContact string
	StudentEmail  string
	Metadata      fingerprint.Metadata
}

// IssuanceResult is returned to the caller, who then submits the
// fingerprint to the anchor and comes back with ConfirmAnchor.
type IssuanceResult struct {
	RecordID    id.CertificateID `json:"record_id"`
	Fingerprint string           `json:"fingerprint"`
}

// RequestIssuance drives Requested -> Drafted.
//
// Authorization failure rejects the request with Unauthorized and no
// record is created. A fingerprint collision rejects with Conflict:
// identical normalized content has already been issued, and callers
// must treat that as "already issued", not retry. On success the record
// sits in AnchorPending until the caller confirms the anchor; if that
// never happens the draft stays, orphaned but harmless, since lookup
// only resolves finalized records.
func (s *Service) RequestIssuance(ctx context.Context, req IssuanceRequest) (*IssuanceResult, error) {
	start := time.Now()

	issuer, err := s.issuers.ResolveApprovedIssuer(ctx, req.IssuerContact)
	if err != nil {
		return nil, err
	}

	canonical, err := fingerprint.Normalize(req.Metadata)
	if err != nil {
		return nil, err
	}
	fp := fingerprint.Digest(canonical)

	draft, err := models.NewDraft(id.NewCertificateID(), issuer.ID, canonical, req.StudentEmail, fp, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	if err := s.certs.CreateDraft(ctx, draft); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "certificate already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create draft")
	}

	if err := s.emit(ctx, audit.EventCertificateDrafted, issuer.ID, draft.ID, fp); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}

	if s.metrics != nil {
		s.metrics.IncrementDraftsCreated()
		s.metrics.ObserveIssuance(start)
	}
	s.logger.InfoContext(ctx, "certificate drafted",
		"certificate_id", draft.ID,
		"issuer_id", issuer.ID,
		"fingerprint", fp,
	)
	return &IssuanceResult{RecordID: draft.ID, Fingerprint: fp}, nil
}

// ConfirmAnchor drives AnchorPending -> Finalized.
//
// The anchor reference comes from the caller's ledger submission. The
// finalized flag's check-and-set runs atomically inside the store, so
// exactly one of any concurrent confirmations wins; the rest get
// AlreadyFinalized rather than a silent success. There is no rollback
// path: a failed anchor submission leaves the draft for the caller to
// retry with the same fingerprint.
func (s *Service) ConfirmAnchor(ctx context.Context, certID id.CertificateID, anchorReference string) (*models.Certificate, error) {
	if certID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "certificate id is required")
	}
	anchorReference = strings.TrimSpace(anchorReference)
	if anchorReference == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "anchor reference is required")
	}

	now := requestcontext.Now(ctx)
	cert, err := s.certs.Execute(ctx, certID,
		(*models.Certificate).CanFinalize,
		func(c *models.Certificate) {
			c.ApplyFinalization(anchorReference, now)
		},
	)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "certificate not found")
		case errors.Is(err, sentinel.ErrConflict):
			return nil, dErrors.New(dErrors.CodeConflict, "anchor reference is already claimed by another certificate")
		case errors.Is(err, sentinel.ErrImmutable):
			return nil, dErrors.Wrap(err, dErrors.CodeImmutableField, "finalization attempted to alter descriptive fields")
		}
		var de *dErrors.Error
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to finalize certificate")
	}

	if err := s.emit(ctx, audit.EventCertificateFinalized, cert.IssuerID, cert.ID, anchorReference); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}

	if s.metrics != nil {
		s.metrics.IncrementAnchored()
	}
	s.logger.InfoContext(ctx, "certificate finalized",
		"certificate_id", cert.ID,
		"anchor_reference", anchorReference,
	)
	return cert, nil
}

// ListOrphanedDrafts returns unfinalized drafts older than the given
// age. This is the operational reconciliation surface for abandoned
// two-phase flows; drafts are never auto-expired or rolled back.
func (s *Service) ListOrphanedDrafts(ctx context.Context, olderThan time.Duration) ([]*models.Certificate, error) {
	cutoff := requestcontext.Now(ctx).Add(-olderThan)
	drafts, err := s.certs.ListUnfinalized(ctx, cutoff)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list drafts")
	}
	return drafts, nil
}

// CountByIssuer reports how many records an issuer has created, for
// admin detail views.
func (s *Service) CountByIssuer(ctx context.Context, issuerID id.IssuerID) (int, error) {
	count, err := s.certs.CountByIssuer(ctx, issuerID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count certificates")
	}
	return count, nil
}
