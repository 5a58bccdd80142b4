package service

import (
	"context"
	"errors"
	"time"

	"certledger/internal/anchor"
	"certledger/internal/certificate/fingerprint"
	dErrors "certledger/pkg/domain-errors"
	"certledger/pkg/platform/sentinel"
)

// VerdictReason explains a negative verification verdict.
type VerdictReason string

const (
	// ReasonRecordNotFound: no finalized record resolves to the anchor
	// reference.
	ReasonRecordNotFound VerdictReason = "record_not_found"
	// ReasonIntegrityFailure: the stored record no longer hashes to its
	// own fingerprint. This should be impossible while storage-layer
	// immutability holds; its appearance is a canary for storage bugs.
	ReasonIntegrityFailure VerdictReason = "integrity_failure"
	// ReasonAnchorNotFound: the fingerprint is absent from the ledger.
	ReasonAnchorNotFound VerdictReason = "anchor_not_found"
	// ReasonIssuerNotTrusted: the issuing institution is not approved at
	// verification time (e.g. revoked after issuance).
	ReasonIssuerNotTrusted VerdictReason = "issuer_not_trusted"
)

// Verdict is the outcome of a verification. Negative verdicts are
// results, not errors: only infrastructure failures surface as errors.
type Verdict struct {
	Valid  bool          `json:"valid"`
	Reason VerdictReason `json:"reason,omitempty"`

	// Populated only for valid verdicts.
	StudentName     string `json:"student_name,omitempty"`
	StudentID       string `json:"student_id,omitempty"`
	StudentEmail    string `json:"student_email,omitempty"`
	Course          string `json:"course,omitempty"`
	Grade           string `json:"grade,omitempty"`
	IssueDate       string `json:"issue_date,omitempty"`
	Fingerprint     string `json:"fingerprint,omitempty"`
	Issuer          string `json:"issuer,omitempty"`
	IssuerWallet    string `json:"issuer_wallet,omitempty"`
	AnchorReference string `json:"anchor_reference,omitempty"`
	FinalizedAt     string `json:"finalized_at,omitempty"`
}

func invalid(reason VerdictReason) *Verdict {
	return &Verdict{Valid: false, Reason: reason}
}

// Verify runs the verification pipeline for an anchor reference, in
// strict order, short-circuiting on the first failed check:
//
//  1. resolve the finalized record
//  2. recompute the fingerprint from stored descriptive fields
//  3. confirm the fingerprint exists on the ledger
//  4. confirm the issuer is approved at verification time
//
// Trust is deliberately re-evaluated at verification time: a
// certificate from a since-revoked issuer verifies as invalid even
// though it was legitimately anchored. The pipeline has no side
// effects and yields identical verdicts for identical inputs.
func (s *Service) Verify(ctx context.Context, anchorReference string) (*Verdict, error) {
	start := time.Now()
	if anchorReference == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "anchor reference is required")
	}

	if s.cache != nil {
		if verdict, ok := s.cache.Get(ctx, anchorReference); ok {
			return verdict, nil
		}
	}

	verdict, err := s.runPipeline(ctx, anchorReference)
	if err != nil {
		return nil, err
	}

	// Only positive verdicts are cached. A negative one can flip to
	// valid at any moment (a draft finalizes, an anchor lands), whereas
	// a valid verdict only degrades on issuer revocation, which the TTL
	// bounds.
	if s.cache != nil && verdict.Valid {
		if err := s.cache.Save(ctx, anchorReference, verdict); err != nil {
			s.logger.WarnContext(ctx, "verdict cache save failed", "error", err)
		}
	}
	if s.metrics != nil {
		s.metrics.ObserveVerify(start)
		if verdict.Valid {
			s.metrics.ObserveVerdict("valid")
		} else {
			s.metrics.ObserveVerdict(string(verdict.Reason))
		}
	}
	return verdict, nil
}

func (s *Service) runPipeline(ctx context.Context, anchorReference string) (*Verdict, error) {
	cert, err := s.certs.FindFinalizedByAnchorRef(ctx, anchorReference)
	if err != nil {
		if isNotFound(err) {
			return invalid(ReasonRecordNotFound), nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve certificate")
	}

	if fingerprint.Digest(cert.Canonical()) != cert.Fingerprint {
		s.logger.ErrorContext(ctx, "stored certificate fails integrity check",
			"certificate_id", cert.ID,
			"anchor_reference", anchorReference,
		)
		return invalid(ReasonIntegrityFailure), nil
	}

	anchored, err := s.anchors.Exists(ctx, cert.Fingerprint)
	if err != nil {
		return nil, anchor.WrapErr(err)
	}
	if !anchored {
		return invalid(ReasonAnchorNotFound), nil
	}

	issuer, err := s.issuers.GetIssuer(ctx, cert.IssuerID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return invalid(ReasonIssuerNotTrusted), nil
		}
		return nil, err
	}
	if !issuer.IsApproved() {
		return invalid(ReasonIssuerNotTrusted), nil
	}

	verdict := &Verdict{
		Valid:           true,
		StudentName:     cert.StudentName,
		StudentID:       cert.StudentID,
		StudentEmail:    cert.StudentEmail,
		Course:          cert.Course,
		Grade:           cert.Grade,
		IssueDate:       cert.IssueDate,
		Fingerprint:     cert.Fingerprint,
		Issuer:          issuer.DisplayName,
		IssuerWallet:    issuer.WalletAddress,
		AnchorReference: cert.AnchorReference,
	}
	if cert.FinalizedAt != nil {
		verdict.FinalizedAt = cert.FinalizedAt.UTC().Format(time.RFC3339)
	}
	return verdict, nil
}

func isNotFound(err error) bool {
	return dErrors.HasCode(err, dErrors.CodeNotFound) || errors.Is(err, sentinel.ErrNotFound)
}
