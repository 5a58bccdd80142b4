package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"certledger/internal/anchor"
	"certledger/internal/certificate/models"
	"certledger/internal/certificate/service"
	id "certledger/pkg/domain"
	dErrors "certledger/pkg/domain-errors"
	"certledger/pkg/platform/httputil"
	"certledger/pkg/requestcontext"
)

// defaultOrphanAge is the cutoff for the draft sweep listing when the
// caller does not pass one.
const defaultOrphanAge = 24 * time.Hour

// anchorSubmitTimeout caps how long a ledger write may block before the
// caller gets AnchorTimeout and retries with the same fingerprint.
const anchorSubmitTimeout = 30 * time.Second

// Service defines the certificate operations the handler needs.
type Service interface {
	RequestIssuance(ctx context.Context, req service.IssuanceRequest) (*service.IssuanceResult, error)
	ConfirmAnchor(ctx context.Context, certID id.CertificateID, anchorReference string) (*models.Certificate, error)
	ListOrphanedDrafts(ctx context.Context, olderThan time.Duration) ([]*models.Certificate, error)
	Verify(ctx context.Context, anchorReference string) (*service.Verdict, error)
}

// Handler wires certificate endpoints to the issuance coordinator and
// verification pipeline.
type Handler struct {
	service Service
	anchors anchor.Client
	logger  *slog.Logger
}

func New(svc Service, anchors anchor.Client, logger *slog.Logger) *Handler {
	return &Handler{service: svc, anchors: anchors, logger: logger}
}

// RegisterIssuer mounts routes that require an issuer JWT.
func (h *Handler) RegisterIssuer(r chi.Router) {
	r.Post("/certificates/issue", h.HandleIssue)
	r.Post("/certificates/anchor", h.HandleConfirmAnchor)
}

// RegisterAdmin mounts operator routes guarded by the admin token.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/certificates/drafts", h.HandleListDrafts)
	r.Post("/anchor/submit", h.HandleSubmitAnchor)
}

// RegisterPublic mounts the public verification route.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/verify/{anchorRef}", h.HandleVerify)
}

func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	contact := requestcontext.IssuerContact(ctx)
	if contact == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[IssueRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.RequestIssuance(ctx, service.IssuanceRequest{
		IssuerContact: contact,
		StudentEmail:  req.StudentEmail,
		Metadata:      req.Metadata(),
	})
	if err != nil {
		h.logger.WarnContext(ctx, "issuance rejected",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) HandleConfirmAnchor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	if requestcontext.IssuerContact(ctx) == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[ConfirmAnchorRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	certID, err := id.ParseCertificateID(req.RecordID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	cert, err := h.service.ConfirmAnchor(ctx, certID, req.AnchorReference)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"finalized":    true,
		"record_id":    cert.ID,
		"finalized_at": cert.FinalizedAt,
	})
}

func (h *Handler) HandleListDrafts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	olderThan := defaultOrphanAge
	if raw := r.URL.Query().Get("older_than"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "older_than must be a non-negative duration"))
			return
		}
		olderThan = d
	}
	drafts, err := h.service.ListOrphanedDrafts(ctx, olderThan)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"drafts": drafts,
		"count":  len(drafts),
	})
}

func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	anchorRef := strings.TrimSpace(chi.URLParam(r, "anchorRef"))
	verdict, err := h.service.Verify(ctx, anchorRef)
	if err != nil {
		h.logger.ErrorContext(ctx, "verification failed",
			"request_id", requestcontext.RequestID(ctx),
			"anchor_reference", anchorRef,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, verdict)
}

// HandleSubmitAnchor writes a fingerprint to the ledger on behalf of an
// operator. Deployments with a real external anchor submit out of band
// and never mount this.
func (h *Handler) HandleSubmitAnchor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SubmitAnchorRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	submitCtx, cancel := context.WithTimeout(ctx, anchorSubmitTimeout)
	defer cancel()
	ref, err := h.anchors.Submit(submitCtx, strings.TrimSpace(req.Fingerprint))
	if err != nil {
		httputil.WriteError(w, anchor.WrapErr(err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"anchor_reference": ref})
}
