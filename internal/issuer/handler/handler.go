package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"certledger/internal/issuer/models"
	jwttoken "certledger/internal/jwt_token"
	id "certledger/pkg/domain"
	dErrors "certledger/pkg/domain-errors"
	"certledger/pkg/platform/httputil"
	"certledger/pkg/requestcontext"
)

// Service defines the issuer directory operations the handler needs.
type Service interface {
	Register(ctx context.Context, displayName, contactAddress string) (*models.Issuer, error)
	Approve(ctx context.Context, issuerID id.IssuerID) (*models.Issuer, error)
	Reject(ctx context.Context, issuerID id.IssuerID) (*models.Issuer, error)
	Revoke(ctx context.Context, issuerID id.IssuerID) (*models.Issuer, error)
	BindWallet(ctx context.Context, issuerID id.IssuerID, walletAddress string) (*models.Issuer, error)
	ResolveApprovedIssuer(ctx context.Context, contactAddress string) (*models.Issuer, error)
	GetIssuer(ctx context.Context, issuerID id.IssuerID) (*models.Issuer, error)
	ListIssuers(ctx context.Context, status *models.IssuerStatus) ([]*models.Issuer, error)
}

// CertificateCounter reports per-issuer certificate volume for admin
// detail views.
type CertificateCounter interface {
	CountByIssuer(ctx context.Context, issuerID id.IssuerID) (int, error)
}

// Handler wires issuer directory endpoints to the service.
type Handler struct {
	service  Service
	counter  CertificateCounter
	tokens   *jwttoken.JWTService
	tokenTTL time.Duration
	logger   *slog.Logger
}

func New(service Service, counter CertificateCounter, tokens *jwttoken.JWTService, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		counter:  counter,
		tokens:   tokens,
		tokenTTL: 24 * time.Hour,
		logger:   logger,
	}
}

// RegisterPublic mounts the unauthenticated issuer routes.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/issuers/register", h.HandleRegister)
}

// RegisterIssuer mounts routes that require an issuer JWT.
func (h *Handler) RegisterIssuer(r chi.Router) {
	r.Post("/issuers/wallet", h.HandleBindWallet)
}

// RegisterAdmin mounts routes guarded by the admin token.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/issuers", h.HandleList)
	r.Get("/admin/issuers/{issuerID}", h.HandleDetails)
	r.Post("/admin/issuers/{issuerID}/approve", h.decision(h.service.Approve))
	r.Post("/admin/issuers/{issuerID}/reject", h.decision(h.service.Reject))
	r.Post("/admin/issuers/{issuerID}/revoke", h.decision(h.service.Revoke))
	r.Post("/admin/issuers/{issuerID}/token", h.HandleIssueToken)
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	issuer, err := h.service.Register(ctx, req.DisplayName, req.ContactAddress)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "issuer registered",
		"request_id", requestID,
		"issuer_id", issuer.ID,
	)
	httputil.WriteJSON(w, http.StatusCreated, issuer)
}

func (h *Handler) HandleBindWallet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	contact := requestcontext.IssuerContact(ctx)
	if contact == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	issuer, err := h.service.ResolveApprovedIssuer(ctx, contact)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[BindWalletRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	bound, err := h.service.BindWallet(ctx, issuer.ID, req.WalletAddress)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "wallet bound",
		"request_id", requestID,
		"issuer_id", bound.ID,
	)
	httputil.WriteJSON(w, http.StatusOK, bound)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var status *models.IssuerStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := models.IssuerStatus(raw)
		switch s {
		case models.IssuerStatusPending, models.IssuerStatusApproved,
			models.IssuerStatusRejected, models.IssuerStatusRevoked:
			status = &s
		default:
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unknown status filter"))
			return
		}
	}
	issuers, err := h.service.ListIssuers(ctx, status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"issuers": issuers})
}

func (h *Handler) HandleDetails(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	issuerID, err := id.ParseIssuerID(chi.URLParam(r, "issuerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	issuer, err := h.service.GetIssuer(ctx, issuerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	count := 0
	if h.counter != nil {
		if count, err = h.counter.CountByIssuer(ctx, issuerID); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"issuer":            issuer,
		"certificate_count": count,
	})
}

// HandleIssueToken mints an issuer API token. The admin acts as the
// onboarding/identity collaborator here: the registry only trusts
// identities it is handed.
func (h *Handler) HandleIssueToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	issuerID, err := id.ParseIssuerID(chi.URLParam(r, "issuerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	issuer, err := h.service.GetIssuer(ctx, issuerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	token, err := h.tokens.GenerateIssuerToken(issuer.ContactAddress, h.tokenTTL)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_in": int(h.tokenTTL.Seconds()),
	})
}

func (h *Handler) decision(op func(context.Context, id.IssuerID) (*models.Issuer, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		issuerID, err := id.ParseIssuerID(chi.URLParam(r, "issuerID"))
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		issuer, err := op(ctx, issuerID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		h.logger.InfoContext(ctx, "issuer decision applied",
			"request_id", requestcontext.RequestID(ctx),
			"issuer_id", issuer.ID,
			"status", issuer.Status,
		)
		httputil.WriteJSON(w, http.StatusOK, issuer)
	}
}
