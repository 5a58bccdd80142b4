// Package httptransport assembles the HTTP surface: public
// verification, issuer-authenticated issuance, and admin operations.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	certhandler "certledger/internal/certificate/handler"
	issuerhandler "certledger/internal/issuer/handler"
	jwttoken "certledger/internal/jwt_token"
	"certledger/internal/platform/middleware"
)

// Deps carries everything the router mounts.
type Deps struct {
	Issuers      *issuerhandler.Handler
	Certificates *certhandler.Handler
	Tokens       *jwttoken.JWTService
	AdminToken   string
	Logger       *slog.Logger
}

// NewRouter wires all endpoints with their middleware chains.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestMetadata)

	// Public surface.
	r.Group(func(r chi.Router) {
		deps.Issuers.RegisterPublic(r)
		deps.Certificates.RegisterPublic(r)
	})

	// Issuer surface: requires a valid issuer JWT.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireIssuerToken(deps.Tokens, deps.Logger))
		deps.Issuers.RegisterIssuer(r)
		deps.Certificates.RegisterIssuer(r)
	})

	// Admin surface: shared-secret header.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdminToken(deps.AdminToken, deps.Logger))
		deps.Issuers.RegisterAdmin(r)
		deps.Certificates.RegisterAdmin(r)
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}
