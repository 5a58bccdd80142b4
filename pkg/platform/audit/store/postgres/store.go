package postgres

import (
	"context"
	"fmt"

	"database/sql"

	"github.com/google/uuid"

	id "certledger/pkg/domain"
	audit "certledger/pkg/platform/audit"
)

// Store persists audit events in PostgreSQL.
//
// Schema (see migrations/003_audit_events.sql):
//
//	CREATE TABLE audit_events (
//	    seq            BIGSERIAL PRIMARY KEY,
//	    category       TEXT NOT NULL,
//	    ts             TIMESTAMPTZ NOT NULL,
//	    issuer_id      UUID,
//	    certificate_id UUID,
//	    action         TEXT NOT NULL,
//	    subject        TEXT NOT NULL DEFAULT '',
//	    reason         TEXT NOT NULL DEFAULT '',
//	    request_id     TEXT NOT NULL DEFAULT ''
//	);
//
// Append-only: no UPDATE or DELETE is ever issued against this table.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	var issuerID, certID any
	if !event.IssuerID.IsZero() {
		issuerID = uuid.UUID(event.IssuerID)
	}
	if !event.CertificateID.IsZero() {
		certID = uuid.UUID(event.CertificateID)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (category, ts, issuer_id, certificate_id, action, subject, reason, request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, string(event.Category), event.Timestamp, issuerID, certID,
		event.Action, event.Subject, event.Reason, event.RequestID)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *Store) ListByIssuer(ctx context.Context, issuerID id.IssuerID) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, ts, issuer_id, COALESCE(certificate_id, '00000000-0000-0000-0000-000000000000'), action, subject, reason, request_id
		FROM audit_events
		WHERE issuer_id = $1
		ORDER BY seq
	`, uuid.UUID(issuerID))
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []audit.Event
	for rows.Next() {
		var e audit.Event
		var category string
		var issuer, cert uuid.UUID
		if err := rows.Scan(&category, &e.Timestamp, &issuer, &cert,
			&e.Action, &e.Subject, &e.Reason, &e.RequestID); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Category = audit.EventCategory(category)
		e.IssuerID = id.IssuerID(issuer)
		e.CertificateID = id.CertificateID(cert)
		out = append(out, e)
	}
	return out, rows.Err()
}
