package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"certledger/internal/issuer/models"
	id "certledger/pkg/domain"
	"certledger/pkg/platform/sentinel"
)

// uniqueViolation is the PostgreSQL error code for unique constraint
// violations.
const uniqueViolation = "23505"

// Postgres persists issuers in PostgreSQL.
//
// Schema (see migrations/001_issuers.sql):
//
//	CREATE TABLE issuers (
//	    id              UUID PRIMARY KEY,
//	    display_name    TEXT NOT NULL,
//	    contact_address TEXT NOT NULL UNIQUE,
//	    wallet_address  TEXT UNIQUE,
//	    status          TEXT NOT NULL,
//	    created_at      TIMESTAMPTZ NOT NULL,
//	    updated_at      TIMESTAMPTZ NOT NULL
//	);
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) CreateIfContactAvailable(ctx context.Context, issuer *models.Issuer) error {
	query := `
		INSERT INTO issuers (id, display_name, contact_address, wallet_address, status, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(issuer.ID), issuer.DisplayName, strings.ToLower(issuer.ContactAddress),
		issuer.WalletAddress, string(issuer.Status), issuer.CreatedAt, issuer.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("create issuer: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, issuerID id.IssuerID) (*models.Issuer, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		selectIssuer+` WHERE id = $1`, uuid.UUID(issuerID)))
}

func (s *Postgres) FindByContact(ctx context.Context, contact string) (*models.Issuer, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		selectIssuer+` WHERE contact_address = $1`, strings.ToLower(contact)))
}

// Execute runs an atomic validate-then-mutate against one issuer using
// SELECT ... FOR UPDATE so concurrent transitions serialize on the row.
func (s *Postgres) Execute(ctx context.Context, issuerID id.IssuerID, validate func(*models.Issuer) error, mutate func(*models.Issuer)) (*models.Issuer, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	issuer, err := s.scanOne(tx.QueryRowContext(ctx,
		selectIssuer+` WHERE id = $1 FOR UPDATE`, uuid.UUID(issuerID)))
	if err != nil {
		return nil, err
	}
	if err := validate(issuer); err != nil {
		return nil, err
	}
	mutate(issuer)

	_, err = tx.ExecContext(ctx, `
		UPDATE issuers
		SET wallet_address = NULLIF($2, ''), status = $3, updated_at = $4
		WHERE id = $1
	`, uuid.UUID(issuer.ID), issuer.WalletAddress, string(issuer.Status), issuer.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, sentinel.ErrAlreadyUsed
		}
		return nil, fmt.Errorf("update issuer: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit issuer update: %w", err)
	}
	return issuer, nil
}

// BindWallet binds a wallet via Execute; the UNIQUE index on
// wallet_address enforces global uniqueness, surfaced as
// sentinel.ErrAlreadyUsed.
func (s *Postgres) BindWallet(ctx context.Context, issuerID id.IssuerID, wallet string, validate func(*models.Issuer) error, mutate func(*models.Issuer)) (*models.Issuer, error) {
	return s.Execute(ctx, issuerID, validate, mutate)
}

func (s *Postgres) List(ctx context.Context, status *models.IssuerStatus) ([]*models.Issuer, error) {
	query := selectIssuer
	args := []any{}
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, string(*status))
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list issuers: %w", err)
	}
	defer rows.Close()

	var out []*models.Issuer
	for rows.Next() {
		issuer, err := scanIssuer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, issuer)
	}
	return out, rows.Err()
}

const selectIssuer = `
	SELECT id, display_name, contact_address, COALESCE(wallet_address, ''), status, created_at, updated_at
	FROM issuers`

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Postgres) scanOne(row *sql.Row) (*models.Issuer, error) {
	issuer, err := scanIssuer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return issuer, nil
}

func scanIssuer(row rowScanner) (*models.Issuer, error) {
	var issuer models.Issuer
	var issuerID uuid.UUID
	var status string
	if err := row.Scan(&issuerID, &issuer.DisplayName, &issuer.ContactAddress,
		&issuer.WalletAddress, &status, &issuer.CreatedAt, &issuer.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan issuer: %w", err)
	}
	issuer.ID = id.IssuerID(issuerID)
	issuer.Status = models.IssuerStatus(status)
	return &issuer, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
