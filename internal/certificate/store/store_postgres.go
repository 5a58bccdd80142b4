package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"certledger/internal/certificate/models"
	id "certledger/pkg/domain"
	"certledger/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// Postgres persists certificate records in PostgreSQL.
//
// Schema (see migrations/002_certificates.sql):
//
//	CREATE TABLE certificates (
//	    id               UUID PRIMARY KEY,
//	    student_name     TEXT NOT NULL,
//	    student_id       TEXT NOT NULL,
//	    student_email    TEXT NOT NULL,
//	    course           TEXT NOT NULL,
//	    grade            TEXT NOT NULL,
//	    issue_date       DATE NOT NULL,
//	    issuer_id        UUID NOT NULL REFERENCES issuers (id),
//	    fingerprint      TEXT NOT NULL UNIQUE,
//	    anchor_reference TEXT UNIQUE,
//	    finalized        BOOLEAN NOT NULL DEFAULT FALSE,
//	    finalized_at     TIMESTAMPTZ,
//	    created_at       TIMESTAMPTZ NOT NULL
//	);
//
// The UNIQUE constraint on fingerprint is the write-time uniqueness
// guarantee; the one on anchor_reference prevents two records from
// claiming the same anchor. Descriptive-field immutability is enforced
// in Execute by refusing to include those columns in any UPDATE and by
// diffing the mutated record before the write.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) CreateDraft(ctx context.Context, cert *models.Certificate) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO certificates (id, student_name, student_id, student_email, course, grade,
			issue_date, issuer_id, fingerprint, finalized, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE, $10)
	`, uuid.UUID(cert.ID), cert.StudentName, cert.StudentID, cert.StudentEmail,
		cert.Course, cert.Grade, cert.IssueDate, uuid.UUID(cert.IssuerID),
		cert.Fingerprint, cert.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create draft: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, certID id.CertificateID) (*models.Certificate, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		selectCertificate+` WHERE id = $1`, uuid.UUID(certID)))
}

// FindFinalizedByAnchorRef resolves a record for public verification.
// The finalized filter is part of the query: a draft is never publicly
// resolvable.
func (s *Postgres) FindFinalizedByAnchorRef(ctx context.Context, anchorRef string) (*models.Certificate, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		selectCertificate+` WHERE anchor_reference = $1 AND finalized`, anchorRef))
}

// Execute runs an atomic validate-then-mutate on one record under
// SELECT ... FOR UPDATE. Only the finalization columns are writable;
// a mutation touching any descriptive field is rejected with
// sentinel.ErrImmutable before anything is written.
func (s *Postgres) Execute(ctx context.Context, certID id.CertificateID, validate func(*models.Certificate) error, mutate func(*models.Certificate)) (*models.Certificate, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	cert, err := s.scanOne(tx.QueryRowContext(ctx,
		selectCertificate+` WHERE id = $1 FOR UPDATE`, uuid.UUID(certID)))
	if err != nil {
		return nil, err
	}
	if err := validate(cert); err != nil {
		return nil, err
	}

	next := *cert
	mutate(&next)
	if descriptiveFieldsChanged(cert, &next) {
		return nil, sentinel.ErrImmutable
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE certificates
		SET anchor_reference = NULLIF($2, ''), finalized = $3, finalized_at = $4
		WHERE id = $1
	`, uuid.UUID(next.ID), next.AnchorReference, next.Finalized, next.FinalizedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, sentinel.ErrConflict
		}
		return nil, fmt.Errorf("update certificate: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit certificate update: %w", err)
	}
	return &next, nil
}

func (s *Postgres) ListUnfinalized(ctx context.Context, olderThan time.Time) ([]*models.Certificate, error) {
	rows, err := s.db.QueryContext(ctx,
		selectCertificate+` WHERE NOT finalized AND created_at < $1 ORDER BY created_at`, olderThan)
	if err != nil {
		return nil, fmt.Errorf("list unfinalized: %w", err)
	}
	defer rows.Close()

	var out []*models.Certificate
	for rows.Next() {
		cert, err := scanCertificate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cert)
	}
	return out, rows.Err()
}

func (s *Postgres) CountByIssuer(ctx context.Context, issuerID id.IssuerID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM certificates WHERE issuer_id = $1`, uuid.UUID(issuerID)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count certificates: %w", err)
	}
	return count, nil
}

const selectCertificate = `
	SELECT id, student_name, student_id, student_email, course, grade,
		to_char(issue_date, 'YYYY-MM-DD'), issuer_id, fingerprint,
		COALESCE(anchor_reference, ''), finalized, finalized_at, created_at
	FROM certificates`

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Postgres) scanOne(row *sql.Row) (*models.Certificate, error) {
	cert, err := scanCertificate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return cert, nil
}

func scanCertificate(row rowScanner) (*models.Certificate, error) {
	var cert models.Certificate
	var certID, issuerID uuid.UUID
	var finalizedAt sql.NullTime
	err := row.Scan(&certID, &cert.StudentName, &cert.StudentID, &cert.StudentEmail,
		&cert.Course, &cert.Grade, &cert.IssueDate, &issuerID, &cert.Fingerprint,
		&cert.AnchorReference, &cert.Finalized, &finalizedAt, &cert.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan certificate: %w", err)
	}
	cert.ID = id.CertificateID(certID)
	cert.IssuerID = id.IssuerID(issuerID)
	if finalizedAt.Valid {
		t := finalizedAt.Time
		cert.FinalizedAt = &t
	}
	return &cert, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
