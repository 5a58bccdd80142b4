package store

import (
	"context"
	"sync"
	"time"

	"certledger/internal/certificate/models"
	id "certledger/pkg/domain"
	"certledger/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded certificate store for tests and local
// development.
//
// It enforces the same invariants as the Postgres store:
//   - fingerprint uniqueness at write time (at most one record per
//     fingerprint, checked under the lock)
//   - descriptive-field immutability: Execute diffs the record after
//     the mutate callback and rejects the whole mutation with
//     sentinel.ErrImmutable if any frozen field changed
//   - finalize check-and-set is atomic: validate and mutate run under
//     one lock, so at most one concurrent finalize wins
//   - append-only: there is no delete operation
type InMemory struct {
	mu            sync.RWMutex
	byID          map[id.CertificateID]*models.Certificate
	byFingerprint map[string]id.CertificateID
	byAnchorRef   map[string]id.CertificateID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:          make(map[id.CertificateID]*models.Certificate),
		byFingerprint: make(map[string]id.CertificateID),
		byAnchorRef:   make(map[string]id.CertificateID),
	}
}

// CreateDraft inserts a new unfinalized record. Returns
// sentinel.ErrConflict if a record with the same fingerprint already
// exists, in any lifecycle state.
func (s *InMemory) CreateDraft(_ context.Context, cert *models.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byFingerprint[cert.Fingerprint]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.byID[cert.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *cert
	s.byID[cert.ID] = &cp
	s.byFingerprint[cert.Fingerprint] = cert.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, certID id.CertificateID) (*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cert, ok := s.byID[certID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *cert
	return &cp, nil
}

// FindFinalizedByAnchorRef resolves a record for public verification.
// Drafts are not publicly resolvable: only finalized records are
// returned.
func (s *InMemory) FindFinalizedByAnchorRef(_ context.Context, anchorRef string) (*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	certID, ok := s.byAnchorRef[anchorRef]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cert := s.byID[certID]
	if !cert.Finalized {
		return nil, sentinel.ErrNotFound
	}
	cp := *cert
	return &cp, nil
}

// Execute runs an atomic validate-then-mutate against one record. The
// lock is held across both callbacks, and the mutation is rejected with
// sentinel.ErrImmutable if it touched any descriptive field. This is
// the only mutation path; finalize goes through it.
func (s *InMemory) Execute(_ context.Context, certID id.CertificateID, validate func(*models.Certificate) error, mutate func(*models.Certificate)) (*models.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cert, ok := s.byID[certID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(cert); err != nil {
		return nil, err
	}

	// Mutate a copy, then diff the frozen fields before committing.
	next := *cert
	mutate(&next)
	if descriptiveFieldsChanged(cert, &next) {
		return nil, sentinel.ErrImmutable
	}
	if next.AnchorReference != cert.AnchorReference && next.AnchorReference != "" {
		if owner, taken := s.byAnchorRef[next.AnchorReference]; taken && owner != certID {
			return nil, sentinel.ErrConflict
		}
	}

	*cert = next
	if cert.AnchorReference != "" {
		s.byAnchorRef[cert.AnchorReference] = certID
	}
	cp := *cert
	return &cp, nil
}

// ListUnfinalized returns drafts created before the cutoff, for
// operational reconciliation of orphaned drafts.
func (s *InMemory) ListUnfinalized(_ context.Context, olderThan time.Time) ([]*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Certificate
	for _, cert := range s.byID {
		if cert.Finalized || !cert.CreatedAt.Before(olderThan) {
			continue
		}
		cp := *cert
		out = append(out, &cp)
	}
	return out, nil
}

func (s *InMemory) CountByIssuer(_ context.Context, issuerID id.IssuerID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, cert := range s.byID {
		if cert.IssuerID == issuerID {
			count++
		}
	}
	return count, nil
}

func descriptiveFieldsChanged(before, after *models.Certificate) bool {
	return before.StudentName != after.StudentName ||
		before.StudentID != after.StudentID ||
		before.StudentEmail != after.StudentEmail ||
		before.Course != after.Course ||
		before.Grade != after.Grade ||
		before.IssueDate != after.IssueDate ||
		before.Fingerprint != after.Fingerprint ||
		before.IssuerID != after.IssuerID ||
		!before.CreatedAt.Equal(after.CreatedAt) ||
		before.ID != after.ID
}
