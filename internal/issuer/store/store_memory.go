package store

import (
	"context"
	"strings"
	"sync"

	"certledger/internal/issuer/models"
	id "certledger/pkg/domain"
	"certledger/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded issuer store for tests and local
// development. Semantics mirror the Postgres store: callers get copies,
// never internal pointers.
type InMemory struct {
	mu        sync.RWMutex
	byID      map[id.IssuerID]*models.Issuer
	byContact map[string]id.IssuerID
	byWallet  map[string]id.IssuerID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:      make(map[id.IssuerID]*models.Issuer),
		byContact: make(map[string]id.IssuerID),
		byWallet:  make(map[string]id.IssuerID),
	}
}

// CreateIfContactAvailable inserts the issuer unless its contact
// address is already registered. Returns sentinel.ErrAlreadyUsed on a
// duplicate contact.
func (s *InMemory) CreateIfContactAvailable(_ context.Context, issuer *models.Issuer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	contact := strings.ToLower(issuer.ContactAddress)
	if _, exists := s.byContact[contact]; exists {
		return sentinel.ErrAlreadyUsed
	}
	cp := *issuer
	s.byID[issuer.ID] = &cp
	s.byContact[contact] = issuer.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, issuerID id.IssuerID) (*models.Issuer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	issuer, ok := s.byID[issuerID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *issuer
	return &cp, nil
}

func (s *InMemory) FindByContact(_ context.Context, contact string) (*models.Issuer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	issuerID, ok := s.byContact[strings.ToLower(contact)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.byID[issuerID]
	return &cp, nil
}

// Execute runs an atomic validate-then-mutate against one issuer. The
// lock is held across both callbacks so concurrent transitions
// serialize.
func (s *InMemory) Execute(_ context.Context, issuerID id.IssuerID, validate func(*models.Issuer) error, mutate func(*models.Issuer)) (*models.Issuer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	issuer, ok := s.byID[issuerID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(issuer); err != nil {
		return nil, err
	}
	mutate(issuer)
	cp := *issuer
	return &cp, nil
}

// BindWallet atomically binds a wallet to an issuer. Global wallet
// uniqueness and the validate callback both run under one lock.
// Returns sentinel.ErrNotFound for an unknown issuer and
// sentinel.ErrAlreadyUsed when the wallet belongs to another issuer;
// the set-once rule itself is the validate callback's job.
func (s *InMemory) BindWallet(_ context.Context, issuerID id.IssuerID, wallet string, validate func(*models.Issuer) error, mutate func(*models.Issuer)) (*models.Issuer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	issuer, ok := s.byID[issuerID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if owner, taken := s.byWallet[wallet]; taken && owner != issuerID {
		return nil, sentinel.ErrAlreadyUsed
	}
	if err := validate(issuer); err != nil {
		return nil, err
	}
	mutate(issuer)
	s.byWallet[wallet] = issuerID
	cp := *issuer
	return &cp, nil
}

// List returns issuers, optionally filtered by status.
func (s *InMemory) List(_ context.Context, status *models.IssuerStatus) ([]*models.Issuer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Issuer, 0, len(s.byID))
	for _, issuer := range s.byID {
		if status != nil && issuer.Status != *status {
			continue
		}
		cp := *issuer
		out = append(out, &cp)
	}
	return out, nil
}
