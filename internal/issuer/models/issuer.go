package models

import (
	"regexp"
	"strings"
	"time"

	id "certledger/pkg/domain"
	dErrors "certledger/pkg/domain-errors"
)

// IssuerStatus is the approval state of an issuing institution.
type IssuerStatus string

const (
	IssuerStatusPending  IssuerStatus = "pending"
	IssuerStatusApproved IssuerStatus = "approved"
	IssuerStatusRejected IssuerStatus = "rejected"
	IssuerStatusRevoked  IssuerStatus = "revoked"
)

// CanTransitionTo reports whether the status machine allows the move.
// Allowed: pending -> approved | rejected, approved -> revoked.
// Rejected and revoked are terminal.
func (s IssuerStatus) CanTransitionTo(target IssuerStatus) bool {
	switch s {
	case IssuerStatusPending:
		return target == IssuerStatusApproved || target == IssuerStatusRejected
	case IssuerStatusApproved:
		return target == IssuerStatusRevoked
	default:
		return false
	}
}

// walletPattern matches an EVM-style address: 0x followed by 40 hex
// characters.
var walletPattern = regexp.MustCompile(`^0x[0-9a-f]{40}$`)

// NormalizeWallet lowercases and validates a wallet address.
func NormalizeWallet(addr string) (string, error) {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if addr == "" {
		return "", dErrors.New(dErrors.CodeValidation, "wallet address is required")
	}
	if !walletPattern.MatchString(addr) {
		return "", dErrors.New(dErrors.CodeValidation, "invalid wallet address format")
	}
	return addr, nil
}

// Issuer is the aggregate root for an issuing institution.
//
// Invariants:
//   - DisplayName and ContactAddress are non-empty; ContactAddress is
//     stored lowercased and is unique across issuers
//   - Status follows the machine in IssuerStatus.CanTransitionTo
//   - WalletAddress is set at most once (set-once binding) and only
//     while the issuer is approved
//   - CreatedAt is immutable after construction
type Issuer struct {
	ID             id.IssuerID  `json:"id"`
	DisplayName    string       `json:"display_name"`
	ContactAddress string       `json:"contact_address"`
	WalletAddress  string       `json:"wallet_address,omitempty"`
	Status         IssuerStatus `json:"status"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// IsApproved reports whether the issuer is currently entitled to issue
// certificates.
func (i *Issuer) IsApproved() bool {
	return i.Status == IssuerStatusApproved
}

// CanApprove checks the pending -> approved transition.
func (i *Issuer) CanApprove() error {
	if !i.Status.CanTransitionTo(IssuerStatusApproved) {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "issuer is %s, only pending issuers can be approved", i.Status)
	}
	return nil
}

// ApplyApproval transitions the issuer to approved. Call CanApprove
// first.
func (i *Issuer) ApplyApproval(now time.Time) {
	i.Status = IssuerStatusApproved
	i.UpdatedAt = now
}

// CanReject checks the pending -> rejected transition.
func (i *Issuer) CanReject() error {
	if !i.Status.CanTransitionTo(IssuerStatusRejected) {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "issuer is %s, only pending issuers can be rejected", i.Status)
	}
	return nil
}

// ApplyRejection transitions the issuer to rejected.
func (i *Issuer) ApplyRejection(now time.Time) {
	i.Status = IssuerStatusRejected
	i.UpdatedAt = now
}

// CanRevoke checks the approved -> revoked transition.
func (i *Issuer) CanRevoke() error {
	if !i.Status.CanTransitionTo(IssuerStatusRevoked) {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "issuer is %s, only approved issuers can be revoked", i.Status)
	}
	return nil
}

// ApplyRevocation transitions the issuer to revoked. Certificates
// already anchored keep their records; verification reports them as
// not trusted from this point on.
func (i *Issuer) ApplyRevocation(now time.Time) {
	i.Status = IssuerStatusRevoked
	i.UpdatedAt = now
}

// CanBindWallet checks the set-once wallet binding rule.
func (i *Issuer) CanBindWallet() error {
	if !i.IsApproved() {
		return dErrors.New(dErrors.CodeForbidden, "only approved issuers can bind a wallet")
	}
	if i.WalletAddress != "" {
		return dErrors.New(dErrors.CodeConflict, "wallet is already bound for this issuer")
	}
	return nil
}

// ApplyWalletBinding records the wallet address. The address must
// already be normalized via NormalizeWallet.
func (i *Issuer) ApplyWalletBinding(wallet string, now time.Time) {
	i.WalletAddress = wallet
	i.UpdatedAt = now
}

// NewIssuer constructs a pending issuer registration.
func NewIssuer(issuerID id.IssuerID, displayName, contactAddress string, now time.Time) (*Issuer, error) {
	displayName = strings.TrimSpace(displayName)
	contactAddress = strings.ToLower(strings.TrimSpace(contactAddress))
	if displayName == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "display name cannot be empty")
	}
	if len(displayName) > 128 {
		return nil, dErrors.New(dErrors.CodeValidation, "display name must be 128 characters or less")
	}
	if contactAddress == "" || !strings.Contains(contactAddress, "@") {
		return nil, dErrors.New(dErrors.CodeValidation, "contact address must be a valid email")
	}
	return &Issuer{
		ID:             issuerID,
		DisplayName:    displayName,
		ContactAddress: contactAddress,
		Status:         IssuerStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}
