package handler

import (
	"strings"

	dErrors "certledger/pkg/domain-errors"
)

// RegisterRequest is the payload for issuer registration.
type RegisterRequest struct {
	DisplayName    string `json:"display_name"`
	ContactAddress string `json:"contact_address"`
}

func (r *RegisterRequest) Validate() error {
	if strings.TrimSpace(r.DisplayName) == "" {
		return dErrors.New(dErrors.CodeBadRequest, "display_name is required")
	}
	if strings.TrimSpace(r.ContactAddress) == "" {
		return dErrors.New(dErrors.CodeBadRequest, "contact_address is required")
	}
	return nil
}

// BindWalletRequest is the payload for the set-once wallet binding.
type BindWalletRequest struct {
	WalletAddress string `json:"wallet_address"`
}

func (r *BindWalletRequest) Validate() error {
	if strings.TrimSpace(r.WalletAddress) == "" {
		return dErrors.New(dErrors.CodeBadRequest, "wallet_address is required")
	}
	return nil
}
