// Package anchor defines the boundary to the external immutable ledger
// that fingerprints are anchored on.
//
// The ledger is opaque to the core: all it owes us is a write contract
// (Submit) and a read contract (Exists). Anchoring is caller-initiated
// and may take arbitrarily long; callers apply a context timeout and
// surface AnchorTimeout instead of blocking indefinitely. Submitting
// the same fingerprint again is safe: the metadata is immutable, so a
// retry re-derives the identical digest.
package anchor

import (
	"context"
	"errors"

	dErrors "certledger/pkg/domain-errors"
)

// Client writes fingerprints to the ledger and answers existence
// queries against it.
type Client interface {
	// Submit durably records the fingerprint and returns an opaque anchor
	// reference (e.g. a transaction identifier).
	Submit(ctx context.Context, fingerprint string) (string, error)

	// Exists reports whether the fingerprint has been durably recorded.
	Exists(ctx context.Context, fingerprint string) (bool, error)
}

// WrapErr translates anchor client failures into domain errors. Context
// deadline hits become CodeTimeout so callers know a retry with the
// same fingerprint is safe.
func WrapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "anchor operation timed out")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "anchor operation failed")
}
