// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tankline Contributors

// Package identity verifies provider-supplied proof of identity and maps it
// to a canonical (provider, subject, display name) triple.
package identity

import (
	"context"

	"github.com/samber/oops"
)

// Provider identifies an external identity source.
type Provider string

// Supported identity providers.
const (
	ProviderDev Provider = "dev" // local test harness, disabled in prod
	ProviderPGS Provider = "pgs" // Play Games Services
)

// Error codes surfaced to the HTTP boundary. The resolver has no untyped
// failure case: every error carries exactly one of these codes.
const (
	CodeInvalidProviderProof   = "INVALID_PROVIDER_PROOF"
	CodeProviderNotAllowed     = "PROVIDER_NOT_ALLOWED"
	CodePGSProviderUnavailable = "PGS_PROVIDER_UNAVAILABLE"
)

// ParseProvider validates a provider name from the wire.
func ParseProvider(s string) (Provider, error) {
	switch Provider(s) {
	case ProviderDev:
		return ProviderDev, nil
	case ProviderPGS:
		return ProviderPGS, nil
	default:
		return "", oops.Code(CodeInvalidProviderProof).
			With("provider", s).
			Errorf("unknown identity provider")
	}
}

// Identity is a verified external identity.
type Identity struct {
	Provider    Provider
	Subject     string // the provider's stable identifier for the player
	DisplayName string // may be empty, never fatal
}

// Resolver verifies a provider-supplied proof and returns the canonical
// identity, or a typed failure.
type Resolver interface {
	Resolve(ctx context.Context, provider Provider, proof string) (*Identity, error)
}
