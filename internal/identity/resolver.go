// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tankline Contributors

package identity

import (
	"context"
	"strings"

	"github.com/samber/oops"
)

// DevDisplayName is the fixed display name assigned to dev-provider identities.
const DevDisplayName = "DEV_PLAYER"

// ProviderResolver dispatches proof verification to the provider named in the
// request. The dev provider is gated on the service stage; PGS verification is
// delegated to a PGSVerifier.
type ProviderResolver struct {
	devAllowed bool
	pgs        PGSVerifier
}

// PGSVerifier exchanges a one-time server auth code for a verified identity.
type PGSVerifier interface {
	Verify(ctx context.Context, serverAuthCode string) (*Identity, error)
}

// NewProviderResolver creates a ProviderResolver.
// devAllowed should be false in hardened/prod mode.
func NewProviderResolver(devAllowed bool, pgs PGSVerifier) *ProviderResolver {
	return &ProviderResolver{
		devAllowed: devAllowed,
		pgs:        pgs,
	}
}

// Resolve verifies proof for the given provider.
func (r *ProviderResolver) Resolve(ctx context.Context, provider Provider, proof string) (*Identity, error) {
	switch provider {
	case ProviderDev:
		if !r.devAllowed {
			return nil, oops.Code(CodeProviderNotAllowed).
				With("provider", string(provider)).
				Errorf("dev provider is disabled in this stage")
		}
		return devIdentity(proof), nil
	case ProviderPGS:
		return r.pgs.Verify(ctx, proof)
	default:
		return nil, oops.Code(CodeInvalidProviderProof).
			With("provider", string(provider)).
			Errorf("unknown identity provider")
	}
}

// devIdentity derives an identity from a dev proof. The subject is the proof
// up to the first ':' separator, so "player-42:anything" and "player-42" name
// the same player.
func devIdentity(proof string) *Identity {
	subject, _, _ := strings.Cut(proof, ":")
	return &Identity{
		Provider:    ProviderDev,
		Subject:     subject,
		DisplayName: DevDisplayName,
	}
}

// Compile-time interface check.
var _ Resolver = (*ProviderResolver)(nil)
