// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tankline Contributors

package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samber/oops"
)

// Google endpoints for the PGS auth-code flow.
const (
	GoogleTokenURL = "https://oauth2.googleapis.com/token"
	PGSPlayerMeURL = "https://games.googleapis.com/games/v1/players/me"
)

// pgsCallTimeout bounds each outbound call so a slow provider cannot stall
// the exchange transaction.
const pgsCallTimeout = 10 * time.Second

// PGSClient verifies Play Games Services server auth codes against Google's
// OAuth token endpoint and player profile API.
type PGSClient struct {
	clientID     string
	clientSecret string
	tokenURL     string
	playerURL    string
	httpClient   *http.Client
}

// PGSOption customizes a PGSClient. Used by tests to point at local servers.
type PGSOption func(*PGSClient)

// WithTokenURL overrides the OAuth token endpoint.
func WithTokenURL(u string) PGSOption {
	return func(c *PGSClient) { c.tokenURL = u }
}

// WithPlayerURL overrides the player profile endpoint.
func WithPlayerURL(u string) PGSOption {
	return func(c *PGSClient) { c.playerURL = u }
}

// WithHTTPClient overrides the outbound HTTP client.
func WithHTTPClient(hc *http.Client) PGSOption {
	return func(c *PGSClient) { c.httpClient = hc }
}

// NewPGSClient creates a PGSClient. Empty credentials are permitted; Verify
// will report the provider as unavailable without making network calls.
func NewPGSClient(clientID, clientSecret string, opts ...PGSOption) *PGSClient {
	c := &PGSClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     GoogleTokenURL,
		playerURL:    PGSPlayerMeURL,
		httpClient:   &http.Client{Timeout: pgsCallTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type pgsTokenResponse struct {
	AccessToken string `json:"access_token"`
}

type pgsPlayerResponse struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
}

// Verify exchanges a one-time server auth code for an access token, then
// fetches the caller's player profile. Both calls must succeed and return
// well-formed payloads; every transport or payload failure is folded into
// INVALID_PROVIDER_PROOF.
func (c *PGSClient) Verify(ctx context.Context, serverAuthCode string) (*Identity, error) {
	if c.clientID == "" || c.clientSecret == "" {
		return nil, oops.Code(CodePGSProviderUnavailable).
			Errorf("pgs web client credentials are not configured")
	}

	accessToken, err := c.exchangeAuthCode(ctx, serverAuthCode)
	if err != nil {
		return nil, err
	}

	return c.fetchPlayer(ctx, accessToken)
}

func (c *PGSClient) exchangeAuthCode(ctx context.Context, serverAuthCode string) (string, error) {
	form := url.Values{
		"code":          {serverAuthCode},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"grant_type":    {"authorization_code"},
		"redirect_uri":  {""},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", oops.Code(CodeInvalidProviderProof).
			With("operation", "build token request").
			Wrap(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", oops.Code(CodeInvalidProviderProof).
			With("operation", "exchange auth code").
			Wrap(err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode != http.StatusOK {
		return "", oops.Code(CodeInvalidProviderProof).
			With("operation", "exchange auth code").
			With("status", resp.StatusCode).
			Errorf("token endpoint rejected auth code")
	}

	var tokenResp pgsTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", oops.Code(CodeInvalidProviderProof).
			With("operation", "decode token response").
			Wrap(err)
	}

	accessToken := strings.TrimSpace(tokenResp.AccessToken)
	if accessToken == "" {
		return "", oops.Code(CodeInvalidProviderProof).
			With("operation", "exchange auth code").
			Errorf("token response missing access_token")
	}

	return accessToken, nil
}

func (c *PGSClient) fetchPlayer(ctx context.Context, accessToken string) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.playerURL, nil)
	if err != nil {
		return nil, oops.Code(CodeInvalidProviderProof).
			With("operation", "build player request").
			Wrap(err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, oops.Code(CodeInvalidProviderProof).
			With("operation", "fetch player profile").
			Wrap(err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode != http.StatusOK {
		return nil, oops.Code(CodeInvalidProviderProof).
			With("operation", "fetch player profile").
			With("status", resp.StatusCode).
			Errorf("player endpoint rejected access token")
	}

	var playerResp pgsPlayerResponse
	if err := json.NewDecoder(resp.Body).Decode(&playerResp); err != nil {
		return nil, oops.Code(CodeInvalidProviderProof).
			With("operation", "decode player response").
			Wrap(err)
	}

	playerID := strings.TrimSpace(playerResp.PlayerID)
	if playerID == "" {
		return nil, oops.Code(CodeInvalidProviderProof).
			With("operation", "fetch player profile").
			Errorf("player response missing playerId")
	}

	return &Identity{
		Provider:    ProviderPGS,
		Subject:     playerID,
		DisplayName: strings.TrimSpace(playerResp.DisplayName),
	}, nil
}

// Compile-time interface check.
var _ PGSVerifier = (*PGSClient)(nil)
