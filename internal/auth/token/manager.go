// Package token owns the credential lifecycle: authorization-code
// exchange, expiry-aware refresh and disconnect. It is the only package
// that sees decrypted token material.
package token

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pysugar/digital-twin/internal/auth/provider"
	"github.com/pysugar/digital-twin/internal/auth/store"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// Error taxonomy for Resolve. NotConnected/Expired/Revoked are
// user-actionable and surface to the model as tool-result text;
// RefreshFailed is transient and retryable by the caller. Storage
// failures come through as *store.StorageError and abort the request.
var (
	ErrNotConnected  = errors.New("provider not connected")
	ErrExpired       = errors.New("access token expired and no refresh token available")
	ErrRevoked       = errors.New("authorization revoked by provider")
	ErrRefreshFailed = errors.New("token refresh failed")
)

// Credential is transient decrypted token material for one resolve-to-use
// span. Never persisted, never logged.
type Credential struct {
	Provider    string
	AccessToken string
	ExpiresAt   *time.Time
}

// ExchangeResult carries the outcome of an authorization-code exchange:
// who authorized, and the material to store once the user is known.
type ExchangeResult struct {
	Identity provider.Identity
	Material store.Material
}

// Manager handles the token lifecycle for all providers.
type Manager struct {
	store           *store.Store
	providers       *provider.Registry
	margin          time.Duration
	exchangeTimeout time.Duration

	// refreshGroup serializes refresh per (user, provider): concurrent
	// resolves for the same expired pair share one provider exchange.
	refreshGroup singleflight.Group

	// Indirection points for tests.
	now             func() time.Time
	refreshExchange func(ctx context.Context, p *provider.Provider, refreshToken string) (*oauth2.Token, error)
}

// NewManager creates a Manager over the given store and provider set.
func NewManager(st *store.Store, providers *provider.Registry, margin, exchangeTimeout time.Duration) *Manager {
	m := &Manager{
		store:           st,
		providers:       providers,
		margin:          margin,
		exchangeTimeout: exchangeTimeout,
		now:             time.Now,
	}
	m.refreshExchange = m.doRefreshExchange
	return m
}

// Resolve returns a valid credential for (userID, provider), refreshing
// through the provider exactly once when the stored token is expired or
// inside the safety margin. No retry loop lives here; retry policy
// belongs to the caller.
func (m *Manager) Resolve(ctx context.Context, userID, providerName string) (Credential, error) {
	p, err := m.providers.Get(providerName)
	if err != nil {
		return Credential{}, err
	}

	mat, err := m.store.Get(ctx, userID, providerName)
	if errors.Is(err, store.ErrNotFound) {
		return Credential{}, fmt.Errorf("%w: %s", ErrNotConnected, providerName)
	}
	if err != nil {
		return Credential{}, err
	}

	if m.fresh(mat) {
		return credential(providerName, mat), nil
	}

	if mat.RefreshToken == "" {
		return Credential{}, fmt.Errorf("%w: %s", ErrExpired, providerName)
	}

	key := userID + "|" + providerName
	v, err, shared := m.refreshGroup.Do(key, func() (any, error) {
		return m.refresh(ctx, p, userID)
	})
	if err != nil {
		return Credential{}, err
	}
	if shared {
		log.Printf("🔄 Refresh for %s coalesced with in-flight exchange", providerName)
	}
	return v.(Credential), nil
}

// fresh reports whether the access token is usable: non-expiring, or
// expiring later than now plus the safety margin.
func (m *Manager) fresh(mat store.Material) bool {
	if mat.ExpiresAt == nil {
		return true
	}
	return mat.ExpiresAt.After(m.now().Add(m.margin))
}

// refresh runs inside the single-flight group. It re-reads the stored
// material first: a caller that queued behind a finished refresh must
// observe the freshly stored token instead of refreshing again.
func (m *Manager) refresh(ctx context.Context, p *provider.Provider, userID string) (Credential, error) {
	mat, err := m.store.Get(ctx, userID, p.Name)
	if errors.Is(err, store.ErrNotFound) {
		return Credential{}, fmt.Errorf("%w: %s", ErrNotConnected, p.Name)
	}
	if err != nil {
		return Credential{}, err
	}
	if m.fresh(mat) {
		return credential(p.Name, mat), nil
	}

	log.Printf("⚠️ Token for %s expired or expiring, refreshing...", p.Name)

	newTok, err := m.refreshExchange(ctx, p, mat.RefreshToken)
	if err != nil {
		if isPermanentRefreshError(err) {
			log.Printf("🔒 Refresh rejected for %s, re-authorization required", p.Name)
			return Credential{}, fmt.Errorf("%w: %s: %v", ErrRevoked, p.Name, err)
		}
		return Credential{}, fmt.Errorf("%w: %s: %v", ErrRefreshFailed, p.Name, err)
	}

	mat.AccessToken = newTok.AccessToken
	if !newTok.Expiry.IsZero() {
		expiry := newTok.Expiry
		mat.ExpiresAt = &expiry
	}
	// Persist rotated refresh token if the provider issued a new one
	// (RFC 6749 compliance).
	if p.Policy.RotatesRefreshToken && newTok.RefreshToken != "" && newTok.RefreshToken != mat.RefreshToken {
		log.Printf("🔄 Rotating refresh token for %s", p.Name)
		mat.RefreshToken = newTok.RefreshToken
	}

	// The refresh write is all-or-nothing; a failed write means the new
	// token is lost and the request cannot be trusted.
	if err := m.store.Put(ctx, userID, p.Name, mat); err != nil {
		return Credential{}, err
	}

	log.Printf("✅ Refreshed %s token (expires: %s)", p.Name, newTok.Expiry.Format(time.RFC3339))
	return credential(p.Name, mat), nil
}

// doRefreshExchange performs one refresh-grant exchange against the
// provider, bounded by the exchange timeout.
func (m *Manager) doRefreshExchange(ctx context.Context, p *provider.Provider, refreshToken string) (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, m.exchangeTimeout)
	defer cancel()

	src := p.OAuth("").TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	return src.Token()
}

// Exchange swaps an authorization code for tokens and resolves the
// authorizing identity. The caller decides which user the resulting
// material belongs to before storing it with Connect.
func (m *Manager) Exchange(ctx context.Context, providerName, code, redirectURL string) (*ExchangeResult, error) {
	p, err := m.providers.Get(providerName)
	if err != nil {
		return nil, err
	}
	if !p.Configured() {
		return nil, fmt.Errorf("provider %s is not configured", providerName)
	}

	ctx, cancel := context.WithTimeout(ctx, m.exchangeTimeout)
	defer cancel()

	cfg := p.OAuth(redirectURL)
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed for %s: %w", providerName, err)
	}

	identity, err := p.Identity(ctx, cfg, tok)
	if err != nil {
		return nil, fmt.Errorf("identity lookup failed for %s: %w", providerName, err)
	}

	mat := store.Material{
		AccessToken:    tok.AccessToken,
		Scopes:         p.Scopes,
		ProviderUserID: identity.ProviderUserID,
	}
	if !p.Policy.NonExpiring {
		mat.RefreshToken = tok.RefreshToken
		if !tok.Expiry.IsZero() {
			expiry := tok.Expiry
			mat.ExpiresAt = &expiry
		}
	}

	log.Printf("✅ Exchanged authorization code for %s (token: %s)", providerName, maskToken(tok.AccessToken))
	return &ExchangeResult{Identity: identity, Material: mat}, nil
}

// Connect stores exchanged material for a user, creating or replacing
// the (user, provider) connection.
func (m *Manager) Connect(ctx context.Context, userID, providerName string, res *ExchangeResult) error {
	return m.store.Put(ctx, userID, providerName, res.Material)
}

// Revoke disconnects a provider: best-effort revocation at the provider,
// then local deletion. Revocation-endpoint failure never blocks the
// delete, and revoking an absent connection is a no-op.
func (m *Manager) Revoke(ctx context.Context, userID, providerName string) error {
	p, err := m.providers.Get(providerName)
	if err != nil {
		return err
	}

	mat, err := m.store.Get(ctx, userID, providerName)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if p.RevokeURL != "" {
		if err := revokeAtProvider(ctx, p.RevokeURL, mat.AccessToken); err != nil {
			log.Printf("⚠️ Provider revocation for %s failed (continuing with local delete): %v", providerName, err)
		}
	}

	return m.store.Delete(ctx, userID, providerName)
}

// Connected returns the user's connected provider set.
func (m *Manager) Connected(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return nil, nil
	}
	return m.store.Providers(ctx, userID)
}

func revokeAtProvider(ctx context.Context, revokeURL, accessToken string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	form := url.Values{"token": {accessToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("revocation endpoint returned %s", resp.Status)
	}
	return nil
}

func credential(providerName string, mat store.Material) Credential {
	return Credential{
		Provider:    providerName,
		AccessToken: mat.AccessToken,
		ExpiresAt:   mat.ExpiresAt,
	}
}

func maskToken(t string) string {
	if len(t) < 20 {
		return "***"
	}
	return "..." + t[len(t)-12:]
}

// isPermanentRefreshError distinguishes a revoked or invalid grant from a
// transient network or provider failure.
func isPermanentRefreshError(err error) bool {
	if err == nil {
		return false
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		switch retrieveErr.ErrorCode {
		case "invalid_grant", "invalid_client", "unauthorized_client":
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	permanentMarkers := []string{
		"invalid_grant",
		"invalid_client",
		"unauthorized_client",
		"token has been expired or revoked",
		"revoked",
	}
	for _, marker := range permanentMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
