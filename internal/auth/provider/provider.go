// Package provider declares the closed set of external services a user
// can connect. Each provider carries its OAuth2 configuration, identity
// lookup and token-lifecycle policy; everything above this package is
// provider-agnostic.
package provider

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// Well-known provider names.
const (
	Google = "google"
	Notion = "notion"
)

// Policy captures how a provider's tokens behave. Refresh-token rotation
// is provider-dependent, so it is a flag here rather than an assumption
// baked into the refresh path.
type Policy struct {
	// RotatesRefreshToken: the provider may issue a new refresh token on
	// refresh, which must replace the stored one.
	RotatesRefreshToken bool
	// NonExpiring: access tokens never expire and no refresh token is
	// issued (connections are stored with a nil expiry).
	NonExpiring bool
}

// Identity describes who authorized the grant, as reported by the provider.
type Identity struct {
	ProviderUserID string
	Email          string
	Name           string
	Picture        string
	Workspace      string // Notion workspace name, empty elsewhere
}

// Provider is one entry in the closed provider set.
type Provider struct {
	Name            string
	Policy          Policy
	Scopes          []string
	RevokeURL       string // empty when the provider has no revocation endpoint
	AuthCodeOptions []oauth2.AuthCodeOption

	endpoint     oauth2.Endpoint
	clientID     string
	clientSecret string
	identityFn   func(ctx context.Context, cfg *oauth2.Config, tok *oauth2.Token) (Identity, error)
}

// Configured reports whether client credentials are set for this provider.
func (p *Provider) Configured() bool {
	return p.clientID != "" && p.clientSecret != ""
}

// OAuth returns the oauth2 config bound to the given callback URL.
func (p *Provider) OAuth(redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.clientID,
		ClientSecret: p.clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       p.Scopes,
		Endpoint:     p.endpoint,
	}
}

// Identity resolves the authorizing user behind a freshly exchanged token.
func (p *Provider) Identity(ctx context.Context, cfg *oauth2.Config, tok *oauth2.Token) (Identity, error) {
	return p.identityFn(ctx, cfg, tok)
}

// Registry holds the closed provider set.
type Registry struct {
	providers map[string]*Provider
	names     []string
}

// NewRegistry builds the provider set from client credentials.
func NewRegistry(googleID, googleSecret, notionID, notionSecret string) *Registry {
	r := &Registry{providers: make(map[string]*Provider)}
	r.add(newGoogle(googleID, googleSecret))
	r.add(newNotion(notionID, notionSecret))
	return r
}

func (r *Registry) add(p *Provider) {
	r.providers[p.Name] = p
	r.names = append(r.names, p.Name)
}

// Get returns the named provider. Unknown names fail closed.
func (r *Registry) Get(name string) (*Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
	return p, nil
}

// Names lists the provider set in registration order.
func (r *Registry) Names() []string {
	return r.names
}
