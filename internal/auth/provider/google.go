package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
)

// googleUserInfoURL is a package var so tests can point it at a fake server.
var googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// Scopes cover the calendar and mail tools plus basic identity.
var googleScopes = []string{
	"openid",
	"email",
	"profile",
	"https://www.googleapis.com/auth/calendar.readonly",
	"https://www.googleapis.com/auth/calendar.events",
	"https://www.googleapis.com/auth/gmail.readonly",
}

func newGoogle(clientID, clientSecret string) *Provider {
	return &Provider{
		Name: Google,
		Policy: Policy{
			RotatesRefreshToken: true,
		},
		Scopes:    googleScopes,
		RevokeURL: "https://oauth2.googleapis.com/revoke",
		// offline + consent forces Google to issue a refresh token even on
		// re-authorization.
		AuthCodeOptions: []oauth2.AuthCodeOption{
			oauth2.AccessTypeOffline,
			oauth2.ApprovalForce,
		},
		endpoint:     googleoauth.Endpoint,
		clientID:     clientID,
		clientSecret: clientSecret,
		identityFn:   googleIdentity,
	}
}

func googleIdentity(ctx context.Context, cfg *oauth2.Config, tok *oauth2.Token) (Identity, error) {
	client := cfg.Client(ctx, tok)
	resp, err := client.Get(googleUserInfoURL)
	if err != nil {
		return Identity{}, fmt.Errorf("fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Identity{}, fmt.Errorf("user info request failed: %s", resp.Status)
	}

	var info struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return Identity{}, fmt.Errorf("decode user info: %w", err)
	}

	return Identity{
		ProviderUserID: info.ID,
		Email:          info.Email,
		Name:           info.Name,
		Picture:        info.Picture,
	}, nil
}
