package provider

import (
	"context"

	"golang.org/x/oauth2"
)

// Notion authenticates the token exchange with HTTP Basic auth
// (client_id:client_secret), hence AuthStyleInHeader.
var notionEndpoint = oauth2.Endpoint{
	AuthURL:   "https://api.notion.com/v1/oauth/authorize",
	TokenURL:  "https://api.notion.com/v1/oauth/token",
	AuthStyle: oauth2.AuthStyleInHeader,
}

func newNotion(clientID, clientSecret string) *Provider {
	return &Provider{
		Name: Notion,
		// Notion issues long-lived tokens: no expiry, no refresh token.
		Policy: Policy{
			NonExpiring: true,
		},
		AuthCodeOptions: []oauth2.AuthCodeOption{
			oauth2.SetAuthURLParam("owner", "user"),
		},
		endpoint:     notionEndpoint,
		clientID:     clientID,
		clientSecret: clientSecret,
		identityFn:   notionIdentity,
	}
}

// notionIdentity reads the authorizing user out of the token response
// itself; Notion embeds owner and workspace info there instead of
// exposing a userinfo endpoint.
func notionIdentity(_ context.Context, _ *oauth2.Config, tok *oauth2.Token) (Identity, error) {
	id := Identity{}

	if ws, ok := tok.Extra("workspace_name").(string); ok {
		id.Workspace = ws
	}
	if botID, ok := tok.Extra("bot_id").(string); ok {
		id.ProviderUserID = botID
	}

	owner, ok := tok.Extra("owner").(map[string]any)
	if !ok {
		return id, nil
	}
	if t, _ := owner["type"].(string); t != "user" {
		return id, nil
	}
	user, ok := owner["user"].(map[string]any)
	if !ok {
		return id, nil
	}
	if uid, ok := user["id"].(string); ok && uid != "" {
		id.ProviderUserID = uid
	}
	if name, ok := user["name"].(string); ok {
		id.Name = name
	}
	if person, ok := user["person"].(map[string]any); ok {
		if email, ok := person["email"].(string); ok {
			id.Email = email
		}
	}
	return id, nil
}
