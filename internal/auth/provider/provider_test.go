package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/oauth2"
)

func TestRegistryFailsClosed(t *testing.T) {
	r := NewRegistry("gid", "gsecret", "nid", "nsecret")
	if _, err := r.Get("github"); err == nil {
		t.Fatal("unknown provider accepted")
	}
	names := r.Names()
	if len(names) != 2 || names[0] != Google || names[1] != Notion {
		t.Fatalf("unexpected provider set: %v", names)
	}
}

func TestConfigured(t *testing.T) {
	r := NewRegistry("gid", "gsecret", "", "")
	g, _ := r.Get(Google)
	if !g.Configured() {
		t.Fatal("google should be configured")
	}
	n, _ := r.Get(Notion)
	if n.Configured() {
		t.Fatal("notion without credentials should not be configured")
	}
}

func TestGooglePolicyAndScopes(t *testing.T) {
	r := NewRegistry("gid", "gsecret", "", "")
	g, _ := r.Get(Google)
	if !g.Policy.RotatesRefreshToken || g.Policy.NonExpiring {
		t.Fatalf("unexpected google policy: %+v", g.Policy)
	}
	if g.RevokeURL == "" {
		t.Fatal("google must carry a revocation endpoint")
	}
	var hasCalendar, hasGmail bool
	for _, s := range g.Scopes {
		if s == "https://www.googleapis.com/auth/calendar.events" {
			hasCalendar = true
		}
		if s == "https://www.googleapis.com/auth/gmail.readonly" {
			hasGmail = true
		}
	}
	if !hasCalendar || !hasGmail {
		t.Fatalf("tool scopes missing: %v", g.Scopes)
	}
}

func TestNotionPolicy(t *testing.T) {
	r := NewRegistry("", "", "nid", "nsecret")
	n, _ := r.Get(Notion)
	if !n.Policy.NonExpiring || n.Policy.RotatesRefreshToken {
		t.Fatalf("unexpected notion policy: %+v", n.Policy)
	}
	if n.RevokeURL != "" {
		t.Fatal("notion has no revocation endpoint")
	}
}

func TestGoogleIdentity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"g-123","email":"alice@example.com","name":"Alice","picture":"https://pic"}`))
	}))
	defer srv.Close()
	orig := googleUserInfoURL
	googleUserInfoURL = srv.URL
	defer func() { googleUserInfoURL = orig }()

	r := NewRegistry("gid", "gsecret", "", "")
	g, _ := r.Get(Google)
	id, err := g.Identity(context.Background(), g.OAuth(""), &oauth2.Token{AccessToken: "tok"})
	if err != nil {
		t.Fatalf("identity: %v", err)
	}
	if id.ProviderUserID != "g-123" || id.Email != "alice@example.com" || id.Name != "Alice" {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestNotionIdentityFromTokenExtras(t *testing.T) {
	tok := (&oauth2.Token{AccessToken: "tok"}).WithExtra(map[string]any{
		"workspace_name": "Acme Workspace",
		"bot_id":         "bot-1",
		"owner": map[string]any{
			"type": "user",
			"user": map[string]any{
				"id":   "n-user-1",
				"name": "Alice",
				"person": map[string]any{
					"email": "alice@example.com",
				},
			},
		},
	})

	r := NewRegistry("", "", "nid", "nsecret")
	n, _ := r.Get(Notion)
	id, err := n.Identity(context.Background(), n.OAuth(""), tok)
	if err != nil {
		t.Fatalf("identity: %v", err)
	}
	if id.ProviderUserID != "n-user-1" || id.Name != "Alice" || id.Workspace != "Acme Workspace" {
		t.Fatalf("unexpected identity: %+v", id)
	}
	if id.Email != "alice@example.com" {
		t.Fatalf("email not extracted: %+v", id)
	}
}

func TestNotionIdentityBotFallback(t *testing.T) {
	tok := (&oauth2.Token{AccessToken: "tok"}).WithExtra(map[string]any{
		"bot_id": "bot-1",
		"owner":  map[string]any{"type": "workspace"},
	})

	r := NewRegistry("", "", "nid", "nsecret")
	n, _ := r.Get(Notion)
	id, err := n.Identity(context.Background(), n.OAuth(""), tok)
	if err != nil {
		t.Fatalf("identity: %v", err)
	}
	if id.ProviderUserID != "bot-1" {
		t.Fatalf("bot fallback missing: %+v", id)
	}
}
