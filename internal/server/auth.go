package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pysugar/digital-twin/internal/auth/provider"
	"github.com/pysugar/digital-twin/internal/auth/session"
	"github.com/pysugar/digital-twin/internal/auth/token"
	"github.com/pysugar/digital-twin/internal/config"
	"github.com/pysugar/digital-twin/internal/db/models"
	"gorm.io/gorm"
)

func callbackURL(cfg *config.Config, providerName string) string {
	return cfg.BackendURL + "/auth/" + providerName + "/callback"
}

// LoginHandler starts the OAuth flow for the provider in the URL. If the
// requester already has a session, the new connection links to that
// account instead of creating a fresh one.
func LoginHandler(cfg *config.Config, providers *provider.Registry, sessions *session.Sessions, states *stateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "provider")
		p, err := providers.Get(name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		if !p.Configured() {
			http.Error(w, fmt.Sprintf("%s is not configured. Set the client ID and secret in the environment.", name), http.StatusInternalServerError)
			return
		}

		existingUser := sessions.UserID(r)
		if existingUser != "" {
			log.Printf("🔗 Existing session found, will link %s to user %s", name, existingUser)
		}
		state := states.Issue(existingUser)

		authURL := p.OAuth(callbackURL(cfg, name)).AuthCodeURL(state, p.AuthCodeOptions...)
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// CallbackHandler completes the OAuth flow: state check, code exchange,
// user resolution and session issuance. Provider-reported errors bounce
// back to the frontend instead of rendering a backend error page.
func CallbackHandler(cfg *config.Config, database *gorm.DB, tokens *token.Manager, sessions *session.Sessions, states *stateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "provider")
		q := r.URL.Query()

		if provErr := q.Get("error"); provErr != "" {
			http.Redirect(w, r, cfg.FrontendURL+"?error="+url.QueryEscape(provErr), http.StatusFound)
			return
		}

		code, state := q.Get("code"), q.Get("state")
		if code == "" || state == "" {
			http.Error(w, "Missing code or state", http.StatusBadRequest)
			return
		}
		linkedUser, ok := states.Consume(state)
		if !ok {
			http.Error(w, "Invalid state", http.StatusBadRequest)
			return
		}

		res, err := tokens.Exchange(r.Context(), name, code, callbackURL(cfg, name))
		if err != nil {
			log.Printf("❌ OAuth callback for %s failed: %v", name, err)
			http.Error(w, fmt.Sprintf("Failed to get tokens: %v", err), http.StatusBadRequest)
			return
		}

		user, err := findOrCreateUser(database, linkedUser, res.Identity)
		if err != nil {
			http.Error(w, "Failed to resolve user", http.StatusInternalServerError)
			return
		}

		if err := tokens.Connect(r.Context(), user.ID, name, res); err != nil {
			log.Printf("❌ Storing %s connection failed: %v", name, err)
			http.Error(w, "Failed to store connection", http.StatusInternalServerError)
			return
		}
		log.Printf("✅ Connected %s for user %s (%s)", name, user.ID, res.Identity.Email)

		sessionToken, err := sessions.Issue(user.ID)
		if err != nil {
			http.Error(w, "Failed to create session", http.StatusInternalServerError)
			return
		}
		sessions.SetCookie(w, sessionToken)
		http.Redirect(w, r, cfg.FrontendURL, http.StatusFound)
	}
}

// findOrCreateUser attaches the connection to the already-signed-in user
// when there is one; account resolution never falls back to email lookup.
func findOrCreateUser(database *gorm.DB, linkedUser string, id provider.Identity) (*models.User, error) {
	if linkedUser != "" {
		var user models.User
		err := database.Where("id = ?", linkedUser).First(&user).Error
		if err == nil {
			return &user, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	user := models.User{
		ID:      uuid.New().String(),
		Name:    id.Name,
		Picture: id.Picture,
	}
	if err := database.Create(&user).Error; err != nil {
		return nil, err
	}
	log.Printf("👤 Created new user %s", user.ID)
	return &user, nil
}

// MeHandler returns the authenticated user and their connected services.
func MeHandler(database *gorm.DB, tokens *token.Manager, sessions *session.Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := sessions.UserID(r)
		if userID == "" {
			http.Error(w, "Not authenticated", http.StatusUnauthorized)
			return
		}

		var user models.User
		if err := database.Where("id = ?", userID).First(&user).Error; err != nil {
			http.Error(w, "User not found", http.StatusUnauthorized)
			return
		}

		connected, err := tokens.Connected(r.Context(), userID)
		if err != nil {
			http.Error(w, "Failed to list connections", http.StatusInternalServerError)
			return
		}
		if connected == nil {
			connected = []string{}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":                 user.ID,
			"name":               user.Name,
			"picture":            user.Picture,
			"connected_services": connected,
		})
	}
}

// LogoutHandler clears the session cookie.
func LogoutHandler(sessions *session.Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions.ClearCookie(w)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Logged out"})
	}
}

// DisconnectHandler revokes and removes one provider connection. When the
// last connection goes, the orphaned user record goes with it and the
// session is cleared. Disconnecting an absent provider succeeds.
func DisconnectHandler(database *gorm.DB, tokens *token.Manager, sessions *session.Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := sessions.UserID(r)
		if userID == "" {
			http.Error(w, "Not authenticated", http.StatusUnauthorized)
			return
		}
		name := chi.URLParam(r, "provider")

		if err := tokens.Revoke(r.Context(), userID, name); err != nil {
			log.Printf("❌ Disconnect %s for user %s failed: %v", name, userID, err)
			http.Error(w, "Failed to disconnect", http.StatusInternalServerError)
			return
		}

		remaining, err := tokens.Connected(r.Context(), userID)
		if err != nil {
			http.Error(w, "Failed to list connections", http.StatusInternalServerError)
			return
		}
		if len(remaining) == 0 {
			if err := database.Where("id = ?", userID).Delete(&models.User{}).Error; err != nil {
				log.Printf("⚠️ Deleting orphaned user %s failed: %v", userID, err)
			}
			sessions.ClearCookie(w)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"message": fmt.Sprintf("Disconnected from %s", name),
		})
	}
}
