package main

import (
	"log"
	"net/http"

	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"

	"github.com/pysugar/digital-twin/internal/agent"
	"github.com/pysugar/digital-twin/internal/auth/provider"
	"github.com/pysugar/digital-twin/internal/auth/session"
	"github.com/pysugar/digital-twin/internal/auth/store"
	"github.com/pysugar/digital-twin/internal/auth/token"
	"github.com/pysugar/digital-twin/internal/config"
	"github.com/pysugar/digital-twin/internal/db"
	"github.com/pysugar/digital-twin/internal/security"
	"github.com/pysugar/digital-twin/internal/server"
	"github.com/pysugar/digital-twin/internal/tools"
	"github.com/pysugar/digital-twin/internal/version"
)

func main() {
	// Optional .env for local development; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	database, err := db.InitDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	cipher, err := security.NewCipher(cfg.SecretKey, cfg.EncryptionKey)
	if err != nil {
		log.Fatalf("Failed to initialize token cipher: %v", err)
	}

	tokenStore := store.New(database, cipher)
	providers := provider.NewRegistry(
		cfg.GoogleClientID, cfg.GoogleClientSecret,
		cfg.NotionClientID, cfg.NotionClientSecret,
	)
	tokens := token.NewManager(tokenStore, providers, cfg.ExpiryMargin, cfg.ExchangeTimeout)
	sessions := session.New(db.GetSessionSecret(database))

	if cfg.OpenAIAPIKey == "" {
		log.Printf("⚠️ OPENAI_API_KEY is not set, chat requests will fail")
	}
	model := openai.NewClient(cfg.OpenAIAPIKey)

	registry := agent.NewRegistry()
	services := tools.NewServices(tools.NewHTTPClient(cfg.ToolTimeout))
	if err := tools.RegisterAll(registry, services); err != nil {
		log.Fatalf("Failed to register tools: %v", err)
	}
	executor := agent.NewExecutor(registry, tokens, cfg.ToolTimeout)
	loop := agent.NewLoop(model, cfg.OpenAIModel, registry, executor, tokens, cfg.MaxIterations, cfg.ModelTimeout)

	handler := server.Router(server.Deps{
		Config:    cfg,
		DB:        database,
		Providers: providers,
		Tokens:    tokens,
		Sessions:  sessions,
		Loop:      loop,
	})

	addr := cfg.Host + ":" + cfg.Port
	log.Printf("🚀 digital-twin %s listening on http://%s", version.Version, addr)
	log.Printf("🤖 Model: %s (max %d iterations per turn)", cfg.OpenAIModel, cfg.MaxIterations)
	log.Printf("🔌 Providers: google=%v notion=%v",
		cfg.GoogleClientID != "", cfg.NotionClientID != "")
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
