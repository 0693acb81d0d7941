package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/pysugar/digital-twin/internal/auth/store"
	"github.com/pysugar/digital-twin/internal/auth/token"
	"github.com/pysugar/digital-twin/internal/util"
)

// Executor runs one tool call: validate arguments, resolve the provider
// credential, perform the call with a bounded timeout and normalize the
// outcome into model-facing text.
type Executor struct {
	registry *Registry
	tokens   *token.Manager
	timeout  time.Duration
}

// NewExecutor creates an Executor with the given per-call timeout.
func NewExecutor(registry *Registry, tokens *token.Manager, timeout time.Duration) *Executor {
	return &Executor{registry: registry, tokens: tokens, timeout: timeout}
}

// Execute returns the tool's result payload. The string result is always
// safe to feed back to the model: argument, credential and provider
// failures become structured text the model can react to instead of
// aborting the request. The error return is non-nil only for fatal
// failures (token store breakage) that invalidate the whole request.
func (e *Executor) Execute(ctx context.Context, userID, name string, args map[string]any) (string, error) {
	d, ok := e.registry.Get(name)
	if !ok {
		// Fail closed on names the model invented.
		return fmt.Sprintf("Unknown tool: %s", name), nil
	}

	if err := d.Validate(args); err != nil {
		return fmt.Sprintf("Invalid arguments for %s: %v", name, err), nil
	}

	var cred token.Credential
	if d.Provider != "" {
		var err error
		cred, err = e.tokens.Resolve(ctx, userID, d.Provider)
		if err != nil {
			var storageErr *store.StorageError
			if errors.As(err, &storageErr) {
				return "", err
			}
			return credentialFailureMessage(d.Provider, err), nil
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	result, err := d.Run(callCtx, cred, args)
	if err != nil {
		// Provider-call failures are tool-call-local; retries, if any,
		// are the caller's policy decision.
		return fmt.Sprintf("Error executing %s: %v", name, err), nil
	}

	log.Printf("🔧 Tool %s → %s", name, util.TruncateLog(result, 200))
	return result, nil
}

// credentialFailureMessage turns the resolve error taxonomy into text the
// model can act on, typically by telling the user to (re)connect.
func credentialFailureMessage(providerName string, err error) string {
	display := strings.ToUpper(providerName[:1]) + providerName[1:]
	switch {
	case errors.Is(err, token.ErrNotConnected):
		return fmt.Sprintf("%s is not connected. Ask the user to connect their %s account from the Connections menu, then try again.", display, display)
	case errors.Is(err, token.ErrExpired), errors.Is(err, token.ErrRevoked):
		return fmt.Sprintf("The %s connection has expired or been revoked. Ask the user to reconnect their %s account from the Connections menu.", display, display)
	case errors.Is(err, token.ErrRefreshFailed):
		return fmt.Sprintf("Temporarily unable to refresh the %s credentials. Tell the user this looks transient and suggest trying again shortly.", display)
	default:
		return fmt.Sprintf("Could not access %s: %v", display, err)
	}
}
