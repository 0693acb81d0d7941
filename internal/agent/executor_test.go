package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pysugar/digital-twin/internal/auth/store"
	"github.com/pysugar/digital-twin/internal/auth/token"
)

func TestExecuteUnknownToolFailsClosed(t *testing.T) {
	f := newLoopFixture(t)
	result, err := f.executor.Execute(context.Background(), "u1", "made_up_tool", nil)
	if err != nil {
		t.Fatalf("unknown tool must not error: %v", err)
	}
	if result != "Unknown tool: made_up_tool" {
		t.Fatalf("unexpected result: %q", result)
	}
}

func TestExecuteInvalidArguments(t *testing.T) {
	f := newLoopFixture(t)
	f.connectGoogle(t)
	result, err := f.executor.Execute(context.Background(), "u1", "echo_tool", map[string]any{})
	if err != nil {
		t.Fatalf("invalid args must not error: %v", err)
	}
	if !strings.Contains(result, "Invalid arguments for echo_tool") {
		t.Fatalf("unexpected result: %q", result)
	}
}

func TestExecuteNotConnectedBecomesMessage(t *testing.T) {
	f := newLoopFixture(t)
	result, err := f.executor.Execute(context.Background(), "u1", "echo_tool", map[string]any{"text": "hi"})
	if err != nil {
		t.Fatalf("credential failure must not error: %v", err)
	}
	if !strings.Contains(result, "not connected") || !strings.Contains(result, "Google") {
		t.Fatalf("unexpected result: %q", result)
	}
}

func TestExecuteToolErrorBecomesMessage(t *testing.T) {
	f := newLoopFixture(t)
	f.connectGoogle(t)
	failing := &Descriptor{
		Name:     "failing_tool",
		Provider: "google",
		Schema:   []byte(`{"type":"object"}`),
		Run: func(ctx context.Context, cred token.Credential, args map[string]any) (string, error) {
			return "", errors.New("API error 503 Service Unavailable")
		},
	}
	if err := f.registry.Register(failing); err != nil {
		t.Fatalf("register: %v", err)
	}

	result, err := f.executor.Execute(context.Background(), "u1", "failing_tool", nil)
	if err != nil {
		t.Fatalf("tool failure must not error: %v", err)
	}
	if !strings.Contains(result, "Error executing failing_tool") {
		t.Fatalf("unexpected result: %q", result)
	}
}

func TestExecutePassesResolvedCredential(t *testing.T) {
	f := newLoopFixture(t)
	f.connectGoogle(t)
	var got token.Credential
	spy := &Descriptor{
		Name:     "spy_tool",
		Provider: "google",
		Schema:   []byte(`{"type":"object"}`),
		Run: func(ctx context.Context, cred token.Credential, args map[string]any) (string, error) {
			got = cred
			return "done", nil
		},
	}
	if err := f.registry.Register(spy); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := f.executor.Execute(context.Background(), "u1", "spy_tool", nil); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got.AccessToken != "tok" || got.Provider != "google" {
		t.Fatalf("credential not threaded through: %+v", got)
	}
}

func TestExecuteStorageErrorIsFatal(t *testing.T) {
	f := newLoopFixture(t)
	f.connectGoogle(t)
	// Break the store out from under the executor.
	if err := f.db.Migrator().DropTable("connections"); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	_, err := f.executor.Execute(context.Background(), "u1", "echo_tool", map[string]any{"text": "hi"})
	if err == nil {
		t.Fatal("storage breakage must surface as an error")
	}
	var storageErr *store.StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected StorageError, got %v", err)
	}
}
