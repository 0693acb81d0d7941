package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pysugar/digital-twin/internal/agent"
	"github.com/pysugar/digital-twin/internal/auth/provider"
	"github.com/pysugar/digital-twin/internal/auth/token"
)

func TestRegisterAllToolSet(t *testing.T) {
	reg := agent.NewRegistry()
	if err := RegisterAll(reg, NewServices(NewHTTPClient(time.Second))); err != nil {
		t.Fatalf("register all: %v", err)
	}

	all := reg.Available([]string{provider.Google, provider.Notion})
	if len(all) != 15 {
		t.Fatalf("expected 15 tools, got %d", len(all))
	}

	googleOnly := reg.Available([]string{provider.Google})
	if len(googleOnly) != 8 {
		t.Fatalf("expected 8 calendar/mail tools, got %d", len(googleOnly))
	}
	for _, d := range googleOnly {
		if d.Provider != provider.Google {
			t.Fatalf("tool %s leaked into google-only set", d.Name)
		}
	}

	notionOnly := reg.Available([]string{provider.Notion})
	if len(notionOnly) != 7 {
		t.Fatalf("expected 7 notion tools, got %d", len(notionOnly))
	}

	// Required arguments must be enforced by the compiled schemas.
	d, ok := reg.Get("delete_calendar_event")
	if !ok {
		t.Fatal("delete_calendar_event not registered")
	}
	if err := d.Validate(map[string]any{}); err == nil {
		t.Fatal("missing event_id accepted")
	}
	if err := d.Validate(map[string]any{"event_id": "ev1"}); err != nil {
		t.Fatalf("valid args rejected: %v", err)
	}
}

func TestGetCalendarEventsToolResultStrings(t *testing.T) {
	var items []any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"items": items})
	}))
	defer srv.Close()

	svc := NewServices(srv.Client())
	svc.Calendar.baseURL = srv.URL
	reg := agent.NewRegistry()
	if err := RegisterAll(reg, svc); err != nil {
		t.Fatalf("register: %v", err)
	}
	d, _ := reg.Get("get_calendar_events")
	cred := token.Credential{Provider: provider.Google, AccessToken: "tok"}

	result, err := d.Run(context.Background(), cred, map[string]any{"query": "dentist"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(result, "No events found matching 'dentist'") || !strings.Contains(result, "TRY AGAIN") {
		t.Fatalf("empty-result nudge missing: %q", result)
	}

	result, err = d.Run(context.Background(), cred, map[string]any{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(result, "No events found for this time period") {
		t.Fatalf("empty-window nudge missing: %q", result)
	}

	items = []any{map[string]any{"id": "ev1", "summary": "Dentist"}}
	result, err = d.Run(context.Background(), cred, map[string]any{"query": "dentist"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var decoded []EventSummary
	if err := json.Unmarshal([]byte(result), &decoded); err != nil {
		t.Fatalf("result should be JSON: %v\n%s", err, result)
	}
	if len(decoded) != 1 || decoded[0].Summary != "Dentist" {
		t.Fatalf("unexpected decoded result: %+v", decoded)
	}
}

func TestDeleteNotionPageToolResultString(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	svc := NewServices(srv.Client())
	svc.Notion.baseURL = srv.URL
	reg := agent.NewRegistry()
	if err := RegisterAll(reg, svc); err != nil {
		t.Fatalf("register: %v", err)
	}
	d, _ := reg.Get("delete_notion_page")

	result, err := d.Run(context.Background(), token.Credential{AccessToken: "tok"}, map[string]any{"page_id": "p1"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result != "Page archived successfully! (It can be restored from Notion's trash)" {
		t.Fatalf("unexpected result: %q", result)
	}
}
