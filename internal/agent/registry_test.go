package agent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pysugar/digital-twin/internal/auth/token"
)

func noopRun(ctx context.Context, cred token.Credential, args map[string]any) (string, error) {
	return "ok", nil
}

func testDescriptor(name, providerName, schema string) *Descriptor {
	return &Descriptor{
		Name:     name,
		Provider: providerName,
		Schema:   json.RawMessage(schema),
		Run:      noopRun,
	}
}

func TestRegisterRejectsBadSchema(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(testDescriptor("broken", "", `{"type": 42}`)); err == nil {
		t.Fatal("expected schema compile error")
	}
}

func TestAvailableFiltersByConnectedProvider(t *testing.T) {
	r := NewRegistry()
	for _, d := range []*Descriptor{
		testDescriptor("cal_tool", "google", `{"type":"object"}`),
		testDescriptor("notion_tool", "notion", `{"type":"object"}`),
		testDescriptor("neutral_tool", "", `{"type":"object"}`),
	} {
		if err := r.Register(d); err != nil {
			t.Fatalf("register %s: %v", d.Name, err)
		}
	}

	names := func(ds []*Descriptor) []string {
		var out []string
		for _, d := range ds {
			out = append(out, d.Name)
		}
		return out
	}

	got := names(r.Available([]string{"google"}))
	if len(got) != 2 || got[0] != "cal_tool" || got[1] != "neutral_tool" {
		t.Fatalf("google-only set wrong: %v", got)
	}

	got = names(r.Available(nil))
	if len(got) != 1 || got[0] != "neutral_tool" {
		t.Fatalf("disconnected set wrong: %v", got)
	}

	got = names(r.Available([]string{"google", "notion"}))
	if len(got) != 3 {
		t.Fatalf("full set wrong: %v", got)
	}
}

func TestAvailablePreservesRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	order := []string{"t3", "t1", "t2"}
	for _, name := range order {
		if err := r.Register(testDescriptor(name, "", `{"type":"object"}`)); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	got := r.Available(nil)
	for i, d := range got {
		if d.Name != order[i] {
			t.Fatalf("order not preserved: got %s at %d", d.Name, i)
		}
	}
}

func TestValidateArguments(t *testing.T) {
	r := NewRegistry()
	d := testDescriptor("strict", "", `{
		"type": "object",
		"properties": {
			"event_id": {"type": "string"},
			"max_results": {"type": "integer"}
		},
		"required": ["event_id"]
	}`)
	if err := r.Register(d); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := d.Validate(map[string]any{"event_id": "abc", "max_results": float64(5)}); err != nil {
		t.Fatalf("valid args rejected: %v", err)
	}
	if err := d.Validate(map[string]any{"max_results": float64(5)}); err == nil {
		t.Fatal("missing required field accepted")
	}
	if err := d.Validate(map[string]any{"event_id": 42}); err == nil {
		t.Fatal("wrong type accepted")
	}
	if err := d.Validate(nil); err == nil {
		t.Fatal("nil args with required field accepted")
	}
}
