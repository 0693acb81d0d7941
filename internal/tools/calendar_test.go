package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestCalendar(t *testing.T, handler http.Handler) (*CalendarService, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	s := NewCalendarService(srv.Client())
	s.baseURL = srv.URL
	s.now = func() time.Time { return testNow }
	return s, srv
}

func TestEventsQueryShape(t *testing.T) {
	var gotQuery map[string]string
	var gotAuth string
	s, _ := newTestCalendar(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		json.NewEncoder(w).Encode(map[string]any{"items": []any{}})
	}))

	_, err := s.Events(context.Background(), "tok", "standup", "", "", 0)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("missing bearer auth: %q", gotAuth)
	}
	if gotQuery["singleEvents"] != "true" || gotQuery["orderBy"] != "startTime" {
		t.Fatalf("expansion params wrong: %v", gotQuery)
	}
	if gotQuery["q"] != "standup" || gotQuery["maxResults"] != "25" {
		t.Fatalf("query params wrong: %v", gotQuery)
	}
	if gotQuery["timeMin"] != "2026-03-15T00:00:00Z" {
		t.Fatalf("timeMin should be today midnight: %q", gotQuery["timeMin"])
	}
	if gotQuery["timeMax"] != "2026-03-22T23:59:59Z" {
		t.Fatalf("timeMax should be end of the last day: %q", gotQuery["timeMax"])
	}
}

func TestEventsNormalizesShape(t *testing.T) {
	s, _ := newTestCalendar(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"items": []any{
				map[string]any{
					"id":       "ev1",
					"summary":  "Standup",
					"htmlLink": "https://cal/ev1",
					"start":    map[string]any{"dateTime": "2026-03-16T09:00:00-07:00"},
					"end":      map[string]any{"dateTime": "2026-03-16T09:15:00-07:00"},
					"attendees": []any{
						map[string]any{"email": "a@example.com"},
						map[string]any{"email": "b@example.com"},
					},
				},
				map[string]any{
					// All-day event with no title.
					"id":    "ev2",
					"start": map[string]any{"date": "2026-03-17"},
					"end":   map[string]any{"date": "2026-03-18"},
				},
			},
		})
	}))

	events, err := s.Events(context.Background(), "tok", "", "", "", 10)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Summary != "Standup" || len(events[0].Attendees) != 2 {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	if events[1].Summary != "No title" || events[1].Start != "2026-03-17" {
		t.Fatalf("all-day fallback wrong: %+v", events[1])
	}
}

func TestCreateEventSendsInvitations(t *testing.T) {
	var gotPath, gotRawQuery string
	var gotBody map[string]any
	s, _ := newTestCalendar(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotRawQuery = r.URL.Path, r.URL.RawQuery
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{"id": "new-ev", "summary": "Sync"})
	}))

	created, err := s.CreateEvent(context.Background(), "tok", EventInput{
		Summary:   "Sync",
		StartTime: "2026-03-16T10:00:00Z",
		EndTime:   "2026-03-16T11:00:00Z",
		Attendees: []string{"a@example.com"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID != "new-ev" {
		t.Fatalf("unexpected created event: %+v", created)
	}
	if gotPath != "/calendars/primary/events" || gotRawQuery != "sendUpdates=all" {
		t.Fatalf("attendees must trigger sendUpdates=all: %s?%s", gotPath, gotRawQuery)
	}
	start := gotBody["start"].(map[string]any)
	if start["timeZone"] != eventTimeZone {
		t.Fatalf("timezone missing: %v", start)
	}
}

func TestCreateEventWithoutAttendeesSkipsSendUpdates(t *testing.T) {
	var gotRawQuery string
	s, _ := newTestCalendar(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRawQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode(map[string]any{"id": "new-ev"})
	}))

	if _, err := s.CreateEvent(context.Background(), "tok", EventInput{
		Summary: "Solo", StartTime: "2026-03-16T10:00:00Z", EndTime: "2026-03-16T11:00:00Z",
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if gotRawQuery != "" {
		t.Fatalf("no attendees should mean no sendUpdates: %q", gotRawQuery)
	}
}

func TestUpdateEventPreservesUntouchedFields(t *testing.T) {
	var putBody map[string]any
	s, _ := newTestCalendar(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(map[string]any{
				"id":       "ev1",
				"summary":  "Old title",
				"location": "Room 4",
				"start":    map[string]any{"dateTime": "2026-03-16T09:00:00Z"},
				"end":      map[string]any{"dateTime": "2026-03-16T10:00:00Z"},
			})
		case http.MethodPut:
			json.NewDecoder(r.Body).Decode(&putBody)
			json.NewEncoder(w).Encode(map[string]any{"id": "ev1", "summary": "New title"})
		}
	}))

	updated, err := s.UpdateEvent(context.Background(), "tok", "ev1", EventInput{Summary: "New title"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Summary != "New title" {
		t.Fatalf("unexpected update result: %+v", updated)
	}
	if putBody["summary"] != "New title" {
		t.Fatalf("summary not replaced: %v", putBody)
	}
	if putBody["location"] != "Room 4" {
		t.Fatalf("untouched field lost: %v", putBody)
	}
}

func TestAddAttendeesDeduplicates(t *testing.T) {
	var putBody map[string]any
	var putRawQuery string
	s, _ := newTestCalendar(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(map[string]any{
				"id": "ev1",
				"attendees": []any{
					map[string]any{"email": "existing@example.com"},
				},
			})
		case http.MethodPut:
			putRawQuery = r.URL.RawQuery
			json.NewDecoder(r.Body).Decode(&putBody)
			json.NewEncoder(w).Encode(map[string]any{"id": "ev1"})
		}
	}))

	_, err := s.AddAttendees(context.Background(), "tok", "ev1", []string{"existing@example.com", "new@example.com"})
	if err != nil {
		t.Fatalf("add attendees: %v", err)
	}
	attendees := putBody["attendees"].([]any)
	if len(attendees) != 2 {
		t.Fatalf("expected deduplicated attendee list, got %v", attendees)
	}
	if putRawQuery != "sendUpdates=all" {
		t.Fatalf("invitations must be sent: %q", putRawQuery)
	}
}

func TestDeleteEvent(t *testing.T) {
	var gotMethod, gotPath string
	s, _ := newTestCalendar(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))

	if err := s.DeleteEvent(context.Background(), "tok", "ev1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/calendars/primary/events/ev1" {
		t.Fatalf("unexpected request: %s %s", gotMethod, gotPath)
	}
}
