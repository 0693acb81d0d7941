package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultCalendarBaseURL = "https://www.googleapis.com/calendar/v3"

// eventTimeZone is applied to created/updated event times.
// TODO: read the user's timezone from their calendar settings instead.
const eventTimeZone = "America/Los_Angeles"

// CalendarService calls the Google Calendar API for the user's primary
// calendar.
type CalendarService struct {
	hc      *http.Client
	baseURL string
	now     func() time.Time
}

// NewCalendarService creates a CalendarService using the shared HTTP client.
func NewCalendarService(hc *http.Client) *CalendarService {
	return &CalendarService{hc: hc, baseURL: defaultCalendarBaseURL, now: time.Now}
}

// EventSummary is the provider-agnostic event shape returned to the model.
type EventSummary struct {
	ID          string   `json:"id"`
	Summary     string   `json:"summary"`
	Description string   `json:"description,omitempty"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
	Location    string   `json:"location,omitempty"`
	Attendees   []string `json:"attendees,omitempty"`
	HTMLLink    string   `json:"html_link,omitempty"`
}

// rawEvent is the slice of the Calendar API event resource we consume.
type rawEvent struct {
	ID          string `json:"id"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Location    string `json:"location"`
	HTMLLink    string `json:"htmlLink"`
	Start       struct {
		DateTime string `json:"dateTime"`
		Date     string `json:"date"`
	} `json:"start"`
	End struct {
		DateTime string `json:"dateTime"`
		Date     string `json:"date"`
	} `json:"end"`
	Attendees []struct {
		Email string `json:"email"`
	} `json:"attendees"`
}

func (e rawEvent) summary() EventSummary {
	s := EventSummary{
		ID:          e.ID,
		Summary:     e.Summary,
		Description: e.Description,
		Location:    e.Location,
		HTMLLink:    e.HTMLLink,
		Start:       e.Start.DateTime,
		End:         e.End.DateTime,
	}
	if s.Summary == "" {
		s.Summary = "No title"
	}
	if s.Start == "" {
		s.Start = e.Start.Date
	}
	if s.End == "" {
		s.End = e.End.Date
	}
	for _, a := range e.Attendees {
		s.Attendees = append(s.Attendees, a.Email)
	}
	return s
}

// Events lists events in the resolved date window, optionally filtered by
// a free-text query. The window always spans midnight of the start date
// to 23:59:59 of the end date.
func (s *CalendarService) Events(ctx context.Context, accessToken, query, startDate, endDate string, maxResults int) ([]EventSummary, error) {
	if maxResults <= 0 {
		maxResults = 25
	}
	start, end := calendarWindow(s.now().UTC(), startDate, endDate)
	timeMin := start.Format("2006-01-02T15:04:05") + "Z"
	timeMax := end.Add(24*time.Hour - time.Second).Format("2006-01-02T15:04:05") + "Z"

	params := url.Values{
		"maxResults":   {strconv.Itoa(maxResults)},
		"singleEvents": {"true"},
		"orderBy":      {"startTime"},
		"timeMin":      {timeMin},
		"timeMax":      {timeMax},
	}
	if query != "" {
		params.Set("q", query)
	}

	req, err := http.NewRequest(http.MethodGet, s.baseURL+"/calendars/primary/events?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var body struct {
		Items []rawEvent `json:"items"`
	}
	if err := doJSON(ctx, s.hc, req, &body); err != nil {
		return nil, err
	}

	events := make([]EventSummary, 0, len(body.Items))
	for _, item := range body.Items {
		events = append(events, item.summary())
	}
	return events, nil
}

// EventInput describes a new event.
type EventInput struct {
	Summary     string
	StartTime   string // ISO 8601
	EndTime     string // ISO 8601
	Description string
	Location    string
	Attendees   []string
}

// CreateEvent creates an event on the primary calendar. When attendees
// are present, invitations are sent.
func (s *CalendarService) CreateEvent(ctx context.Context, accessToken string, in EventInput) (*EventSummary, error) {
	eventBody := map[string]any{
		"summary": in.Summary,
		"start":   map[string]string{"dateTime": in.StartTime, "timeZone": eventTimeZone},
		"end":     map[string]string{"dateTime": in.EndTime, "timeZone": eventTimeZone},
	}
	if in.Description != "" {
		eventBody["description"] = in.Description
	}
	if in.Location != "" {
		eventBody["location"] = in.Location
	}
	if len(in.Attendees) > 0 {
		attendees := make([]map[string]string, 0, len(in.Attendees))
		for _, email := range in.Attendees {
			attendees = append(attendees, map[string]string{"email": email})
		}
		eventBody["attendees"] = attendees
	}

	target := s.baseURL + "/calendars/primary/events"
	if len(in.Attendees) > 0 {
		target += "?sendUpdates=all"
	}

	payload, err := jsonBody(eventBody)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, target, payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	var created rawEvent
	if err := doJSON(ctx, s.hc, req, &created); err != nil {
		return nil, err
	}
	summary := created.summary()
	return &summary, nil
}

// UpdateEvent applies non-empty fields of in to an existing event. It
// fetches the current resource first so untouched fields survive the PUT.
func (s *CalendarService) UpdateEvent(ctx context.Context, accessToken, eventID string, in EventInput) (*EventSummary, error) {
	current, err := s.getEventRaw(ctx, accessToken, eventID)
	if err != nil {
		return nil, err
	}

	if in.Summary != "" {
		current["summary"] = in.Summary
	}
	if in.StartTime != "" {
		current["start"] = map[string]string{"dateTime": in.StartTime, "timeZone": eventTimeZone}
	}
	if in.EndTime != "" {
		current["end"] = map[string]string{"dateTime": in.EndTime, "timeZone": eventTimeZone}
	}
	if in.Description != "" {
		current["description"] = in.Description
	}
	if in.Location != "" {
		current["location"] = in.Location
	}

	return s.putEvent(ctx, accessToken, eventID, current, "")
}

// AddAttendees invites additional attendees to an existing event.
// Already-invited addresses are left alone; invitations go out to everyone.
func (s *CalendarService) AddAttendees(ctx context.Context, accessToken, eventID string, emails []string) (*EventSummary, error) {
	current, err := s.getEventRaw(ctx, accessToken, eventID)
	if err != nil {
		return nil, err
	}

	existing, _ := current["attendees"].([]any)
	seen := make(map[string]bool)
	for _, a := range existing {
		if m, ok := a.(map[string]any); ok {
			if email, ok := m["email"].(string); ok {
				seen[email] = true
			}
		}
	}
	for _, email := range emails {
		if !seen[email] {
			existing = append(existing, map[string]any{"email": email})
		}
	}
	current["attendees"] = existing

	return s.putEvent(ctx, accessToken, eventID, current, "sendUpdates=all")
}

// DeleteEvent removes an event from the primary calendar.
func (s *CalendarService) DeleteEvent(ctx context.Context, accessToken, eventID string) error {
	req, err := http.NewRequest(http.MethodDelete, s.baseURL+"/calendars/primary/events/"+eventID, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	return doJSON(ctx, s.hc, req, nil)
}

func (s *CalendarService) getEventRaw(ctx context.Context, accessToken, eventID string) (map[string]any, error) {
	req, err := http.NewRequest(http.MethodGet, s.baseURL+"/calendars/primary/events/"+eventID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var event map[string]any
	if err := doJSON(ctx, s.hc, req, &event); err != nil {
		return nil, fmt.Errorf("get event %s: %w", eventID, err)
	}
	return event, nil
}

func (s *CalendarService) putEvent(ctx context.Context, accessToken, eventID string, event map[string]any, rawQuery string) (*EventSummary, error) {
	target := s.baseURL + "/calendars/primary/events/" + eventID
	if rawQuery != "" {
		target += "?" + rawQuery
	}
	payload, err := jsonBody(event)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPut, target, payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	var updated rawEvent
	if err := doJSON(ctx, s.hc, req, &updated); err != nil {
		return nil, err
	}
	summary := updated.summary()
	return &summary, nil
}
