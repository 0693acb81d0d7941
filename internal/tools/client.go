// Package tools wraps the external provider APIs (Google Calendar, Gmail,
// Notion) behind small services and registers them as agent tools with
// provider-agnostic result shapes.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const dateLayout = "2006-01-02"

// NewHTTPClient returns the shared client for provider calls. Every
// outbound call is additionally bounded by the executor's per-call
// context timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// doJSON executes a request and decodes a JSON response into out (out may
// be nil for calls whose body is irrelevant). Non-2xx statuses become
// errors carrying the status and a body preview.
func doJSON(ctx context.Context, hc *http.Client, req *http.Request, out any) error {
	resp, err := hc.Do(req.WithContext(ctx))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("API error %s: %s", resp.Status, bytes.TrimSpace(body))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func jsonBody(v any) (io.Reader, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

// calendarWindow resolves the event date range: start defaults to today,
// end to seven days after start. Malformed dates fall back to defaults
// rather than erroring so a sloppy model query still returns events.
func calendarWindow(now time.Time, startDate, endDate string) (time.Time, time.Time) {
	start := truncateToDay(now)
	if startDate != "" {
		if parsed, err := time.Parse(dateLayout, startDate); err == nil {
			start = parsed
		}
	}
	end := start.AddDate(0, 0, 7)
	if endDate != "" {
		if parsed, err := time.Parse(dateLayout, endDate); err == nil {
			end = parsed
		}
	}
	return start, end
}

// mailWindow resolves the email date range: start defaults to thirty days
// back (mail usually needs a wider lookback), end to today.
func mailWindow(now time.Time, startDate, endDate string) (time.Time, time.Time) {
	start := truncateToDay(now).AddDate(0, 0, -30)
	if startDate != "" {
		if parsed, err := time.Parse(dateLayout, startDate); err == nil {
			start = parsed
		}
	}
	end := truncateToDay(now)
	if endDate != "" {
		if parsed, err := time.Parse(dateLayout, endDate); err == nil {
			end = parsed
		}
	}
	return start, end
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
