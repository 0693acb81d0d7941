package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pysugar/digital-twin/internal/agent"
	"github.com/pysugar/digital-twin/internal/auth/provider"
	"github.com/pysugar/digital-twin/internal/auth/token"
)

// Services bundles the provider API clients the tools call.
type Services struct {
	Calendar *CalendarService
	Gmail    *GmailService
	Notion   *NotionService
}

// NewServices builds all provider clients over one shared HTTP client.
func NewServices(hc *http.Client) *Services {
	return &Services{
		Calendar: NewCalendarService(hc),
		Gmail:    NewGmailService(hc),
		Notion:   NewNotionService(hc),
	}
}

// RegisterAll registers the full tool set. Tool failures are reported to
// the model as result strings, not errors, so the conversation can
// recover; only transport-level failures surface as errors.
func RegisterAll(reg *agent.Registry, svc *Services) error {
	defs := []agent.Descriptor{
		{
			Name:        "get_calendar_events",
			Description: "Get calendar events. Can list all events or search for specific ones. Time range is from 12:00 AM of start_date to 11:59 PM of end_date.",
			Provider:    provider.Google,
			Schema: schema(`{
				"type": "object",
				"properties": {
					"query": {"type": "string", "description": "Optional search term to filter events by name (leave empty to get all events)"},
					"start_date": {"type": "string", "description": "Start date in YYYY-MM-DD format (defaults to today)"},
					"end_date": {"type": "string", "description": "End date in YYYY-MM-DD format (defaults to 7 days from start_date)"},
					"max_results": {"type": "integer", "description": "Maximum number of events to return (default 25)"}
				},
				"required": []
			}`),
			Run: func(ctx context.Context, cred token.Credential, args map[string]any) (string, error) {
				query := argString(args, "query")
				events, err := svc.Calendar.Events(ctx, cred.AccessToken, query,
					argString(args, "start_date"), argString(args, "end_date"), argInt(args, "max_results", 25))
				if err != nil {
					return "", err
				}
				if len(events) == 0 {
					if query != "" {
						return fmt.Sprintf("No events found matching '%s'. TRY AGAIN with a different query (shorter keyword or empty query to list all events).", query), nil
					}
					return "No events found for this time period. TRY AGAIN with a wider date range or empty query.", nil
				}
				return mustJSON(events), nil
			},
		},
		{
			Name:        "get_emails",
			Description: "Get emails from the user's inbox. Can list recent emails or search for specific ones using Gmail query syntax. Time range is from start_date to end_date.",
			Provider:    provider.Google,
			Schema: schema(`{
				"type": "object",
				"properties": {
					"query": {"type": "string", "description": "Optional search query (e.g., 'from:someone@example.com', 'subject:meeting', 'is:unread'). Leave empty to get recent inbox emails."},
					"start_date": {"type": "string", "description": "Start date in YYYY-MM-DD format (defaults to 30 days ago)"},
					"end_date": {"type": "string", "description": "End date in YYYY-MM-DD format (defaults to today)"},
					"max_results": {"type": "integer", "description": "Maximum number of emails to return (default 25)"}
				},
				"required": []
			}`),
			Run: func(ctx context.Context, cred token.Credential, args map[string]any) (string, error) {
				query := argString(args, "query")
				emails, err := svc.Gmail.Messages(ctx, cred.AccessToken, query,
					argString(args, "start_date"), argString(args, "end_date"), argInt(args, "max_results", 25))
				if err != nil {
					return "", err
				}
				if len(emails) == 0 {
					if query != "" {
						return fmt.Sprintf("No emails found matching '%s'. TRY AGAIN with a different query (simpler keywords, different phrasing, or empty query to list recent emails).", query), nil
					}
					return "No recent emails found, or Gmail is not connected.", nil
				}
				return mustJSON(emails), nil
			},
		},
		{
			Name:        "get_email_content",
			Description: "Get the full content of a specific email by its ID. Use get_emails first to find email IDs.",
			Provider:    provider.Google,
			Schema: schema(`{
				"type": "object",
				"properties": {
					"message_id": {"type": "string", "description": "The ID of the email to retrieve"}
				},
				"required": ["message_id"]
			}`),
			Run: func(ctx context.Context, cred token.Credential, args map[string]any) (string, error) {
				email, err := svc.Gmail.Message(ctx, cred.AccessToken, argString(args, "message_id"))
				if err != nil {
					return "Failed to get email. Check the message ID or ensure Gmail is connected.", nil
				}
				return mustJSON(email), nil
			},
		},
		{
			Name:        "get_email_thread",
			Description: "Get an entire email thread/conversation (all back-and-forth messages). Use get_emails first to find the thread_id.",
			Provider:    provider.Google,
			Schema: schema(`{
				"type": "object",
				"properties": {
					"thread_id": {"type": "string", "description": "The thread ID of the email conversation"}
				},
				"required": ["thread_id"]
			}`),
			Run: func(ctx context.Context, cred token.Credential, args map[string]any) (string, error) {
				thread, err := svc.Gmail.Thread(ctx, cred.AccessToken, argString(args, "thread_id"))
				if err != nil {
					return "Failed to get email thread. Check the thread ID or ensure Gmail is connected.", nil
				}
				return mustJSON(thread), nil
			},
		},
		{
			Name:        "create_calendar_event",
			Description: "Create a new calendar event. Times should be in ISO 8601 format (e.g., '2024-01-15T14:00:00Z')",
			Provider:    provider.Google,
			Schema: schema(`{
				"type": "object",
				"properties": {
					"summary": {"type": "string", "description": "Title of the event"},
					"start_time": {"type": "string", "description": "Start time in ISO 8601 format (e.g., '2024-01-15T14:00:00Z')"},
					"end_time": {"type": "string", "description": "End time in ISO 8601 format (e.g., '2024-01-15T15:00:00Z')"},
					"description": {"type": "string", "description": "Description of the event (optional)"},
					"location": {"type": "string", "description": "Location of the event (optional)"},
					"attendees": {"type": "array", "items": {"type": "string"}, "description": "List of attendee email addresses to invite (optional)"}
				},
				"required": ["summary", "start_time", "end_time"]
			}`),
			Run: func(ctx context.Context, cred token.Credential, args map[string]any) (string, error) {
				event, err := svc.Calendar.CreateEvent(ctx, cred.AccessToken, EventInput{
					Summary:     argString(args, "summary"),
					StartTime:   argString(args, "start_time"),
					EndTime:     argString(args, "end_time"),
					Description: argString(args, "description"),
					Location:    argString(args, "location"),
					Attendees:   argStrings(args, "attendees"),
				})
				if err != nil {
					return "Failed to create event. Please check the details and try again.", nil
				}
				return "Event created successfully!\n" + mustJSON(event), nil
			},
		},
		{
			Name:        "update_calendar_event",
			Description: "Update an existing calendar event. First search for the event to get its ID.",
			Provider:    provider.Google,
			Schema: schema(`{
				"type": "object",
				"properties": {
					"event_id": {"type": "string", "description": "The ID of the event to update"},
					"summary": {"type": "string", "description": "New title of the event (optional)"},
					"start_time": {"type": "string", "description": "New start time in ISO 8601 format (optional)"},
					"end_time": {"type": "string", "description": "New end time in ISO 8601 format (optional)"},
					"description": {"type": "string", "description": "New description (optional)"},
					"location": {"type": "string", "description": "New location (optional)"}
				},
				"required": ["event_id"]
			}`),
			Run: func(ctx context.Context, cred token.Credential, args map[string]any) (string, error) {
				event, err := svc.Calendar.UpdateEvent(ctx, cred.AccessToken, argString(args, "event_id"), EventInput{
					Summary:     argString(args, "summary"),
					StartTime:   argString(args, "start_time"),
					EndTime:     argString(args, "end_time"),
					Description: argString(args, "description"),
					Location:    argString(args, "location"),
				})
				if err != nil {
					return "Failed to update event. Please check the event ID and try again.", nil
				}
				return "Event updated successfully!\n" + mustJSON(event), nil
			},
		},
		{
			Name:        "share_calendar_event",
			Description: "Share a calendar event by adding attendees. They will receive email invitations.",
			Provider:    provider.Google,
			Schema: schema(`{
				"type": "object",
				"properties": {
					"event_id": {"type": "string", "description": "The ID of the event to share"},
					"attendee_emails": {"type": "array", "items": {"type": "string"}, "description": "List of email addresses to invite"}
				},
				"required": ["event_id", "attendee_emails"]
			}`),
			Run: func(ctx context.Context, cred token.Credential, args map[string]any) (string, error) {
				event, err := svc.Calendar.AddAttendees(ctx, cred.AccessToken,
					argString(args, "event_id"), argStrings(args, "attendee_emails"))
				if err != nil {
					return "Failed to share event. Please check the event ID and try again.", nil
				}
				return "Event shared successfully! Invitations sent.\n" + mustJSON(event), nil
			},
		},
		{
			Name:        "delete_calendar_event",
			Description: "Delete a calendar event. First search for the event to get its ID.",
			Provider:    provider.Google,
			Schema: schema(`{
				"type": "object",
				"properties": {
					"event_id": {"type": "string", "description": "The ID of the event to delete"}
				},
				"required": ["event_id"]
			}`),
			Run: func(ctx context.Context, cred token.Credential, args map[string]any) (string, error) {
				if err := svc.Calendar.DeleteEvent(ctx, cred.AccessToken, argString(args, "event_id")); err != nil {
					return "Failed to delete event. Please check the event ID and try again.", nil
				}
				return "Event deleted successfully!", nil
			},
		},
		{
			Name:        "search_notion",
			Description: "Search for pages in the user's Notion workspace. Returns titles, URLs, and metadata.",
			Provider:    provider.Notion,
			Schema: schema(`{
				"type": "object",
				"properties": {
					"query": {"type": "string", "description": "Search query (leave empty to get recent pages)"},
					"max_results": {"type": "integer", "description": "Maximum number of results (default 25)"}
				},
				"required": []
			}`),
			Run: func(ctx context.Context, cred token.Credential, args map[string]any) (string, error) {
				query := argString(args, "query")
				pages, err := svc.Notion.Search(ctx, cred.AccessToken, query, argInt(args, "max_results", 25))
				if err != nil {
					return "", err
				}
				if len(pages) == 0 {
					if query != "" {
						return fmt.Sprintf("No Notion pages found matching '%s'. TRY AGAIN with different keywords or an empty query to list recent pages.", query), nil
					}
					return "No Notion pages found, or Notion is not connected.", nil
				}
				return mustJSON(pages), nil
			},
		},
		{
			Name:        "get_notion_page",
			Description: "Get the content of a specific Notion page by its ID. Use search_notion first to find the page ID.",
			Provider:    provider.Notion,
			Schema: schema(`{
				"type": "object",
				"properties": {
					"page_id": {"type": "string", "description": "The ID of the Notion page to retrieve"}
				},
				"required": ["page_id"]
			}`),
			Run: func(ctx context.Context, cred token.Credential, args map[string]any) (string, error) {
				page, err := svc.Notion.Page(ctx, cred.AccessToken, argString(args, "page_id"))
				if err != nil {
					return "Failed to get page. Check the page ID or ensure the page is shared with the integration.", nil
				}
				return mustJSON(page), nil
			},
		},
		{
			Name:        "create_notion_page",
			Description: "Create a new Notion page as a child of another page. Use search_notion first to find a parent page ID. Use PLAIN TEXT only for content (no markdown).",
			Provider:    provider.Notion,
			Schema: schema(`{
				"type": "object",
				"properties": {
					"title": {"type": "string", "description": "The title of the new page"},
					"parent_page_id": {"type": "string", "description": "The ID of the parent page where the new page will be created"},
					"content": {"type": "string", "description": "Optional PLAIN TEXT content (no markdown). Use newlines for paragraphs."}
				},
				"required": ["title", "parent_page_id"]
			}`),
			Run: func(ctx context.Context, cred token.Credential, args map[string]any) (string, error) {
				page, err := svc.Notion.CreatePage(ctx, cred.AccessToken,
					argString(args, "parent_page_id"), argString(args, "title"), argString(args, "content"))
				if err != nil {
					return "Failed to create page. Check the parent page ID and ensure it's shared with the integration.", nil
				}
				return "Page created successfully!\n" + mustJSON(page), nil
			},
		},
		{
			Name:        "update_notion_page",
			Description: "Update a Notion page - change title and/or append new content. Use PLAIN TEXT only (no markdown). For modifying or deleting specific blocks, use update_notion_block or delete_notion_block.",
			Provider:    provider.Notion,
			Schema: schema(`{
				"type": "object",
				"properties": {
					"page_id": {"type": "string", "description": "The ID of the page to update"},
					"new_title": {"type": "string", "description": "New title for the page (optional)"},
					"append_content": {"type": "string", "description": "PLAIN TEXT to append (no markdown). Use newlines for paragraphs."}
				},
				"required": ["page_id"]
			}`),
			Run: func(ctx context.Context, cred token.Credential, args map[string]any) (string, error) {
				page, err := svc.Notion.UpdatePage(ctx, cred.AccessToken,
					argString(args, "page_id"), argString(args, "new_title"), argString(args, "append_content"))
				if err != nil {
					return "Failed to update page. Check the page ID and ensure it's shared with the integration.", nil
				}
				return "Page updated successfully!\n" + mustJSON(page), nil
			},
		},
		{
			Name:        "update_notion_block",
			Description: "Update the text content of a specific block. Use get_notion_page first to see all blocks and their IDs. Use PLAIN TEXT only (no markdown).",
			Provider:    provider.Notion,
			Schema: schema(`{
				"type": "object",
				"properties": {
					"block_id": {"type": "string", "description": "The ID of the block to update"},
					"new_text": {"type": "string", "description": "The new PLAIN TEXT content for the block (no markdown)"}
				},
				"required": ["block_id", "new_text"]
			}`),
			Run: func(ctx context.Context, cred token.Credential, args map[string]any) (string, error) {
				block, err := svc.Notion.UpdateBlock(ctx, cred.AccessToken,
					argString(args, "block_id"), argString(args, "new_text"))
				if err != nil {
					return "Failed to update block. Check the block ID and ensure the page is shared with the integration.", nil
				}
				return "Block updated successfully!\n" + mustJSON(block), nil
			},
		},
		{
			Name:        "delete_notion_block",
			Description: "Delete a specific block from a Notion page. Use get_notion_page first to see all blocks and their IDs.",
			Provider:    provider.Notion,
			Schema: schema(`{
				"type": "object",
				"properties": {
					"block_id": {"type": "string", "description": "The ID of the block to delete"}
				},
				"required": ["block_id"]
			}`),
			Run: func(ctx context.Context, cred token.Credential, args map[string]any) (string, error) {
				if err := svc.Notion.DeleteBlock(ctx, cred.AccessToken, argString(args, "block_id")); err != nil {
					return "Failed to delete block. Check the block ID and ensure the page is shared with the integration.", nil
				}
				return "Block deleted successfully!", nil
			},
		},
		{
			Name:        "delete_notion_page",
			Description: "Delete (archive) a Notion page. This action archives the page - it can be restored from Notion's trash. Use search_notion first to find the page ID.",
			Provider:    provider.Notion,
			Schema: schema(`{
				"type": "object",
				"properties": {
					"page_id": {"type": "string", "description": "The ID of the page to delete"}
				},
				"required": ["page_id"]
			}`),
			Run: func(ctx context.Context, cred token.Credential, args map[string]any) (string, error) {
				if err := svc.Notion.ArchivePage(ctx, cred.AccessToken, argString(args, "page_id")); err != nil {
					return "Failed to delete page. Check the page ID and ensure it's shared with the integration.", nil
				}
				return "Page archived successfully! (It can be restored from Notion's trash)", nil
			},
		},
	}

	for i := range defs {
		if err := reg.Register(&defs[i]); err != nil {
			return fmt.Errorf("register %s: %w", defs[i].Name, err)
		}
	}
	return nil
}

func schema(s string) json.RawMessage {
	return json.RawMessage(s)
}

// mustJSON pretty-prints tool results; models read indented JSON more
// reliably than compact output.
func mustJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func argString(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func argInt(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

func argStrings(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
