package tools

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultGmailBaseURL = "https://gmail.googleapis.com/gmail/v1"

// GmailService calls the Gmail API for the authenticated user.
type GmailService struct {
	hc      *http.Client
	baseURL string
	now     func() time.Time
}

// NewGmailService creates a GmailService using the shared HTTP client.
func NewGmailService(hc *http.Client) *GmailService {
	return &GmailService{hc: hc, baseURL: defaultGmailBaseURL, now: time.Now}
}

// MessageSummary is the metadata-only email shape returned by searches.
type MessageSummary struct {
	ID       string `json:"id"`
	ThreadID string `json:"thread_id"`
	From     string `json:"from"`
	Subject  string `json:"subject"`
	Date     string `json:"date"`
	Snippet  string `json:"snippet"`
}

// MessageContent is the full email shape including the plain-text body.
type MessageContent struct {
	ID       string `json:"id"`
	ThreadID string `json:"thread_id"`
	From     string `json:"from"`
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Date     string `json:"date"`
	Body     string `json:"body"`
}

// ThreadContent is a conversation with all of its messages.
type ThreadContent struct {
	ID           string           `json:"id"`
	Subject      string           `json:"subject"`
	MessageCount int              `json:"message_count"`
	Messages     []MessageContent `json:"messages"`
}

type rawMessage struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
	Snippet  string `json:"snippet"`
	Payload  struct {
		MimeType string `json:"mimeType"`
		Headers  []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"headers"`
		Body struct {
			Data string `json:"data"`
		} `json:"body"`
		Parts []rawPart `json:"parts"`
	} `json:"payload"`
}

type rawPart struct {
	MimeType string `json:"mimeType"`
	Body     struct {
		Data string `json:"data"`
	} `json:"body"`
	Parts []rawPart `json:"parts"`
}

func (m rawMessage) header(name string) string {
	for _, h := range m.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// body walks the MIME tree for the first text/plain part and decodes it.
func (m rawMessage) body() string {
	if m.Payload.MimeType == "text/plain" && m.Payload.Body.Data != "" {
		return decodeBase64URL(m.Payload.Body.Data)
	}
	if text := findPlainText(m.Payload.Parts); text != "" {
		return text
	}
	return m.Snippet
}

func findPlainText(parts []rawPart) string {
	for _, p := range parts {
		if p.MimeType == "text/plain" && p.Body.Data != "" {
			return decodeBase64URL(p.Body.Data)
		}
		if text := findPlainText(p.Parts); text != "" {
			return text
		}
	}
	return ""
}

func decodeBase64URL(data string) string {
	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return ""
	}
	return string(decoded)
}

// Messages searches the mailbox. The free-text query is combined with a
// date window in Gmail's query syntax; before: is exclusive so the end
// date is bumped by one day to keep the window inclusive.
func (s *GmailService) Messages(ctx context.Context, accessToken, query, startDate, endDate string, maxResults int) ([]MessageSummary, error) {
	if maxResults <= 0 {
		maxResults = 10
	}
	start, end := mailWindow(s.now().UTC(), startDate, endDate)

	q := strings.TrimSpace(fmt.Sprintf("%s after:%s before:%s",
		query,
		start.Format("2006/01/02"),
		end.AddDate(0, 0, 1).Format("2006/01/02")))

	params := url.Values{
		"q":          {q},
		"maxResults": {strconv.Itoa(maxResults)},
	}
	req, err := http.NewRequest(http.MethodGet, s.baseURL+"/users/me/messages?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var list struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := doJSON(ctx, s.hc, req, &list); err != nil {
		return nil, err
	}

	summaries := make([]MessageSummary, 0, len(list.Messages))
	for _, ref := range list.Messages {
		msg, err := s.getMessage(ctx, accessToken, ref.ID, "metadata")
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, MessageSummary{
			ID:       msg.ID,
			ThreadID: msg.ThreadID,
			From:     msg.header("From"),
			Subject:  msg.header("Subject"),
			Date:     msg.header("Date"),
			Snippet:  msg.Snippet,
		})
	}
	return summaries, nil
}

// Message fetches one email in full, including its plain-text body.
func (s *GmailService) Message(ctx context.Context, accessToken, messageID string) (*MessageContent, error) {
	msg, err := s.getMessage(ctx, accessToken, messageID, "full")
	if err != nil {
		return nil, err
	}
	content := messageContent(msg)
	return &content, nil
}

// Thread fetches a whole conversation. The subject comes from the first
// message in the thread.
func (s *GmailService) Thread(ctx context.Context, accessToken, threadID string) (*ThreadContent, error) {
	req, err := http.NewRequest(http.MethodGet, s.baseURL+"/users/me/threads/"+threadID+"?format=full", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var thread struct {
		ID       string       `json:"id"`
		Messages []rawMessage `json:"messages"`
	}
	if err := doJSON(ctx, s.hc, req, &thread); err != nil {
		return nil, err
	}

	out := &ThreadContent{
		ID:           thread.ID,
		MessageCount: len(thread.Messages),
	}
	for i, msg := range thread.Messages {
		if i == 0 {
			out.Subject = msg.header("Subject")
		}
		out.Messages = append(out.Messages, messageContent(&msg))
	}
	return out, nil
}

func (s *GmailService) getMessage(ctx context.Context, accessToken, messageID, format string) (*rawMessage, error) {
	params := url.Values{"format": {format}}
	if format == "metadata" {
		params["metadataHeaders"] = []string{"From", "Subject", "Date"}
	}
	req, err := http.NewRequest(http.MethodGet, s.baseURL+"/users/me/messages/"+messageID+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var msg rawMessage
	if err := doJSON(ctx, s.hc, req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func messageContent(msg *rawMessage) MessageContent {
	return MessageContent{
		ID:       msg.ID,
		ThreadID: msg.ThreadID,
		From:     msg.header("From"),
		To:       msg.header("To"),
		Subject:  msg.header("Subject"),
		Date:     msg.header("Date"),
		Body:     msg.body(),
	}
}
