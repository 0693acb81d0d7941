package tools

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const (
	defaultNotionBaseURL = "https://api.notion.com/v1"
	notionVersion        = "2022-06-28"
)

// NotionService calls the Notion API on behalf of the workspace
// integration the user authorized.
type NotionService struct {
	hc      *http.Client
	baseURL string
}

// NewNotionService creates a NotionService using the shared HTTP client.
func NewNotionService(hc *http.Client) *NotionService {
	return &NotionService{hc: hc, baseURL: defaultNotionBaseURL}
}

// PageSummary is the page shape returned by searches.
type PageSummary struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	URL            string `json:"url"`
	LastEditedTime string `json:"last_edited_time"`
}

// Block is one content block of a page, flattened to plain text.
type Block struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text"`
}

// PageContent is a page plus its top-level blocks.
type PageContent struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	URL    string  `json:"url"`
	Blocks []Block `json:"blocks"`
}

func (s *NotionService) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var req *http.Request
	var err error
	if body != nil {
		payload, merr := jsonBody(body)
		if merr != nil {
			return nil, merr
		}
		req, err = http.NewRequest(method, s.baseURL+path, payload)
	} else {
		req, err = http.NewRequest(method, s.baseURL+path, nil)
	}
	if err != nil {
		return nil, err
	}
	req.Header.Set("Notion-Version", notionVersion)
	req.Header.Set("Content-Type", "application/json")
	return req.WithContext(ctx), nil
}

// Search finds pages matching the query. An empty query lists recently
// edited pages.
func (s *NotionService) Search(ctx context.Context, accessToken, query string, maxResults int) ([]PageSummary, error) {
	if maxResults <= 0 {
		maxResults = 10
	}
	if maxResults > 100 {
		maxResults = 100
	}

	body := map[string]any{
		"filter":    map[string]string{"property": "object", "value": "page"},
		"page_size": maxResults,
	}
	if query != "" {
		body["query"] = query
	}
	req, err := s.newRequest(ctx, http.MethodPost, "/search", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var resp struct {
		Results []struct {
			ID             string                       `json:"id"`
			URL            string                       `json:"url"`
			LastEditedTime string                       `json:"last_edited_time"`
			Properties     map[string]map[string]any    `json:"properties"`
		} `json:"results"`
	}
	if err := doJSON(ctx, s.hc, req, &resp); err != nil {
		return nil, err
	}

	pages := make([]PageSummary, 0, len(resp.Results))
	for _, r := range resp.Results {
		pages = append(pages, PageSummary{
			ID:             r.ID,
			Title:          titleFromProperties(r.Properties),
			URL:            r.URL,
			LastEditedTime: r.LastEditedTime,
		})
	}
	return pages, nil
}

// Page fetches a page's metadata and its top-level content blocks.
func (s *NotionService) Page(ctx context.Context, accessToken, pageID string) (*PageContent, error) {
	req, err := s.newRequest(ctx, http.MethodGet, "/pages/"+pageID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var page struct {
		ID         string                    `json:"id"`
		URL        string                    `json:"url"`
		Properties map[string]map[string]any `json:"properties"`
	}
	if err := doJSON(ctx, s.hc, req, &page); err != nil {
		return nil, err
	}

	blocks, err := s.blocks(ctx, accessToken, pageID)
	if err != nil {
		return nil, err
	}
	return &PageContent{
		ID:     page.ID,
		Title:  titleFromProperties(page.Properties),
		URL:    page.URL,
		Blocks: blocks,
	}, nil
}

// CreatePage creates a page under an existing parent page. Content is
// split on newlines into paragraph blocks.
func (s *NotionService) CreatePage(ctx context.Context, accessToken, parentPageID, title, content string) (*PageSummary, error) {
	body := map[string]any{
		"parent": map[string]string{"page_id": parentPageID},
		"properties": map[string]any{
			"title": map[string]any{
				"title": richText(title),
			},
		},
	}
	if content != "" {
		body["children"] = paragraphBlocks(content)
	}

	req, err := s.newRequest(ctx, http.MethodPost, "/pages", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var created struct {
		ID             string                    `json:"id"`
		URL            string                    `json:"url"`
		LastEditedTime string                    `json:"last_edited_time"`
		Properties     map[string]map[string]any `json:"properties"`
	}
	if err := doJSON(ctx, s.hc, req, &created); err != nil {
		return nil, err
	}
	return &PageSummary{
		ID:             created.ID,
		Title:          titleFromProperties(created.Properties),
		URL:            created.URL,
		LastEditedTime: created.LastEditedTime,
	}, nil
}

// UpdatePage retitles a page and/or appends paragraph content, then
// returns the page as it now stands.
func (s *NotionService) UpdatePage(ctx context.Context, accessToken, pageID, title, appendContent string) (*PageContent, error) {
	if title != "" {
		body := map[string]any{
			"properties": map[string]any{
				"title": map[string]any{
					"title": richText(title),
				},
			},
		}
		req, err := s.newRequest(ctx, http.MethodPatch, "/pages/"+pageID, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		if err := doJSON(ctx, s.hc, req, nil); err != nil {
			return nil, err
		}
	}

	if appendContent != "" {
		body := map[string]any{"children": paragraphBlocks(appendContent)}
		req, err := s.newRequest(ctx, http.MethodPatch, "/blocks/"+pageID+"/children", body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		if err := doJSON(ctx, s.hc, req, nil); err != nil {
			return nil, err
		}
	}

	return s.Page(ctx, accessToken, pageID)
}

// UpdateBlock replaces a block's text, preserving its type.
func (s *NotionService) UpdateBlock(ctx context.Context, accessToken, blockID, text string) (*Block, error) {
	req, err := s.newRequest(ctx, http.MethodGet, "/blocks/"+blockID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var current struct {
		Type string `json:"type"`
	}
	if err := doJSON(ctx, s.hc, req, &current); err != nil {
		return nil, err
	}
	if current.Type == "" {
		return nil, fmt.Errorf("block %s has no editable type", blockID)
	}

	body := map[string]any{
		current.Type: map[string]any{"rich_text": richText(text)},
	}
	req, err = s.newRequest(ctx, http.MethodPatch, "/blocks/"+blockID, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if err := doJSON(ctx, s.hc, req, nil); err != nil {
		return nil, err
	}
	return &Block{ID: blockID, Type: current.Type, Text: text}, nil
}

// DeleteBlock removes a single block from a page.
func (s *NotionService) DeleteBlock(ctx context.Context, accessToken, blockID string) error {
	req, err := s.newRequest(ctx, http.MethodDelete, "/blocks/"+blockID, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	return doJSON(ctx, s.hc, req, nil)
}

// ArchivePage moves a page to the workspace trash. Notion has no hard
// delete; archived pages can be restored from the trash.
func (s *NotionService) ArchivePage(ctx context.Context, accessToken, pageID string) error {
	req, err := s.newRequest(ctx, http.MethodPatch, "/pages/"+pageID, map[string]any{"archived": true})
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	return doJSON(ctx, s.hc, req, nil)
}

func (s *NotionService) blocks(ctx context.Context, accessToken, pageID string) ([]Block, error) {
	req, err := s.newRequest(ctx, http.MethodGet, "/blocks/"+pageID+"/children?page_size=100", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var resp struct {
		Results []map[string]any `json:"results"`
	}
	if err := doJSON(ctx, s.hc, req, &resp); err != nil {
		return nil, err
	}

	blocks := make([]Block, 0, len(resp.Results))
	for _, raw := range resp.Results {
		id, _ := raw["id"].(string)
		typ, _ := raw["type"].(string)
		blocks = append(blocks, Block{ID: id, Type: typ, Text: blockText(raw, typ)})
	}
	return blocks, nil
}

// blockText joins the plain_text runs of a block's rich_text payload.
func blockText(raw map[string]any, typ string) string {
	payload, ok := raw[typ].(map[string]any)
	if !ok {
		return ""
	}
	runs, ok := payload["rich_text"].([]any)
	if !ok {
		return ""
	}
	var parts []string
	for _, r := range runs {
		if m, ok := r.(map[string]any); ok {
			if text, ok := m["plain_text"].(string); ok {
				parts = append(parts, text)
			}
		}
	}
	return strings.Join(parts, "")
}

// titleFromProperties finds the title property regardless of its name;
// Notion databases can rename it.
func titleFromProperties(props map[string]map[string]any) string {
	for _, prop := range props {
		if prop["type"] != "title" {
			continue
		}
		runs, ok := prop["title"].([]any)
		if !ok {
			continue
		}
		var parts []string
		for _, r := range runs {
			if m, ok := r.(map[string]any); ok {
				if text, ok := m["plain_text"].(string); ok {
					parts = append(parts, text)
				}
			}
		}
		if title := strings.Join(parts, ""); title != "" {
			return title
		}
	}
	return "Untitled"
}

func richText(text string) []map[string]any {
	return []map[string]any{
		{"type": "text", "text": map[string]string{"content": text}},
	}
}

// paragraphBlocks splits content on newlines into paragraph blocks,
// keeping blank lines as empty paragraphs for spacing.
func paragraphBlocks(content string) []map[string]any {
	lines := strings.Split(content, "\n")
	blocks := make([]map[string]any, 0, len(lines))
	for _, line := range lines {
		para := map[string]any{"rich_text": []map[string]any{}}
		if line != "" {
			para["rich_text"] = richText(line)
		}
		blocks = append(blocks, map[string]any{
			"object":    "block",
			"type":      "paragraph",
			"paragraph": para,
		})
	}
	return blocks
}
