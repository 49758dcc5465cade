package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"tangle/pkg/models"
)

// Client is the HTTP implementation of Gateway.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sets a bearer token attached to every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// NewClient creates a gateway client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do issues a request with a JSON body and decodes a JSON response into out.
// A nil out discards the response body.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return ErrCooldown
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var payload struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = json.Unmarshal(data, &payload)
		return &APIError{Status: resp.StatusCode, Message: payload.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) Roots(ctx context.Context, includeNotes, includeFullTree bool) ([]*Folder, error) {
	q := url.Values{}
	q.Set("include_notes", fmt.Sprintf("%t", includeNotes))
	q.Set("include_full_tree", fmt.Sprintf("%t", includeFullTree))

	var folders []*Folder
	if err := c.do(ctx, http.MethodGet, "/api/folders/roots?"+q.Encode(), nil, &folders); err != nil {
		return nil, err
	}
	return folders, nil
}

func (c *Client) Children(ctx context.Context, parentID string, includeNotes bool) ([]*Folder, error) {
	q := url.Values{}
	q.Set("include_notes", fmt.Sprintf("%t", includeNotes))

	var folders []*Folder
	path := "/api/folders/" + url.PathEscape(parentID) + "/children?" + q.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &folders); err != nil {
		return nil, err
	}
	return folders, nil
}

func (c *Client) FolderNotes(ctx context.Context, folderID string) ([]models.NoteRef, error) {
	path := "/api/notes/uncategorized"
	if folderID != "" {
		path = "/api/folders/" + url.PathEscape(folderID) + "/notes"
	}

	var notes []models.NoteRef
	if err := c.do(ctx, http.MethodGet, path, nil, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

func (c *Client) CreateFolder(ctx context.Context, name, color, parentID string) (*Folder, error) {
	body := map[string]any{"name": name}
	if color != "" {
		body["color"] = color
	}
	if parentID != "" {
		body["parent_id"] = parentID
	}

	var folder Folder
	if err := c.do(ctx, http.MethodPost, "/api/folders", body, &folder); err != nil {
		return nil, err
	}
	return &folder, nil
}

func (c *Client) UpdateFolder(ctx context.Context, id string, patch FolderPatch) (*Folder, error) {
	body := map[string]any{}
	if patch.Name != nil {
		body["name"] = *patch.Name
	}
	if patch.Color != nil {
		body["color"] = *patch.Color
	}
	if patch.MoveToRoot {
		body["parent_id"] = nil
	} else if patch.ParentID != nil {
		body["parent_id"] = *patch.ParentID
	}

	var folder Folder
	path := "/api/folders/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodPatch, path, body, &folder); err != nil {
		return nil, err
	}
	return &folder, nil
}

func (c *Client) DeleteFolder(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/folders/"+url.PathEscape(id), nil, nil)
}

func (c *Client) Note(ctx context.Context, id string) (*models.NoteDocument, error) {
	var note models.NoteDocument
	if err := c.do(ctx, http.MethodGet, "/api/notes/"+url.PathEscape(id), nil, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

func (c *Client) UpdateNote(ctx context.Context, id string, patch NotePatch) (*models.NoteDocument, error) {
	body := map[string]any{}
	if patch.Title != nil {
		body["title"] = *patch.Title
	}
	if patch.Content != nil {
		body["content"] = *patch.Content
	}
	if patch.SerializedState != nil {
		body["serialized_state"] = *patch.SerializedState
	}
	if patch.MoveToUncategorized {
		body["folder_id"] = nil
	} else if patch.FolderID != nil {
		body["folder_id"] = *patch.FolderID
	}

	var note models.NoteDocument
	path := "/api/notes/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodPatch, path, body, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

func (c *Client) DeleteNote(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/notes/"+url.PathEscape(id), nil, nil)
}

func (c *Client) AddTags(ctx context.Context, noteID string, names []string) ([]models.Tag, error) {
	body := map[string]any{"names": names}
	var tags []models.Tag
	path := "/api/notes/" + url.PathEscape(noteID) + "/tags"
	if err := c.do(ctx, http.MethodPost, path, body, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

func (c *Client) RemoveTags(ctx context.Context, noteID string, names []string) ([]models.Tag, error) {
	body := map[string]any{"names": names}
	var tags []models.Tag
	path := "/api/notes/" + url.PathEscape(noteID) + "/tags"
	if err := c.do(ctx, http.MethodDelete, path, body, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

func (c *Client) AddLinks(ctx context.Context, noteID string, targetNoteIDs []string) ([]models.Link, error) {
	body := map[string]any{"target_note_ids": targetNoteIDs}
	var links []models.Link
	path := "/api/notes/" + url.PathEscape(noteID) + "/links"
	if err := c.do(ctx, http.MethodPost, path, body, &links); err != nil {
		return nil, err
	}
	return links, nil
}

func (c *Client) RemoveLinks(ctx context.Context, noteID string, targetNoteIDs []string) ([]models.Link, error) {
	body := map[string]any{"target_note_ids": targetNoteIDs}
	var links []models.Link
	path := "/api/notes/" + url.PathEscape(noteID) + "/links"
	if err := c.do(ctx, http.MethodDelete, path, body, &links); err != nil {
		return nil, err
	}
	return links, nil
}

func (c *Client) SuggestTags(ctx context.Context, noteID string) (string, error) {
	var resp struct {
		JobID string `json:"job_id"`
	}
	path := "/api/notes/" + url.PathEscape(noteID) + "/suggest-tags"
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return "", err
	}
	return resp.JobID, nil
}

func (c *Client) SuggestionStatus(ctx context.Context, jobID string) (*SuggestionResult, error) {
	var result SuggestionResult
	path := "/api/suggestions/" + url.PathEscape(jobID)
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

var _ Gateway = (*Client)(nil)
