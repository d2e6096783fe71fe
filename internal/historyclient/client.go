// Package historyclient talks to the ledger API and keeps a local cache of
// the caller's history with optimistic appends.
package historyclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/finlog/backend/internal/ledger"
	"github.com/finlog/backend/internal/models"
	"github.com/finlog/backend/internal/services"
	"github.com/finlog/backend/internal/version"
)

var userAgent = version.UserAgent("historyclient")

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ledger api: %d %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// UndoResponse is the body returned by a successful undo.
type UndoResponse struct {
	Success        bool            `json:"success"`
	Message        string          `json:"message"`
	RestoredEntity json.RawMessage `json:"restored_entity"`
}

// Client calls the /api/history endpoints with a bearer token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient returns a Client for the server at baseURL (e.g. "http://localhost:8080").
// A nil httpClient uses a client with a 15 second timeout.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), token: token, http: httpClient}
}

// List fetches the records matching f, newest first.
func (c *Client) List(ctx context.Context, f ledger.Filter) ([]models.ActionRecord, error) {
	var out []models.ActionRecord
	path := "/api/history?" + f.Values().Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Record appends one entry and returns the server's copy.
func (c *Client) Record(ctx context.Context, in services.RecordInput) (*models.ActionRecord, error) {
	var out models.ActionRecord
	if err := c.do(ctx, http.MethodPost, "/api/history/add", in, &out); err != nil {
		return nil, err
	}
	// The add endpoint echoes only the header fields.
	if len(out.OldData) == 0 && !models.IsAbsentJSON(in.OldData) {
		out.OldData = datatypes.JSON(in.OldData)
	}
	if len(out.NewData) == 0 && !models.IsAbsentJSON(in.NewData) {
		out.NewData = datatypes.JSON(in.NewData)
	}
	return &out, nil
}

// Undo reverses the record with the given id.
func (c *Client) Undo(ctx context.Context, id uint) (*UndoResponse, error) {
	var out UndoResponse
	if err := c.do(ctx, http.MethodPost, "/api/history/undo", map[string]uint{"id": id}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
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

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &payload) != nil || payload.Error == "" {
			payload.Error = strings.TrimSpace(string(raw))
		}
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
