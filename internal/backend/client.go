// Package backend talks to the institution's REST API, which persists
// events, sectors and users. It converts wire records into model.Event,
// including the fixed type-code lookup and wall-clock timestamp parsing.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	appLog "eventdesk/internal/log"
	"eventdesk/internal/model"
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend: %s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// ErrNotFound matches a 404 StatusError via errors.Is.
var ErrNotFound = errors.New("backend: not found")

func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Code == http.StatusNotFound
}

// Client is a thin JSON client for the backend's REST endpoints.
type Client struct {
	baseURL string
	token   string
	loc     *time.Location
	http    *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sends the token as a bearer credential.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithLocation sets the zone backend wall-clock times are read in.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) { c.loc = loc }
}

// NewClient creates a Client for baseURL (e.g. "https://host/api").
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL: baseURL,
		loc:     time.Local,
		http:    &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListEvents fetches every event. Records that cannot be normalized are
// skipped and logged.
func (c *Client) ListEvents(ctx context.Context) ([]model.Event, error) {
	var records []EventRecord
	if err := c.do(ctx, http.MethodGet, "/events", nil, &records); err != nil {
		return nil, err
	}

	events := make([]model.Event, 0, len(records))
	skipped := 0
	for _, rec := range records {
		ev, err := rec.ToEvent(c.loc)
		if err != nil {
			skipped++
			appLog.Debug("backend: skipping event record", "id", rec.ID.String(), "reason", err.Error())
			continue
		}
		events = append(events, ev)
	}
	if skipped > 0 {
		appLog.Warn("backend: skipped unusable event records", "skipped", skipped, "kept", len(events))
	}
	return events, nil
}

// CreateEvent posts a new event and returns it as stored by the backend.
func (c *Client) CreateEvent(ctx context.Context, in EventInput) (model.Event, error) {
	var rec EventRecord
	if err := c.do(ctx, http.MethodPost, "/events", in, &rec); err != nil {
		return model.Event{}, err
	}
	return rec.ToEvent(c.loc)
}

// UpdateEvent replaces an existing event and returns the stored version.
func (c *Client) UpdateEvent(ctx context.Context, id model.EventID, in EventInput) (model.Event, error) {
	var rec EventRecord
	if err := c.do(ctx, http.MethodPut, "/events/"+url.PathEscape(string(id)), in, &rec); err != nil {
		return model.Event{}, err
	}
	return rec.ToEvent(c.loc)
}

// DeleteEvent removes an event.
func (c *Client) DeleteEvent(ctx context.Context, id model.EventID) error {
	return c.do(ctx, http.MethodDelete, "/events/"+url.PathEscape(string(id)), nil, nil)
}

// ListSectors fetches the institution's sectors.
func (c *Client) ListSectors(ctx context.Context) ([]Sector, error) {
	var out []Sector
	if err := c.do(ctx, http.MethodGet, "/sectors", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListUsers fetches staff members.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var out []User
	if err := c.do(ctx, http.MethodGet, "/users", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("backend: encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	appLog.Debug("backend request", "method", method, "path", path, "status", resp.StatusCode, "elapsed", time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: string(bytes.TrimSpace(snippet))}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("backend: decode %s %s: %w", method, path, err)
	}
	return nil
}
