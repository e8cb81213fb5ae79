// Package smoke drives a running feature registry through its HTTP API and
// checks that every operation behaves as documented.
package smoke

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okian/featreg/internal/domain/model"
)

// Doer sends one HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Health is the body of GET /api/v{id}/health.
type Health struct {
	Status    model.Status `json:"status"`
	FeatureID int64        `json:"feature_id"`
	Timestamp time.Time    `json:"timestamp"`
}

// Data is the body of GET /api/v{id}/data.
type Data struct {
	Data      string    `json:"data"`
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
}

// Client is a typed wrapper over the feature registry API.
type Client struct {
	doer    Doer
	baseURL string
}

// NewClient returns a client for the service at baseURL.
func NewClient(doer Doer, baseURL string) *Client {
	return &Client{doer: doer, baseURL: strings.TrimRight(baseURL, "/")}
}

// NewHTTPClient returns a Client backed by an *http.Client with timeout.
func NewHTTPClient(baseURL string, timeout time.Duration) *Client {
	return NewClient(&http.Client{Timeout: timeout}, baseURL)
}

// Ping checks process liveness.
func (c *Client) Ping(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/healthz", nil, http.StatusOK, nil)
}

// Register creates feature id holding data.
func (c *Client) Register(ctx context.Context, id int64, data string) (model.FeatureRecord, error) {
	var rec model.FeatureRecord
	err := c.call(ctx, http.MethodPost, featurePath(id, "register"), map[string]string{"data": data}, http.StatusCreated, &rec)
	return rec, err
}

// Health reads the health of feature id.
func (c *Client) Health(ctx context.Context, id int64) (Health, error) {
	var h Health
	err := c.call(ctx, http.MethodGet, featurePath(id, "health"), nil, http.StatusOK, &h)
	return h, err
}

// Data reads the payload of feature id.
func (c *Client) Data(ctx context.Context, id int64) (Data, error) {
	var d Data
	err := c.call(ctx, http.MethodGet, featurePath(id, "data"), nil, http.StatusOK, &d)
	return d, err
}

// Get reads the full record of feature id.
func (c *Client) Get(ctx context.Context, id int64) (model.FeatureRecord, error) {
	var rec model.FeatureRecord
	err := c.call(ctx, http.MethodGet, featurePath(id, ""), nil, http.StatusOK, &rec)
	return rec, err
}

// Update patches feature id.
func (c *Client) Update(ctx context.Context, id int64, fields model.Fields) (model.FeatureRecord, error) {
	var rec model.FeatureRecord
	err := c.call(ctx, http.MethodPatch, featurePath(id, ""), fields, http.StatusOK, &rec)
	return rec, err
}

// Delete removes feature id.
func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.call(ctx, http.MethodDelete, featurePath(id, ""), nil, http.StatusNoContent, nil)
}

// List returns every feature ordered by id.
func (c *Client) List(ctx context.Context) ([]model.FeatureRecord, error) {
	var body struct {
		Features []model.FeatureRecord `json:"features"`
	}
	err := c.call(ctx, http.MethodGet, "/api/features", nil, http.StatusOK, &body)
	return body.Features, err
}

// Changes returns up to limit recent changes, newest first.
func (c *Client) Changes(ctx context.Context, limit int) ([]model.Change, error) {
	var body struct {
		Changes []model.Change `json:"changes"`
	}
	err := c.call(ctx, http.MethodGet, "/api/changes?limit="+strconv.Itoa(limit), nil, http.StatusOK, &body)
	return body.Changes, err
}

func featurePath(id int64, op string) string {
	p := "/api/v" + strconv.FormatInt(id, 10)
	if op != "" {
		p += "/" + op
	}
	return p
}

func (c *Client) call(ctx context.Context, method, path string, in any, want int, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.doer.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, path, err)
	}

	if resp.StatusCode != want {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(raw, apiErr)
		return fmt.Errorf("%s %s: %w", method, path, apiErr)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
