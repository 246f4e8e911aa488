// Package ipac talks to the external policy database that keeps a queryable
// copy of every IP access policy, keyed by the cluster-assigned UID.
package ipac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/VEEP09/xc-test-apim/internal/logger"
	"github.com/VEEP09/xc-test-apim/internal/metrics"
	"github.com/VEEP09/xc-test-apim/internal/util"
)

const upstreamName = "ipac"

// ErrNotFound is matched by a StatusError carrying 404.
var ErrNotFound = errors.New("ipac: record not found")

// Record is one row of the policy database.
type Record struct {
	PolicyName string   `json:"PolicyName"`
	ID         string   `json:"Id"`
	IPArr      []string `json:"IPArr"`
	ApplyRange string   `json:"ApplyRange"`
}

// StatusError reports a response with status >= 300.
type StatusError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ipac %s: status %d: %s", e.Op, e.StatusCode, e.Message)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// TransportError reports that the database could not be reached.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("ipac %s: execute request: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Client is a REST client for the policy database.
type Client struct {
	http    *resty.Client
	backoff util.Backoff
}

// NewClient builds a client rooted at baseURL, e.g. http://db:8123/db/ipac/.
func NewClient(baseURL string, timeout time.Duration, backoff util.Backoff) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetLogger(logger.Component(upstreamName)).
		SetHeader("Accept", "application/json")

	return &Client{http: httpClient, backoff: backoff}
}

// List returns every row.
func (c *Client) List(ctx context.Context) ([]Record, error) {
	var rows []Record
	if err := c.do(ctx, "list", http.MethodGet, "/", nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Get returns the row stored under id.
func (c *Client) Get(ctx context.Context, id string) (*Record, error) {
	var row Record
	if err := c.do(ctx, "get", http.MethodGet, itemPath(id), nil, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// Create inserts a new row; rec.ID must hold the cluster UID. It is sent
// once: a POST whose answer was lost may already be committed.
func (c *Client) Create(ctx context.Context, rec Record) error {
	return c.send(ctx, "create", http.MethodPost, "/", rec, nil)
}

// Update replaces the row stored under id.
func (c *Client) Update(ctx context.Context, id string, rec Record) error {
	return c.do(ctx, "update", http.MethodPut, itemPath(id), rec, nil)
}

// Delete removes the row stored under id.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, "delete", http.MethodDelete, itemPath(id), nil, nil)
}

func itemPath(id string) string {
	return "/" + url.PathEscape(id)
}

// do retries transient failures of idempotent requests.
func (c *Client) do(ctx context.Context, op, method, path string, body, out interface{}) error {
	return c.backoff.Do(ctx, IsTransient, func(ctx context.Context) error {
		return c.send(ctx, op, method, path, body, out)
	})
}

func (c *Client) send(ctx context.Context, op, method, path string, body, out interface{}) error {
	log := logger.Component(upstreamName).WithField("op", op)

	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		metrics.IncUpstreamRequest(upstreamName, "error")
		log.WithError(err).Warn("policy database unreachable")
		return &TransportError{Op: op, Err: err}
	}

	metrics.IncUpstreamRequest(upstreamName, statusClass(resp.StatusCode()))
	if resp.StatusCode() >= http.StatusMultipleChoices {
		log.WithField("status", resp.StatusCode()).Debug("policy database rejected request")
		return &StatusError{Op: op, StatusCode: resp.StatusCode(), Message: errorMessage(resp.Body())}
	}

	if out != nil {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("ipac %s: decode response: %w", op, err)
		}
	}
	return nil
}

// IsTransient reports whether err is worth retrying: 5xx answers and
// transport failures, but never 4xx or a cancelled request.
func IsTransient(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= http.StatusInternalServerError
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	return false
}

// StatusCode extracts the HTTP status of err, or 0.
func StatusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

// errorMessage pulls a human readable reason out of an error body.
func errorMessage(body []byte) string {
	if len(body) == 0 {
		return "empty response"
	}
	if gjson.ValidBytes(body) {
		for _, key := range []string{"detail", "message", "error"} {
			if v := gjson.GetBytes(body, key); v.Exists() {
				return util.Truncate(v.String(), 512)
			}
		}
	}
	return util.Truncate(util.SanitizeForLog(string(body)), 512)
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}
