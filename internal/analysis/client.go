// Package analysis is the HTTP client for the external spending-analysis
// service. The service's scoring logic is opaque: scores are consumed as
// numbers and never interpreted beyond the advisory threshold.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"smartfinance/internal/core"
)

const (
	analyzePath     = "/analyze_spending"
	transactionPath = "/new_transaction"
	feedbackPath    = "/feedback"

	csvField = "csv"

	// maxBody bounds how much of a response is read.
	maxBody = 4 << 20
)

var ErrNotConfigured = errors.New("analysis service not configured")

// StatusError reports a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("analysis service returned %d: %s", e.Code, e.Body)
}

type (
	ScoreRequest struct {
		Description string
		Category    string
		Amount      string
	}

	// Score is the advisory response. Value is clamped to [0,1].
	Score struct {
		Value        float64
		Reason       string
		Alternatives string
	}
)

type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a client. An empty baseURL yields a client whose calls fail
// with ErrNotConfigured.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// WithHTTPClient replaces the transport, used by tests.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

func (c *Client) Configured() bool { return c != nil && c.baseURL != "" }

// AnalyzeSpending uploads a CSV statement and returns the raw JSON payload.
// Decoding is left to the insights package so a malformed body degrades to
// placeholders instead of an error.
func (c *Client) AnalyzeSpending(ctx context.Context, filename string, r io.Reader) ([]byte, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if filename == "" {
		filename = "statement.csv"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(csvField, filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("copy csv: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+analyzePath, &buf)
	if err != nil {
		return nil, fmt.Errorf("build analyze request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("analyze spending: %w", err)
	}
	return body, nil
}

// ScoreTransaction asks the service how sensible a new transaction looks.
func (c *Client) ScoreTransaction(ctx context.Context, in ScoreRequest) (Score, error) {
	if !c.Configured() {
		return Score{}, ErrNotConfigured
	}
	form := url.Values{}
	form.Set("description", in.Description)
	form.Set("category", in.Category)
	form.Set("amount", in.Amount)

	body, err := c.postForm(ctx, transactionPath, form)
	if err != nil {
		return Score{}, fmt.Errorf("score transaction: %w", err)
	}
	s, err := decodeScore(body)
	if err != nil {
		return Score{}, fmt.Errorf("score transaction: %w", err)
	}
	return s, nil
}

// SendFeedback posts the user's necessary/unnecessary answer. The response
// body is discarded.
func (c *Client) SendFeedback(ctx context.Context, e core.FeedbackEntry) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	form := url.Values{}
	form.Set("description", e.Description)
	form.Set("category", e.Category)
	form.Set("amount", e.Amount.String())
	form.Set("necessary", strconv.FormatBool(e.Necessary))
	form.Set("reason", e.Reason)

	if _, err := c.postForm(ctx, feedbackPath, form); err != nil {
		return fmt.Errorf("send feedback: %w", err)
	}
	return nil
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: truncate(string(body), 512)}
	}
	return body, nil
}

// scoreResponse accepts either score field name. Alternatives may arrive as a
// string or a list of strings.
type scoreResponse struct {
	SmartSpend     *float64        `json:"smartSpend"`
	NecessarySpend *float64        `json:"necessarySpend"`
	Reason         string          `json:"reason"`
	Alternatives   json.RawMessage `json:"alternatives"`
}

var errNoScore = errors.New("response carries no score")

func decodeScore(body []byte) (Score, error) {
	var resp scoreResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Score{}, fmt.Errorf("decode score: %w", err)
	}
	var v float64
	switch {
	case resp.SmartSpend != nil:
		v = *resp.SmartSpend
	case resp.NecessarySpend != nil:
		v = *resp.NecessarySpend
	default:
		return Score{}, errNoScore
	}
	return Score{
		Value:        min(max(v, 0), 1),
		Reason:       resp.Reason,
		Alternatives: decodeAlternatives(resp.Alternatives),
	}, nil
}

func decodeAlternatives(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var list []string
	if json.Unmarshal(raw, &list) == nil {
		return strings.Join(list, "; ")
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
