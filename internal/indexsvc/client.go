package indexsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"docchat/internal/gateway"
)

type Config struct {
	BaseURL    string
	IndexPath  string
	DeletePath string
	QueryPath  string
	Timeout    time.Duration
}

// Client talks to the index service over HTTP. Each call is a single round trip.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

var _ gateway.Index = (*Client)(nil)

func NewClient(cfg Config) *Client {
	if cfg.IndexPath == "" {
		cfg.IndexPath = "/index"
	}
	if cfg.DeletePath == "" {
		cfg.DeletePath = "/delete_milvus"
	}
	if cfg.QueryPath == "" {
		cfg.QueryPath = "/query"
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) IndexByName(ctx context.Context, name string) error {
	raw, status, err := c.do(ctx, http.MethodPost, c.endpoint(c.cfg.IndexPath, name), nil)
	if err != nil {
		return fmt.Errorf("index request failed: %w", err)
	}
	if status >= 300 {
		return fmt.Errorf("index response status %d: %s", status, errorDetail(raw))
	}
	return nil
}

func (c *Client) RemoveByName(ctx context.Context, name string) error {
	raw, status, err := c.do(ctx, http.MethodDelete, c.endpoint(c.cfg.DeletePath, name), nil)
	if err != nil {
		return fmt.Errorf("remove index request failed: %w", err)
	}
	if status >= 300 {
		detail := errorDetail(raw)
		if notIndexed(detail) {
			return fmt.Errorf("remove index: %w (%s)", gateway.ErrNotIndexed, detail)
		}
		return fmt.Errorf("remove index response status %d: %s", status, detail)
	}

	// the service reports some failures with a 2xx and a status field
	var parsed struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if len(bytes.TrimSpace(raw)) > 0 && json.Unmarshal(raw, &parsed) == nil && strings.EqualFold(parsed.Status, "error") {
		if notIndexed(parsed.Message) {
			return fmt.Errorf("remove index: %w (%s)", gateway.ErrNotIndexed, parsed.Message)
		}
		return fmt.Errorf("remove index failed: %s", parsed.Message)
	}
	return nil
}

func (c *Client) Query(ctx context.Context, text string) (string, error) {
	bodyBytes, err := json.Marshal(map[string]string{"query": text})
	if err != nil {
		return "", fmt.Errorf("marshal query request failed: %w", err)
	}

	raw, status, err := c.do(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+c.cfg.QueryPath, bodyBytes)
	if err != nil {
		return "", fmt.Errorf("query request failed: %w", err)
	}
	if status >= 300 {
		detail := errorDetail(raw)
		if notIndexed(detail) {
			return "", fmt.Errorf("query: %w (%s)", gateway.ErrNotIndexed, detail)
		}
		return "", fmt.Errorf("query response status %d: %s", status, detail)
	}

	var parsed struct {
		Response json.RawMessage `json:"response"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse query json failed: %w", err)
	}
	if len(parsed.Response) == 0 {
		return "", errors.New("empty query response")
	}
	return decodeAnswer(parsed.Response), nil
}

func (c *Client) endpoint(path, name string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + path + "?file_name=" + url.QueryEscape(name)
}

func (c *Client) do(ctx context.Context, method, target string, body []byte) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("build request failed: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response failed: %w", err)
	}
	return raw, resp.StatusCode, nil
}

// decodeAnswer accepts both a plain string and an object carrying a "response" field.
func decodeAnswer(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var nested struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil && nested.Response != "" {
		return nested.Response
	}
	return string(raw)
}

func errorDetail(raw []byte) string {
	var parsed struct {
		Detail  any    `json:"detail"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil {
		switch {
		case parsed.Detail != nil:
			if s, ok := parsed.Detail.(string); ok {
				return s
			}
			b, _ := json.Marshal(parsed.Detail)
			return string(b)
		case parsed.Error != "":
			return parsed.Error
		case parsed.Message != "":
			return parsed.Message
		}
	}
	return strings.TrimSpace(string(raw))
}

// notIndexed matches the index service's missing-collection message. A bare 404 is
// a routing failure, not an empty index.
func notIndexed(detail string) bool {
	lower := strings.ToLower(detail)
	for _, marker := range []string{"does not exist", "not exist", "collection not found", "index documents"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
