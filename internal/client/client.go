// Package client calls the docchat HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"docchat/internal/model"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"error"`
	Side    string `json:"side"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Code != "" {
		return fmt.Sprintf("%s (%s)", msg, e.Code)
	}
	return msg
}

type ChatLog struct {
	State    string          `json:"state"`
	Messages []model.Message `json:"messages"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a client for baseURL. A zero timeout waits as long as the server does.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Documents(ctx context.Context, refresh bool) ([]model.Document, error) {
	var docs []model.Document
	path := "/api/v1/documents"
	if refresh {
		path += "?refresh=true"
	}
	if err := c.do(ctx, http.MethodGet, path, nil, "", &docs, nil); err != nil {
		return nil, err
	}
	return docs, nil
}

// Upload sends one file through the orchestrated upload. On a failed task the
// returned task is still filled in when the server reported it.
func (c *Client) Upload(ctx context.Context, name string, content []byte) (*model.UploadTask, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, fmt.Errorf("build multipart body failed: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("build multipart body failed: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build multipart body failed: %w", err)
	}

	var task model.UploadTask
	var failed struct {
		Task *model.UploadTask `json:"task"`
	}
	err = c.do(ctx, http.MethodPost, "/api/v1/documents", &buf, mw.FormDataContentType(), &task, &failed)
	if err != nil {
		return failed.Task, err
	}
	return &task, nil
}

func (c *Client) Delete(ctx context.Context, name string) (*model.DeleteTask, error) {
	var task model.DeleteTask
	var failed struct {
		Task *model.DeleteTask `json:"task"`
	}
	err := c.do(ctx, http.MethodDelete, "/api/v1/documents?filename="+url.QueryEscape(name), nil, "", &task, &failed)
	if err != nil {
		return failed.Task, err
	}
	return &task, nil
}

func (c *Client) Send(ctx context.Context, content string) ([]model.Message, error) {
	body, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return nil, fmt.Errorf("marshal chat request failed: %w", err)
	}
	var resp struct {
		Messages []model.Message `json:"messages"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/chat/messages", bytes.NewReader(body), "application/json", &resp, nil); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

func (c *Client) Messages(ctx context.Context) (*ChatLog, error) {
	var log ChatLog
	if err := c.do(ctx, http.MethodGet, "/api/v1/chat/messages", nil, "", &log, nil); err != nil {
		return nil, err
	}
	return &log, nil
}

// do decodes a 2xx body into out. Otherwise it returns an *APIError and, when
// failed is set, also decodes the error body into it.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out, failed any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request failed: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response failed: %w", err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(raw, apiErr) != nil {
			apiErr.Detail = strings.TrimSpace(string(raw))
		}
		if failed != nil {
			_ = json.Unmarshal(raw, failed)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse response json failed: %w", err)
	}
	return nil
}
