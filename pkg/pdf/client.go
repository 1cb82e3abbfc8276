// Package pdf converts HTML to PDF through a Gotenberg-compatible renderer.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const convertPath = "/forms/chromium/convert/html"

// ErrNotConfigured is returned when no renderer URL is set.
var ErrNotConfigured = errors.New("pdf: renderer not configured")

type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
}

// NewClient returns a client for the renderer at baseURL. Every render is
// bounded by timeout (30s when zero).
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http:    &http.Client{},
	}
}

// Configured reports whether a renderer URL is set.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != ""
}

// Render posts html as index.html and returns the PDF bytes. A deadline
// overrun surfaces as context.DeadlineExceeded.
func (c *Client) Render(ctx context.Context, html []byte) ([]byte, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body bytes.Buffer
	contentType, err := encodeForm(&body, html)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+convertPath, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("pdf render: %w", ctx.Err())
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("pdf render status %d", resp.StatusCode)
	}
	out, err := io.ReadAll(resp.Body)
	if err != nil && ctx.Err() != nil {
		return nil, fmt.Errorf("pdf render: %w", ctx.Err())
	}
	return out, err
}

// encodeForm writes the renderer's multipart form for html to w and returns
// its content type.
func encodeForm(w io.Writer, html []byte) (string, error) {
	mw := multipart.NewWriter(w)
	part, err := mw.CreateFormFile("files", "index.html")
	if err != nil {
		return "", fmt.Errorf("pdf form: %w", err)
	}
	if _, err := part.Write(html); err != nil {
		return "", fmt.Errorf("pdf form: %w", err)
	}
	for _, f := range [][2]string{{"printBackground", "true"}, {"preferCssPageSize", "true"}} {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return "", fmt.Errorf("pdf form field %s: %w", f[0], err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("pdf form: %w", err)
	}
	return mw.FormDataContentType(), nil
}
