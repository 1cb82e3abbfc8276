// Package storage issues signed object URLs from the platform's storage API.
package storage

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
)

const (
	signPath           = "/storage/v1/object/sign/"
	defaultHTTPTimeout = 10 * time.Second
)

var (
	// ErrObjectNotFound is returned when the bucket has no such object.
	ErrObjectNotFound = errors.New("storage: object not found")
	// ErrNotConfigured is returned when the platform URL or key is missing.
	ErrNotConfigured = errors.New("storage: not configured")
)

// Client signs object URLs with the service role key.
type Client struct {
	baseURL    string
	serviceKey string
	http       *http.Client
}

type signRequest struct {
	ExpiresIn int `json:"expiresIn"`
}

type signResponse struct {
	SignedURL string `json:"signedURL"`
}

type errorResponse struct {
	StatusCode string `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

// NewClient returns a client for the platform at baseURL.
func NewClient(baseURL, serviceKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		http:       &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// SignURL returns an absolute URL granting read access to bucket/objectPath
// for ttl.
func (c *Client) SignURL(ctx context.Context, bucket, objectPath string, ttl time.Duration) (string, error) {
	if c.baseURL == "" || c.serviceKey == "" {
		return "", ErrNotConfigured
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(signRequest{ExpiresIn: int(ttl / time.Second)}); err != nil {
		return "", err
	}

	endpoint := c.baseURL + signPath + url.PathEscape(bucket) + "/" + escapePath(objectPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("apikey", c.serviceKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		if isNotFound(resp.StatusCode, body) {
			return "", ErrObjectNotFound
		}
		return "", fmt.Errorf("storage sign status %d", resp.StatusCode)
	}

	var out signResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.SignedURL == "" {
		return "", errors.New("storage sign: empty signedURL")
	}
	if strings.HasPrefix(out.SignedURL, "http://") || strings.HasPrefix(out.SignedURL, "https://") {
		return out.SignedURL, nil
	}
	return c.baseURL + "/storage/v1" + ensureLeadingSlash(out.SignedURL), nil
}

// the storage API reports missing objects as 400 with a not-found body
func isNotFound(status int, body []byte) bool {
	if status == http.StatusNotFound {
		return true
	}
	var e errorResponse
	if json.Unmarshal(body, &e) != nil {
		return false
	}
	return e.StatusCode == "404" || strings.Contains(strings.ToLower(e.Error+" "+e.Message), "not found")
}

func escapePath(p string) string {
	parts := strings.Split(strings.TrimLeft(p, "/"), "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return strings.Join(parts, "/")
}

func ensureLeadingSlash(s string) string {
	if strings.HasPrefix(s, "/") {
		return s
	}
	return "/" + s
}
