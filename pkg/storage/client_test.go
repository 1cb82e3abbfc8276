package storage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/storage/v1/object/sign/avatars/t1/players/p%201.png", r.URL.EscapedPath())
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))

		var body signRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 900, body.ExpiresIn)

		_ = json.NewEncoder(w).Encode(signResponse{SignedURL: "/object/sign/avatars/t1/players/p%201.png?token=abc"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "service-key")
	got, err := c.SignURL(context.Background(), "avatars", "t1/players/p 1.png", 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/storage/v1/object/sign/avatars/t1/players/p%201.png?token=abc", got)
}

func TestSignURLNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"statusCode":"404","error":"not_found","message":"Object not found"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "k").SignURL(context.Background(), "avatars", "t1/x.png", time.Minute)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestSignURLUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "k").SignURL(context.Background(), "avatars", "t1/x.png", time.Minute)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrObjectNotFound)
}

func TestSignURLNotConfigured(t *testing.T) {
	_, err := NewClient("", "").SignURL(context.Background(), "avatars", "t1/x.png", time.Minute)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
