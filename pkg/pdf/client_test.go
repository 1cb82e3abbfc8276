package pdf

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, convertPath, r.URL.Path)
		f, hdr, err := r.FormFile("files")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "index.html", hdr.Filename)
		b, _ := io.ReadAll(f)
		assert.Equal(t, "<h1>Report</h1>", string(b))

		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.7"))
	}))
	defer srv.Close()

	out, err := NewClient(srv.URL, time.Second).Render(context.Background(), []byte("<h1>Report</h1>"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(out))
}

func TestRenderTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, 50*time.Millisecond).Render(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRenderNotConfigured(t *testing.T) {
	_, err := NewClient("", 0).Render(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

type shortWriter struct{ left int }

func (w *shortWriter) Write(p []byte) (int, error) {
	if len(p) > w.left {
		n := w.left
		w.left = 0
		return n, io.ErrShortWrite
	}
	w.left -= len(p)
	return len(p), nil
}

func TestEncodeFormReportsWriteErrors(t *testing.T) {
	html := []byte("<html><body>report</body></html>")

	var full countingWriter
	contentType, err := encodeForm(&full, html)
	require.NoError(t, err)
	assert.Contains(t, contentType, "multipart/form-data; boundary=")

	// every cut, including inside the trailing form fields, must fail
	for limit := 0; limit < full.n; limit++ {
		_, err := encodeForm(&shortWriter{left: limit}, html)
		require.Error(t, err, "limit %d", limit)
		assert.ErrorIs(t, err, io.ErrShortWrite)
	}
}

type countingWriter struct{ n int }

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += len(p)
	return len(p), nil
}
