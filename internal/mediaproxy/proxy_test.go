package mediaproxy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/suteetoe/scouting-service/pkg/apperror"
	"github.com/suteetoe/scouting-service/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// countingSigner hands out <base>/<path>?token=<n>.
type countingSigner struct {
	base  string
	calls atomic.Int32
	err   error
}

func (s *countingSigner) SignURL(ctx context.Context, bucket, objectPath string, ttl time.Duration) (string, error) {
	n := s.calls.Add(1)
	if s.err != nil {
		return "", s.err
	}
	return s.base + "/" + bucket + "/" + objectPath + "?token=" + string(rune('0'+n)), nil
}

type harness struct {
	proxy    *Proxy
	signer   *countingSigner
	clock    *fakeClock
	upstream atomic.Int32
}

func newHarness(t *testing.T, handler func(h *harness, w http.ResponseWriter, r *http.Request)) *harness {
	t.Helper()
	h := &harness{clock: &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.upstream.Add(1)
		handler(h, w, r)
	}))
	t.Cleanup(srv.Close)

	h.signer = &countingSigner{base: srv.URL}
	h.proxy = New(h.signer, Options{
		Bucket:       "avatars",
		FetchTimeout: 200 * time.Millisecond,
		Now:          h.clock.Now,
	})
	return h
}

func servePNG(_ *harness, w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("ETag", `"v1"`)
	w.Header().Set("Last-Modified", "Sun, 01 Mar 2026 10:00:00 GMT")
	_, _ = w.Write([]byte("png-bytes"))
}

func (h *harness) do(method, objectPath, ifNoneMatch string) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(method, "/api/media/avatar", nil)
	if ifNoneMatch != "" {
		req.Header.Set("If-None-Match", ifNoneMatch)
	}
	rec := httptest.NewRecorder()
	return rec, h.proxy.Serve(rec, req, "t1", objectPath)
}

func TestServeStreamsAndReusesSignedURL(t *testing.T) {
	h := newHarness(t, servePNG)

	rec, err := h.do(http.MethodGet, "t1/players/p1.png", "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png-bytes", rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, `"v1"`, rec.Header().Get("ETag"))
	assert.Equal(t, "Sun, 01 Mar 2026 10:00:00 GMT", rec.Header().Get("Last-Modified"))
	assert.Equal(t, "public, max-age=60, stale-while-revalidate=300", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec, err = h.do(http.MethodGet, "t1/players/p1.png", "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, int32(1), h.signer.calls.Load())
	assert.Equal(t, int32(2), h.upstream.Load())
	assert.Equal(t, 1, h.proxy.CachedEntries())
}

func TestServeNotModifiedFromCache(t *testing.T) {
	h := newHarness(t, servePNG)

	_, err := h.do(http.MethodGet, "t1/players/p1.png", "")
	require.NoError(t, err)

	rec, err := h.do(http.MethodGet, "t1/players/p1.png", `"v1"`)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, int32(1), h.upstream.Load())
}

func TestServeRegeneratesNearExpiry(t *testing.T) {
	h := newHarness(t, servePNG)

	_, err := h.do(http.MethodGet, "t1/players/p1.png", "")
	require.NoError(t, err)

	h.clock.Advance(9 * time.Minute)
	_, err = h.do(http.MethodGet, "t1/players/p1.png", "")
	require.NoError(t, err)
	assert.Equal(t, int32(1), h.signer.calls.Load())

	// 4 minutes left, under the reuse margin
	h.clock.Advance(2 * time.Minute)
	rec, err := h.do(http.MethodGet, "t1/players/p1.png", `"v1"`)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Equal(t, int32(2), h.signer.calls.Load())
	assert.Equal(t, int32(3), h.upstream.Load())
}

func TestServeRetriesOnceOnExpiredURL(t *testing.T) {
	h := newHarness(t, func(h *harness, w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") == "1" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		servePNG(h, w, r)
	})

	rec, err := h.do(http.MethodGet, "t1/players/p1.png", "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(2), h.signer.calls.Load())
	assert.Equal(t, int32(2), h.upstream.Load())
}

func TestServeGivesUpAfterSecondRejection(t *testing.T) {
	h := newHarness(t, func(_ *harness, w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	rec, err := h.do(http.MethodGet, "t1/players/p1.png", "")
	require.Error(t, err)
	assert.Equal(t, apperror.EBadGateway, apperror.ErrorCode(err))
	assert.Equal(t, int32(2), h.signer.calls.Load())
	assert.Equal(t, int32(2), h.upstream.Load())
	assert.Equal(t, 0, h.proxy.CachedEntries())
	assert.Empty(t, rec.Body.String())
}

func TestServeUpstreamFailures(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		h := newHarness(t, func(_ *harness, w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		_, err := h.do(http.MethodGet, "t1/players/missing.png", "")
		assert.ErrorIs(t, err, ErrObjectNotFound)
	})

	t.Run("server error", func(t *testing.T) {
		h := newHarness(t, func(_ *harness, w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		_, err := h.do(http.MethodGet, "t1/players/p1.png", "")
		assert.Equal(t, apperror.EBadGateway, apperror.ErrorCode(err))
	})

	t.Run("timeout", func(t *testing.T) {
		h := newHarness(t, func(_ *harness, w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		})
		_, err := h.do(http.MethodGet, "t1/players/p1.png", "")
		assert.Equal(t, apperror.EGatewayTimeout, apperror.ErrorCode(err))
	})

	t.Run("signer reports missing object", func(t *testing.T) {
		h := newHarness(t, servePNG)
		h.signer.err = storage.ErrObjectNotFound
		_, err := h.do(http.MethodGet, "t1/players/p1.png", "")
		assert.ErrorIs(t, err, ErrObjectNotFound)
		assert.Zero(t, h.upstream.Load())
	})
}

func TestServeRejectsForeignPathsFirst(t *testing.T) {
	h := newHarness(t, servePNG)

	for _, p := range []string{
		"t2/players/p1.png",
		"t1/../t2/players/p1.png",
		"/t1/players/p1.png",
		"t1",
		"t10/players/p1.png",
		"",
	} {
		_, err := h.do(http.MethodGet, p, "")
		assert.ErrorIs(t, err, ErrForbiddenPath, p)
	}
	assert.Zero(t, h.signer.calls.Load())
	assert.Zero(t, h.upstream.Load())
}

func TestServeHEAD(t *testing.T) {
	h := newHarness(t, func(h *harness, w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Content-Length", "1234")
	})

	rec, err := h.do(http.MethodHead, "t1/players/p1.jpg", "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, "1234", rec.Header().Get("Content-Length"))
	// derived etag when upstream sends none
	assert.True(t, strings.HasPrefix(rec.Header().Get("ETag"), `"`))
}

func TestValidatePath(t *testing.T) {
	got, err := ValidatePath("t1", "t1/players/./p1.png")
	require.NoError(t, err)
	assert.Equal(t, "t1/players/p1.png", got)

	_, err = ValidatePath("t1", `t1\..\t2\x.png`)
	assert.ErrorIs(t, err, ErrForbiddenPath)
	_, err = ValidatePath("", "t1/x.png")
	assert.ErrorIs(t, err, ErrForbiddenPath)
}

func TestETagMatches(t *testing.T) {
	assert.True(t, etagMatches(`"a", "b"`, `"b"`))
	assert.True(t, etagMatches(`W/"a"`, `"a"`))
	assert.True(t, etagMatches("*", `"a"`))
	assert.False(t, etagMatches(`"a"`, `"b"`))
	assert.False(t, etagMatches("", `"b"`))
}

// gatedSigner blocks until released and reports the context state it saw.
type gatedSigner struct {
	inner   *countingSigner
	started chan struct{}
	release chan struct{}
	seen    chan error
}

func (s *gatedSigner) SignURL(ctx context.Context, bucket, objectPath string, ttl time.Duration) (string, error) {
	close(s.started)
	<-s.release
	s.seen <- ctx.Err()
	return s.inner.SignURL(ctx, bucket, objectPath, ttl)
}

func TestSigningOutlivesCancelledCaller(t *testing.T) {
	h := newHarness(t, servePNG)
	gate := &gatedSigner{inner: h.signer, started: make(chan struct{}), release: make(chan struct{}), seen: make(chan error, 1)}
	h.proxy.signer = gate

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		req := httptest.NewRequest(http.MethodGet, "/api/media/avatar", nil).WithContext(ctx)
		errc <- h.proxy.Serve(httptest.NewRecorder(), req, "t1", "t1/players/p1.png")
	}()

	<-gate.started
	cancel()
	require.Error(t, <-errc)

	close(gate.release)
	require.NoError(t, <-gate.seen)
	require.Eventually(t, func() bool { return h.proxy.CachedEntries() == 1 }, time.Second, 5*time.Millisecond)

	rec, err := h.do(http.MethodGet, "t1/players/p1.png", "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(1), h.signer.calls.Load())
}
