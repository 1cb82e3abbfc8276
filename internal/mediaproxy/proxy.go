// Package mediaproxy streams tenant-private storage objects to browsers
// through short-lived signed URLs, caching the URLs per process.
package mediaproxy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/suteetoe/scouting-service/pkg/apperror"
	"github.com/suteetoe/scouting-service/pkg/storage"
	"github.com/suteetoe/scouting-service/prometheus"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Terminal outcomes, also used as metric labels.
const (
	OutcomeNotModified    = "not_modified"
	OutcomeSuccess        = "success"
	OutcomeNotFound       = "not_found"
	OutcomeForbidden      = "forbidden"
	OutcomeBadGateway     = "bad_gateway"
	OutcomeGatewayTimeout = "gateway_timeout"
)

var (
	ErrObjectNotFound  = apperror.New(apperror.ENotFound, "object not found")
	ErrUpstream        = apperror.New(apperror.EBadGateway, "storage upstream failed")
	ErrUpstreamTimeout = apperror.New(apperror.EGatewayTimeout, "storage upstream timed out")
)

// Signer issues signed URLs for bucket objects.
type Signer interface {
	SignURL(ctx context.Context, bucket, objectPath string, ttl time.Duration) (string, error)
}

// Options configure a Proxy. Zero values take the defaults below.
type Options struct {
	Bucket string
	// TTL of each signed URL (15m).
	TTL time.Duration
	// ReuseMargin is the remaining lifetime below which a cached URL is
	// regenerated (5m).
	ReuseMargin time.Duration
	// FetchTimeout bounds each upstream fetch including the body (5s).
	FetchTimeout time.Duration
	// MaxAge is the browser cache lifetime in seconds (60).
	MaxAge     int
	HTTPClient *http.Client
	Now        func() time.Time
	Logger     *zap.Logger
}

// Proxy serves storage objects for one bucket.
type Proxy struct {
	signer Signer
	opts   Options
	cache  *cache
	group  singleflight.Group
}

// New returns a Proxy signing through signer.
func New(signer Signer, opts Options) *Proxy {
	if opts.TTL <= 0 {
		opts.TTL = 15 * time.Minute
	}
	if opts.ReuseMargin <= 0 {
		opts.ReuseMargin = 5 * time.Minute
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 5 * time.Second
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = 60
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Proxy{signer: signer, opts: opts, cache: newCache(opts.Now)}
}

// SetCORS writes the cross-origin headers images need.
func SetCORS(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Authorization, If-None-Match")
	h.Set("Access-Control-Expose-Headers", "ETag, Content-Length, Last-Modified")
}

// Serve answers r with the object at objectPath for tenantID. The caller
// must already have verified membership. On success the response is
// written and nil returned; on failure nothing is written and a coded error
// is returned.
func (p *Proxy) Serve(w http.ResponseWriter, r *http.Request, tenantID, objectPath string) error {
	log := p.opts.Logger
	outcome, err := p.serve(w, r, tenantID, objectPath)
	prometheus.RecordMediaOutcome(outcome)
	if err != nil {
		log.Warn("Media proxy failed",
			zap.String("tenant_id", tenantID),
			zap.String("path", objectPath),
			zap.String("outcome", outcome),
			zap.Error(err))
	}
	return err
}

func (p *Proxy) serve(w http.ResponseWriter, r *http.Request, tenantID, objectPath string) (string, error) {
	clean, err := ValidatePath(tenantID, objectPath)
	if err != nil {
		return OutcomeForbidden, err
	}
	key := tenantID + ":" + clean
	ifNoneMatch := r.Header.Get("If-None-Match")

	cached, ok := p.cache.fresh(key, p.opts.ReuseMargin)
	if ok {
		prometheus.RecordSignedURLCache("hit")
		if cached.etag != "" && etagMatches(ifNoneMatch, cached.etag) {
			p.writeNotModified(w, cached.etag)
			return OutcomeNotModified, nil
		}
	} else {
		prometheus.RecordSignedURLCache("miss")
	}

	signedURL := cached.signedURL
	if !ok {
		if signedURL, err = p.sign(r.Context(), key, clean); err != nil {
			return outcomeFor(err), err
		}
	}

	resp, cancel, err := p.fetch(r.Context(), r.Method, signedURL)
	if err == nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
		// the URL expired although the cache still trusted it
		resp.Body.Close()
		cancel()
		p.cache.evict(key)
		prometheus.RecordSignedURLCache("retry")
		if signedURL, err = p.sign(r.Context(), key, clean); err != nil {
			return outcomeFor(err), err
		}
		resp, cancel, err = p.fetch(r.Context(), r.Method, signedURL)
		if err == nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			resp.Body.Close()
			cancel()
			p.cache.evict(key)
			return OutcomeBadGateway, fmt.Errorf("signed url rejected twice: %w", ErrUpstream)
		}
	}
	if err != nil {
		err = fetchError(err)
		return outcomeFor(err), err
	}
	defer cancel()
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		p.cache.evict(key)
		return OutcomeNotFound, ErrObjectNotFound
	case resp.StatusCode >= 300:
		return OutcomeBadGateway, fmt.Errorf("upstream status %d: %w", resp.StatusCode, ErrUpstream)
	}

	etag := resp.Header.Get("ETag")
	if etag == "" {
		etag = derivedETag(clean, resp.Header.Get("Last-Modified"), resp.Header.Get("Content-Length"))
	}
	p.cache.setETag(key, signedURL, etag)

	if etagMatches(ifNoneMatch, etag) {
		p.writeNotModified(w, etag)
		return OutcomeNotModified, nil
	}

	h := w.Header()
	for _, name := range []string{"Content-Type", "Content-Length", "Last-Modified"} {
		if v := resp.Header.Get(name); v != "" {
			h.Set(name, v)
		}
	}
	p.setCacheHeaders(h, etag)
	w.WriteHeader(http.StatusOK)

	if r.Method != http.MethodHead {
		if _, err := io.Copy(w, resp.Body); err != nil {
			// headers are gone; nothing left to report to the client
			p.opts.Logger.Warn("Media stream interrupted", zap.String("path", clean), zap.Error(err))
		}
	}
	return OutcomeSuccess, nil
}

// sign issues a signed URL for key, collapsing concurrent requests. The
// shared call runs detached from any one caller's cancellation and is
// bounded by FetchTimeout; each caller still stops waiting when its own ctx
// ends.
func (p *Proxy) sign(ctx context.Context, key, objectPath string) (string, error) {
	ch := p.group.DoChan(key, func() (interface{}, error) {
		signCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.FetchTimeout)
		defer cancel()
		signed, err := p.signer.SignURL(signCtx, p.opts.Bucket, objectPath, p.opts.TTL)
		if err != nil {
			return "", err
		}
		p.cache.put(key, entry{signedURL: signed, expiresAt: p.opts.Now().Add(p.opts.TTL)})
		return signed, nil
	})

	var (
		v   interface{}
		err error
	)
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case res := <-ch:
		v, err = res.Val, res.Err
	}
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return "", ErrObjectNotFound
		}
		return "", fetchError(err)
	}
	return v.(string), nil
}

// fetch requests signedURL under the fetch timeout. cancel must be called
// once the body is consumed.
func (p *Proxy) fetch(ctx context.Context, method, signedURL string) (*http.Response, context.CancelFunc, error) {
	if method != http.MethodHead {
		method = http.MethodGet
	}
	ctx, cancel := context.WithTimeout(ctx, p.opts.FetchTimeout)
	req, err := http.NewRequestWithContext(ctx, method, signedURL, nil)
	if err != nil {
		cancel()
		return nil, nil, err
	}

	start := time.Now()
	resp, err := p.opts.HTTPClient.Do(req)
	prometheus.ObserveMediaFetch(time.Since(start))
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return resp, cancel, nil
}

func (p *Proxy) setCacheHeaders(h http.Header, etag string) {
	h.Set("ETag", etag)
	h.Set("Cache-Control", "public, max-age="+strconv.Itoa(p.opts.MaxAge)+", stale-while-revalidate=300")
	SetCORS(h)
}

func (p *Proxy) writeNotModified(w http.ResponseWriter, etag string) {
	p.setCacheHeaders(w.Header(), etag)
	w.WriteHeader(http.StatusNotModified)
}

// CachedEntries reports the number of cached signed URLs.
func (p *Proxy) CachedEntries() int { return p.cache.len() }

func fetchError(err error) error {
	var coded *apperror.Error
	if errors.As(err, &coded) {
		return err
	}
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%v: %w", err, ErrUpstreamTimeout)
	}
	return fmt.Errorf("%v: %w", err, ErrUpstream)
}

func outcomeFor(err error) string {
	switch apperror.ErrorCode(err) {
	case apperror.ENotFound:
		return OutcomeNotFound
	case apperror.EForbidden:
		return OutcomeForbidden
	case apperror.EGatewayTimeout:
		return OutcomeGatewayTimeout
	default:
		return OutcomeBadGateway
	}
}

func derivedETag(objectPath, lastModified, contentLength string) string {
	sum := sha256.Sum256([]byte(objectPath + "\x00" + lastModified + "\x00" + contentLength))
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

// etagMatches implements If-None-Match comparison, including lists and "*".
func etagMatches(header, etag string) bool {
	if header == "" || etag == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == strings.TrimPrefix(etag, "W/") {
			return true
		}
	}
	return false
}
