package locale

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ppiankov/cslbridge/internal/model"
	"github.com/ppiankov/cslbridge/internal/util"
	"github.com/ppiankov/cslbridge/internal/worker"
)

const maxFetchAttempts = 3

// fetchSleepFunc is replaced in tests
var fetchSleepFunc = time.Sleep

// StatusError is a non-2xx response from the locale server
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.Code, e.Status)
}

// HTTPFetcher downloads locale files from a locales repository mirror
type HTTPFetcher struct {
	client    *http.Client
	baseURL   string
	userAgent string
	maxBytes  int64
	limiter   *worker.Limiter
	robots    *util.RobotsChecker
}

// NewHTTPFetcher builds a fetcher from locale configuration
func NewHTTPFetcher(cfg model.LocaleConfig) (*HTTPFetcher, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("locale base URL is empty")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}

	client, err := util.NewHTTPClient(cfg.Timeout, cfg.HTTPProxy, cfg.HTTPSProxy)
	if err != nil {
		return nil, fmt.Errorf("create http client: %w", err)
	}

	maxBytes := cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}

	f := &HTTPFetcher{
		client:    client,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		maxBytes:  maxBytes,
		limiter:   worker.NewLimiter(cfg.RatePerSecond, cfg.Burst),
	}
	if cfg.RespectRobots {
		f.robots = util.NewRobotsChecker(client, cfg.UserAgent)
	}
	return f, nil
}

// URL returns the locale file URL for a normalized tag
func (f *HTTPFetcher) URL(tag string) string {
	return f.baseURL + "/" + FileName(tag)
}

// RetrieveLocale downloads the locale for lang
func (f *HTTPFetcher) RetrieveLocale(ctx context.Context, lang string) (string, error) {
	tag, err := NormalizeTag(lang)
	if err != nil {
		return "", err
	}
	target := f.URL(tag)

	var delay time.Duration
	if f.robots != nil {
		allowed, crawlDelay, err := f.robots.CanFetch(ctx, target)
		if err != nil {
			return "", fmt.Errorf("check robots.txt: %w", err)
		}
		if !allowed {
			return "", fmt.Errorf("%w: %s", ErrDisallowed, target)
		}
		delay = crawlDelay
	}

	if err := f.limiter.WaitWithDelay(ctx, target, delay); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}

	body, err := f.fetchWithRetry(ctx, target)
	if err != nil {
		var status *StatusError
		if errors.As(err, &status) && status.Code == http.StatusNotFound {
			return "", fmt.Errorf("%w: %s: %w", ErrLocaleNotFound, tag, err)
		}
		return "", err
	}

	if !strings.Contains(body, "<locale") {
		return "", fmt.Errorf("response for %s is not a locale document", tag)
	}
	return body, nil
}

// fetchWithRetry retries transient failures with linear backoff
func (f *HTTPFetcher) fetchWithRetry(ctx context.Context, target string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= maxFetchAttempts; attempt++ {
		body, err := f.fetch(ctx, target)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if !isRetryableFetchError(err) || ctx.Err() != nil {
			return "", err
		}
		if attempt < maxFetchAttempts {
			fetchSleepFunc(time.Duration(attempt) * time.Second)
		}
	}
	return "", lastErr
}

func (f *HTTPFetcher) fetch(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/xml,text/xml;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{Code: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}

// isRetryableFetchError reports whether err is a throttling, server-side or transport failure
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}

	var status *StatusError
	if errors.As(err, &status) {
		return status.Code == http.StatusTooManyRequests || status.Code >= 500
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	return false
}
