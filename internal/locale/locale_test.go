package locale

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/cslbridge/internal/cache"
	"github.com/ppiankov/cslbridge/internal/model"
)

const enUS = `<?xml version="1.0" encoding="utf-8"?><locale xmlns="http://purl.org/net/xbiblio/csl" version="1.0" xml:lang="en-US"/>`

func noSleep(t *testing.T) {
	t.Helper()
	orig := fetchSleepFunc
	fetchSleepFunc = func(d time.Duration) {}
	t.Cleanup(func() { fetchSleepFunc = orig })
}

func testFetcher(t *testing.T, baseURL string, robots bool) *HTTPFetcher {
	t.Helper()
	cfg := model.DefaultConfig().Locale
	cfg.BaseURL = baseURL
	cfg.RatePerSecond = 0
	cfg.RespectRobots = robots
	f, err := NewHTTPFetcher(cfg)
	if err != nil {
		t.Fatalf("NewHTTPFetcher: %v", err)
	}
	return f
}

func TestNormalizeTag(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"en-US", "en-US", false},
		{"en_us", "en-US", false},
		{" de ", "de-DE", false},
		{"zh-Hant", "zh-Hant", false},
		{"ar", "ar", false},
		{"xx", "xx", false},
		{"", "", true},
		{"en--US", "", true},
		{"../etc", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeTag(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("NormalizeTag(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeTag(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "locales-en-US.xml"), []byte(enUS), 0o644); err != nil {
		t.Fatal(err)
	}
	src := DirSource{Dir: dir}

	xml, err := src.RetrieveLocale(context.Background(), "en")
	if err != nil {
		t.Fatalf("RetrieveLocale: %v", err)
	}
	if xml != enUS {
		t.Errorf("unexpected locale %q", xml)
	}

	if _, err := src.RetrieveLocale(context.Background(), "fr-FR"); !errors.Is(err, ErrLocaleNotFound) {
		t.Errorf("expected ErrLocaleNotFound, got %v", err)
	}
}

func TestHTTPFetcher_Success(t *testing.T) {
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		if ua := r.Header.Get("User-Agent"); ua == "" {
			t.Error("missing User-Agent")
		}
		_, _ = fmt.Fprint(w, enUS)
	}))
	defer server.Close()

	f := testFetcher(t, server.URL+"/locales/", false)
	xml, err := f.RetrieveLocale(context.Background(), "en_US")
	if err != nil {
		t.Fatalf("RetrieveLocale: %v", err)
	}
	if xml != enUS {
		t.Errorf("unexpected body %q", xml)
	}
	if path != "/locales/locales-en-US.xml" {
		t.Errorf("unexpected path %s", path)
	}
}

func TestHTTPFetcher_TransientThenSuccess(t *testing.T) {
	noSleep(t)
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = fmt.Fprint(w, enUS)
	}))
	defer server.Close()

	if _, err := testFetcher(t, server.URL, false).RetrieveLocale(context.Background(), "en-US"); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestHTTPFetcher_AllRetriesExhausted(t *testing.T) {
	noSleep(t)
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := testFetcher(t, server.URL, false).RetrieveLocale(context.Background(), "en-US")
	var status *StatusError
	if !errors.As(err, &status) || status.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 StatusError, got %v", err)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestHTTPFetcher_NotFoundIsNotRetried(t *testing.T) {
	noSleep(t)
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := testFetcher(t, server.URL, false).RetrieveLocale(context.Background(), "xx-YY")
	if !errors.Is(err, ErrLocaleNotFound) {
		t.Errorf("expected ErrLocaleNotFound, got %v", err)
	}
	if attempts.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts.Load())
	}
}

func TestHTTPFetcher_RejectsNonLocale(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, "<html>maintenance</html>")
	}))
	defer server.Close()

	if _, err := testFetcher(t, server.URL, false).RetrieveLocale(context.Background(), "en-US"); err == nil {
		t.Error("expected error for non-locale body")
	}
}

func TestHTTPFetcher_RobotsDisallow(t *testing.T) {
	var localeHits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = fmt.Fprint(w, "User-agent: *\nDisallow: /\n")
			return
		}
		localeHits.Add(1)
		_, _ = fmt.Fprint(w, enUS)
	}))
	defer server.Close()

	_, err := testFetcher(t, server.URL, true).RetrieveLocale(context.Background(), "en-US")
	if !errors.Is(err, ErrDisallowed) {
		t.Errorf("expected ErrDisallowed, got %v", err)
	}
	if localeHits.Load() != 0 {
		t.Errorf("expected no locale request, got %d", localeHits.Load())
	}
}

func TestNewHTTPFetcher_EmptyBaseURL(t *testing.T) {
	if _, err := NewHTTPFetcher(model.LocaleConfig{}); err == nil {
		t.Error("expected error for empty base URL")
	}
}

func TestIsRetryableFetchError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil", nil, false},
		{"503", &StatusError{Code: 503}, true},
		{"500 wrapped", fmt.Errorf("fetch: %w", &StatusError{Code: 500}), true},
		{"429", &StatusError{Code: 429}, true},
		{"404", &StatusError{Code: 404}, false},
		{"403", &StatusError{Code: 403}, false},
		{"transport", fmt.Errorf("fetch: %w", &url.Error{Op: "Get", URL: "https://x", Err: errors.New("connection refused")}), true},
		{"plain", errors.New("read body: unexpected EOF"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableFetchError(tt.err); got != tt.retryable {
				t.Errorf("isRetryableFetchError(%v) = %v, want %v", tt.err, got, tt.retryable)
			}
		})
	}
}

func TestChain(t *testing.T) {
	dirMiss := DirSource{Dir: t.TempDir()}
	var remoteCalls int
	remote := RetrieverFunc(func(ctx context.Context, lang string) (string, error) {
		remoteCalls++
		return enUS, nil
	})

	xml, err := Chain{dirMiss, remote}.RetrieveLocale(context.Background(), "en-US")
	if err != nil || xml != enUS {
		t.Fatalf("expected remote locale, got %q (%v)", xml, err)
	}
	if remoteCalls != 1 {
		t.Errorf("expected 1 remote call, got %d", remoteCalls)
	}

	offline := errors.New("offline")
	failing := RetrieverFunc(func(ctx context.Context, lang string) (string, error) { return "", offline })
	_, err = Chain{dirMiss, failing}.RetrieveLocale(context.Background(), "en-US")
	if !errors.Is(err, ErrLocaleNotFound) || !errors.Is(err, offline) {
		t.Errorf("expected joined errors, got %v", err)
	}

	if _, err := (Chain{}).RetrieveLocale(context.Background(), "en-US"); !errors.Is(err, ErrLocaleNotFound) {
		t.Errorf("expected ErrLocaleNotFound for empty chain, got %v", err)
	}
}

func TestCached_SharesAndStores(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	source := RetrieverFunc(func(ctx context.Context, lang string) (string, error) {
		calls.Add(1)
		<-release
		return enUS, nil
	})

	mem := cache.NewMemoryCache(time.Minute, time.Minute)
	cached := NewCached(source, mem, 0, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if xml, err := cached.RetrieveLocale(context.Background(), "en"); err != nil || xml != enUS {
				t.Errorf("unexpected result %q (%v)", xml, err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("expected 1 source call, got %d", calls.Load())
	}
	if _, ok := mem.Get(cache.Key("locale", "en-US")); !ok {
		t.Error("expected locale stored under normalized tag")
	}

	if _, err := cached.RetrieveLocale(context.Background(), "en_US"); err != nil {
		t.Fatalf("RetrieveLocale: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected cache hit, got %d source calls", calls.Load())
	}
}

func TestCached_CancelledCallerDoesNotFailOthers(t *testing.T) {
	started := make(chan struct{})
	var startOnce sync.Once
	release := make(chan struct{})
	source := RetrieverFunc(func(ctx context.Context, lang string) (string, error) {
		startOnce.Do(func() { close(started) })
		select {
		case <-release:
			return enUS, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
	cached := NewCached(source, cache.NewMemoryCache(time.Minute, time.Minute), 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := cached.RetrieveLocale(ctx, "en")
		first <- err
	}()
	<-started

	second := make(chan string, 1)
	go func() {
		xml, err := cached.RetrieveLocale(context.Background(), "en")
		if err != nil {
			t.Errorf("second caller: unexpected error %v", err)
		}
		second <- xml
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	if err := <-first; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled for cancelled caller, got %v", err)
	}

	close(release)
	if xml := <-second; xml != enUS {
		t.Errorf("expected locale for second caller, got %q", xml)
	}
}

func TestCached_ErrorsNotCached(t *testing.T) {
	var calls int
	source := RetrieverFunc(func(ctx context.Context, lang string) (string, error) {
		calls++
		return "", ErrLocaleNotFound
	})
	cached := NewCached(source, cache.NewMemoryCache(time.Minute, time.Minute), 0, nil)

	for i := 0; i < 2; i++ {
		if _, err := cached.RetrieveLocale(context.Background(), "fr"); !errors.Is(err, ErrLocaleNotFound) {
			t.Errorf("expected ErrLocaleNotFound, got %v", err)
		}
	}
	if calls != 2 {
		t.Errorf("expected failures retried, got %d calls", calls)
	}
}
