// Package fetcher retrieves fully rendered HTML for a URL via a
// headless-browser agent, with retries, jitter, and anti-detection
// hardening.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"golang.org/x/net/html/charset"

	"github.com/jeffrey/fundawatch/pkg/logger"
	"github.com/jeffrey/fundawatch/pkg/utils"
)

// ErrNetwork is returned once all retries are exhausted.
var ErrNetwork = errors.New("fetcher: network error")

const minHTMLBytes = 1024

// Config controls one Fetcher instance.
type Config struct {
	MaxRetries int
	Timeout    time.Duration // per-attempt page-load deadline
}

// Fetcher drives a pooled headless browser to retrieve rendered HTML.
type Fetcher struct {
	pool      *BrowserPool
	cfg       Config
	logger    *logger.Logger
	uaRotator *utils.UserAgentRotator
	robots    *utils.RobotsChecker
	breakers  *utils.CircuitBreakerManager
	rateLimit *utils.ScraperRateLimiter
}

// New wires a Fetcher around an already-running browser pool.
func New(pool *BrowserPool, cfg Config, log *logger.Logger) *Fetcher {
	return &Fetcher{
		pool:      pool,
		cfg:       cfg,
		logger:    log.WithComponent("fetcher"),
		uaRotator: utils.NewUserAgentRotator(true),
		robots:    utils.NewRobotsChecker("fundawatch-bot"),
		breakers:  utils.NewCircuitBreakerManager(),
		rateLimit: utils.NewScraperRateLimiter(2),
	}
}

// Fetch retrieves the rendered HTML of target, retrying transient
// failures with a linear attempt_index*10s backoff and honouring ctx
// cancellation at every suspension point.
func (f *Fetcher) Fetch(ctx context.Context, target string) (string, error) {
	allowed, err := f.robots.IsAllowed(target)
	if err == nil && !allowed {
		return "", fmt.Errorf("%w: disallowed by robots.txt", ErrNetwork)
	}

	domain, _ := utils.GetDomain(target)
	cb := f.breakers.GetOrCreate(domain, 5, 5*time.Minute)

	if err := f.rateLimit.Wait(ctx, domain); err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 10 * time.Second
			jitter := time.Duration(rand.Intn(3000)) * time.Millisecond
			select {
			case <-time.After(backoff + jitter):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		var html string
		cbErr := cb.Call(func() error {
			var attemptErr error
			html, attemptErr = f.attempt(ctx, target)
			return attemptErr
		})
		if cbErr == nil {
			return html, nil
		}
		lastErr = cbErr
		f.logger.WithError(cbErr).Warnf("fetch attempt %d/%d failed for %s", attempt+1, f.cfg.MaxRetries+1, target)

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}

	if html, err := f.fetchHTTPFallback(ctx, target); err == nil {
		f.logger.Warnf("browser attempts exhausted for %s, HTTP fallback succeeded", target)
		return html, nil
	}

	return "", fmt.Errorf("%w: %v", ErrNetwork, lastErr)
}

func (f *Fetcher) attempt(ctx context.Context, target string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	browser, err := f.pool.Acquire(attemptCtx)
	if err != nil {
		return "", fmt.Errorf("acquiring browser: %w", err)
	}
	defer f.pool.Release(browser)

	page, err := browser.Timeout(f.cfg.Timeout).Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return "", fmt.Errorf("opening page: %w", err)
	}
	defer page.Close()

	applyStealth(page)

	page.MustSetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      f.uaRotator.GetUserAgent(),
		AcceptLanguage: f.uaRotator.GetAcceptLanguage(),
	})
	page.MustSetViewport(1920, 1080, 1, false)

	if err := page.Context(attemptCtx).Navigate(target); err != nil {
		return "", fmt.Errorf("navigating: %w", err)
	}
	if err := page.Context(attemptCtx).WaitLoad(); err != nil {
		return "", fmt.Errorf("waiting for load: %w", err)
	}

	jitter := time.Duration(2000+rand.Intn(3000)) * time.Millisecond
	select {
	case <-time.After(jitter):
	case <-attemptCtx.Done():
		return "", attemptCtx.Err()
	}

	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("reading HTML: %w", err)
	}
	if len(html) < minHTMLBytes {
		return "", fmt.Errorf("HTML too short (%d bytes)", len(html))
	}
	return html, nil
}

// fetchHTTPFallback is a last-resort plain HTTP GET, tried once the
// browser-driven attempts are exhausted. It auto-detects the response
// charset and transcodes to UTF-8, since a static GET skips the
// browser's own decoding and the site occasionally mislabels its
// encoding. It cannot execute the page's dynamic content, so it is
// only useful against cached or server-rendered responses.
func (f *Fetcher) fetchHTTPFallback(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", f.uaRotator.GetUserAgent())
	req.Header.Set("Accept-Language", f.uaRotator.GetAcceptLanguage())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	utf8Reader, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		utf8Reader = resp.Body
	}

	body, err := io.ReadAll(utf8Reader)
	if err != nil {
		return "", err
	}

	html := strings.ToValidUTF8(string(body), "")
	if len(html) < minHTMLBytes {
		return "", fmt.Errorf("HTML too short (%d bytes)", len(html))
	}
	return html, nil
}

// applyStealth redefines automation-indicator properties on the page's
// navigator object so it does not self-report as an automated agent.
func applyStealth(page *rod.Page) {
	page.MustEvalOnNewDocument(`() => {
		Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
		window.chrome = window.chrome || { runtime: {} };
		const originalQuery = window.navigator.permissions.query;
		window.navigator.permissions.query = (parameters) => (
			parameters.name === 'notifications'
				? Promise.resolve({ state: Notification.permission })
				: originalQuery(parameters)
		);
		Object.defineProperty(navigator, 'languages', { get: () => ['nl-NL', 'nl', 'en-US', 'en'] });
		Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
	}`)
}
