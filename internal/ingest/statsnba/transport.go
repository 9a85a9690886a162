package statsnba

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
)

const (
	// UserAgent is sent with every request; the API rejects bare clients.
	UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// Referer is required by stats.nba.com.
	Referer = "https://www.nba.com/"

	maxBodyBytes = 32 << 20
)

// Transport performs one GET against the stats API and returns the raw body.
type Transport interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// StatusError reports a non-200 response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
	}
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// Temporary reports whether retrying may help.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// HTTPTransport fetches with net/http and the browser-like headers the API expects.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport creates an HTTP transport with the given per-request timeout.
func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPTransport{client: &http.Client{Timeout: timeout}}
}

// NewHTTPTransportWithClient wraps an existing client (useful for tests).
func NewHTTPTransportWithClient(client *http.Client) *HTTPTransport {
	return &HTTPTransport{client: client}
}

// Fetch performs the GET request.
func (t *HTTPTransport) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Referer", Referer)
	req.Header.Set("Origin", "https://www.nba.com")
	req.Header.Set("User-Agent", UserAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Body: snippet(body)}
	}

	return body, nil
}

// BrowserTransport loads API URLs in headless Chrome. It gets through when
// the API blocks plain HTTP clients; Chrome renders the JSON as page text.
type BrowserTransport struct {
	allocCtx context.Context
	cancel   context.CancelFunc
	timeout  time.Duration
}

// NewBrowserTransport starts a headless Chrome allocator.
func NewBrowserTransport(timeout time.Duration) *BrowserTransport {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(UserAgent),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &BrowserTransport{
		allocCtx: allocCtx,
		cancel:   cancel,
		timeout:  timeout,
	}
}

// Close releases the browser.
func (t *BrowserTransport) Close() {
	if t.cancel != nil {
		t.cancel()
	}
}

// Fetch navigates to url and returns the rendered body text.
func (t *BrowserTransport) Fetch(ctx context.Context, url string) ([]byte, error) {
	browserCtx, cancel := chromedp.NewContext(t.allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, t.timeout)
	defer cancel()

	// Tie the browser tab to the caller's context as well.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var text string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady(`body`, chromedp.ByQuery),
		chromedp.Text(`body`, &text, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("chromedp error: %w", err)
	}

	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty page content returned")
	}

	return []byte(text), nil
}

// looksLikeHTML reports whether a body is an HTML page rather than JSON.
func looksLikeHTML(body []byte) bool {
	trimmed := strings.TrimSpace(string(body))
	return strings.HasPrefix(trimmed, "<")
}

// describeHTML pulls a short description out of an HTML error page.
func describeHTML(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return "unparseable HTML page"
	}

	for _, sel := range []string{"title", "h1", "h2", "body"} {
		if text := strings.Join(strings.Fields(doc.Find(sel).First().Text()), " "); text != "" {
			return snippet([]byte(text))
		}
	}
	return "empty HTML page"
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
