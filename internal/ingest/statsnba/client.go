package statsnba

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/fortuna/courtside/internal/ratelimit"
	"github.com/fortuna/courtside/internal/store"
	"github.com/sirupsen/logrus"
)

const (
	// BaseURL for the stats API
	BaseURL = "https://stats.nba.com/stats"

	cacheKeyPrefix = "courtside:stats:"
)

// Cache stores raw response bodies keyed by request.
type Cache interface {
	GetBytes(ctx context.Context, key string) ([]byte, bool, error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Response is a decoded stats API payload.
type Response struct {
	Resource   string        `json:"resource"`
	ResultSets []store.Table `json:"resultSets"`
}

// Table returns the result set with the given name, or nil.
func (r *Response) Table(name string) *store.Table {
	if r == nil {
		return nil
	}
	for i := range r.ResultSets {
		if strings.EqualFold(r.ResultSets[i].Name, name) {
			return &r.ResultSets[i]
		}
	}
	return nil
}

// TableOrFirst returns the named result set, falling back to the first one.
func (r *Response) TableOrFirst(name string) *store.Table {
	if t := r.Table(name); t != nil {
		return t
	}
	if r == nil || len(r.ResultSets) == 0 {
		return nil
	}
	return &r.ResultSets[0]
}

// ClientOptions configures a Client.
type ClientOptions struct {
	BaseURL    string
	Transport  Transport
	Governor   *ratelimit.Governor
	MaxRetries int
	RetryDelay time.Duration
	Cache      Cache
	CacheTTL   time.Duration
	Clock      ratelimit.Clock
	Logger     *logrus.Entry
}

// Client issues rate-governed requests against the stats API.
type Client struct {
	baseURL   string
	transport Transport
	governor  *ratelimit.Governor
	retry     *RetryPolicy
	cache     Cache
	cacheTTL  time.Duration
	log       *logrus.Entry
}

// NewClient creates a stats API client. Missing options get defaults: the
// public base URL, an HTTP transport, a one-second governor and three attempts.
func NewClient(opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = BaseURL
	}
	if opts.Transport == nil {
		opts.Transport = NewHTTPTransport(30 * time.Second)
	}
	if opts.Clock == nil {
		opts.Clock = ratelimit.SystemClock()
	}
	if opts.Governor == nil {
		opts.Governor = ratelimit.NewGovernor(ratelimit.DefaultInterval, ratelimit.WithClock(opts.Clock))
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 3
	}
	if opts.Logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		opts.Logger = logrus.NewEntry(discard)
	}

	return &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		transport: opts.Transport,
		governor:  opts.Governor,
		retry:     NewRetryPolicy(opts.MaxRetries, opts.RetryDelay, opts.Clock),
		cache:     opts.Cache,
		cacheTTL:  opts.CacheTTL,
		log:       opts.Logger,
	}
}

// Governor returns the client's rate governor.
func (c *Client) Governor() *ratelimit.Governor {
	return c.governor
}

// Get fetches and decodes one endpoint. Cached bodies are served without a
// request; otherwise every attempt waits on the governor first. All failures
// wrap store.ErrTransport.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values) (*Response, error) {
	requestURL := c.baseURL + "/" + endpoint + "?" + params.Encode()
	key := cacheKeyPrefix + endpoint + "?" + params.Encode()

	if body, ok := c.cached(ctx, key); ok {
		resp, err := decode(body)
		if err == nil {
			c.log.WithField("endpoint", endpoint).Debug("served from cache")
			return resp, nil
		}
		c.log.WithError(err).WithField("endpoint", endpoint).Warn("discarding undecodable cache entry")
	}

	var resp *Response
	var body []byte
	err := c.retry.Execute(ctx, func(attempt int) error {
		if err := c.governor.Wait(ctx); err != nil {
			return err
		}

		b, err := c.transport.Fetch(ctx, requestURL)
		if err != nil {
			c.log.WithError(err).WithFields(logrus.Fields{
				"endpoint": endpoint,
				"attempt":  attempt,
			}).Warn("stats request failed")
			return err
		}

		if looksLikeHTML(b) {
			return permanent(fmt.Errorf("unexpected HTML response: %s", describeHTML(b)))
		}

		r, err := decode(b)
		if err != nil {
			return permanent(err)
		}

		resp, body = r, b
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w: %w", endpoint, store.ErrTransport, err)
	}

	c.remember(ctx, key, body)
	return resp, nil
}

func (c *Client) cached(ctx context.Context, key string) ([]byte, bool) {
	if c.cache == nil {
		return nil, false
	}
	body, ok, err := c.cache.GetBytes(ctx, key)
	if err != nil {
		c.log.WithError(err).Warn("cache read failed")
		return nil, false
	}
	return body, ok
}

func (c *Client) remember(ctx context.Context, key string, body []byte) {
	if c.cache == nil || c.cacheTTL <= 0 {
		return
	}
	if err := c.cache.SetBytes(ctx, key, body, c.cacheTTL); err != nil {
		c.log.WithError(err).Warn("cache write failed")
	}
}

type payload struct {
	Resource   string          `json:"resource"`
	ResultSets []store.Table   `json:"resultSets"`
	ResultSet  json.RawMessage `json:"resultSet"`
}

// decode reads a stats API body. Some endpoints use a singular "resultSet"
// holding either one set or a list.
func decode(body []byte) (*Response, error) {
	var p payload
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	resp := &Response{Resource: p.Resource, ResultSets: p.ResultSets}

	if len(resp.ResultSets) == 0 && len(p.ResultSet) > 0 && string(p.ResultSet) != "null" {
		var many []store.Table
		if err := json.Unmarshal(p.ResultSet, &many); err == nil {
			resp.ResultSets = many
		} else {
			var one store.Table
			if err := json.Unmarshal(p.ResultSet, &one); err != nil {
				return nil, fmt.Errorf("decode resultSet: %w", err)
			}
			resp.ResultSets = []store.Table{one}
		}
	}

	if resp.ResultSets == nil {
		return nil, errors.New("response has no result sets")
	}
	return resp, nil
}
