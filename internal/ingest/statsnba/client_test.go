package statsnba

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fortuna/courtside/internal/ratelimit"
	"github.com/fortuna/courtside/internal/store"
	"github.com/fortuna/courtside/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 10, 24, 12, 0, 0, 0, time.UTC)

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

// routes maps endpoint names to fixture bodies; a nil body answers 500.
type fakeAPI struct {
	t        *testing.T
	routes   map[string][]byte
	status   map[string]int
	requests atomic.Int32
	lastReq  atomic.Value
}

func newFakeAPI(t *testing.T) *fakeAPI {
	return &fakeAPI{t: t, routes: map[string][]byte{}, status: map[string]int{}}
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.requests.Add(1)
	f.lastReq.Store(r.Clone(context.Background()))

	endpoint := filepath.Base(r.URL.Path)
	if code, ok := f.status[endpoint]; ok {
		w.WriteHeader(code)
		return
	}
	body, ok := f.routes[endpoint]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

func (f *fakeAPI) last() *http.Request {
	r, _ := f.lastReq.Load().(*http.Request)
	return r
}

type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memoryCache) GetBytes(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memoryCache) SetBytes(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[string][]byte{}
	}
	m.data[key] = value
	return nil
}

func newTestClient(t *testing.T, api http.Handler, clock *testutil.FakeClock, cache Cache) *Client {
	t.Helper()
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	return NewClient(ClientOptions{
		BaseURL:    server.URL + "/stats",
		Transport:  NewHTTPTransportWithClient(server.Client()),
		Governor:   ratelimit.NewGovernor(time.Second, ratelimit.WithClock(clock)),
		MaxRetries: 3,
		RetryDelay: 500 * time.Millisecond,
		Cache:      cache,
		CacheTTL:   time.Hour,
		Clock:      clock,
	})
}

func TestClientSendsBrowserHeaders(t *testing.T) {
	api := newFakeAPI(t)
	api.routes[EndpointPlayerGameLog] = fixture(t, "playergamelog.json")
	client := newTestClient(t, api, testutil.NewFakeClock(epoch), nil)

	params := url.Values{}
	params.Set("PlayerID", "1629029")
	params.Set("DateFrom", "")
	resp, err := client.Get(context.Background(), EndpointPlayerGameLog, params)
	require.NoError(t, err)
	require.NotNil(t, resp.Table("PlayerGameLog"))

	req := api.last()
	require.NotNil(t, req)
	assert.Equal(t, Referer, req.Header.Get("Referer"))
	assert.Equal(t, UserAgent, req.Header.Get("User-Agent"))
	assert.Equal(t, "1629029", req.URL.Query().Get("PlayerID"))
	assert.True(t, req.URL.Query().Has("DateFrom"), "empty params are still sent")
}

func TestClientGovernsConsecutiveRequests(t *testing.T) {
	api := newFakeAPI(t)
	api.routes[EndpointTeamGameLog] = fixture(t, "teamgamelog.json")
	clock := testutil.NewFakeClock(epoch)
	client := newTestClient(t, api, clock, nil)

	for i := 0; i < 3; i++ {
		_, err := client.Get(context.Background(), EndpointTeamGameLog, url.Values{"TeamID": {"1610612742"}})
		require.NoError(t, err)
	}

	assert.Equal(t, int32(3), api.requests.Load())
	assert.Equal(t, []time.Duration{time.Second, time.Second}, clock.Sleeps())
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	body := fixture(t, "teamgamelog.json")
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(body)
	})
	clock := testutil.NewFakeClock(epoch)
	client := newTestClient(t, handler, clock, nil)

	resp, err := client.Get(context.Background(), EndpointTeamGameLog, url.Values{})
	require.NoError(t, err)
	assert.NotNil(t, resp.Table("TeamGameLog"))
	assert.Equal(t, int32(3), calls.Load())

	// Each retry waits out the backoff and the governor then sees the interval
	// as only partly elapsed.
	assert.Equal(t, []time.Duration{
		500 * time.Millisecond, 500 * time.Millisecond,
		750 * time.Millisecond, 250 * time.Millisecond,
	}, clock.Sleeps())
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	api := newFakeAPI(t)
	api.status[EndpointPlayerGameLog] = http.StatusBadRequest
	client := newTestClient(t, api, testutil.NewFakeClock(epoch), nil)

	_, err := client.Get(context.Background(), EndpointPlayerGameLog, url.Values{})
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrTransport)

	var status *StatusError
	require.True(t, errors.As(err, &status))
	assert.Equal(t, http.StatusBadRequest, status.Code)
	assert.Equal(t, int32(1), api.requests.Load())
}

func TestClientRejectsHTMLPages(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>Access Denied</title></head><body><h1>Nope</h1></body></html>`))
	})
	client := newTestClient(t, handler, testutil.NewFakeClock(epoch), nil)

	_, err := client.Get(context.Background(), EndpointBoxScore, url.Values{})
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrTransport)
	assert.Contains(t, err.Error(), "Access Denied")
}

func TestClientRejectsMalformedJSON(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"resultSets": [`))
	})
	client := newTestClient(t, handler, testutil.NewFakeClock(epoch), nil)

	_, err := client.Get(context.Background(), EndpointBoxScore, url.Values{})
	assert.ErrorIs(t, err, store.ErrTransport)
}

func TestClientCacheSkipsGovernor(t *testing.T) {
	api := newFakeAPI(t)
	api.routes[EndpointTeamGameLog] = fixture(t, "teamgamelog.json")
	clock := testutil.NewFakeClock(epoch)
	cache := &memoryCache{}
	client := newTestClient(t, api, clock, cache)

	params := url.Values{"TeamID": {"1610612742"}}
	_, err := client.Get(context.Background(), EndpointTeamGameLog, params)
	require.NoError(t, err)
	_, err = client.Get(context.Background(), EndpointTeamGameLog, params)
	require.NoError(t, err)

	assert.Equal(t, int32(1), api.requests.Load(), "second call served from cache")
	assert.Empty(t, clock.Sleeps(), "no outbound request, no wait")
	assert.Len(t, cache.data, 1)
}

func TestClientCancelledDuringWait(t *testing.T) {
	api := newFakeAPI(t)
	api.routes[EndpointTeamGameLog] = fixture(t, "teamgamelog.json")
	client := newTestClient(t, api, testutil.NewFakeClock(epoch), nil)

	_, err := client.Get(context.Background(), EndpointTeamGameLog, url.Values{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.Get(ctx, EndpointTeamGameLog, url.Values{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), api.requests.Load())
}

func TestDecodeSingularResultSet(t *testing.T) {
	resp, err := decode([]byte(`{"resource":"x","resultSet":{"name":"One","headers":["A"],"rowSet":[[1]]}}`))
	require.NoError(t, err)
	require.Len(t, resp.ResultSets, 1)
	assert.Equal(t, "One", resp.ResultSets[0].Name)

	resp, err = decode(fixture(t, "commonallplayers.json"))
	require.NoError(t, err)
	require.NotNil(t, resp.Table("CommonAllPlayers"))

	_, err = decode([]byte(`{"resource":"x"}`))
	assert.Error(t, err)
}

func TestDescribeHTML(t *testing.T) {
	assert.Equal(t, "Access Denied", describeHTML([]byte(`<html><title> Access  Denied </title></html>`)))
	assert.Equal(t, "Blocked", describeHTML([]byte(`<html><body><h1>Blocked</h1></body></html>`)))
	assert.True(t, looksLikeHTML([]byte("  \n<!DOCTYPE html>")))
	assert.False(t, looksLikeHTML([]byte(`{"resultSets":[]}`)))
}
