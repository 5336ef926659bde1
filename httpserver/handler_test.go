package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/anyone-dns-service/cache"
	"github.com/ruteri/anyone-dns-service/common"
	"github.com/ruteri/anyone-dns-service/interfaces"
	"github.com/ruteri/anyone-dns-service/registry"
	"github.com/ruteri/anyone-dns-service/resolver"
)

const (
	validAddress   = "6zctvi63m7xxbd34hxn2uvnaw5ao7sec4l3k4bflzeqtve5jleh6ddyd.anyone"
	invalidAddress = "6zctvi63m7xxbd34hxn2uvnaw5ao7sec4l3k4bflzeqtve5jleh6dzzz.anyone"
)

type staticInventory struct {
	mu      sync.Mutex
	entries []interfaces.DomainEntry
	err     error
}

func (s *staticInventory) FetchDomains(ctx context.Context) ([]interfaces.DomainEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries, s.err
}

func (s *staticInventory) set(err error, names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	s.entries = nil
	for _, name := range names {
		s.entries = append(s.entries, interfaces.DomainEntry{Name: name})
	}
}

type testEnv struct {
	server    *Server
	router    http.Handler
	cache     *cache.DomainCache
	inventory *staticInventory
	registry  *registry.MockRegistryClient
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	reg := registry.NewMockRegistryClient()
	reg.SetRecord("a.anyone", interfaces.HiddenServiceAddressKey, validAddress)
	reg.SetRecord("c.anyone", interfaces.HiddenServiceAddressKey, invalidAddress)

	res := resolver.NewResolver(reg, resolver.Config{}, log)
	bulk := resolver.NewBulkResolver(res, clock.New(), log)

	inv := &staticInventory{}
	inv.set(nil, "a.anyone", "b.anyone")

	c := cache.NewDomainCache(inv, bulk, cache.Config{TTL: time.Minute, BatchSize: 10}, clock.New(), log)

	handler := NewHandler(c, res, interfaces.NewTLDSet("anyone"), log)
	srv, err := New(&HTTPServerConfig{Log: log, GracefulShutdownDuration: time.Second}, handler)
	require.NoError(t, err)

	return &testEnv{
		server:    srv,
		router:    srv.getRouter(),
		cache:     c,
		inventory: inv,
		registry:  reg,
	}
}

func (e *testEnv) do(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeResult(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestHealthcheck(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Anyone DNS Service version "+common.Version, w.Body.String())
}

func TestHosts(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/tld/anyone")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String(), "hosts must be empty before the first refresh")

	env.cache.Refresh(context.Background())

	w = env.do(t, http.MethodGet, "/tld/anyone")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain"))
	assert.Equal(t, "a.anyone "+validAddress, w.Body.String())

	w = env.do(t, http.MethodGet, "/tld/eth")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDomainsAndMappings(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/domains")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = env.do(t, http.MethodGet, "/mappings")
	assert.JSONEq(t, `[]`, w.Body.String())

	env.cache.Refresh(context.Background())

	w = env.do(t, http.MethodGet, "/domains")
	assert.JSONEq(t, `["a.anyone","b.anyone"]`, w.Body.String())

	w = env.do(t, http.MethodGet, "/mappings")
	require.Equal(t, http.StatusOK, w.Code)
	var mappings []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mappings))
	require.Len(t, mappings, 2)
	assert.Equal(t, "success", mappings[0]["result"])
	assert.Equal(t, validAddress, mappings[0]["hiddenServiceAddress"])
	assert.Equal(t, "error", mappings[1]["result"])
}

func TestDomain(t *testing.T) {
	env := newTestEnv(t)
	env.cache.Refresh(context.Background())

	w := env.do(t, http.MethodGet, "/domains/a.anyone")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"result":"success","domain":"a.anyone","hiddenServiceAddress":"`+validAddress+`"}`, w.Body.String())

	// a resolved failure is still a cache hit
	w = env.do(t, http.MethodGet, "/domains/b.anyone")
	assert.Equal(t, http.StatusOK, w.Code)
	out := decodeResult(t, w.Body.Bytes())
	assert.Equal(t, "error", out["result"])
	errObj, ok := out["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "RecordNotFound", errObj["kind"])
	assert.Equal(t, "no hidden service record found for domain: b.anyone", errObj["message"])

	w = env.do(t, http.MethodGet, "/domains/z.anyone")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRefreshAndStatus(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/status")
	require.Equal(t, http.StatusOK, w.Code)
	var status interfaces.CacheStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.False(t, status.Populated)

	w = env.do(t, http.MethodPost, "/refresh")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.True(t, status.Populated)
	assert.Equal(t, 2, status.Domains)
	assert.Equal(t, 1, status.Resolved)
	assert.Empty(t, status.LastError)

	env.inventory.set(errors.New("inventory down"))
	w = env.do(t, http.MethodPost, "/refresh")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.True(t, status.Populated, "stale snapshot must be kept")
	assert.Contains(t, status.LastError, "inventory down")

	w = env.do(t, http.MethodGet, "/domains")
	assert.JSONEq(t, `["a.anyone","b.anyone"]`, w.Body.String())

	w = env.do(t, http.MethodGet, "/refresh")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestResolveBypassesCache(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/resolve/c.anyone")
	require.Equal(t, http.StatusOK, w.Code)
	out := decodeResult(t, w.Body.Bytes())
	assert.Equal(t, "error", out["result"])
	assert.Equal(t, "ChecksumInvalid", out["error"].(map[string]any)["kind"])

	w = env.do(t, http.MethodGet, "/resolve/a.anyone")
	out = decodeResult(t, w.Body.Bytes())
	assert.Equal(t, "success", out["result"])

	w = env.do(t, http.MethodGet, "/resolve/a.eth")
	out = decodeResult(t, w.Body.Bytes())
	assert.Equal(t, "UnsupportedDomainTld", out["error"].(map[string]any)["kind"])

	assert.Equal(t, 2, env.registry.Calls())
	assert.False(t, env.cache.Status().Populated)
}
