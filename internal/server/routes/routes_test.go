package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/style-hub/style-hub/internal/cache"
	"github.com/style-hub/style-hub/internal/server"
	"github.com/style-hub/style-hub/internal/styles"
)

func TestConfigurationsRoundTrip(t *testing.T) {
	app, store := newPreferenceApp(t)

	body := mustJSON(t, configurationsPayload{Configurations: styles.Defaults()[:2]})
	resp := do(t, app, http.MethodPut, "/configurations", body)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", resp.StatusCode, readBody(resp))
	}
	if len(store.list) != 2 {
		t.Fatalf("store should hold 2 records, got %d", len(store.list))
	}

	resp = do(t, app, http.MethodGet, "/configurations", "")
	var payload configurationsPayload
	decode(t, resp, &payload)
	if len(payload.Configurations) != 2 || payload.Configurations[0].Name != "XS-Labs" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestPutConfigurationsRejectsInvalidRecord(t *testing.T) {
	app, store := newPreferenceApp(t)

	body := `{"configurations":[{"name":"","swiftformat":"https://h/a","uncrustify":"https://h/b"}]}`
	resp := do(t, app, http.MethodPut, "/configurations", body)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if !strings.Contains(readBody(resp), "invalid_configuration") {
		t.Fatalf("expected invalid_configuration error")
	}
	if store.writes != 0 {
		t.Fatalf("nothing should be written")
	}
}

func TestSelectedLifecycle(t *testing.T) {
	app, store := newPreferenceApp(t)
	store.list = styles.Defaults()

	resp := do(t, app, http.MethodGet, "/selected", "")
	if resp.StatusCode != fiber.StatusNotFound || !strings.Contains(readBody(resp), "no_selection") {
		t.Fatalf("expected 404 no_selection, got %d", resp.StatusCode)
	}

	resp = do(t, app, http.MethodPut, "/selected", mustJSON(t, selectedPayload{Selected: store.list[2]}))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", resp.StatusCode, readBody(resp))
	}

	resp = do(t, app, http.MethodGet, "/selected", "")
	var payload selectedPayload
	decode(t, resp, &payload)
	if !payload.Selected.Equal(store.list[2]) {
		t.Fatalf("unexpected selection %+v", payload.Selected)
	}

	resp = do(t, app, http.MethodDelete, "/selected", "")
	if resp.StatusCode != fiber.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if store.selected != nil {
		t.Fatalf("selection should be cleared")
	}
}

func TestPutSelectedRequiresMembership(t *testing.T) {
	app, store := newPreferenceApp(t)
	store.list = styles.Defaults()[:1]

	stranger := styles.Configuration{Name: "Other", SwiftFormat: "https://h/a", Uncrustify: "https://h/b"}
	resp := do(t, app, http.MethodPut, "/selected", mustJSON(t, selectedPayload{Selected: stranger}))
	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	if !strings.Contains(readBody(resp), "not_in_configurations") {
		t.Fatalf("expected not_in_configurations error")
	}
}

func TestStoreFailureIsReported(t *testing.T) {
	app, store := newPreferenceApp(t)
	store.err = errors.New("disk full")

	resp := do(t, app, http.MethodDelete, "/selected", "")
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	if !strings.Contains(readBody(resp), "store_failed") {
		t.Fatalf("expected store_failed error")
	}
}

func TestLeaseEndpoints(t *testing.T) {
	const identity = "https://example.com/uncrustify.cfg"
	c := newCache(t)
	if err := c.Refresh(context.Background(), identity); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	app, leases := newCacheApp(t, c)

	resp := do(t, app, http.MethodPost, "/leases", `{"identity":"`+identity+`"}`)
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", resp.StatusCode, readBody(resp))
	}
	var lease leasePayload
	decode(t, resp, &lease)
	if lease.ID == "" || lease.Path == "" || lease.Identity != identity {
		t.Fatalf("unexpected lease %+v", lease)
	}
	if leases.Len() != 1 {
		t.Fatalf("lease should be tracked")
	}

	resp = do(t, app, http.MethodGet, "/cache", "")
	var info cachePayload
	decode(t, resp, &info)
	if info.Entries != 1 || info.ActiveLeases != 1 || info.Leases != 1 {
		t.Fatalf("unexpected cache info %+v", info)
	}

	resp = do(t, app, http.MethodDelete, "/leases/"+lease.ID, "")
	if resp.StatusCode != fiber.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	resp = do(t, app, http.MethodDelete, "/leases/"+lease.ID, "")
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404 on double release, got %d", resp.StatusCode)
	}
}

func TestLeaseMiss(t *testing.T) {
	app, _ := newCacheApp(t, newCache(t))

	resp := do(t, app, http.MethodPost, "/leases", `{"identity":"https://example.com/none"}`)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if !strings.Contains(readBody(resp), "cache_miss") {
		t.Fatalf("expected cache_miss error")
	}

	resp = do(t, app, http.MethodPost, "/leases", `{"identity":" "}`)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for empty identity, got %d", resp.StatusCode)
	}
}

func TestRefreshEndpoint(t *testing.T) {
	app := newTestServerApp(t)
	refresher := &countingRefresher{}
	RegisterCacheRoutes(app, nil, refresher, nil, nil)

	resp := do(t, app, http.MethodPost, "/refresh", "")
	if resp.StatusCode != fiber.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	if refresher.calls != 1 {
		t.Fatalf("refresher should be called once, got %d", refresher.calls)
	}
}

type memoryStore struct {
	mu       sync.Mutex
	list     []styles.Configuration
	selected *styles.Configuration
	writes   int
	err      error
}

func (m *memoryStore) Configurations(context.Context) []styles.Configuration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]styles.Configuration{}, m.list...)
}

func (m *memoryStore) SetConfigurations(_ context.Context, list []styles.Configuration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.writes++
	m.list = append([]styles.Configuration{}, list...)
	return nil
}

func (m *memoryStore) Selected(context.Context) (styles.Configuration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.selected == nil {
		return styles.Configuration{}, false
	}
	return *m.selected, true
}

func (m *memoryStore) SetSelected(_ context.Context, c *styles.Configuration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.writes++
	if c == nil {
		m.selected = nil
		return nil
	}
	copied := *c
	m.selected = &copied
	return nil
}

type countingRefresher struct {
	calls int
}

func (r *countingRefresher) RefreshAll(context.Context) int {
	r.calls++
	return 0
}

func newTestServerApp(t *testing.T) *fiber.App {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	app, err := server.NewApp(server.AppOptions{Logger: logger})
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}
	return app
}

func newPreferenceApp(t *testing.T) (*fiber.App, *memoryStore) {
	t.Helper()
	app := newTestServerApp(t)
	store := &memoryStore{}
	RegisterPreferenceRoutes(app, store, nil)
	return app, store
}

func newCacheApp(t *testing.T, c *cache.Cache) (*fiber.App, *server.LeaseTable) {
	t.Helper()
	app := newTestServerApp(t)
	leases := server.NewLeaseTable(c)
	t.Cleanup(func() { leases.ReleaseAll() })
	RegisterCacheRoutes(app, c, nil, leases, nil)
	return app, leases
}

func newCache(t *testing.T) *cache.Cache {
	t.Helper()
	fetcher := cache.FetcherFunc(func(ctx context.Context, identity string) ([]byte, error) {
		return []byte("doc"), nil
	})
	c, err := cache.New(cache.Options{Root: t.TempDir(), Fetcher: fetcher})
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	t.Cleanup(c.Wait)
	return c
}

func do(t *testing.T, app *fiber.App, method, path, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	return resp
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	data, _ := io.ReadAll(resp.Body)
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", string(data), err)
	}
}

func readBody(resp *http.Response) string {
	data, _ := io.ReadAll(resp.Body)
	return string(data)
}
