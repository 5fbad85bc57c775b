package cache

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMaterializeMissThenHit(t *testing.T) {
	server := newDocumentServer(t, "indent_columns = 4\n")
	c := newTestCache(t, NewHTTPFetcher(nil, "test"))
	identity := server.URL + "/uncrustify.cfg"

	if _, err := c.Materialize(context.Background(), identity); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}
	c.Wait()

	lease, err := c.Materialize(context.Background(), identity)
	if err != nil {
		t.Fatalf("materialize after refresh: %v", err)
	}
	defer lease.Release()

	data, err := os.ReadFile(lease.Path)
	if err != nil {
		t.Fatalf("read lease: %v", err)
	}
	if string(data) != "indent_columns = 4\n" {
		t.Fatalf("lease content mismatch: %q", string(data))
	}
	if filepath.Dir(lease.Path) != c.tempRoot {
		t.Fatalf("lease outside temp root: %s", lease.Path)
	}
	if lease.Path == c.EntryPath(identity) {
		t.Fatalf("lease must be a copy, not the entry itself")
	}
}

func TestMaterializeGivesDistinctLeases(t *testing.T) {
	c := newTestCache(t, FetcherFunc(func(ctx context.Context, identity string) ([]byte, error) {
		return []byte("doc"), nil
	}))
	identity := "https://example.com/doc"
	if err := c.Refresh(context.Background(), identity); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	first, err := c.Materialize(context.Background(), identity)
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	second, err := c.Materialize(context.Background(), identity)
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if first.Path == second.Path {
		t.Fatalf("leases must not share a path")
	}

	first.Release()
	if _, err := os.Stat(second.Path); err != nil {
		t.Fatalf("releasing one lease removed the other: %v", err)
	}
	second.Release()
}

func TestLeaseReleaseTwice(t *testing.T) {
	c := newTestCache(t, FetcherFunc(func(ctx context.Context, identity string) ([]byte, error) {
		return []byte("doc"), nil
	}))
	identity := "https://example.com/doc"
	if err := c.Refresh(context.Background(), identity); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	lease, err := c.Materialize(context.Background(), identity)
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}

	if err := lease.Release(); err != nil {
		t.Fatalf("first release: %v", err)
	}
	if err := lease.Release(); err != nil {
		t.Fatalf("second release must be a no-op, got %v", err)
	}
	if _, err := os.Stat(lease.Path); !os.IsNotExist(err) {
		t.Fatalf("lease file still present after release")
	}
	if _, err := os.Stat(c.EntryPath(identity)); err != nil {
		t.Fatalf("releasing a lease must not touch the entry: %v", err)
	}

	var nilLease *Lease
	if err := nilLease.Release(); err != nil {
		t.Fatalf("nil lease release: %v", err)
	}
}

func TestRefreshFailureKeepsStaleEntry(t *testing.T) {
	var fail atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("v1"))
	}))
	t.Cleanup(server.Close)

	c := newTestCache(t, NewHTTPFetcher(server.Client(), "test"))
	identity := server.URL + "/doc"
	if err := c.Refresh(context.Background(), identity); err != nil {
		t.Fatalf("initial refresh: %v", err)
	}

	fail.Store(true)
	err := c.Refresh(context.Background(), identity)
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}

	lease, err := c.Materialize(context.Background(), identity)
	if err != nil {
		t.Fatalf("materialize stale entry: %v", err)
	}
	defer lease.Release()
	data, _ := os.ReadFile(lease.Path)
	if string(data) != "v1" {
		t.Fatalf("expected stale content v1, got %q", string(data))
	}
}

func TestRefreshOverwritesInPlace(t *testing.T) {
	var version atomic.Int32
	c := newTestCache(t, FetcherFunc(func(ctx context.Context, identity string) ([]byte, error) {
		if version.Add(1) == 1 {
			return []byte("old"), nil
		}
		return []byte("new"), nil
	}))
	identity := "https://example.com/doc"

	for i := 0; i < 2; i++ {
		if err := c.Refresh(context.Background(), identity); err != nil {
			t.Fatalf("refresh %d: %v", i, err)
		}
	}

	data, err := os.ReadFile(c.EntryPath(identity))
	if err != nil {
		t.Fatalf("read entry: %v", err)
	}
	if string(data) != "new" {
		t.Fatalf("expected refreshed content, got %q", string(data))
	}
	info, err := c.Info()
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.Entries != 1 {
		t.Fatalf("expected one entry, got %d", info.Entries)
	}
}

func TestRefreshSharesInFlightDownload(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	c := newTestCache(t, FetcherFunc(func(ctx context.Context, identity string) ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte("doc"), nil
	}))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Refresh(context.Background(), "https://example.com/doc")
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("expected one fetch, got %d", got)
	}
}

// Two caches over one root stand in for two processes: one keeps refreshing
// while the other materializes leases.
func TestMaterializeRacesRefreshAcrossCaches(t *testing.T) {
	payloadA := bytes.Repeat([]byte("A"), 128*1024)
	payloadB := bytes.Repeat([]byte("B"), 128*1024)
	var version atomic.Int32
	fetcher := FetcherFunc(func(ctx context.Context, identity string) ([]byte, error) {
		if version.Add(1)%2 == 0 {
			return payloadB, nil
		}
		return payloadA, nil
	})

	root := t.TempDir()
	writer, err := New(Options{Root: root, Fetcher: fetcher})
	if err != nil {
		t.Fatalf("cache error: %v", err)
	}
	reader, err := New(Options{Root: root, Fetcher: fetcher})
	if err != nil {
		t.Fatalf("cache error: %v", err)
	}
	t.Cleanup(writer.Wait)
	t.Cleanup(reader.Wait)

	identity := "https://example.com/uncrustify.cfg"
	if err := writer.Refresh(context.Background(), identity); err != nil {
		t.Fatalf("seed refresh: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := writer.Refresh(context.Background(), identity); err != nil {
				errs <- err
			}
		}()
		go func() {
			defer wg.Done()
			lease, err := reader.Materialize(context.Background(), identity)
			if err != nil {
				errs <- err
				return
			}
			defer lease.Release()
			data, err := os.ReadFile(lease.Path)
			if err != nil {
				errs <- err
				return
			}
			if !bytes.Equal(data, payloadA) && !bytes.Equal(data, payloadB) {
				errs <- errors.New("torn lease observed")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent access error: %v", err)
	}
}

func TestFetcherRejectsNonHTTPIdentity(t *testing.T) {
	f := NewHTTPFetcher(nil, "")
	_, err := f.Fetch(context.Background(), "file:///etc/passwd")
	if !errors.Is(err, ErrUnsupportedIdentity) {
		t.Fatalf("expected ErrUnsupportedIdentity, got %v", err)
	}
}

func TestFetcherSendsUserAgent(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(server.Close)

	f := NewHTTPFetcher(server.Client(), "style-hub/test")
	if _, err := f.Fetch(context.Background(), server.URL); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got != "style-hub/test" {
		t.Fatalf("unexpected user agent %q", got)
	}
}

func TestCleanAndPruneLeases(t *testing.T) {
	c := newTestCache(t, FetcherFunc(func(ctx context.Context, identity string) ([]byte, error) {
		return []byte(identity), nil
	}))
	for _, id := range []string{"https://a.example/x", "https://b.example/y"} {
		if err := c.Refresh(context.Background(), id); err != nil {
			t.Fatalf("refresh: %v", err)
		}
	}
	lease, err := c.Materialize(context.Background(), "https://a.example/x")
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}

	info, err := c.Info()
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.Entries != 2 || info.Leases != 1 {
		t.Fatalf("unexpected info %+v", info)
	}

	removed, err := c.Clean(context.Background())
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if _, err := os.Stat(lease.Path); err != nil {
		t.Fatalf("clean must leave leases alone: %v", err)
	}

	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(lease.Path, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	pruned, err := c.PruneLeases(24 * time.Hour)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("expected 1 pruned lease, got %d", pruned)
	}
}

func TestEntryReportsMissing(t *testing.T) {
	c := newTestCache(t, FetcherFunc(func(ctx context.Context, identity string) ([]byte, error) {
		return []byte("doc"), nil
	}))
	if _, err := c.Entry("https://example.com/none"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func newTestCache(t *testing.T, fetcher Fetcher) *Cache {
	t.Helper()
	c, err := New(Options{Root: t.TempDir(), Fetcher: fetcher})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	t.Cleanup(c.Wait)
	return c
}

func newDocumentServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}
