package cache

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

const defaultFetchTimeout = 30 * time.Second

// maxDocumentBytes caps a single download; style documents are a few KB.
const maxDocumentBytes = 16 << 20

// Shared HTTP transport tunings, reused by every fetch so connections to the
// same host stay warm across refresh rounds.
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          16,
	MaxIdleConnsPerHost:   4,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// NewHTTPClient returns the client used for all downloads.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: defaultTransport.Clone(),
	}
}

// HTTPFetcher downloads http/https identities with a plain GET.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher builds a fetcher around client. A nil client falls back to
// NewHTTPClient with the default timeout.
func NewHTTPFetcher(client *http.Client, userAgent string) *HTTPFetcher {
	if client == nil {
		client = NewHTTPClient(0)
	}
	if userAgent == "" {
		userAgent = "style-hub"
	}
	return &HTTPFetcher{client: client, userAgent: userAgent}
}

// Fetch implements Fetcher. Transport failures and non-2xx statuses wrap
// ErrNetwork.
func (f *HTTPFetcher) Fetch(ctx context.Context, identity string) ([]byte, error) {
	parsed, err := url.Parse(identity)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedIdentity, identity)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrNetwork, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: unexpected status %d from %s", ErrNetwork, resp.StatusCode, identity)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrNetwork, err)
	}
	if len(body) > maxDocumentBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrNetwork, identity, maxDocumentBytes)
	}
	return body, nil
}
