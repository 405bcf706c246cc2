// Package reverseproxy forwards an authenticated, rate-limit-cleared
// request to a tenant's upstream and mirrors the response back verbatim.
package reverseproxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// requestHeadersToStrip are removed from the inbound request before it is
// forwarded upstream, case-insensitively. X-Client-ID is deliberately not
// in this list: the upstream may observe it.
var requestHeadersToStrip = []string{"Host", "Content-Length", "X-Api-Key"}

// responseHeadersToStrip are removed from the upstream response before it
// is mirrored to the client; the server regenerates framing headers itself.
var responseHeadersToStrip = []string{"Content-Encoding", "Content-Length", "Transfer-Encoding", "Connection"}

// allowedMethods mirrors the method set the data plane proxies; anything
// else is not routed.
var allowedMethods = map[string]bool{
	http.MethodGet: true, http.MethodPost: true, http.MethodPut: true,
	http.MethodDelete: true, http.MethodPatch: true, http.MethodHead: true,
	http.MethodOptions: true,
}

// ErrMethodNotAllowed is returned for methods outside allowedMethods.
var ErrMethodNotAllowed = errors.New("reverseproxy: method not routed")

// ErrUpstreamUnavailable wraps any transport-level failure talking to the
// upstream (DNS, connect, read, write, TLS, client-side timeout).
type ErrUpstreamUnavailable struct{ Cause error }

func (e *ErrUpstreamUnavailable) Error() string { return fmt.Sprintf("upstream unavailable: %v", e.Cause) }
func (e *ErrUpstreamUnavailable) Unwrap() error { return e.Cause }

// Proxy forwards requests to tenant upstreams using a single pooled client.
type Proxy struct {
	client *http.Client
}

// NewProxy creates a Proxy with a pooled HTTP client bounded by timeout and
// maxIdleConnsPerHost.
func NewProxy(timeout time.Duration, maxIdleConnsPerHost int) *Proxy {
	transport := &http.Transport{
		MaxIdleConnsPerHost: maxIdleConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Proxy{client: &http.Client{Transport: transport, Timeout: timeout}}
}

// JoinURL composes the upstream target: strip a trailing slash from base,
// a leading slash from path, join with exactly one slash, then append the
// query string verbatim.
func JoinURL(base, path, rawQuery string) string {
	base = strings.TrimSuffix(base, "/")
	path = strings.TrimPrefix(path, "/")
	url := base + "/" + path
	if rawQuery != "" {
		url += "?" + rawQuery
	}
	return url
}

// BuildUpstreamRequest constructs the outbound request: same method, the
// composed target URL (upstreamBase joined with the captured path and the
// inbound query string), the raw body, and inbound headers minus the
// request-side strip list.
func BuildUpstreamRequest(ctx context.Context, inbound *http.Request, upstreamBase, path string) (*http.Request, error) {
	if !allowedMethods[inbound.Method] {
		return nil, ErrMethodNotAllowed
	}

	target := JoinURL(upstreamBase, path, inbound.URL.RawQuery)
	out, err := http.NewRequestWithContext(ctx, inbound.Method, target, inbound.Body)
	if err != nil {
		return nil, fmt.Errorf("building upstream request: %w", err)
	}
	out.ContentLength = inbound.ContentLength

	out.Header = inbound.Header.Clone()
	for _, h := range requestHeadersToStrip {
		out.Header.Del(h)
	}

	return out, nil
}

// Do sends the upstream request. Any transport-level error is wrapped as
// ErrUpstreamUnavailable; a non-2xx response is not an error.
func (p *Proxy) Do(req *http.Request) (*http.Response, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &ErrUpstreamUnavailable{Cause: err}
	}
	return resp, nil
}

// CopyResponse mirrors the upstream response's status and body to w, after
// copying headers minus the response-side strip list.
func CopyResponse(w http.ResponseWriter, upstream *http.Response) error {
	dst := w.Header()
	for k, vv := range upstream.Header {
		dst[k] = append([]string(nil), vv...)
	}
	for _, h := range responseHeadersToStrip {
		dst.Del(h)
	}

	w.WriteHeader(upstream.StatusCode)
	_, err := io.Copy(w, upstream.Body)
	return err
}
