// Package caldav is a minimal RFC 4791 client: discovery, CTag/ETag
// bookkeeping, listing and fetching VTODO resources, and the PUT/DELETE
// precondition dance the synchronizer needs (spec.md §4.6).
//
// No library in the retrieval pack speaks WebDAV/CalDAV — the closest
// analogues (rbright-waybar-modules's linear/github clients) are plain
// net/http.Client callers against JSON/GraphQL APIs, not XML PROPFIND/
// REPORT. This client follows their net/http shape (context-scoped
// requests, a shared *http.Client with a timeout, typed errors instead of
// raw status codes) and adds the XML envelopes CalDAV itself requires.
package caldav

import (
	"context"
	"crypto/tls"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cfait/cfait/internal/cferr"
)

const defaultTimeout = 30 * time.Second

// Client talks to one CalDAV server.
type Client struct {
	http     *http.Client
	baseURL  *url.URL
	username string
	password string
}

// Config carries the connection details from the loaded on-disk config
// (spec.md §6: url, username, password, allow_insecure_certs).
type Config struct {
	URL                string
	Username           string
	Password           string
	AllowInsecureCerts bool
	Timeout            time.Duration
}

// New builds a Client. An empty URL is a configuration error the caller
// should treat as "offline", not a Transport failure.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, cferr.New(cferr.InvalidInput, "caldav url is not configured")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, cferr.Wrap(cferr.InvalidInput, err, "parse caldav url")
	}

	transport := &http.Transport{}
	if cfg.AllowInsecureCerts {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via allow_insecure_certs
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		http:     &http.Client{Transport: transport, Timeout: timeout},
		baseURL:  u,
		username: cfg.Username,
		password: cfg.Password,
	}, nil
}

// resolve turns an href (absolute or collection-relative) into an absolute
// URL against the server's base URL.
func (c *Client) resolve(href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return c.baseURL.ResolveReference(ref).String()
}

func (c *Client) newRequest(ctx context.Context, method, href string, body string, headers map[string]string) (*http.Request, error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.resolve(href), reader)
	if err != nil {
		return nil, cferr.Wrap(cferr.Transport, err, "build "+method+" request")
	}
	req.SetBasicAuth(c.username, c.password)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(req.Context().Err(), context.Canceled) {
			return nil, cferr.New(cferr.Cancelled, "sync cancelled")
		}
		return nil, cferr.Wrap(cferr.Transport, err, req.Method+" "+req.URL.String())
	}
	return resp, nil
}

// statusError maps an HTTP response's status code to the typed error
// taxonomy spec.md §4.6 requires, or nil for a 2xx. A 404 or 412 comes back
// as NotFound or PreconditionFailed; callers that special-case those (404 on
// Delete, 412 on Put) check the returned code.
func statusError(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return cferr.Newf(cferr.Auth, "caldav server returned %d", resp.StatusCode)
	case resp.StatusCode == http.StatusPreconditionFailed:
		return cferr.New(cferr.PreconditionFailed, "etag precondition failed")
	case resp.StatusCode == http.StatusNotFound:
		return cferr.New(cferr.NotFound, "resource not found")
	case resp.StatusCode >= 500:
		return cferr.Newf(cferr.Transport, "caldav server error %d", resp.StatusCode)
	default:
		return cferr.Newf(cferr.Transport, "unexpected caldav status %d", resp.StatusCode)
	}
}

func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

// Get fetches one resource's VCALENDAR body and current ETag.
func (c *Client) Get(ctx context.Context, href string) (body, etag string, err error) {
	req, err := c.newRequest(ctx, http.MethodGet, href, "", nil)
	if err != nil {
		return "", "", err
	}
	resp, err := c.do(req)
	if err != nil {
		return "", "", err
	}
	defer drainAndClose(resp)

	if serr := statusError(resp); serr != nil {
		return "", "", serr
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", cferr.Wrap(cferr.Transport, err, "read GET response body")
	}
	return string(data), resp.Header.Get("ETag"), nil
}

// Put uploads body to href. ifMatch pins an update to a known ETag;
// ifNoneMatch="*" asserts a create. Exactly one of the two should be set.
// Returns the ETag the server assigned.
func (c *Client) Put(ctx context.Context, href, body, ifMatch, ifNoneMatch string) (etag string, err error) {
	headers := map[string]string{"Content-Type": "text/calendar; charset=utf-8"}
	if ifMatch != "" {
		headers["If-Match"] = ifMatch
	}
	if ifNoneMatch != "" {
		headers["If-None-Match"] = ifNoneMatch
	}

	req, err := c.newRequest(ctx, http.MethodPut, href, body, headers)
	if err != nil {
		return "", err
	}
	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer drainAndClose(resp)

	if serr := statusError(resp); serr != nil {
		return "", serr
	}
	return resp.Header.Get("ETag"), nil
}

// Delete removes href, pinned to ifMatch. A 404 is returned as a NotFound
// error; the caller (the synchronizer) treats that as an already-satisfied
// delete.
func (c *Client) Delete(ctx context.Context, href, ifMatch string) error {
	headers := map[string]string{}
	if ifMatch != "" {
		headers["If-Match"] = ifMatch
	}
	req, err := c.newRequest(ctx, http.MethodDelete, href, "", headers)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer drainAndClose(resp)
	return statusError(resp)
}

func (c *Client) propfind(ctx context.Context, href, body string, depth int) (*multistatus, error) {
	req, err := c.newRequest(ctx, "PROPFIND", href, body, map[string]string{
		"Content-Type": "application/xml; charset=utf-8",
		"Depth":        fmt.Sprintf("%d", depth),
	})
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer drainAndClose(resp)

	if resp.StatusCode != http.StatusMultiStatus {
		return nil, statusErrorOrDefault(resp)
	}
	var ms multistatus
	if err := xml.NewDecoder(resp.Body).Decode(&ms); err != nil {
		return nil, cferr.Wrap(cferr.Transport, err, "decode PROPFIND response")
	}
	return &ms, nil
}

func (c *Client) report(ctx context.Context, href, body string, depth int) (*http.Response, error) {
	req, err := c.newRequest(ctx, "REPORT", href, body, map[string]string{
		"Content-Type": "application/xml; charset=utf-8",
		"Depth":        fmt.Sprintf("%d", depth),
	})
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusMultiStatus {
		defer drainAndClose(resp)
		return nil, statusErrorOrDefault(resp)
	}
	return resp, nil
}

func statusErrorOrDefault(resp *http.Response) error {
	if err := statusError(resp); err != nil {
		return err
	}
	return cferr.Newf(cferr.Transport, "expected 207 Multi-Status, got %d", resp.StatusCode)
}

func firstOKProp(r response) (prop, bool) {
	for _, ps := range r.Propstat {
		if strings.Contains(ps.Status, "200") {
			return ps.Prop, true
		}
	}
	return prop{}, false
}
