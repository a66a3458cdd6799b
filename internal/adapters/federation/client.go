// Package federation fetches athlete results pages from the FFN website.
package federation

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/okian/ffnsync/pkg/logger"
	"github.com/okian/ffnsync/pkg/metrics"
)

// iufParam is the query parameter carrying the athlete's federation id.
const iufParam = "idiuf"

// Client downloads results pages.
type Client struct {
	baseURL      string
	http         *http.Client
	timeout      time.Duration
	userAgent    string
	maxBodyBytes int64
	logger       logger.Logger
}

// NewClient creates a federation client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:      DefaultBaseURL,
		http:         &http.Client{},
		timeout:      DefaultTimeout,
		userAgent:    DefaultUserAgent,
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("federation")
	}
	return c
}

// ResultsURL returns the page address for iuf.
func (c *Client) ResultsURL(iuf string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set(iufParam, iuf)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// FetchResults downloads the results page of the athlete with the given
// IUF and returns it as UTF-8 text. Every failure wraps ErrUpstream except
// an empty IUF.
func (c *Client) FetchResults(ctx context.Context, iuf string) (string, error) {
	iuf = strings.TrimSpace(iuf)
	if iuf == "" {
		return "", ErrInvalidIUF
	}
	target, err := c.ResultsURL(iuf)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	page, err := c.fetch(ctx, target)
	metrics.RecordUpstreamLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		c.logger.Warn(ctx, "federation fetch failed",
			logger.String("iuf", iuf),
			logger.Duration("elapsed", time.Since(start)),
			logger.Error(err))
		return "", err
	}

	c.logger.Debug(ctx, "federation page fetched",
		logger.String("iuf", iuf),
		logger.Int("bytes", len(page)),
		logger.Duration("elapsed", time.Since(start)))
	return page, nil
}

func (c *Client) fetch(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		metrics.RecordUpstreamError("request")
		return "", fmt.Errorf("%w: build request: %w", ErrUpstream, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordUpstreamError("transport")
		return "", fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.RecordUpstreamError("status")
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize+1))
		return "", &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     http.StatusText(resp.StatusCode),
			Body:       truncate(string(body), maxErrorBodySize),
			URL:        target,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes+1))
	if err != nil {
		metrics.RecordUpstreamError("read")
		return "", fmt.Errorf("%w: read body: %w", ErrUpstream, err)
	}
	if int64(len(body)) > c.maxBodyBytes {
		metrics.RecordUpstreamError("too_large")
		return "", fmt.Errorf("%w: %w (limit %d bytes)", ErrUpstream, ErrPageTooLarge, c.maxBodyBytes)
	}
	return decode(body, resp.Header.Get("Content-Type")), nil
}

// decode converts body to UTF-8 using the charset announced in the
// Content-Type header. Unknown or missing charsets leave the bytes as is.
func decode(body []byte, contentType string) string {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return string(body)
	}
	name := strings.ToLower(params["charset"])
	if name == "" || name == "utf-8" || name == "utf8" {
		return string(body)
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return string(body)
	}
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return string(body)
	}
	return string(out)
}
