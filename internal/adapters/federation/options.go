package federation

import (
	"net/http"
	"time"

	"github.com/okian/ffnsync/pkg/logger"
)

// Default client settings.
const (
	DefaultBaseURL      = "https://ffn.extranat.fr/webffn/nat_recherche.php"
	DefaultTimeout      = 15 * time.Second
	DefaultUserAgent    = "ffnsync/1.0 (+https://github.com/okian/ffnsync)"
	DefaultMaxBodyBytes = 5 << 20
)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the results page URL the IUF query is appended to.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout bounds each fetch.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithMaxBodyBytes caps how much of a page is read.
func WithMaxBodyBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBodyBytes = n
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}
