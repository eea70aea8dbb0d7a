// Package httpclient is the single place App Store exchanges go through: it
// serializes payloads, decodes JSON or property-list responses and flushes the
// session cookie jar after every exchange.
package httpclient

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/apex/log"
	"github.com/blacktop/go-plist"
	"golang.org/x/net/http/httpproxy"
)

const (
	// DefaultUserAgent impersonates Apple Configurator; the private endpoints
	// reject unknown agents.
	DefaultUserAgent = "Configurator/2.15 (Macintosh; OperatingSystem X 11.0.0; 16G29) AppleWebKit/2603.3.8"

	bodyPreviewSize = 2048
)

// ResponseFormat selects how a response body is decoded.
type ResponseFormat int

const (
	ResponseFormatJSON ResponseFormat = iota
	ResponseFormatPlist
)

// CookieSaver is a cookie jar that can flush itself to persistent storage.
type CookieSaver interface {
	http.CookieJar
	Save() error
}

// Request describes one exchange. Out (if non-nil) receives the decoded body.
type Request struct {
	Method          string
	URL             string
	Headers         map[string]string
	Payload         Payload
	Format          ResponseFormat
	FollowRedirects bool
	Out             any
}

// Result carries the response status and headers; the body has already been
// decoded into Request.Out. Header lookup via http.Header is case-insensitive.
type Result struct {
	StatusCode int
	Headers    http.Header
}

// GetHeader returns the named response header ("" if absent).
func (r *Result) GetHeader(key string) string {
	return r.Headers.Get(key)
}

// ResponseError is returned when the body cannot be decoded in the requested
// format. It keeps a preview of the raw body for diagnostics.
type ResponseError struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("failed to parse response (status %d): %s", e.StatusCode, string(e.Body))
}

// Config configures a Client.
type Config struct {
	Proxy    string
	Insecure bool
	Jar      CookieSaver
}

// Client owns the HTTP session and its cookie jar. One exchange runs at a
// time per Client: the jar read on request build and the jar mutation on
// response must not interleave across goroutines.
type Client struct {
	mu sync.Mutex

	std       *http.Client // follows redirects
	noRedirs  *http.Client // hands 3xx responses back to the caller
	jar       CookieSaver
	userAgent string
}

// New returns a Client sharing one cookie jar between a redirect-following
// and a redirect-stopping http.Client.
func New(config *Config) *Client {
	transport := &http.Transport{
		Proxy:             GetProxy(config.Proxy),
		TLSClientConfig:   &tls.Config{InsecureSkipVerify: config.Insecure},
		ForceAttemptHTTP2: true,
	}

	return &Client{
		std: &http.Client{
			Jar:       config.Jar,
			Transport: transport,
		},
		noRedirs: &http.Client{
			Jar:       config.Jar,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		jar:       config.Jar,
		userAgent: DefaultUserAgent,
	}
}

// GetProxy takes either an input string or reads the environment and returns
// a proxy function.
func GetProxy(proxy string) func(*http.Request) (*url.URL, error) {
	if len(proxy) > 0 {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			log.WithError(err).Error("bad proxy url")
		}
		log.Debugf("proxy set to: %s", proxyURL)

		return http.ProxyURL(proxyURL)
	}

	conf := httpproxy.FromEnvironment()
	if len(conf.HTTPProxy) > 0 || len(conf.HTTPSProxy) > 0 {
		log.WithFields(log.Fields{
			"http_proxy":  conf.HTTPProxy,
			"https_proxy": conf.HTTPSProxy,
			"no_proxy":    conf.NoProxy,
		}).Debugf("proxy info from environment")
	}

	return http.ProxyFromEnvironment
}

// HTTPClient exposes the redirect-following session client for raw transfers
// (package streaming) that need the authenticated cookies.
func (c *Client) HTTPClient() *http.Client {
	return c.std
}

// SaveCookies flushes the session cookies; failures are logged, not fatal.
func (c *Client) SaveCookies() {
	if c.jar == nil {
		return
	}
	if err := c.jar.Save(); err != nil {
		log.WithError(err).Warn("failed to save session cookies")
	}
}

// Do performs one exchange. For 3xx responses the body is skipped and the
// caller is expected to inspect the Location header itself. The cookie jar is
// flushed whether the exchange succeeded or not.
func (c *Client) Do(req *Request) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.SaveCookies()

	var body io.Reader
	contentType := ""
	if req.Payload != nil {
		data, ct, err := req.Payload.Serialize()
		if err != nil {
			return nil, fmt.Errorf("failed to serialize request payload: %v", err)
		}
		body = bytes.NewReader(data)
		contentType = ct
	}

	hreq, err := http.NewRequest(req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create http %s request: %v", req.Method, err)
	}
	for key, value := range req.Headers {
		hreq.Header.Set(key, value)
	}
	if hreq.Header.Get("User-Agent") == "" {
		hreq.Header.Set("User-Agent", c.userAgent)
	}
	if contentType != "" && hreq.Header.Get("Content-Type") == "" {
		hreq.Header.Set("Content-Type", contentType)
	}

	client := c.std
	if !req.FollowRedirects {
		client = c.noRedirs
	}

	response, err := client.Do(hreq)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, err
	}

	log.Debugf("%s %s (%d):\n%s\n", req.Method, req.URL, response.StatusCode, string(raw))

	result := &Result{
		StatusCode: response.StatusCode,
		Headers:    response.Header,
	}

	// redirect bodies are interstitial HTML; the caller retries against the
	// Location header instead
	if response.StatusCode >= 300 && response.StatusCode < 400 {
		return result, nil
	}

	if req.Out != nil {
		switch req.Format {
		case ResponseFormatJSON:
			err = json.Unmarshal(raw, req.Out)
		case ResponseFormatPlist:
			_, err = plist.Unmarshal(raw, req.Out)
		default:
			err = fmt.Errorf("unsupported response format: %d", req.Format)
		}
		if err != nil {
			preview := raw
			if len(preview) > bodyPreviewSize {
				preview = preview[:bodyPreviewSize]
			}
			return nil, &ResponseError{
				StatusCode: response.StatusCode,
				Headers:    response.Header,
				Body:       preview,
			}
		}
	}

	return result, nil
}
