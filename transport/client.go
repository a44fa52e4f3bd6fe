package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultUserAgent identifies this client to the server.
	DefaultUserAgent = "labbcat-go/0.1"

	cookieMarker = "Cookie "
)

// Request describes one exchange. Header values are copied onto the HTTP
// request; Authorization is applied last (see applyAuthorization).
type Request struct {
	Method        string
	URL           string
	Params        Params
	Header        http.Header
	Authorization string
}

// Response is a fully read HTTP response. The body is never interpreted.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r != nil && r.Status >= 200 && r.Status < 300
}

// Stream is a response whose body is left open for the caller to copy.
// The caller must close Body.
type Stream struct {
	Status int
	Header http.Header
	Body   io.ReadCloser
}

// Options configure a Client.
type Options struct {
	// HTTPClient is used for every exchange; a fresh one is built when nil.
	HTTPClient *http.Client
	// Jar holds session cookies. A new jar is created when nil and
	// HTTPClient has none.
	Jar       http.CookieJar
	UserAgent string
	Language  string
	Logger    *zap.Logger
	Metrics   *Metrics
}

// Client performs GET, POST and multipart POST exchanges.
type Client struct {
	http      *http.Client
	userAgent string
	language  string
	logger    *zap.Logger
	metrics   *Metrics
}

// NewClient builds a Client. Each Client owns its cookie jar unless one is
// injected, so cookies never leak between sessions.
func NewClient(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	} else {
		dup := *hc
		hc = &dup
	}
	switch {
	case opts.Jar != nil:
		hc.Jar = opts.Jar
	case hc.Jar == nil:
		jar, _ := cookiejar.New(nil) // only fails on a bad PublicSuffixList
		hc.Jar = jar
	}
	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = DefaultUserAgent
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http:      hc,
		userAgent: ua,
		language:  strings.TrimSpace(opts.Language),
		logger:    logger,
		metrics:   opts.Metrics,
	}
}

// Jar returns the cookie jar shared by this client's requests.
func (c *Client) Jar() http.CookieJar {
	return c.http.Jar
}

// Get sends params in the query string. Method defaults to GET and may be
// overridden, e.g. PUT with query parameters.
func (c *Client) Get(ctx context.Context, req Request) (*Response, error) {
	method := methodOr(req.Method, http.MethodGet)
	target, err := EncodeQuery(req.URL, req.Params)
	if err != nil {
		return nil, &Error{Op: method, URL: req.URL, Err: err}
	}
	resp, err := c.do(ctx, "get", method, target, nil, "", req)
	if err != nil {
		return nil, err
	}
	return readResponse(method, target, resp)
}

// Post sends params as an application/x-www-form-urlencoded body. nil
// values are left out entirely.
func (c *Client) Post(ctx context.Context, req Request) (*Response, error) {
	method := methodOr(req.Method, http.MethodPost)
	body, err := EncodeForm(req.Params)
	if err != nil {
		return nil, &Error{Op: method, URL: req.URL, Err: err}
	}
	resp, err := c.do(ctx, "post", method, req.URL, strings.NewReader(body), "application/x-www-form-urlencoded", req)
	if err != nil {
		return nil, err
	}
	return readResponse(method, req.URL, resp)
}

// PostJSON sends body verbatim as application/json. Params, if any, go in
// the query string.
func (c *Client) PostJSON(ctx context.Context, req Request, body []byte) (*Response, error) {
	method := methodOr(req.Method, http.MethodPost)
	target, err := EncodeQuery(req.URL, req.Params)
	if err != nil {
		return nil, &Error{Op: method, URL: req.URL, Err: err}
	}
	resp, err := c.do(ctx, "json", method, target, bytes.NewReader(body), "application/json", req)
	if err != nil {
		return nil, err
	}
	return readResponse(method, target, resp)
}

// PostMultipart streams params as multipart/form-data. File parameters are
// read in ChunkSize pieces. cancel (which may be nil) is checked before each
// chunk and each part boundary; once set, the exchange fails with
// ErrRequestCancelled. A cancel that arrives after the body has been sent
// does not discard the server's response.
func (c *Client) PostMultipart(ctx context.Context, req Request, cancel *Canceller) (*Response, error) {
	method := methodOr(req.Method, http.MethodPost)
	parts, err := req.Params.flatten()
	if err != nil {
		return nil, &Error{Op: method, URL: req.URL, Err: err}
	}
	body := newMultipartBody(ctx, parts, cancel)
	resp, err := c.do(ctx, "multipart", method, req.URL, body, body.contentType(), req)
	c.metrics.addUploaded(body.fileBytes())
	if body.wasAborted() || errors.Is(err, ErrRequestCancelled) {
		if resp != nil {
			_ = resp.Body.Close()
		}
		c.metrics.incCancelled()
		return nil, &Error{Op: method, URL: req.URL, Err: ErrRequestCancelled}
	}
	if err != nil {
		return nil, err
	}
	return readResponse(method, req.URL, resp)
}

// Open performs a GET and hands the open body to the caller.
func (c *Client) Open(ctx context.Context, req Request) (*Stream, error) {
	method := methodOr(req.Method, http.MethodGet)
	target, err := EncodeQuery(req.URL, req.Params)
	if err != nil {
		return nil, &Error{Op: method, URL: req.URL, Err: err}
	}
	resp, err := c.do(ctx, "open", method, target, nil, "", req)
	if err != nil {
		return nil, err
	}
	return &Stream{Status: resp.StatusCode, Header: resp.Header, Body: resp.Body}, nil
}

func (c *Client) do(ctx context.Context, op, method, target string, body io.Reader, contentType string, req Request) (*http.Response, error) {
	if err := validateURL(target); err != nil {
		return nil, &Error{Op: method, URL: target, Err: err}
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, &Error{Op: method, URL: target, Err: fmt.Errorf("%w: %v", ErrMalformedURL, err)}
	}
	if _, streamed := body.(*multipartBody); streamed {
		httpReq.ContentLength = -1
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("User-Agent", c.userAgent)
	if c.language != "" && httpReq.Header.Get("Accept-Language") == "" {
		httpReq.Header.Set("Accept-Language", c.language)
	}
	applyAuthorization(httpReq.Header, req.Authorization)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	elapsed := time.Since(start)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	c.metrics.observe(op, method, status, elapsed)
	if err != nil {
		c.logger.Debug("request failed",
			zap.String("method", method),
			zap.String("url", target),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return nil, &Error{Op: method, URL: target, Err: err}
	}
	c.logger.Debug("request",
		zap.String("method", method),
		zap.String("url", target),
		zap.Int("status", status),
		zap.Duration("elapsed", elapsed))
	return resp, nil
}

// applyAuthorization installs auth as either the Cookie header (when it
// starts with "Cookie ") or the Authorization header, never both.
func applyAuthorization(h http.Header, auth string) {
	if auth == "" {
		return
	}
	if strings.HasPrefix(auth, cookieMarker) {
		h.Del("Authorization")
		h.Set("Cookie", strings.TrimPrefix(auth, cookieMarker))
		return
	}
	h.Del("Cookie")
	h.Set("Authorization", auth)
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrMalformedURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrMalformedURL)
	}
	return nil
}

func readResponse(method, target string, resp *http.Response) (*Response, error) {
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Op: method, URL: target, Err: fmt.Errorf("read response: %w", err)}
	}
	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

func methodOr(method, fallback string) string {
	if strings.TrimSpace(method) == "" {
		return fallback
	}
	return strings.ToUpper(method)
}

// IsCancelled reports whether err came from a cooperative cancel.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrRequestCancelled)
}
