package labbcat

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/five82/labbcat/envelope"
	"github.com/five82/labbcat/transport"
)

const (
	// DefaultRefresh is the poll interval used when the server suggests none.
	DefaultRefresh = 2 * time.Second

	storePath = "api/store/"
)

// Prompter supplies credentials interactively. Returning an error aborts
// the authorization check.
type Prompter interface {
	Credentials(ctx context.Context, serverURL string) (username, password string, err error)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context, serverURL string) (string, string, error)

// Credentials implements Prompter.
func (f PrompterFunc) Credentials(ctx context.Context, serverURL string) (string, string, error) {
	return f(ctx, serverURL)
}

// Options configure a Session.
type Options struct {
	Username string
	Password string
	// Authorization is sent verbatim with every request, e.g.
	// "Cookie JSESSIONID=..." after an external login. It takes precedence
	// over Username and Password.
	Authorization string
	// Batch suppresses the Prompter: credentials are tried once.
	Batch bool
	// Verbose mirrors request parameters and response bodies to Logger.
	Verbose  bool
	Language string

	HTTPClient *http.Client
	CookieJar  http.CookieJar
	Logger     *zap.Logger
	Metrics    *transport.Metrics
	Prompter   Prompter

	// MinVersion rejects servers whose version sorts below it.
	MinVersion     string
	DefaultRefresh time.Duration
	// Timeout bounds each HTTP exchange when HTTPClient is nil.
	Timeout time.Duration
}

// Session talks to one LaBB-CAT server with one set of credentials. It is
// safe for concurrent use.
type Session struct {
	base       *url.URL
	client     *transport.Client
	logger     *zap.Logger
	verbose    bool
	batch      bool
	prompter   Prompter
	minVersion string
	refresh    time.Duration

	authMu        sync.Mutex
	authChecked   bool
	authorization string
	username      string
	password      string
	version       string

	opsMu sync.Mutex
	ops   map[*operation]struct{}
}

// operation is the cancel state of one in-flight call.
type operation struct {
	cancel *transport.Canceller
	done   chan struct{}
	once   sync.Once
}

func (o *operation) stop() {
	o.cancel.Cancel()
	o.once.Do(func() { close(o.done) })
}

func (o *operation) stopped() bool {
	return o.cancel.Cancelled()
}

// sleep waits for d, returning early (with a nil error) when the operation
// is stopped, or with ctx.Err() when ctx ends.
func (o *operation) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-o.done:
		return nil
	case <-timer.C:
		return nil
	}
}

// NewSession validates baseURL and builds a Session. No request is sent
// until the first call that needs the server.
func NewSession(baseURL string, opts Options) (*Session, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	refresh := opts.DefaultRefresh
	if refresh <= 0 {
		refresh = DefaultRefresh
	}
	s := &Session{
		base: base,
		client: transport.NewClient(transport.Options{
			HTTPClient: hc,
			Jar:        opts.CookieJar,
			Language:   opts.Language,
			Logger:     logger.Named("transport"),
			Metrics:    opts.Metrics,
		}),
		logger:        logger,
		verbose:       opts.Verbose,
		batch:         opts.Batch,
		prompter:      opts.Prompter,
		minVersion:    strings.TrimSpace(opts.MinVersion),
		refresh:       refresh,
		authorization: opts.Authorization,
		username:      opts.Username,
		password:      opts.Password,
		ops:           make(map[*operation]struct{}),
	}
	return s, nil
}

// URL returns the normalized base URL, always ending in "/".
func (s *Session) URL() string {
	return s.base.String()
}

// Version returns the server version seen by the authorization check, or
// "" before the first check.
func (s *Session) Version() string {
	s.authMu.Lock()
	defer s.authMu.Unlock()
	return s.version
}

// SetAuthorization replaces the authorization string and forces a new
// check on the next call.
func (s *Session) SetAuthorization(auth string) {
	s.authMu.Lock()
	defer s.authMu.Unlock()
	s.authorization = auth
	s.authChecked = false
}

// RequiredAuthorization returns the authorization string requests need,
// probing the server on first use. The result can be replayed against
// out-of-band URLs such as a task's result URL.
func (s *Session) RequiredAuthorization(ctx context.Context) (string, error) {
	s.authMu.Lock()
	defer s.authMu.Unlock()
	if s.authChecked {
		return s.authorization, nil
	}

	auth := s.authorization
	usedCredentials := false
	var resp *transport.Response
	for {
		var err error
		resp, err = s.client.Get(ctx, transport.Request{
			URL:           s.endpoint(storePath),
			Authorization: auth,
			Header:        http.Header{"Accept": {"application/json"}},
		})
		if err != nil {
			return "", err
		}
		if resp.Status != http.StatusUnauthorized {
			break
		}
		s.logger.Debug("authorization required", zap.Bool("batch", s.batch), zap.Bool("credentials_tried", usedCredentials))

		if s.batch || s.prompter == nil {
			if usedCredentials {
				s.username, s.password = "", ""
				return "", &StoreError{Kind: KindUnauthorized, Message: "username/password invalid"}
			}
			if s.username == "" || s.password == "" {
				return "", &StoreError{Kind: KindUnauthorized, Message: "username/password required"}
			}
			auth = basicAuthorization(s.username, s.password)
			usedCredentials = true
			continue
		}

		if !usedCredentials && s.username != "" && s.password != "" {
			auth = basicAuthorization(s.username, s.password)
			usedCredentials = true
			continue
		}
		user, pass, err := s.prompter.Credentials(ctx, s.base.String())
		if err != nil {
			return "", &StoreError{Kind: KindUnauthorized, Message: "credentials not supplied", Err: err}
		}
		s.username, s.password = user, pass
		auth = basicAuthorization(user, pass)
		usedCredentials = true
	}

	env, err := envelope.Parse(resp.Status, resp.Body)
	if err != nil {
		return "", &StoreError{Kind: KindNotLabbcat, Message: "not a LaBB-CAT server: " + s.base.String(), Err: err}
	}
	if env.Version == "" {
		return "", &StoreError{Kind: KindNotLabbcat, Message: "not a LaBB-CAT server: " + s.base.String()}
	}
	if s.minVersion != "" && env.Version < s.minVersion {
		return "", &StoreError{
			Kind:    KindVersion,
			Message: fmt.Sprintf("server version %s is older than required %s", env.Version, s.minVersion),
		}
	}
	s.version = env.Version
	s.authorization = auth
	s.authChecked = true
	s.logger.Debug("connected", zap.String("url", s.base.String()), zap.String("version", env.Version))
	return auth, nil
}

// Cancel stops every operation in flight on this session: multipart
// uploads fail at their next chunk, and wait and download loops return at
// their next step. Operations started afterwards are unaffected.
func (s *Session) Cancel() {
	s.opsMu.Lock()
	defer s.opsMu.Unlock()
	for op := range s.ops {
		op.stop()
	}
}

func (s *Session) begin() *operation {
	op := &operation{cancel: &transport.Canceller{}, done: make(chan struct{})}
	s.opsMu.Lock()
	s.ops[op] = struct{}{}
	s.opsMu.Unlock()
	return op
}

func (s *Session) end(op *operation) {
	s.opsMu.Lock()
	delete(s.ops, op)
	s.opsMu.Unlock()
}

// endpoint joins a literal API path with escaped path segments.
func (s *Session) endpoint(path string, segments ...string) string {
	var b strings.Builder
	b.WriteString(s.base.String())
	b.WriteString(path)
	for _, seg := range segments {
		if !strings.HasSuffix(b.String(), "/") {
			b.WriteByte('/')
		}
		b.WriteString(url.PathEscape(seg))
	}
	return b.String()
}

func basicAuthorization(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, &URLError{URL: raw, Err: fmt.Errorf("%w: empty", ErrMalformedURL)}
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, &URLError{URL: raw, Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &URLError{URL: raw, Err: fmt.Errorf("unsupported scheme %q", u.Scheme)}
	}
	if u.Host == "" {
		return nil, &URLError{URL: raw, Err: fmt.Errorf("missing host")}
	}
	u.RawQuery = ""
	u.Fragment = ""
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	u.RawPath = ""
	return u, nil
}
