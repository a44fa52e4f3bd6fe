package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestClient_GetEncodesQueryAndHeaders(t *testing.T) {
	t.Parallel()

	var gotQuery, gotUA, gotLang string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotUA = r.Header.Get("User-Agent")
		gotLang = r.Header.Get("Accept-Language")
		w.WriteHeader(http.StatusTeapot)
		_, _ = io.WriteString(w, "short and stout")
	}))
	t.Cleanup(server.Close)

	c := NewClient(Options{Language: "es"})
	resp, err := c.Get(testContext(t), Request{
		URL:    server.URL + "/thread",
		Params: Params{}.Add("threadId", 7).Add("skip", nil).Add("id", []string{"a", "b"}),
	})
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if resp.Status != http.StatusTeapot || string(resp.Body) != "short and stout" {
		t.Fatalf("response = %d %q", resp.Status, resp.Body)
	}
	if resp.OK() {
		t.Fatal("OK() = true for 418")
	}
	if gotQuery != "threadId=7&id=a&id=b" {
		t.Fatalf("query = %q", gotQuery)
	}
	if gotUA != DefaultUserAgent {
		t.Fatalf("User-Agent = %q, want %q", gotUA, DefaultUserAgent)
	}
	if gotLang != "es" {
		t.Fatalf("Accept-Language = %q, want es", gotLang)
	}
}

func TestClient_GetMethodOverride(t *testing.T) {
	t.Parallel()

	var gotMethod, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotQuery = r.URL.RawQuery
	}))
	t.Cleanup(server.Close)

	c := NewClient(Options{})
	if _, err := c.Get(testContext(t), Request{Method: "put", URL: server.URL + "/u/1", Params: Params{}.Add("a", "b")}); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if gotMethod != http.MethodPut || gotQuery != "a=b" {
		t.Fatalf("got %s ?%s, want PUT ?a=b", gotMethod, gotQuery)
	}
}

func TestClient_PostOmitsNilValues(t *testing.T) {
	t.Parallel()

	var gotBody, gotType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
	}))
	t.Cleanup(server.Close)

	c := NewClient(Options{})
	_, err := c.Post(testContext(t), Request{
		URL:    server.URL,
		Params: Params{}.Add("layer", []string{"x", "y"}).Add("gone", nil).Add("n", 1),
	})
	if err != nil {
		t.Fatalf("Post returned error: %v", err)
	}
	if gotType != "application/x-www-form-urlencoded" {
		t.Fatalf("Content-Type = %q", gotType)
	}
	if gotBody != "layer=x&layer=y&n=1" {
		t.Fatalf("body = %q", gotBody)
	}
	if strings.Contains(gotBody, "gone") {
		t.Fatal("nil parameter reached the wire")
	}
}

func TestClient_PostJSON(t *testing.T) {
	t.Parallel()

	var gotBody, gotType, gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
	}))
	t.Cleanup(server.Close)

	c := NewClient(Options{})
	if _, err := c.PostJSON(testContext(t), Request{Method: http.MethodPut, URL: server.URL}, []byte(`{"corpus_name":"c"}`)); err != nil {
		t.Fatalf("PostJSON returned error: %v", err)
	}
	if gotMethod != http.MethodPut || gotType != "application/json" || gotBody != `{"corpus_name":"c"}` {
		t.Fatalf("got %s %q %q", gotMethod, gotType, gotBody)
	}
}

func TestClient_PostMultipartParsesOnServer(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		fields  map[string][]string
		content []byte
		name    string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		fields = r.MultipartForm.Value
		fh := r.MultipartForm.File["transcript"][0]
		name = fh.Filename
		f, _ := fh.Open()
		content, _ = io.ReadAll(f)
		_ = f.Close()
	}))
	t.Cleanup(server.Close)

	payload := bytes.Repeat([]byte("x"), 3*ChunkSize+17)
	c := NewClient(Options{})
	resp, err := c.PostMultipart(testContext(t), Request{
		URL: server.URL,
		Params: Params{}.
			Add("merge", true).
			Add("nothing", nil).
			Add("layer", []string{"a", "b"}).
			Add("transcript", FileFromBytes("t.eaf", payload)),
	}, nil)
	if err != nil {
		t.Fatalf("PostMultipart returned error: %v", err)
	}
	if !resp.OK() {
		t.Fatalf("status = %d: %s", resp.Status, resp.Body)
	}

	mu.Lock()
	defer mu.Unlock()
	if got := fields["merge"]; len(got) != 1 || got[0] != "true" {
		t.Fatalf("merge = %v", got)
	}
	if got := fields["layer"]; len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("layer = %v", got)
	}
	if _, ok := fields["nothing"]; ok {
		t.Fatal("nil parameter sent as a part")
	}
	if name != "t.eaf" || !bytes.Equal(content, payload) {
		t.Fatalf("file = %q (%d bytes)", name, len(content))
	}
}

func TestClient_PostMultipartCancelled(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
	}))
	t.Cleanup(server.Close)

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	cancel := &Canceller{}
	src := &chunkReader{r: bytes.NewReader(make([]byte, 64*ChunkSize))}
	src.onRead = func(n int) {
		if n == 2 {
			cancel.Cancel()
		}
	}
	file := &File{Filename: "big.wav", Open: func() (io.ReadCloser, error) { return src, nil }}

	c := NewClient(Options{Metrics: metrics})
	_, err := c.PostMultipart(testContext(t), Request{URL: server.URL, Params: Params{}.Add("media", file)}, cancel)
	if !IsCancelled(err) {
		t.Fatalf("err = %v, want ErrRequestCancelled", err)
	}
	var terr *Error
	if !errors.As(err, &terr) {
		t.Fatalf("err = %T, want *Error", err)
	}
	if src.reads != 2 {
		t.Fatalf("file reads = %d, want 2", src.reads)
	}
	if got := testutil.ToFloat64(metrics.cancelled); got != 1 {
		t.Fatalf("cancelled counter = %v, want 1", got)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestClient_PostMultipartCancelAfterBodySentKeepsResponse(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	cancel := &Canceller{}
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		_, _ = io.Copy(io.Discard, r.Body)
		_ = r.Body.Close()
		cancel.Cancel()
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": {"application/json"}},
			Body:       io.NopCloser(strings.NewReader(`{"code":0,"errors":[],"messages":[],"model":{"id":"u-42"}}`)),
			Request:    r,
		}, nil
	})

	c := NewClient(Options{HTTPClient: &http.Client{Transport: rt}, Metrics: metrics})
	file := FileFromBytes("t.eaf", bytes.Repeat([]byte("x"), 3*ChunkSize))
	resp, err := c.PostMultipart(testContext(t),
		Request{URL: "http://labbcat.test/api/edit/transcript/upload", Params: Params{}.Add("transcript", file)}, cancel)
	if err != nil {
		t.Fatalf("PostMultipart returned error: %v", err)
	}
	if resp.Status != http.StatusOK || !strings.Contains(string(resp.Body), "u-42") {
		t.Fatalf("response = %d %q", resp.Status, resp.Body)
	}
	if got := testutil.ToFloat64(metrics.cancelled); got != 0 {
		t.Fatalf("cancelled counter = %v, want 0", got)
	}
}

func TestClient_AuthorizationPrecedence(t *testing.T) {
	t.Parallel()

	type seen struct{ cookie, auth string }
	var got seen
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = seen{cookie: r.Header.Get("Cookie"), auth: r.Header.Get("Authorization")}
	}))
	t.Cleanup(server.Close)

	tests := []struct {
		name  string
		auth  string
		want  seen
		extra http.Header
	}{
		{name: "cookie", auth: "Cookie JSESSIONID=abc", want: seen{cookie: "JSESSIONID=abc"}},
		{name: "basic", auth: "Basic dTpw", want: seen{auth: "Basic dTpw"}},
		{name: "cookie replaces caller authorization", auth: "Cookie a=b", want: seen{cookie: "a=b"}, extra: http.Header{"Authorization": {"Bearer x"}}},
		{name: "none", auth: "", want: seen{}},
	}
	c := NewClient(Options{})
	for _, tt := range tests {
		if _, err := c.Get(testContext(t), Request{URL: server.URL, Authorization: tt.auth, Header: tt.extra}); err != nil {
			t.Fatalf("%s: Get returned error: %v", tt.name, err)
		}
		if got != tt.want {
			t.Fatalf("%s: headers = %+v, want %+v", tt.name, got, tt.want)
		}
	}
}

func TestClient_CookieJarIsPerClient(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "s1", Path: "/"})
			return
		}
		if c, err := r.Cookie("JSESSIONID"); err == nil {
			_, _ = io.WriteString(w, c.Value)
		}
	}))
	t.Cleanup(server.Close)

	ctx := testContext(t)
	a := NewClient(Options{})
	b := NewClient(Options{})
	if _, err := a.Get(ctx, Request{URL: server.URL + "/login"}); err != nil {
		t.Fatalf("login returned error: %v", err)
	}
	respA, err := a.Get(ctx, Request{URL: server.URL + "/check"})
	if err != nil {
		t.Fatalf("check A returned error: %v", err)
	}
	respB, err := b.Get(ctx, Request{URL: server.URL + "/check"})
	if err != nil {
		t.Fatalf("check B returned error: %v", err)
	}
	if string(respA.Body) != "s1" {
		t.Fatalf("client A cookie = %q, want s1", respA.Body)
	}
	if len(respB.Body) != 0 {
		t.Fatalf("client B saw cookie %q", respB.Body)
	}
}

func TestClient_MalformedURL(t *testing.T) {
	t.Parallel()

	c := NewClient(Options{})
	for _, raw := range []string{"not a url", "ftp://example.com/x", "http:///nohost"} {
		_, err := c.Get(testContext(t), Request{URL: raw})
		if !errors.Is(err, ErrMalformedURL) {
			t.Fatalf("Get(%q) err = %v, want ErrMalformedURL", raw, err)
		}
	}
}

func TestClient_NetworkErrorIsTransportError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewClient(Options{}).Get(testContext(t), Request{URL: url})
	var terr *Error
	if !errors.As(err, &terr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if terr.Op != http.MethodGet {
		t.Fatalf("Op = %q, want GET", terr.Op)
	}
}

func TestClient_OpenStreamsBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="frag.wav"`)
		_, _ = io.WriteString(w, "RIFF")
	}))
	t.Cleanup(server.Close)

	s, err := NewClient(Options{}).Open(testContext(t), Request{URL: server.URL})
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer func() { _ = s.Body.Close() }()
	b, _ := io.ReadAll(s.Body)
	if s.Status != http.StatusOK || string(b) != "RIFF" {
		t.Fatalf("stream = %d %q", s.Status, b)
	}
	if s.Header.Get("Content-Disposition") == "" {
		t.Fatal("missing Content-Disposition header")
	}
}

func TestMetrics_CountsRequests(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	c := NewClient(Options{Metrics: m})
	ctx := testContext(t)
	_, _ = c.Get(ctx, Request{URL: server.URL + "/ok"})
	_, _ = c.Get(ctx, Request{URL: server.URL + "/ok"})
	_, _ = c.Get(ctx, Request{URL: server.URL + "/missing"})
	_, _ = c.PostMultipart(ctx, Request{URL: server.URL, Params: Params{}.Add("f", FileFromBytes("f.txt", []byte("abcd")))}, nil)

	if got := testutil.ToFloat64(m.requests.WithLabelValues("get", "GET", "200")); got != 2 {
		t.Fatalf("200 count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("get", "GET", "404")); got != 1 {
		t.Fatalf("404 count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.uploadedBytes); got != 4 {
		t.Fatalf("uploaded bytes = %v, want 4", got)
	}

	var nilMetrics *Metrics
	nilMetrics.observe("get", "GET", 200, time.Second)
	nilMetrics.addUploaded(10)
	nilMetrics.incCancelled()
}
