package labbcat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

const (
	testVersion = "20250430.1200"
	basePath    = "/labbcat/"
)

// fakeServer is a LaBB-CAT stand-in. Handlers are keyed by the path below
// the base URL, e.g. "api/store/getLayerIds".
type fakeServer struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	hits     map[string]int
	// auth, when set, is the Authorization value every request must carry.
	auth string
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	f := &fakeServer{
		handlers: map[string]http.HandlerFunc{},
		hits:     map[string]int{},
	}
	f.handle("api/store/", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, nil)
	})
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeServer) serve(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, basePath)
	f.mu.Lock()
	f.hits[path]++
	if f.auth != "" && r.Header.Get("Authorization") != f.auth {
		f.mu.Unlock()
		w.Header().Set("WWW-Authenticate", `Basic realm="LaBB-CAT"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	h := f.handlers[path]
	if h == nil {
		for prefix, candidate := range f.handlers {
			if strings.HasSuffix(prefix, "/*") && strings.HasPrefix(path, strings.TrimSuffix(prefix, "*")) {
				h = candidate
				break
			}
		}
	}
	f.mu.Unlock()
	if h == nil {
		writeEnvelope(w, http.StatusNotFound, nil, "not found: "+path)
		return
	}
	h(w, r)
}

func (f *fakeServer) handle(path string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[path] = h
}

func (f *fakeServer) requireAuth(auth string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auth = auth
}

func (f *fakeServer) hitCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

func (f *fakeServer) baseURL() string {
	return f.URL + strings.TrimSuffix(basePath, "/")
}

func (f *fakeServer) session(t *testing.T, opts Options) *Session {
	t.Helper()
	if opts.DefaultRefresh == 0 {
		opts.DefaultRefresh = 5 * time.Millisecond
	}
	s, err := NewSession(f.baseURL(), opts)
	if err != nil {
		t.Fatalf("NewSession returned error: %v", err)
	}
	return s
}

func writeEnvelope(w http.ResponseWriter, status int, model any, errs ...string) {
	if errs == nil {
		errs = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"title":    "LaBB-CAT",
		"version":  testVersion,
		"code":     0,
		"errors":   errs,
		"messages": []string{},
		"model":    model,
	})
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}
