package labbcat

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
)

func TestNewSessionRejectsMalformedURL(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "   ", "ftp://example.org/labbcat", "example.org/labbcat", "http://", "http://[::1"} {
		_, err := NewSession(raw, Options{})
		if err == nil {
			t.Fatalf("NewSession(%q) returned nil error", raw)
		}
		if !errors.Is(err, ErrMalformedURL) {
			t.Fatalf("NewSession(%q) error = %v, want ErrMalformedURL", raw, err)
		}
		var ue *URLError
		if !errors.As(err, &ue) {
			t.Fatalf("NewSession(%q) error type = %T, want *URLError", raw, err)
		}
	}
}

func TestNewSessionNormalizesBaseURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "https://labbcat.example.org/labbcat", want: "https://labbcat.example.org/labbcat/"},
		{in: "https://labbcat.example.org/labbcat/", want: "https://labbcat.example.org/labbcat/"},
		{in: " http://localhost:8080/labbcat?x=1#frag ", want: "http://localhost:8080/labbcat/"},
		{in: "http://localhost:8080", want: "http://localhost:8080/"},
	}
	for _, tt := range tests {
		s, err := NewSession(tt.in, Options{})
		if err != nil {
			t.Fatalf("NewSession(%q) returned error: %v", tt.in, err)
		}
		if got := s.URL(); got != tt.want {
			t.Fatalf("URL() for %q = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRequiredAuthorizationBatch(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(t)
	want := basicAuthorization("ada", "secret")
	srv.requireAuth(want)

	s := srv.session(t, Options{Username: "ada", Password: "secret", Batch: true})
	auth, err := s.RequiredAuthorization(testContext(t))
	if err != nil {
		t.Fatalf("RequiredAuthorization returned error: %v", err)
	}
	if auth != want {
		t.Fatalf("authorization = %q, want %q", auth, want)
	}
	if s.Version() != testVersion {
		t.Fatalf("Version() = %q, want %q", s.Version(), testVersion)
	}

	// The auth check result is cached.
	if _, err := s.RequiredAuthorization(testContext(t)); err != nil {
		t.Fatalf("second RequiredAuthorization returned error: %v", err)
	}
	if got := srv.hitCount("api/store/"); got != 2 {
		t.Fatalf("auth check requests = %d, want 2 (anonymous then basic)", got)
	}
}

func TestRequiredAuthorizationBatchFailures(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(t)
	srv.requireAuth(basicAuthorization("ada", "secret"))

	tests := []struct {
		name    string
		opts    Options
		message string
	}{
		{name: "missing", opts: Options{Batch: true}, message: "username/password required"},
		{name: "invalid", opts: Options{Username: "ada", Password: "wrong", Batch: true}, message: "username/password invalid"},
		{name: "no prompter", opts: Options{Username: "ada"}, message: "username/password required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := srv.session(t, tt.opts)
			_, err := s.LayerIDs(testContext(t))
			if !IsStoreKind(err, KindUnauthorized) {
				t.Fatalf("error = %v, want KindUnauthorized", err)
			}
			var se *StoreError
			errors.As(err, &se)
			if se.Message != tt.message {
				t.Fatalf("message = %q, want %q", se.Message, tt.message)
			}
		})
	}
}

func TestRequiredAuthorizationPrompts(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(t)
	srv.requireAuth(basicAuthorization("ada", "right"))

	var prompts atomic.Int32
	s := srv.session(t, Options{
		Username: "ada",
		Password: "stale",
		Prompter: PrompterFunc(func(ctx context.Context, serverURL string) (string, string, error) {
			if serverURL != srv.baseURL()+"/" {
				t.Errorf("prompter serverURL = %q", serverURL)
			}
			if prompts.Add(1) == 1 {
				return "ada", "wrong", nil
			}
			return "ada", "right", nil
		}),
	})
	if _, err := s.RequiredAuthorization(testContext(t)); err != nil {
		t.Fatalf("RequiredAuthorization returned error: %v", err)
	}
	if got := prompts.Load(); got != 2 {
		t.Fatalf("prompts = %d, want 2", got)
	}
}

func TestRequiredAuthorizationPrompterError(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(t)
	srv.requireAuth(basicAuthorization("ada", "right"))
	declined := errors.New("declined")

	s := srv.session(t, Options{
		Prompter: PrompterFunc(func(context.Context, string) (string, string, error) {
			return "", "", declined
		}),
	})
	_, err := s.RequiredAuthorization(testContext(t))
	if !IsStoreKind(err, KindUnauthorized) || !errors.Is(err, declined) {
		t.Fatalf("error = %v, want KindUnauthorized wrapping the prompter error", err)
	}
}

func TestRequiredAuthorizationRejectsNonLabbcat(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(t)
	srv.handle("api/store/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>It works!</body></html>"))
	})
	s := srv.session(t, Options{})
	if _, err := s.RequiredAuthorization(testContext(t)); !IsStoreKind(err, KindNotLabbcat) {
		t.Fatalf("error = %v, want KindNotLabbcat", err)
	}
}

func TestRequiredAuthorizationChecksMinVersion(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(t)
	s := srv.session(t, Options{MinVersion: "20990101.0000"})
	if _, err := s.RequiredAuthorization(testContext(t)); !IsStoreKind(err, KindVersion) {
		t.Fatalf("error = %v, want KindVersion", err)
	}

	s = srv.session(t, Options{MinVersion: "20200101.0000"})
	if _, err := s.RequiredAuthorization(testContext(t)); err != nil {
		t.Fatalf("RequiredAuthorization returned error: %v", err)
	}
}

func TestCookieAuthorizationPassthrough(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(t)
	var cookie, authz atomic.Value
	srv.handle("api/store/getId", func(w http.ResponseWriter, r *http.Request) {
		cookie.Store(r.Header.Get("Cookie"))
		authz.Store(r.Header.Get("Authorization"))
		writeEnvelope(w, http.StatusOK, "demo")
	})

	s := srv.session(t, Options{Authorization: "Cookie JSESSIONID=abc123", Username: "ignored", Password: "ignored"})
	id, err := s.ID(testContext(t))
	if err != nil {
		t.Fatalf("ID returned error: %v", err)
	}
	if id != "demo" {
		t.Fatalf("ID = %q, want demo", id)
	}
	if got := cookie.Load(); got != "JSESSIONID=abc123" {
		t.Fatalf("Cookie header = %v, want JSESSIONID=abc123", got)
	}
	if got := authz.Load(); got != "" {
		t.Fatalf("Authorization header = %v, want empty", got)
	}
}

func TestSetAuthorizationForcesNewProbe(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(t)
	s := srv.session(t, Options{})
	if _, err := s.RequiredAuthorization(testContext(t)); err != nil {
		t.Fatalf("RequiredAuthorization returned error: %v", err)
	}
	s.SetAuthorization("Basic eDp5")
	if _, err := s.RequiredAuthorization(testContext(t)); err != nil {
		t.Fatalf("RequiredAuthorization returned error: %v", err)
	}
	if got := srv.hitCount("api/store/"); got != 2 {
		t.Fatalf("auth check requests = %d, want 2", got)
	}
}
