package transport

import (
	"strings"
	"testing"
	"time"
)

func TestEncodeQuery_PreservesOrderAndOmitsNil(t *testing.T) {
	t.Parallel()

	var missing *string
	params := Params{}.
		Add("a", "1").
		Add("skip", nil).
		Add("layer", []string{"orthography", "phonemes"}).
		Add("n", 3).
		Add("absent", missing).
		Add("flag", true)

	got, err := EncodeQuery("http://example.com/labbcat/search", params)
	if err != nil {
		t.Fatalf("EncodeQuery returned error: %v", err)
	}
	want := "http://example.com/labbcat/search?a=1&layer=orthography&layer=phonemes&n=3&flag=true"
	if got != want {
		t.Fatalf("EncodeQuery = %q, want %q", got, want)
	}
}

func TestEncodeQuery_AppendsToExistingQuery(t *testing.T) {
	t.Parallel()

	got, err := EncodeQuery("http://example.com/x?id=1", Params{}.Add("q", "a b&c"))
	if err != nil {
		t.Fatalf("EncodeQuery returned error: %v", err)
	}
	if got != "http://example.com/x?id=1&q=a+b%26c" {
		t.Fatalf("EncodeQuery = %q", got)
	}
}

func TestEncodeQuery_SliceYieldsOnePairPerElement(t *testing.T) {
	t.Parallel()

	values := []any{"x", 2, 3.5, false, nil}
	got, err := EncodeQuery("http://h/p", Params{}.Add("v", values))
	if err != nil {
		t.Fatalf("EncodeQuery returned error: %v", err)
	}
	if n := strings.Count(got, "v="); n != 4 {
		t.Fatalf("pair count = %d, want 4 (%q)", n, got)
	}
	if !strings.HasSuffix(got, "?v=x&v=2&v=3.5&v=false") {
		t.Fatalf("EncodeQuery = %q", got)
	}
}

func TestEncodeQuery_RejectsFiles(t *testing.T) {
	t.Parallel()

	_, err := EncodeQuery("http://h/p", Params{}.Add("f", FileFromBytes("a.txt", nil)))
	if err == nil {
		t.Fatal("expected error for file value in query")
	}
}

func TestEncodeForm_OmitsNil(t *testing.T) {
	t.Parallel()

	got, err := EncodeForm(Params{}.Add("a", "x y").Add("b", nil).Add("c", []int{1, 2}))
	if err != nil {
		t.Fatalf("EncodeForm returned error: %v", err)
	}
	if got != "a=x+y&c=1&c=2" {
		t.Fatalf("EncodeForm = %q", got)
	}
}

func TestFlatten_RejectsMaps(t *testing.T) {
	t.Parallel()

	if _, err := (Params{}.Add("m", map[string]string{"k": "v"})).flatten(); err == nil {
		t.Fatal("expected error for map value")
	}
}

func TestFileContentType(t *testing.T) {
	t.Parallel()

	if got := (&File{Filename: "x.unknownext"}).contentType(); got != "application/octet-stream" {
		t.Fatalf("contentType = %q, want application/octet-stream", got)
	}
	if got := (&File{Filename: "x.wav", ContentType: "audio/wav"}).contentType(); got != "audio/wav" {
		t.Fatalf("contentType = %q, want audio/wav", got)
	}
}

func TestEncodeQuery_OmitsNilStringerPointers(t *testing.T) {
	t.Parallel()

	var timeout *time.Duration
	wait := 1500 * time.Millisecond
	params := Params{}.
		Add("a", "1").
		Add("timeout", timeout).
		Add("wait", &wait)

	got, err := EncodeQuery("http://example.com/labbcat/thread", params)
	if err != nil {
		t.Fatalf("EncodeQuery returned error: %v", err)
	}
	if want := "http://example.com/labbcat/thread?a=1&wait=1.5s"; got != want {
		t.Fatalf("EncodeQuery = %q, want %q", got, want)
	}

	body, err := EncodeForm(Params{}.Add("timeout", timeout))
	if err != nil {
		t.Fatalf("EncodeForm returned error: %v", err)
	}
	if body != "" {
		t.Fatalf("EncodeForm = %q, want empty", body)
	}
}
