package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

// chunkReader records the largest buffer it was asked to fill.
type chunkReader struct {
	r       io.Reader
	maxRead int
	reads   int
	onRead  func(n int)
}

func (p *chunkReader) Read(b []byte) (int, error) {
	p.reads++
	if len(b) > p.maxRead {
		p.maxRead = len(b)
	}
	n, err := p.r.Read(b)
	if p.onRead != nil {
		p.onRead(p.reads)
	}
	return n, err
}

func (p *chunkReader) Close() error { return nil }

func drain(t *testing.T, r io.Reader, bufSize int) ([]byte, error) {
	t.Helper()
	var out bytes.Buffer
	buf := make([]byte, bufSize)
	for {
		n, err := r.Read(buf)
		out.Write(buf[:n])
		if errors.Is(err, io.EOF) {
			return out.Bytes(), nil
		}
		if err != nil {
			return out.Bytes(), err
		}
	}
}

func TestMultipartBody_WireFormat(t *testing.T) {
	t.Parallel()

	params := Params{}.
		Add("n", "v").
		Add("skip", nil).
		Add("f", &File{Filename: "a.txt", ContentType: "text/plain", Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("hello")), nil
		}})
	parts, err := params.flatten()
	if err != nil {
		t.Fatalf("flatten returned error: %v", err)
	}
	body := newMultipartBody(context.Background(), parts, nil)
	body.boundary = "B"

	got, err := drain(t, body, 7)
	if err != nil {
		t.Fatalf("read returned error: %v", err)
	}
	want := "--B\r\nContent-Disposition: form-data; name=\"n\"\r\n\r\nv\r\n" +
		"--B\r\nContent-Disposition: form-data; name=\"f\"; filename=\"a.txt\"\r\nContent-Type: text/plain\r\n\r\nhello\r\n" +
		"--B--\r\n"
	if string(got) != want {
		t.Fatalf("body = %q\nwant  %q", got, want)
	}
	if body.fileBytes() != 5 {
		t.Fatalf("fileBytes = %d, want 5", body.fileBytes())
	}
}

func TestMultipartBody_BoundaryShape(t *testing.T) {
	t.Parallel()

	b := newBoundary()
	if !strings.HasPrefix(b, boundaryPrefix) {
		t.Fatalf("boundary %q missing prefix", b)
	}
	if len(b) > 70 {
		t.Fatalf("boundary length %d exceeds 70", len(b))
	}
	if b == newBoundary() {
		t.Fatal("boundaries should differ between bodies")
	}
}

func TestMultipartBody_FileReadsNeverExceedChunk(t *testing.T) {
	t.Parallel()

	content := bytes.Repeat([]byte("0123456789"), 10*ChunkSize)
	src := &chunkReader{r: bytes.NewReader(content)}
	params := Params{}.Add("uploadfile", &File{Filename: "big.bin", Open: func() (io.ReadCloser, error) {
		return src, nil
	}})
	parts, err := params.flatten()
	if err != nil {
		t.Fatalf("flatten returned error: %v", err)
	}
	body := newMultipartBody(context.Background(), parts, nil)

	got, err := drain(t, body, 64*1024)
	if err != nil {
		t.Fatalf("read returned error: %v", err)
	}
	if src.maxRead > ChunkSize {
		t.Fatalf("largest file read = %d, want <= %d", src.maxRead, ChunkSize)
	}
	if !bytes.Contains(got, content) {
		t.Fatal("body does not contain the file content")
	}
}

func TestMultipartBody_CancelStopsBeforeNextChunk(t *testing.T) {
	t.Parallel()

	cancel := &Canceller{}
	src := &chunkReader{r: bytes.NewReader(make([]byte, 8*ChunkSize))}
	src.onRead = func(n int) {
		if n == 1 {
			cancel.Cancel()
		}
	}
	params := Params{}.Add("f", &File{Filename: "x.bin", Open: func() (io.ReadCloser, error) {
		return src, nil
	}})
	parts, _ := params.flatten()
	body := newMultipartBody(context.Background(), parts, cancel)

	_, err := drain(t, body, ChunkSize)
	if !errors.Is(err, ErrRequestCancelled) {
		t.Fatalf("err = %v, want ErrRequestCancelled", err)
	}
	if src.reads != 1 {
		t.Fatalf("file reads = %d, want 1", src.reads)
	}
}

func TestMultipartBody_CancelBeforeBoundary(t *testing.T) {
	t.Parallel()

	cancel := &Canceller{}
	cancel.Cancel()
	parts, _ := Params{}.Add("a", "1").flatten()
	body := newMultipartBody(context.Background(), parts, cancel)

	n, err := body.Read(make([]byte, 64))
	if n != 0 || !errors.Is(err, ErrRequestCancelled) {
		t.Fatalf("Read = %d, %v; want 0, ErrRequestCancelled", n, err)
	}
}

func TestMultipartBody_ClosedBodyRejectsReads(t *testing.T) {
	t.Parallel()

	parts, _ := Params{}.Add("a", "1").flatten()
	body := newMultipartBody(context.Background(), parts, nil)
	if err := body.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if err := body.Close(); err != nil {
		t.Fatalf("second Close returned error: %v", err)
	}
	if _, err := body.Read(make([]byte, 8)); !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("Read after Close = %v, want io.ErrClosedPipe", err)
	}
}

func TestCanceller_NilSafeAndReset(t *testing.T) {
	t.Parallel()

	var nilCanceller *Canceller
	nilCanceller.Cancel()
	if nilCanceller.Cancelled() {
		t.Fatal("nil canceller should never report cancelled")
	}

	c := &Canceller{}
	c.Cancel()
	if !c.Cancelled() {
		t.Fatal("Cancelled = false after Cancel")
	}
	c.Reset()
	if c.Cancelled() {
		t.Fatal("Cancelled = true after Reset")
	}
}
