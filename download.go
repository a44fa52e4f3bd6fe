package labbcat

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/five82/labbcat/envelope"
	"github.com/five82/labbcat/transport"
)

// download describes one file fetched to local storage.
type download struct {
	op       string
	url      string
	params   transport.Params
	accept   string
	dir      string
	fallback string
}

const maxErrorBody = 64 << 10

// download streams the response body to a file in d.dir. The file is named from Content-Disposition, else
// d.fallback plus an extension for the content type. The caller owns the
// file.
func (s *Session) download(ctx context.Context, op *operation, d download) (string, error) {
	if op.stopped() {
		return "", fmt.Errorf("%s: %w", d.op, transport.ErrRequestCancelled)
	}
	auth, err := s.RequiredAuthorization(ctx)
	if err != nil {
		return "", err
	}
	header := http.Header{}
	if d.accept != "" {
		header.Set("Accept", d.accept)
	}
	stream, err := s.client.Open(ctx, transport.Request{
		URL:           d.url,
		Params:        d.params,
		Authorization: auth,
		Header:        header,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", d.op, err)
	}
	defer func() { _ = stream.Body.Close() }()

	if stream.Status < 200 || stream.Status >= 300 {
		body, _ := io.ReadAll(io.LimitReader(stream.Body, maxErrorBody))
		if _, perr := envelope.Parse(stream.Status, body); perr != nil {
			return "", fmt.Errorf("%s: %w", d.op, perr)
		}
		return "", fmt.Errorf("%s: %w", d.op, &envelope.ResponseError{HTTPStatus: stream.Status})
	}

	dir := d.dir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%s: create dir: %w", d.op, err)
	}
	name := attachmentName(stream.Header.Get("Content-Disposition"))
	if name == "" {
		base := safeName(d.fallback)
		if base == "" {
			base = "download"
		}
		name = base + extensionFor(stream.Header.Get("Content-Type"))
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("%s: create file: %w", d.op, err)
	}
	n, copyErr := io.Copy(f, &stoppableReader{r: stream.Body, op: op})
	closeErr := f.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("%s: write %s: %w", d.op, path, copyErr)
	}
	s.logger.Debug("downloaded", zap.String("op", d.op), zap.String("path", path), zap.Int64("bytes", n))
	return path, nil
}

// scratchDir returns dir, or a new private directory under the system temp
// directory when dir is empty, so concurrent callers never share file names.
func scratchDir(dir, prefix string) (string, error) {
	if strings.TrimSpace(dir) != "" {
		return dir, nil
	}
	return os.MkdirTemp("", prefix)
}

// stoppableReader fails at the next read once its operation is stopped.
type stoppableReader struct {
	r  io.Reader
	op *operation
}

func (r *stoppableReader) Read(p []byte) (int, error) {
	if r.op.stopped() {
		return 0, transport.ErrRequestCancelled
	}
	return r.r.Read(p)
}

func attachmentName(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return safeName(params["filename"])
}

// safeName reduces a server-supplied name to a single path element.
func safeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	switch name {
	case "", ".", "..", "/":
		return ""
	}
	return name
}

func extensionFor(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	switch mediaType {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "text/csv":
		return ".csv"
	case "text/plain":
		return ".txt"
	}
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}
