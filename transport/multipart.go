package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ChunkSize is the largest slice of file content read per Read call while a
// multipart body is streamed.
const ChunkSize = 1024

const boundaryPrefix = "---------------------------"

func newBoundary() string {
	return boundaryPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// multipartBody produces a multipart/form-data body on demand. Nothing is
// buffered beyond the current part header and the caller's read buffer, so
// file parts cost at most ChunkSize bytes of file content at a time.
type multipartBody struct {
	mu       sync.Mutex
	ctx      context.Context
	cancel   *Canceller
	boundary string
	parts    []part

	next    int
	pending []byte
	file    io.ReadCloser
	fileEOF bool
	closed  bool
	done    bool
	// aborted is set once a checkpoint has stopped the body for a cancel.
	aborted bool

	// written counts file content bytes handed to the transport.
	written int64
}

func newMultipartBody(ctx context.Context, parts []part, cancel *Canceller) *multipartBody {
	return &multipartBody{
		ctx:      ctx,
		cancel:   cancel,
		boundary: newBoundary(),
		parts:    parts,
	}
}

func (b *multipartBody) contentType() string {
	return "multipart/form-data; boundary=" + b.boundary
}

// checkpoint is consulted before every chunk and every boundary.
func (b *multipartBody) checkpoint() error {
	if b.cancel.Cancelled() {
		b.aborted = true
		return ErrRequestCancelled
	}
	if b.ctx != nil {
		if err := b.ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (b *multipartBody) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, io.ErrClosedPipe
	}
	if len(p) == 0 {
		return 0, nil
	}
	for {
		if len(b.pending) > 0 {
			n := copy(p, b.pending)
			b.pending = b.pending[n:]
			return n, nil
		}

		if b.file != nil {
			if b.fileEOF {
				_ = b.file.Close()
				b.file = nil
				b.fileEOF = false
				b.pending = []byte("\r\n")
				continue
			}
			if err := b.checkpoint(); err != nil {
				b.closeFile()
				return 0, err
			}
			limit := min(len(p), ChunkSize)
			n, err := b.file.Read(p[:limit])
			b.written += int64(n)
			if errors.Is(err, io.EOF) {
				b.fileEOF = true
				err = nil
			}
			if err != nil {
				b.closeFile()
				return n, fmt.Errorf("read file part: %w", err)
			}
			if n > 0 {
				return n, nil
			}
			continue
		}

		if b.done {
			return 0, io.EOF
		}
		if err := b.checkpoint(); err != nil {
			return 0, err
		}
		if b.next >= len(b.parts) {
			b.pending = []byte("--" + b.boundary + "--\r\n")
			b.done = true
			continue
		}

		pt := b.parts[b.next]
		b.next++
		var header strings.Builder
		header.WriteString("--")
		header.WriteString(b.boundary)
		header.WriteString("\r\nContent-Disposition: form-data; name=\"")
		header.WriteString(escapeQuotes(pt.name))
		header.WriteByte('"')
		if pt.file == nil {
			header.WriteString("\r\n\r\n")
			header.WriteString(pt.value)
			header.WriteString("\r\n")
			b.pending = []byte(header.String())
			continue
		}
		rc, err := pt.file.Open()
		if err != nil {
			return 0, fmt.Errorf("open file part %q: %w", pt.name, err)
		}
		b.file = rc
		header.WriteString("; filename=\"")
		header.WriteString(escapeQuotes(pt.file.Filename))
		header.WriteString("\"\r\nContent-Type: ")
		header.WriteString(pt.file.contentType())
		header.WriteString("\r\n\r\n")
		b.pending = []byte(header.String())
	}
}

func (b *multipartBody) closeFile() {
	if b.file != nil {
		_ = b.file.Close()
		b.file = nil
	}
}

// Close releases any file still open, e.g. when the exchange is aborted.
func (b *multipartBody) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.closeFile()
	return nil
}

// wasAborted reports whether a cancel stopped the body before it was fully
// written. A cancel that arrives after the last byte leaves it false.
func (b *multipartBody) wasAborted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.aborted
}

// fileBytes reports how much file content has been handed to the transport.
func (b *multipartBody) fileBytes() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.written
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
