package transport

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
)

// Param is one named request parameter. Value may be nil (the parameter is
// omitted from the wire), a scalar, a pointer to a scalar, a slice or array
// (one name=value pair or part per element) or a *File.
type Param struct {
	Name  string
	Value any
}

// Params is an ordered parameter list; order is preserved on the wire.
type Params []Param

// Add appends a parameter and returns the list so calls can be chained.
func (p Params) Add(name string, value any) Params {
	return append(p, Param{Name: name, Value: value})
}

// File is a file-valued parameter. Its content is opened only when the
// request body is written and is streamed chunk by chunk.
type File struct {
	// Filename is sent in the part's Content-Disposition header.
	Filename string
	// ContentType overrides the type guessed from Filename.
	ContentType string
	// Open returns the content. It is called once per request.
	Open func() (io.ReadCloser, error)
}

// FileFromPath returns a File that streams the named file from disk.
func FileFromPath(path string) *File {
	return &File{
		Filename: filepath.Base(path),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

// FileFromBytes returns a File backed by an in-memory buffer.
func FileFromBytes(filename string, content []byte) *File {
	return &File{
		Filename: filename,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(content)), nil
		},
	}
}

func (f *File) contentType() string {
	if strings.TrimSpace(f.ContentType) != "" {
		return f.ContentType
	}
	if t := mime.TypeByExtension(filepath.Ext(f.Filename)); t != "" {
		return t
	}
	return "application/octet-stream"
}

// part is a single flattened name/value pair; exactly one of value or file is used.
type part struct {
	name  string
	value string
	file  *File
}

// flatten expands the parameter list into wire-level pairs, dropping nil
// values and expanding collections in order.
func (p Params) flatten() ([]part, error) {
	var parts []part
	for _, param := range p {
		values, err := expand(param.Value)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", param.Name, err)
		}
		for _, v := range values {
			if f, ok := v.(*File); ok {
				if f == nil {
					continue
				}
				parts = append(parts, part{name: param.Name, file: f})
				continue
			}
			s, ok := formatScalar(v)
			if !ok {
				continue
			}
			parts = append(parts, part{name: param.Name, value: s})
		}
	}
	return parts, nil
}

func expand(value any) ([]any, error) {
	if value == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(value)
	// A nil pointer is omitted even when its type has a String method.
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return nil, nil
	}
	switch v := value.(type) {
	case *File, string, []byte, fmt.Stringer:
		return []any{v}, nil
	}
	switch rv.Kind() {
	case reflect.Pointer:
		return expand(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil, nil
		}
		out := make([]any, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			elem, err := expand(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out = append(out, elem...)
		}
		return out, nil
	case reflect.Map, reflect.Func, reflect.Chan:
		return nil, fmt.Errorf("unsupported value type %T", value)
	}
	return []any{value}, nil
}

func formatScalar(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case []byte:
		return string(x), true
	case bool:
		return strconv.FormatBool(x), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), true
	case fmt.Stringer:
		return x.String(), true
	}
	return fmt.Sprint(v), true
}

// EncodeQuery appends params to base as a URL-encoded query string. The
// first pair is prefixed with '?' unless base already carries a query.
func EncodeQuery(base string, params Params) (string, error) {
	parts, err := params.flatten()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(base)
	prefix := "?"
	if strings.Contains(base, "?") {
		prefix = "&"
	}
	for _, p := range parts {
		if p.file != nil {
			return "", fmt.Errorf("parameter %q: file values require a multipart request", p.name)
		}
		b.WriteString(prefix)
		b.WriteString(url.QueryEscape(p.name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.value))
		prefix = "&"
	}
	return b.String(), nil
}

// EncodeForm renders params as an application/x-www-form-urlencoded body.
func EncodeForm(params Params) (string, error) {
	parts, err := params.flatten()
	if err != nil {
		return "", err
	}
	pairs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p.file != nil {
			return "", fmt.Errorf("parameter %q: file values require a multipart request", p.name)
		}
		pairs = append(pairs, url.QueryEscape(p.name)+"="+url.QueryEscape(p.value))
	}
	return strings.Join(pairs, "&"), nil
}
