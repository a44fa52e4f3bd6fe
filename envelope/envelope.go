package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Envelope is the standard LaBB-CAT JSON response wrapper.
type Envelope struct {
	Title    string          `json:"title,omitempty"`
	Version  string          `json:"version,omitempty"`
	Code     int             `json:"code"`
	Errors   []string        `json:"errors"`
	Messages []string        `json:"messages"`
	Model    json.RawMessage `json:"model,omitempty"`

	// HTTPStatus is the status of the response the envelope arrived in.
	HTTPStatus int `json:"-"`
}

// wire mirrors Envelope for decoding so that a missing or null errors or
// messages field is accepted and the model can be told apart from absence.
type wire struct {
	Title    string          `json:"title"`
	Version  json.RawMessage `json:"version"`
	Code     *int            `json:"code"`
	Errors   []string        `json:"errors"`
	Messages []string        `json:"messages"`
	Model    json.RawMessage `json:"model"`
}

// Decode interprets an HTTP status and body as an envelope.
//
// For a 2xx status an empty, non-JSON or structurally invalid body yields a
// *MalformedError. For any other status an unparseable body yields a
// *ResponseError with code -1 so the HTTP failure is still reported.
func Decode(status int, body []byte) (*Envelope, error) {
	env, err := decode(body)
	if err == nil {
		env.HTTPStatus = status
		return env, nil
	}
	if isSuccess(status) {
		return nil, &MalformedError{HTTPStatus: status, Body: truncate(body), Err: err}
	}
	msg := "Response not JSON: " + truncate(body)
	if len(bytes.TrimSpace(body)) == 0 {
		msg = "Empty response from server."
	}
	return nil, &ResponseError{
		HTTPStatus: status,
		Code:       -1,
		Errors:     []string{msg},
		malformed:  true,
	}
}

func decode(body []byte) (*Envelope, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty body")
	}
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("body is not a JSON object")
	}
	var w wire
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	env := &Envelope{
		Title:    w.Title,
		Errors:   w.Errors,
		Messages: w.Messages,
		Model:    w.Model,
	}
	if w.Code != nil {
		env.Code = *w.Code
	}
	env.Version = versionText(w.Version)
	if env.Errors == nil {
		env.Errors = []string{}
	}
	if env.Messages == nil {
		env.Messages = []string{}
	}
	return env, nil
}

// Err reports the envelope as a failure when the status is not 2xx, the code
// is non-zero, or the errors list is non-empty.
func (e *Envelope) Err() error {
	if e == nil {
		return nil
	}
	if isSuccess(e.HTTPStatus) && e.Code == 0 && len(e.Errors) == 0 {
		return nil
	}
	return &ResponseError{
		HTTPStatus: e.HTTPStatus,
		Code:       e.Code,
		Errors:     append([]string(nil), e.Errors...),
		Messages:   append([]string(nil), e.Messages...),
	}
}

// Parse decodes the envelope and returns its failure, if any. On failure the
// envelope is still returned when one could be decoded.
func Parse(status int, body []byte) (*Envelope, error) {
	env, err := Decode(status, body)
	if err != nil {
		return nil, err
	}
	return env, env.Err()
}

// ModelNull reports whether the model is absent or JSON null.
func (e *Envelope) ModelNull() bool {
	if e == nil {
		return true
	}
	m := bytes.TrimSpace(e.Model)
	return len(m) == 0 || bytes.Equal(m, []byte("null"))
}

// DecodeModel unmarshals the model into dst. An absent model leaves dst
// untouched.
func (e *Envelope) DecodeModel(dst any) error {
	if e.ModelNull() {
		return nil
	}
	if err := json.Unmarshal(e.Model, dst); err != nil {
		return &MalformedError{HTTPStatus: e.HTTPStatus, Body: truncate(e.Model), Err: fmt.Errorf("decode model: %w", err)}
	}
	return nil
}

// Encode renders env as JSON. Errors and messages are always present as
// arrays; a nil model is written as null.
func Encode(env Envelope) ([]byte, error) {
	out := struct {
		Title    string          `json:"title,omitempty"`
		Version  string          `json:"version,omitempty"`
		Code     int             `json:"code"`
		Errors   []string        `json:"errors"`
		Messages []string        `json:"messages"`
		Model    json.RawMessage `json:"model"`
	}{
		Title:    env.Title,
		Version:  env.Version,
		Code:     env.Code,
		Errors:   env.Errors,
		Messages: env.Messages,
		Model:    env.Model,
	}
	if out.Errors == nil {
		out.Errors = []string{}
	}
	if out.Messages == nil {
		out.Messages = []string{}
	}
	if len(bytes.TrimSpace(out.Model)) == 0 {
		out.Model = json.RawMessage("null")
	}
	return json.Marshal(out)
}

// versionText accepts the version as a JSON string or a bare number.
func versionText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

const maxEcho = 512

func truncate(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxEcho {
		return s[:maxEcho] + "..."
	}
	return s
}
