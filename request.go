package labbcat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/five82/labbcat/envelope"
	"github.com/five82/labbcat/transport"
)

type bodyKind int

const (
	queryBody bodyKind = iota
	formBody
	jsonBody
	multipartBody
)

// call describes one envelope API request.
type call struct {
	op     string
	method string
	url    string
	kind   bodyKind
	params transport.Params
	json   any
	cancel *transport.Canceller
}

// send performs the exchange with the required authorization and returns
// the raw response.
func (s *Session) send(ctx context.Context, c call) (*transport.Response, error) {
	auth, err := s.RequiredAuthorization(ctx)
	if err != nil {
		return nil, err
	}
	req := transport.Request{
		Method:        c.method,
		URL:           c.url,
		Params:        c.params,
		Authorization: auth,
		Header:        http.Header{"Accept": {"application/json"}},
	}
	if s.verbose {
		s.logger.Debug("api request",
			zap.String("op", c.op),
			zap.String("url", c.url),
			zap.Int("params", len(c.params)))
	}

	var resp *transport.Response
	switch c.kind {
	case formBody:
		resp, err = s.client.Post(ctx, req)
	case jsonBody:
		var body []byte
		body, err = json.Marshal(c.json)
		if err != nil {
			return nil, fmt.Errorf("%s: encode body: %w", c.op, err)
		}
		resp, err = s.client.PostJSON(ctx, req, body)
	case multipartBody:
		resp, err = s.client.PostMultipart(ctx, req, c.cancel)
	default:
		resp, err = s.client.Get(ctx, req)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.op, err)
	}
	if s.verbose {
		s.logger.Debug("api response",
			zap.String("op", c.op),
			zap.Int("status", resp.Status),
			zap.ByteString("body", excerpt(resp.Body)))
	}
	return resp, nil
}

// do sends c and decodes the envelope's model into dst (which may be nil).
func (s *Session) do(ctx context.Context, c call, dst any) (*envelope.Envelope, error) {
	resp, err := s.send(ctx, c)
	if err != nil {
		return nil, err
	}
	env, err := envelope.Parse(resp.Status, resp.Body)
	if err != nil {
		return env, fmt.Errorf("%s: %w", c.op, err)
	}
	if dst != nil {
		if err := env.DecodeModel(dst); err != nil {
			return env, fmt.Errorf("%s: %w", c.op, err)
		}
	}
	return env, nil
}

// get is the common GET-with-query case.
func (s *Session) get(ctx context.Context, op, url string, params transport.Params, dst any) error {
	_, err := s.do(ctx, call{op: op, url: url, params: params}, dst)
	return err
}

const maxLoggedBody = 2048

func excerpt(body []byte) []byte {
	if len(body) > maxLoggedBody {
		return body[:maxLoggedBody]
	}
	return body
}
