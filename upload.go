package labbcat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"go.uber.org/zap"

	"github.com/five82/labbcat/envelope"
	"github.com/five82/labbcat/model"
	"github.com/five82/labbcat/transport"
)

const uploadPath = "api/edit/transcript/upload"

// Upload parameter names the server recognises.
const (
	ParamTranscriptType = "labbcat_transcript_type"
	ParamCorpus         = "labbcat_corpus"
	ParamEpisode        = "labbcat_episode"
	ParamGenerate       = "labbcat_generate"
)

// UploadRequest is the first phase of a transcript upload.
type UploadRequest struct {
	Transcript *transport.File
	// Media maps a track suffix ("" for the main track) to its files.
	Media map[string][]*transport.File
	// Merge updates an existing transcript with the same name.
	Merge bool
}

// UploadTranscript sends a transcript and its media, returning the
// parameters the server needs before it will ingest them. The upload is
// cancelled at the next chunk boundary by Session.Cancel.
func (s *Session) UploadTranscript(ctx context.Context, req UploadRequest) (*model.Upload, error) {
	if req.Transcript == nil {
		return nil, &ValidationError{Op: "upload transcript", Reason: "no transcript file"}
	}
	params := transport.Params{}.Add("transcript", req.Transcript)
	if req.Merge {
		params = params.Add("merge", true)
	}
	for _, suffix := range sortedKeys(req.Media) {
		params = params.Add("media"+suffix, req.Media[suffix])
	}

	op := s.begin()
	defer s.end(op)
	var upload model.Upload
	if _, err := s.do(ctx, call{
		op:     "upload transcript",
		url:    s.endpoint(uploadPath),
		kind:   multipartBody,
		params: params,
		cancel: op.cancel,
	}, &upload); err != nil {
		return nil, err
	}
	s.logger.Debug("upload received",
		zap.String("upload", upload.ID),
		zap.Int("parameters", len(upload.Parameters)))
	return &upload, nil
}

// ResolveUpload sends the upload's parameter values. Every required
// parameter must have a value. The returned Upload's Transcripts map each
// transcript ID to the task processing it.
func (s *Session) ResolveUpload(ctx context.Context, upload *model.Upload) (*model.Upload, error) {
	if upload == nil || upload.ID == "" {
		return nil, &ValidationError{Op: "resolve upload", Reason: "no upload id"}
	}
	if missing := upload.MissingRequired(); len(missing) > 0 {
		return nil, &ValidationError{Op: "resolve upload", Reason: "required parameters have no value", Missing: missing}
	}
	params := transport.Params{}
	for _, p := range upload.Parameters {
		if p.Value == nil {
			continue
		}
		params = params.Add(p.Name, p.Value)
	}
	var resolved model.Upload
	if _, err := s.do(ctx, call{
		op:     "resolve upload",
		method: http.MethodPut,
		url:    s.endpoint(uploadPath, upload.ID),
		params: params,
	}, &resolved); err != nil {
		return nil, err
	}
	if resolved.ID == "" {
		resolved.ID = upload.ID
	}
	return &resolved, nil
}

// DiscardUpload abandons an upload that was never resolved.
func (s *Session) DiscardUpload(ctx context.Context, id string) error {
	if id == "" {
		return &ValidationError{Op: "discard upload", Reason: "no upload id"}
	}
	_, err := s.do(ctx, call{
		op:     "discard upload",
		method: http.MethodDelete,
		url:    s.endpoint(uploadPath, id),
	}, nil)
	return err
}

// NewTranscriptRequest describes a transcript that does not exist yet.
type NewTranscriptRequest struct {
	Transcript     *transport.File
	Media          []*transport.File
	TrackSuffix    string
	TranscriptType string
	Corpus         string
	Episode        string
}

// NewTranscript uploads a new transcript and returns the ID of the task
// that ingests it. Servers without the upload API are driven through the
// older edit/transcript/new form.
func (s *Session) NewTranscript(ctx context.Context, req NewTranscriptRequest) (string, error) {
	upload, err := s.UploadTranscript(ctx, UploadRequest{
		Transcript: req.Transcript,
		Media:      map[string][]*transport.File{req.TrackSuffix: req.Media},
	})
	if err != nil {
		if !envelope.IsNotFound(err) {
			return "", err
		}
		s.logger.Debug("upload api missing; using legacy endpoint")
		params := transport.Params{}.
			Add("todo", "new").
			Add("auto", true)
		for _, p := range []transport.Param{
			{Name: "transcriptType", Value: req.TranscriptType},
			{Name: "corpus", Value: req.Corpus},
			{Name: "episode", Value: req.Episode},
		} {
			if p.Value != "" {
				params = append(params, p)
			}
		}
		params = params.
			Add("uploadfile1_0", req.Transcript).
			Add("uploadmedia"+req.TrackSuffix+"1", req.Media)
		return s.legacyTranscript(ctx, req.Transcript, params)
	}
	for name, value := range map[string]string{
		ParamTranscriptType: req.TranscriptType,
		ParamCorpus:         req.Corpus,
		ParamEpisode:        req.Episode,
	} {
		if value != "" {
			upload.SetValue(name, value)
		}
	}
	return s.finishUpload(ctx, upload, req.Transcript)
}

// UpdateTranscript uploads a new version of an existing transcript and
// returns the ID of the task that ingests it. generate controls whether
// automatic annotation layers are regenerated.
func (s *Session) UpdateTranscript(ctx context.Context, transcript *transport.File, generate bool) (string, error) {
	upload, err := s.UploadTranscript(ctx, UploadRequest{Transcript: transcript, Merge: true})
	if err != nil {
		if !envelope.IsNotFound(err) {
			return "", err
		}
		params := transport.Params{}.
			Add("todo", "update").
			Add("auto", true).
			Add("uploadfile1_0", transcript)
		return s.legacyTranscript(ctx, transcript, params)
	}
	upload.SetValue(ParamGenerate, generate)
	return s.finishUpload(ctx, upload, transcript)
}

func (s *Session) finishUpload(ctx context.Context, upload *model.Upload, transcript *transport.File) (string, error) {
	resolved, err := s.ResolveUpload(ctx, upload)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			_ = s.DiscardUpload(ctx, upload.ID)
		}
		return "", err
	}
	return taskFor(resolved.Transcripts, transcript.Filename), nil
}

func (s *Session) legacyTranscript(ctx context.Context, transcript *transport.File, params transport.Params) (string, error) {
	op := s.begin()
	defer s.end(op)
	var result struct {
		Result map[string]string `json:"result"`
	}
	if _, err := s.do(ctx, call{
		op:     "legacy transcript upload",
		url:    s.endpoint("edit/transcript/new"),
		kind:   multipartBody,
		params: params,
		cancel: op.cancel,
	}, &result); err != nil {
		return "", err
	}
	id := taskFor(result.Result, transcript.Filename)
	if id == "" {
		return "", fmt.Errorf("legacy transcript upload: %w", &envelope.MalformedError{
			HTTPStatus: http.StatusOK,
			Err:        errors.New("no task id in result"),
		})
	}
	return id, nil
}

// taskFor picks the task named after the file, else the first by name.
func taskFor(tasks map[string]string, filename string) string {
	if id, ok := tasks[filename]; ok {
		return id
	}
	keys := sortedKeys(tasks)
	if len(keys) == 0 {
		return ""
	}
	return tasks[keys[0]]
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
