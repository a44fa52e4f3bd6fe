package labbcat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/five82/labbcat/envelope"
	"github.com/five82/labbcat/model"
	"github.com/five82/labbcat/transport"
)

// SearchOptions narrow a search.
type SearchOptions struct {
	ParticipantIDs  []string
	TranscriptTypes []string
	// MainParticipant keeps only matches by a transcript's main speaker.
	MainParticipant bool
	// Aligned keeps only matches with word alignments.
	Aligned bool
	// MatchesPerTranscript caps matches per transcript; 0 means no cap.
	MatchesPerTranscript int
	// OverlapThreshold excludes matches in utterances that overlap another
	// speaker by at least this percentage; 0 disables the filter. The
	// server applies it before paging.
	OverlapThreshold int
}

// Search starts a search task and returns its ID. A pattern with no layer
// conditions fails with a *ValidationError before anything is sent.
func (s *Session) Search(ctx context.Context, pattern *model.Pattern, opts SearchOptions) (string, error) {
	if pattern.Empty() {
		return "", &ValidationError{Op: "search", Reason: "pattern has no columns"}
	}
	searchJSON, err := pattern.JSON()
	if err != nil {
		return "", fmt.Errorf("search: encode pattern: %w", err)
	}
	params := transport.Params{}.
		Add("command", "search").
		Add("searchJson", searchJSON).
		Add("words_context", 0)
	if opts.MainParticipant {
		params = params.Add("only_main_speaker", true)
	}
	if opts.Aligned {
		params = params.Add("only_aligned", true)
	}
	if opts.MatchesPerTranscript > 0 {
		params = params.Add("matches_per_transcript", opts.MatchesPerTranscript)
	}
	if len(opts.ParticipantIDs) > 0 {
		params = params.Add("participant_id", opts.ParticipantIDs)
	}
	if len(opts.TranscriptTypes) > 0 {
		params = params.Add("transcript_type", opts.TranscriptTypes)
	}
	if opts.OverlapThreshold > 0 {
		params = params.Add("overlap_threshold", opts.OverlapThreshold)
	}

	var result struct {
		ThreadID model.Text `json:"threadId"`
	}
	if err := s.get(ctx, "search", s.endpoint("search"), params, &result); err != nil {
		return "", err
	}
	if result.ThreadID == "" {
		return "", fmt.Errorf("search: %w", &envelope.MalformedError{HTTPStatus: 200, Err: errors.New("no threadId in model")})
	}
	s.logger.Debug("search started", zap.String("task", result.ThreadID.String()))
	return result.ThreadID.String(), nil
}

// MatchQuery selects a page of results.
type MatchQuery struct {
	// WordsContext is the number of words of context either side.
	WordsContext int
	// PageLength is the page size; 0 returns every match.
	PageLength int
	// PageNumber is zero-based.
	PageNumber int
	// MaxMatches truncates the returned page; 0 keeps it whole.
	MaxMatches int
}

// Matches waits for a search task to finish and returns one page of its
// results. A page beyond the last match is empty, not an error. If the
// session is cancelled while waiting, Matches returns no matches and a
// nil error.
func (s *Session) Matches(ctx context.Context, taskID string, q MatchQuery) ([]model.Match, error) {
	status, err := s.WaitForTask(ctx, taskID, 0)
	if err != nil {
		return nil, err
	}
	if status.Running {
		return nil, nil
	}
	params := transport.Params{}.
		Add("threadId", strings.TrimSpace(taskID)).
		Add("words_context", q.WordsContext)
	if q.PageLength > 0 {
		params = params.Add("pageLength", q.PageLength).Add("pageNumber", max(q.PageNumber, 0))
	}
	var result struct {
		Matches []model.Match `json:"matches"`
	}
	if err := s.get(ctx, "matches", s.endpoint("resultsStream"), params, &result); err != nil {
		return nil, err
	}
	matches := result.Matches
	if matches == nil {
		matches = []model.Match{}
	}
	if q.MaxMatches > 0 && len(matches) > q.MaxMatches {
		matches = matches[:q.MaxMatches]
	}
	return matches, nil
}

// SearchMatches runs a search, returns up to maxMatches results (0 for
// all), and releases the task.
func (s *Session) SearchMatches(ctx context.Context, pattern *model.Pattern, opts SearchOptions, wordsContext, maxMatches int) ([]model.Match, error) {
	taskID, err := s.Search(ctx, pattern, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := s.ReleaseTask(releaseCtx, taskID); err != nil {
			s.logger.Warn("release search task failed", zap.String("task", taskID), zap.Error(err))
		}
	}()
	return s.Matches(ctx, taskID, MatchQuery{
		WordsContext: wordsContext,
		PageLength:   maxMatches,
		MaxMatches:   maxMatches,
	})
}

// MatchAnnotations returns, for each match, annotationsPerLayer annotations
// from each layer in layerIDs, layer by layer. Entries the server has no
// annotation for are nil. targetOffset selects a token relative to the
// match target (0 is the target itself). Any row of the wrong length fails
// the whole call.
func (s *Session) MatchAnnotations(ctx context.Context, matches []model.Match, layerIDs []string, targetOffset, annotationsPerLayer int) ([][]*model.Annotation, error) {
	if len(layerIDs) == 0 {
		return nil, &ValidationError{Op: "match annotations", Reason: "no layers"}
	}
	if annotationsPerLayer <= 0 {
		annotationsPerLayer = 1
	}
	if len(matches) == 0 {
		return [][]*model.Annotation{}, nil
	}
	var csv strings.Builder
	csv.WriteString("MatchId\n")
	for _, m := range matches {
		csv.WriteString(m.MatchID)
		csv.WriteByte('\n')
	}
	upload := transport.FileFromBytes("matchIds.csv", []byte(csv.String()))
	upload.ContentType = "text/csv"
	params := transport.Params{}.
		Add("layer", layerIDs).
		Add("targetOffset", targetOffset).
		Add("annotationsPerLayer", annotationsPerLayer).
		Add("csvFieldDelimiter", ",").
		Add("targetColumn", 0).
		Add("copyColumns", false).
		Add("uploadfile", upload)

	op := s.begin()
	defer s.end(op)
	var rows [][]*model.Annotation
	if _, err := s.do(ctx, call{
		op:     "match annotations",
		url:    s.endpoint("api/getMatchAnnotations"),
		kind:   multipartBody,
		params: params,
		cancel: op.cancel,
	}, &rows); err != nil {
		return nil, err
	}

	width := len(layerIDs) * annotationsPerLayer
	if len(rows) != len(matches) {
		return nil, fmt.Errorf("match annotations: %w", &envelope.MalformedError{
			HTTPStatus: 200,
			Err:        fmt.Errorf("got %d rows for %d matches", len(rows), len(matches)),
		})
	}
	for i, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("match annotations: %w", &envelope.MalformedError{
				HTTPStatus: 200,
				Err:        fmt.Errorf("row %d has %d annotations, want %d", i, len(row), width),
			})
		}
	}
	return rows, nil
}
