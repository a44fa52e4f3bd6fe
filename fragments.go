package labbcat

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/five82/labbcat/model"
	"github.com/five82/labbcat/transport"
)

// SoundFragments downloads the audio of each match's utterance into dir
// (a new directory under the system temp directory when empty). The result is parallel to
// matches. A slot whose download failed is "" and the failure is reported
// in a *PartialError returned alongside the paths. sampleRate 0 keeps the
// recorded rate.
func (s *Session) SoundFragments(ctx context.Context, matches []model.Match, sampleRate int, dir string) ([]string, error) {
	return s.fragments(ctx, "sound fragments", matches, dir, func(m model.Match) download {
		params := transport.Params{}.
			Add("id", m.Transcript).
			Add("start", m.Line).
			Add("end", m.LineEnd)
		if sampleRate > 0 {
			params = params.Add("sampleRate", sampleRate)
		}
		return download{
			url:      s.endpoint("soundfragment"),
			params:   params,
			accept:   "audio/wav",
			fallback: fragmentID(m),
		}
	})
}

// Fragments downloads each match's utterance as a transcript fragment of
// the given MIME type (e.g. "text/praat-textgrid") containing layerIDs.
// Failures are reported as for SoundFragments.
func (s *Session) Fragments(ctx context.Context, matches []model.Match, layerIDs []string, mimeType, dir string) ([]string, error) {
	return s.fragments(ctx, "fragments", matches, dir, func(m model.Match) download {
		return download{
			url: s.endpoint("api/serialize/fragment"),
			params: transport.Params{}.
				Add("id", m.Transcript).
				Add("start", m.Line).
				Add("end", m.LineEnd).
				Add("mimeType", mimeType).
				Add("layerId", layerIDs),
			accept:   mimeType,
			fallback: fragmentID(m),
		}
	})
}

func (s *Session) fragments(ctx context.Context, opName string, matches []model.Match, dir string, build func(model.Match) download) ([]string, error) {
	op := s.begin()
	defer s.end(op)

	paths := make([]string, len(matches))
	if len(matches) > 0 {
		var err error
		if dir, err = scratchDir(dir, "labbcat-fragments-"); err != nil {
			return paths, fmt.Errorf("%s: create dir: %w", opName, err)
		}
	}
	failed := map[int]error{}
	for i, m := range matches {
		if op.stopped() {
			failed[i] = fmt.Errorf("%s: %w", opName, transport.ErrRequestCancelled)
			continue
		}
		if err := ctx.Err(); err != nil {
			if len(failed) > 0 {
				return paths, errors.Join(err, &PartialError{Op: opName, Total: len(matches), Failed: failed})
			}
			return paths, err
		}
		if strings.TrimSpace(m.Transcript) == "" {
			failed[i] = &ValidationError{Op: opName, Reason: fmt.Sprintf("match %d has no transcript", i)}
			continue
		}
		d := build(m)
		d.op = opName
		d.dir = dir
		path, err := s.download(ctx, op, d)
		if err != nil {
			s.logger.Debug("fragment failed", zap.Int("index", i), zap.String("transcript", m.Transcript), zap.Error(err))
			failed[i] = err
			continue
		}
		paths[i] = path
	}
	if len(failed) > 0 {
		return paths, &PartialError{Op: opName, Total: len(matches), Failed: failed}
	}
	return paths, nil
}

// fragmentID names a fragment after its transcript and interval, e.g.
// "AP511__1.230-4.560".
func fragmentID(m model.Match) string {
	base := strings.TrimSuffix(m.Transcript, filepath.Ext(m.Transcript))
	return base + "__" + strconv.FormatFloat(m.Line, 'f', 3, 64) + "-" + strconv.FormatFloat(m.LineEnd, 'f', 3, 64)
}
