package labbcat

import (
	"context"

	"github.com/five82/labbcat/model"
	"github.com/five82/labbcat/transport"
)

func (s *Session) storeURL(resource string) string {
	return s.endpoint(storePath + resource)
}

// ID returns the store's identifier.
func (s *Session) ID(ctx context.Context) (string, error) {
	var id string
	err := s.get(ctx, "get id", s.storeURL("getId"), nil, &id)
	return id, err
}

// LayerIDs lists the layers defined in the store.
func (s *Session) LayerIDs(ctx context.Context) ([]string, error) {
	return s.stringList(ctx, "get layer ids", "getLayerIds", nil)
}

// CorpusIDs lists the corpora.
func (s *Session) CorpusIDs(ctx context.Context) ([]string, error) {
	return s.stringList(ctx, "get corpus ids", "getCorpusIds", nil)
}

// ParticipantIDs lists every participant.
func (s *Session) ParticipantIDs(ctx context.Context) ([]string, error) {
	return s.stringList(ctx, "get participant ids", "getParticipantIds", nil)
}

// TranscriptIDs lists every transcript.
func (s *Session) TranscriptIDs(ctx context.Context) ([]string, error) {
	return s.stringList(ctx, "get transcript ids", "getTranscriptIds", nil)
}

// TranscriptIDsInCorpus lists the transcripts of one corpus.
func (s *Session) TranscriptIDsInCorpus(ctx context.Context, corpus string) ([]string, error) {
	return s.stringList(ctx, "get transcript ids in corpus", "getTranscriptIdsInCorpus",
		transport.Params{}.Add("id", corpus))
}

// CountMatchingParticipantIDs counts participants matching a query
// expression such as "/Ada/.test(id)".
func (s *Session) CountMatchingParticipantIDs(ctx context.Context, expression string) (int, error) {
	var n int
	err := s.get(ctx, "count matching participant ids", s.storeURL("countMatchingParticipantIds"),
		transport.Params{}.Add("expression", expression), &n)
	return n, err
}

// MatchingParticipantIDs returns one zero-based page of participants
// matching expression. A pageLength of 0 returns every match.
func (s *Session) MatchingParticipantIDs(ctx context.Context, expression string, pageLength, pageNumber int) ([]string, error) {
	params := transport.Params{}.Add("expression", expression)
	if pageLength > 0 {
		params = params.Add("pageLength", pageLength).Add("pageNumber", pageNumber)
	}
	return s.stringList(ctx, "get matching participant ids", "getMatchingParticipantIds", params)
}

// MediaTracks lists the media tracks defined in the store.
func (s *Session) MediaTracks(ctx context.Context) ([]model.MediaTrack, error) {
	var tracks []model.MediaTrack
	err := s.get(ctx, "get media tracks", s.storeURL("getMediaTracks"), nil, &tracks)
	return tracks, err
}

// AvailableMedia lists the media files of a transcript.
func (s *Session) AvailableMedia(ctx context.Context, transcriptID string) ([]model.MediaFile, error) {
	var files []model.MediaFile
	err := s.get(ctx, "get available media", s.storeURL("getAvailableMedia"),
		transport.Params{}.Add("id", transcriptID), &files)
	return files, err
}

// Media returns the URL of a transcript's media file.
func (s *Session) Media(ctx context.Context, transcriptID, trackSuffix, mimeType string) (string, error) {
	var u string
	err := s.get(ctx, "get media", s.storeURL("getMedia"),
		transport.Params{}.Add("id", transcriptID).Add("trackSuffix", trackSuffix).Add("mimeType", mimeType), &u)
	return u, err
}

// SystemAttribute returns the value of a public system attribute.
func (s *Session) SystemAttribute(ctx context.Context, name string) (string, error) {
	var attr model.SystemAttribute
	err := s.get(ctx, "get system attribute", s.endpoint("api/systemattributes", name), nil, &attr)
	return attr.Value, err
}

// UserInfo describes the authenticated user.
func (s *Session) UserInfo(ctx context.Context) (*model.UserInfo, error) {
	var info model.UserInfo
	if err := s.get(ctx, "get user info", s.endpoint("api/user"), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (s *Session) stringList(ctx context.Context, op, resource string, params transport.Params) ([]string, error) {
	var ids []string
	if err := s.get(ctx, op, s.storeURL(resource), params, &ids); err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}
