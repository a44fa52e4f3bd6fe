package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Match is one search result as returned by resultsStream.
type Match struct {
	MatchID     string  `json:"MatchId"`
	Transcript  string  `json:"Transcript"`
	Participant string  `json:"Participant"`
	Corpus      string  `json:"Corpus"`
	Line        float64 `json:"Line"`
	LineEnd     float64 `json:"LineEnd"`
	BeforeMatch string  `json:"BeforeMatch"`
	Text        string  `json:"Text"`
	AfterMatch  string  `json:"AfterMatch"`
}

// Duration is LineEnd - Line in seconds.
func (m Match) Duration() float64 {
	return m.LineEnd - m.Line
}

// Annotation is a single annotation on a layer.
type Annotation struct {
	ID         string  `json:"id"`
	LayerID    string  `json:"layerId"`
	Label      string  `json:"label"`
	StartID    string  `json:"startId,omitempty"`
	EndID      string  `json:"endId,omitempty"`
	ParentID   string  `json:"parentId,omitempty"`
	Ordinal    int     `json:"ordinal,omitempty"`
	Confidence int     `json:"confidence,omitempty"`
	Annotator  string  `json:"annotator,omitempty"`
	When       string  `json:"when,omitempty"`
	Start      *Anchor `json:"start,omitempty"`
	End        *Anchor `json:"end,omitempty"`
}

// Anchor is a point in time in a transcript.
type Anchor struct {
	ID         string   `json:"id"`
	Offset     *float64 `json:"offset,omitempty"`
	Confidence int      `json:"confidence,omitempty"`
}

// MatchID is the decoded form of a match identifier such as
// "g_6;em_12_419;n_72700-n_72709;p_4;#=ew_0_8899;prefix=024-;[0]=ew_0_8899".
type MatchID struct {
	TranscriptID  string
	StartAnchorID string
	EndAnchorID   string
	// StartOffset and EndOffset are set when the interval is given in
	// seconds rather than anchor IDs.
	StartOffset *float64
	EndOffset   *float64
	UtteranceID string
	TargetID    string
	Prefix      string
	Attributes  map[string]string
}

// ParseMatchID decodes a match identifier.
func ParseMatchID(raw string) (MatchID, error) {
	parts := strings.Split(strings.TrimSpace(raw), ";")
	if len(parts) == 0 || parts[0] == "" {
		return MatchID{}, fmt.Errorf("match id %q: missing transcript", raw)
	}
	id := MatchID{TranscriptID: parts[0], Attributes: map[string]string{}}

	interval := ""
	for _, p := range parts[1:] {
		if strings.Index(p, "-") > 0 && !strings.Contains(p, "=") {
			interval = p
			break
		}
	}
	if interval == "" {
		return MatchID{}, fmt.Errorf("match id %q: missing interval", raw)
	}
	start, end, ok := strings.Cut(interval, "-")
	if !ok || end == "" {
		return MatchID{}, fmt.Errorf("match id %q: bad interval %q", raw, interval)
	}
	if strings.HasPrefix(start, "n_") {
		id.StartAnchorID, id.EndAnchorID = start, end
	} else {
		s, err := strconv.ParseFloat(start, 64)
		if err != nil {
			return MatchID{}, fmt.Errorf("match id %q: start offset: %w", raw, err)
		}
		e, err := strconv.ParseFloat(end, 64)
		if err != nil {
			return MatchID{}, fmt.Errorf("match id %q: end offset: %w", raw, err)
		}
		id.StartOffset, id.EndOffset = &s, &e
	}

	for _, p := range parts[1:] {
		switch {
		case strings.HasPrefix(p, "prefix="):
			id.Prefix = strings.TrimPrefix(p, "prefix=")
		case strings.HasPrefix(p, "em_"), strings.HasPrefix(p, "m_"):
			id.UtteranceID = p
		case strings.HasPrefix(p, "#="):
			id.TargetID = strings.TrimPrefix(p, "#=")
		default:
			if k, v, ok := strings.Cut(p, "="); ok && k != "" {
				id.Attributes[k] = v
			}
		}
	}
	return id, nil
}

// ParseMatchID decodes the match's identifier.
func (m Match) ParseMatchID() (MatchID, error) {
	return ParseMatchID(m.MatchID)
}
