package model

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// LayerMatch is the condition applied to one layer within a column.
type LayerMatch struct {
	Not         bool   `json:"not,omitempty"`
	Pattern     string `json:"pattern,omitempty"`
	Min         string `json:"min,omitempty"`
	Max         string `json:"max,omitempty"`
	AnchorStart bool   `json:"anchorStart,omitempty"`
	AnchorEnd   bool   `json:"anchorEnd,omitempty"`
	Target      bool   `json:"target,omitempty"`
}

// Column is one token position of a search pattern. Layers keep insertion
// order on the wire.
type Column struct {
	Layers []LayerCondition
	// Adj is the maximum distance to the next column; 0 omits it.
	Adj int
}

// LayerCondition pairs a layer ID with its condition.
type LayerCondition struct {
	LayerID string
	Match   LayerMatch
}

// MarshalJSON implements json.Marshaler.
func (c Column) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(`{"layers":{`)
	for i, l := range c.Layers {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(l.LayerID)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(l.Match)
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(val)
	}
	b.WriteByte('}')
	if c.Adj != 0 {
		b.WriteString(`,"adj":`)
		b.WriteString(strconv.Itoa(c.Adj))
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// Pattern is a structured search query: a sequence of columns.
type Pattern struct {
	Columns []Column `json:"columns"`
}

// Empty reports whether the pattern has no column with a layer condition.
func (p *Pattern) Empty() bool {
	if p == nil {
		return true
	}
	for _, c := range p.Columns {
		if len(c.Layers) > 0 {
			return false
		}
	}
	return true
}

// JSON renders the pattern as the server expects it in searchJson.
func (p *Pattern) JSON() (string, error) {
	if p == nil {
		p = &Pattern{}
	}
	cols := p.Columns
	if cols == nil {
		cols = []Column{}
	}
	data, err := json.Marshal(Pattern{Columns: cols})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// PatternBuilder assembles a Pattern fluently:
//
//	p := model.NewPatternBuilder().
//		AddMatchLayer("orthography", "the").
//		AddColumn().
//		AddNotMatchLayer("phonemes", "[aeiou].*").
//		Build()
type PatternBuilder struct {
	columns []Column
}

// NewPatternBuilder returns an empty builder.
func NewPatternBuilder() *PatternBuilder {
	return &PatternBuilder{}
}

// AddColumn starts a new column immediately following the last one.
func (b *PatternBuilder) AddColumn() *PatternBuilder {
	return b.AddAdjacentColumn(1)
}

// AddAdjacentColumn starts a new column up to adj tokens after the last
// one. It does nothing while the last column has no layers.
func (b *PatternBuilder) AddAdjacentColumn(adj int) *PatternBuilder {
	if n := len(b.columns); n > 0 {
		if len(b.columns[n-1].Layers) == 0 {
			return b
		}
		b.columns[n-1].Adj = adj
	}
	b.columns = append(b.columns, Column{})
	return b
}

// AddMatchLayer requires layerID to match the regular expression.
func (b *PatternBuilder) AddMatchLayer(layerID, regexp string) *PatternBuilder {
	return b.put(layerID, LayerMatch{Pattern: regexp})
}

// AddNotMatchLayer requires layerID not to match the regular expression.
func (b *PatternBuilder) AddNotMatchLayer(layerID, regexp string) *PatternBuilder {
	return b.put(layerID, LayerMatch{Not: true, Pattern: regexp})
}

// AddMinLayer requires a numeric label of at least min.
func (b *PatternBuilder) AddMinLayer(layerID string, min float64) *PatternBuilder {
	return b.put(layerID, LayerMatch{Min: formatBound(min)})
}

// AddMaxLayer requires a numeric label below max.
func (b *PatternBuilder) AddMaxLayer(layerID string, max float64) *PatternBuilder {
	return b.put(layerID, LayerMatch{Max: formatBound(max)})
}

// AddRangeLayer requires a numeric label in [min, max).
func (b *PatternBuilder) AddRangeLayer(layerID string, min, max float64) *PatternBuilder {
	return b.put(layerID, LayerMatch{Min: formatBound(min), Max: formatBound(max)})
}

// AddLayer sets an arbitrary condition.
func (b *PatternBuilder) AddLayer(layerID string, m LayerMatch) *PatternBuilder {
	return b.put(layerID, m)
}

// Build returns the pattern. The builder may be reused afterwards.
func (b *PatternBuilder) Build() *Pattern {
	cols := make([]Column, len(b.columns))
	for i, c := range b.columns {
		cols[i] = Column{Layers: append([]LayerCondition(nil), c.Layers...), Adj: c.Adj}
	}
	return &Pattern{Columns: cols}
}

func (b *PatternBuilder) put(layerID string, m LayerMatch) *PatternBuilder {
	if len(b.columns) == 0 {
		b.columns = append(b.columns, Column{})
	}
	last := &b.columns[len(b.columns)-1]
	for i := range last.Layers {
		if last.Layers[i].LayerID == layerID {
			last.Layers[i].Match = m
			return b
		}
	}
	last.Layers = append(last.Layers, LayerCondition{LayerID: layerID, Match: m})
	return b
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
