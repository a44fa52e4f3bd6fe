package model

import "sort"

// Parameter is one option the server wants settled before an uploaded
// transcript is ingested.
type Parameter struct {
	Name           string `json:"name"`
	Label          string `json:"label,omitempty"`
	Hint           string `json:"hint,omitempty"`
	Type           string `json:"type,omitempty"`
	Required       bool   `json:"required,omitempty"`
	Value          any    `json:"value,omitempty"`
	PossibleValues []any  `json:"possibleValues,omitempty"`
}

// Upload is the state of a transcript upload negotiation.
type Upload struct {
	ID          string            `json:"id"`
	Parameters  []Parameter       `json:"parameters"`
	Transcripts map[string]string `json:"transcripts,omitempty"`
}

// Parameter returns the named parameter, or nil.
func (u *Upload) Parameter(name string) *Parameter {
	if u == nil {
		return nil
	}
	for i := range u.Parameters {
		if u.Parameters[i].Name == name {
			return &u.Parameters[i]
		}
	}
	return nil
}

// SetValue sets the value of the named parameter, reporting whether it exists.
func (u *Upload) SetValue(name string, value any) bool {
	p := u.Parameter(name)
	if p == nil {
		return false
	}
	p.Value = value
	return true
}

// MissingRequired lists required parameters that have no value.
func (u *Upload) MissingRequired() []string {
	if u == nil {
		return nil
	}
	var missing []string
	for _, p := range u.Parameters {
		if p.Required && isBlank(p.Value) {
			missing = append(missing, p.Name)
		}
	}
	return missing
}

// TaskIDs returns the task IDs of the ingested transcripts, ordered by
// transcript ID.
func (u *Upload) TaskIDs() []string {
	if u == nil || len(u.Transcripts) == 0 {
		return nil
	}
	names := make([]string, 0, len(u.Transcripts))
	for name := range u.Transcripts {
		names = append(names, name)
	}
	sort.Strings(names)
	ids := make([]string, 0, len(names))
	for _, name := range names {
		ids = append(ids, u.Transcripts[name])
	}
	return ids
}

func isBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	}
	return false
}
