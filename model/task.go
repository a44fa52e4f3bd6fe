package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Text decodes a JSON string, number or boolean as text. The server is not
// consistent about quoting identifiers such as thread IDs.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	*t = Text(data)
	return nil
}

// String returns the text.
func (t Text) String() string { return string(t) }

// TaskStatus mirrors the payload returned by thread and threads.
type TaskStatus struct {
	ThreadID        Text   `json:"threadId"`
	ThreadName      string `json:"threadName"`
	Running         bool   `json:"running"`
	Duration        int64  `json:"duration"`
	PercentComplete int    `json:"percentComplete"`
	Status          string `json:"status"`
	RefreshSeconds  int    `json:"refreshSeconds"`
	ResultURL       string `json:"resultUrl"`
	ResultText      string `json:"resultText"`
	Log             Text   `json:"log"`
}

// ID returns the task identifier.
func (s *TaskStatus) ID() string {
	if s == nil {
		return ""
	}
	return string(s.ThreadID)
}

// RefreshInterval returns the server's suggested poll interval, or fallback
// when none was given.
func (s *TaskStatus) RefreshInterval(fallback time.Duration) time.Duration {
	if s == nil || s.RefreshSeconds <= 0 {
		return fallback
	}
	return time.Duration(s.RefreshSeconds) * time.Second
}

// Elapsed converts Duration (milliseconds) to a time.Duration.
func (s *TaskStatus) Elapsed() time.Duration {
	if s == nil || s.Duration <= 0 {
		return 0
	}
	return time.Duration(s.Duration) * time.Millisecond
}

// Fraction returns PercentComplete clamped to [0,1].
func (s *TaskStatus) Fraction() float64 {
	if s == nil {
		return 0
	}
	p := float64(s.PercentComplete) / 100
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

func (s *TaskStatus) String() string {
	if s == nil {
		return "<nil task>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s) %s (%d%% ", s.ThreadID, s.ThreadName, s.Status, s.PercentComplete)
	if s.Running {
		b.WriteString("running)")
	} else {
		b.WriteString("finished)")
	}
	if s.ResultURL != "" {
		b.WriteString(" ")
		b.WriteString(s.ResultURL)
	}
	return b.String()
}
