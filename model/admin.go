package model

import "strings"

// Corpus is a collection of transcripts.
type Corpus struct {
	CorpusID    int    `json:"corpus_id,omitempty"`
	Name        string `json:"corpus_name"`
	Language    string `json:"corpus_language"`
	Description string `json:"corpus_description"`
}

// Key identifies the corpus in admin URLs.
func (c Corpus) Key() string { return c.Name }

// Project groups layers.
type Project struct {
	ProjectID   int    `json:"project_id,omitempty"`
	Project     string `json:"project"`
	Description string `json:"description"`
}

// Key identifies the project in admin URLs.
func (p Project) Key() string { return p.Project }

// MediaTrack is a configured media file suffix.
type MediaTrack struct {
	Suffix       string `json:"suffix"`
	Description  string `json:"description"`
	DisplayOrder int    `json:"display_order"`
}

// Key identifies the track in admin URLs.
func (m MediaTrack) Key() string { return m.Suffix }

// Role is a user role.
type Role struct {
	RoleID      string `json:"role_id"`
	Description string `json:"description"`
}

// Key identifies the role in admin URLs.
func (r Role) Key() string { return r.RoleID }

// RolePermission grants a role access to media entities of transcripts
// whose attribute matches a pattern.
type RolePermission struct {
	RoleID string `json:"role_id"`
	// Entity is made of the letters t (transcript), a (audio), v (video)
	// and i (image).
	Entity        string `json:"entity"`
	AttributeName string `json:"attribute_name"`
	ValuePattern  string `json:"value_pattern"`
}

// LayerID maps the attribute name to a layer ID: "corpus" stays as is and
// anything else is a transcript attribute.
func (p RolePermission) LayerID() string {
	switch p.AttributeName {
	case "":
		return ""
	case "corpus":
		return "corpus"
	}
	return "transcript_" + p.AttributeName
}

// Key identifies the permission in admin URLs.
func (p RolePermission) Key() string { return p.RoleID + "/" + p.Entity }

// User is a user account.
type User struct {
	User          string   `json:"user"`
	Email         string   `json:"email,omitempty"`
	ResetPassword bool     `json:"reset_password,omitempty"`
	Roles         []string `json:"roles"`
}

// Key identifies the user in admin URLs.
func (u User) Key() string { return u.User }

// HasRole reports whether the user holds role.
func (u User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// Category groups attributes of a class (transcript or participant).
type Category struct {
	ClassID      string `json:"class_id"`
	Category     string `json:"category"`
	Description  string `json:"description"`
	DisplayOrder int    `json:"display_order"`
}

// Key identifies the category in admin URLs.
func (c Category) Key() string { return c.ClassID + "/" + c.Category }

// SystemAttribute is a server-wide setting.
type SystemAttribute struct {
	Attribute   string            `json:"attribute"`
	Type        string            `json:"type,omitempty"`
	Style       string            `json:"style,omitempty"`
	Label       string            `json:"label,omitempty"`
	Description string            `json:"description,omitempty"`
	Options     map[string]string `json:"options,omitempty"`
	Value       string            `json:"value"`
}

// Key identifies the attribute in admin URLs.
func (a SystemAttribute) Key() string { return a.Attribute }

// MediaFile describes one media file available for a transcript.
type MediaFile struct {
	TrackSuffix string `json:"trackSuffix"`
	MimeType    string `json:"mimeType"`
	Extension   string `json:"extension"`
	URL         string `json:"url"`
	Name        string `json:"name"`
}

// UserInfo describes the current user.
type UserInfo struct {
	User  string   `json:"user"`
	Roles []string `json:"roles"`
}
