package labbcat

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/five82/labbcat/model"
	"github.com/five82/labbcat/transport"
)

// Record is an administrative record addressable by key.
type Record interface {
	Key() string
}

// Resource is a collection of administrative records under api/admin.
// Creating, updating or deleting requires the admin role.
type Resource[T Record] struct {
	s          *Session
	name       string
	collection string
	list       string
}

func newResource[T Record](s *Session, name, collection, list string) *Resource[T] {
	if list == "" {
		list = collection
	}
	return &Resource[T]{s: s, name: name, collection: collection, list: list}
}

// Corpora manages corpora.
func (s *Session) Corpora() *Resource[model.Corpus] {
	return newResource[model.Corpus](s, "corpus", "api/admin/corpora", "")
}

// Projects manages projects.
func (s *Session) Projects() *Resource[model.Project] {
	return newResource[model.Project](s, "project", "api/admin/projects", "")
}

// MediaTrackDefinitions manages media track definitions.
func (s *Session) MediaTrackDefinitions() *Resource[model.MediaTrack] {
	return newResource[model.MediaTrack](s, "media track", "api/admin/mediatracks", "")
}

// Roles manages user roles.
func (s *Session) Roles() *Resource[model.Role] {
	return newResource[model.Role](s, "role", "api/admin/roles", "")
}

// Users manages user accounts.
func (s *Session) Users() *Resource[model.User] {
	return newResource[model.User](s, "user", "api/admin/users", "")
}

// Categories manages the attribute categories of a class, e.g.
// "transcript" or "speaker".
func (s *Session) Categories(classID string) *Resource[model.Category] {
	return newResource[model.Category](s, "category", "api/admin/categories",
		"api/admin/categories/"+escapeSegment(classID))
}

// RolePermissions manages the permissions of one role.
func (s *Session) RolePermissions(roleID string) *Resource[model.RolePermission] {
	return newResource[model.RolePermission](s, "role permission", "api/admin/roles/permissions",
		"api/admin/roles/permissions/"+escapeSegment(roleID))
}

// Create adds a record and returns it as stored.
func (r *Resource[T]) Create(ctx context.Context, record T) (T, error) {
	return r.write(ctx, "create "+r.name, http.MethodPost, record)
}

// Read returns one zero-based page of records. A pageLength of 0 returns
// every record.
func (r *Resource[T]) Read(ctx context.Context, pageNumber, pageLength int) ([]T, error) {
	var params transport.Params
	if pageLength > 0 {
		params = params.Add("pageNumber", max(pageNumber, 0)).Add("pageLength", pageLength)
	}
	var records []T
	if err := r.s.get(ctx, "read "+r.name, r.s.endpoint(r.list), params, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []T{}
	}
	return records, nil
}

// Update replaces a record and returns it as stored.
func (r *Resource[T]) Update(ctx context.Context, record T) (T, error) {
	return r.write(ctx, "update "+r.name, http.MethodPut, record)
}

// Delete removes the record with key. Deleting a record that does not
// exist fails with a 404 ResponseError.
func (r *Resource[T]) Delete(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return &ValidationError{Op: "delete " + r.name, Reason: "no key"}
	}
	_, err := r.s.do(ctx, call{
		op:     "delete " + r.name,
		method: http.MethodDelete,
		url:    r.s.endpoint(r.collection, strings.Split(key, "/")...),
	}, nil)
	return err
}

func (r *Resource[T]) write(ctx context.Context, op, method string, record T) (T, error) {
	var stored T
	env, err := r.s.do(ctx, call{
		op:     op,
		method: method,
		url:    r.s.endpoint(r.collection),
		kind:   jsonBody,
		json:   record,
	}, &stored)
	if err != nil {
		var zero T
		return zero, err
	}
	if env.ModelNull() {
		return record, nil
	}
	return stored, nil
}

// SystemAttributes lists the server's system attributes.
func (s *Session) SystemAttributes(ctx context.Context) ([]model.SystemAttribute, error) {
	var attrs []model.SystemAttribute
	if err := s.get(ctx, "read system attributes", s.endpoint("api/admin/systemattributes"), nil, &attrs); err != nil {
		return nil, err
	}
	return attrs, nil
}

// UpdateSystemAttribute sets a system attribute's value.
func (s *Session) UpdateSystemAttribute(ctx context.Context, attribute, value string) (*model.SystemAttribute, error) {
	var stored model.SystemAttribute
	env, err := s.do(ctx, call{
		op:     "update system attribute",
		method: http.MethodPut,
		url:    s.endpoint("api/admin/systemattributes"),
		kind:   jsonBody,
		json:   model.SystemAttribute{Attribute: attribute, Value: value},
	}, &stored)
	if err != nil {
		return nil, err
	}
	if env.ModelNull() {
		stored = model.SystemAttribute{Attribute: attribute, Value: value}
	}
	return &stored, nil
}

// SetPassword sets a user's password. resetPassword forces a change at the
// user's next login.
func (s *Session) SetPassword(ctx context.Context, user, password string, resetPassword bool) error {
	_, err := s.do(ctx, call{
		op:     "set password",
		method: http.MethodPut,
		url:    s.endpoint("api/admin/password"),
		kind:   jsonBody,
		json: map[string]any{
			"user":          user,
			"password":      password,
			"resetPassword": resetPassword,
		},
	}, nil)
	return err
}

func escapeSegment(s string) string {
	return url.PathEscape(strings.TrimSpace(s))
}
