package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gravitational/trace"
)

// UsersService wraps the user management endpoints of the backend.
type UsersService struct {
	client *Client
}

// List returns all users.
func (s *UsersService) List(ctx context.Context) ([]User, error) {
	var users []User
	if err := s.client.Request(ctx, http.MethodGet, "users", nil, &users); err != nil {
		return nil, trace.Wrap(err)
	}
	return users, nil
}

// Get returns a single user by id.
func (s *UsersService) Get(ctx context.Context, id int) (*User, error) {
	var user User
	if err := s.client.Request(ctx, http.MethodGet, fmt.Sprintf("users/%d", id), nil, &user); err != nil {
		return nil, trace.Wrap(err)
	}
	return &user, nil
}

// Create adds a new user.
func (s *UsersService) Create(ctx context.Context, user User) error {
	return trace.Wrap(s.client.Request(ctx, http.MethodPost, "users", user, nil))
}

// Update replaces the mutable fields of a user.
func (s *UsersService) Update(ctx context.Context, id int, user User) error {
	return trace.Wrap(s.client.Request(ctx, http.MethodPut, fmt.Sprintf("users/%d", id), user, nil))
}

// Delete removes a user.
func (s *UsersService) Delete(ctx context.Context, id int) error {
	return trace.Wrap(s.client.Request(ctx, http.MethodDelete, fmt.Sprintf("users/%d", id), nil, nil))
}

// SetStatus patches the user's status, e.g. archiving them.
func (s *UsersService) SetStatus(ctx context.Context, id int, status string) (*User, error) {
	var user User
	body := map[string]string{"status": status}
	if err := s.client.Request(ctx, http.MethodPatch, fmt.Sprintf("users/%d/status", id), body, &user); err != nil {
		return nil, trace.Wrap(err)
	}
	return &user, nil
}

// SetRole updates the user's role.
func (s *UsersService) SetRole(ctx context.Context, id int, role string) error {
	body := map[string]string{"role": role}
	return trace.Wrap(s.client.Request(ctx, http.MethodPut, fmt.Sprintf("users/%d/role", id), body, nil))
}
