package api

import (
	"github.com/gravitational/trace"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// User is a dashboard user record as returned by the backend.
type User struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	FirstName   string   `json:"first_name,omitempty"`
	LastName    string   `json:"last_name,omitempty"`
	Status      string   `json:"status,omitempty"`
	Role        string   `json:"role,omitempty"`
	PrimaryRole string   `json:"primary_role,omitempty"`
	Roles       []string `json:"roles,omitempty"`
}

// Script is a script record as returned by the backend.
type Script struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Language  string `json:"language,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

type loginResponse struct {
	Data loginData `json:"data"`
}

type loginData struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    string `json:"expires_at"`
	User         *User  `json:"user"`
}

type refreshResponse struct {
	Data refreshData `json:"data"`
}

type refreshData struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    string `json:"expires_at"`
}

func decodeBody(payload []byte, out interface{}) error {
	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return trace.BadParameter("malformed response body: %v", err)
	}
	return nil
}
