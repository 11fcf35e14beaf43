package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gravitational/trace"
	"golang.org/x/sync/errgroup"
)

// ScriptsService wraps the script management endpoints of the backend.
type ScriptsService struct {
	client *Client
}

// ScriptForm is the payload for script generation.
type ScriptForm struct {
	Title    string `json:"title"`
	Prompt   string `json:"prompt"`
	Language string `json:"language,omitempty"`
}

// List returns the scripts owned by the current user.
func (s *ScriptsService) List(ctx context.Context) ([]Script, error) {
	var result struct {
		Data []Script `json:"data"`
	}
	if err := s.client.Request(ctx, http.MethodGet, "my-scripts", nil, &result); err != nil {
		return nil, trace.Wrap(err)
	}
	return result.Data, nil
}

// Get returns a single script by id.
func (s *ScriptsService) Get(ctx context.Context, id int) (*Script, error) {
	var result struct {
		Data Script `json:"data"`
	}
	if err := s.client.Request(ctx, http.MethodGet, fmt.Sprintf("scripts/%d", id), nil, &result); err != nil {
		return nil, trace.Wrap(err)
	}
	return &result.Data, nil
}

// Generate asks the backend to generate a new script from the form.
func (s *ScriptsService) Generate(ctx context.Context, form ScriptForm) (*Script, error) {
	var result struct {
		Data Script `json:"data"`
	}
	if err := s.client.Request(ctx, http.MethodPost, "scripts/generate", form, &result); err != nil {
		return nil, trace.Wrap(err)
	}
	return &result.Data, nil
}

// Improve submits an improvement prompt for an existing script and
// returns the modified script text.
func (s *ScriptsService) Improve(ctx context.Context, id int, prompt string) (string, error) {
	var result struct {
		ModifiedScript string `json:"modified_script"`
	}
	body := map[string]string{"prompt": prompt}
	path := fmt.Sprintf("scripts/%d/improve", id)
	if err := s.client.Request(ctx, http.MethodPost, path, body, &result); err != nil {
		return "", trace.Wrap(err)
	}
	return result.ModifiedScript, nil
}

// Update replaces the mutable fields of a script.
func (s *ScriptsService) Update(ctx context.Context, id int, script Script) (*Script, error) {
	var result struct {
		Data Script `json:"data"`
	}
	if err := s.client.Request(ctx, http.MethodPut, fmt.Sprintf("scripts/%d", id), script, &result); err != nil {
		return nil, trace.Wrap(err)
	}
	return &result.Data, nil
}

// Delete removes a script.
func (s *ScriptsService) Delete(ctx context.Context, id int) error {
	return trace.Wrap(s.client.Request(ctx, http.MethodDelete, fmt.Sprintf("scripts/%d", id), nil, nil))
}

// BulkDelete removes several scripts concurrently, the way the
// dashboard's bulk-delete bar issues them.
func (s *ScriptsService) BulkDelete(ctx context.Context, ids []int) error {
	group, ctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		group.Go(func() error {
			return s.Delete(ctx, id)
		})
	}
	return trace.Wrap(group.Wait())
}

// Shared returns scripts other users have shared with the current one.
func (s *ScriptsService) Shared(ctx context.Context) ([]Script, error) {
	var result struct {
		Shares []struct {
			ScriptID int `json:"script_id"`
		} `json:"shares"`
	}
	if err := s.client.Request(ctx, http.MethodGet, "script-shares/me", nil, &result); err != nil {
		return nil, trace.Wrap(err)
	}

	scripts := make([]Script, 0, len(result.Shares))
	for _, share := range result.Shares {
		script, err := s.Get(ctx, share.ScriptID)
		if err != nil {
			return nil, trace.Wrap(err)
		}
		scripts = append(scripts, *script)
	}
	return scripts, nil
}

// DownloadPDF fetches the rendered PDF of a script into filename.
func (s *ScriptsService) DownloadPDF(ctx context.Context, id int, filename string) error {
	path := fmt.Sprintf("scripts/%d/download-pdf", id)
	return trace.Wrap(s.client.DownloadFile(ctx, path, filename))
}
