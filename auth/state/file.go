package state

import (
	"context"
	"encoding/json"
	"os"

	"github.com/gravitational/trace"
)

// NB: racy, does not use file-locking or similar. A single dashboard
// process is expected to own the state file.
type fileStore struct {
	filename string
}

// NewFileStore returns a Store persisting the credentials as a JSON
// file at the given path.
func NewFileStore(filename string) (Store, error) {
	if filename == "" {
		return nil, trace.BadParameter("missing credential state filename")
	}
	return &fileStore{filename: filename}, nil
}

func (f *fileStore) GetCredentials(_ context.Context) (*Credentials, error) {
	payload, err := os.ReadFile(f.filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, trace.NotFound("no persisted credentials at %q", f.filename)
		}
		return nil, trace.Wrap(err)
	}

	var creds Credentials
	err = json.Unmarshal(payload, &creds)
	if err != nil {
		return nil, trace.Wrap(err)
	} else if creds.AccessToken == "" {
		return nil, trace.NotFound("state does not contain `AccessToken`")
	} else if creds.RefreshToken == "" {
		return nil, trace.NotFound("state does not contain `RefreshToken`")
	} else if creds.ExpiresAt.IsZero() {
		return nil, trace.NotFound("state does not contain `ExpiresAt`")
	}

	return &creds, nil
}

func (f *fileStore) PutCredentials(_ context.Context, creds *Credentials) error {
	payload, err := json.Marshal(&creds)
	if err != nil {
		return trace.Wrap(err)
	}

	return trace.Wrap(os.WriteFile(f.filename, payload, 0600))
}

func (f *fileStore) ClearCredentials(_ context.Context) error {
	err := os.Remove(f.filename)
	if err != nil && !os.IsNotExist(err) {
		return trace.Wrap(err)
	}
	return nil
}
