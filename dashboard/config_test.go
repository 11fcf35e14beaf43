package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gravitational/trace"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	filename := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(filename, []byte(contents), 0600))
	return filename
}

func TestLoadConfig(t *testing.T) {
	t.Run("Full", func(t *testing.T) {
		conf, err := LoadConfig(writeConfig(t, `
[backend]
url = "http://localhost:8000/api"

[session]
email = "admin@example.com"
password = "hunter2"
state-file = "/tmp/session.json"

[log]
output = "stdout"
severity = "DEBUG"
`))
		require.NoError(t, err)
		require.Equal(t, "http://localhost:8000/api", conf.Backend.URL)
		require.Equal(t, "admin@example.com", conf.Session.Email)
		require.Equal(t, "hunter2", conf.Session.Password)
		require.Equal(t, "/tmp/session.json", conf.Session.StateFile)
		require.Equal(t, "DEBUG", conf.Log.Severity)
	})

	t.Run("Defaults", func(t *testing.T) {
		conf, err := LoadConfig(writeConfig(t, `
[backend]
url = "http://localhost:8000/api"

[session]
email = "admin@example.com"
password = "hunter2"
`))
		require.NoError(t, err)
		require.Equal(t, "stderr", conf.Log.Output)
		require.Equal(t, "info", conf.Log.Severity)
	})

	t.Run("PasswordFromFile", func(t *testing.T) {
		passwordFile := filepath.Join(t.TempDir(), "password")
		require.NoError(t, os.WriteFile(passwordFile, []byte("hunter2\n"), 0600))

		conf, err := LoadConfig(writeConfig(t, `
[backend]
url = "http://localhost:8000/api"

[session]
email = "admin@example.com"
password = "`+passwordFile+`"
`))
		require.NoError(t, err)
		require.Equal(t, "hunter2", conf.Session.Password)
	})

	t.Run("MissingBackendURL", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, `
[session]
email = "admin@example.com"
password = "hunter2"
`))
		require.True(t, trace.IsBadParameter(err))
	})

	t.Run("MissingEmail", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, `
[backend]
url = "http://localhost:8000/api"

[session]
password = "hunter2"
`))
		require.True(t, trace.IsBadParameter(err))
	})
}
