package main

import (
	"os"
	"strings"

	"github.com/gravitational/trace"
	"github.com/pelletier/go-toml"

	"github.com/pixiscript/dashboard/lib/logger"
)

// Config is the daemon configuration.
type Config struct {
	Backend BackendConfig `toml:"backend"`
	Session SessionConfig `toml:"session"`
	Log     logger.Config `toml:"log"`
}

// BackendConfig points at the script management backend API.
type BackendConfig struct {
	URL string `toml:"url"`
}

// SessionConfig holds the login identity and the session state
// location.
type SessionConfig struct {
	Email     string `toml:"email"`
	Password  string `toml:"password"`
	StateFile string `toml:"state-file"`
}

const exampleConfig = `# example pixiscript-dashboard configuration TOML file
[backend]
url = "http://localhost:8000/api" # Backend API base URL

[session]
email = "admin@example.com"            # Login email
password = "/var/lib/pixiscript/pass"  # Password or path to a file containing it
state-file = "/var/lib/pixiscript/session.json" # Where to persist the session

[log]
output = "stderr" # Logger output. Could be "stdout", "stderr" or a file path.
severity = "INFO" # Logger severity. Could be "INFO", "ERROR", "DEBUG" or "WARN".
`

// LoadConfig reads the TOML configuration file.
func LoadConfig(filepath string) (*Config, error) {
	t, err := toml.LoadFile(filepath)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	conf := &Config{}
	if err := t.Unmarshal(conf); err != nil {
		return nil, trace.Wrap(err)
	}
	if strings.HasPrefix(conf.Session.Password, "/") {
		conf.Session.Password, err = readPassword(conf.Session.Password)
		if err != nil {
			return nil, trace.Wrap(err)
		}
	}
	if err := conf.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return conf, nil
}

// CheckAndSetDefaults checks the config and fills in the defaults.
func (c *Config) CheckAndSetDefaults() error {
	if c.Backend.URL == "" {
		return trace.BadParameter("missing required value backend.url")
	}
	if c.Session.Email == "" {
		return trace.BadParameter("missing required value session.email")
	}
	if c.Session.Password == "" {
		return trace.BadParameter("missing required value session.password")
	}
	if c.Log.Output == "" {
		c.Log.Output = "stderr"
	}
	if c.Log.Severity == "" {
		c.Log.Severity = "info"
	}
	return nil
}

func readPassword(filename string) (string, error) {
	payload, err := os.ReadFile(filename)
	if err != nil {
		return "", trace.ConvertSystemError(err)
	}
	return strings.TrimSpace(string(payload)), nil
}
