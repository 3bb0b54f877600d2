package redbot

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	pkgerrs "github.com/jamesprial/redbot/pkg/errors"
)

// Environment variables read by LoadConfigFromEnv.
const (
	EnvUsername     = "REDDIT_USERNAME"
	EnvPassword     = "REDDIT_PASSWORD"
	EnvUserAgent    = "REDDIT_USER_AGENT"
	EnvClientID     = "REDDIT_CLIENT_ID"
	EnvClientSecret = "REDDIT_CLIENT_SECRET"
)

// LoadConfig reads credentials from a JSON file, or from a TOML file when the
// path ends in ".toml". Only the credential fields are read.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgerrs.IO(err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, pkgerrs.Decode(err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, pkgerrs.Decode(err)
		}
	}
	return &cfg, nil
}

// LoadConfigFromEnv builds a Config from REDDIT_* environment variables. A
// .env file in the working directory is loaded first if present; variables
// already set in the environment win. REDDIT_USER_AGENT is optional.
func LoadConfigFromEnv() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, pkgerrs.IO(err)
	}

	cfg := &Config{UserAgent: os.Getenv(EnvUserAgent)}
	required := []struct {
		name string
		dst  *string
	}{
		{EnvUsername, &cfg.Username},
		{EnvPassword, &cfg.Password},
		{EnvClientID, &cfg.ClientID},
		{EnvClientSecret, &cfg.ClientSecret},
	}
	for _, r := range required {
		value := os.Getenv(r.name)
		if value == "" {
			return nil, pkgerrs.Applicationf("environment variable %s is not set", r.name)
		}
		*r.dst = value
	}
	return cfg, nil
}
