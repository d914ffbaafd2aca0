// Package config loads process configuration from the environment and the
// config directory.
package config

import (
	"encoding/json"
	"github.com/evgkarn/cafebot/internal/envstruct"
	"github.com/evgkarn/cafebot/internal/errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Config holds the startup settings. BOT_TOKEN defaults to empty so the
// maintenance CLI can run without credentials; the bot validates it at start.
type Config struct {
	BotToken         string        `env:"BOT_TOKEN" envDefault:""`
	ConfigDir        string        `env:"CONFIG_DIR" envDefault:"./config"`
	ReportsDir       string        `env:"REPORTS_DIR" envDefault:"./reports"`
	MediaDir         string        `env:"MEDIA_DIR" envDefault:"./media"`
	TransportTimeout time.Duration `env:"TRANSPORT_TIMEOUT" envDefault:"30s"`
}

// Load populates a Config from lookupEnv, which has the signature of
// [os.LookupEnv].
func Load(lookupEnv func(string) (string, bool)) (Config, error) {
	var cfg Config
	if err := envstruct.Populate(&cfg, lookupEnv); err != nil {
		return cfg, errors.Wrap(err, "populate config from environment")
	}
	return cfg, nil
}

// EnsureDirs creates the working directories if they do not exist yet.
func (c Config) EnsureDirs() error {
	for _, dir := range []string{c.ConfigDir, c.ReportsDir, c.MediaDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "create directory", slog.String("dir", dir))
		}
	}
	return nil
}

const recipientsFile = "recipients.json"

// Recipients reads the supervisor chat IDs from the config directory. It is
// called fresh at each dispatch so list edits apply to the next report. A
// missing file means no recipients, not an error.
func Recipients(configDir string) ([]int64, error) {
	path := filepath.Join(configDir, recipientsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read recipients file", slog.String("path", path))
	}
	var ids []int64
	if err = json.Unmarshal(data, &ids); err != nil {
		return nil, errors.Wrap(err, "decode recipients file", slog.String("path", path))
	}
	return ids, nil
}
