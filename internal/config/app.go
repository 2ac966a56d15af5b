package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// AppConfig is the process configuration. Values come from QUICKCMD_*
// environment variables (after .env files are loaded); command-line flags
// override them.
type AppConfig struct {
	Host            string   `env:"QUICKCMD_HOST" envDefault:"127.0.0.1"`
	Port            int      `env:"QUICKCMD_PORT" envDefault:"4517"`
	Workspace       string   `env:"QUICKCMD_WORKSPACE"`
	Folder          string   `env:"QUICKCMD_FOLDER"`
	LogLevel        string   `env:"QUICKCMD_LOG_LEVEL" envDefault:"INFO"`
	PrettyLogs      bool     `env:"QUICKCMD_PRETTY_LOGS"`
	LogToFile       bool     `env:"QUICKCMD_LOG_FILE"`
	DefaultTerminal string   `env:"QUICKCMD_DEFAULT_TERMINAL" envDefault:"Quick Commands"`
	JournalDepth    int      `env:"QUICKCMD_JOURNAL_DEPTH" envDefault:"100"`
	CORSOrigins     []string `env:"QUICKCMD_CORS_ORIGINS" envSeparator:"," envDefault:"*"`
	Watch           bool     `env:"QUICKCMD_WATCH" envDefault:"true"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadApp reads dotenv files (".env" when none are given; missing files are
// skipped) and parses the environment into an AppConfig.
func LoadApp(dotenv ...string) (*AppConfig, error) {
	if len(dotenv) == 0 {
		dotenv = []string{".env"}
	}
	for _, f := range dotenv {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &AppConfig{}
	if err := ParseEnv(cfg); err != nil {
		return nil, err
	}
	if cfg.JournalDepth <= 0 {
		return nil, fmt.Errorf("QUICKCMD_JOURNAL_DEPTH must be positive, got %d", cfg.JournalDepth)
	}
	return cfg, nil
}

// Addr is the listen address.
func (c *AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
