// Package config resolves client settings from defaults, an optional YAML
// file and environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultAPIURL     = "http://localhost:8000"
	defaultTimeoutSec = 30
	defaultLogLevel   = "info"
)

type Config struct {
	APIURL      string
	WebURL      string
	Timeout     time.Duration
	SessionFile string
	LogFile     string
	LogLevel    string
}

// fileConfig is the on-disk shape of ~/.todo/config.yaml.
type fileConfig struct {
	APIURL      string `yaml:"api_url"`
	WebURL      string `yaml:"web_url"`
	TimeoutSec  int    `yaml:"timeout_sec"`
	SessionFile string `yaml:"session_file"`
	LogFile     string `yaml:"log_file"`
	LogLevel    string `yaml:"log_level"`
}

// Dir returns ~/.todo, the home of the session, log and config files.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".todo"), nil
}

func Load() (Config, error) {
	dir, err := Dir()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		APIURL:      defaultAPIURL,
		Timeout:     defaultTimeoutSec * time.Second,
		SessionFile: filepath.Join(dir, "session.json"),
		LogFile:     filepath.Join(dir, "todo.log"),
		LogLevel:    defaultLogLevel,
	}

	path := getEnv("TODO_CONFIG", filepath.Join(dir, "config.yaml"))
	fc, err := readFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg.merge(fc)

	cfg.APIURL = getEnv("TODO_API_URL", cfg.APIURL)
	cfg.WebURL = getEnv("TODO_WEB_URL", cfg.WebURL)
	cfg.SessionFile = getEnv("TODO_SESSION_FILE", cfg.SessionFile)
	// An empty TODO_LOG_FILE turns file logging off.
	if v, ok := os.LookupEnv("TODO_LOG_FILE"); ok {
		cfg.LogFile = v
	}
	cfg.LogLevel = getEnv("TODO_LOG_LEVEL", cfg.LogLevel)
	if sec := getEnvInt("TODO_TIMEOUT_SEC", 0); sec > 0 {
		cfg.Timeout = time.Duration(sec) * time.Second
	}

	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	if cfg.WebURL == "" {
		cfg.WebURL = cfg.APIURL
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readFile(path string) (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fc, nil
		}
		return fc, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return fc, nil
}

func (c *Config) merge(fc fileConfig) {
	if fc.APIURL != "" {
		c.APIURL = fc.APIURL
	}
	if fc.WebURL != "" {
		c.WebURL = fc.WebURL
	}
	if fc.TimeoutSec > 0 {
		c.Timeout = time.Duration(fc.TimeoutSec) * time.Second
	}
	if fc.SessionFile != "" {
		c.SessionFile = fc.SessionFile
	}
	if fc.LogFile != "" {
		c.LogFile = fc.LogFile
	}
	if fc.LogLevel != "" {
		c.LogLevel = fc.LogLevel
	}
}

func (c Config) validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("TODO_API_URL must be an http(s) URL, got %q", c.APIURL)
	}
	if c.SessionFile == "" {
		return fmt.Errorf("TODO_SESSION_FILE must not be empty")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("TODO_LOG_LEVEL must be one of debug|info|warn|error, got %q", c.LogLevel)
	}
	return nil
}

func getEnv(key, fallback string) string {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	return val
}

func getEnvInt(key string, fallback int) int {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}
