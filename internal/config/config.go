// Package config handles ikdisplay configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order. An explicit
// path (from -config flag) is checked first. Then: ./config.yaml,
// ~/.config/ikdisplay/config.yaml, /config/config.yaml,
// /etc/ikdisplay/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "ikdisplay", "config.yaml"))
	}

	paths = append(paths, "/config/config.yaml") // Container convention
	paths = append(paths, "/etc/ikdisplay/config.yaml")
	return paths
}

// searchPathsFunc is an indirection over DefaultSearchPaths so tests can
// substitute a sandboxed search path without touching the real
// filesystem locations a developer or deploy machine might have.
var searchPathsFunc = DefaultSearchPaths

// FindConfig locates a config file. If explicit is non-empty, it must
// exist. Otherwise, searches searchPathsFunc()'s paths and returns the
// first that exists.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	paths := searchPathsFunc()
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", paths)
}

// Config holds all ikdisplay configuration.
type Config struct {
	Listen   ListenConfig   `yaml:"listen"`
	Admin    ListenConfig   `yaml:"admin"`
	XMPP     XMPPConfig     `yaml:"xmpp"`
	Twitter  TwitterConfig  `yaml:"twitter"`
	Embedly  EmbedlyConfig  `yaml:"embedly"`
	PubSub   PubSubConfig   `yaml:"pubsub"`
	DataDir  string         `yaml:"data_dir"`
	TextsDir string         `yaml:"texts_dir"`
	LogLevel string         `yaml:"log_level"`
}

// ListenConfig defines an HTTP server's bind settings.
type ListenConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// XMPPConfig defines the pub/sub session's connection settings.
type XMPPConfig struct {
	JID      string `yaml:"jid"`
	Password string `yaml:"password"`
	Server   string `yaml:"server"`
	Port     int    `yaml:"port"`
}

// Configured reports whether a JID and password are both present.
func (c XMPPConfig) Configured() bool {
	return c.JID != "" && c.Password != ""
}

// PubSubConfig names the pub/sub service the dispatcher subscribes
// through and republishes feeds onto (spec.md §4.7's "configuredService").
type PubSubConfig struct {
	Service string `yaml:"service"`
}

// TwitterConfig defines the microblog monitor's OAuth1 credentials
// (spec.md §6).
type TwitterConfig struct {
	ConsumerKey    string `yaml:"consumer_key"`
	ConsumerSecret string `yaml:"consumer_secret"`
	AccessToken    string `yaml:"access_token"`
	AccessSecret   string `yaml:"access_secret"`
}

// Configured reports whether all four OAuth1 credentials are present.
func (c TwitterConfig) Configured() bool {
	return c.ConsumerKey != "" && c.ConsumerSecret != "" && c.AccessToken != "" && c.AccessSecret != ""
}

// EmbedlyConfig carries the optional embed.ly API key used by C10's
// embedly oEmbed resolver.
type EmbedlyConfig struct {
	APIKey string `yaml:"api_key"`
}

// Load reads configuration from a YAML file, expands environment
// variables, applies defaults for any unset fields, and validates the
// result. After Load returns successfully, all fields are usable
// without additional nil/empty checks.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g. ${XMPP_PASSWORD}) as a
	// convenience for container deployments.
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.Listen.Port == 0 {
		c.Listen.Port = 8080
	}
	if c.Admin.Port == 0 {
		c.Admin.Port = 8081
	}
	if c.XMPP.Port == 0 {
		c.XMPP.Port = 5222
	}
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.TextsDir == "" {
		c.TextsDir = "./texts"
	}
	if c.PubSub.Service == "" {
		c.PubSub.Service = c.XMPP.Server
	}
}

// Validate checks that the configuration is internally consistent. It
// runs after applyDefaults, so it can assume defaults are populated.
func (c *Config) Validate() error {
	if c.Listen.Port < 1 || c.Listen.Port > 65535 {
		return fmt.Errorf("listen.port %d out of range (1-65535)", c.Listen.Port)
	}
	if c.Admin.Port < 1 || c.Admin.Port > 65535 {
		return fmt.Errorf("admin.port %d out of range (1-65535)", c.Admin.Port)
	}
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}
	return nil
}
