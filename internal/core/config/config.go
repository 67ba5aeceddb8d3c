// Package config handles configuration loading and validation for devtodo.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ServiceGitHub is the only supported account service.
const ServiceGitHub = "github"

// Config holds the application configuration.
type Config struct {
	Accounts map[string]Account `yaml:"accounts"`
	Targets  map[string]Target  `yaml:"targets"`
	// DefaultTargets lists the targets synced when the CLI names none.
	DefaultTargets []string `yaml:"default_targets"`
}

// Account is one remote service login.
type Account struct {
	Service string `yaml:"service"`
	// Hostname overrides the public API host, for self-hosted instances.
	Hostname string `yaml:"hostname"`
	// Token is the literal secret. Prefer TokenEnv.
	Token string `yaml:"token"`
	// TokenEnv names an environment variable holding the secret.
	TokenEnv string `yaml:"token_env"`
}

// ResolveToken returns the account secret, reading the environment when
// the config defers to it.
func (a Account) ResolveToken() (string, error) {
	if a.Token != "" {
		return a.Token, nil
	}
	if a.TokenEnv != "" {
		if v := os.Getenv(a.TokenEnv); v != "" {
			return v, nil
		}
		return "", fmt.Errorf("environment variable %s is not set", a.TokenEnv)
	}
	return "", fmt.Errorf("account has neither token nor token_env")
}

// Target is one local sync directory fed by one or more profiles.
type Target struct {
	Directory string             `yaml:"directory"`
	Profiles  map[string]Profile `yaml:"profiles"`
}

// Profile selects what one account contributes to a target.
type Profile struct {
	Account string `yaml:"account"`
	// Labels narrows the remote query to items carrying all of them.
	Labels []string `yaml:"labels"`
	// Repos filters fetched items by owner/name glob patterns
	// (doublestar syntax, e.g. "myorg/**"). Empty means everything.
	Repos []string `yaml:"repos"`
}

// DefaultConfig returns an empty but valid configuration.
func DefaultConfig() Config {
	return Config{
		Accounts: map[string]Account{},
		Targets:  map[string]Target{},
	}
}

// Load reads configuration from the given path. A missing file is not
// an error; it yields the defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults fills values the YAML may have left nil.
func (c *Config) applyDefaults() {
	if c.Accounts == nil {
		c.Accounts = map[string]Account{}
	}
	if c.Targets == nil {
		c.Targets = map[string]Target{}
	}

	// No explicit default targets means all of them.
	if len(c.DefaultTargets) == 0 {
		for name := range c.Targets {
			c.DefaultTargets = append(c.DefaultTargets, name)
		}
	}
}
