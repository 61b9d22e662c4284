package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Profile file  (profile.go)
//   4. Defaults   (defaults.go)

import (
	"time"

	"github.com/caarlos0/env/v6"
)

// envConfig mirrors the env-settable subset of Config.  Every
// supported variable uses the IPTADM_ prefix.
type envConfig struct {
	Target        string `env:"IPTADM_TARGET"`
	KeyPath       string `env:"IPTADM_KEY"`
	KeyPassphrase string `env:"IPTADM_KEY_PASSPHRASE"`
	StrictHostKey bool   `env:"IPTADM_STRICT_HOSTKEY"`
	KnownHosts    string `env:"IPTADM_KNOWN_HOSTS"`
	Profile       string `env:"IPTADM_PROFILE"`
	ProfilesPath  string `env:"IPTADM_PROFILES_FILE"`
	Session       string `env:"IPTADM_SESSION"`
	TimeoutSec    int    `env:"IPTADM_TIMEOUT"`
	Verbose       int    `env:"IPTADM_VERBOSE"`
}

// LoadFromEnv overlays environment variables onto cfg.  Only set env
// vars override the existing value.  This must run BEFORE CLI flag
// registration so that flags take precedence.
func LoadFromEnv(cfg *Config) error {
	var e envConfig
	if err := env.Parse(&e); err != nil {
		return err
	}

	if e.Target != "" {
		cfg.TargetSpec = e.Target
	}
	if e.KeyPath != "" {
		cfg.KeyPath = e.KeyPath
	}
	if e.KeyPassphrase != "" {
		cfg.KeyPassphrase = e.KeyPassphrase
	}
	if e.StrictHostKey {
		cfg.StrictHostKey = true
	}
	if e.KnownHosts != "" {
		cfg.KnownHostsPath = e.KnownHosts
	}
	if e.Profile != "" {
		cfg.Profile = e.Profile
	}
	if e.ProfilesPath != "" {
		cfg.ProfilesPath = e.ProfilesPath
	}
	if e.Session != "" {
		cfg.Session = e.Session
	}
	if e.TimeoutSec > 0 {
		cfg.Timeout = time.Duration(e.TimeoutSec) * time.Second
	}
	if e.Verbose > 0 {
		cfg.Verbose = e.Verbose
	}
	return nil
}
