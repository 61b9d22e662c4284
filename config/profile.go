package config

// profile.go - named host profiles loaded from a YAML file.
//
// A profiles file maps a short name to connection settings so that
// frequently managed hosts do not need a full flag set every run:
//
//	edge-fw:
//	  host: fw1.example.com
//	  port: 2222
//	  user: admin
//	  key: ~/.ssh/fw_ed25519
//	  strict_hostkey: true
//	dmz:
//	  host: 10.0.40.1
//	  user: root

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Profile is one named host entry in the profiles file.
type Profile struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	User          string `yaml:"user"`
	KeyPath       string `yaml:"key"`
	KeyPassphrase string `yaml:"key_passphrase"`
	StrictHostKey bool   `yaml:"strict_hostkey"`
	KnownHosts    string `yaml:"known_hosts"`
	Table         string `yaml:"table"`
	TimeoutSec    int    `yaml:"timeout"`
}

// DefaultProfilesPath returns the per-user profiles file location,
// typically ~/.config/iptadm/profiles.yaml on Linux.
func DefaultProfilesPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving user config dir: %w", err)
	}
	return filepath.Join(dir, profilesDirName, profilesFileName), nil
}

// LoadProfile reads the profiles file at path and returns the entry
// named name.  A missing file and a missing entry are distinct errors
// so the caller can suggest the right fix.
func LoadProfile(path, name string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profiles file: %w", err)
	}

	profiles := make(map[string]*Profile)
	if err := yaml.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("parsing profiles file %s: %w", path, err)
	}

	p, ok := profiles[name]
	if !ok || p == nil {
		names := make([]string, 0, len(profiles))
		for n := range profiles {
			names = append(names, n)
		}
		return nil, fmt.Errorf("profile %q not found in %s (have: %s)",
			name, path, strings.Join(names, ", "))
	}
	return p, nil
}

// ApplyProfile copies profile values into cfg, filling only fields the
// user has not already set.  Flags and env vars therefore win over the
// profile.
func ApplyProfile(cfg *Config, p *Profile) {
	if cfg.Host == "" {
		cfg.Host = p.Host
	}
	if cfg.Port == 0 && p.Port != 0 {
		cfg.Port = p.Port
	}
	if cfg.User == "" {
		cfg.User = p.User
	}
	if cfg.KeyPath == "" {
		cfg.KeyPath = p.KeyPath
	}
	if cfg.KeyPassphrase == "" {
		cfg.KeyPassphrase = p.KeyPassphrase
	}
	if !cfg.StrictHostKey && p.StrictHostKey {
		cfg.StrictHostKey = true
	}
	if cfg.KnownHostsPath == "" {
		cfg.KnownHostsPath = p.KnownHosts
	}
	if cfg.Table == "" {
		cfg.Table = p.Table
	}
	if cfg.Timeout == 0 && p.TimeoutSec > 0 {
		cfg.Timeout = time.Duration(p.TimeoutSec) * time.Second
	}
}
