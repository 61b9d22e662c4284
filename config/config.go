// Package config defines the runtime configuration for iptadm and
// provides helpers for parsing target specifications and loading host
// profiles.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Config holds every tuneable for a single iptadm invocation.
type Config struct {
	// ── Target host ──────────────────────────────────────────────────
	TargetSpec string // raw user@host[:port] from -T
	Host       string
	Port       int
	User       string

	// ── Authentication ───────────────────────────────────────────────
	KeyPath        string
	KeyPassphrase  string // never a flag; env or profile only
	StrictHostKey  bool
	KnownHostsPath string

	// ── Operation ────────────────────────────────────────────────────
	Table   string // table for add/delete; empty means filter
	Session string // override the generated session key

	// ── Profiles ─────────────────────────────────────────────────────
	Profile      string // named entry in the profiles file
	ProfilesPath string

	// ── Output ───────────────────────────────────────────────────────
	Verbose   int
	ShowStats bool

	Timeout time.Duration
}

// ── Target-spec parser ───────────────────────────────────────────────

// targetRe matches [user@]host[:port].
var targetRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseTargetSpec extracts user, host, and port from a string such as
// "admin@fw.example.com:2222".  Port defaults to 22.
func ParseTargetSpec(spec string) (user, host string, port int, err error) {
	m := targetRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid target spec %q, expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid target port %q", m[3])
		}
	}
	if host == "" {
		return "", "", 0, fmt.Errorf("target host is required")
	}
	return user, host, port, nil
}

// ── Validation ───────────────────────────────────────────────────────

// knownTables mirrors the four tables the remote binary serves.  Kept
// here so validation does not need the parser package.
var knownTables = map[string]bool{
	"filter": true, "nat": true, "raw": true, "mangle": true,
}

// Validate checks that the configuration is complete enough to open a
// connection and run a command.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("target host is required (use -T user@host or --profile)")
	}
	if c.User == "" {
		return fmt.Errorf("target username is required (use -T user@host)")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range 1-65535", c.Port)
	}
	if c.Table != "" && !knownTables[c.Table] {
		return fmt.Errorf("unknown table %q (filter, nat, raw, mangle)", c.Table)
	}
	if c.KnownHostsPath != "" && !c.StrictHostKey {
		return fmt.Errorf("--known-hosts requires --strict-hostkey")
	}
	return nil
}
