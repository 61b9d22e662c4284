package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, profile parsing, and environment variable loading.

const (
	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultConnTimeout bounds the TCP dial plus SSH handshake.
	DefaultConnTimeout = 30 * time.Second

	// DefaultTable is the table assumed when none is named.
	DefaultTable = "filter"

	// profilesDirName is the subdirectory of the user config dir that
	// holds the profiles file.
	profilesDirName = "iptadm"

	// profilesFileName is the host profiles file name.
	profilesFileName = "profiles.yaml"
)
