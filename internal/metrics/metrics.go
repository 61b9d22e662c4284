// Package metrics provides lightweight counters for tracking the
// runtime statistics of an iptadm process: session lifecycle, remote
// command outcomes, and parser degradation.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics for an iptadm process.
// A nil Collector is safe to use — all methods become no-ops.
type Collector struct {
	sessionsActive atomic.Int64
	sessionsTotal  atomic.Int64
	connectsFailed atomic.Int64
	commandsTotal  atomic.Int64
	commandsFailed atomic.Int64
	stdoutBytes    atomic.Int64
	parserDrops    atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Session metrics ──────────────────────────────────────────────────

// SessionOpened increments both the active and total counters.
func (c *Collector) SessionOpened() {
	if c == nil {
		return
	}
	c.sessionsActive.Add(1)
	c.sessionsTotal.Add(1)
}

// SessionClosed decrements the active session counter.
func (c *Collector) SessionClosed() {
	if c == nil {
		return
	}
	c.sessionsActive.Add(-1)
}

// ConnectFailed records an open attempt that never produced a session.
func (c *Collector) ConnectFailed() {
	if c == nil {
		return
	}
	c.connectsFailed.Add(1)
}

// ActiveSessions returns the current number of open sessions.
func (c *Collector) ActiveSessions() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsActive.Load()
}

// ── Command metrics ──────────────────────────────────────────────────

// CommandRun records one executed remote command and the stdout bytes
// it produced.
func (c *Collector) CommandRun(stdoutLen int) {
	if c == nil {
		return
	}
	c.commandsTotal.Add(1)
	c.stdoutBytes.Add(int64(stdoutLen))
}

// CommandFailed records a command that could not run or exited non-zero.
func (c *Collector) CommandFailed() {
	if c == nil {
		return
	}
	c.commandsTotal.Add(1)
	c.commandsFailed.Add(1)
}

// CommandCount returns the lifetime command count.
func (c *Collector) CommandCount() int64 {
	if c == nil {
		return 0
	}
	return c.commandsTotal.Load()
}

// ── Parser metrics ───────────────────────────────────────────────────

// ParserDropped records n input lines a parse pass discarded.  Rule
// text the remote host accepted but we could not interpret shows up
// here, nowhere else.
func (c *Collector) ParserDropped(n int) {
	if c == nil || n == 0 {
		return
	}
	c.parserDrops.Add(int64(n))
}

// ParserDrops returns the lifetime dropped-line count.
func (c *Collector) ParserDrops() int64 {
	if c == nil {
		return 0
	}
	return c.parserDrops.Load()
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError stores the message of the most recent failure.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime           string `json:"uptime"`
	SessionsActive   int64  `json:"sessions_active"`
	SessionsTotal    int64  `json:"sessions_total"`
	ConnectsFailed   int64  `json:"connects_failed"`
	CommandsTotal    int64  `json:"commands_total"`
	CommandsFailed   int64  `json:"commands_failed"`
	StdoutBytes      int64  `json:"stdout_bytes"`
	ParserDrops      int64  `json:"parser_drops"`
	LastError        string `json:"last_error,omitempty"`
	LastErrorMessage string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:         time.Since(c.startTime).Truncate(time.Second).String(),
		SessionsActive: c.sessionsActive.Load(),
		SessionsTotal:  c.sessionsTotal.Load(),
		ConnectsFailed: c.connectsFailed.Load(),
		CommandsTotal:  c.commandsTotal.Load(),
		CommandsFailed: c.commandsFailed.Load(),
		StdoutBytes:    c.stdoutBytes.Load(),
		ParserDrops:    c.parserDrops.Load(),
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
