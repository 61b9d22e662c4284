package sshexec

import (
	"context"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	ncerr "iptadm/internal/errors"
	"iptadm/internal/metrics"
	"iptadm/internal/retry"
	"iptadm/util"
)

// Credentials describe how to reach and authenticate one remote host.
type Credentials struct {
	Host string
	Port int // 0 means 22
	User string

	// KeyPath names a private-key file; the material is read before
	// any network attempt.  KeyPassphrase decrypts it without a
	// prompt.  Password enables non-interactive password auth.  With
	// neither set, the ssh-agent and default key files are tried.
	KeyPath       string
	KeyPassphrase string
	Password      string

	StrictHostKey bool
	KnownHosts    string // custom known_hosts path, with StrictHostKey

	// Timeout bounds the SSH handshake (default 30s).
	Timeout time.Duration
}

// Registry owns the lifecycle of per-session connections.  Session
// keys are caller-chosen opaque strings; at most one live Conn exists
// per key.  All methods are safe for concurrent use, but operations on
// one session are not serialized against each other; callers that
// need delete-then-refresh semantics must await each step.
type Registry struct {
	mu      sync.RWMutex
	conns   map[string]*Conn
	logger  *util.Logger
	metrics *metrics.Collector
	backoff *retry.Backoff
}

// NewRegistry returns an empty registry.  The collector may be nil.
func NewRegistry(logger *util.Logger, collector *metrics.Collector) *Registry {
	return &Registry{
		conns:   make(map[string]*Conn),
		logger:  logger,
		metrics: collector,
		backoff: retry.DialBackoff(),
	}
}

// Open establishes a connection for session.  Key material is read
// first: an unreadable key file returns *errors.KeyFileError without
// touching the network.  Transient dial failures are retried on a
// short schedule; handshake and auth failures are returned verbatim as
// *errors.ConnectError.  If the session already had a connection it is
// closed and replaced atomically, so the old channel never leaks.
func (r *Registry) Open(ctx context.Context, session string, creds Credentials) error {
	if creds.Port == 0 {
		creds.Port = 22
	}
	if creds.Timeout == 0 {
		creds.Timeout = 30 * time.Second
	}

	authMethods, err := buildAuthMethods(&creds)
	if err != nil {
		r.metrics.ConnectFailed()
		return err
	}

	hkCallback, err := hostKeyCallback(&creds)
	if err != nil {
		r.metrics.ConnectFailed()
		return err
	}

	cfg := &ssh.ClientConfig{
		User:            creds.User,
		Auth:            authMethods,
		HostKeyCallback: hkCallback,
		Timeout:         creds.Timeout,
	}

	var conn *Conn
	err = r.backoff.Do(ctx, func(attempt int) error {
		if attempt > 1 {
			r.logger.Verbose("session %s: dial attempt %d to %s",
				session, attempt, util.FormatAddr(creds.Host, creds.Port))
		}
		c, dialErr := dial(ctx, creds.Host, creds.Port, cfg, r.logger.With("session "+session))
		if dialErr != nil {
			if !ncerr.IsRetryable(dialErr) {
				return retry.Permanent(dialErr)
			}
			return dialErr
		}
		conn = c
		return nil
	})
	if err != nil {
		r.metrics.ConnectFailed()
		r.metrics.RecordError(err.Error())
		return err
	}

	r.mu.Lock()
	if old, ok := r.conns[session]; ok {
		old.Close()
		r.metrics.SessionClosed()
	}
	r.conns[session] = conn
	r.mu.Unlock()

	r.metrics.SessionOpened()
	r.logger.Info("session %s: connected to %s@%s",
		session, creds.User, util.FormatAddr(creds.Host, creds.Port))
	return nil
}

// Close tears down the session's connection.  Closing a session that
// was never opened is a no-op.
func (r *Registry) Close(session string) {
	r.mu.Lock()
	conn, ok := r.conns[session]
	if ok {
		delete(r.conns, session)
	}
	r.mu.Unlock()

	if ok {
		conn.Close()
		r.metrics.SessionClosed()
		r.logger.Info("session %s: disconnected", session)
	}
}

// CloseAll tears down every live connection.  Used at shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[string]*Conn)
	r.mu.Unlock()

	for session, conn := range conns {
		conn.Close()
		r.metrics.SessionClosed()
		r.logger.Debug("session %s: closed at shutdown", session)
	}
}

// IsOpen reports whether session has a registered connection.
func (r *Registry) IsOpen(session string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[session]
	return ok
}

// Get returns the session's connection, or ErrNoSession.
func (r *Registry) Get(session string) (*Conn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[session]
	if !ok {
		return nil, ncerr.ErrNoSession
	}
	return conn, nil
}

// Run executes one command over the session's connection and returns
// its standard output.  A session with no connection fails with
// ErrNoSession; a non-zero remote exit fails with *errors.ExitError.
func (r *Registry) Run(ctx context.Context, session, command string) (string, error) {
	conn, err := r.Get(session)
	if err != nil {
		return "", err
	}

	res, err := conn.Exec(ctx, command)
	if err != nil {
		r.metrics.CommandFailed()
		r.metrics.RecordError(err.Error())
		return "", err
	}

	r.metrics.CommandRun(len(res.Stdout))
	return res.Stdout, nil
}
