// Package sshexec manages authenticated remote-execution channels:
// one Conn per remote host, tracked by an opaque session key in a
// Registry, with commands executed one SSH exec session at a time.
package sshexec

import (
	"bytes"
	"context"
	"net"
	"sync"

	"golang.org/x/crypto/ssh"

	ncerr "iptadm/internal/errors"
	"iptadm/util"
)

// Result captures everything one executed command produced.  It is
// ephemeral; nothing here is persisted.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Conn is an authenticated remote-execution channel to one host.
// Each Exec call opens its own SSH session over the shared transport,
// so concurrent Execs on one Conn do not serialize each other and
// carry no ordering guarantee between their completions.
type Conn struct {
	host   string
	port   int
	client *ssh.Client
	logger *util.Logger
	mu     sync.RWMutex
	alive  bool
}

// dial establishes the TCP connection and SSH handshake.  The context
// bounds the TCP dial; the handshake is bounded by cfg.Timeout.
func dial(ctx context.Context, host string, port int, cfg *ssh.ClientConfig, logger *util.Logger) (*Conn, error) {
	addr := util.FormatAddr(host, port)
	logger.Debug("dialing %s as %s", addr, cfg.User)

	var dialer net.Dialer
	tcpConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, ncerr.WrapConnect("dial", host, port, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(tcpConn, addr, cfg)
	if err != nil {
		tcpConn.Close()
		return nil, ncerr.WrapConnect("handshake", host, port, err)
	}

	c := &Conn{
		host:   host,
		port:   port,
		client: ssh.NewClient(sshConn, chans, reqs),
		logger: logger,
		alive:  true,
	}
	go c.monitor()

	return c, nil
}

// Exec runs one command over the connection and waits for it to
// finish.  Stdout and stderr are buffered in full.  A zero exit status
// returns a Result and nil error; a non-zero status returns the Result
// alongside an *errors.ExitError.  Cancelling ctx closes the in-flight
// session, which terminates the remote process group on conforming
// servers.
func (c *Conn) Exec(ctx context.Context, command string) (*Result, error) {
	c.mu.RLock()
	client := c.client
	alive := c.alive
	c.mu.RUnlock()

	if !alive || client == nil {
		return nil, ncerr.ErrConnClosed
	}

	sess, err := client.NewSession()
	if err != nil {
		return nil, ncerr.WrapConnect("channel", c.host, c.port, err)
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	c.logger.Debug("exec: %s", command)

	done := make(chan error, 1)
	go func() { done <- sess.Run(command) }()

	select {
	case <-ctx.Done():
		sess.Close()
		<-done
		return nil, ctx.Err()
	case err = <-done:
	}

	res := &Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}

	var exitErr *ssh.ExitError
	if ncerr.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitStatus()
		return res, ncerr.Exit(command, res.ExitCode, res.Stderr)
	}
	// Transport died or the remote never reported a status.
	return nil, ncerr.WrapConnect("exec", c.host, c.port, err)
}

// Close shuts down the underlying SSH transport.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.alive = false
	if c.client != nil {
		err := c.client.Close()
		c.client = nil
		return err
	}
	return nil
}

// IsAlive reports whether the transport is still connected.
func (c *Conn) IsAlive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.alive
}

// monitor blocks until the SSH transport closes and flips the alive
// flag, so a dropped network path is visible before the next Exec.
func (c *Conn) monitor() {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()
	if client == nil {
		return
	}

	err := client.Wait()

	c.mu.Lock()
	c.alive = false
	c.mu.Unlock()

	if err != nil {
		c.logger.Debug("connection to %s closed: %v", util.FormatAddr(c.host, c.port), err)
	} else {
		c.logger.Debug("connection to %s closed", util.FormatAddr(c.host, c.port))
	}
}
