package sshexec

// sshtest_test.go - an in-process SSH server for exercising the real
// client path without a remote host.  It speaks just enough of the
// protocol for exec requests: password auth, one session channel per
// command, canned stdout/stderr, and an exit-status reply.

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"
	"net"
	"strconv"
	"testing"

	"golang.org/x/crypto/ssh"
)

const (
	testUser     = "op"
	testPassword = "secret"
)

// execResponse is what the test server replies to one exec request.
type execResponse struct {
	stdout string
	stderr string
	exit   int
	// hang keeps the channel open without replying, to exercise
	// caller-side cancellation.
	hang bool
}

// startSSHServer runs a minimal SSH server on a loopback port and
// returns its host and port.  handle is invoked once per exec request.
func startSSHServer(t *testing.T, handle func(cmd string) execResponse) (string, int) {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generating host key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("host key signer: %v", err)
	}

	cfg := &ssh.ServerConfig{
		PasswordCallback: func(meta ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if meta.User() == testUser && string(pass) == testPassword {
				return nil, nil
			}
			return nil, fmt.Errorf("access denied")
		},
	}
	cfg.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			nConn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveConn(nConn, cfg, handle)
		}
	}()

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, _ := strconv.Atoi(portStr)
	return host, port
}

func serveConn(nConn net.Conn, cfg *ssh.ServerConfig, handle func(cmd string) execResponse) {
	conn, chans, reqs, err := ssh.NewServerConn(nConn, cfg)
	if err != nil {
		nConn.Close()
		return
	}
	defer conn.Close()
	go ssh.DiscardRequests(reqs)

	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			newCh.Reject(ssh.UnknownChannelType, "unsupported") //nolint:errcheck
			continue
		}
		ch, chReqs, err := newCh.Accept()
		if err != nil {
			continue
		}
		go serveSession(ch, chReqs, handle)
	}
}

func serveSession(ch ssh.Channel, reqs <-chan *ssh.Request, handle func(cmd string) execResponse) {
	defer ch.Close()

	for req := range reqs {
		if req.Type != "exec" {
			req.Reply(false, nil) //nolint:errcheck
			continue
		}

		var payload struct{ Command string }
		if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
			req.Reply(false, nil) //nolint:errcheck
			return
		}
		req.Reply(true, nil) //nolint:errcheck

		resp := handle(payload.Command)
		if resp.hang {
			// Sit on the open channel until the client gives up.
			// io.Copy alone returns as soon as the client sends its
			// stdin EOF, so also wait for the channel teardown that
			// closes the request stream.
			io.Copy(io.Discard, ch) //nolint:errcheck
			for range reqs {
			}
			return
		}

		io.WriteString(ch, resp.stdout)          //nolint:errcheck
		io.WriteString(ch.Stderr(), resp.stderr) //nolint:errcheck

		status := struct{ Status uint32 }{uint32(resp.exit)}
		ch.SendRequest("exit-status", false, ssh.Marshal(&status)) //nolint:errcheck
		return
	}
}
