package sshexec

import (
	"context"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"

	ncerr "iptadm/internal/errors"
	"iptadm/util"
)

func testClientConfig() *ssh.ClientConfig {
	return &ssh.ClientConfig{
		User:            testUser,
		Auth:            []ssh.AuthMethod{ssh.Password(testPassword)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         5 * time.Second,
	}
}

func dialTestServer(t *testing.T, handle func(cmd string) execResponse) *Conn {
	t.Helper()
	host, port := startSSHServer(t, handle)

	conn, err := dial(context.Background(), host, port, testClientConfig(), util.NewLogger(0))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestConnExec(t *testing.T) {
	var gotCmd string
	conn := dialTestServer(t, func(cmd string) execResponse {
		gotCmd = cmd
		return execResponse{stdout: "Chain INPUT (policy ACCEPT)\n"}
	})

	res, err := conn.Exec(context.Background(), "sudo iptables -t filter -L -n -v --line-numbers")
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if gotCmd != "sudo iptables -t filter -L -n -v --line-numbers" {
		t.Errorf("server saw command %q", gotCmd)
	}
	if res.Stdout != "Chain INPUT (policy ACCEPT)\n" {
		t.Errorf("stdout = %q", res.Stdout)
	}
	if res.ExitCode != 0 {
		t.Errorf("exit = %d, want 0", res.ExitCode)
	}
}

func TestConnExecNonZeroExit(t *testing.T) {
	conn := dialTestServer(t, func(string) execResponse {
		return execResponse{stderr: "iptables: Bad rule.\n", exit: 2}
	})

	res, err := conn.Exec(context.Background(), "sudo iptables -D INPUT 99")
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}

	var exitErr *ncerr.ExitError
	if !ncerr.As(err, &exitErr) {
		t.Fatalf("error type = %T, want *ExitError", err)
	}
	if exitErr.Code != 2 {
		t.Errorf("code = %d, want 2", exitErr.Code)
	}
	if exitErr.Stderr != "iptables: Bad rule.\n" {
		t.Errorf("stderr = %q", exitErr.Stderr)
	}
	if res == nil || res.ExitCode != 2 {
		t.Errorf("result = %+v", res)
	}
}

func TestConnExecContextCancel(t *testing.T) {
	conn := dialTestServer(t, func(string) execResponse {
		return execResponse{hang: true}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := conn.Exec(ctx, "sleep 3600")
	if err == nil {
		t.Fatal("expected error after context deadline")
	}
	if !ncerr.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Exec blocked %v after cancellation", elapsed)
	}
}

func TestConnExecAfterClose(t *testing.T) {
	conn := dialTestServer(t, func(string) execResponse {
		return execResponse{stdout: "ok"}
	})
	conn.Close()

	if conn.IsAlive() {
		t.Error("closed connection reports alive")
	}
	if _, err := conn.Exec(context.Background(), "true"); !ncerr.Is(err, ncerr.ErrConnClosed) {
		t.Errorf("error = %v, want ErrConnClosed", err)
	}
}

func TestConnConcurrentExec(t *testing.T) {
	conn := dialTestServer(t, func(cmd string) execResponse {
		return execResponse{stdout: cmd}
	})

	// Two concurrent commands run as independent channels over the
	// same transport; each must see its own output.
	results := make(chan string, 2)
	for _, cmd := range []string{"first", "second"} {
		go func(cmd string) {
			res, err := conn.Exec(context.Background(), cmd)
			if err != nil {
				results <- "error: " + err.Error()
				return
			}
			results <- res.Stdout
		}(cmd)
	}

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case r := <-results:
			got[r] = true
		case <-time.After(5 * time.Second):
			t.Fatal("concurrent Exec timed out")
		}
	}
	if !got["first"] || !got["second"] {
		t.Errorf("results = %v", got)
	}
}

func TestDialRefused(t *testing.T) {
	// Grab a port nothing is listening on.
	host, port := startSSHServer(t, func(string) execResponse { return execResponse{} })
	conn, err := dial(context.Background(), host, port+1, testClientConfig(), util.NewLogger(0))
	if err == nil {
		conn.Close()
		t.Skip("adjacent port happened to be in use")
	}

	var connErr *ncerr.ConnectError
	if !ncerr.As(err, &connErr) {
		t.Fatalf("error type = %T, want *ConnectError", err)
	}
	if connErr.Op != "dial" {
		t.Errorf("op = %q, want dial", connErr.Op)
	}
}
