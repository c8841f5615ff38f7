package ftpsession_test

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"ferry/internal/failure"
	"ferry/internal/ftpsession"
	"ferry/internal/logging"
	"ferry/internal/testsupport"
)

// stallingServer greets each client and then reads commands without ever
// replying.
func stallingServer(t *testing.T) *net.TCPAddr {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				if _, err := c.Write([]byte("220 ready\r\n")); err != nil {
					return
				}
				scanner := bufio.NewScanner(c)
				for scanner.Scan() {
				}
			}(conn)
		}
	}()
	return ln.Addr().(*net.TCPAddr)
}

func TestFTPDialerBoundsStalledReplies(t *testing.T) {
	addr := stallingServer(t)

	conn, err := ftpsession.FTPDialer{}.Dial(context.Background(), addr.String(), 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Quit() })

	done := make(chan error, 1)
	go func() { done <- conn.Login("user", "secret") }()
	select {
	case err := <-done:
		var netErr net.Error
		if !errors.As(err, &netErr) || !netErr.Timeout() {
			t.Fatalf("Login err = %v, want a timeout", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Login did not return after the server stopped replying")
	}
}

func TestSessionOpenAgainstStalledServerIsTransient(t *testing.T) {
	addr := stallingServer(t)
	cfg := ftpsession.NewConfig(testsupport.NewConfig(t))
	cfg.Host = addr.IP.String()
	cfg.Port = addr.Port
	cfg.Timeout = 100 * time.Millisecond
	session := ftpsession.New(cfg, ftpsession.FTPDialer{}, logging.NewNop())
	t.Cleanup(func() { session.Disconnect() })

	start := time.Now()
	err := session.Open(context.Background())
	if !errors.Is(err, failure.ErrConnection) || failure.ClassOf(err) != failure.ClassTransient {
		t.Fatalf("Open err = %v, want transient connection failure", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("Open took %s against %s", elapsed, net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)))
	}
}
