package ftpsession

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/jlaffaye/ftp"
)

// Conn is the subset of an FTP control connection a Session drives.
type Conn interface {
	Login(user, password string) error
	ChangeDir(path string) error
	Stor(path string, r io.Reader) error
	NoOp() error
	Quit() error
}

// Dialer opens control connections.
type Dialer interface {
	Dial(ctx context.Context, addr string, timeout time.Duration) (Conn, error)
}

// FTPDialer dials real servers with github.com/jlaffaye/ftp.
type FTPDialer struct{}

// Dial opens a control connection bounded by timeout and ctx. Every read and
// write on the control and data connections must complete within timeout, so
// a server that stops answering mid-command surfaces as an error instead of
// a hang.
func (FTPDialer) Dial(ctx context.Context, addr string, timeout time.Duration) (Conn, error) {
	dialer := &net.Dialer{Timeout: timeout}
	conn, err := ftp.Dial(addr,
		ftp.DialWithTimeout(timeout),
		ftp.DialWithShutTimeout(timeout),
		ftp.DialWithContext(ctx),
		ftp.DialWithDialFunc(func(network, address string) (net.Conn, error) {
			c, err := dialer.DialContext(ctx, network, address)
			if err != nil {
				return nil, err
			}
			return &deadlineConn{Conn: c, timeout: timeout}, nil
		}),
	)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// deadlineConn arms a fresh deadline before each Read and Write.
type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	if c.timeout > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(p)
}

func (c *deadlineConn) Write(p []byte) (int, error) {
	if c.timeout > 0 {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(p)
}
