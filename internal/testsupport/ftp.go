package testsupport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/textproto"
	"path"
	"sync"
	"time"

	"ferry/internal/ftpsession"
)

// Reply builds the error an FTP client returns for a server reply code.
func Reply(code int, msg string) error {
	return &textproto.Error{Code: code, Msg: msg}
}

// StoreFault scripts how one STOR call misbehaves. Reject is returned before
// any data is read. Otherwise the server reads AfterBytes bytes and then
// fails with Err.
type StoreFault struct {
	Reject     error
	AfterBytes int64
	Err        error
}

// FakeFTP is an in-memory FTP server reachable through its Dial method.
// Faults are consumed in order: one DialFaults entry per dial and one
// StoreFaults entry per STOR. A nil entry means the call succeeds.
type FakeFTP struct {
	mu sync.Mutex

	DialFaults  []error
	LoginErr    error
	StoreFaults []*StoreFault
	// Directories lists the remote directories CWD accepts. Nil accepts any.
	Directories []string

	dials       int
	connections []*FakeConn
	files       map[string][]byte
	stores      []string
}

// NewFakeFTP returns an empty fake server.
func NewFakeFTP() *FakeFTP {
	return &FakeFTP{files: make(map[string][]byte)}
}

// Dial implements ftpsession.Dialer.
func (f *FakeFTP) Dial(ctx context.Context, _ string, _ time.Duration) (ftpsession.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dials++
	if len(f.DialFaults) > 0 {
		fault := f.DialFaults[0]
		f.DialFaults = f.DialFaults[1:]
		if fault != nil {
			return nil, fault
		}
	}
	conn := &FakeConn{server: f, dir: "/"}
	f.connections = append(f.connections, conn)
	return conn, nil
}

// Dials returns how many times Dial was called.
func (f *FakeFTP) Dials() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dials
}

// Connections returns every connection opened so far.
func (f *FakeFTP) Connections() []*FakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*FakeConn, len(f.connections))
	copy(out, f.connections)
	return out
}

// File returns the bytes stored at the given absolute remote path.
func (f *FakeFTP) File(remotePath string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[remotePath]
	return data, ok
}

// Stores returns the remote paths of STOR calls in call order, including
// ones that failed.
func (f *FakeFTP) Stores() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.stores))
	copy(out, f.stores)
	return out
}

func (f *FakeFTP) nextStoreFault() *StoreFault {
	if len(f.StoreFaults) == 0 {
		return nil
	}
	fault := f.StoreFaults[0]
	f.StoreFaults = f.StoreFaults[1:]
	return fault
}

func (f *FakeFTP) directoryExists(dir string) bool {
	if f.Directories == nil {
		return true
	}
	for _, candidate := range f.Directories {
		if path.Clean(candidate) == path.Clean(dir) {
			return true
		}
	}
	return false
}

// FakeConn is one control connection to a FakeFTP.
type FakeConn struct {
	server   *FakeFTP
	loggedIn bool
	dir      string
	quit     bool
	noops    int
}

// Dir returns the working directory of the connection.
func (c *FakeConn) Dir() string {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()
	return c.dir
}

// Quitted reports whether QUIT was sent.
func (c *FakeConn) Quitted() bool {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()
	return c.quit
}

// Noops returns how many NOOP commands were sent.
func (c *FakeConn) Noops() int {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()
	return c.noops
}

func (c *FakeConn) Login(_, _ string) error {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()
	if c.quit {
		return io.EOF
	}
	if c.server.LoginErr != nil {
		return c.server.LoginErr
	}
	c.loggedIn = true
	return nil
}

func (c *FakeConn) ChangeDir(dir string) error {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()
	if !c.loggedIn {
		return Reply(530, "Please login with USER and PASS.")
	}
	target := dir
	if !path.IsAbs(target) {
		target = path.Join(c.dir, target)
	}
	if !c.server.directoryExists(target) {
		return Reply(550, "Failed to change directory.")
	}
	c.dir = path.Clean(target)
	return nil
}

func (c *FakeConn) Stor(name string, r io.Reader) error {
	c.server.mu.Lock()
	if !c.loggedIn {
		c.server.mu.Unlock()
		return Reply(530, "Please login with USER and PASS.")
	}
	remotePath := path.Join(c.dir, name)
	c.server.stores = append(c.server.stores, remotePath)
	fault := c.server.nextStoreFault()
	c.server.mu.Unlock()

	if fault != nil && fault.Reject != nil {
		return fault.Reject
	}

	var buf bytes.Buffer
	if fault != nil {
		if _, err := io.CopyN(&buf, r, fault.AfterBytes); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return fault.Err
	}
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}

	c.server.mu.Lock()
	c.server.files[remotePath] = buf.Bytes()
	c.server.mu.Unlock()
	return nil
}

func (c *FakeConn) NoOp() error {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()
	if c.quit {
		return io.EOF
	}
	c.noops++
	return nil
}

func (c *FakeConn) Quit() error {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()
	if c.quit {
		return io.EOF
	}
	c.quit = true
	return nil
}
