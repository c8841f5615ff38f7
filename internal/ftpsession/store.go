package ftpsession

import (
	"context"
	"errors"
	"io"
	"strings"

	"ferry/internal/failure"
)

var errStoreAborted = errors.New("store aborted")

// StoreWriter is the data stream of one STOR. Write returns once the
// transport has consumed the whole chunk. Close sends end of file and waits
// for the server's final reply. Abort tears the stream down.
type StoreWriter struct {
	session *Session
	ctx     context.Context
	name    string
	pipe    *io.PipeWriter
	done    chan struct{}
	err     error
	written int64
	closed  bool
}

// BeginStore opens the data stream for name on a Ready session.
func (s *Session) BeginStore(ctx context.Context, name string) (*StoreWriter, error) {
	if s.state != Ready || s.conn == nil {
		return nil, s.invalid("begin store")
	}
	if s.store != nil {
		return nil, s.invalid("begin store while another store is open")
	}
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, failure.Wrap(failure.KindCanceled, "stor "+name, "canceled", err)
	}

	reader, writer := io.Pipe()
	w := &StoreWriter{
		session: s,
		ctx:     ctx,
		name:    name,
		pipe:    writer,
		done:    make(chan struct{}),
	}
	conn := s.conn
	go func() {
		defer close(w.done)
		err := conn.Stor(name, reader)
		w.err = err
		if err != nil {
			_ = reader.CloseWithError(err)
			return
		}
		_ = reader.Close()
	}()
	s.store = w
	return w, nil
}

// ValidateName rejects destination names the server would treat as paths.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return failure.New(failure.KindNaming, "validate name", "destination name is empty")
	}
	if strings.ContainsAny(name, `/\`) {
		return failure.New(failure.KindNaming, "validate name", "destination name "+name+" contains a path separator")
	}
	return nil
}

// Write sends one chunk. On failure the store is finished and the error is
// classified with the bytes accepted so far.
func (w *StoreWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, w.fail(io.ErrClosedPipe)
	}
	n, err := w.pipe.Write(p)
	w.written += int64(n)
	if err != nil {
		_ = w.pipe.CloseWithError(errStoreAborted)
		<-w.done
		if w.err != nil {
			err = w.err
		}
		return n, w.fail(err)
	}
	return n, nil
}

// Written returns the bytes consumed by the transport.
func (w *StoreWriter) Written() int64 { return w.written }

// Close signals end of data and waits for the server's final reply.
func (w *StoreWriter) Close() error {
	if w.closed {
		return nil
	}
	_ = w.pipe.Close()
	<-w.done
	if w.err != nil {
		return w.fail(w.err)
	}
	w.finish()
	return nil
}

// Abort tears the data stream down and leaves the session in Error, since
// the control channel may still carry an unread reply.
func (w *StoreWriter) Abort() {
	if w.closed {
		return
	}
	_ = w.pipe.CloseWithError(errStoreAborted)
	<-w.done
	w.finish()
	w.session.state = Error
}

func (w *StoreWriter) fail(err error) error {
	if !w.closed {
		w.finish()
		w.session.state = Error
	}
	classified := classify(w.ctx, stepStore, "stor "+w.name, err)
	return failure.WithBytes(classified, w.written)
}

func (w *StoreWriter) finish() {
	w.closed = true
	if w.session.store == w {
		w.session.store = nil
	}
}
