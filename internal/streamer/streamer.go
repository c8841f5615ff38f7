package streamer

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"ferry/internal/failure"
	"ferry/internal/ftpsession"
	"ferry/internal/logging"
)

// Progress receives the cumulative bytes accepted by the transport.
type Progress func(sent int64)

// Store is the write side of one STOR data stream.
type Store interface {
	io.Writer
	Close() error
	Abort()
}

// Streamer moves bytes from a source to a store in fixed-size chunks.
type Streamer struct {
	chunkSize int
	logger    *slog.Logger
}

// New constructs a streamer. chunkSize must be positive; callers validate it
// through ftpsession.Config.
func New(chunkSize int, logger *slog.Logger) *Streamer {
	return &Streamer{
		chunkSize: chunkSize,
		logger:    logging.NewComponentLogger(logger, "streamer"),
	}
}

// Send opens a store for name on a Ready session and streams src into it.
func (s *Streamer) Send(ctx context.Context, session *ftpsession.Session, name string, src io.Reader, progress Progress) (int64, error) {
	store, err := session.BeginStore(ctx, name)
	if err != nil {
		return 0, err
	}
	return s.Copy(ctx, store, src, progress)
}

// Copy streams src into dst and closes it, waiting for the final reply.
func (s *Streamer) Copy(ctx context.Context, dst Store, src io.Reader, progress Progress) (int64, error) {
	if s.chunkSize <= 0 {
		dst.Abort()
		return 0, failure.Configuration("chunk size must be positive (got %d)", s.chunkSize)
	}
	logger := logging.WithContext(ctx, s.logger)
	buf := make([]byte, s.chunkSize)
	var sent int64

	for {
		if err := ctx.Err(); err != nil {
			dst.Abort()
			return sent, failure.WithBytes(failure.Wrap(failure.KindCanceled, "stream", "canceled between chunks", err), sent)
		}

		n, readErr := io.ReadFull(src, buf)
		if n > 0 {
			written, err := dst.Write(buf[:n])
			if err != nil {
				dst.Abort()
				return sent + int64(written), failure.WithBytes(writeError(err), sent+int64(written))
			}
			sent += int64(n)
			if progress != nil {
				progress(sent)
			}
		}

		switch {
		case readErr == nil:
			continue
		case errors.Is(readErr, io.EOF), errors.Is(readErr, io.ErrUnexpectedEOF):
			if err := dst.Close(); err != nil {
				return sent, failure.WithBytes(writeError(err), sent)
			}
			logger.Debug("store complete", logging.Int64("total_bytes", sent))
			return sent, nil
		default:
			dst.Abort()
			return sent, failure.WithBytes(failure.Wrap(failure.KindTransfer, "read source", "", readErr), sent)
		}
	}
}

// writeError keeps a kind already decided by the session and tags anything
// else as a transfer failure.
func writeError(err error) error {
	var fe *failure.Error
	if errors.As(err, &fe) {
		return err
	}
	return failure.Wrap(failure.KindTransfer, "write chunk", "", err)
}
