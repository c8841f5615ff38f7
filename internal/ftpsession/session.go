package ftpsession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"ferry/internal/failure"
	"ferry/internal/logging"
)

// ErrInvalidState is returned when an operation is called out of order.
var ErrInvalidState = errors.New("invalid session state")

// Session is one FTP control connection and its lifecycle. It is not safe
// for concurrent use; a run owns exactly one.
type Session struct {
	cfg       Config
	dialer    Dialer
	logger    *slog.Logger
	conn      Conn
	state     State
	directory string
	store     *StoreWriter
}

// New constructs a disconnected session. A nil dialer selects FTPDialer.
func New(cfg Config, dialer Dialer, logger *slog.Logger) *Session {
	if dialer == nil {
		dialer = FTPDialer{}
	}
	return &Session{
		cfg:    cfg,
		dialer: dialer,
		logger: logging.NewComponentLogger(logger, "ftpsession"),
		state:  Disconnected,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// Directory returns the remote directory selected on the current connection.
// It is empty until SelectDirectory succeeds or when no directory is configured.
func (s *Session) Directory() string { return s.directory }

// Config returns the session's configuration.
func (s *Session) Config() Config { return s.cfg }

// Connect opens the control connection.
func (s *Session) Connect(ctx context.Context) error {
	if !s.state.Idle() {
		return s.invalid("connect")
	}
	if err := ctx.Err(); err != nil {
		return failure.Wrap(failure.KindCanceled, "connect", "canceled", err)
	}
	s.state = Connecting
	s.directory = ""
	addr := s.cfg.Address()
	logging.WithContext(ctx, s.logger).Debug("dialing ftp server",
		logging.String("address", addr),
		logging.Duration("timeout", s.cfg.Timeout),
	)
	conn, err := s.dialer.Dial(ctx, addr, s.cfg.Timeout)
	if err != nil {
		s.state = Error
		return classify(ctx, stepConnect, "connect "+addr, err)
	}
	s.conn = conn
	return nil
}

// Authenticate submits the configured credentials.
func (s *Session) Authenticate(ctx context.Context) error {
	if s.state != Connecting || s.conn == nil {
		return s.invalid("authenticate")
	}
	if err := ctx.Err(); err != nil {
		return failure.Wrap(failure.KindCanceled, "authenticate", "canceled", err)
	}
	s.state = Authenticating
	if err := s.conn.Login(s.cfg.Username, s.cfg.Password); err != nil {
		s.state = Error
		return classify(ctx, stepLogin, "login as "+s.cfg.Username, err)
	}
	return nil
}

// SelectDirectory changes to the configured remote directory. An empty
// directory is a no-op that still reaches Ready.
func (s *Session) SelectDirectory(ctx context.Context) error {
	if s.state != Authenticating || s.conn == nil {
		return s.invalid("select directory")
	}
	if err := ctx.Err(); err != nil {
		return failure.Wrap(failure.KindCanceled, "select directory", "canceled", err)
	}
	s.state = SelectingDirectory
	dir := strings.TrimSpace(s.cfg.RemoteDir)
	if dir != "" {
		if err := s.conn.ChangeDir(dir); err != nil {
			s.state = Error
			return classify(ctx, stepCWD, "cwd "+dir, err)
		}
	}
	s.directory = dir
	s.state = Ready
	logging.WithContext(ctx, s.logger).Info("ftp session ready",
		logging.String("address", s.cfg.Address()),
		logging.String("remote_dir", displayDir(dir)),
		logging.String(logging.FieldEventType, "session_ready"),
	)
	return nil
}

// Open runs Connect, Authenticate, and SelectDirectory in order.
func (s *Session) Open(ctx context.Context) error {
	if err := s.Connect(ctx); err != nil {
		return err
	}
	if err := s.Authenticate(ctx); err != nil {
		return err
	}
	return s.SelectDirectory(ctx)
}

// Disconnect shuts the control connection down. Shutdown errors are logged,
// never returned. The session always ends Closed.
func (s *Session) Disconnect() {
	if s.store != nil {
		s.store.Abort()
	}
	if s.conn != nil {
		if err := s.conn.Quit(); err != nil {
			s.logger.Debug("ftp quit failed; connection dropped",
				logging.Error(err),
				logging.String(logging.FieldEventType, "quit_failed"),
			)
		}
		s.conn = nil
	}
	s.directory = ""
	s.state = Closed
}

// Reconnect drops the current connection and opens a fresh one, restoring
// the configured remote directory.
func (s *Session) Reconnect(ctx context.Context) error {
	logging.WithContext(ctx, s.logger).Info("reconnecting to ftp server",
		logging.String("previous_state", s.state.String()),
		logging.String(logging.FieldEventType, "reconnect"),
	)
	s.Disconnect()
	return s.Open(ctx)
}

// Ping sends NOOP on a Ready session.
func (s *Session) Ping(ctx context.Context) error {
	if s.state != Ready || s.conn == nil {
		return s.invalid("ping")
	}
	if err := s.conn.NoOp(); err != nil {
		s.state = Error
		return classify(ctx, stepNoop, "noop", err)
	}
	return nil
}

func (s *Session) invalid(op string) error {
	return fmt.Errorf("%s from %s: %w", op, s.state, ErrInvalidState)
}

func displayDir(dir string) string {
	if dir == "" {
		return "(login directory)"
	}
	return dir
}
