package retry_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"ferry/internal/failure"
	"ferry/internal/ftpsession"
	"ferry/internal/logging"
	"ferry/internal/retry"
	"ferry/internal/streamer"
	"ferry/internal/testsupport"
)

type harness struct {
	fake       *testsupport.FakeFTP
	session    *ftpsession.Session
	controller *retry.Controller
}

func newHarness(t *testing.T, fake *testsupport.FakeFTP, cfgOpts []testsupport.ConfigOption, opts ...retry.Option) *harness {
	t.Helper()
	cfg := ftpsession.NewConfig(testsupport.NewConfig(t, cfgOpts...))
	session := ftpsession.New(cfg, fake, logging.NewNop())
	controller := retry.New(session, streamer.New(cfg.ChunkSize, logging.NewNop()), cfg, logging.NewNop(), opts...)
	return &harness{fake: fake, session: session, controller: controller}
}

func (h *harness) reconnects() int {
	if dials := h.fake.Dials(); dials > 0 {
		return dials - 1
	}
	return 0
}

func repeatFault(n int, fault testsupport.StoreFault) []*testsupport.StoreFault {
	out := make([]*testsupport.StoreFault, n)
	for i := range out {
		f := fault
		out[i] = &f
	}
	return out
}

func TestUploadSucceedsFirstAttempt(t *testing.T) {
	h := newHarness(t, testsupport.NewFakeFTP(), []testsupport.ConfigOption{testsupport.WithChunkSize(8)})
	data := testsupport.Pattern(20)

	result := h.controller.Upload(context.Background(), "a.bin", bytes.NewReader(data), nil)
	if result.Status != retry.Succeeded || result.Attempts != 1 || result.Bytes != 20 {
		t.Fatalf("result = %+v", result)
	}
	if result.Err != nil || result.Kind != "" {
		t.Fatalf("unexpected error on success: %v (%q)", result.Err, result.Kind)
	}
}

func TestConnectionFailuresThenSuccess(t *testing.T) {
	fake := testsupport.NewFakeFTP()
	fake.StoreFaults = repeatFault(2, testsupport.StoreFault{Reject: io.EOF})
	h := newHarness(t, fake, []testsupport.ConfigOption{testsupport.WithMaxAttempts(3)})

	result := h.controller.Upload(context.Background(), "a.bin", bytes.NewReader(testsupport.Pattern(10)), nil)
	if result.Status != retry.Succeeded || result.Attempts != 3 {
		t.Fatalf("result = %+v, want succeeded after 3 attempts", result)
	}
	if got := h.reconnects(); got != 2 {
		t.Fatalf("reconnects = %d, want 2", got)
	}
	if data, ok := fake.File("/a.bin"); !ok || len(data) != 10 {
		t.Fatalf("stored %d bytes (ok=%v), want 10", len(data), ok)
	}
}

func TestAuthenticationFailureIsNotRetried(t *testing.T) {
	fake := testsupport.NewFakeFTP()
	fake.LoginErr = testsupport.Reply(530, "Login incorrect.")
	h := newHarness(t, fake, []testsupport.ConfigOption{testsupport.WithMaxAttempts(3)})

	result := h.controller.Upload(context.Background(), "a.bin", bytes.NewReader(testsupport.Pattern(10)), nil)
	if result.Status != retry.PermanentFailure || result.Attempts != 1 {
		t.Fatalf("result = %+v, want permanent failure after 1 attempt", result)
	}
	if result.Kind != failure.KindAuthentication {
		t.Fatalf("kind = %q, want authentication", result.Kind)
	}
	if got := h.reconnects(); got != 0 {
		t.Fatalf("reconnects = %d, want 0", got)
	}
}

func TestTransferFailuresExhaustAttempts(t *testing.T) {
	fake := testsupport.NewFakeFTP()
	fake.StoreFaults = repeatFault(2, testsupport.StoreFault{AfterBytes: 4, Err: testsupport.Reply(426, "Transfer aborted.")})
	h := newHarness(t, fake, []testsupport.ConfigOption{testsupport.WithMaxAttempts(2), testsupport.WithChunkSize(4)})

	result := h.controller.Upload(context.Background(), "a.bin", bytes.NewReader(testsupport.Pattern(12)), nil)
	if result.Status != retry.TransientFailureExhausted || result.Attempts != 2 {
		t.Fatalf("result = %+v, want exhausted after 2 attempts", result)
	}
	if result.Kind != failure.KindTransfer {
		t.Fatalf("kind = %q, want transfer", result.Kind)
	}
	if result.Bytes != 4 {
		t.Fatalf("bytes = %d, want 4 partial bytes from last attempt", result.Bytes)
	}
}

func TestClassificationIsExhaustive(t *testing.T) {
	const maxAttempts = 3
	tests := []struct {
		name     string
		setup    func(*testsupport.FakeFTP)
		dir      string
		dest     string
		wantKind failure.Kind
	}{
		{
			name: "connection",
			setup: func(f *testsupport.FakeFTP) {
				f.StoreFaults = repeatFault(maxAttempts, testsupport.StoreFault{Reject: io.EOF})
			},
			wantKind: failure.KindConnection,
		},
		{
			name: "dial",
			setup: func(f *testsupport.FakeFTP) {
				f.DialFaults = []error{errors.New("refused"), errors.New("refused"), errors.New("refused")}
			},
			wantKind: failure.KindConnection,
		},
		{
			name: "transfer",
			setup: func(f *testsupport.FakeFTP) {
				f.StoreFaults = repeatFault(maxAttempts, testsupport.StoreFault{Reject: testsupport.Reply(425, "Can't open data connection.")})
			},
			wantKind: failure.KindTransfer,
		},
		{
			name: "unknown",
			setup: func(f *testsupport.FakeFTP) {
				f.StoreFaults = repeatFault(maxAttempts, testsupport.StoreFault{Reject: errors.New("strange")})
			},
			wantKind: failure.KindUnknown,
		},
		{
			name:     "authentication",
			setup:    func(f *testsupport.FakeFTP) { f.LoginErr = testsupport.Reply(530, "Login incorrect.") },
			wantKind: failure.KindAuthentication,
		},
		{
			name:     "directory",
			setup:    func(f *testsupport.FakeFTP) { f.Directories = []string{"/elsewhere"} },
			dir:      "/incoming",
			wantKind: failure.KindDirectory,
		},
		{
			name: "permission",
			setup: func(f *testsupport.FakeFTP) {
				f.StoreFaults = []*testsupport.StoreFault{{Reject: testsupport.Reply(550, "Permission denied.")}}
			},
			wantKind: failure.KindPermission,
		},
		{
			name:     "naming",
			setup:    func(*testsupport.FakeFTP) {},
			dest:     "nested/a.bin",
			wantKind: failure.KindNaming,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := testsupport.NewFakeFTP()
			tt.setup(fake)
			h := newHarness(t, fake, []testsupport.ConfigOption{
				testsupport.WithMaxAttempts(maxAttempts),
				testsupport.WithRemoteDir(tt.dir),
			})
			dest := tt.dest
			if dest == "" {
				dest = "a.bin"
			}

			result := h.controller.Upload(context.Background(), dest, bytes.NewReader(testsupport.Pattern(10)), nil)
			if result.Kind != tt.wantKind {
				t.Fatalf("kind = %q, want %q (err %v)", result.Kind, tt.wantKind, result.Err)
			}
			switch tt.wantKind.Class() {
			case failure.ClassPermanent:
				if result.Status != retry.PermanentFailure || result.Attempts != 1 {
					t.Fatalf("result = %+v, want permanent after 1 attempt", result)
				}
			case failure.ClassTransient:
				if result.Status != retry.TransientFailureExhausted || result.Attempts != maxAttempts {
					t.Fatalf("result = %+v, want exhausted after %d attempts", result, maxAttempts)
				}
			}
		})
	}
}

func TestReconnectRestoresConfiguredDirectory(t *testing.T) {
	fake := testsupport.NewFakeFTP()
	fake.StoreFaults = repeatFault(1, testsupport.StoreFault{Reject: testsupport.Reply(421, "Service not available.")})
	h := newHarness(t, fake, []testsupport.ConfigOption{testsupport.WithRemoteDir("/incoming/photos")})

	result := h.controller.Upload(context.Background(), "a.bin", bytes.NewReader(testsupport.Pattern(3)), nil)
	if result.Status != retry.Succeeded || result.Attempts != 2 {
		t.Fatalf("result = %+v", result)
	}
	conns := fake.Connections()
	if len(conns) != 2 {
		t.Fatalf("connections = %d, want 2", len(conns))
	}
	for i, conn := range conns {
		if conn.Dir() != "/incoming/photos" {
			t.Fatalf("connection %d dir = %q, want /incoming/photos", i, conn.Dir())
		}
	}
	if h.session.Directory() != "/incoming/photos" {
		t.Fatalf("session directory = %q", h.session.Directory())
	}
	if _, ok := fake.File("/incoming/photos/a.bin"); !ok {
		t.Fatal("expected file stored in configured directory")
	}
}

func TestProgressRestartsEachAttempt(t *testing.T) {
	fake := testsupport.NewFakeFTP()
	fake.StoreFaults = repeatFault(1, testsupport.StoreFault{AfterBytes: 4, Err: io.ErrUnexpectedEOF})
	h := newHarness(t, fake, []testsupport.ConfigOption{testsupport.WithChunkSize(4)})

	type report struct {
		attempt int
		sent    int64
	}
	var reports []report
	result := h.controller.Upload(context.Background(), "a.bin", bytes.NewReader(testsupport.Pattern(10)), func(attempt int, sent int64) {
		reports = append(reports, report{attempt, sent})
	})
	if result.Status != retry.Succeeded {
		t.Fatalf("result = %+v", result)
	}
	last := reports[len(reports)-1]
	if last.attempt != 2 || last.sent != 10 {
		t.Fatalf("last report = %+v, want attempt 2 with 10 bytes", last)
	}
	if reports[0].attempt != 1 || reports[0].sent != 4 {
		t.Fatalf("first report = %+v, want attempt 1 with 4 bytes", reports[0])
	}
	data, _ := fake.File("/a.bin")
	if !bytes.Equal(data, testsupport.Pattern(10)) {
		t.Fatalf("stored %q after rewind, want full pattern", data)
	}
}

func TestNonSeekableSourceIsNotReplayed(t *testing.T) {
	fake := testsupport.NewFakeFTP()
	fake.StoreFaults = repeatFault(1, testsupport.StoreFault{AfterBytes: 4, Err: io.ErrUnexpectedEOF})
	h := newHarness(t, fake, []testsupport.ConfigOption{testsupport.WithChunkSize(4), testsupport.WithMaxAttempts(3)})

	src := io.MultiReader(bytes.NewReader(testsupport.Pattern(10)))
	result := h.controller.Upload(context.Background(), "stream.bin", src, nil)
	if result.Status != retry.PermanentFailure || result.Kind != failure.KindSource {
		t.Fatalf("result = %+v, want permanent source failure", result)
	}
	if result.Attempts != 2 {
		t.Fatalf("attempts = %d, want 2", result.Attempts)
	}
	if !errors.Is(result.Err, failure.ErrTransfer) && !errors.Is(result.Err, failure.ErrConnection) {
		t.Fatalf("err = %v, want the interrupted transfer kept as the cause", result.Err)
	}
	if !errors.Is(result.Err, io.ErrUnexpectedEOF) {
		t.Fatalf("err = %v, want io.ErrUnexpectedEOF in the chain", result.Err)
	}
	if _, ok := fake.File("/stream.bin"); ok {
		t.Fatal("partial stream must not be stored")
	}
}

func TestBackoffDoublesUpToCap(t *testing.T) {
	fake := testsupport.NewFakeFTP()
	fake.StoreFaults = repeatFault(4, testsupport.StoreFault{Reject: io.EOF})
	var delays []time.Duration
	h := newHarness(t, fake, []testsupport.ConfigOption{testsupport.WithMaxAttempts(5)},
		retry.WithBackoff(100*time.Millisecond, 300*time.Millisecond),
		retry.WithSleeper(func(_ context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		}),
	)

	result := h.controller.Upload(context.Background(), "a.bin", bytes.NewReader(testsupport.Pattern(1)), nil)
	if result.Status != retry.Succeeded || result.Attempts != 5 {
		t.Fatalf("result = %+v", result)
	}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond, 300 * time.Millisecond}
	if len(delays) != len(want) {
		t.Fatalf("delays = %v, want %v", delays, want)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Fatalf("delays = %v, want %v", delays, want)
		}
	}
}

func TestCancelDuringBackoff(t *testing.T) {
	fake := testsupport.NewFakeFTP()
	fake.StoreFaults = repeatFault(3, testsupport.StoreFault{Reject: io.EOF})
	ctx, cancel := context.WithCancel(context.Background())
	h := newHarness(t, fake, []testsupport.ConfigOption{testsupport.WithMaxAttempts(3)},
		retry.WithBackoff(time.Hour, time.Hour),
		retry.WithSleeper(func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		}),
	)

	result := h.controller.Upload(ctx, "a.bin", bytes.NewReader(testsupport.Pattern(1)), nil)
	if result.Status != retry.Canceled || result.Attempts != 1 {
		t.Fatalf("result = %+v, want canceled after 1 attempt", result)
	}
	if !errors.Is(result.Err, failure.ErrCanceled) {
		t.Fatalf("err = %v, want canceled", result.Err)
	}
}

func TestEstablishUsesAttemptBudget(t *testing.T) {
	fake := testsupport.NewFakeFTP()
	fake.DialFaults = []error{errors.New("refused"), nil}
	h := newHarness(t, fake, []testsupport.ConfigOption{testsupport.WithMaxAttempts(3)})

	attempts, err := h.controller.Establish(context.Background())
	if err != nil || attempts != 2 {
		t.Fatalf("Establish = %d, %v; want 2, nil", attempts, err)
	}
	if h.session.State() != ftpsession.Ready {
		t.Fatalf("state = %s, want ready", h.session.State())
	}
}

func TestEstablishStopsOnPermanentFailure(t *testing.T) {
	fake := testsupport.NewFakeFTP()
	fake.LoginErr = testsupport.Reply(530, "Login incorrect.")
	h := newHarness(t, fake, []testsupport.ConfigOption{testsupport.WithMaxAttempts(3)})

	attempts, err := h.controller.Establish(context.Background())
	if attempts != 1 || !errors.Is(err, failure.ErrAuthentication) {
		t.Fatalf("Establish = %d, %v; want 1 and authentication error", attempts, err)
	}
}
