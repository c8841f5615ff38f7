package ftpsession

import (
	"context"
	"errors"
	"io"
	"net"
	"net/textproto"
	"syscall"

	"ferry/internal/failure"
)

// FTP reply codes that decide a failure kind.
const (
	codeServiceNotAvailable  = 421
	codeCannotOpenData       = 425
	codeTransferAborted      = 426
	codeFileActionIgnored    = 450
	codeActionAborted        = 451
	codeInsufficientStorage  = 452
	codeNotLoggedIn          = 530
	codeNeedAccountToStore   = 532
	codeFileUnavailable      = 550
	codeFileNameNotAllowed   = 553
	codeFirstPermanentFailed = 500
)

type step string

const (
	stepConnect step = "connect"
	stepLogin   step = "login"
	stepCWD     step = "cwd"
	stepStore   step = "stor"
	stepNoop    step = "noop"
)

// ReplyCode extracts the FTP reply code carried by err, or 0.
func ReplyCode(err error) int {
	var tp *textproto.Error
	if errors.As(err, &tp) {
		return tp.Code
	}
	return 0
}

// classify tags a raw wire error with the kind implied by the step that
// produced it and the server's reply code.
func classify(ctx context.Context, s step, op string, err error) error {
	if err == nil {
		return nil
	}
	if ctx != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return failure.Wrap(failure.KindCanceled, op, "canceled", err)
	}
	if code := ReplyCode(err); code != 0 {
		return failure.Wrap(kindForReply(s, code), op, "server replied", err)
	}
	if isNetworkError(err) {
		return failure.Wrap(failure.KindConnection, op, "network failure", err)
	}
	if s == stepConnect {
		return failure.Wrap(failure.KindConnection, op, "dial failed", err)
	}
	return failure.Wrap(failure.KindUnknown, op, "", err)
}

func kindForReply(s step, code int) failure.Kind {
	if code == codeServiceNotAvailable {
		return failure.KindConnection
	}
	switch s {
	case stepLogin:
		if code >= codeFirstPermanentFailed {
			return failure.KindAuthentication
		}
		return failure.KindConnection
	case stepCWD:
		if code >= codeFirstPermanentFailed {
			return failure.KindDirectory
		}
		return failure.KindConnection
	case stepStore:
		switch code {
		case codeNeedAccountToStore, codeFileUnavailable, codeFileNameNotAllowed:
			return failure.KindPermission
		case codeCannotOpenData, codeTransferAborted, codeFileActionIgnored, codeActionAborted, codeInsufficientStorage:
			return failure.KindTransfer
		}
		if code < codeFirstPermanentFailed {
			return failure.KindTransfer
		}
		return failure.KindUnknown
	case stepConnect, stepNoop:
		return failure.KindConnection
	}
	if code == codeNotLoggedIn {
		return failure.KindAuthentication
	}
	return failure.KindUnknown
}

func isNetworkError(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
