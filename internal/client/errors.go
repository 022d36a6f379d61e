package client

import (
	"errors"
	"fmt"
)

// Kind classifies a device call failure.
type Kind string

const (
	// KindNetwork: the device was unreachable, the request timed out or was cancelled.
	KindNetwork Kind = "network"
	// KindProtocol: non-2xx status or a body that could not be understood.
	KindProtocol Kind = "protocol"
	// KindApplication: the device understood the request and refused it.
	KindApplication Kind = "application"
)

// Error is returned by every Client call that fails.
type Error struct {
	Kind   Kind
	Op     string // e.g. "POST /ssr"
	Status int    // HTTP status, 0 when no response was received
	Msg    string // readable cause
	Err    error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s error: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the failure kind. Errors that did not come from the
// client are treated as network failures; nil yields "".
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindNetwork
}

// Cause returns a short human-readable reason for err.
func Cause(err error) string {
	if err == nil {
		return ""
	}
	var ce *Error
	if errors.As(err, &ce) {
		switch {
		case ce.Msg != "":
			return ce.Msg
		case ce.Err != nil:
			return ce.Err.Error()
		case ce.Status != 0:
			return fmt.Sprintf("HTTP %d", ce.Status)
		}
		return string(ce.Kind) + " error"
	}
	return err.Error()
}

func networkErr(op string, err error) *Error {
	return &Error{Kind: KindNetwork, Op: op, Err: err}
}

func protocolErr(op string, status int, msg string, err error) *Error {
	return &Error{Kind: KindProtocol, Op: op, Status: status, Msg: msg, Err: err}
}

func applicationErr(op string, status int, msg string) *Error {
	if msg == "" {
		msg = "device rejected the request"
	}
	return &Error{Kind: KindApplication, Op: op, Status: status, Msg: msg}
}
