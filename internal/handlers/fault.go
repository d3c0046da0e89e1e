package handlers

import (
	"errors"
	"fmt"
	"net/http"
)

// FaultClass says whose side a failed request is on.
type FaultClass int

const (
	ClientFault FaultClass = iota + 1
	ServerFault
)

func (c FaultClass) String() string {
	switch c {
	case ClientFault:
		return "client"
	case ServerFault:
		return "server"
	default:
		return fmt.Sprintf("FaultClass(%d)", int(c))
	}
}

var (
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrInferenceFailure     = errors.New("inference failure")
	ErrBadUpload            = errors.New("bad upload")
)

// Fault is the single failure result of the predict pipeline. Detail is
// what the caller sees; Err keeps the cause for logs and errors.Is.
type Fault struct {
	Class  FaultClass
	Status int
	Detail string
	Err    error
}

func (f *Fault) Error() string {
	if f.Err == nil {
		return f.Detail
	}
	return fmt.Sprintf("%s: %v", f.Detail, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

func clientFault(status int, kind error, detail string, cause error) *Fault {
	err := kind
	if errors.Is(cause, kind) {
		err = cause
	} else if cause != nil {
		err = fmt.Errorf("%w: %w", kind, cause)
	}
	return &Fault{
		Class:  ClientFault,
		Status: status,
		Detail: detail,
		Err:    err,
	}
}

func tooLarge(limit int64, cause error) *Fault {
	return clientFault(http.StatusRequestEntityTooLarge, ErrBadUpload,
		fmt.Sprintf("File exceeds the %d byte upload limit", limit), cause)
}

// serverFault exposes the cause's message as the detail.
func serverFault(cause error) *Fault {
	return &Fault{
		Class:  ServerFault,
		Status: http.StatusInternalServerError,
		Detail: cause.Error(),
		Err:    fmt.Errorf("%w: %w", ErrInferenceFailure, cause),
	}
}
