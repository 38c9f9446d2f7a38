package model

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorType classifies failures reported on an AnalysisResult.
type ErrorType string

const (
	ErrSymbolUnsupported   ErrorType = "SYMBOL_UNSUPPORTED"
	ErrDataUnavailable     ErrorType = "DATA_UNAVAILABLE"
	ErrRateLimited         ErrorType = "RATE_LIMITED"
	ErrNetwork             ErrorType = "NETWORK_ERROR"
	ErrTimeout             ErrorType = "TIMEOUT"
	ErrMalformedResponse   ErrorType = "MALFORMED_RESPONSE"
	ErrInsufficientSignals ErrorType = "INSUFFICIENT_SIGNALS"
)

// SourceError is a typed failure raised by the data access layer.
type SourceError struct {
	Type    ErrorType
	Symbol  string
	Message string
	Err     error
}

// NewSourceError builds a SourceError.
func NewSourceError(t ErrorType, symbol, message string, err error) *SourceError {
	return &SourceError{Type: t, Symbol: symbol, Message: message, Err: err}
}

func (e *SourceError) Error() string {
	msg := string(e.Type)
	if e.Symbol != "" {
		msg += " " + e.Symbol
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *SourceError) Unwrap() error { return e.Err }

// ErrorTypeOf classifies err. Untyped errors default to NETWORK_ERROR.
func ErrorTypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	var se *SourceError
	if errors.As(err, &se) {
		return se.Type
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ErrTimeout
	}
	return ErrNetwork
}
