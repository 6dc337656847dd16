// Package ocr provides text extraction backends for photographed or scanned collection logs.
//
// Every backend implements Extractor. Failures are reported as *TransportError when the backend
// cannot be reached or answers with a non-2xx status, and as *FormatError when it answers
// without a usable text payload. Callers decide how to treat a FormatError.
package ocr

import (
	"context"
	"errors"
	"fmt"
)

// Extractor turns image or document bytes into raw text.
type Extractor interface {
	ExtractText(ctx context.Context, data []byte, contentType string) (string, error)
}

var (
	// ErrTransport matches any *TransportError.
	ErrTransport = errors.New("ocr backend unreachable")
	// ErrFormat matches any *FormatError.
	ErrFormat = errors.New("ocr backend returned no text")
	// ErrEmptyInput is returned when no bytes are supplied.
	ErrEmptyInput = errors.New("no document bytes supplied")
	// ErrInputTooLarge is returned when the document exceeds what the backend accepts.
	ErrInputTooLarge = errors.New("document too large for ocr backend")
)

// TransportError reports a network failure or a non-2xx answer from the backend.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("ocr: %s failed with status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("ocr: %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrTransport) match.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// FormatError reports a backend answer that carries no text field.
type FormatError struct {
	Op     string
	Detail string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("ocr: %s: %s", e.Op, e.Detail)
}

// Is lets errors.Is(err, ErrFormat) match.
func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// NewTransportError wraps err unless it already is a *TransportError.
func NewTransportError(op string, status int, err error) error {
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Op: op, StatusCode: status, Err: err}
}
