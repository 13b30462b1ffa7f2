package services

import (
	"errors"
	"fmt"
)

// ErrorKind discriminates pipeline failures so discovery can decide whether a
// file is retried, skipped, or the whole scan must abort.
type ErrorKind string

const (
	KindConfig         ErrorKind = "config"
	KindIO             ErrorKind = "io"
	KindOCR            ErrorKind = "ocr"
	KindClassification ErrorKind = "classification"
	KindEmbedding      ErrorKind = "embedding"
	KindIndex          ErrorKind = "index"
	KindSearch         ErrorKind = "search"
	KindTimeout        ErrorKind = "timeout"
	KindCanceled       ErrorKind = "canceled"
	KindFatal          ErrorKind = "fatal"
)

// PipelineError wraps a cause with its kind and the corpus path it affected.
type PipelineError struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *PipelineError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s error for %s: %v", e.Kind, e.Path, e.Err)
	}
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// WrapError attaches a kind and path to an error. Returns nil for nil input.
func WrapError(kind ErrorKind, path string, err error) error {
	if err == nil {
		return nil
	}
	return &PipelineError{Kind: kind, Path: path, Err: err}
}

// KindOf extracts the error kind; unclassified errors report as fatal only
// when explicitly wrapped, otherwise they default to the given fallback.
func KindOf(err error, fallback ErrorKind) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return fallback
}

// IsFatal reports whether the error must abort the scan or process.
func IsFatal(err error) bool {
	return KindOf(err, "") == KindFatal
}
