package domain

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is checks. Each typed error below unwraps to one of these.
var (
	ErrUnsupportedFormat      = errors.New("unsupported format")
	ErrOcrUnavailable         = errors.New("ocr unavailable")
	ErrDocumentParse          = errors.New("document parse failed")
	ErrInvalidChunkConfig     = errors.New("invalid chunk config")
	ErrEmbeddingModelMismatch = errors.New("embedding model mismatch")
	ErrGeneration             = errors.New("generation failed")
	ErrModelUnavailable       = errors.New("model unavailable")
	ErrDocumentNotFound       = errors.New("document not found")
	ErrInvalidConfig          = errors.New("invalid config")
)

// UnsupportedFormatError is returned for files whose extension is not recognized.
type UnsupportedFormatError struct {
	Name string
	Ext  string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Ext == "" {
		return fmt.Sprintf("%s: unsupported format (no file extension)", e.Name)
	}
	return fmt.Sprintf("%s: unsupported format %q", e.Name, e.Ext)
}

func (e *UnsupportedFormatError) Unwrap() error { return ErrUnsupportedFormat }

// OcrUnavailableError is returned when an image is loaded but no OCR engine is installed.
type OcrUnavailableError struct {
	Name   string
	Engine string
	Err    error
}

func (e *OcrUnavailableError) Error() string {
	msg := fmt.Sprintf("%s: ocr engine %q is not available on this host", e.Name, e.Engine)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *OcrUnavailableError) Unwrap() []error { return []error{ErrOcrUnavailable, e.Err} }

// DocumentParseError wraps any failure while extracting text from a file.
type DocumentParseError struct {
	Name string
	Err  error
}

func (e *DocumentParseError) Error() string {
	return fmt.Sprintf("%s: parse failed: %v", e.Name, e.Err)
}

func (e *DocumentParseError) Unwrap() []error { return []error{ErrDocumentParse, e.Err} }

// InvalidChunkConfigError reports an unusable target size / overlap pair.
type InvalidChunkConfigError struct {
	TargetSize int
	Overlap    int
}

func (e *InvalidChunkConfigError) Error() string {
	return fmt.Sprintf("invalid chunk config: target_size=%d overlap=%d (need target_size > 0 and 0 <= overlap < target_size)", e.TargetSize, e.Overlap)
}

func (e *InvalidChunkConfigError) Unwrap() error { return ErrInvalidChunkConfig }

// EmbeddingModelMismatchError is a fatal configuration error: vectors from
// different models or dimensions were about to be compared.
type EmbeddingModelMismatchError struct {
	Expected          string
	Got               string
	ExpectedDimension int
	GotDimension      int
}

func (e *EmbeddingModelMismatchError) Error() string {
	return fmt.Sprintf("embedding model mismatch: index uses %s (dim %d), got %s (dim %d)",
		e.Expected, e.ExpectedDimension, e.Got, e.GotDimension)
}

func (e *EmbeddingModelMismatchError) Unwrap() error { return ErrEmbeddingModelMismatch }

// GenerationError is returned when the generative model fails or times out.
type GenerationError struct {
	Query string
	Model string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation with %s failed for %q: %v", e.Model, e.Query, e.Err)
}

func (e *GenerationError) Unwrap() []error { return []error{ErrGeneration, e.Err} }

// ModelUnavailableError is returned at session start when a model cannot be set up.
type ModelUnavailableError struct {
	Kind  string
	Model string
	Err   error
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("%s model %q unavailable: %v", e.Kind, e.Model, e.Err)
}

func (e *ModelUnavailableError) Unwrap() []error { return []error{ErrModelUnavailable, e.Err} }

// DocumentNotFoundError is returned when removing or addressing an unknown document.
type DocumentNotFoundError struct {
	ID string
}

func (e *DocumentNotFoundError) Error() string {
	return fmt.Sprintf("document %q not found", e.ID)
}

func (e *DocumentNotFoundError) Unwrap() error { return ErrDocumentNotFound }

// ConfigError names the offending option and value.
type ConfigError struct {
	Option string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s=%v: %s", e.Option, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }
