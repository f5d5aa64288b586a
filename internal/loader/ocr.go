package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"studyrag/internal/domain"
)

// OCR recognizes text in an image.
type OCR interface {
	Name() string
	Recognize(ctx context.Context, name string, image io.Reader) (string, error)
}

// ImageParser runs OCR over an image file.
type ImageParser struct {
	ocr OCR
}

var _ domain.Parser = (*ImageParser)(nil)

// NewImageParser wraps an OCR engine as a parser.
func NewImageParser(ocr OCR) *ImageParser { return &ImageParser{ocr: ocr} }

func (p *ImageParser) Parse(ctx context.Context, name string, r io.ReaderAt, size int64) (domain.Parsed, error) {
	if p.ocr == nil {
		return domain.Parsed{}, &domain.OcrUnavailableError{Name: name, Engine: "none"}
	}
	text, err := p.ocr.Recognize(ctx, name, io.NewSectionReader(r, 0, size))
	if err != nil {
		return domain.Parsed{}, err
	}
	return domain.Parsed{Text: text}, nil
}

// Tesseract shells out to the tesseract CLI.
type Tesseract struct {
	path      string
	languages string
	lookPath  func(string) (string, error)
}

// NewTesseract uses binary path (default "tesseract") and languages (default "eng").
func NewTesseract(path, languages string) *Tesseract {
	if path == "" {
		path = "tesseract"
	}
	if languages == "" {
		languages = "eng"
	}
	return &Tesseract{path: path, languages: languages, lookPath: exec.LookPath}
}

func (t *Tesseract) Name() string { return "tesseract" }

// Available reports whether the tesseract binary can be found.
func (t *Tesseract) Available() error {
	_, err := t.lookPath(t.path)
	return err
}

// Recognize pipes the image through `tesseract stdin stdout`.
func (t *Tesseract) Recognize(ctx context.Context, name string, image io.Reader) (string, error) {
	bin, err := t.lookPath(t.path)
	if err != nil {
		return "", &domain.OcrUnavailableError{Name: name, Engine: t.path, Err: err}
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, "stdin", "stdout", "-l", t.languages)
	cmd.Stdin = image
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", &domain.DocumentParseError{Name: name, Err: fmt.Errorf("tesseract: %s", msg)}
	}
	return stdout.String(), nil
}
