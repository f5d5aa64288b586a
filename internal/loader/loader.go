// Package loader turns source files into normalized plain-text documents.
// Each format is handled by a domain.Parser; the loader picks one by
// declared format or file extension and normalizes whitespace.
package loader

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"studyrag/internal/domain"
	"studyrag/internal/logger"
)

var extensions = map[string]domain.Format{
	".txt":  domain.FormatText,
	".text": domain.FormatText,
	".md":   domain.FormatText,
	".pdf":  domain.FormatPDF,
	".docx": domain.FormatDOCX,
	".xlsx": domain.FormatSpreadsheet,
	".xlsm": domain.FormatSpreadsheet,
	".png":  domain.FormatImage,
	".jpg":  domain.FormatImage,
	".jpeg": domain.FormatImage,
	".bmp":  domain.FormatImage,
	".gif":  domain.FormatImage,
	".tif":  domain.FormatImage,
	".tiff": domain.FormatImage,
}

// DetectFormat infers the format from the file extension.
func DetectFormat(name string) (domain.Format, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if f, ok := extensions[ext]; ok {
		return f, nil
	}
	return "", &domain.UnsupportedFormatError{Name: filepath.Base(name), Ext: ext}
}

// Loader dispatches files to per-format parsers.
type Loader struct {
	parsers map[domain.Format]domain.Parser
	now     func() time.Time
}

// Option configures a Loader.
type Option func(*Loader)

// WithParser registers or replaces the parser for a format.
func WithParser(format domain.Format, p domain.Parser) Option {
	return func(l *Loader) {
		if p != nil {
			l.parsers[format] = p
		}
	}
}

// WithOCR sets the OCR engine used for images.
func WithOCR(ocr OCR) Option {
	return WithParser(domain.FormatImage, NewImageParser(ocr))
}

// New creates a loader with the default parser for every format.
// Images use the tesseract binary found on PATH unless WithOCR is given.
func New(opts ...Option) *Loader {
	l := &Loader{
		parsers: map[domain.Format]domain.Parser{
			domain.FormatText:        TextParser{},
			domain.FormatPDF:         PDFParser{},
			domain.FormatDOCX:        DOCXParser{},
			domain.FormatSpreadsheet: SpreadsheetParser{},
			domain.FormatImage:       NewImageParser(NewTesseract("", "")),
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the file at path. An empty format is inferred from the extension.
func (l *Loader) Load(ctx context.Context, path string, format domain.Format) (domain.Document, error) {
	name := filepath.Base(path)
	parser, format, err := l.resolve(name, format)
	if err != nil {
		return domain.Document{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return domain.Document{}, &domain.DocumentParseError{Name: name, Err: err}
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return domain.Document{}, &domain.DocumentParseError{Name: name, Err: err}
	}
	if st.IsDir() {
		return domain.Document{}, &domain.DocumentParseError{Name: name, Err: errors.New("is a directory")}
	}
	return l.parse(ctx, parser, name, path, format, f, st.Size())
}

// LoadReader parses an in-memory upload named name.
func (l *Loader) LoadReader(ctx context.Context, name string, r io.ReaderAt, size int64, format domain.Format) (domain.Document, error) {
	parser, format, err := l.resolve(name, format)
	if err != nil {
		return domain.Document{}, err
	}
	return l.parse(ctx, parser, name, "", format, r, size)
}

func (l *Loader) resolve(name string, format domain.Format) (domain.Parser, domain.Format, error) {
	if format == "" {
		var err error
		if format, err = DetectFormat(name); err != nil {
			return nil, "", err
		}
	}
	parser, ok := l.parsers[format]
	if !ok {
		return nil, "", &domain.UnsupportedFormatError{Name: name, Ext: string(format)}
	}
	return parser, format, nil
}

func (l *Loader) parse(ctx context.Context, parser domain.Parser, name, path string, format domain.Format, r io.ReaderAt, size int64) (domain.Document, error) {
	parsed, err := parser.Parse(ctx, name, r, size)
	if err != nil {
		return domain.Document{}, asLoadError(name, err)
	}
	content, sections := Normalize(parsed)
	if strings.TrimSpace(content) == "" && format != domain.FormatText {
		logger.Warn("%s: no text extracted, the %s may have extraction issues", name, format)
	}
	logger.Debug("loaded %s (%s): %d bytes, %d sections", name, format, len(content), len(sections))
	return domain.Document{
		ID:        uuid.New().String(),
		Name:      name,
		Path:      path,
		Format:    format,
		Content:   content,
		Sections:  sections,
		CreatedAt: l.now(),
	}, nil
}

// asLoadError keeps typed loader errors as they are and wraps the rest.
func asLoadError(name string, err error) error {
	switch {
	case errors.Is(err, domain.ErrOcrUnavailable),
		errors.Is(err, domain.ErrUnsupportedFormat),
		errors.Is(err, domain.ErrDocumentParse):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return &domain.DocumentParseError{Name: name, Err: err}
}
