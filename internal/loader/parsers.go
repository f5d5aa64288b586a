package loader

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dslipak/pdf"
	"github.com/xuri/excelize/v2"

	"studyrag/internal/domain"
)

var (
	_ domain.Parser = TextParser{}
	_ domain.Parser = PDFParser{}
	_ domain.Parser = DOCXParser{}
	_ domain.Parser = SpreadsheetParser{}
)

// TextParser reads UTF-8 plain text.
type TextParser struct{}

func (TextParser) Parse(_ context.Context, _ string, r io.ReaderAt, size int64) (domain.Parsed, error) {
	data, err := io.ReadAll(io.NewSectionReader(r, 0, size))
	if err != nil {
		return domain.Parsed{}, err
	}
	return domain.Parsed{Text: string(data)}, nil
}

// PDFParser extracts the plain text of every page, one section per page.
type PDFParser struct{}

func (PDFParser) Parse(ctx context.Context, _ string, r io.ReaderAt, size int64) (parsed domain.Parsed, err error) {
	// the pdf package panics on some malformed inputs
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("malformed pdf: %v", rec)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return domain.Parsed{}, err
	}
	var b strings.Builder
	var sections []domain.Section
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return domain.Parsed{}, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return domain.Parsed{}, fmt.Errorf("page %d: %w", i, err)
		}
		sections = append(sections, domain.Section{Label: fmt.Sprintf("page %d", i), Offset: b.Len()})
		b.WriteString(text)
		b.WriteString("\n")
	}
	return domain.Parsed{Text: b.String(), Sections: sections}, nil
}

// DOCXParser extracts paragraph text from word/document.xml, one line per paragraph.
// Table cells are separated by tabs.
type DOCXParser struct{}

func (DOCXParser) Parse(_ context.Context, _ string, r io.ReaderAt, size int64) (domain.Parsed, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return domain.Parsed{}, fmt.Errorf("not a docx archive: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return domain.Parsed{}, err
		}
		defer rc.Close()
		text, err := documentText(rc)
		if err != nil {
			return domain.Parsed{}, err
		}
		return domain.Parsed{Text: text}, nil
	}
	return domain.Parsed{}, errors.New("word/document.xml not found")
}

func documentText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var b bytes.Buffer
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteString("\t")
			case "br", "cr":
				b.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			case "tc":
				if n := b.Len(); n > 0 && b.Bytes()[n-1] == '\n' {
					b.Truncate(n - 1)
				}
				b.WriteByte('\t')
			case "tr":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}

// SpreadsheetParser reads every sheet of an OOXML workbook. Each row becomes a
// line with its cells joined by a space; each sheet is its own section.
type SpreadsheetParser struct{}

func (SpreadsheetParser) Parse(ctx context.Context, _ string, r io.ReaderAt, size int64) (domain.Parsed, error) {
	f, err := excelize.OpenReader(io.NewSectionReader(r, 0, size))
	if err != nil {
		return domain.Parsed{}, err
	}
	defer f.Close()

	var b strings.Builder
	var sections []domain.Section
	for _, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return domain.Parsed{}, err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return domain.Parsed{}, fmt.Errorf("sheet %q: %w", sheet, err)
		}
		sections = append(sections, domain.Section{Label: "sheet " + sheet, Offset: b.Len()})
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, " "))
			if line == "" {
				continue
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return domain.Parsed{Text: b.String(), Sections: sections}, nil
}
