// Package extract turns uploaded documents into plain text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/course-jobs/constants"
)

// ErrUnsupportedFormat is returned for extensions without a reader.
var ErrUnsupportedFormat = errors.New("unsupported file type")

// Result is the outcome of one extraction.
type Result struct {
	Text     string
	Pages    int
	Method   string // "docx-xml" | "pdf-text" | "rtf-strip"
	Duration time.Duration
}

// TextExtractor is the document text extraction adapter.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, ext string) (Result, error)
}

// PDFReader pulls the text layer out of a PDF.
type PDFReader interface {
	Text(ctx context.Context, data []byte) (text string, pages int, err error)
}

type Extractor struct {
	pdf    PDFReader
	logger *slog.Logger
}

// NewExtractor builds an extractor. A nil pdf reader uses MuPDF via go-fitz.
func NewExtractor(pdf PDFReader, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if pdf == nil {
		pdf = FitzReader{}
	}
	return &Extractor{pdf: pdf, logger: logger}
}

// Extract picks a reader based on the file extension.
func (e *Extractor) Extract(ctx context.Context, data []byte, ext string) (Result, error) {
	start := time.Now()
	ext = constants.NormalizeExt(ext)
	e.logger.Debug("extract.start", "ext", ext, "bytes", len(data))

	var (
		res Result
		err error
	)
	switch ext {
	case "docx":
		res.Text, err = docxText(data)
		res.Method, res.Pages = "docx-xml", 1
	case "pdf":
		res.Text, res.Pages, err = e.pdf.Text(ctx, data)
		res.Method = "pdf-text"
	case "rtf":
		res.Text, err = rtfText(data)
		res.Method, res.Pages = "rtf-strip", 1
	default:
		e.logger.Warn("extract.unsupported", "ext", ext)
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	res.Duration = time.Since(start)
	if err != nil {
		e.logger.Error("extract.failed", "ext", ext, "method", res.Method, "error", err)
		return res, fmt.Errorf("%s: %w", res.Method, err)
	}

	res.Text = normalizeWhitespace(res.Text)
	e.logger.Info("extract.ok",
		"ext", ext,
		"method", res.Method,
		"pages", res.Pages,
		"chars", len(res.Text),
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

// normalizeWhitespace trims each line and collapses runs of blank lines.
func normalizeWhitespace(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, l := range lines {
		l = strings.TrimRight(l, " \t\f")
		if strings.TrimSpace(l) == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, l)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
