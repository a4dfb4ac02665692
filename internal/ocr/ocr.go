// Package ocr reads scanned PDFs by rendering pages with pdftoppm and
// running tesseract on each page image.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/course-jobs/internal/convert"
)

// removes runs of box-drawing and pipe noise that tesseract emits for table borders
var reBoxNoise = regexp.MustCompile(`[│┃┆┇┊┋|]{2,}`)

type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	Lang        string // default "eng"
	DPI         int    // rasterization DPI, default 300
	MaxPages    int    // 0 = no limit
	TessdataDir string
	Timeout     time.Duration // per command, default 2m
}

// Reader implements extract.PDFReader with OCR.
type Reader struct {
	cfg    Config
	runner convert.Runner
	logger *slog.Logger
}

func NewReader(cfg Config, runner convert.Runner, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = convert.ExecRunner{}
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Reader{cfg: cfg, runner: runner, logger: logger}
}

// Text renders every page and OCRs it. Pages that fail OCR are skipped.
func (r *Reader) Text(ctx context.Context, data []byte) (string, int, error) {
	start := time.Now()
	tmpDir, err := os.MkdirTemp("", "cj-ocr-*")
	if err != nil {
		return "", 0, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			r.logger.Warn("failed to remove temp dir", "dir", tmpDir, "error", err)
		}
	}()

	in := filepath.Join(tmpDir, "doc.pdf")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return "", 0, err
	}

	prefix := filepath.Join(tmpDir, "page")
	cctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := r.runner.Run(cctx, r.cfg.Pdftoppm, r.logger, "-r", strconv.Itoa(r.cfg.DPI), "-png", in, prefix)
	cancel()
	if err != nil {
		return "", 0, fmt.Errorf("pdftoppm: %w: %s", err, strings.TrimSpace(string(errb)))
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Slice(matches, func(i, j int) bool { return pageIndex(matches[i]) < pageIndex(matches[j]) })
	if r.cfg.MaxPages > 0 && len(matches) > r.cfg.MaxPages {
		matches = matches[:r.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return "", 0, fmt.Errorf("no pages rendered")
	}

	var b strings.Builder
	failed := 0
	for _, img := range matches {
		if err := ctx.Err(); err != nil {
			return "", len(matches), err
		}
		txt, err := r.tesseract(ctx, img)
		if err != nil {
			failed++
			r.logger.Warn("ocr.page.failed", "page", filepath.Base(img), "error", err)
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(txt)
	}
	if failed == len(matches) {
		return "", len(matches), fmt.Errorf("ocr failed on all %d pages", failed)
	}

	r.logger.Info("ocr.ok",
		"pages", len(matches),
		"failed_pages", failed,
		"lang", r.cfg.Lang,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return b.String(), len(matches), nil
}

func (r *Reader) tesseract(ctx context.Context, path string) (string, error) {
	args := []string{path, "stdout", "-l", r.cfg.Lang}
	if r.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", r.cfg.TessdataDir)
	}
	cctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	// tesseract <file> stdout -l <lang>
	out, errb, err := r.runner.Run(cctx, r.cfg.Tesseract, r.logger, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(string(errb)))
	}
	return reBoxNoise.ReplaceAllString(string(out), ""), nil
}

func pageIndex(p string) int {
	base := strings.TrimSuffix(filepath.Base(p), ".png")
	n, err := strconv.Atoi(base[strings.LastIndex(base, "-")+1:])
	if err != nil {
		return 1 << 30
	}
	return n
}
