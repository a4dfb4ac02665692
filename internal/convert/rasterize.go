// Package convert renders office presentations into per-slide PNG images
// using headless LibreOffice and poppler's pdftoppm.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/course-jobs/constants"
)

var (
	// ErrConversionFailed wraps any failure of the external conversion tools.
	ErrConversionFailed = errors.New("presentation conversion failed")
	// ErrNoSlidesExtracted means rasterization produced zero images.
	ErrNoSlidesExtracted = errors.New("no slides extracted")
	// ErrSourceTooLarge means a remote presentation exceeded MaxDownloadBytes.
	ErrSourceTooLarge = errors.New("presentation too large")
)

const defaultMaxDownloadBytes = 200 << 20

type Config struct {
	Soffice          string        // binary name or absolute path; if empty -> "soffice"
	Pdftoppm         string        // binary name or absolute path; if empty -> "pdftoppm"
	DPI              int           // default 150
	Timeout          time.Duration // per external command, default 3m
	MaxDownloadBytes int64         // remote source cap, default 200 MiB
}

// Source is either inline bytes with a filename or a remote URL.
type Source struct {
	Data     []byte
	Filename string
	URL      string
}

type Rasterizer struct {
	cfg    Config
	runner Runner
	http   *http.Client
	logger *slog.Logger
}

func NewRasterizer(cfg Config, runner Runner, logger *slog.Logger) *Rasterizer {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if cfg.Soffice == "" {
		cfg.Soffice = "soffice"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 150
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Minute
	}
	if cfg.MaxDownloadBytes <= 0 {
		cfg.MaxDownloadBytes = defaultMaxDownloadBytes
	}
	return &Rasterizer{cfg: cfg, runner: runner, http: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

// newScratch creates a private working directory. Callers must defer cleanup.
func newScratch(logger *slog.Logger) (string, func(), error) {
	dir, err := os.MkdirTemp("", "cj-slides-*")
	if err != nil {
		return "", func() {}, err
	}
	return dir, func() {
		if err := os.RemoveAll(dir); err != nil {
			logger.Warn("failed to remove scratch dir", "dir", dir, "error", err)
		}
	}, nil
}

// Rasterize returns one PNG per slide, in slide order.
func (r *Rasterizer) Rasterize(ctx context.Context, src Source) ([][]byte, error) {
	start := time.Now()
	dir, cleanup, err := newScratch(r.logger)
	defer cleanup()
	if err != nil {
		return nil, fmt.Errorf("%w: scratch dir: %v", ErrConversionFailed, err)
	}

	input, err := r.materialize(ctx, dir, src)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}

	pdfPath := input
	if constants.NormalizeExt(filepath.Ext(input)) != "pdf" {
		pdfPath, err = r.toPDF(ctx, dir, input)
		if err != nil {
			return nil, err
		}
	}

	pages, err := r.toPNG(ctx, dir, pdfPath)
	if err != nil {
		return nil, err
	}

	images := make([][]byte, 0, len(pages))
	for _, p := range pages {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrConversionFailed, filepath.Base(p), err)
		}
		images = append(images, b)
	}
	r.logger.Info("convert.rasterize.ok",
		"slides", len(images),
		"dpi", r.cfg.DPI,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return images, nil
}

// materialize writes the source into dir and returns its path.
func (r *Rasterizer) materialize(ctx context.Context, dir string, src Source) (string, error) {
	if src.URL == "" {
		name := sanitizeName(src.Filename)
		if name == "" {
			return "", fmt.Errorf("missing filename")
		}
		p := filepath.Join(dir, name)
		return p, os.WriteFile(p, src.Data, 0o600)
	}

	u, err := url.Parse(src.URL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	name := sanitizeName(path.Base(u.Path))
	if _, ok := constants.PresentationExtensions[constants.NormalizeExt(filepath.Ext(name))]; !ok {
		name = "deck.pptx"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return "", err
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("download: status %d", resp.StatusCode)
	}

	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	if err != nil {
		return "", err
	}
	defer f.Close()
	n, err := io.Copy(f, io.LimitReader(resp.Body, r.cfg.MaxDownloadBytes+1))
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	if n > r.cfg.MaxDownloadBytes {
		return "", fmt.Errorf("%w: more than %d bytes", ErrSourceTooLarge, r.cfg.MaxDownloadBytes)
	}
	r.logger.Debug("convert.download.ok", "bytes", n, "name", name)
	return p, nil
}

func (r *Rasterizer) toPDF(ctx context.Context, dir, input string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	outDir := filepath.Join(dir, "pdf")
	if err := os.MkdirAll(outDir, 0o700); err != nil {
		return "", fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}
	// soffice --headless --convert-to pdf --outdir <dir> <input>
	// each conversion gets its own LibreOffice profile
	profile := "-env:UserInstallation=file://" + filepath.ToSlash(filepath.Join(dir, "lo-profile"))
	_, errb, err := r.runner.Run(cctx, r.cfg.Soffice, r.logger,
		profile, "--headless", "--convert-to", "pdf", "--outdir", outDir, input)
	if err != nil {
		return "", fmt.Errorf("%w: soffice: %v: %s", ErrConversionFailed, err, truncate(string(errb), 512))
	}

	want := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))+".pdf")
	if _, err := os.Stat(want); err != nil {
		return "", fmt.Errorf("%w: soffice produced no pdf", ErrConversionFailed)
	}
	return want, nil
}

func (r *Rasterizer) toPNG(ctx context.Context, dir, pdfPath string) ([]string, error) {
	cctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	prefix := filepath.Join(dir, "slide")
	// pdftoppm -r 150 -png <in.pdf> <dir/slide>
	_, errb, err := r.runner.Run(cctx, r.cfg.Pdftoppm, r.logger, "-r", strconv.Itoa(r.cfg.DPI), "-png", pdfPath, prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: pdftoppm: %v: %s", ErrConversionFailed, err, truncate(string(errb), 512))
	}

	// pdftoppm zero-pads the page number depending on page count (slide-1.png or slide-01.png)
	matches, _ := filepath.Glob(prefix + "-*.png")
	if len(matches) == 0 {
		return nil, ErrNoSlidesExtracted
	}
	sort.Slice(matches, func(i, j int) bool { return pageNumber(matches[i]) < pageNumber(matches[j]) })
	return matches, nil
}

func pageNumber(p string) int {
	base := strings.TrimSuffix(filepath.Base(p), ".png")
	i := strings.LastIndex(base, "-")
	n, err := strconv.Atoi(base[i+1:])
	if err != nil {
		return 1 << 30
	}
	return n
}

func sanitizeName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == "/" || name == "" {
		return ""
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}
