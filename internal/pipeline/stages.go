// Package pipeline holds the job stages and the per-type stage sequences.
// Stages never touch the job store.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/course-jobs/constants"
	"github.com/joseph-ayodele/course-jobs/internal/convert"
	"github.com/joseph-ayodele/course-jobs/internal/extract"
	"github.com/joseph-ayodele/course-jobs/internal/imagesearch"
	"github.com/joseph-ayodele/course-jobs/internal/llm"
	"github.com/joseph-ayodele/course-jobs/internal/speech"
	"github.com/joseph-ayodele/course-jobs/internal/storage"
)

const maxSpeechRunes = 2000

var (
	courseSchema  = llm.MustCompileSchema(llm.CourseContentSchema())
	summarySchema = llm.MustCompileSchema(llm.SummarySchema())
)

// Rasterizer turns a presentation into one image per slide.
type Rasterizer interface {
	Rasterize(ctx context.Context, src convert.Source) ([][]byte, error)
}

// Deps are the external adapters the stages call.
type Deps struct {
	Extractor extract.TextExtractor
	Converter Rasterizer
	Store     storage.ObjectStore
	Bucket    string
	Generator llm.Generator
	// QuizGenerator answers in the plain-text quiz format; defaults to Generator.
	QuizGenerator llm.Generator
	Speech        speech.Synthesizer
	Images        imagesearch.Searcher
	Retrier       *Retrier
	ChunkSize     int
	Now           func() time.Time
}

type Stages struct {
	deps   Deps
	logger *slog.Logger
}

func NewStages(deps Deps, logger *slog.Logger) *Stages {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Retrier == nil {
		deps.Retrier = NewRetrier(defaultMaxAttempts, nil, logger)
	}
	if deps.ChunkSize <= 0 {
		deps.ChunkSize = DefaultChunkSize
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.QuizGenerator == nil {
		deps.QuizGenerator = deps.Generator
	}
	if deps.Images == nil {
		deps.Images = imagesearch.Disabled{}
	}
	if deps.Bucket == "" {
		deps.Bucket = "course-assets"
	}
	return &Stages{deps: deps, logger: logger}
}

// ExtractText pulls plain text out of a docx, pdf or rtf document.
func (s *Stages) ExtractText(ctx context.Context, doc []byte, filename string) (extract.Result, error) {
	ext := constants.NormalizeExt(filepath.Ext(filename))
	res, err := s.deps.Extractor.Extract(ctx, doc, ext)
	if err != nil {
		s.logger.Warn("stage.extract.failed", "filename", filename, "error", err)
		if errors.Is(err, extract.ErrUnsupportedFormat) {
			return res, err
		}
		return res, fmt.Errorf("extract %s: %w", ext, err)
	}
	if strings.TrimSpace(res.Text) == "" {
		return res, ErrExtractionEmpty
	}
	s.logger.Info("stage.extract.ok", "filename", filename, "method", res.Method, "chars", len(res.Text))
	return res, nil
}

// RasterizePresentation renders each slide to a PNG, preserving slide order.
func (s *Stages) RasterizePresentation(ctx context.Context, src convert.Source) ([][]byte, error) {
	images, err := s.deps.Converter.Rasterize(ctx, src)
	if err != nil {
		s.logger.Warn("stage.rasterize.failed", "filename", src.Filename, "url", src.URL, "error", err)
		return nil, err
	}
	if len(images) == 0 {
		return nil, ErrNoSlidesExtracted
	}
	return images, nil
}

// UploadAssets stores every image and returns public URLs in input order.
// Any failed upload fails the whole stage.
func (s *Stages) UploadAssets(ctx context.Context, prefix string, images [][]byte) ([]string, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	stamp := s.deps.Now().UnixNano()
	urls := make([]string, 0, len(images))
	for i, img := range images {
		path := fmt.Sprintf("%s/%d/slide-%03d.png", strings.Trim(prefix, "/"), stamp, i+1)
		u, err := s.deps.Store.Upload(ctx, s.deps.Bucket, path, img, "image/png")
		if err != nil {
			s.logger.Error("stage.upload.failed", "path", path, "error", err)
			return nil, fmt.Errorf("%w: slide %d: %v", ErrUploadFailed, i+1, err)
		}
		urls = append(urls, u)
	}
	s.logger.Info("stage.upload.ok", "bucket", s.deps.Bucket, "count", len(urls))
	return urls, nil
}

func (s *Stages) ensureBucket(ctx context.Context) error {
	names, err := s.deps.Store.ListBuckets(ctx)
	if err != nil {
		return err
	}
	for _, n := range names {
		if n == s.deps.Bucket {
			return nil
		}
	}
	return s.deps.Store.CreateBucket(ctx, s.deps.Bucket, true)
}

// GenerateCourseContent asks the model for slides and quiz questions, chunk by
// chunk, and unions what the successful chunks produced.
func (s *Stages) GenerateCourseContent(ctx context.Context, text, instructions string) (CourseContent, error) {
	var out CourseContent
	var summaries []string
	err := s.eachChunk(ctx, "course_content", text, func(ctx context.Context, chunk string) error {
		raw, err := s.deps.Generator.Generate(ctx, llm.CourseContentPrompt(chunk, instructions))
		if err != nil {
			return err
		}
		part, err := parseCourseContent(raw)
		if err != nil {
			return err
		}
		out.Slides = append(out.Slides, part.Slides...)
		out.Quiz = append(out.Quiz, part.Quiz...)
		if part.Summary != "" {
			summaries = append(summaries, part.Summary)
		}
		return nil
	})
	out.Summary = strings.Join(summaries, "\n\n")
	return out, err
}

// GenerateQuizFromText asks for marker-formatted questions per chunk.
func (s *Stages) GenerateQuizFromText(ctx context.Context, text string) (Quiz, error) {
	var out Quiz
	err := s.eachChunk(ctx, "quiz", text, func(ctx context.Context, chunk string) error {
		raw, err := s.deps.QuizGenerator.Generate(ctx, llm.QuizPrompt(chunk))
		if err != nil {
			return err
		}
		qs := ParseQuizMarkers(llm.StripCodeFences(raw))
		if len(qs) == 0 {
			return fmt.Errorf("%w: no well-formed questions", ErrMalformedAIResponse)
		}
		out.Questions = append(out.Questions, qs...)
		return nil
	})
	return out, err
}

// GenerateSummary summarizes each chunk and joins the parts.
func (s *Stages) GenerateSummary(ctx context.Context, text string) (Summary, error) {
	var parts []string
	var out Summary
	err := s.eachChunk(ctx, "summary", text, func(ctx context.Context, chunk string) error {
		raw, err := s.deps.Generator.Generate(ctx, llm.SummaryPrompt(chunk))
		if err != nil {
			return err
		}
		var part Summary
		if err := decodeValidated(raw, summarySchema, &part); err != nil {
			return err
		}
		parts = append(parts, part.Summary)
		out.KeyPoints = append(out.KeyPoints, part.KeyPoints...)
		return nil
	})
	out.Summary = strings.Join(parts, "\n\n")
	return out, err
}

// TextToSpeech narrates at most the first 2000 characters of text.
func (s *Stages) TextToSpeech(ctx context.Context, text string) (speech.Audio, error) {
	if r := []rune(text); len(r) > maxSpeechRunes {
		text = string(r[:maxSpeechRunes])
	}
	audio, err := s.deps.Speech.Synthesize(ctx, text)
	if err != nil {
		var ue *llm.UnavailableError
		if errors.As(err, &ue) || errors.Is(err, context.DeadlineExceeded) {
			return speech.Audio{}, fmt.Errorf("%w: %v", ErrSpeechServiceUnavailable, err)
		}
		return speech.Audio{}, fmt.Errorf("text to speech: %w", err)
	}
	return audio, nil
}

// ResolveSlideImages fills ImageURL for slides with a search term. Lookups
// that fail leave the slide without an image.
func (s *Stages) ResolveSlideImages(ctx context.Context, slides []Slide) []Slide {
	for i := range slides {
		term := strings.TrimSpace(slides[i].ImageSearchTerm)
		if term == "" || slides[i].ImageURL != "" {
			continue
		}
		u, err := s.deps.Images.Search(ctx, term)
		if err != nil {
			s.logger.Warn("stage.images.lookup_failed", "term", term, "error", err)
			continue
		}
		slides[i].ImageURL = u
	}
	return slides
}

// eachChunk runs fn with retries for every chunk. Failed chunks are skipped;
// the call fails only when no chunk succeeded.
func (s *Stages) eachChunk(ctx context.Context, op, text string, fn func(ctx context.Context, chunk string) error) error {
	chunks := Chunk(text, s.deps.ChunkSize)
	if len(chunks) == 0 {
		return fmt.Errorf("%w: no source text", ErrMissingInput)
	}
	var lastErr error
	ok := 0
	for i, chunk := range chunks {
		err := s.deps.Retrier.Do(ctx, op, func(ctx context.Context) error { return fn(ctx, chunk) })
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			s.logger.Warn("stage.generate.chunk_skipped", "op", op, "chunk", i+1, "of", len(chunks), "error", err)
			continue
		}
		ok++
	}
	if ok == 0 {
		return fmt.Errorf("%w: %w", ErrNoContentGenerated, lastErr)
	}
	s.logger.Info("stage.generate.ok", "op", op, "chunks", len(chunks), "succeeded", ok)
	return nil
}

func parseCourseContent(raw string) (CourseContent, error) {
	var c CourseContent
	if err := decodeValidated(raw, courseSchema, &c); err != nil {
		return c, err
	}
	quiz := c.Quiz[:0]
	for _, q := range c.Quiz {
		if q.CorrectIndex < len(q.Options) {
			quiz = append(quiz, q)
		}
	}
	c.Quiz = quiz
	return c, nil
}

// decodeValidated strips fences, checks the JSON against schema and decodes it into dst.
func decodeValidated(raw string, schema *llm.Schema, dst any) error {
	cleaned := llm.StripCodeFences(raw)
	var v any
	if err := json.Unmarshal([]byte(cleaned), &v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedAIResponse, err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrIncompleteAIResponse, err)
	}
	if err := json.Unmarshal([]byte(cleaned), dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedAIResponse, err)
	}
	return nil
}
