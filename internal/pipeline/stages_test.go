package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/course-jobs/constants"
	"github.com/joseph-ayodele/course-jobs/internal/convert"
	"github.com/joseph-ayodele/course-jobs/internal/entity"
	"github.com/joseph-ayodele/course-jobs/internal/extract"
	"github.com/joseph-ayodele/course-jobs/internal/llm"
	"github.com/joseph-ayodele/course-jobs/internal/speech"
	"github.com/joseph-ayodele/course-jobs/internal/storage"
)

const courseJSON = `{"summary":"Fire safety basics","slides":[{"title":"Exits","htmlBody":"<p>Know your exits</p>","imageSearchTerm":"fire exit"}],"quiz":[{"question":"Where do you go?","options":["Exit","Lift"],"correctIndex":0}]}`

type fakeGenerator struct {
	mu      sync.Mutex
	calls   int
	prompts []llm.Prompt
	respond func(p llm.Prompt) (string, error)
}

func (f *fakeGenerator) Generate(_ context.Context, p llm.Prompt) (string, error) {
	f.mu.Lock()
	f.calls++
	f.prompts = append(f.prompts, p)
	f.mu.Unlock()
	return f.respond(p)
}

func (f *fakeGenerator) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeRasterizer struct {
	images [][]byte
	err    error
}

func (f fakeRasterizer) Rasterize(context.Context, convert.Source) ([][]byte, error) {
	return f.images, f.err
}

type flakyStore struct {
	*storage.MemoryStore
	failAt int
	n      int
}

func (f *flakyStore) Upload(ctx context.Context, bucket, path string, data []byte, ct string) (string, error) {
	f.n++
	if f.n == f.failAt {
		return "", errors.New("connection reset")
	}
	return f.MemoryStore.Upload(ctx, bucket, path, data, ct)
}

type fakeSpeech struct {
	got string
	err error
}

func (f *fakeSpeech) Synthesize(_ context.Context, text string) (speech.Audio, error) {
	f.got = text
	return speech.Audio{ContentType: "audio/mpeg", Base64: "AAA="}, f.err
}

type fakeImages map[string]string

func (f fakeImages) Search(_ context.Context, term string) (string, error) {
	if u, ok := f[term]; ok {
		return u, nil
	}
	return "", errors.New("lookup failed")
}

type fakeExtractor struct {
	text string
	err  error
}

func (f fakeExtractor) Extract(_ context.Context, _ []byte, ext string) (extract.Result, error) {
	if f.err != nil {
		return extract.Result{}, f.err
	}
	return extract.Result{Text: f.text, Method: ext}, nil
}

func noSleep(context.Context, time.Duration) error { return nil }

func newTestStages(deps Deps) *Stages {
	if deps.Retrier == nil {
		deps.Retrier = NewRetrier(5, noSleep, nil)
	}
	if deps.Store == nil {
		deps.Store = storage.NewMemoryStore("https://cdn.test")
	}
	deps.Now = func() time.Time { return time.Unix(1700000000, 0) }
	return NewStages(deps, nil)
}

func TestUploadAssets_PreservesOrder(t *testing.T) {
	store := storage.NewMemoryStore("https://cdn.test")
	s := newTestStages(Deps{Store: store, Bucket: "slides"})

	images := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	urls, err := s.UploadAssets(context.Background(), "courses/c1", images)
	require.NoError(t, err)
	require.Len(t, urls, 3)

	buckets, _ := store.ListBuckets(context.Background())
	assert.Equal(t, []string{"slides"}, buckets, "bucket is created before the first upload")

	stamp := time.Unix(1700000000, 0).UnixNano()
	for i, u := range urls {
		path := fmt.Sprintf("courses/c1/%d/slide-%03d.png", stamp, i+1)
		assert.Equal(t, "https://cdn.test/slides/"+path, u)
		got, ok := store.Object("slides", path)
		require.True(t, ok)
		assert.Equal(t, images[i], got)
	}
}

func TestUploadAssets_AnyFailureFailsStage(t *testing.T) {
	store := &flakyStore{MemoryStore: storage.NewMemoryStore(""), failAt: 2}
	s := newTestStages(Deps{Store: store})

	urls, err := s.UploadAssets(context.Background(), "jobs/x", [][]byte{[]byte("a"), []byte("b"), []byte("c")})
	assert.ErrorIs(t, err, ErrUploadFailed)
	assert.Nil(t, urls)
}

func TestPresentationSequence_OrderEndToEnd(t *testing.T) {
	images := [][]byte{[]byte("s1"), []byte("s2"), []byte("s3")}
	store := storage.NewMemoryStore("https://cdn.test")
	s := newTestStages(Deps{Converter: fakeRasterizer{images: images}, Store: store, Bucket: "b"})

	p := entity.Payload{SourceURL: "https://example.com/deck.pptx", CourseID: "c9"}
	st := NewState(uuid.New(), p)
	steps, err := s.Sequence(constants.JobTypePresentation, p)
	require.NoError(t, err)
	for _, step := range steps {
		require.NoError(t, step.Run(context.Background(), st))
	}

	require.Len(t, st.Result.SlideImages, 3)
	for i, u := range st.Result.SlideImages {
		path := strings.TrimPrefix(u, "https://cdn.test/b/")
		got, ok := store.Object("b", path)
		require.True(t, ok)
		assert.Equal(t, images[i], got, "slide %d", i+1)
	}
	assert.Nil(t, st.Images)
}

func TestRasterizePresentation_NoSlides(t *testing.T) {
	s := newTestStages(Deps{Converter: fakeRasterizer{}})
	_, err := s.RasterizePresentation(context.Background(), convert.Source{URL: "https://x/y.pptx"})
	assert.ErrorIs(t, err, ErrNoSlidesExtracted)
	assert.Contains(t, err.Error(), "no slides extracted")
}

func TestGenerateCourseContent_StripsFences(t *testing.T) {
	gen := &fakeGenerator{respond: func(llm.Prompt) (string, error) {
		return "```json\n" + courseJSON + "\n```", nil
	}}
	s := newTestStages(Deps{Generator: gen})

	c, err := s.GenerateCourseContent(context.Background(), "fire safety text", "")
	require.NoError(t, err)
	assert.Equal(t, "Fire safety basics", c.Summary)
	require.Len(t, c.Slides, 1)
	assert.Equal(t, "fire exit", c.Slides[0].ImageSearchTerm)
	require.Len(t, c.Quiz, 1)
	assert.Equal(t, 1, gen.Calls())
}

func TestGenerateCourseContent_GarbageExhaustsRetries(t *testing.T) {
	gen := &fakeGenerator{respond: func(llm.Prompt) (string, error) {
		return "Sorry, I can't do that.", nil
	}}
	s := newTestStages(Deps{Generator: gen})

	_, err := s.GenerateCourseContent(context.Background(), "short text", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoContentGenerated)
	assert.ErrorIs(t, err, ErrMalformedAIResponse)
	assert.Equal(t, 5, gen.Calls())
}

func TestGenerateCourseContent_MissingFieldsIsIncomplete(t *testing.T) {
	gen := &fakeGenerator{respond: func(llm.Prompt) (string, error) {
		return `{"summary":"only a summary"}`, nil
	}}
	s := newTestStages(Deps{Generator: gen, Retrier: NewRetrier(2, noSleep, nil)})

	_, err := s.GenerateCourseContent(context.Background(), "text", "")
	assert.ErrorIs(t, err, ErrIncompleteAIResponse)
	assert.Equal(t, 2, gen.Calls())
}

func TestGenerateCourseContent_SkipsFailedChunk(t *testing.T) {
	gen := &fakeGenerator{respond: func(p llm.Prompt) (string, error) {
		switch {
		case strings.Contains(p.User, "bbbb"):
			return "", &llm.UnavailableError{StatusCode: 503}
		case strings.Contains(p.User, "aaaa"):
			return `{"slides":[{"title":"A","htmlBody":"a"}],"quiz":[]}`, nil
		default:
			return `{"slides":[{"title":"C","htmlBody":"c"}],"quiz":[{"question":"q","options":["x","y"],"correctIndex":1}]}`, nil
		}
	}}
	s := newTestStages(Deps{Generator: gen, ChunkSize: 10})

	text := strings.Repeat("a", 10) + strings.Repeat("b", 10) + strings.Repeat("c", 10)
	c, err := s.GenerateCourseContent(context.Background(), text, "be brief")
	require.NoError(t, err)
	require.Len(t, c.Slides, 2)
	assert.Equal(t, "A", c.Slides[0].Title)
	assert.Equal(t, "C", c.Slides[1].Title)
	assert.Len(t, c.Quiz, 1)
	assert.Equal(t, 1+5+1, gen.Calls())
	assert.Contains(t, gen.prompts[0].System, "be brief")
}

func TestGenerateCourseContent_DropsOutOfRangeAnswers(t *testing.T) {
	gen := &fakeGenerator{respond: func(llm.Prompt) (string, error) {
		return `{"slides":[],"quiz":[{"question":"q","options":["x","y"],"correctIndex":5},{"question":"ok","options":["x","y"],"correctIndex":0}]}`, nil
	}}
	s := newTestStages(Deps{Generator: gen})

	c, err := s.GenerateCourseContent(context.Background(), "text", "")
	require.NoError(t, err)
	require.Len(t, c.Quiz, 1)
	assert.Equal(t, "ok", c.Quiz[0].Question)
}

func TestGenerateQuizFromText_SkipsFailedChunk(t *testing.T) {
	gen := &fakeGenerator{respond: func(p llm.Prompt) (string, error) {
		if strings.Contains(p.User, "bbbb") {
			return "no markers here", nil
		}
		return "Q: Pick one\n- no\n* yes\n", nil
	}}
	s := newTestStages(Deps{Generator: gen, ChunkSize: 4})

	q, err := s.GenerateQuizFromText(context.Background(), "aaaabbbbcccc")
	require.NoError(t, err)
	assert.Len(t, q.Questions, 2)
	assert.Equal(t, 1+5+1, gen.Calls())
}

func TestGenerateSummary(t *testing.T) {
	gen := &fakeGenerator{respond: func(p llm.Prompt) (string, error) {
		return "```\n{\"summary\":\"Short.\",\"keyPoints\":[\"one\"]}\n```", nil
	}}
	s := newTestStages(Deps{Generator: gen, ChunkSize: 5})

	sum, err := s.GenerateSummary(context.Background(), "0123456789")
	require.NoError(t, err)
	assert.Equal(t, "Short.\n\nShort.", sum.Summary)
	assert.Equal(t, []string{"one", "one"}, sum.KeyPoints)
}

func TestTextToSpeech_Truncates(t *testing.T) {
	sp := &fakeSpeech{}
	s := newTestStages(Deps{Speech: sp})

	audio, err := s.TextToSpeech(context.Background(), strings.Repeat("é", 2500))
	require.NoError(t, err)
	assert.Equal(t, "audio/mpeg", audio.ContentType)
	assert.Equal(t, 2000, utf8.RuneCountInString(sp.got))
}

func TestTextToSpeech_Unavailable(t *testing.T) {
	s := newTestStages(Deps{Speech: &fakeSpeech{err: &llm.UnavailableError{StatusCode: 503}}})
	_, err := s.TextToSpeech(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrSpeechServiceUnavailable)
}

func TestResolveSlideImages(t *testing.T) {
	s := newTestStages(Deps{Images: fakeImages{"fire exit": "https://img/1.jpg"}})
	slides := []Slide{
		{Title: "a", ImageSearchTerm: "fire exit"},
		{Title: "b", ImageSearchTerm: "unknown"},
		{Title: "c"},
	}
	got := s.ResolveSlideImages(context.Background(), slides)
	assert.Equal(t, "https://img/1.jpg", got[0].ImageURL)
	assert.Empty(t, got[1].ImageURL)
	assert.Empty(t, got[2].ImageURL)
}

func TestExtractText(t *testing.T) {
	s := newTestStages(Deps{Extractor: fakeExtractor{text: "  "}})
	_, err := s.ExtractText(context.Background(), []byte("x"), "a.docx")
	assert.ErrorIs(t, err, ErrExtractionEmpty)

	s = newTestStages(Deps{Extractor: fakeExtractor{err: fmt.Errorf("%w: .txt", extract.ErrUnsupportedFormat)}})
	_, err = s.ExtractText(context.Background(), []byte("x"), "a.txt")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestSequence(t *testing.T) {
	s := newTestStages(Deps{})
	names := func(steps []Step) []string {
		out := make([]string, 0, len(steps))
		for _, st := range steps {
			out = append(out, st.Name)
		}
		return out
	}
	doc := entity.Payload{Document: "ZG9j", Filename: "a.docx"}
	text := entity.Payload{Text: "hello"}

	cases := []struct {
		typ  constants.JobType
		p    entity.Payload
		want []string
	}{
		{constants.JobTypeFileUpload, doc, []string{"extract"}},
		{constants.JobTypePresentation, doc, []string{"rasterize", "upload"}},
		{constants.JobTypeContent, doc, []string{"extract", "generate_content", "resolve_images"}},
		{constants.JobTypeContent, text, []string{"generate_content", "resolve_images"}},
		{constants.JobTypeSummary, text, []string{"generate_summary"}},
		{constants.JobTypeSummary, entity.Payload{Text: "x", Narrate: true}, []string{"generate_summary", "narrate"}},
		{constants.JobTypeQuiz, doc, []string{"extract", "generate_quiz"}},
	}
	for _, tc := range cases {
		steps, err := s.Sequence(tc.typ, tc.p)
		require.NoError(t, err, tc.typ)
		assert.Equal(t, tc.want, names(steps), tc.typ)
		for _, st := range steps {
			assert.NotEmpty(t, st.Message)
		}
	}

	_, err := s.Sequence(constants.JobType("bogus"), text)
	assert.ErrorIs(t, err, ErrUnknownJobType)
}
