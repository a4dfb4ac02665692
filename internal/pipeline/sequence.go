package pipeline

import (
	"context"
	"fmt"

	"github.com/joseph-ayodele/course-jobs/constants"
	"github.com/joseph-ayodele/course-jobs/internal/convert"
	"github.com/joseph-ayodele/course-jobs/internal/entity"
)

// Step is one stage bound to the job state. Message is shown to pollers
// while the step runs.
type Step struct {
	Name    string
	Message string
	Run     func(ctx context.Context, st *State) error
}

// Sequence returns the ordered steps for a job type. Optional steps are
// included based on the payload.
func (s *Stages) Sequence(t constants.JobType, p entity.Payload) ([]Step, error) {
	switch t {
	case constants.JobTypeFileUpload:
		return []Step{s.extractStep(true)}, nil

	case constants.JobTypePresentation:
		return []Step{
			{Name: "rasterize", Message: "Rendering slides...", Run: s.rasterizeStep},
			{Name: "upload", Message: "Uploading slides...", Run: s.uploadStep},
		}, nil

	case constants.JobTypeContent:
		steps := s.optionalExtract(p)
		return append(steps,
			Step{Name: "generate_content", Message: "Generating course content...", Run: s.contentStep},
			Step{Name: "resolve_images", Message: "Finding slide images...", Run: s.imagesStep},
		), nil

	case constants.JobTypeSummary:
		steps := append(s.optionalExtract(p),
			Step{Name: "generate_summary", Message: "Summarizing...", Run: s.summaryStep})
		if p.Narrate {
			steps = append(steps, Step{Name: "narrate", Message: "Recording narration...", Run: s.speechStep})
		}
		return steps, nil

	case constants.JobTypeQuiz:
		return append(s.optionalExtract(p),
			Step{Name: "generate_quiz", Message: "Writing quiz questions...", Run: s.quizStep},
		), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownJobType, string(t))
}

func (s *Stages) optionalExtract(p entity.Payload) []Step {
	if p.HasDocument() {
		return []Step{s.extractStep(false)}
	}
	return nil
}

// extractStep reads the payload document into st.Text; publish also exposes it in the result.
func (s *Stages) extractStep(publish bool) Step {
	return Step{
		Name:    "extract",
		Message: "Extracting text...",
		Run: func(ctx context.Context, st *State) error {
			doc, err := st.Payload.DocumentBytes()
			if err != nil {
				return err
			}
			res, err := s.ExtractText(ctx, doc, st.Payload.Filename)
			if err != nil {
				return err
			}
			st.Text = res.Text
			if publish {
				st.Result.Text = res.Text
				st.Result.Pages = res.Pages
			}
			return nil
		},
	}
}

func (s *Stages) rasterizeStep(ctx context.Context, st *State) error {
	src := convert.Source{Filename: st.Payload.Filename, URL: st.Payload.SourceURL}
	if st.Payload.HasDocument() {
		doc, err := st.Payload.DocumentBytes()
		if err != nil {
			return err
		}
		src.Data, src.URL = doc, ""
	}
	images, err := s.RasterizePresentation(ctx, src)
	if err != nil {
		return err
	}
	st.Images = images
	return nil
}

func (s *Stages) uploadStep(ctx context.Context, st *State) error {
	prefix := "jobs/" + st.JobID.String()
	if st.Payload.CourseID != "" {
		prefix = "courses/" + st.Payload.CourseID
	}
	urls, err := s.UploadAssets(ctx, prefix, st.Images)
	if err != nil {
		return err
	}
	st.Result.SlideImages = urls
	st.Images = nil
	return nil
}

func (s *Stages) contentStep(ctx context.Context, st *State) error {
	c, err := s.GenerateCourseContent(ctx, st.Text, st.Payload.CustomInstructions)
	if err != nil {
		return err
	}
	st.Result.Slides, st.Result.Quiz, st.Result.Summary = c.Slides, c.Quiz, c.Summary
	return nil
}

func (s *Stages) imagesStep(ctx context.Context, st *State) error {
	st.Result.Slides = s.ResolveSlideImages(ctx, st.Result.Slides)
	return nil
}

func (s *Stages) summaryStep(ctx context.Context, st *State) error {
	sum, err := s.GenerateSummary(ctx, st.Text)
	if err != nil {
		return err
	}
	st.Result.Summary, st.Result.KeyPoints = sum.Summary, sum.KeyPoints
	return nil
}

func (s *Stages) speechStep(ctx context.Context, st *State) error {
	audio, err := s.TextToSpeech(ctx, st.Result.Summary)
	if err != nil {
		return err
	}
	st.Result.Audio = &audio
	return nil
}

func (s *Stages) quizStep(ctx context.Context, st *State) error {
	q, err := s.GenerateQuizFromText(ctx, st.Text)
	if err != nil {
		return err
	}
	st.Result.Quiz = q.Questions
	return nil
}
