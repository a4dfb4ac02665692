package pipeline

import (
	"errors"

	"github.com/joseph-ayodele/course-jobs/internal/convert"
	"github.com/joseph-ayodele/course-jobs/internal/extract"
)

// Stage failures. The orchestrator records err.Error() on the job, so the
// messages are what pollers read.
var (
	ErrUnsupportedFormat        = extract.ErrUnsupportedFormat
	ErrExtractionEmpty          = errors.New("no text could be extracted from the document")
	ErrConversionFailed         = convert.ErrConversionFailed
	ErrNoSlidesExtracted        = convert.ErrNoSlidesExtracted
	ErrUploadFailed             = errors.New("asset upload failed")
	ErrMalformedAIResponse      = errors.New("malformed AI response")
	ErrIncompleteAIResponse     = errors.New("incomplete AI response")
	ErrNoContentGenerated       = errors.New("no content generated")
	ErrSpeechServiceUnavailable = errors.New("speech service unavailable")
	ErrUnknownJobType           = errors.New("unknown job type")
	ErrMissingInput             = errors.New("missing input")
)
