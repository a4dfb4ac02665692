package core

import (
	"strings"

	"github.com/joseph-ayodele/course-jobs/constants"
	"github.com/joseph-ayodele/course-jobs/internal/common"
	"github.com/joseph-ayodele/course-jobs/internal/entity"
)

const (
	maxInstructions = 4000
	maxCourseID     = 128
	maxFilename     = 255
)

// validatePayload checks the shape each job type needs before anything is stored.
func validatePayload(t constants.JobType, p entity.Payload) error {
	v := common.NewValidator()
	v.Field("course_id", p.CourseID, common.MaxLength(maxCourseID))
	v.Field("custom_instructions", p.CustomInstructions, common.MaxLength(maxInstructions))

	document := func() {
		v.Field("filename", p.Filename, common.Required, common.MaxLength(maxFilename))
		v.Field("document", p.Document, common.Required, common.Base64)
	}

	switch t {
	case constants.JobTypeFileUpload:
		document()

	case constants.JobTypePresentation:
		if p.HasDocument() {
			document()
			_, ok := constants.PresentationExtensions[p.Ext()]
			v.Check(p.Filename == "" || ok, "filename", "must be a presentation (pptx, ppt, odp, key, pdf)")
		} else {
			v.Field("source_url", p.SourceURL, common.Required, common.HTTPURL)
		}

	case constants.JobTypeContent, constants.JobTypeSummary, constants.JobTypeQuiz:
		if p.HasDocument() {
			document()
		} else {
			v.Check(strings.TrimSpace(p.Text) != "", "text", "is required when no document is given")
		}
	}
	return common.ValidateAndReturnError(v)
}
