package constants

import "fmt"

// JobType selects the stage sequence a job runs.
type JobType string

const (
	JobTypeFileUpload   JobType = "file-upload-processing"
	JobTypePresentation JobType = "presentation-processing"
	JobTypeContent      JobType = "content-generation"
	JobTypeSummary      JobType = "summary-generation"
	JobTypeQuiz         JobType = "quiz-parsing"
)

// JobTypes lists every accepted job type.
var JobTypes = []JobType{
	JobTypeFileUpload,
	JobTypePresentation,
	JobTypeContent,
	JobTypeSummary,
	JobTypeQuiz,
}

// ParseJobType returns an error for anything outside JobTypes.
func ParseJobType(s string) (JobType, error) {
	for _, t := range JobTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown job type %q", s)
}

func (t JobType) String() string { return string(t) }
