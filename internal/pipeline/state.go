package pipeline

import (
	"github.com/google/uuid"

	"github.com/joseph-ayodele/course-jobs/internal/entity"
	"github.com/joseph-ayodele/course-jobs/internal/speech"
)

type Slide struct {
	Title           string `json:"title"`
	HTMLBody        string `json:"htmlBody"`
	ImageSearchTerm string `json:"imageSearchTerm,omitempty"`
	ImageURL        string `json:"imageUrl,omitempty"`
}

type QuizQuestion struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
}

// CourseContent is the union of generated slides and questions.
type CourseContent struct {
	Summary string         `json:"summary,omitempty"`
	Slides  []Slide        `json:"slides"`
	Quiz    []QuizQuestion `json:"quiz"`
}

type Quiz struct {
	Questions []QuizQuestion `json:"questions"`
}

type Summary struct {
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"keyPoints,omitempty"`
}

// Result is what a completed job exposes through polling.
type Result struct {
	Text        string         `json:"text,omitempty"`
	Pages       int            `json:"pages,omitempty"`
	SlideImages []string       `json:"slide_images,omitempty"`
	Slides      []Slide        `json:"slides,omitempty"`
	Quiz        []QuizQuestion `json:"quiz,omitempty"`
	Summary     string         `json:"summary,omitempty"`
	KeyPoints   []string       `json:"key_points,omitempty"`
	Audio       *speech.Audio  `json:"audio,omitempty"`
}

// State is threaded through a job's steps. Only Result is persisted.
type State struct {
	JobID   uuid.UUID
	Payload entity.Payload
	Text    string
	Images  [][]byte
	Result  Result
}

func NewState(jobID uuid.UUID, p entity.Payload) *State {
	return &State{JobID: jobID, Payload: p, Text: p.Text}
}
