package entity

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/joseph-ayodele/course-jobs/constants"
)

// Job represents a row of the jobs table for data transfer between layers.
type Job struct {
	ID              uuid.UUID           `json:"id"`
	Type            constants.JobType   `json:"type"`
	Status          constants.JobStatus `json:"status"`
	Payload         json.RawMessage     `json:"payload"`
	Result          json.RawMessage     `json:"result,omitempty"`
	Error           *string             `json:"error,omitempty"`
	Message         *string             `json:"message,omitempty"`
	CreatedBy       string              `json:"created_by"`
	RelatedEntityID *string             `json:"related_entity_id,omitempty"`
	Attempts        int                 `json:"attempts"`
	Version         int64               `json:"version"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// JobStatusView is what pollers see.
type JobStatusView struct {
	ID        uuid.UUID           `json:"id"`
	Status    constants.JobStatus `json:"status"`
	Message   *string             `json:"message,omitempty"`
	Result    json.RawMessage     `json:"result,omitempty"`
	Error     *string             `json:"error,omitempty"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// StatusView projects the poller-visible fields.
func (j *Job) StatusView() JobStatusView {
	return JobStatusView{
		ID:        j.ID,
		Status:    j.Status,
		Message:   j.Message,
		Result:    j.Result,
		Error:     j.Error,
		UpdatedAt: j.UpdatedAt,
	}
}

// Payload is the request body shared by all job types. Which fields are
// required depends on the type.
type Payload struct {
	CourseID           string `json:"course_id,omitempty"`
	Filename           string `json:"filename,omitempty"`
	Document           string `json:"document,omitempty"` // base64
	SourceURL          string `json:"source_url,omitempty"`
	Text               string `json:"text,omitempty"`
	CustomInstructions string `json:"custom_instructions,omitempty"`
	Narrate            bool   `json:"narrate,omitempty"`
}

// HasDocument reports whether an inline document was supplied.
func (p Payload) HasDocument() bool { return p.Document != "" }

// DocumentBytes decodes the inline document.
func (p Payload) DocumentBytes() ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(p.Document)
	if err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return b, nil
}

// Ext returns the normalized extension of Filename.
func (p Payload) Ext() string {
	return constants.NormalizeExt(filepath.Ext(p.Filename))
}

// DecodePayload unmarshals a stored payload.
func DecodePayload(raw json.RawMessage) (Payload, error) {
	var p Payload
	if len(raw) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("decode payload: %w", err)
	}
	return p, nil
}
