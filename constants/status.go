package constants

// JobStatus is the canonical status for rows in jobs.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed" // terminal
	JobStatusFailed    JobStatus = "failed"    // terminal
)

// TerminalStatuses never transition again once written.
var TerminalStatuses = []JobStatus{JobStatusCompleted, JobStatusFailed}

// IsTerminal reports whether s is completed or failed.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

func (s JobStatus) String() string { return string(s) }
