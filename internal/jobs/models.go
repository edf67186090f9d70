package jobs

import "time"

// Job is one submitted render job.
type Job struct {
	ID          int64     `json:"-"`
	JobID       string    `json:"job_id"`
	Title       string    `json:"title"`
	Command     string    `json:"command"`
	Source      string    `json:"source"`
	Destination string    `json:"destination"`
	EntityPath  string    `json:"entity_path,omitempty"`
	Args        []string  `json:"args,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}
