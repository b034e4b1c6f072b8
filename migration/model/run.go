package model

const (
	RunStatusPending  = "pending"
	RunStatusRunning  = "running"
	RunStatusComplete = "complete"
	RunStatusFailed   = "failed"
)

// Run a tracked migration run
type Run struct {
	ID        int
	Code      string // Plan name, or list code and file name
	File      string
	Checksum  string
	Status    string
	Total     int
	Success   int
	Tolerated int
	Skipped   int
	Fatal     int
	Err       string
	CreatedOn string
	UpdatedOn string
}

// IsComplete whether the run finished without fatal errors and all probes passed
func (r *Run) IsComplete() bool {
	return r.Status == RunStatusComplete
}
