package constants

// JobStatus is the canonical status for rows in parse_jobs.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusQueued    JobStatus = "QUEUED"    // optional: queued for processing
	JobStatusRunning   JobStatus = "RUNNING"   // in progress
	JobStatusParsed    JobStatus = "PARSED"    // a DRM matched and extraction succeeded
	JobStatusNoMatch   JobStatus = "NO_MATCH"  // no DRM identifiers matched the text
	JobStatusRejected  JobStatus = "REJECTED"  // DRM matched but uniqueness fields were missing
	JobStatusDuplicate JobStatus = "DUPLICATE" // same uniqueness key as an earlier parsed job
	JobStatusFailed    JobStatus = "FAILED"    // terminal failure (I/O or broken DRM)
)

var allJobStatuses = []JobStatus{
	JobStatusQueued,
	JobStatusRunning,
	JobStatusParsed,
	JobStatusNoMatch,
	JobStatusRejected,
	JobStatusDuplicate,
	JobStatusFailed,
}

// IsValidJobStatus reports whether s is one of the stored status values.
func IsValidJobStatus(s string) bool {
	for _, st := range allJobStatuses {
		if string(st) == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a job in this status will not change again.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusQueued, JobStatusRunning:
		return false
	}
	return true
}
