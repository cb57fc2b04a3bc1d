package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// JobType discriminates queue job bodies.
type JobType string

const (
	// JobProcessFile fetches a payload file and reconciles its ids.
	JobProcessFile JobType = "process_file"
	// JobProcessRemovedFile drains a removed file's ids and deletes the row.
	JobProcessRemovedFile JobType = "process_removed_file"
)

// Job is the queue message body exchanged between the discoverer and the
// workers. QueuedAt is serialized as UTC RFC 3339.
type Job struct {
	Type        JobType   `json:"type"`
	UserID      string    `json:"user_id"`
	Site        string    `json:"site"`
	FileURL     string    `json:"file_url"`
	SchemaMap   string    `json:"schema_map,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	QueuedAt    time.Time `json:"queued_at"`
}

// NewJob builds a job stamped with the current UTC time.
func NewJob(t JobType, userID, site, fileURL string) *Job {
	return &Job{
		Type:     t,
		UserID:   userID,
		Site:     site,
		FileURL:  fileURL,
		QueuedAt: time.Now().UTC(),
	}
}

// Encode serializes the job for the queue.
func (j *Job) Encode() ([]byte, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job: %w", err)
	}
	return data, nil
}

// DecodeJob parses a queue message body. It does not validate semantics
// beyond JSON well-formedness; workers drop jobs with unknown types or a
// missing user_id.
func DecodeJob(data []byte) (*Job, error) {
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("failed to decode job: %w", err)
	}
	return &j, nil
}

// Valid reports whether the job carries a known type and a tenant.
func (j *Job) Valid() bool {
	if j.UserID == "" {
		return false
	}
	return j.Type == JobProcessFile || j.Type == JobProcessRemovedFile
}
