package mirror

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mirrorhooks/pkg/options"
	"mirrorhooks/pkg/payload"
)

// Job is a queued sync. It carries only what the webhook supplied; the
// consuming process resolves options from its own tree.
type Job struct {
	ID          string                 `json:"id"`
	RequestID   string                 `json:"request_id,omitempty"`
	Target      Target                 `json:"target"`
	Data        map[string]interface{} `json:"data"`
	Metadata    payload.Metadata       `json:"metadata"`
	Change      Change                 `json:"change"`
	SubmittedAt time.Time              `json:"submitted_at"`
}

// NewJob snapshots repo and change into a Job.
func NewJob(repo *Repository, change Change, requestID string) Job {
	return Job{
		ID:          uuid.NewString(),
		RequestID:   requestID,
		Target:      repo.Target(),
		Data:        repo.Payload().Raw(),
		Metadata:    repo.Payload().Metadata(),
		Change:      change,
		SubmittedAt: time.Now().UTC(),
	}
}

func (j Job) Encode() ([]byte, error) {
	return json.Marshal(j)
}

// DecodeJob parses an encoded Job and checks its identity fields.
func DecodeJob(data []byte) (Job, error) {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return Job{}, fmt.Errorf("decode job: %w", err)
	}
	if job.ID == "" {
		return Job{}, fmt.Errorf("decode job: id is missing")
	}
	if err := job.Target.Validate(); err != nil {
		return Job{}, fmt.Errorf("decode job %s: %w", job.ID, err)
	}
	return job, nil
}

// Repository rebuilds the controller for the job with options resolved
// from tree.
func (j Job) Repository(tree map[string]interface{}, extra ...Option) (*Repository, error) {
	opts := options.Resolve(tree, j.Target.Domain, j.Target.Owner, j.Target.Name)
	return New(j.Target, payload.New(j.Data, j.Metadata), opts, extra...)
}
