// Package query implements the read-only Query Interface (C6) over job
// state: GetJob with a computed progress block, ListJobs, and
// DeleteJob.
package query

import (
	"context"

	"github.com/mirajehossain/tenantmigrator/internal/job"
	"github.com/mirajehossain/tenantmigrator/internal/store"
)

// Progress summarizes a job's completion for API consumers.
type Progress struct {
	Total      int     `json:"total"`
	Completed  int     `json:"completed"`
	Successful int     `json:"successful"`
	Failed     int     `json:"failed"`
	Percent    float64 `json:"percent"`
}

// JobView is GetJob's response shape: the Job plus its computed Progress.
type JobView struct {
	*job.Job
	Progress Progress `json:"progress"`
}

// Interface exposes the three read-only operations.
type Interface struct {
	Store store.StateStore
}

func New(st store.StateStore) *Interface {
	return &Interface{Store: st}
}

// GetJob returns the job and its computed progress. A missing job
// surfaces the store's NotFoundError unchanged.
func (q *Interface) GetJob(ctx context.Context, jobID string) (*JobView, error) {
	j, err := q.Store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &JobView{
		Job: j,
		Progress: Progress{
			Total:      j.Total,
			Completed:  j.Completed,
			Successful: j.Successful,
			Failed:     j.Failed,
			Percent:    job.Percent(j.Completed, j.Total),
		},
	}, nil
}

// ListJobs returns jobs sorted by started_at descending, truncated to limit.
func (q *Interface) ListJobs(ctx context.Context, limit int) ([]*job.Job, error) {
	return q.Store.ListJobs(ctx, limit)
}

// DeleteJob removes a job record.
func (q *Interface) DeleteJob(ctx context.Context, jobID string) error {
	return q.Store.DeleteJob(ctx, jobID)
}
