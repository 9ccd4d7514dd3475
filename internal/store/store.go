// Package store persists Job records in Redis under the
// "migration:job:<job_id>" namespace, with UpdateTenantResult applied
// atomically via a server-side Lua script so concurrent tenant workers
// never race on the completed/successful/failed counters.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mirajehossain/tenantmigrator/internal/job"
	"github.com/mirajehossain/tenantmigrator/internal/orcherr"
)

const (
	jobPrefix    = "migration:job:"
	tenantPrefix = "migration:tenant:" // reserved namespace, unused by current operations
	jobTTL       = 7 * 24 * time.Hour
)

// StateStore is the durable Job record backend (C3).
type StateStore interface {
	CreateJob(ctx context.Context, j *job.Job) error
	GetJob(ctx context.Context, jobID string) (*job.Job, error)
	UpdateJobStatus(ctx context.Context, jobID string, status job.Status) error
	UpdateTenantResult(ctx context.Context, jobID string, result job.TenantResult) (*job.Job, error)
	ListJobs(ctx context.Context, limit int) ([]*job.Job, error)
	DeleteJob(ctx context.Context, jobID string) error
}

// Redis implements StateStore against a redis.Client.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func jobKey(jobID string) string { return jobPrefix + jobID }

// Ping reports whether the Redis connection is reachable, used by the
// health endpoint.
func (s *Redis) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Redis) CreateJob(ctx context.Context, j *job.Job) error {
	b, err := json.Marshal(j)
	if err != nil {
		return orcherr.NewStoreError("marshal job", err)
	}
	if err := s.client.Set(ctx, jobKey(j.JobID), b, jobTTL).Err(); err != nil {
		return orcherr.NewStoreError("create job "+j.JobID, err)
	}
	return nil
}

func (s *Redis) GetJob(ctx context.Context, jobID string) (*job.Job, error) {
	raw, err := s.client.Get(ctx, jobKey(jobID)).Bytes()
	if err == redis.Nil {
		return nil, orcherr.NewNotFoundError(jobID)
	}
	if err != nil {
		return nil, orcherr.NewStoreError("get job "+jobID, err)
	}
	var j job.Job
	if err := json.Unmarshal(raw, &j); err != nil {
		return nil, orcherr.NewStoreError("unmarshal job "+jobID, err)
	}
	return &j, nil
}

func (s *Redis) UpdateJobStatus(ctx context.Context, jobID string, status job.Status) error {
	j, err := s.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	j.Status = status
	if status.Terminal() {
		now := time.Now().UTC()
		j.CompletedAt = &now
	}
	return s.CreateJob(ctx, j)
}

// updateTenantResultScript performs the read-modify-write described in
// §4.3 atomically: it reads the job, folds result into
// tenant_results/completed/successful/failed, resolves the terminal
// status when every tenant has reported, and writes the job back with
// its TTL refreshed, all inside one EVAL so two tenant workers racing
// on the same job_id can never interleave. A tenant_id already present
// in tenant_results is a duplicate flush (retry after a transient store
// error, redelivery) and must not be counted twice, per §8's
// duplicate-detection-by-tenant_id requirement.
const updateTenantResultScript = `
local key = KEYS[1]
local ttl = tonumber(ARGV[1])
local tenant_id = ARGV[2]
local result_json = ARGV[3]
local result_status = ARGV[4]

local raw = redis.call("GET", key)
if raw == false then
  return nil
end

local job = cjson.decode(raw)
local already_reported = job.tenant_results[tenant_id] ~= nil
job.tenant_results[tenant_id] = cjson.decode(result_json)

if not already_reported then
  job.completed = job.completed + 1
  if result_status == "success" then
    job.successful = job.successful + 1
  elseif result_status == "failed" then
    job.failed = job.failed + 1
  end
end

if job.completed >= job.total then
  if job.failed == 0 then
    job.status = "success"
  elseif job.successful == 0 then
    job.status = "failed"
  else
    job.status = "partial"
  end
  job.completed_at = ARGV[5]
elseif job.status == "pending" then
  job.status = "running"
end

local encoded = cjson.encode(job)
redis.call("SETEX", key, ttl, encoded)
return encoded
`

func (s *Redis) UpdateTenantResult(ctx context.Context, jobID string, result job.TenantResult) (*job.Job, error) {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return nil, orcherr.NewStoreError("marshal tenant result", err)
	}
	completedAt := time.Now().UTC().Format(time.RFC3339Nano)

	raw, err := s.client.Eval(ctx, updateTenantResultScript, []string{jobKey(jobID)},
		int(jobTTL.Seconds()), result.TenantID, string(resultJSON), string(result.Status), completedAt,
	).Result()
	if err != nil {
		return nil, orcherr.NewStoreError("update tenant result for job "+jobID, err)
	}
	if raw == nil {
		return nil, orcherr.NewNotFoundError(jobID)
	}
	var j job.Job
	if err := json.Unmarshal([]byte(raw.(string)), &j); err != nil {
		return nil, orcherr.NewStoreError("unmarshal updated job "+jobID, err)
	}
	return &j, nil
}

func (s *Redis) ListJobs(ctx context.Context, limit int) ([]*job.Job, error) {
	keys, err := s.client.Keys(ctx, jobPrefix+"*").Result()
	if err != nil {
		return nil, orcherr.NewStoreError("list job keys", err)
	}
	jobs := make([]*job.Job, 0, len(keys))
	for _, key := range keys {
		raw, err := s.client.Get(ctx, key).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, orcherr.NewStoreError("get job for list: "+key, err)
		}
		var j job.Job
		if err := json.Unmarshal(raw, &j); err != nil {
			return nil, orcherr.NewStoreError("unmarshal job for list: "+key, err)
		}
		jobs = append(jobs, &j)
	}
	sortJobsByStartedAtDesc(jobs)
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (s *Redis) DeleteJob(ctx context.Context, jobID string) error {
	n, err := s.client.Del(ctx, jobKey(jobID)).Result()
	if err != nil {
		return orcherr.NewStoreError("delete job "+jobID, err)
	}
	if n == 0 {
		return orcherr.NewNotFoundError(jobID)
	}
	return nil
}

func sortJobsByStartedAtDesc(jobs []*job.Job) {
	for i := 1; i < len(jobs); i++ {
		for j := i; j > 0 && jobs[j].StartedAt.After(jobs[j-1].StartedAt); j-- {
			jobs[j], jobs[j-1] = jobs[j-1], jobs[j]
		}
	}
}
