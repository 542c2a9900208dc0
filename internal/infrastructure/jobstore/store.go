// Package jobstore persists report-generation jobs across their lifecycle.
// Three backends are provided: in-memory for single-instance deployments,
// Redis for shared state, and Postgres for durable history.
package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the job does not exist or its
// retention window has lapsed. Callers treat both cases the same.
var ErrNotFound = errors.New("job not found")

// Status is the lifecycle state of a report job. There is no cancelled
// state; jobs run to completion or failure.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Job is one asynchronous report-generation run. Result holds the
// serialized report payload once the job completes; Error holds the
// failure message once it fails. The two are mutually exclusive.
type Job struct {
	ID        string          `json:"job_id"`
	Kind      string          `json:"report_type"`
	Month     int             `json:"month"`
	Year      int             `json:"year"`
	Status    Status          `json:"status"`
	Error     string          `json:"error,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Store persists jobs with a fixed retention TTL. Put overwrites any
// existing record for the same ID and restarts its retention clock.
type Store interface {
	Put(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	Close() error
}
