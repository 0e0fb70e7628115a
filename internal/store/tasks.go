// Package store is the optional task ledger. The orchestrator core owns no
// persisted state; this layer records submissions and terminal outcomes on
// behalf of the API and worker processes.
package store

import (
	"context"
	"errors"
	"time"

	"mediagen/internal/infra"
	"mediagen/internal/provider"
	"mediagen/internal/sqlinline"
	"mediagen/internal/status"
)

// ErrNoTask indicates that no matching task row exists or none is claimable.
var ErrNoTask = errors.New("store: no task available")

// TaskRecord is one ledger row.
type TaskRecord struct {
	ID           string             `json:"id"`
	Provider     string             `json:"provider"`
	Media        provider.MediaType `json:"media_type"`
	ModelID      string             `json:"model_id"`
	Prompt       string             `json:"prompt,omitempty"`
	Handle       string             `json:"-"`
	Status       string             `json:"status"`
	ErrorMessage string             `json:"error_message,omitempty"`
	OutputURLs   []string           `json:"output_urls"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// Ledger statuses. Tracking-side canonical statuses are not persisted per
// update; only the submission and the terminal outcome are recorded.
const (
	StatusQueued    = "QUEUED"
	StatusTracking  = "TRACKING"
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
)

// Store persists task records through the SQL runner.
type Store struct {
	runner *infra.SQLRunner
}

// New wires a store over the given runner.
func New(runner *infra.SQLRunner) *Store {
	return &Store{runner: runner}
}

// Create records a freshly submitted task as QUEUED.
func (s *Store) Create(ctx context.Context, rec TaskRecord) error {
	_, err := s.runner.Exec(ctx, sqlinline.QInsertTask,
		rec.ID, rec.Provider, string(rec.Media), rec.ModelID, rec.Prompt, rec.Handle)
	return err
}

// Claim atomically moves one QUEUED task to TRACKING and returns it. The
// claim uses row locking so that at most one tracker ever owns a task's
// continuation handle.
func (s *Store) Claim(ctx context.Context) (TaskRecord, error) {
	row := s.runner.QueryRow(ctx, sqlinline.QClaimQueuedTask)
	var rec TaskRecord
	var media string
	if err := row.Scan(&rec.ID, &rec.Provider, &media, &rec.ModelID, &rec.Handle); err != nil {
		if infra.IsNoRows(err) {
			return TaskRecord{}, ErrNoTask
		}
		return TaskRecord{}, err
	}
	rec.Media = provider.MediaType(media)
	rec.Status = StatusTracking
	return rec, nil
}

// Finish records the terminal outcome of a tracked task.
func (s *Store) Finish(ctx context.Context, taskID string, final status.Update) error {
	st := StatusSucceeded
	if final.Status != status.KeyComplete {
		st = StatusFailed
	}
	urls := final.OutputURLs
	if urls == nil {
		urls = []string{}
	}
	_, err := s.runner.Exec(ctx, sqlinline.QFinishTask, taskID, st, final.ErrorMessage, urls)
	return err
}

// Get fetches one ledger row by task id.
func (s *Store) Get(ctx context.Context, taskID string) (TaskRecord, error) {
	row := s.runner.QueryRow(ctx, sqlinline.QSelectTask, taskID)
	var rec TaskRecord
	var media string
	if err := row.Scan(
		&rec.ID, &rec.Provider, &media, &rec.ModelID, &rec.Prompt, &rec.Handle,
		&rec.Status, &rec.ErrorMessage, &rec.OutputURLs, &rec.CreatedAt, &rec.UpdatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return TaskRecord{}, ErrNoTask
		}
		return TaskRecord{}, err
	}
	rec.Media = provider.MediaType(media)
	return rec, nil
}
