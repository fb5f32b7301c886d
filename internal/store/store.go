package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/mailsort/internal/model"
)

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// RunFilter controls filtering and pagination for run history queries.
type RunFilter struct {
	Outcome *model.Outcome
	Server  *string
	Limit   int
	Offset  int
}

// Store defines the persistence interface for fetch run history.
type Store interface {
	// RecordRun stores a finished run and its summaries. A run without an
	// ID is given a new UUID.
	RecordRun(ctx context.Context, run model.Run) error

	// GetRuns returns runs newest first, without summaries.
	GetRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// GetRunByID returns a run with its summaries in display order.
	GetRunByID(ctx context.Context, id string) (*model.Run, error)

	// PruneRuns deletes all but the newest keep runs.
	PruneRuns(ctx context.Context, keep int) (int64, error)
}

// Retention records runs into Store and then prunes it down to the newest
// Keep runs. Keep <= 0 disables pruning.
type Retention struct {
	Store Store
	Keep  int
}

// RecordRun stores run and applies the retention limit.
func (r Retention) RecordRun(ctx context.Context, run model.Run) error {
	if err := r.Store.RecordRun(ctx, run); err != nil {
		return err
	}
	if r.Keep <= 0 {
		return nil
	}
	if _, err := r.Store.PruneRuns(ctx, r.Keep); err != nil {
		return fmt.Errorf("applying history retention: %w", err)
	}
	return nil
}
