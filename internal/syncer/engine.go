// Package syncer reconciles local campaign state with an advertising
// platform through an Adapter.
package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dougwithseismic/dotoro-ads-sub008/internal/model"
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/observability"
)

// DefaultHistorySize is how many runs GetSyncHistory remembers.
const DefaultHistorySize = 10

// Engine executes operations one at a time against its adapter. Runs may be
// started concurrently; only the history is shared between them.
type Engine struct {
	adapter     Adapter
	historySize int

	mu      sync.Mutex
	history []HistoryEntry
}

type Option func(*Engine)

func WithHistorySize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.historySize = n
		}
	}
}

func New(adapter Adapter, opts ...Option) *Engine {
	e := &Engine{adapter: adapter, historySize: DefaultHistorySize}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Diff is a convenience for the package-level Diff.
func (e *Engine) Diff(local []model.LocalCampaign, platform []model.PlatformCampaign, opts DiffOptions) DiffResult {
	return Diff(local, platform, opts)
}

func (e *Engine) GenerateOperations(d DiffResult) []Operation {
	return GenerateOperations(d)
}

// PlatformState fetches the given campaigns with their children.
func (e *Engine) PlatformState(ctx context.Context, platformIDs []string) ([]model.PlatformCampaign, error) {
	out := make([]model.PlatformCampaign, 0, len(platformIDs))
	for _, id := range platformIDs {
		c, err := e.adapter.FetchCampaign(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("fetch campaign %s: %w", id, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// ExecuteSync applies ops strictly in order. In transaction mode the first
// failure stops the run and every create applied so far is deleted again in
// reverse order. Otherwise failures are recorded and the run continues.
// A cancelled context abandons the remaining operations.
func (e *Engine) ExecuteSync(ctx context.Context, ops []Operation, opts ExecuteOptions) SyncResult {
	res := SyncResult{
		RunID:     uuid.NewString(),
		Success:   true,
		Executed:  []ExecutedOperation{},
		Errors:    []*OperationError{},
		StartedAt: time.Now().UTC(),
	}
	logger := log.With().Str("run_id", res.RunID).Logger()
	logger.Info().Int("operations", len(ops)).Bool("transaction_mode", opts.TransactionMode).Msg("sync started")

	assigned := map[string]string{}
	var created []ExecutedOperation

	for i, op := range ops {
		if err := ctx.Err(); err != nil {
			res.Success = false
			res.Aborted = true
			res.Errors = append(res.Errors, &OperationError{Index: i, Op: op, Err: err})
			logger.Warn().Err(err).Int("remaining", len(ops)-i).Msg("sync abandoned")
			if opts.TransactionMode {
				res.RolledBack = true
				res.RollbackErrors = e.rollback(ctx, created)
			}
			break
		}

		pid, err := e.apply(ctx, op, assigned)
		if err != nil {
			observability.SyncOperations.WithLabelValues(string(op.Type), string(op.EntityType), "error").Inc()
			opErr := &OperationError{Index: i, Op: op, Err: err}
			res.Errors = append(res.Errors, opErr)
			res.Success = false
			logger.Warn().Err(err).Int("index", i).Str("op", op.String()).Msg("operation failed")
			if opts.TransactionMode {
				res.RolledBack = true
				res.RollbackErrors = e.rollback(ctx, created)
				break
			}
			continue
		}

		observability.SyncOperations.WithLabelValues(string(op.Type), string(op.EntityType), "ok").Inc()
		logger.Debug().Int("index", i).Str("op", op.String()).Str("platform_id", pid).Msg("operation applied")
		ex := ExecutedOperation{Operation: op, PlatformID: pid}
		res.Executed = append(res.Executed, ex)
		if op.Type == OpCreate {
			if op.LocalID != "" {
				assigned[op.LocalID] = pid
			}
			created = append(created, ex)
		}
	}

	res.FinishedAt = time.Now().UTC()
	entry := HistoryEntry{
		RunID:           res.RunID,
		StartedAt:       res.StartedAt,
		FinishedAt:      res.FinishedAt,
		TransactionMode: opts.TransactionMode,
		Success:         res.Success,
		RolledBack:      res.RolledBack,
		OperationCount:  len(ops),
		ExecutedCount:   len(res.Executed),
		ErrorCount:      len(res.Errors),
	}
	e.record(entry)

	observability.SyncRuns.WithLabelValues(entry.Status()).Inc()
	observability.SyncRunDuration.Observe(res.FinishedAt.Sub(res.StartedAt).Seconds())
	logger.Info().
		Str("status", entry.Status()).
		Int("executed", entry.ExecutedCount).
		Int("errors", entry.ErrorCount).
		Msg("sync finished")
	return res
}

func (e *Engine) apply(ctx context.Context, op Operation, assigned map[string]string) (string, error) {
	parent := func() (string, error) {
		if op.ParentPlatformID != "" {
			return op.ParentPlatformID, nil
		}
		if id, ok := assigned[op.ParentLocalID]; ok {
			return id, nil
		}
		return "", fmt.Errorf("%w: %s", ErrParentNotSynced, op.ParentLocalID)
	}

	switch op.EntityType {
	case model.EntityCampaign:
		if op.Type == OpDelete {
			return op.PlatformID, e.adapter.DeleteCampaign(ctx, op.PlatformID)
		}
		if op.Campaign == nil {
			return "", ErrMissingPayload
		}
		p := CampaignPayload{LocalID: op.LocalID, Name: op.Name, Data: *op.Campaign}
		if op.Type == OpUpdate {
			return op.PlatformID, e.adapter.UpdateCampaign(ctx, op.PlatformID, p)
		}
		r, err := e.adapter.CreateCampaign(ctx, p)
		return r.ID, err

	case model.EntityAdGroup:
		if op.Type == OpDelete {
			return op.PlatformID, e.adapter.DeleteAdGroup(ctx, op.PlatformID)
		}
		if op.AdGroup == nil {
			return "", ErrMissingPayload
		}
		p := AdGroupPayload{LocalID: op.LocalID, CampaignID: op.ParentPlatformID, Name: op.Name, Data: *op.AdGroup}
		if op.Type == OpUpdate {
			return op.PlatformID, e.adapter.UpdateAdGroup(ctx, op.PlatformID, p)
		}
		id, err := parent()
		if err != nil {
			return "", err
		}
		p.CampaignID = id
		r, err := e.adapter.CreateAdGroup(ctx, p)
		return r.ID, err

	case model.EntityAd:
		if op.Type == OpDelete {
			return op.PlatformID, e.adapter.DeleteAd(ctx, op.PlatformID)
		}
		if op.Ad == nil {
			return "", ErrMissingPayload
		}
		p := AdPayload{LocalID: op.LocalID, AdGroupID: op.ParentPlatformID, Name: op.Name, Data: *op.Ad}
		if op.Type == OpUpdate {
			return op.PlatformID, e.adapter.UpdateAd(ctx, op.PlatformID, p)
		}
		id, err := parent()
		if err != nil {
			return "", err
		}
		p.AdGroupID = id
		r, err := e.adapter.CreateAd(ctx, p)
		return r.ID, err
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEntity, op.EntityType)
}

// rollback deletes created entities newest first. It runs to completion even
// when the run's context is already cancelled.
func (e *Engine) rollback(ctx context.Context, created []ExecutedOperation) []*OperationError {
	ctx = context.WithoutCancel(ctx)
	var errs []*OperationError
	for i := len(created) - 1; i >= 0; i-- {
		ex := created[i]
		var err error
		switch ex.Operation.EntityType {
		case model.EntityCampaign:
			err = e.adapter.DeleteCampaign(ctx, ex.PlatformID)
		case model.EntityAdGroup:
			err = e.adapter.DeleteAdGroup(ctx, ex.PlatformID)
		case model.EntityAd:
			err = e.adapter.DeleteAd(ctx, ex.PlatformID)
		}
		outcome := "rolled_back"
		if err != nil {
			outcome = "rollback_error"
			errs = append(errs, &OperationError{Index: i, Op: ex.Operation, Err: err})
			log.Error().Err(err).Str("op", ex.Operation.String()).Str("platform_id", ex.PlatformID).Msg("rollback failed")
		} else {
			log.Error().Str("op", ex.Operation.String()).Str("platform_id", ex.PlatformID).Msg("rolled back")
		}
		observability.SyncOperations.WithLabelValues(string(OpDelete), string(ex.Operation.EntityType), outcome).Inc()
	}
	return errs
}

func (e *Engine) record(h HistoryEntry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = append(e.history, h)
	if over := len(e.history) - e.historySize; over > 0 {
		e.history = append(e.history[:0:0], e.history[over:]...)
	}
}

// GetSyncHistory returns the most recent runs, oldest first.
func (e *Engine) GetSyncHistory() []HistoryEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]HistoryEntry(nil), e.history...)
}
