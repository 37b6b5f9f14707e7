package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dougwithseismic/dotoro-ads-sub008/internal/diff"
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/model"
)

var (
	// ErrParentNotSynced is returned when a child create has no platform id
	// for its parent, neither planned nor assigned earlier in the run.
	ErrParentNotSynced = errors.New("parent entity has no platform id")
	ErrUnknownEntity   = errors.New("unknown entity type")
	ErrMissingPayload  = errors.New("operation has no payload")
)

// CreateResult is what a platform returns for a newly created entity.
type CreateResult struct {
	ID string `json:"id"`
}

type CampaignPayload struct {
	LocalID string             `json:"local_id"`
	Name    string             `json:"name"`
	Data    model.CampaignData `json:"data"`
}

type AdGroupPayload struct {
	LocalID    string            `json:"local_id"`
	CampaignID string            `json:"campaign_id"`
	Name       string            `json:"name"`
	Data       model.AdGroupData `json:"data"`
}

type AdPayload struct {
	LocalID   string       `json:"local_id"`
	AdGroupID string       `json:"ad_group_id"`
	Name      string       `json:"name"`
	Data      model.AdData `json:"data"`
}

// Adapter talks to one advertising platform. Fetch methods return the
// entity with its children populated.
type Adapter interface {
	FetchCampaign(ctx context.Context, id string) (model.PlatformCampaign, error)
	FetchAdGroup(ctx context.Context, id string) (model.PlatformAdGroup, error)
	FetchAd(ctx context.Context, id string) (model.PlatformAd, error)

	CreateCampaign(ctx context.Context, p CampaignPayload) (CreateResult, error)
	CreateAdGroup(ctx context.Context, p AdGroupPayload) (CreateResult, error)
	CreateAd(ctx context.Context, p AdPayload) (CreateResult, error)

	UpdateCampaign(ctx context.Context, id string, p CampaignPayload) error
	UpdateAdGroup(ctx context.Context, id string, p AdGroupPayload) error
	UpdateAd(ctx context.Context, id string, p AdPayload) error

	DeleteCampaign(ctx context.Context, id string) error
	DeleteAdGroup(ctx context.Context, id string) error
	DeleteAd(ctx context.Context, id string) error
}

// DiffOptions control the hierarchical diff.
type DiffOptions struct {
	TrackDeletions bool     `json:"track_deletions"`
	IgnoreFields   []string `json:"ignore_fields,omitempty"`
}

type (
	CampaignChanges = diff.Result[model.LocalCampaign, model.PlatformCampaign]
	AdGroupChanges  = diff.Result[model.LocalAdGroup, model.PlatformAdGroup]
	AdChanges       = diff.Result[model.LocalAd, model.PlatformAd]
)

// AdGroupDiff is the ad group diff inside one campaign. CampaignPlatformID
// is empty when the campaign itself is being created.
type AdGroupDiff struct {
	CampaignLocalID    string         `json:"campaign_local_id"`
	CampaignPlatformID string         `json:"campaign_platform_id,omitempty"`
	Diff               AdGroupChanges `json:"diff"`
}

type AdDiff struct {
	AdGroupLocalID    string    `json:"ad_group_local_id"`
	AdGroupPlatformID string    `json:"ad_group_platform_id,omitempty"`
	Diff              AdChanges `json:"diff"`
}

// DiffResult spans the whole hierarchy. Summary aggregates every level.
type DiffResult struct {
	Campaigns CampaignChanges `json:"campaigns"`
	AdGroups  []AdGroupDiff   `json:"ad_groups"`
	Ads       []AdDiff        `json:"ads"`
	Summary   diff.Summary    `json:"summary"`
}

type OperationType string

const (
	OpCreate OperationType = "create"
	OpUpdate OperationType = "update"
	OpDelete OperationType = "delete"
)

// Operation is one adapter call. Parent ids are set for ad group and ad
// creates; ParentPlatformID is empty when the parent is created in the same run.
type Operation struct {
	Type             OperationType       `json:"type"`
	EntityType       model.EntityType    `json:"entity_type"`
	LocalID          string              `json:"local_id,omitempty"`
	PlatformID       string              `json:"platform_id,omitempty"`
	ParentLocalID    string              `json:"parent_local_id,omitempty"`
	ParentPlatformID string              `json:"parent_platform_id,omitempty"`
	Name             string              `json:"name,omitempty"`
	ChangedFields    []string            `json:"changed_fields,omitempty"`
	Campaign         *model.CampaignData `json:"campaign,omitempty"`
	AdGroup          *model.AdGroupData  `json:"ad_group,omitempty"`
	Ad               *model.AdData       `json:"ad,omitempty"`
}

func (o Operation) String() string {
	id := o.PlatformID
	if id == "" {
		id = o.LocalID
	}
	return fmt.Sprintf("%s %s %s", o.Type, o.EntityType, id)
}

// OperationError wraps an adapter failure for a single operation.
type OperationError struct {
	Index int       `json:"index"`
	Op    Operation `json:"operation"`
	Err   error     `json:"-"`
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// MarshalJSON carries the error message, which the Err field cannot.
func (e *OperationError) MarshalJSON() ([]byte, error) {
	type wire struct {
		Index   int       `json:"index"`
		Op      Operation `json:"operation"`
		Message string    `json:"message"`
	}
	w := wire{Index: e.Index, Op: e.Op}
	if e.Err != nil {
		w.Message = e.Err.Error()
	}
	return json.Marshal(w)
}

type ExecuteOptions struct {
	TransactionMode bool `json:"transaction_mode"`
}

// ExecutedOperation is an operation that the platform accepted. PlatformID
// is the id assigned on create, or the target id otherwise.
type ExecutedOperation struct {
	Operation  Operation `json:"operation"`
	PlatformID string    `json:"platform_id"`
}

type SyncResult struct {
	RunID          string              `json:"run_id"`
	Success        bool                `json:"success"`
	Executed       []ExecutedOperation `json:"executed"`
	Errors         []*OperationError   `json:"errors"`
	RolledBack     bool                `json:"rolled_back"`
	RollbackErrors []*OperationError   `json:"rollback_errors,omitempty"`
	Aborted        bool                `json:"aborted,omitempty"`
	StartedAt      time.Time           `json:"started_at"`
	FinishedAt     time.Time           `json:"finished_at"`
}

// HistoryEntry summarizes one ExecuteSync call.
type HistoryEntry struct {
	RunID           string    `json:"run_id"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	TransactionMode bool      `json:"transaction_mode"`
	Success         bool      `json:"success"`
	RolledBack      bool      `json:"rolled_back"`
	OperationCount  int       `json:"operation_count"`
	ExecutedCount   int       `json:"executed_count"`
	ErrorCount      int       `json:"error_count"`
}

// Status names the terminal state of a run.
func (h HistoryEntry) Status() string { return runStatus(h.Success, h.RolledBack) }

func (r SyncResult) Status() string { return runStatus(r.Success, r.RolledBack) }

func runStatus(success, rolledBack bool) string {
	switch {
	case success:
		return "completed"
	case rolledBack:
		return "failed_rolled_back"
	default:
		return "failed_partial"
	}
}
