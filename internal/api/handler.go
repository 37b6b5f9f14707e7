package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/dougwithseismic/dotoro-ads-sub008/internal/cache"
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/generator"
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/model"
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/observability"
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/rules"
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/storage"
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/syncer"
)

const maxBodyBytes = 10 << 20

// Store is the persistence the handlers need. It is optional.
type Store interface {
	SaveRules(ctx context.Context, rs []rules.Rule) error
	SaveGeneration(ctx context.Context, templateID string, campaigns []model.LocalCampaign) error
	LoadLocalState(ctx context.Context) ([]model.LocalCampaign, error)
	SetCampaignStatus(ctx context.Context, id string, status model.Status) error
	RecordSyncRun(ctx context.Context, res syncer.SyncResult, operationCount int) error
}

type Handler struct {
	Rules     *rules.Engine
	Generator *generator.Generator
	Sync      *syncer.Engine
	RuleSet   *cache.Snapshot[[]rules.Rule]
	State     *storage.Cache
	Store     Store

	// Defaults fill fields a generate request leaves out.
	Defaults        generator.Options
	TransactionMode bool
}

var errNoStore = errors.New("persistence is not configured")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func (h *Handler) storedRules() []rules.Rule {
	if h.RuleSet == nil {
		return nil
	}
	rs, _ := h.RuleSet.Load()
	return rs
}

type evaluateRequest struct {
	Rules          []rules.Rule `json:"rules"`
	UseStoredRules bool         `json:"use_stored_rules"`
	Rows           []model.Row  `json:"rows"`
}

// EvaluateRules runs a rule set over rows.
func (h *Handler) EvaluateRules(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if !decode(w, r, &req) {
		return
	}
	rs := req.Rules
	if req.UseStoredRules {
		rs = h.storedRules()
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": h.Rules.ProcessDataset(rs, req.Rows)})
}

type testRuleRequest struct {
	Rule rules.Rule  `json:"rule"`
	Rows []model.Row `json:"rows"`
}

func (h *Handler) TestRule(w http.ResponseWriter, r *http.Request) {
	var req testRuleRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.Rules.TestRule(req.Rule, req.Rows))
}

func (h *Handler) ListRules(w http.ResponseWriter, _ *http.Request) {
	rs := h.storedRules()
	if rs == nil {
		rs = []rules.Rule{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": rs})
}

type saveRulesRequest struct {
	Rules []rules.Rule `json:"rules"`
}

// SaveRules persists rules. The listener reloads the snapshot from the
// database; the snapshot is also swapped here so the caller reads its writes.
func (h *Handler) SaveRules(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		writeError(w, http.StatusServiceUnavailable, errNoStore)
		return
	}
	var req saveRulesRequest
	if !decode(w, r, &req) {
		return
	}
	for _, rl := range req.Rules {
		if err := rl.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	if err := h.Store.SaveRules(r.Context(), req.Rules); err != nil {
		log.Error().Err(err).Msg("save rules")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if h.RuleSet != nil {
		enabled := make([]rules.Rule, 0, len(req.Rules))
		for _, rl := range req.Rules {
			if rl.Enabled {
				enabled = append(enabled, rl)
			}
		}
		h.RuleSet.Store(enabled)
	}
	w.WriteHeader(http.StatusNoContent)
}

type generateRequest struct {
	Template       generator.CampaignTemplate `json:"template"`
	Rows           []model.Row                `json:"rows"`
	Options        generator.Options          `json:"options"`
	UseStoredRules bool                       `json:"use_stored_rules"`
	Save           bool                       `json:"save"`
	Status         model.Status               `json:"status"` // of saved campaigns, draft when empty
}

func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	req := generateRequest{Options: h.Defaults}
	if !decode(w, r, &req) {
		return
	}
	if !req.Template.Platform.IsValid() {
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown platform %q", req.Template.Platform))
		return
	}
	if req.UseStoredRules && len(req.Options.Rules) == 0 {
		req.Options.Rules = h.storedRules()
	}
	if req.Save && req.Options.PreviewMode {
		writeError(w, http.StatusBadRequest, errors.New("preview results cannot be saved"))
		return
	}
	if req.Status == "" {
		req.Status = model.StatusDraft
	}
	if !req.Status.IsValid() {
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown status %q", req.Status))
		return
	}

	res := h.Generator.Generate(req.Template, req.Rows, req.Options)
	observability.GeneratedEntities.WithLabelValues(string(model.EntityCampaign)).Add(float64(res.Stats.TotalCampaigns))
	observability.GeneratedEntities.WithLabelValues(string(model.EntityAdGroup)).Add(float64(res.Stats.TotalAdGroups))
	observability.GeneratedEntities.WithLabelValues(string(model.EntityAd)).Add(float64(res.Stats.TotalAds))
	observability.GenerationWarnings.Add(float64(len(res.Warnings) + len(res.ValidationWarnings)))

	if req.Save {
		if h.Store == nil {
			writeError(w, http.StatusServiceUnavailable, errNoStore)
			return
		}
		local := generator.ToLocal(res.Campaigns, req.Status)
		if err := h.Store.SaveGeneration(r.Context(), req.Template.ID, local); err != nil {
			log.Error().Err(err).Str("template_id", req.Template.ID).Msg("save generation")
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if h.State != nil {
			h.State.Invalidate()
		}
	}
	writeJSON(w, http.StatusOK, res)
}

type statusRequest struct {
	Status model.Status `json:"status"`
}

// SetCampaignStatus promotes a stored campaign hierarchy to ready, or back
// to draft.
func (h *Handler) SetCampaignStatus(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		writeError(w, http.StatusServiceUnavailable, errNoStore)
		return
	}
	var req statusRequest
	if !decode(w, r, &req) {
		return
	}
	if !req.Status.IsValid() {
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown status %q", req.Status))
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.Store.SetCampaignStatus(r.Context(), id, req.Status); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		log.Error().Err(err).Str("campaign_id", id).Msg("set campaign status")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if h.State != nil {
		h.State.Invalidate()
	}
	w.WriteHeader(http.StatusNoContent)
}

type diffRequest struct {
	Local          []model.LocalCampaign    `json:"local"`
	UseStoredLocal bool                     `json:"use_stored_local"`
	Platform       []model.PlatformCampaign `json:"platform"`
	PlatformIDs    []string                 `json:"platform_ids"`
	Options        syncer.DiffOptions       `json:"options"`
}

type diffResponse struct {
	Diff       syncer.DiffResult  `json:"diff"`
	Operations []syncer.Operation `json:"operations"`
}

// Diff compares local and platform state and plans the operations.
func (h *Handler) Diff(w http.ResponseWriter, r *http.Request) {
	var req diffRequest
	if !decode(w, r, &req) {
		return
	}
	ctx := r.Context()

	local := req.Local
	if req.UseStoredLocal {
		var err error
		if local, err = h.localState(ctx); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, errNoStore) {
				status = http.StatusServiceUnavailable
			}
			writeError(w, status, err)
			return
		}
	}

	platform := req.Platform
	if len(req.PlatformIDs) > 0 {
		fetched, err := h.Sync.PlatformState(ctx, req.PlatformIDs)
		if err != nil {
			log.Warn().Err(err).Msg("fetch platform state")
			writeError(w, http.StatusBadGateway, err)
			return
		}
		platform = append(platform, fetched...)
	}

	d := h.Sync.Diff(local, platform, req.Options)
	writeJSON(w, http.StatusOK, diffResponse{Diff: d, Operations: h.Sync.GenerateOperations(d)})
}

func (h *Handler) localState(ctx context.Context) ([]model.LocalCampaign, error) {
	if h.State != nil {
		if cs, ok := h.State.GetCampaigns(); ok {
			return cs, nil
		}
	}
	if h.Store == nil {
		return nil, errNoStore
	}
	cs, err := h.Store.LoadLocalState(ctx)
	if err != nil {
		return nil, err
	}
	if h.State != nil {
		h.State.UpdateCampaigns(cs)
	}
	return cs, nil
}

type executeRequest struct {
	Operations      []syncer.Operation `json:"operations"`
	TransactionMode *bool              `json:"transaction_mode"`
}

func (h *Handler) Execute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if !decode(w, r, &req) {
		return
	}
	opts := syncer.ExecuteOptions{TransactionMode: h.TransactionMode}
	if req.TransactionMode != nil {
		opts.TransactionMode = *req.TransactionMode
	}

	res := h.Sync.ExecuteSync(r.Context(), req.Operations, opts)
	if h.Store != nil {
		// the run already happened; record it even if the client went away
		if err := h.Store.RecordSyncRun(context.WithoutCancel(r.Context()), res, len(req.Operations)); err != nil {
			log.Error().Err(err).Str("run_id", res.RunID).Msg("record sync run")
		}
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) History(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"history": h.Sync.GetSyncHistory()})
}
