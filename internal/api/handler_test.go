package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dougwithseismic/dotoro-ads-sub008/internal/cache"
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/generator"
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/model"
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/platform/memory"
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/rules"
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/storage"
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/syncer"
)

type MockStore struct {
	rules     []rules.Rule
	saved     []model.LocalCampaign
	local     []model.LocalCampaign
	runs      []syncer.SyncResult
	loadCalls int
	err       error
}

func (m *MockStore) SaveRules(_ context.Context, rs []rules.Rule) error {
	m.rules = rs
	return m.err
}

func (m *MockStore) SaveGeneration(_ context.Context, _ string, cs []model.LocalCampaign) error {
	m.saved = append(m.saved, cs...)
	m.local = append(m.local, cs...)
	return m.err
}

func (m *MockStore) SetCampaignStatus(_ context.Context, id string, status model.Status) error {
	for i := range m.local {
		if m.local[i].ID == id {
			m.local[i].SetStatus(status)
			return m.err
		}
	}
	return fmt.Errorf("campaign %s: %w", id, storage.ErrNotFound)
}

func (m *MockStore) LoadLocalState(context.Context) ([]model.LocalCampaign, error) {
	m.loadCalls++
	return m.local, m.err
}

func (m *MockStore) RecordSyncRun(_ context.Context, res syncer.SyncResult, _ int) error {
	m.runs = append(m.runs, res)
	return m.err
}

func newTestServer(store Store) (http.Handler, *Handler, *memory.Adapter) {
	adapter := memory.New("test")
	h := &Handler{
		Rules:     rules.NewEngine(),
		Generator: generator.New(),
		Sync:      syncer.New(adapter),
		RuleSet:   &cache.Snapshot[[]rules.Rule]{},
		State:     storage.NewCache(),
		Store:     store,
		Defaults:  generator.Options{DeduplicateAds: true, PreviewLimit: 10},
	}
	return Router(h, 5*time.Second), h, adapter
}

func do(t *testing.T, srv http.Handler, method, url string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, url, &buf)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

const premiumRule = `{
	"id": "premium", "name": "Premium", "enabled": true, "priority": 1,
	"condition_group": {"logic": "AND", "conditions": [
		{"field": "category", "operator": "equals", "value": "electronics"},
		{"logic": "OR", "conditions": [
			{"field": "price", "operator": "greater_than", "value": 500},
			{"field": "brand", "operator": "in", "value": ["apple", "sony"]}
		]}
	]},
	"actions": [{"type": "add_tag", "tag": "premium"}]
}`

func TestRoutes_Scenarios(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		url        string
		body       any
		wantStatus int
	}{
		{"health", http.MethodGet, "/healthz", nil, http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", nil, http.StatusOK},
		{"bad json", http.MethodPost, "/v1/rules/evaluate", "{", http.StatusBadRequest},
		{"unknown operator", http.MethodPost, "/v1/rules/test",
			`{"rule": {"condition_group": {"conditions": [{"field": "a", "operator": "near"}]}}}`, http.StatusBadRequest},
		{"unknown platform", http.MethodPost, "/v1/campaigns/generate", `{"template": {"platform": "myspace"}}`, http.StatusBadRequest},
		{"save rules without store", http.MethodPut, "/v1/rules", `{"rules": []}`, http.StatusServiceUnavailable},
		{"stored local without store", http.MethodPost, "/v1/sync/diff", `{"use_stored_local": true}`, http.StatusServiceUnavailable},
		{"unknown platform id", http.MethodPost, "/v1/sync/diff", `{"platform_ids": ["nope"]}`, http.StatusBadGateway},
		{"empty history", http.MethodGet, "/v1/sync/history", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, _ := newTestServer(nil)
			w := do(t, srv, tt.method, tt.url, tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if w.Code >= http.StatusBadRequest {
				assert.Contains(t, decodeBody[map[string]string](t, w), "error")
			}
		})
	}
}

func TestEvaluateRules(t *testing.T) {
	srv, _, _ := newTestServer(nil)
	w := do(t, srv, http.MethodPost, "/v1/rules/evaluate", `{
		"rules": [`+premiumRule+`],
		"rows": [
			{"category": "Electronics", "price": 900, "brand": "acme"},
			{"category": "ELECTRONICS", "price": 100, "brand": "Sony"},
			{"category": "garden", "price": 900}
		]
	}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	res := decodeBody[struct {
		Results []rules.RowResult `json:"results"`
	}](t, w)
	require.Len(t, res.Results, 3)
	assert.Equal(t, []string{"premium"}, res.Results[0].Tags)
	assert.Equal(t, []string{"premium"}, res.Results[1].Tags)
	assert.Empty(t, res.Results[2].Tags)
}

func TestTestRule(t *testing.T) {
	srv, _, _ := newTestServer(nil)
	w := do(t, srv, http.MethodPost, "/v1/rules/test", `{
		"rule": `+premiumRule+`,
		"rows": [{"category": "electronics", "price": 900}, {"category": "toys"}]
	}`)
	require.Equal(t, http.StatusOK, w.Code)

	res := decodeBody[rules.TestResult](t, w)
	assert.Equal(t, 2, res.TotalRows)
	assert.Equal(t, 1, res.MatchedRows)
}

func TestSaveRules_RefreshesSnapshot(t *testing.T) {
	store := &MockStore{}
	srv, h, _ := newTestServer(store)

	w := do(t, srv, http.MethodPut, "/v1/rules", `{"rules": [`+premiumRule+`, {"id": "off", "enabled": false}]}`)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	assert.Len(t, store.rules, 2)

	stored, ok := h.RuleSet.Load()
	require.True(t, ok)
	require.Len(t, stored, 1)
	assert.Equal(t, "premium", stored[0].ID)

	w = do(t, srv, http.MethodGet, "/v1/rules", nil)
	assert.Contains(t, w.Body.String(), `"premium"`)

	w = do(t, srv, http.MethodPost, "/v1/rules/evaluate", `{
		"use_stored_rules": true, "rows": [{"category": "electronics", "brand": "apple"}]
	}`)
	assert.Contains(t, w.Body.String(), `"tags":["premium"]`)

	w = do(t, srv, http.MethodPut, "/v1/rules", `{"rules": [{"id": "x", "actions": [{"type": "add_tag"}]}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

const shoeTemplate = `{
	"id": "tpl", "name": "{brand} - {product}", "platform": "google", "objective": "traffic",
	"ad_group_templates": [{"id": "ag", "name": "{product|lower}", "ad_templates": [
		{"id": "ad", "headline": "Buy {product}", "description": "From {brand}"}
	]}]
}`

func TestGenerate(t *testing.T) {
	store := &MockStore{}
	srv, _, _ := newTestServer(store)

	w := do(t, srv, http.MethodPost, "/v1/campaigns/generate", `{
		"template": `+shoeTemplate+`,
		"rows": [{"brand": "Acme", "product": "Boots"}, {"brand": "Acme", "product": "Hat"}, {"brand": "Acme"}],
		"options": {"preview_mode": true, "preview_limit": 2}
	}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	res := decodeBody[generator.Result](t, w)
	assert.Len(t, res.Campaigns, 2)
	assert.True(t, res.Truncated)
	assert.Equal(t, 3, res.Stats.TotalCampaigns)
	assert.NotEmpty(t, res.Warnings, "third row lacks product")

	w = do(t, srv, http.MethodPost, "/v1/campaigns/generate", `{
		"template": `+shoeTemplate+`, "rows": [{"brand": "Acme", "product": "Boots"}], "save": true
	}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, store.saved, 1)
	assert.True(t, store.saved[0].IsDraft())
	assert.Equal(t, "Acme - Boots", store.saved[0].Name)

	w = do(t, srv, http.MethodPost, "/v1/campaigns/generate", `{
		"template": `+shoeTemplate+`, "rows": [], "save": true, "options": {"preview_mode": true}
	}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerate_SaveWithStatus(t *testing.T) {
	store := &MockStore{}
	srv, _, _ := newTestServer(store)

	w := do(t, srv, http.MethodPost, "/v1/campaigns/generate", `{
		"template": `+shoeTemplate+`, "rows": [{"brand": "Acme", "product": "Boots"}], "save": true, "status": "ready"
	}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, store.saved, 1)
	assert.Equal(t, model.StatusReady, store.saved[0].Status)
	assert.Equal(t, model.StatusReady, store.saved[0].AdGroups[0].Ads[0].Status)

	w = do(t, srv, http.MethodPost, "/v1/campaigns/generate", `{
		"template": `+shoeTemplate+`, "rows": [], "save": true, "status": "live"
	}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSetCampaignStatus_PromotedStateSyncs(t *testing.T) {
	store := &MockStore{}
	srv, _, _ := newTestServer(store)

	w := do(t, srv, http.MethodPost, "/v1/campaigns/generate", `{
		"template": `+shoeTemplate+`, "rows": [{"brand": "Acme", "product": "Boots"}], "save": true
	}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, store.local, 1)
	id := store.local[0].ID

	w = do(t, srv, http.MethodPost, "/v1/sync/diff", `{"use_stored_local": true}`)
	require.Equal(t, http.StatusOK, w.Code)
	drafts := decodeBody[diffResponse](t, w)
	assert.Len(t, drafts.Diff.Campaigns.Skipped, 1)
	assert.Empty(t, drafts.Operations)

	w = do(t, srv, http.MethodPut, "/v1/campaigns/"+id+"/status", `{"status": "ready"}`)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = do(t, srv, http.MethodPost, "/v1/sync/diff", `{"use_stored_local": true}`)
	require.Equal(t, http.StatusOK, w.Code)
	ready := decodeBody[diffResponse](t, w)
	assert.Empty(t, ready.Diff.Campaigns.Skipped)
	assert.Equal(t, 3, ready.Diff.Summary.CreateCount)
	assert.Len(t, ready.Operations, 3)
	assert.Equal(t, 2, store.loadCalls, "status change invalidates the cached state")
}

func TestSetCampaignStatus_Errors(t *testing.T) {
	tests := []struct {
		name       string
		store      Store
		body       string
		wantStatus int
	}{
		{"no store", nil, `{"status": "ready"}`, http.StatusServiceUnavailable},
		{"unknown status", &MockStore{}, `{"status": "live"}`, http.StatusBadRequest},
		{"unknown campaign", &MockStore{}, `{"status": "ready"}`, http.StatusNotFound},
		{"store failure", &MockStore{
			local: []model.LocalCampaign{{ID: "c1"}}, err: errors.New("db down"),
		}, `{"status": "ready"}`, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, _ := newTestServer(tt.store)
			w := do(t, srv, http.MethodPut, "/v1/campaigns/c1/status", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}
}

func TestGenerate_DefaultsApply(t *testing.T) {
	srv, _, _ := newTestServer(nil)
	w := do(t, srv, http.MethodPost, "/v1/campaigns/generate", `{
		"template": `+shoeTemplate+`,
		"rows": [{"brand": "Acme", "product": "Boots"}, {"brand": "Acme", "product": "Boots"}]
	}`)
	require.Equal(t, http.StatusOK, w.Code)

	res := decodeBody[generator.Result](t, w)
	assert.Equal(t, 1, res.Stats.DuplicateAdsRemoved, "deduplicate_ads defaults on")
}

func TestDiffExecuteHistory(t *testing.T) {
	store := &MockStore{}
	srv, _, adapter := newTestServer(store)

	local := []model.LocalCampaign{{
		ID: "c1", Name: "Spring", Status: model.StatusReady,
		Data: model.CampaignData{Platform: model.PlatformReddit, Status: "active"},
		AdGroups: []model.LocalAdGroup{{
			ID: "g1", Name: "Group", Status: model.StatusReady,
			Ads: []model.LocalAd{{ID: "a1", Name: "Ad", Status: model.StatusReady, Data: model.AdData{Headline: "Hi"}}},
		}},
	}}

	w := do(t, srv, http.MethodPost, "/v1/sync/diff", map[string]any{"local": local})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	planned := decodeBody[diffResponse](t, w)
	assert.Equal(t, 3, planned.Diff.Summary.EstimatedAPICalls)
	require.Len(t, planned.Operations, 3)

	w = do(t, srv, http.MethodPost, "/v1/sync/execute", map[string]any{"operations": planned.Operations, "transaction_mode": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decodeBody[syncer.SyncResult](t, w)
	assert.True(t, res.Success)
	assert.Len(t, res.Executed, 3)
	require.Len(t, store.runs, 1)

	w = do(t, srv, http.MethodPost, "/v1/sync/diff", map[string]any{"local": local, "platform_ids": adapter.CampaignIDs()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	again := decodeBody[diffResponse](t, w)
	assert.Zero(t, again.Diff.Summary.EstimatedAPICalls)
	assert.Empty(t, again.Operations)

	w = do(t, srv, http.MethodGet, "/v1/sync/history", nil)
	hist := decodeBody[struct {
		History []syncer.HistoryEntry `json:"history"`
	}](t, w)
	require.Len(t, hist.History, 1)
	assert.Equal(t, res.RunID, hist.History[0].RunID)
}

func TestDiff_StoredLocalIsCached(t *testing.T) {
	store := &MockStore{local: []model.LocalCampaign{{ID: "c1", Name: "Spring", Status: model.StatusReady}}}
	srv, _, _ := newTestServer(store)

	for i := 0; i < 2; i++ {
		w := do(t, srv, http.MethodPost, "/v1/sync/diff", `{"use_stored_local": true}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1, decodeBody[diffResponse](t, w).Diff.Summary.CreateCount)
	}
	assert.Equal(t, 1, store.loadCalls)
}

func TestExecute_StoreFailureIsNotFatal(t *testing.T) {
	store := &MockStore{err: errors.New("db down")}
	srv, _, _ := newTestServer(store)

	w := do(t, srv, http.MethodPost, "/v1/sync/execute", `{"operations": []}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeBody[syncer.SyncResult](t, w).Success)
}
