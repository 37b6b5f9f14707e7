// Package memory is a sandbox advertising platform held in process memory.
// It backs the server when no real platform is configured and serves as the
// sync engine's test double.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/dougwithseismic/dotoro-ads-sub008/internal/model"
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/syncer"
)

var ErrNotFound = errors.New("entity not found")

// Call records one adapter invocation.
type Call struct {
	Method string
	ID     string
	Name   string
}

type failure struct {
	method string
	name   string
	err    error
}

type adGroup struct {
	campaignID string
	g          model.PlatformAdGroup
}

type ad struct {
	adGroupID string
	a         model.PlatformAd
}

// Adapter implements syncer.Adapter. Platform ids are "<prefix>-<uuid>".
type Adapter struct {
	mu        sync.Mutex
	prefix    string
	campaigns map[string]model.PlatformCampaign
	adGroups  map[string]adGroup
	ads       map[string]ad
	order     []string
	calls     []Call
	failures  []failure
}

var _ syncer.Adapter = (*Adapter)(nil)

func New(prefix string) *Adapter {
	if prefix == "" {
		prefix = "mem"
	}
	return &Adapter{
		prefix:    prefix,
		campaigns: map[string]model.PlatformCampaign{},
		adGroups:  map[string]adGroup{},
		ads:       map[string]ad{},
	}
}

// FailOn makes the next call of method on an entity with the given name
// return err. An empty name matches any entity.
func (m *Adapter) FailOn(method, name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, failure{method: method, name: name, err: err})
}

// Calls returns every invocation so far.
func (m *Adapter) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CampaignIDs lists stored campaigns in creation order.
func (m *Adapter) CampaignIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.order))
	for _, id := range m.order {
		if _, ok := m.campaigns[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Seed stores a campaign hierarchy as if it already existed on the platform.
func (m *Adapter) Seed(c model.PlatformCampaign) {
	m.mu.Lock()
	defer m.mu.Unlock()
	children := c.AdGroups
	c.AdGroups = nil
	m.campaigns[c.PlatformID] = c
	m.order = append(m.order, c.PlatformID)
	for _, g := range children {
		ads := g.Ads
		g.Ads = nil
		m.adGroups[g.PlatformID] = adGroup{campaignID: c.PlatformID, g: g}
		for _, a := range ads {
			m.ads[a.PlatformID] = ad{adGroupID: g.PlatformID, a: a}
		}
	}
}

// call must be made with m.mu held.
func (m *Adapter) call(method, id, name string) error {
	m.calls = append(m.calls, Call{Method: method, ID: id, Name: name})
	for i, f := range m.failures {
		if f.method == method && (f.name == "" || f.name == name) {
			m.failures = append(m.failures[:i], m.failures[i+1:]...)
			return f.err
		}
	}
	return nil
}

func (m *Adapter) newID() string {
	return m.prefix + "-" + uuid.NewString()
}

func (m *Adapter) FetchCampaign(ctx context.Context, id string) (model.PlatformCampaign, error) {
	if err := ctx.Err(); err != nil {
		return model.PlatformCampaign{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("FetchCampaign", id, ""); err != nil {
		return model.PlatformCampaign{}, err
	}
	c, ok := m.campaigns[id]
	if !ok {
		return model.PlatformCampaign{}, fmt.Errorf("campaign %s: %w", id, ErrNotFound)
	}
	for _, gid := range m.childrenOf(id) {
		c.AdGroups = append(c.AdGroups, m.adGroupLocked(gid))
	}
	return c, nil
}

func (m *Adapter) FetchAdGroup(ctx context.Context, id string) (model.PlatformAdGroup, error) {
	if err := ctx.Err(); err != nil {
		return model.PlatformAdGroup{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("FetchAdGroup", id, ""); err != nil {
		return model.PlatformAdGroup{}, err
	}
	if _, ok := m.adGroups[id]; !ok {
		return model.PlatformAdGroup{}, fmt.Errorf("ad group %s: %w", id, ErrNotFound)
	}
	return m.adGroupLocked(id), nil
}

func (m *Adapter) FetchAd(ctx context.Context, id string) (model.PlatformAd, error) {
	if err := ctx.Err(); err != nil {
		return model.PlatformAd{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("FetchAd", id, ""); err != nil {
		return model.PlatformAd{}, err
	}
	a, ok := m.ads[id]
	if !ok {
		return model.PlatformAd{}, fmt.Errorf("ad %s: %w", id, ErrNotFound)
	}
	return a.a, nil
}

func (m *Adapter) childrenOf(campaignID string) []string {
	var ids []string
	for id, g := range m.adGroups {
		if g.campaignID == campaignID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (m *Adapter) adGroupLocked(id string) model.PlatformAdGroup {
	g := m.adGroups[id].g
	var adIDs []string
	for aid, a := range m.ads {
		if a.adGroupID == id {
			adIDs = append(adIDs, aid)
		}
	}
	sort.Strings(adIDs)
	for _, aid := range adIDs {
		g.Ads = append(g.Ads, m.ads[aid].a)
	}
	return g
}

func (m *Adapter) CreateCampaign(ctx context.Context, p syncer.CampaignPayload) (syncer.CreateResult, error) {
	if err := ctx.Err(); err != nil {
		return syncer.CreateResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("CreateCampaign", "", p.Name); err != nil {
		return syncer.CreateResult{}, err
	}
	c := model.PlatformCampaign{PlatformID: m.newID(), LocalID: p.LocalID, Name: p.Name, Data: p.Data}
	c.Hash = c.ContentHash()
	m.campaigns[c.PlatformID] = c
	m.order = append(m.order, c.PlatformID)
	return syncer.CreateResult{ID: c.PlatformID}, nil
}

func (m *Adapter) CreateAdGroup(ctx context.Context, p syncer.AdGroupPayload) (syncer.CreateResult, error) {
	if err := ctx.Err(); err != nil {
		return syncer.CreateResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("CreateAdGroup", "", p.Name); err != nil {
		return syncer.CreateResult{}, err
	}
	if _, ok := m.campaigns[p.CampaignID]; !ok {
		return syncer.CreateResult{}, fmt.Errorf("campaign %s: %w", p.CampaignID, ErrNotFound)
	}
	g := model.PlatformAdGroup{PlatformID: m.newID(), LocalID: p.LocalID, Name: p.Name, Data: p.Data}
	g.Hash = g.ContentHash()
	m.adGroups[g.PlatformID] = adGroup{campaignID: p.CampaignID, g: g}
	return syncer.CreateResult{ID: g.PlatformID}, nil
}

func (m *Adapter) CreateAd(ctx context.Context, p syncer.AdPayload) (syncer.CreateResult, error) {
	if err := ctx.Err(); err != nil {
		return syncer.CreateResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("CreateAd", "", p.Name); err != nil {
		return syncer.CreateResult{}, err
	}
	if _, ok := m.adGroups[p.AdGroupID]; !ok {
		return syncer.CreateResult{}, fmt.Errorf("ad group %s: %w", p.AdGroupID, ErrNotFound)
	}
	a := model.PlatformAd{PlatformID: m.newID(), LocalID: p.LocalID, Name: p.Name, Data: p.Data}
	a.Hash = a.ContentHash()
	m.ads[a.PlatformID] = ad{adGroupID: p.AdGroupID, a: a}
	return syncer.CreateResult{ID: a.PlatformID}, nil
}

func (m *Adapter) UpdateCampaign(ctx context.Context, id string, p syncer.CampaignPayload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("UpdateCampaign", id, p.Name); err != nil {
		return err
	}
	c, ok := m.campaigns[id]
	if !ok {
		return fmt.Errorf("campaign %s: %w", id, ErrNotFound)
	}
	c.Name, c.Data, c.Hash = p.Name, p.Data, ""
	c.Hash = c.ContentHash()
	m.campaigns[id] = c
	return nil
}

func (m *Adapter) UpdateAdGroup(ctx context.Context, id string, p syncer.AdGroupPayload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("UpdateAdGroup", id, p.Name); err != nil {
		return err
	}
	g, ok := m.adGroups[id]
	if !ok {
		return fmt.Errorf("ad group %s: %w", id, ErrNotFound)
	}
	g.g.Name, g.g.Data, g.g.Hash = p.Name, p.Data, ""
	g.g.Hash = g.g.ContentHash()
	m.adGroups[id] = g
	return nil
}

func (m *Adapter) UpdateAd(ctx context.Context, id string, p syncer.AdPayload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("UpdateAd", id, p.Name); err != nil {
		return err
	}
	a, ok := m.ads[id]
	if !ok {
		return fmt.Errorf("ad %s: %w", id, ErrNotFound)
	}
	a.a.Name, a.a.Data, a.a.Hash = p.Name, p.Data, ""
	a.a.Hash = a.a.ContentHash()
	m.ads[id] = a
	return nil
}

// DeleteCampaign removes the campaign and everything under it.
func (m *Adapter) DeleteCampaign(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("DeleteCampaign", id, ""); err != nil {
		return err
	}
	if _, ok := m.campaigns[id]; !ok {
		return fmt.Errorf("campaign %s: %w", id, ErrNotFound)
	}
	for _, gid := range m.childrenOf(id) {
		m.deleteAdGroupLocked(gid)
	}
	delete(m.campaigns, id)
	return nil
}

func (m *Adapter) DeleteAdGroup(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("DeleteAdGroup", id, ""); err != nil {
		return err
	}
	if _, ok := m.adGroups[id]; !ok {
		return fmt.Errorf("ad group %s: %w", id, ErrNotFound)
	}
	m.deleteAdGroupLocked(id)
	return nil
}

func (m *Adapter) deleteAdGroupLocked(id string) {
	for aid, a := range m.ads {
		if a.adGroupID == id {
			delete(m.ads, aid)
		}
	}
	delete(m.adGroups, id)
}

func (m *Adapter) DeleteAd(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("DeleteAd", id, ""); err != nil {
		return err
	}
	if _, ok := m.ads[id]; !ok {
		return fmt.Errorf("ad %s: %w", id, ErrNotFound)
	}
	delete(m.ads, id)
	return nil
}
