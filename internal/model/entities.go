package model

import "github.com/dougwithseismic/dotoro-ads-sub008/internal/fingerprint"

// LocalCampaign is desired state as stored by this system.
type LocalCampaign struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Status   Status         `json:"status"`
	Data     CampaignData   `json:"data"`
	Hash     string         `json:"hash,omitempty"`
	AdGroups []LocalAdGroup `json:"ad_groups,omitempty"`
}

type LocalAdGroup struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Status Status      `json:"status"`
	Data   AdGroupData `json:"data"`
	Hash   string      `json:"hash,omitempty"`
	Ads    []LocalAd   `json:"ads,omitempty"`
}

type LocalAd struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status Status `json:"status"`
	Data   AdData `json:"data"`
	Hash   string `json:"hash,omitempty"`
}

// PlatformCampaign is state observed on the advertising platform. LocalID is
// empty for entities never created through this system.
type PlatformCampaign struct {
	PlatformID string            `json:"platform_id"`
	LocalID    string            `json:"local_id,omitempty"`
	Name       string            `json:"name"`
	Data       CampaignData      `json:"data"`
	Hash       string            `json:"hash,omitempty"`
	AdGroups   []PlatformAdGroup `json:"ad_groups,omitempty"`
}

type PlatformAdGroup struct {
	PlatformID string       `json:"platform_id"`
	LocalID    string       `json:"local_id,omitempty"`
	Name       string       `json:"name"`
	Data       AdGroupData  `json:"data"`
	Hash       string       `json:"hash,omitempty"`
	Ads        []PlatformAd `json:"ads,omitempty"`
}

type PlatformAd struct {
	PlatformID string `json:"platform_id"`
	LocalID    string `json:"local_id,omitempty"`
	Name       string `json:"name"`
	Data       AdData `json:"data"`
	Hash       string `json:"hash,omitempty"`
}

// SetStatus sets the status of c and everything below it.
func (c *LocalCampaign) SetStatus(s Status) {
	c.Status = s
	for gi := range c.AdGroups {
		g := &c.AdGroups[gi]
		g.Status = s
		for ai := range g.Ads {
			g.Ads[ai].Status = s
		}
	}
}

func withName(f map[string]any, name string) map[string]any {
	f["name"] = name
	return f
}

// campaign

func (c LocalCampaign) LocalKey() string { return c.ID }
func (c LocalCampaign) DisplayName() string { return c.Name }
func (c LocalCampaign) IsDraft() bool { return c.Status == StatusDraft }
func (c LocalCampaign) SyncFields() map[string]any { return withName(c.Data.Fields(), c.Name) }
func (c LocalCampaign) ContentHash() string { return hashOr(c.Hash, c.SyncFields()) }
func (c PlatformCampaign) PlatformKey() string { return c.PlatformID }
func (c PlatformCampaign) LinkedLocalID() string { return c.LocalID }
func (c PlatformCampaign) DisplayName() string { return c.Name }
func (c PlatformCampaign) SyncFields() map[string]any { return withName(c.Data.Fields(), c.Name) }
func (c PlatformCampaign) ContentHash() string { return hashOr(c.Hash, c.SyncFields()) }

// ad group

func (g LocalAdGroup) LocalKey() string { return g.ID }
func (g LocalAdGroup) DisplayName() string { return g.Name }
func (g LocalAdGroup) IsDraft() bool { return g.Status == StatusDraft }
func (g LocalAdGroup) SyncFields() map[string]any { return withName(g.Data.Fields(), g.Name) }
func (g LocalAdGroup) ContentHash() string { return hashOr(g.Hash, g.SyncFields()) }
func (g PlatformAdGroup) PlatformKey() string { return g.PlatformID }
func (g PlatformAdGroup) LinkedLocalID() string { return g.LocalID }
func (g PlatformAdGroup) DisplayName() string { return g.Name }
func (g PlatformAdGroup) SyncFields() map[string]any { return withName(g.Data.Fields(), g.Name) }
func (g PlatformAdGroup) ContentHash() string { return hashOr(g.Hash, g.SyncFields()) }

// ad

func (a LocalAd) LocalKey() string { return a.ID }
func (a LocalAd) DisplayName() string { return a.Name }
func (a LocalAd) IsDraft() bool { return a.Status == StatusDraft }
func (a LocalAd) SyncFields() map[string]any { return withName(a.Data.Fields(), a.Name) }
func (a LocalAd) ContentHash() string { return hashOr(a.Hash, a.SyncFields()) }
func (a PlatformAd) PlatformKey() string { return a.PlatformID }
func (a PlatformAd) LinkedLocalID() string { return a.LocalID }
func (a PlatformAd) DisplayName() string { return a.Name }
func (a PlatformAd) SyncFields() map[string]any { return withName(a.Data.Fields(), a.Name) }
func (a PlatformAd) ContentHash() string { return hashOr(a.Hash, a.SyncFields()) }

func hashOr(stored string, fields map[string]any) string {
	if stored != "" {
		return stored
	}
	return fingerprint.Of(fields)
}

// Rehash recomputes the content hash of the campaign and every descendant.
// A campaign hash covers its own fields only, never its children.
func (c *LocalCampaign) Rehash() {
	c.Hash = fingerprint.Of(c.SyncFields())
	for i := range c.AdGroups {
		g := &c.AdGroups[i]
		g.Hash = fingerprint.Of(g.SyncFields())
		for j := range g.Ads {
			g.Ads[j].Hash = fingerprint.Of(g.Ads[j].SyncFields())
		}
	}
}

// Rehash recomputes the content hash of the platform campaign and descendants.
func (c *PlatformCampaign) Rehash() {
	c.Hash = fingerprint.Of(c.SyncFields())
	for i := range c.AdGroups {
		g := &c.AdGroups[i]
		g.Hash = fingerprint.Of(g.SyncFields())
		for j := range g.Ads {
			g.Ads[j].Hash = fingerprint.Of(g.Ads[j].SyncFields())
		}
	}
}
