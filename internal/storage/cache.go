package storage

import (
	"sync"

	"github.com/dougwithseismic/dotoro-ads-sub008/internal/model"
)

// Cache keeps the last loaded local state so diffs against stored campaigns
// do not hit the database on every request.
type Cache struct {
	mu        sync.RWMutex
	campaigns []model.LocalCampaign
	loaded    bool
}

func NewCache() *Cache {
	return &Cache{}
}

// GetCampaigns reports false until the first UpdateCampaigns.
func (c *Cache) GetCampaigns() ([]model.LocalCampaign, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.LocalCampaign(nil), c.campaigns...), c.loaded
}

func (c *Cache) UpdateCampaigns(campaigns []model.LocalCampaign) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.campaigns = campaigns
	c.loaded = true
}

// Invalidate forces the next reader to reload.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.campaigns = nil
	c.loaded = false
}
