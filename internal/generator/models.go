package generator

import (
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/model"
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/rules"
)

// CampaignTemplate is expanded once per data row (and variation combination).
type CampaignTemplate struct {
	ID               string            `json:"id" yaml:"id"`
	Name             string            `json:"name" yaml:"name"`
	Platform         model.Platform    `json:"platform" yaml:"platform"`
	Objective        string            `json:"objective" yaml:"objective"`
	Budget           *model.Budget     `json:"budget,omitempty" yaml:"budget,omitempty"`
	AdGroupTemplates []AdGroupTemplate `json:"ad_group_templates" yaml:"ad_group_templates"`
	VariationSources []VariationSource `json:"variation_sources,omitempty" yaml:"variation_sources,omitempty"`
}

// VariationSource is one axis of the cartesian expansion.
type VariationSource struct {
	Field  string   `json:"field" yaml:"field"`
	Values []string `json:"values" yaml:"values"`
}

type AdGroupTemplate struct {
	ID          string           `json:"id" yaml:"id"`
	Name        string           `json:"name" yaml:"name"`
	Targeting   *model.Targeting `json:"targeting,omitempty" yaml:"targeting,omitempty"`
	AdTemplates []AdTemplate     `json:"ad_templates" yaml:"ad_templates"`
}

type AdTemplate struct {
	ID           string `json:"id" yaml:"id"`
	Headline     string `json:"headline" yaml:"headline"`
	Description  string `json:"description,omitempty" yaml:"description,omitempty"`
	DisplayURL   string `json:"display_url,omitempty" yaml:"display_url,omitempty"`
	FinalURL     string `json:"final_url,omitempty" yaml:"final_url,omitempty"`
	CallToAction string `json:"call_to_action,omitempty" yaml:"call_to_action,omitempty"`
}

// DedupScope bounds which ads are compared during ad deduplication.
type DedupScope string

const (
	DedupGlobal  DedupScope = "global"
	DedupAdGroup DedupScope = "ad_group"
)

type Options struct {
	EnableCartesianProduct bool         `json:"enable_cartesian_product"`
	ValidatePlatformLimits bool         `json:"validate_platform_limits"`
	DeduplicateAds         bool         `json:"deduplicate_ads"`
	DeduplicateCampaigns   bool         `json:"deduplicate_campaigns"`
	DedupScope             DedupScope   `json:"dedup_scope,omitempty"`
	PreviewMode            bool         `json:"preview_mode"`
	PreviewLimit           int          `json:"preview_limit,omitempty"`
	Rules                  []rules.Rule `json:"rules,omitempty"`
}

type GeneratedCampaign struct {
	ID          string             `json:"id"`
	TemplateID  string             `json:"template_id"`
	Name        string             `json:"name"`
	Platform    model.Platform     `json:"platform"`
	Objective   string             `json:"objective"`
	Budget      *model.Budget      `json:"budget,omitempty"`
	SourceRowID string             `json:"source_row_id"`
	Variation   map[string]string  `json:"variation,omitempty"`
	Groups      []string           `json:"groups,omitempty"`
	Tags        []string           `json:"tags,omitempty"`
	AdGroups    []GeneratedAdGroup `json:"ad_groups"`
}

type GeneratedAdGroup struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Targeting *model.Targeting `json:"targeting,omitempty"`
	Ads       []GeneratedAd    `json:"ads"`
}

type GeneratedAd struct {
	ID           string `json:"id"`
	Headline     string `json:"headline"`
	Description  string `json:"description,omitempty"`
	DisplayURL   string `json:"display_url,omitempty"`
	FinalURL     string `json:"final_url,omitempty"`
	CallToAction string `json:"call_to_action,omitempty"`
	SourceRowID  string `json:"source_row_id"`
}

// Warning is a non-fatal template problem, e.g. an unresolved variable.
type Warning struct {
	RowIndex int    `json:"row_index"`
	RowID    string `json:"row_id"`
	Field    string `json:"field"`
	Variable string `json:"variable,omitempty"`
	Message  string `json:"message"`
}

// ValidationWarning records a platform character-limit overflow.
type ValidationWarning struct {
	Platform model.Platform `json:"platform"`
	EntityID string         `json:"entity_id"`
	Field    string         `json:"field"`
	Value    string         `json:"value"`
	Length   int            `json:"length"`
	Limit    int            `json:"limit"`
}

type Stats struct {
	RowsProcessed             int `json:"rows_processed"`
	RowsSkipped               int `json:"rows_skipped"`
	TotalCampaigns            int `json:"total_campaigns"`
	TotalAdGroups             int `json:"total_ad_groups"`
	TotalAds                  int `json:"total_ads"`
	DuplicateAdsRemoved       int `json:"duplicate_ads_removed"`
	DuplicateCampaignsRemoved int `json:"duplicate_campaigns_removed"`
}

type Result struct {
	Campaigns          []GeneratedCampaign `json:"campaigns"`
	Warnings           []Warning           `json:"warnings"`
	ValidationWarnings []ValidationWarning `json:"validation_warnings"`
	Stats              Stats               `json:"stats"`
	Truncated          bool                `json:"truncated"`
}
