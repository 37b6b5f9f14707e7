package model

import "strings"

// Budget is a campaign spend limit.
type Budget struct {
	Type     string  `json:"type" yaml:"type"` // daily | lifetime
	Amount   float64 `json:"amount" yaml:"amount"`
	Currency string  `json:"currency,omitempty" yaml:"currency,omitempty"`
}

// RedditCampaign carries fields only Reddit campaigns have.
type RedditCampaign struct {
	FundingInstrumentID string `json:"funding_instrument_id,omitempty" yaml:"funding_instrument_id,omitempty"`
	SpendCap            int64  `json:"spend_cap,omitempty" yaml:"spend_cap,omitempty"`
}

// GoogleCampaign carries fields only Google Ads campaigns have.
type GoogleCampaign struct {
	BiddingStrategy string   `json:"bidding_strategy,omitempty" yaml:"bidding_strategy,omitempty"`
	Networks        []string `json:"networks,omitempty" yaml:"networks,omitempty"`
}

// FacebookCampaign carries fields only Meta campaigns have.
type FacebookCampaign struct {
	BuyingType          string   `json:"buying_type,omitempty" yaml:"buying_type,omitempty"`
	SpecialAdCategories []string `json:"special_ad_categories,omitempty" yaml:"special_ad_categories,omitempty"`
}

// CampaignData is the sync-relevant campaign payload. Exactly one of the
// platform blocks is expected to be set, matching Platform.
type CampaignData struct {
	Platform  Platform          `json:"platform" yaml:"platform"`
	Objective string            `json:"objective,omitempty" yaml:"objective,omitempty"`
	Status    string            `json:"status,omitempty" yaml:"status,omitempty"`
	Budget    *Budget           `json:"budget,omitempty" yaml:"budget,omitempty"`
	Reddit    *RedditCampaign   `json:"reddit,omitempty" yaml:"reddit,omitempty"`
	Google    *GoogleCampaign   `json:"google,omitempty" yaml:"google,omitempty"`
	Facebook  *FacebookCampaign `json:"facebook,omitempty" yaml:"facebook,omitempty"`
	Extra     map[string]any    `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Fields returns the top-level sync-relevant fields. Status is lower-cased so
// "ACTIVE" on the platform equals "active" locally.
func (d CampaignData) Fields() map[string]any {
	f := map[string]any{
		"platform":  d.Platform,
		"objective": d.Objective,
		"status":    strings.ToLower(d.Status),
		"budget":    d.Budget,
	}
	switch d.Platform {
	case PlatformReddit:
		f["reddit"] = d.Reddit
	case PlatformGoogle:
		f["google"] = d.Google
	case PlatformFacebook:
		f["facebook"] = d.Facebook
	}
	mergeExtra(f, d.Extra)
	return f
}

// Targeting describes who an ad group reaches.
type Targeting struct {
	Locations []string `json:"locations,omitempty" yaml:"locations,omitempty"`
	Languages []string `json:"languages,omitempty" yaml:"languages,omitempty"`
	Devices   []string `json:"devices,omitempty" yaml:"devices,omitempty"`
	Interests []string `json:"interests,omitempty" yaml:"interests,omitempty"`
	Keywords  []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	AgeMin    int      `json:"age_min,omitempty" yaml:"age_min,omitempty"`
	AgeMax    int      `json:"age_max,omitempty" yaml:"age_max,omitempty"`
}

// AdGroupData is the sync-relevant ad group payload.
type AdGroupData struct {
	Status    string         `json:"status,omitempty" yaml:"status,omitempty"`
	Targeting *Targeting     `json:"targeting,omitempty" yaml:"targeting,omitempty"`
	BidAmount float64        `json:"bid_amount,omitempty" yaml:"bid_amount,omitempty"`
	Extra     map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

func (d AdGroupData) Fields() map[string]any {
	f := map[string]any{
		"status":     strings.ToLower(d.Status),
		"targeting":  d.Targeting,
		"bid_amount": d.BidAmount,
	}
	mergeExtra(f, d.Extra)
	return f
}

// AdData is the sync-relevant creative payload.
type AdData struct {
	Status       string         `json:"status,omitempty" yaml:"status,omitempty"`
	Headline     string         `json:"headline" yaml:"headline"`
	Description  string         `json:"description,omitempty" yaml:"description,omitempty"`
	DisplayURL   string         `json:"display_url,omitempty" yaml:"display_url,omitempty"`
	FinalURL     string         `json:"final_url,omitempty" yaml:"final_url,omitempty"`
	CallToAction string         `json:"call_to_action,omitempty" yaml:"call_to_action,omitempty"`
	Extra        map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

func (d AdData) Fields() map[string]any {
	f := map[string]any{
		"status":         strings.ToLower(d.Status),
		"headline":       d.Headline,
		"description":    d.Description,
		"display_url":    d.DisplayURL,
		"final_url":      d.FinalURL,
		"call_to_action": d.CallToAction,
	}
	mergeExtra(f, d.Extra)
	return f
}

// mergeExtra lifts sidecar keys to the top level without shadowing typed fields.
func mergeExtra(f map[string]any, extra map[string]any) {
	for k, v := range extra {
		if _, taken := f[k]; taken {
			k = "extra." + k
		}
		f[k] = v
	}
}
