package generator

import (
	"unicode/utf8"

	"github.com/dougwithseismic/dotoro-ads-sub008/internal/model"
)

// Limits are maximum character counts; zero means unchecked.
type Limits struct {
	CampaignName int
	AdGroupName  int
	Headline     int
	Description  int
	DisplayURL   int
	CallToAction int
}

var platformLimits = map[model.Platform]Limits{
	model.PlatformGoogle: {
		CampaignName: 255,
		AdGroupName:  255,
		Headline:     30,
		Description:  90,
		DisplayURL:   15,
		CallToAction: 10,
	},
	model.PlatformFacebook: {
		CampaignName: 400,
		AdGroupName:  400,
		Headline:     40,
		Description:  125,
		DisplayURL:   0,
		CallToAction: 0,
	},
	model.PlatformReddit: {
		CampaignName: 255,
		AdGroupName:  255,
		Headline:     300,
		Description:  500,
		DisplayURL:   0,
		CallToAction: 0,
	},
}

// LimitsFor returns the character limits of p.
func LimitsFor(p model.Platform) (Limits, bool) {
	l, ok := platformLimits[p]
	return l, ok
}

func checkLimit(p model.Platform, entityID, field, value string, limit int) *ValidationWarning {
	if limit <= 0 {
		return nil
	}
	n := utf8.RuneCountInString(value)
	if n <= limit {
		return nil
	}
	return &ValidationWarning{Platform: p, EntityID: entityID, Field: field, Value: value, Length: n, Limit: limit}
}

func validateCampaign(c GeneratedCampaign) []ValidationWarning {
	l, ok := LimitsFor(c.Platform)
	if !ok {
		return nil
	}
	var out []ValidationWarning
	add := func(w *ValidationWarning) {
		if w != nil {
			out = append(out, *w)
		}
	}
	add(checkLimit(c.Platform, c.ID, "campaign.name", c.Name, l.CampaignName))
	for _, g := range c.AdGroups {
		add(checkLimit(c.Platform, g.ID, "ad_group.name", g.Name, l.AdGroupName))
		for _, a := range g.Ads {
			add(checkLimit(c.Platform, a.ID, "ad.headline", a.Headline, l.Headline))
			add(checkLimit(c.Platform, a.ID, "ad.description", a.Description, l.Description))
			add(checkLimit(c.Platform, a.ID, "ad.display_url", a.DisplayURL, l.DisplayURL))
			add(checkLimit(c.Platform, a.ID, "ad.call_to_action", a.CallToAction, l.CallToAction))
		}
	}
	return out
}
