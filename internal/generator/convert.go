package generator

import "github.com/dougwithseismic/dotoro-ads-sub008/internal/model"

// ToLocal turns generated campaigns into local state with fresh hashes.
// Generated entities carry no platform status, so every level starts active.
func ToLocal(campaigns []GeneratedCampaign, status model.Status) []model.LocalCampaign {
	out := make([]model.LocalCampaign, 0, len(campaigns))
	for _, c := range campaigns {
		lc := model.LocalCampaign{
			ID:     c.ID,
			Name:   c.Name,
			Status: status,
			Data: model.CampaignData{
				Platform:  c.Platform,
				Objective: c.Objective,
				Status:    "active",
				Budget:    c.Budget,
			},
			AdGroups: make([]model.LocalAdGroup, 0, len(c.AdGroups)),
		}
		for _, g := range c.AdGroups {
			lg := model.LocalAdGroup{
				ID:     g.ID,
				Name:   g.Name,
				Status: status,
				Data:   model.AdGroupData{Status: "active", Targeting: g.Targeting},
				Ads:    make([]model.LocalAd, 0, len(g.Ads)),
			}
			for _, a := range g.Ads {
				lg.Ads = append(lg.Ads, model.LocalAd{
					ID:     a.ID,
					Name:   a.Headline,
					Status: status,
					Data: model.AdData{
						Status:       "active",
						Headline:     a.Headline,
						Description:  a.Description,
						DisplayURL:   a.DisplayURL,
						FinalURL:     a.FinalURL,
						CallToAction: a.CallToAction,
					},
				})
			}
			lc.AdGroups = append(lc.AdGroups, lg)
		}
		lc.Rehash()
		out = append(out, lc)
	}
	return out
}
