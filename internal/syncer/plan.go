package syncer

import (
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/diff"
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/model"
)

// Diff compares the hierarchy level by level. Children are diffed only under
// campaigns and ad groups that are created, updated or unchanged; a deleted
// parent takes its children with it, a skipped draft keeps them untouched.
func Diff(local []model.LocalCampaign, platform []model.PlatformCampaign, opts DiffOptions) DiffResult {
	dopts := diff.Options{IncludeDeleted: opts.TrackDeletions, IgnoreFields: opts.IgnoreFields}
	res := DiffResult{
		Campaigns: diff.Calculate(local, platform, dopts),
		AdGroups:  []AdGroupDiff{},
		Ads:       []AdDiff{},
	}

	for _, c := range res.Campaigns.Creates {
		res.diffAdGroups(c.ID, "", c.AdGroups, nil, dopts)
	}
	for _, u := range res.Campaigns.Updates {
		res.diffAdGroups(u.Local.ID, u.Platform.PlatformID, u.Local.AdGroups, u.Platform.AdGroups, dopts)
	}
	for _, p := range res.Campaigns.InSync {
		res.diffAdGroups(p.Local.ID, p.Platform.PlatformID, p.Local.AdGroups, p.Platform.AdGroups, dopts)
	}

	res.Summary = addSummary(res.Summary, res.Campaigns.Summary)
	for _, g := range res.AdGroups {
		res.Summary = addSummary(res.Summary, g.Diff.Summary)
	}
	for _, a := range res.Ads {
		res.Summary = addSummary(res.Summary, a.Diff.Summary)
	}
	return res
}

func (r *DiffResult) diffAdGroups(campaignID, campaignPID string, local []model.LocalAdGroup, platform []model.PlatformAdGroup, opts diff.Options) {
	if len(local) == 0 && len(platform) == 0 {
		return
	}
	d := diff.Calculate(local, platform, opts)
	r.AdGroups = append(r.AdGroups, AdGroupDiff{CampaignLocalID: campaignID, CampaignPlatformID: campaignPID, Diff: d})

	for _, g := range d.Creates {
		r.diffAds(g.ID, "", g.Ads, nil, opts)
	}
	for _, u := range d.Updates {
		r.diffAds(u.Local.ID, u.Platform.PlatformID, u.Local.Ads, u.Platform.Ads, opts)
	}
	for _, p := range d.InSync {
		r.diffAds(p.Local.ID, p.Platform.PlatformID, p.Local.Ads, p.Platform.Ads, opts)
	}
}

func (r *DiffResult) diffAds(adGroupID, adGroupPID string, local []model.LocalAd, platform []model.PlatformAd, opts diff.Options) {
	if len(local) == 0 && len(platform) == 0 {
		return
	}
	d := diff.Calculate(local, platform, opts)
	r.Ads = append(r.Ads, AdDiff{AdGroupLocalID: adGroupID, AdGroupPlatformID: adGroupPID, Diff: d})
}

func addSummary(a, b diff.Summary) diff.Summary {
	return diff.Summary{
		CreateCount:       a.CreateCount + b.CreateCount,
		UpdateCount:       a.UpdateCount + b.UpdateCount,
		DeleteCount:       a.DeleteCount + b.DeleteCount,
		UnchangedCount:    a.UnchangedCount + b.UnchangedCount,
		EstimatedAPICalls: a.EstimatedAPICalls + b.EstimatedAPICalls,
	}
}

// GenerateOperations orders the diff for execution: creates top-down so
// every parent exists before its children, then updates, then deletes
// bottom-up.
func GenerateOperations(d DiffResult) []Operation {
	ops := make([]Operation, 0, d.Summary.EstimatedAPICalls)

	for _, c := range d.Campaigns.Creates {
		ops = append(ops, campaignOp(OpCreate, c, ""))
	}
	for _, g := range d.AdGroups {
		for _, ag := range g.Diff.Creates {
			op := adGroupOp(OpCreate, ag, "")
			op.ParentLocalID, op.ParentPlatformID = g.CampaignLocalID, g.CampaignPlatformID
			ops = append(ops, op)
		}
	}
	for _, a := range d.Ads {
		for _, ad := range a.Diff.Creates {
			op := adOp(OpCreate, ad, "")
			op.ParentLocalID, op.ParentPlatformID = a.AdGroupLocalID, a.AdGroupPlatformID
			ops = append(ops, op)
		}
	}

	for _, u := range d.Campaigns.Updates {
		op := campaignOp(OpUpdate, u.Local, u.Platform.PlatformID)
		op.ChangedFields = u.ChangedFields
		ops = append(ops, op)
	}
	for _, g := range d.AdGroups {
		for _, u := range g.Diff.Updates {
			op := adGroupOp(OpUpdate, u.Local, u.Platform.PlatformID)
			op.ParentLocalID, op.ParentPlatformID = g.CampaignLocalID, g.CampaignPlatformID
			op.ChangedFields = u.ChangedFields
			ops = append(ops, op)
		}
	}
	for _, a := range d.Ads {
		for _, u := range a.Diff.Updates {
			op := adOp(OpUpdate, u.Local, u.Platform.PlatformID)
			op.ParentLocalID, op.ParentPlatformID = a.AdGroupLocalID, a.AdGroupPlatformID
			op.ChangedFields = u.ChangedFields
			ops = append(ops, op)
		}
	}

	for _, a := range d.Ads {
		for _, p := range a.Diff.Deletes {
			ops = append(ops, Operation{Type: OpDelete, EntityType: model.EntityAd, PlatformID: p.PlatformID, LocalID: p.LocalID, Name: p.Name})
		}
	}
	for _, g := range d.AdGroups {
		for _, p := range g.Diff.Deletes {
			ops = append(ops, Operation{Type: OpDelete, EntityType: model.EntityAdGroup, PlatformID: p.PlatformID, LocalID: p.LocalID, Name: p.Name})
		}
	}
	for _, p := range d.Campaigns.Deletes {
		ops = append(ops, Operation{Type: OpDelete, EntityType: model.EntityCampaign, PlatformID: p.PlatformID, LocalID: p.LocalID, Name: p.Name})
	}
	return ops
}

func campaignOp(t OperationType, c model.LocalCampaign, platformID string) Operation {
	data := c.Data
	return Operation{Type: t, EntityType: model.EntityCampaign, LocalID: c.ID, PlatformID: platformID, Name: c.Name, Campaign: &data}
}

func adGroupOp(t OperationType, g model.LocalAdGroup, platformID string) Operation {
	data := g.Data
	return Operation{Type: t, EntityType: model.EntityAdGroup, LocalID: g.ID, PlatformID: platformID, Name: g.Name, AdGroup: &data}
}

func adOp(t OperationType, a model.LocalAd, platformID string) Operation {
	data := a.Data
	return Operation{Type: t, EntityType: model.EntityAd, LocalID: a.ID, PlatformID: platformID, Name: a.Name, Ad: &data}
}
