// Package generator expands campaign templates across data rows into a
// campaign → ad group → ad hierarchy.
package generator

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/dougwithseismic/dotoro-ads-sub008/internal/fingerprint"
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/model"
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/rules"
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/template"
)

// DefaultPreviewLimit applies when preview mode is on without a limit.
const DefaultPreviewLimit = 10

// adKeySep cannot appear in template output, unlike the "|" used by filters.
const adKeySep = "\x00"

// Generator is stateless apart from its collaborators and safe for concurrent use.
type Generator struct {
	rules *rules.Engine
	newID func() string
}

type Option func(*Generator)

// WithRuleEngine sets the engine used when Options.Rules is non-empty.
func WithRuleEngine(e *rules.Engine) Option {
	return func(g *Generator) { g.rules = e }
}

// WithIDFunc replaces uuid generation, mostly for tests.
func WithIDFunc(f func() string) Option {
	return func(g *Generator) { g.newID = f }
}

func New(opts ...Option) *Generator {
	g := &Generator{rules: rules.NewEngine(), newID: uuid.NewString}
	for _, o := range opts {
		o(g)
	}
	return g
}

type input struct {
	index  int
	row    model.Row
	groups []string
	tags   []string
}

// Generate never fails; template problems surface as warnings.
func (g *Generator) Generate(tpl CampaignTemplate, rows []model.Row, opts Options) Result {
	res := Result{
		Campaigns:          []GeneratedCampaign{},
		Warnings:           []Warning{},
		ValidationWarnings: []ValidationWarning{},
	}

	inputs := g.prepareRows(rows, opts.Rules, &res.Stats)
	combos := []map[string]string{nil}
	if opts.EnableCartesianProduct {
		combos = variations(tpl.VariationSources)
	}

	for _, in := range inputs {
		for _, combo := range combos {
			row := in.row
			if len(combo) > 0 {
				row = row.Clone()
				for k, v := range combo {
					row[k] = v
				}
			}
			c := g.buildCampaign(tpl, in, row, &res.Warnings)
			if len(combo) > 0 {
				c.Variation = combo
			}
			res.Campaigns = append(res.Campaigns, c)
		}
	}

	if opts.DeduplicateCampaigns {
		res.Campaigns, res.Stats.DuplicateCampaignsRemoved = dedupeCampaigns(res.Campaigns)
	}
	if opts.DeduplicateAds {
		res.Stats.DuplicateAdsRemoved = dedupeAds(res.Campaigns, opts.DedupScope)
	}

	res.Stats.TotalCampaigns = len(res.Campaigns)
	for _, c := range res.Campaigns {
		res.Stats.TotalAdGroups += len(c.AdGroups)
		for _, ag := range c.AdGroups {
			res.Stats.TotalAds += len(ag.Ads)
		}
		if opts.ValidatePlatformLimits {
			res.ValidationWarnings = append(res.ValidationWarnings, validateCampaign(c)...)
		}
	}

	if opts.PreviewMode {
		limit := opts.PreviewLimit
		if limit <= 0 {
			limit = DefaultPreviewLimit
		}
		if len(res.Campaigns) > limit {
			res.Campaigns = res.Campaigns[:limit]
			res.Truncated = true
		}
	}
	return res
}

func (g *Generator) prepareRows(rows []model.Row, rs []rules.Rule, stats *Stats) []input {
	stats.RowsProcessed = len(rows)
	out := make([]input, 0, len(rows))
	if len(rs) == 0 {
		for i, r := range rows {
			out = append(out, input{index: i, row: r})
		}
		return out
	}
	for _, pr := range g.rules.ProcessDataset(rs, rows) {
		if pr.ShouldSkip {
			stats.RowsSkipped++
			continue
		}
		out = append(out, input{index: pr.Index, row: pr.ModifiedRow, groups: pr.Groups, tags: pr.Tags})
	}
	return out
}

func (g *Generator) buildCampaign(tpl CampaignTemplate, in input, row model.Row, warnings *[]Warning) GeneratedCampaign {
	rowID := row.SourceID(in.index)
	render := func(field, s string) string {
		r := template.Interpolate(s, row)
		for _, v := range r.Missing {
			*warnings = append(*warnings, Warning{
				RowIndex: in.index, RowID: rowID, Field: field, Variable: v,
				Message: fmt.Sprintf("variable %q is missing or empty in row %s", v, rowID),
			})
		}
		for _, f := range r.UnknownFilters {
			*warnings = append(*warnings, Warning{
				RowIndex: in.index, RowID: rowID, Field: field,
				Message: fmt.Sprintf("unknown filter %q", f),
			})
		}
		return r.Text
	}

	c := GeneratedCampaign{
		ID:          g.newID(),
		TemplateID:  tpl.ID,
		Name:        render("campaign.name", tpl.Name),
		Platform:    tpl.Platform,
		Objective:   tpl.Objective,
		SourceRowID: rowID,
		Groups:      in.groups,
		Tags:        in.tags,
		AdGroups:    make([]GeneratedAdGroup, 0, len(tpl.AdGroupTemplates)),
	}
	if tpl.Budget != nil {
		b := *tpl.Budget
		c.Budget = &b
	}

	for gi, agt := range tpl.AdGroupTemplates {
		prefix := fmt.Sprintf("ad_groups[%d]", gi)
		ag := GeneratedAdGroup{
			ID:        g.newID(),
			Name:      render(prefix+".name", agt.Name),
			Targeting: renderTargeting(agt.Targeting, prefix+".targeting", render),
			Ads:       make([]GeneratedAd, 0, len(agt.AdTemplates)),
		}
		for ai, at := range agt.AdTemplates {
			p := fmt.Sprintf("%s.ads[%d].", prefix, ai)
			ag.Ads = append(ag.Ads, GeneratedAd{
				ID:           g.newID(),
				Headline:     render(p+"headline", at.Headline),
				Description:  render(p+"description", at.Description),
				DisplayURL:   render(p+"display_url", at.DisplayURL),
				FinalURL:     render(p+"final_url", at.FinalURL),
				CallToAction: render(p+"call_to_action", at.CallToAction),
				SourceRowID:  rowID,
			})
		}
		c.AdGroups = append(c.AdGroups, ag)
	}
	return c
}

func renderTargeting(t *model.Targeting, prefix string, render func(field, s string) string) *model.Targeting {
	if t == nil {
		return nil
	}
	list := func(name string, in []string) []string {
		if in == nil {
			return nil
		}
		out := make([]string, 0, len(in))
		for _, s := range in {
			if v := render(prefix+"."+name, s); v != "" {
				out = append(out, v)
			}
		}
		return out
	}
	return &model.Targeting{
		Locations: list("locations", t.Locations),
		Languages: list("languages", t.Languages),
		Devices:   list("devices", t.Devices),
		Interests: list("interests", t.Interests),
		Keywords:  list("keywords", t.Keywords),
		AgeMin:    t.AgeMin,
		AgeMax:    t.AgeMax,
	}
}

// variations returns the cartesian product of all non-empty sources.
func variations(sources []VariationSource) []map[string]string {
	combos := []map[string]string{{}}
	for _, s := range sources {
		if s.Field == "" || len(s.Values) == 0 {
			continue
		}
		next := make([]map[string]string, 0, len(combos)*len(s.Values))
		for _, c := range combos {
			for _, v := range s.Values {
				m := make(map[string]string, len(c)+1)
				for k, cv := range c {
					m[k] = cv
				}
				m[s.Field] = v
				next = append(next, m)
			}
		}
		combos = next
	}
	return combos
}

// dedupeAds collapses ads sharing headline and description, keeping the first.
func dedupeAds(campaigns []GeneratedCampaign, scope DedupScope) int {
	removed := 0
	seen := map[string]struct{}{}
	for ci := range campaigns {
		for gi := range campaigns[ci].AdGroups {
			if scope == DedupAdGroup {
				seen = map[string]struct{}{}
			}
			ag := &campaigns[ci].AdGroups[gi]
			kept := ag.Ads[:0]
			for _, a := range ag.Ads {
				key := a.Headline + adKeySep + a.Description
				if _, dup := seen[key]; dup {
					removed++
					continue
				}
				seen[key] = struct{}{}
				kept = append(kept, a)
			}
			ag.Ads = kept
		}
	}
	return removed
}

type adShape struct {
	Headline, Description, DisplayURL, FinalURL, CallToAction string
}

type adGroupShape struct {
	Name      string
	Targeting *model.Targeting
	Ads       []adShape
}

type campaignShape struct {
	Name      string
	Platform  model.Platform
	Objective string
	Budget    *model.Budget
	AdGroups  []adGroupShape
}

// dedupeCampaigns drops campaigns structurally identical to an earlier one.
// Ids and source rows are provenance, not structure. Campaigns sharing only a
// name are kept.
func dedupeCampaigns(in []GeneratedCampaign) ([]GeneratedCampaign, int) {
	seen := map[string]struct{}{}
	out := in[:0]
	removed := 0
	for _, c := range in {
		shape := campaignShape{Name: c.Name, Platform: c.Platform, Objective: c.Objective, Budget: c.Budget}
		for _, ag := range c.AdGroups {
			gs := adGroupShape{Name: ag.Name, Targeting: ag.Targeting}
			for _, a := range ag.Ads {
				gs.Ads = append(gs.Ads, adShape{a.Headline, a.Description, a.DisplayURL, a.FinalURL, a.CallToAction})
			}
			shape.AdGroups = append(shape.AdGroups, gs)
		}
		key := fingerprint.Canonical(shape)
		if _, dup := seen[key]; dup {
			removed++
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out, removed
}
