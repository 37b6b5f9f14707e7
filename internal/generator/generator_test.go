package generator

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dougwithseismic/dotoro-ads-sub008/internal/model"
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/rules"
)

func shoeTemplate() CampaignTemplate {
	return CampaignTemplate{
		ID:        "tpl-1",
		Name:      "{brand} - {product}",
		Platform:  model.PlatformGoogle,
		Objective: "conversions",
		Budget:    &model.Budget{Type: "daily", Amount: 50, Currency: "USD"},
		AdGroupTemplates: []AdGroupTemplate{
			{
				ID:   "ag-1",
				Name: "{product} buyers",
				Targeting: &model.Targeting{
					Locations: []string{"{city}", "{region}"},
					Keywords:  []string{"{product|lower}"},
				},
				AdTemplates: []AdTemplate{
					{ID: "ad-1", Headline: "Buy {product}", Description: "From {brand}", FinalURL: "https://shop.example/{product|slug}"},
					{ID: "ad-2", Headline: "{product} sale", Description: "Only ${price}", CallToAction: "Shop"},
				},
			},
		},
	}
}

func TestGenerate_Basic(t *testing.T) {
	g := New()
	rows := []model.Row{
		{"id": "r1", "brand": "Acme", "product": "Trail Runner", "price": 99, "city": "Denver", "region": "CO"},
		{"id": "r2", "brand": "Acme", "product": "Road Racer", "price": 120, "city": "Austin", "region": "TX"},
	}

	res := g.Generate(shoeTemplate(), rows, Options{})

	require.Len(t, res.Campaigns, 2)
	c := res.Campaigns[0]
	assert.Equal(t, "Acme - Trail Runner", c.Name)
	assert.Equal(t, "tpl-1", c.TemplateID)
	assert.Equal(t, "r1", c.SourceRowID)
	assert.Equal(t, 50.0, c.Budget.Amount)
	require.Len(t, c.AdGroups, 1)
	assert.Equal(t, "Trail Runner buyers", c.AdGroups[0].Name)
	assert.Equal(t, []string{"Denver", "CO"}, c.AdGroups[0].Targeting.Locations)
	assert.Equal(t, []string{"trail runner"}, c.AdGroups[0].Targeting.Keywords)
	require.Len(t, c.AdGroups[0].Ads, 2)
	assert.Equal(t, "Buy Trail Runner", c.AdGroups[0].Ads[0].Headline)
	assert.Equal(t, "https://shop.example/trail-runner", c.AdGroups[0].Ads[0].FinalURL)
	assert.Equal(t, "Only $99", c.AdGroups[0].Ads[1].Description)
	assert.Equal(t, "r1", c.AdGroups[0].Ads[1].SourceRowID)

	assert.Empty(t, res.Warnings)
	assert.Equal(t, Stats{RowsProcessed: 2, TotalCampaigns: 2, TotalAdGroups: 2, TotalAds: 4}, res.Stats)
}

func TestGenerate_UniqueIDs(t *testing.T) {
	rows := make([]model.Row, 20)
	for i := range rows {
		rows[i] = model.Row{"brand": "b", "product": fmt.Sprintf("p%d", i), "price": i, "city": "c", "region": "r"}
	}

	res := New().Generate(shoeTemplate(), rows, Options{})

	seen := map[string]bool{}
	for _, c := range res.Campaigns {
		for _, id := range append([]string{c.ID}, collectIDs(c)...) {
			require.False(t, seen[id], "duplicate id %s", id)
			seen[id] = true
		}
	}
	assert.Len(t, seen, 20*(1+1+2))
}

func collectIDs(c GeneratedCampaign) []string {
	var ids []string
	for _, ag := range c.AdGroups {
		ids = append(ids, ag.ID)
		for _, a := range ag.Ads {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

func TestGenerate_MissingAndNilVariables(t *testing.T) {
	rows := []model.Row{{"brand": "Acme", "product": nil, "price": 10, "city": "Reno", "region": "NV"}}

	res := New().Generate(shoeTemplate(), rows, Options{})

	require.Len(t, res.Campaigns, 1)
	assert.Equal(t, "Acme - ", res.Campaigns[0].Name)
	require.NotEmpty(t, res.Warnings)
	assert.Equal(t, "campaign.name", res.Warnings[0].Field)
	assert.Equal(t, "product", res.Warnings[0].Variable)
	assert.Equal(t, "row-0", res.Warnings[0].RowID)
	// keyword list drops entries that rendered empty
	assert.Empty(t, res.Campaigns[0].AdGroups[0].Targeting.Keywords)
}

func TestGenerate_EdgeCases(t *testing.T) {
	t.Run("zero rows", func(t *testing.T) {
		res := New().Generate(shoeTemplate(), nil, Options{PreviewMode: true})
		assert.Empty(t, res.Campaigns)
		assert.NotNil(t, res.Campaigns)
		assert.Equal(t, Stats{}, res.Stats)
	})

	t.Run("no ad group templates", func(t *testing.T) {
		tpl := CampaignTemplate{ID: "t", Name: "{x}", Platform: model.PlatformReddit}
		res := New().Generate(tpl, []model.Row{{"x": "one"}, {"x": "two"}}, Options{})
		require.Len(t, res.Campaigns, 2)
		assert.Empty(t, res.Campaigns[0].AdGroups)
		assert.Equal(t, 0, res.Stats.TotalAdGroups)
	})
}

func TestGenerate_CartesianProduct(t *testing.T) {
	tpl := CampaignTemplate{
		ID:   "t",
		Name: "{product} / {color} / {size}",
		VariationSources: []VariationSource{
			{Field: "color", Values: []string{"red", "blue"}},
			{Field: "size", Values: []string{"S", "M", "L"}},
			{Field: "ignored", Values: nil},
		},
		AdGroupTemplates: []AdGroupTemplate{{Name: "g", AdTemplates: []AdTemplate{{Headline: "{color} {product}"}}}},
	}
	rows := []model.Row{{"product": "tee"}, {"product": "hoodie"}}

	res := New().Generate(tpl, rows, Options{EnableCartesianProduct: true})

	assert.Equal(t, 2*2*3, res.Stats.TotalCampaigns)
	assert.Equal(t, "tee / red / S", res.Campaigns[0].Name)
	assert.Equal(t, map[string]string{"color": "red", "size": "S"}, res.Campaigns[0].Variation)
	assert.Equal(t, "hoodie / blue / L", res.Campaigns[11].Name)
	assert.NotContains(t, rows[0], "color", "rows must not be mutated")

	off := New().Generate(tpl, rows, Options{})
	assert.Equal(t, 2, off.Stats.TotalCampaigns)
}

func duplicateAdTemplate() CampaignTemplate {
	ad := AdTemplate{Headline: "Same headline", Description: "Same description"}
	return CampaignTemplate{
		ID:   "t",
		Name: "camp",
		AdGroupTemplates: []AdGroupTemplate{
			{Name: "g1", AdTemplates: []AdTemplate{ad}},
			{Name: "g2", AdTemplates: []AdTemplate{ad}},
			{Name: "g3", AdTemplates: []AdTemplate{ad}},
		},
	}
}

func TestGenerate_DeduplicateAds(t *testing.T) {
	rows := []model.Row{{}}

	res := New().Generate(duplicateAdTemplate(), rows, Options{DeduplicateAds: true})

	assert.Equal(t, 2, res.Stats.DuplicateAdsRemoved)
	assert.Equal(t, 1, res.Stats.TotalAds)
	assert.Len(t, res.Campaigns[0].AdGroups[0].Ads, 1)
	assert.Empty(t, res.Campaigns[0].AdGroups[1].Ads)
	assert.Equal(t, 3, res.Stats.TotalAdGroups)

	scoped := New().Generate(duplicateAdTemplate(), rows, Options{DeduplicateAds: true, DedupScope: DedupAdGroup})
	assert.Equal(t, 0, scoped.Stats.DuplicateAdsRemoved)
	assert.Equal(t, 3, scoped.Stats.TotalAds)
}

func TestGenerate_DeduplicateAdsAcrossCampaigns(t *testing.T) {
	tpl := CampaignTemplate{
		Name:             "{city}",
		AdGroupTemplates: []AdGroupTemplate{{Name: "g", AdTemplates: []AdTemplate{{Headline: "Shoes", Description: "Fast"}}}},
	}
	res := New().Generate(tpl, []model.Row{{"city": "a"}, {"city": "b"}}, Options{DeduplicateAds: true})

	assert.Equal(t, 1, res.Stats.DuplicateAdsRemoved)
	assert.Equal(t, 1, res.Stats.TotalAds)
}

func TestGenerate_DedupKeyDoesNotCollideOnPipe(t *testing.T) {
	tpl := CampaignTemplate{
		Name: "c",
		AdGroupTemplates: []AdGroupTemplate{{Name: "g", AdTemplates: []AdTemplate{
			{Headline: "a|b", Description: "c"},
			{Headline: "a", Description: "b|c"},
		}}},
	}
	res := New().Generate(tpl, []model.Row{{}}, Options{DeduplicateAds: true})

	assert.Equal(t, 0, res.Stats.DuplicateAdsRemoved)
	assert.Equal(t, 2, res.Stats.TotalAds)
}

func TestGenerate_DeduplicateCampaigns(t *testing.T) {
	tpl := CampaignTemplate{
		Name:             "{brand}",
		AdGroupTemplates: []AdGroupTemplate{{Name: "g", AdTemplates: []AdTemplate{{Headline: "{headline}"}}}},
	}
	rows := []model.Row{
		{"id": "1", "brand": "Acme", "headline": "Hello"},
		{"id": "2", "brand": "Acme", "headline": "Hello"},
		{"id": "3", "brand": "Acme", "headline": "Different"},
	}

	res := New().Generate(tpl, rows, Options{DeduplicateCampaigns: true})

	assert.Equal(t, 1, res.Stats.DuplicateCampaignsRemoved)
	require.Len(t, res.Campaigns, 2)
	assert.Equal(t, "1", res.Campaigns[0].SourceRowID)
	assert.Equal(t, "3", res.Campaigns[1].SourceRowID, "same name with different ads is kept")
}

func TestGenerate_PreviewKeepsFullTotals(t *testing.T) {
	rows := make([]model.Row, 100)
	for i := range rows {
		rows[i] = model.Row{"brand": "b", "product": fmt.Sprint(i), "price": i, "city": "c", "region": "r"}
	}

	res := New().Generate(shoeTemplate(), rows, Options{PreviewMode: true, PreviewLimit: 5})

	assert.Len(t, res.Campaigns, 5)
	assert.True(t, res.Truncated)
	assert.Equal(t, 100, res.Stats.TotalCampaigns)
	assert.Equal(t, 100, res.Stats.TotalAdGroups)
	assert.Equal(t, 200, res.Stats.TotalAds)
}

func TestGenerate_PlatformLimits(t *testing.T) {
	tpl := shoeTemplate()
	rows := []model.Row{{"brand": "Acme", "product": strings.Repeat("x", 40), "price": 1, "city": "c", "region": "r"}}

	res := New().Generate(tpl, rows, Options{ValidatePlatformLimits: true})

	require.Len(t, res.Campaigns, 1, "generation proceeds regardless")
	var fields []string
	for _, w := range res.ValidationWarnings {
		fields = append(fields, w.Field)
		assert.Equal(t, model.PlatformGoogle, w.Platform)
	}
	assert.Contains(t, fields, "ad.headline")
	assert.NotContains(t, fields, "campaign.name")

	quiet := New().Generate(tpl, rows, Options{})
	assert.Empty(t, quiet.ValidationWarnings)
}

func TestGenerate_WithRules(t *testing.T) {
	rs := []rules.Rule{
		{
			ID: "skip-oos", Enabled: true, Priority: 1,
			ConditionGroup: rules.And(rules.Cond("stock", rules.OpEquals, 0)),
			Actions:        []rules.Action{{Type: rules.ActionSkip}},
		},
		{
			ID: "premium", Enabled: true, Priority: 2,
			ConditionGroup: rules.And(rules.Cond("price", rules.OpGreaterThan, 100)),
			Actions: []rules.Action{
				{Type: rules.ActionSetField, Field: "brand", Value: "{brand} Premium"},
				{Type: rules.ActionAddToGroup, Group: "premium"},
				{Type: rules.ActionAddTag, Tag: "high-value"},
			},
		},
	}
	rows := []model.Row{
		{"brand": "Acme", "product": "A", "price": 150, "stock": 4, "city": "c", "region": "r"},
		{"brand": "Acme", "product": "B", "price": 50, "stock": 0, "city": "c", "region": "r"},
		{"brand": "Acme", "product": "C", "price": 50, "stock": 2, "city": "c", "region": "r"},
	}

	res := New().Generate(shoeTemplate(), rows, Options{Rules: rs})

	assert.Equal(t, 3, res.Stats.RowsProcessed)
	assert.Equal(t, 1, res.Stats.RowsSkipped)
	require.Len(t, res.Campaigns, 2)
	assert.Equal(t, "Acme Premium - A", res.Campaigns[0].Name)
	assert.Equal(t, []string{"premium"}, res.Campaigns[0].Groups)
	assert.Equal(t, []string{"high-value"}, res.Campaigns[0].Tags)
	assert.Equal(t, "row-2", res.Campaigns[1].SourceRowID, "source row keeps its original index")
}

func TestGenerate_DeterministicIDs(t *testing.T) {
	n := 0
	g := New(WithIDFunc(func() string { n++; return fmt.Sprintf("id-%d", n) }))

	res := g.Generate(duplicateAdTemplate(), []model.Row{{}}, Options{})

	assert.Equal(t, "id-1", res.Campaigns[0].ID)
	assert.Equal(t, "id-2", res.Campaigns[0].AdGroups[0].ID)
	assert.Equal(t, "id-3", res.Campaigns[0].AdGroups[0].Ads[0].ID)
}

func TestToLocal(t *testing.T) {
	rows := []model.Row{{"brand": "Acme", "product": "Boots", "price": 10, "city": "c", "region": "r"}}
	res := New().Generate(shoeTemplate(), rows, Options{})

	local := ToLocal(res.Campaigns, model.StatusDraft)
	require.Len(t, local, 1)
	c := local[0]
	assert.Equal(t, res.Campaigns[0].ID, c.ID)
	assert.True(t, c.IsDraft())
	assert.NotEmpty(t, c.Hash)
	require.Len(t, c.AdGroups, 1)
	require.Len(t, c.AdGroups[0].Ads, len(res.Campaigns[0].AdGroups[0].Ads))
	assert.Equal(t, res.Campaigns[0].AdGroups[0].Ads[0].Headline, c.AdGroups[0].Ads[0].Data.Headline)
	assert.NotEmpty(t, c.AdGroups[0].Ads[0].Hash)
}
