package definitions

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dougwithseismic/dotoro-ads-sub008/internal/model"
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/rules"
)

const bundleYAML = `
template:
  id: tpl-1
  name: "{brand} - {product}"
  platform: google
  objective: traffic
  budget: {type: daily, amount: 25}
  ad_group_templates:
    - id: ag
      name: "{product} buyers"
      targeting:
        keywords: ["{product|lower}"]
      ad_templates:
        - id: ad
          headline: "Buy {product}"
          description: "From {brand}"
  variation_sources:
    - field: color
      values: [red, blue]
rules:
  - id: premium
    name: Premium
    enabled: true
    priority: 1
    condition_group:
      logic: or
      conditions:
        - field: price
          operator: greater_than
          value: 100
        - logic: and
          conditions:
            - {field: brand, operator: equals, value: acme}
    actions:
      - {type: add_tag, tag: premium}
rows:
  - {brand: Acme, product: Boots, price: 120}
  - {brand: Zed, product: Hat, price: 10}
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad(t *testing.T) {
	b, err := Load(writeFile(t, "bundle.yaml", bundleYAML))
	require.NoError(t, err)

	require.NotNil(t, b.Template)
	assert.Equal(t, model.PlatformGoogle, b.Template.Platform)
	assert.Equal(t, 25.0, b.Template.Budget.Amount)
	require.Len(t, b.Template.AdGroupTemplates, 1)
	assert.Equal(t, []string{"{product|lower}"}, b.Template.AdGroupTemplates[0].Targeting.Keywords)
	assert.Equal(t, []string{"red", "blue"}, b.Template.VariationSources[0].Values)

	require.Len(t, b.Rules, 1)
	g := b.Rules[0].ConditionGroup
	assert.Equal(t, rules.LogicOr, g.Logic)
	require.Len(t, g.Conditions, 2)
	assert.IsType(t, rules.ConditionGroup{}, g.Conditions[1])

	require.Len(t, b.Rows, 2)
	assert.Equal(t, 120, b.Rows[0]["price"])
	assert.Equal(t, "Hat", b.Rows[1]["product"])

	e := rules.NewEngine()
	assert.True(t, e.EvaluateConditionGroup(g, b.Rows[0]))
	assert.False(t, e.EvaluateConditionGroup(g, b.Rows[1]))
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"empty", "", ErrEmptyFile},
		{"bad rule action", "rules:\n  - id: r\n    actions:\n      - {type: add_tag}\n", rules.ErrInvalidRule},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.body))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := Decode(strings.NewReader("template: {id: t, platform: myspace}\n"))
	assert.ErrorContains(t, err, "unknown platform")

	_, err = Decode(strings.NewReader("rules:\n  - condition_group: {conditions: [{field: a, operator: near}]}\n"))
	assert.ErrorContains(t, err, "unknown operator")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadState(t *testing.T) {
	p := writeFile(t, "state.yaml", `
local:
  - id: c1
    name: Spring
    status: ready
    data: {platform: reddit, objective: traffic, status: active}
    ad_groups:
      - id: g1
        name: Group
        status: ready
        ads:
          - {id: a1, name: Ad, status: ready, data: {headline: Hi}}
platform:
  - platform_id: t3_1
    local_id: c1
    name: Spring
    data: {platform: reddit, objective: traffic, status: ACTIVE}
`)
	s, err := LoadState(p)
	require.NoError(t, err)
	require.Len(t, s.Local, 1)
	assert.Equal(t, "Hi", s.Local[0].AdGroups[0].Ads[0].Data.Headline)
	require.Len(t, s.Platform, 1)
	assert.Equal(t, "c1", s.Platform[0].LocalID)
	assert.Equal(t, s.Local[0].ContentHash(), s.Platform[0].ContentHash())
}
