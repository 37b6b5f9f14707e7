package main

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dougwithseismic/dotoro-ads-sub008/internal/definitions"
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/generator"
)

func generateCmd(o *cliOptions) *cobra.Command {
	var (
		file       string
		genOpts    generator.Options
		dedupScope string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Expand a campaign template over data rows",
		Long: `Generate applies the file's enabled rules to every row, then expands the
template once per surviving row and variation combination.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := definitions.Load(file)
			if err != nil {
				return err
			}
			if b.Template == nil {
				return errors.New("definitions file has no template")
			}
			genOpts.Rules = b.Rules
			genOpts.DedupScope = generator.DedupScope(dedupScope)

			g := generator.New(generator.WithRuleEngine(o.ruleEngine()))
			res := g.Generate(*b.Template, b.Rows, genOpts)
			log.Info().
				Int("campaigns", res.Stats.TotalCampaigns).
				Int("ads", res.Stats.TotalAds).
				Int("warnings", len(res.Warnings)).
				Msg("generated")
			return render(cmd.OutOrStdout(), o.format(), res)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "definitions file (YAML)")
	_ = cmd.MarkFlagRequired("file")
	cmd.Flags().BoolVar(&genOpts.EnableCartesianProduct, "cartesian", true, "expand variation sources")
	cmd.Flags().BoolVar(&genOpts.ValidatePlatformLimits, "validate-limits", true, "check platform character limits")
	cmd.Flags().BoolVar(&genOpts.DeduplicateAds, "dedupe-ads", true, "remove duplicate ads")
	cmd.Flags().BoolVar(&genOpts.DeduplicateCampaigns, "dedupe-campaigns", false, "remove structurally identical campaigns")
	cmd.Flags().StringVar(&dedupScope, "dedup-scope", string(generator.DedupGlobal), fmt.Sprintf("ad dedup scope (%s, %s)", generator.DedupGlobal, generator.DedupAdGroup))
	cmd.Flags().BoolVar(&genOpts.PreviewMode, "preview", false, "only return the first campaigns")
	cmd.Flags().IntVar(&genOpts.PreviewLimit, "preview-limit", 10, "campaigns returned in preview mode")
	return cmd
}
