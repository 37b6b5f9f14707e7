package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dougwithseismic/dotoro-ads-sub008/internal/definitions"
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/rules"
)

func rulesCmd(o *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Evaluate and test rules against data rows",
	}
	cmd.AddCommand(rulesEvalCmd(o))
	cmd.AddCommand(rulesTestCmd(o))
	return cmd
}

func rulesEvalCmd(o *cliOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Run every enabled rule over every row",
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := definitions.Load(file)
			if err != nil {
				return err
			}
			results := o.ruleEngine().ProcessDataset(b.Rules, b.Rows)
			return render(cmd.OutOrStdout(), o.format(), map[string]any{"results": results})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "definitions file (YAML)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func rulesTestCmd(o *cliOptions) *cobra.Command {
	var file, id string
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Preview one rule against the sample rows",
		Long:  "Test shows which rows a rule matches and what its actions would do. Disabled rules can be tested.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := definitions.Load(file)
			if err != nil {
				return err
			}
			rl, ok := findRule(b.Rules, id)
			if !ok {
				return fmt.Errorf("rule %q not found in %s", id, file)
			}
			return render(cmd.OutOrStdout(), o.format(), o.ruleEngine().TestRule(rl, b.Rows))
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "definitions file (YAML)")
	cmd.Flags().StringVar(&id, "rule", "", "rule id")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("rule")
	return cmd
}

func findRule(rs []rules.Rule, id string) (rules.Rule, bool) {
	for _, rl := range rs {
		if rl.ID == id {
			return rl, true
		}
	}
	return rules.Rule{}, false
}
