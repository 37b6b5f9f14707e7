package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dougwithseismic/dotoro-ads-sub008/internal/definitions"
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/platform/memory"
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/syncer"
)

type planOutput struct {
	Diff       syncer.DiffResult  `json:"diff"`
	Operations []syncer.Operation `json:"operations"`
}

func diffCmd(o *cliOptions) *cobra.Command {
	var (
		file    string
		dopts   syncer.DiffOptions
		summary bool
	)
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Compare local and platform campaigns and plan the sync",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := definitions.LoadState(file)
			if err != nil {
				return err
			}
			d := syncer.Diff(s.Local, s.Platform, dopts)
			ops := syncer.GenerateOperations(d)
			if summary {
				return writePlan(cmd.OutOrStdout(), d, ops)
			}
			return render(cmd.OutOrStdout(), o.format(), planOutput{Diff: d, Operations: ops})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "state file (YAML)")
	_ = cmd.MarkFlagRequired("file")
	cmd.Flags().BoolVar(&dopts.TrackDeletions, "track-deletions", false, "delete platform entities with no local counterpart")
	cmd.Flags().StringSliceVar(&dopts.IgnoreFields, "ignore", nil, "fields left out of change detection")
	cmd.Flags().BoolVar(&summary, "summary", false, "print a table instead of the full diff")
	return cmd
}

// writePlan prints the summary counts and one line per operation.
func writePlan(out io.Writer, d syncer.DiffResult, ops []syncer.Operation) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	s := d.Summary
	fmt.Fprintf(w, "creates\t%d\n", s.CreateCount)
	fmt.Fprintf(w, "updates\t%d\n", s.UpdateCount)
	fmt.Fprintf(w, "deletes\t%d\n", s.DeleteCount)
	fmt.Fprintf(w, "unchanged\t%d\n", s.UnchangedCount)
	fmt.Fprintf(w, "api calls\t%d\n", s.EstimatedAPICalls)
	if len(ops) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "#\tTYPE\tENTITY\tID\tNAME")
		for i, op := range ops {
			id := op.PlatformID
			if id == "" {
				id = op.LocalID
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i+1, op.Type, op.EntityType, id, op.Name)
		}
	}
	return w.Flush()
}

type syncOutput struct {
	Result    syncer.SyncResult `json:"result"`
	Remaining syncer.DiffResult `json:"remaining"`
}

func syncCmd(o *cliOptions) *cobra.Command {
	var (
		file        string
		dopts       syncer.DiffOptions
		transaction bool
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a planned sync against an in-memory sandbox platform",
		Long: `Sync seeds a sandbox platform with the file's platform campaigns, applies
the planned operations and diffs again to show what is left.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := definitions.LoadState(file)
			if err != nil {
				return err
			}

			sandbox := memory.New("sandbox")
			for _, c := range s.Platform {
				sandbox.Seed(c)
			}
			eng := syncer.New(sandbox)

			ops := eng.GenerateOperations(eng.Diff(s.Local, s.Platform, dopts))
			res := eng.ExecuteSync(ctx, ops, syncer.ExecuteOptions{TransactionMode: transaction})

			after, err := eng.PlatformState(ctx, sandbox.CampaignIDs())
			if err != nil {
				return err
			}
			out := syncOutput{Result: res, Remaining: eng.Diff(s.Local, after, dopts)}
			if err := render(cmd.OutOrStdout(), o.format(), out); err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("sync %s: %d of %d operations failed", res.Status(), len(res.Errors), len(ops))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "state file (YAML)")
	_ = cmd.MarkFlagRequired("file")
	cmd.Flags().BoolVar(&dopts.TrackDeletions, "track-deletions", false, "delete platform entities with no local counterpart")
	cmd.Flags().BoolVar(&transaction, "transaction", false, "stop at the first failure and roll back creates")
	return cmd
}
