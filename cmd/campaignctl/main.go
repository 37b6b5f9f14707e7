package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dougwithseismic/dotoro-ads-sub008/internal/config"
	"github.com/dougwithseismic/dotoro-ads-sub008/internal/rules"
)

func newRootCmd() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "campaignctl",
		Short: "Evaluate rules, generate campaigns and plan syncs from YAML files",
		Long: `campaignctl runs the campaign pipeline offline.

Definitions files hold a template, a rule set and data rows. State files hold
local and platform campaigns for diffing.`,
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			config.SetupLogging(v.GetString("log.level"), "console")
		},
	}

	cmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().Bool("case-sensitive", false, "compare rule strings case-sensitively")
	cmd.PersistentFlags().StringP("output", "o", "json", "output format (json, yaml)")

	_ = v.BindPFlag("log.level", cmd.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("rules.case_sensitive", cmd.PersistentFlags().Lookup("case-sensitive"))
	_ = v.BindPFlag("output", cmd.PersistentFlags().Lookup("output"))
	v.SetEnvPrefix("APP")
	_ = v.BindEnv("rules.case_sensitive", "APP_RULES_CASE_SENSITIVE")

	opts := &cliOptions{v: v}
	cmd.AddCommand(generateCmd(opts))
	cmd.AddCommand(rulesCmd(opts))
	cmd.AddCommand(diffCmd(opts))
	cmd.AddCommand(syncCmd(opts))
	return cmd
}

// cliOptions exposes the persistent flags to subcommands.
type cliOptions struct {
	v *viper.Viper
}

func (o *cliOptions) ruleEngine() *rules.Engine {
	return rules.NewEngine(rules.WithCaseSensitive(o.v.GetBool("rules.case_sensitive")))
}

func (o *cliOptions) format() string {
	return o.v.GetString("output")
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("interrupted, shutting down")
		cancel()
	}()

	err := newRootCmd().ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
