package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var mappingsCmd = &cobra.Command{
	Use:   "mappings",
	Short: "Suggest and validate attribute mappings",
}

var suggestCmd = &cobra.Command{
	Use:   "suggest <source-system-id>",
	Short: "Rank candidate mappings for a source system",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := buildEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		suggestions, err := env.Suggester.Suggest(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		for _, s := range suggestions {
			fmt.Printf("%.2f  %-25s -> %-25s  %s  [%s]\n",
				s.ConfidenceScore, s.SourceAttribute, s.TargetAttribute, s.TransformationLogic, s.Scorer)
		}
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <mapping-id>",
	Short: "Validate a mapping against sampled data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := buildEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		adapter := scanAdapterFlag
		if adapter == "" {
			adapter = cfg.Scan.Adapter
		}
		run, err := env.Validator.Validate(cmd.Context(), args[0], adapter)
		if err != nil {
			return err
		}
		fmt.Printf("status: %s  confidence: %.2f  samples: %d\n", run.Status, run.Confidence, len(run.Samples))
		for _, issue := range run.Issues {
			fmt.Printf("  issue: %s\n", issue)
		}
		return nil
	},
}

var mappingStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show mapping counts by status",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := buildEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		stats, err := env.Store.MappingStats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("total: %d\n", stats.Total)
		for status, count := range stats.ByStatus {
			fmt.Printf("  %-10s %d\n", status, count)
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&scanAdapterFlag, "adapter", "", "scan adapter (default from config)")
	mappingsCmd.AddCommand(suggestCmd, validateCmd, mappingStatsCmd)
	rootCmd.AddCommand(mappingsCmd)
}
