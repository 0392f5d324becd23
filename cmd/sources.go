package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harborgrid/c360/internal/model"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Manage registered source systems",
}

var (
	sourceOwner string
	sourceDesc  string
)

var sourcesRegisterCmd = &cobra.Command{
	Use:   "register <name>",
	Short: "Register a new source system",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := buildEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		src := &model.SourceSystem{Name: args[0], Owner: sourceOwner, Description: sourceDesc}
		if err := env.Registry.Register(cmd.Context(), src); err != nil {
			return err
		}
		fmt.Printf("registered %s (%s)\n", src.Name, src.ID)
		return nil
	},
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List source systems",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := buildEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		sources, err := env.Store.ListSourceSystems(cmd.Context())
		if err != nil {
			return err
		}
		for _, src := range sources {
			state := "active"
			if !src.Active {
				state = "inactive"
			}
			if src.Degraded {
				state += ", degraded"
			}
			fmt.Printf("%-36s  %-20s  %s\n", src.ID, src.Name, state)
		}
		return nil
	},
}

var scanAdapterFlag string

var sourcesScanCmd = &cobra.Command{
	Use:   "scan <source-system-id>",
	Short: "Scan a source system's attributes",
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
		attrs, err := env.Registry.Scan(cmd.Context(), args[0], adapter)
		if err != nil {
			return err
		}
		for _, attr := range attrs {
			fmt.Printf("%-30s  %s\n", attr.Name, attr.DataType)
		}
		fmt.Printf("%d attributes\n", len(attrs))
		return nil
	},
}

func init() {
	sourcesRegisterCmd.Flags().StringVar(&sourceOwner, "owner", "", "owning team")
	sourcesRegisterCmd.Flags().StringVar(&sourceDesc, "description", "", "description")
	sourcesScanCmd.Flags().StringVar(&scanAdapterFlag, "adapter", "", "scan adapter (default from config)")
	sourcesCmd.AddCommand(sourcesRegisterCmd, sourcesListCmd, sourcesScanCmd)
	rootCmd.AddCommand(sourcesCmd)
}
