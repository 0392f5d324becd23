package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harborgrid/c360/internal/registry"
)

var seedCmd = &cobra.Command{
	Use:   "seed <catalog.yaml>",
	Short: "Seed the target attribute catalog from a YAML fixture",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fixture, err := registry.LoadCatalogFixture(args[0])
		if err != nil {
			return err
		}

		env, err := buildEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		created, err := registry.SeedCatalog(cmd.Context(), env.Store, fixture)
		if err != nil {
			return err
		}
		fmt.Printf("created %d target attributes\n", created)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
