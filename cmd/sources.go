package cmd

import (
	"github.com/spf13/cobra"

	"aggregator/internal/etl/sources"
)

func newSourcesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the extractors and the configuration keys they read",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry, err := sources.NewRegistry(cfg.SourceOptions(), log)
			if err != nil {
				return err
			}
			renderSources(cmd.OutOrStdout(), registry.Specs(), cfg.Inputs())
			return nil
		},
	}
}
