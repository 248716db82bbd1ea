package cmd

import (
	"github.com/spf13/cobra"

	"aggregator/internal/storage"
)

func newRunsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent pipeline runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openStores()
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			if err := st.runs.EnsureSchema(ctx); err != nil {
				return err
			}
			history, err := st.runs.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			renderRuns(cmd.OutOrStdout(), history)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", storage.DefaultRunsLimit, "maximum number of runs to show")
	return cmd
}
