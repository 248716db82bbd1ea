package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"aggregator/internal/logger"
)

func newSearchCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "search <column> <value>",
		Short:   "Look up stored rows where column equals value",
		Example: "  aggregator search column_1 a\n  aggregator search source json",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			column, value := args[0], args[1]

			st, err := openStores()
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			if err := st.records.EnsureSchema(ctx); err != nil {
				return err
			}
			rows, err := st.records.Search(ctx, column, value)
			if err != nil {
				return fmt.Errorf("search %s=%q: %w", column, value, err)
			}
			log.Debug("search complete", logger.String("column", column), logger.Int("matches", len(rows)))

			renderMatches(cmd.OutOrStdout(), st.records.Columns(), column, value, rows)
			return nil
		},
	}
}
