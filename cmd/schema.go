package cmd

import (
	"github.com/spf13/cobra"
)

func newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Create the records and runs tables if needed and show the column set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openStores()
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			if err := st.records.EnsureSchema(ctx); err != nil {
				return err
			}
			if err := st.runs.EnsureSchema(ctx); err != nil {
				return err
			}

			counts, err := st.records.CountBySource(ctx)
			if err != nil {
				return err
			}
			renderSchema(cmd.OutOrStdout(), st.db.Path(), st.records.ColumnNames(), counts)
			return nil
		},
	}
}
