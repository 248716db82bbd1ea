package cmd

import (
	"github.com/spf13/cobra"

	"aggregator/internal/service"
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once: extract, normalize, store, search",
		Example: `  aggregator run --csv in/people.csv --json in/items.json --url https://example.com
  aggregator run --column source --value html`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openStores()
			if err != nil {
				return err
			}
			defer st.Close()

			engine, err := newEngine(st)
			if err != nil {
				return err
			}

			svc := service.NewPipelineService(engine, service.LogEmitter{Log: log}, log)
			result, runErr := svc.RunOnce(cmd.Context())
			if result != nil {
				renderRunResult(cmd.OutOrStdout(), result, st.records.Columns())
			}
			return runErr
		},
	}

	cmd.Flags().String("csv", "", "CSV file path")
	cmd.Flags().String("xml", "", "XML file path")
	cmd.Flags().String("json", "", "JSON file path")
	cmd.Flags().String("url", "", "HTML page URL")
	cmd.Flags().String("column", "", "column to search after loading")
	cmd.Flags().String("value", "", "value to search for")

	bindFlag(cmd, "sources.csv.path", "csv")
	bindFlag(cmd, "sources.xml.path", "xml")
	bindFlag(cmd, "sources.json.path", "json")
	bindFlag(cmd, "sources.html.url", "url")
	bindFlag(cmd, "query.column", "column")
	bindFlag(cmd, "query.value", "value")
	return cmd
}
