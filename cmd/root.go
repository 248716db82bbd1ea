// Package cmd implements the aggregator command-line interface.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"aggregator/internal/config"
	"aggregator/internal/etl"
	"aggregator/internal/etl/sources"
	"aggregator/internal/logger"
	"aggregator/internal/storage"
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// debug forces the log level to debug.
	debug bool

	// v carries defaults, env overrides and bound flags for every command.
	v = config.NewViper()

	// Set by PersistentPreRunE.
	cfg *config.Config
	log logger.Logger = logger.NewNop()

	rootCmd = &cobra.Command{
		Use:   "aggregator",
		Short: "Aggregate CSV, XML, JSON and HTML records into one SQLite table",
		Long: `aggregator extracts records from a CSV file, an XML document, a JSON file and
an HTML page, normalizes each to a fixed number of columns, stores them in a
single SQLite table tagged by source and runs a lookup over the result.`,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  setup,
		PersistentPostRunE: teardown,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is ./config.yaml or ./config/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(
		newRunCommand(),
		newSearchCommand(),
		newSchemaCommand(),
		newRunsCommand(),
		newSourcesCommand(),
		newWatchCommand(),
	)
}

// setup loads configuration and builds the logger once for the whole process.
func setup(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	if debug {
		loaded.Log.Level = "debug"
	}

	l, err := logger.New(loaded.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	cfg, log = loaded, l

	if cfg.File != "" {
		log.Debug("config loaded", logger.String("file", cfg.File))
	}
	return nil
}

func teardown(*cobra.Command, []string) error {
	if err := log.Sync(); err != nil {
		fmt.Fprintf(os.Stderr, "flush logs: %v\n", err)
	}
	return nil
}

// ── Shared wiring ──────────────────────────────────────────

// stores bundles the open database with its two stores.
type stores struct {
	db      *storage.DB
	records *storage.RecordStore
	runs    *storage.RunStore
}

func openStores() (*stores, error) {
	db, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return nil, err
	}
	records, err := storage.NewRecordStore(db.Conn(), cfg.Storage.Columns)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &stores{db: db, records: records, runs: storage.NewRunStore(db.Conn())}, nil
}

func (s *stores) Close() {
	if err := s.db.Close(); err != nil {
		log.Warn("close database", logger.Error(err))
	}
}

// newEngine wires extractors and stores from the loaded configuration.
func newEngine(st *stores) (*etl.Engine, error) {
	registry, err := sources.NewRegistry(cfg.SourceOptions(), log)
	if err != nil {
		return nil, err
	}
	return &etl.Engine{
		Extractors: registry,
		Inputs:     cfg.Inputs(),
		Store:      st.records,
		Runs:       st.runs,
		Query:      cfg.SearchQuery(),
		Log:        log,
	}, nil
}

// bindFlag maps a command flag onto a config key, so flags win over file and env.
func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", flag, err))
	}
}
