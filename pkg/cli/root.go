package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/flowindex/pkg/config"
	"github.com/platinummonkey/flowindex/pkg/indexer"
	"github.com/platinummonkey/flowindex/pkg/observability"
	"github.com/platinummonkey/flowindex/pkg/search"
	"github.com/platinummonkey/flowindex/pkg/storage"
)

// globalOptions are the persistent flags shared by every command
type globalOptions struct {
	configPath   string
	workflowsDir string
	databasePath string
	logLevel     string
	jsonOutput   bool
}

// NewRootCommand creates the flowindex command tree
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "flowindex",
		Short: "Index and search a directory of workflow JSON files",
		Long: heredoc.Doc(`
			flowindex analyzes workflow JSON documents, stores one record per file in an
			SQLite database with a full-text index, and answers filtered, paginated
			searches from the command line or over HTTP.

			Settings come from defaults, an optional YAML file (--config or
			$FLOWINDEX_CONFIG), FLOWINDEX_* environment variables and finally flags.
		`),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "YAML configuration file")
	flags.StringVarP(&opts.workflowsDir, "dir", "d", "", "workflows directory (overrides configuration)")
	flags.StringVar(&opts.databasePath, "db", "", "index database path (overrides configuration)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.BoolVar(&opts.jsonOutput, "json", false, "print results as JSON")

	cmd.AddCommand(
		newIndexCommand(opts),
		newSearchCommand(opts),
		newShowCommand(opts),
		newStatsCommand(opts),
		newPruneCommand(opts),
		newCheckCommand(opts),
		newServeCommand(opts),
	)
	return cmd
}

// Execute runs the command tree with the process arguments
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// loadConfig resolves the configuration and applies flag overrides
func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}

	if o.workflowsDir != "" {
		cfg.Index.WorkflowsDir = o.workflowsDir
	}
	if o.databasePath != "" {
		cfg.Index.DatabasePath = o.databasePath
	}
	if o.logLevel != "" {
		cfg.Observability.LogLevel = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// runtime is what a one-shot command needs: configuration, a logger and an
// open store
type runtime struct {
	cfg    *config.Config
	logger *observability.Logger
	store  *storage.Store
	out    io.Writer
	json   bool
}

// open loads the configuration and opens the index. Commands log human
// readable lines to stderr and print results to the command's output.
func (o *globalOptions) open(cmd *cobra.Command) (*runtime, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := observability.NewTextLogger(cfg.Observability.Level(), cmd.ErrOrStderr())

	store, err := storage.Open(cmd.Context(), cfg.Index.Storage())
	if err != nil {
		return nil, fmt.Errorf("failed to open index %s: %w", cfg.Index.DatabasePath, err)
	}

	return &runtime{
		cfg:    cfg,
		logger: logger,
		store:  store,
		out:    cmd.OutOrStdout(),
		json:   o.jsonOutput,
	}, nil
}

func (rt *runtime) Close() error {
	return rt.store.Close()
}

func (rt *runtime) indexer(metrics *observability.Metrics) *indexer.Indexer {
	return indexer.New(rt.store, indexerConfig(rt.cfg), rt.logger, metrics)
}

func (rt *runtime) service() *search.Service {
	return search.NewService(rt.store, nil, nil)
}

func indexerConfig(cfg *config.Config) indexer.Config {
	return indexer.Config{
		WorkflowsDir: cfg.Index.WorkflowsDir,
		Extension:    cfg.Index.Extension,
		Workers:      cfg.Index.Workers,
		PruneMissing: cfg.Index.PruneMissing,
	}
}

// ensureDir fails early with a readable message when the workflows directory
// is missing
func ensureDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("workflows directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("workflows directory %s is not a directory", dir)
	}
	return nil
}
