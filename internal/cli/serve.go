package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/roach88/taskcal/internal/config"
	"github.com/roach88/taskcal/internal/server"
	"github.com/roach88/taskcal/internal/taskdb"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the task backend",
		Long: `Serve the task REST API (/api/tasks), a health probe (/api/health)
and Prometheus metrics (/metrics) until interrupted.

Tasks are kept in SQLite (server.backend: sqlite) or Neo4j
(server.backend: neo4j).

Example:
  taskcal serve --addr :5000`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides server.addr)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	cfg := opts.Config
	logger := opts.Logger

	addr := cfg.Server.Addr
	if opts.Addr != "" {
		addr = opts.Addr
	}

	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	repo, err := openRepository(ctx, cfg)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStorage, "failed to open task database", err)
	}
	defer func() {
		if closeErr := repo.Close(context.Background()); closeErr != nil {
			logger.Error("error closing task database", "error", closeErr)
		}
	}()
	logger.Info("task database ready", "backend", cfg.Server.Backend)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv := server.New(repo, logger, reg)
	fmt.Fprintf(cmd.OutOrStdout(), "Serving tasks on %s. Press Ctrl-C to stop.\n", addr)

	if err := srv.ListenAndServe(ctx, addr); err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, "server error", err)
	}

	logger.Info("task backend stopped gracefully")
	return nil
}

// openRepository opens the configured task database.
func openRepository(ctx context.Context, cfg *config.Config) (taskdb.Repository, error) {
	switch cfg.Server.Backend {
	case config.BackendNeo4j:
		return taskdb.OpenNeo4j(ctx, taskdb.Neo4jConfig{
			URI:      cfg.Neo4j.URI,
			Username: cfg.Neo4j.Username,
			Password: cfg.Neo4j.Password,
			Database: cfg.Neo4j.Database,
		})
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.Server.DB), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		return taskdb.OpenSQLite(cfg.Server.DB)
	}
}
