package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/taskcal/internal/config"
)

// RootOptions holds global flags for all commands, and the configuration
// resolved from them before any subcommand runs.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	APIURL     string
	StorePath  string

	Config *config.Config
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the taskcal CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "taskcal",
		Short: "taskcal - tasks with local attachments",
		Long: `Manage tasks on a taskcal backend and keep file attachments for them
in a local store. Attachments never leave this machine.`,
		SilenceUsage:  true,
		SilenceErrors: true, // main prints errors the commands did not report
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				msg := fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
				fmt.Fprintln(cmd.ErrOrStderr(), "Error:", msg)
				return NewExitError(ExitCommandError, msg)
			}
			return opts.resolve(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (overrides ~/.config/taskcal/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.APIURL, "api-url", "", "task backend base URL (overrides api.base_url)")
	cmd.PersistentFlags().StringVar(&opts.StorePath, "store", "", "attachment store file (overrides store.path)")

	// Add subcommands
	cmd.AddCommand(NewTaskCommand(opts))
	cmd.AddCommand(NewAttachCommand(opts))
	cmd.AddCommand(NewStoreCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))

	return cmd
}

// resolve configures logging and loads the layered configuration:
// defaults, user file, --config file, then flags.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	logLevel := slog.LevelInfo
	if o.Verbose {
		logLevel = slog.LevelDebug
	}
	o.Logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(o.Logger)

	cfg, err := config.NewLoader(o.Logger).Load(o.ConfigPath)
	if err != nil {
		return o.formatter(cmd).Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}

	if o.APIURL != "" {
		cfg.API.BaseURL = o.APIURL
	}
	if o.StorePath != "" {
		cfg.Store.Path = o.StorePath
	}

	if err := cfg.Validate(); err != nil {
		return o.formatter(cmd).Fail(ExitCommandError, ErrCodeConfig, "invalid config", err)
	}
	o.Config = cfg
	return nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
