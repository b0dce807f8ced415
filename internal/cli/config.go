package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/taskcal/internal/config"
)

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the taskcal configuration file",
	}

	cmd.AddCommand(newConfigInitCommand(rootOpts))

	return cmd
}

func newConfigInitCommand(opts *RootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the current configuration to a file",
		Long: `Write the resolved configuration (defaults, existing files and flags) as
YAML. Without a path the user config file ~/.config/taskcal/config.yaml is
written. An existing file is kept unless --force is given.

Example:
  taskcal --api-url http://tasks.local:5000 config init`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)

			path := config.NewLoader(opts.Logger).UserConfigPath()
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return formatter.Fail(ExitCommandError, ErrCodeUsage, "no home directory; pass a path", nil)
			}

			if !force {
				if _, err := os.Stat(path); err == nil {
					return formatter.Fail(ExitCommandError, ErrCodeUsage,
						fmt.Sprintf("%s already exists (use --force to overwrite)", path), nil)
				} else if !errors.Is(err, fs.ErrNotExist) {
					return formatter.Fail(ExitFailure, ErrCodeWriteFailed, "could not check config file", err)
				}
			}

			if err := opts.Config.SaveToFile(path); err != nil {
				return formatter.Fail(ExitFailure, ErrCodeWriteFailed, "could not write config", err)
			}
			return formatter.Render(map[string]string{"path": path}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Wrote %s\n", path)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}
