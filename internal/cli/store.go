package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/taskcal/internal/attachment"
)

// StoreInfo is the JSON shape of "store info".
type StoreInfo struct {
	Path        string `json:"path"`
	Keys        int    `json:"keys"`
	Attachments int    `json:"attachments"`
	UsedBytes   int64  `json:"used_bytes"`
	QuotaBytes  int64  `json:"quota_bytes"`
}

// NewStoreCommand creates the store command group.
func NewStoreCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect or clear the local attachment store",
	}

	cmd.AddCommand(newStoreKeysCommand(rootOpts))
	cmd.AddCommand(newStoreInfoCommand(rootOpts))
	cmd.AddCommand(newStoreClearCommand(rootOpts))

	return cmd
}

func newStoreKeysCommand(opts *RootOptions) *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:           "keys",
		Short:         "List stored keys in insertion order",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)
			a, err := openApp(opts, nil)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeStorage, "failed to open store", err)
			}
			defer a.Close()

			keys, err := a.store.Keys(cmd.Context(), prefix)
			if err != nil {
				return formatter.Fail(ExitFailure, ErrCodeStorage, "could not list keys", err)
			}
			return formatter.Render(keys, func(w io.Writer) error {
				for _, k := range keys {
					if _, err := fmt.Fprintln(w, k); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "only keys starting with prefix")
	return cmd
}

func newStoreInfoCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "info",
		Short:         "Show store size and quota",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)
			a, err := openApp(opts, nil)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeStorage, "failed to open store", err)
			}
			defer a.Close()

			ctx := cmd.Context()
			n, err := a.store.Len(ctx)
			if err != nil {
				return formatter.Fail(ExitFailure, ErrCodeStorage, "could not count keys", err)
			}
			att, err := a.store.Keys(ctx, attachment.Prefix)
			if err != nil {
				return formatter.Fail(ExitFailure, ErrCodeStorage, "could not list keys", err)
			}
			used, err := a.store.Usage(ctx)
			if err != nil {
				return formatter.Fail(ExitFailure, ErrCodeStorage, "could not measure usage", err)
			}

			info := StoreInfo{
				Path:        a.cfg.Store.Path,
				Keys:        n,
				Attachments: len(att),
				UsedBytes:   used,
				QuotaBytes:  a.store.Quota(),
			}
			return formatter.Render(info, func(w io.Writer) error {
				quota := "unbounded"
				if info.QuotaBytes > 0 {
					quota = fmt.Sprintf("%d bytes", info.QuotaBytes)
				}
				_, err := fmt.Fprintf(w, "Store:       %s\nKeys:        %d\nAttachments: %d\nUsed:        %d bytes\nQuota:       %s\n",
					info.Path, info.Keys, info.Attachments, info.UsedBytes, quota)
				return err
			})
		},
	}
}

func newStoreClearCommand(opts *RootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear --yes",
		Short: "Delete every key in the store",
		Long: `Delete every key in the local store, including the attachments of
every task. This cannot be undone.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := opts.formatter(cmd)
			if !yes {
				return formatter.Fail(ExitCommandError, ErrCodeUsage, "refusing to clear the store without --yes", nil)
			}

			a, err := openApp(opts, nil)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeStorage, "failed to open store", err)
			}
			defer a.Close()

			n, err := a.store.Len(cmd.Context())
			if err != nil {
				return formatter.Fail(ExitFailure, ErrCodeStorage, "could not count keys", err)
			}
			if err := a.store.Clear(cmd.Context()); err != nil {
				return formatter.Fail(ExitFailure, ErrCodeStorage, "could not clear store", err)
			}
			return formatter.Render(map[string]int{"removed": n}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Removed %d key(s)\n", n)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm clearing the store")
	return cmd
}
