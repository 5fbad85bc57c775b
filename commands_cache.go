package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newCacheCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the download cache",
	}
	cmd.AddCommand(newCacheInfoCmd(opts), newCacheCleanCmd(opts), newCachePruneCmd(opts))
	return cmd
}

func newCacheInfoCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show cache location and usage",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.openApp(cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			info, err := a.Cache.Info()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "directory: %s\n", info.Directory)
			fmt.Fprintf(out, "entries:   %d\n", info.Entries)
			fmt.Fprintf(out, "size:      %d bytes\n", info.TotalBytes)
			fmt.Fprintf(out, "leases:    %d\n", info.Leases)
			return nil
		},
	}
}

func newCacheCleanCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove every cached document",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.openApp(cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			removed, err := a.Cache.Clean(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries\n", removed)
			return nil
		},
	}
}

func newCachePruneCmd(opts *cliOptions) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove lease files left behind by exited processes",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.openApp(cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			age := olderThan
			if !cmd.Flags().Changed("older-than") {
				age = a.Config.Global.LeaseMaxAge.DurationValue()
			}
			pruned, err := a.Cache.PruneLeases(age)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %d leases\n", pruned)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "minimum lease age (default LeaseMaxAge)")
	return cmd
}
