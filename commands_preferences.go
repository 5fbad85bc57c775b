package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/style-hub/style-hub/internal/app"
	"github.com/style-hub/style-hub/internal/cache"
	"github.com/style-hub/style-hub/internal/styles"
)

func newListCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored configurations; the selected one is marked with *",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.openApp(cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			list := a.Preferences.Configurations(ctx)
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no configurations")
				return nil
			}
			selected, hasSelection := a.Preferences.Selected(ctx)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "\tNAME\tSWIFTFORMAT\tUNCRUSTIFY")
			for _, c := range list {
				mark := ""
				if hasSelection && c.Equal(selected) {
					mark = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", mark, c.Name, c.SwiftFormat, c.Uncrustify)
			}
			return tw.Flush()
		},
	}
}

func newAddCmd(opts *cliOptions) *cobra.Command {
	var noFetch bool
	cmd := &cobra.Command{
		Use:   "add NAME SWIFTFORMAT_URL UNCRUSTIFY_URL",
		Short: "Append a configuration",
		Args:  exactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			record := styles.Configuration{Name: args[0], SwiftFormat: args[1], Uncrustify: args[2]}
			if err := record.Validate(); err != nil {
				return usageError{err: err}
			}

			a, err := opts.openApp(cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			list := append(a.Preferences.Configurations(ctx), record)
			if err := a.Preferences.SetConfigurations(ctx, list); err != nil {
				return err
			}
			if !noFetch {
				for _, id := range record.Resources() {
					a.Cache.EnsureFresh(id)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %q\n", record.Name)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noFetch, "no-fetch", false, "do not download the documents now")
	return cmd
}

func newEditCmd(opts *cliOptions) *cobra.Command {
	var (
		name        string
		swiftFormat string
		uncrustify  string
	)
	cmd := &cobra.Command{
		Use:   "edit NAME",
		Short: "Change fields of the first configuration named NAME",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			list := a.Preferences.Configurations(ctx)
			idx := indexOf(list, args[0])
			if idx < 0 {
				return fmt.Errorf("no configuration named %q", args[0])
			}

			previous := list[idx]
			updated := previous
			if cmd.Flags().Changed("name") {
				updated.Name = name
			}
			if cmd.Flags().Changed("swiftformat") {
				updated.SwiftFormat = swiftFormat
			}
			if cmd.Flags().Changed("uncrustify") {
				updated.Uncrustify = uncrustify
			}
			if err := updated.Validate(); err != nil {
				return usageError{err: err}
			}

			list[idx] = updated
			if err := a.Preferences.SetConfigurations(ctx, list); err != nil {
				return err
			}
			if selected, ok := a.Preferences.Selected(ctx); ok && selected.Equal(previous) {
				if err := a.Preferences.SetSelected(ctx, &updated); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %q\n", updated.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&swiftFormat, "swiftformat", "", "new SwiftFormat document URL")
	cmd.Flags().StringVar(&uncrustify, "uncrustify", "", "new Uncrustify document URL")
	return cmd
}

func newRemoveCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove NAME",
		Short: "Remove the first configuration named NAME",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			list := a.Preferences.Configurations(ctx)
			idx := indexOf(list, args[0])
			if idx < 0 {
				return fmt.Errorf("no configuration named %q", args[0])
			}
			removed := list[idx]
			list = append(list[:idx], list[idx+1:]...)

			if err := a.Preferences.SetConfigurations(ctx, list); err != nil {
				return err
			}
			if selected, ok := a.Preferences.Selected(ctx); ok && selected.Equal(removed) {
				if err := a.Preferences.SetSelected(ctx, nil); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %q\n", removed.Name)
			return nil
		},
	}
}

func newSelectCmd(opts *cliOptions) *cobra.Command {
	var none bool
	cmd := &cobra.Command{
		Use:   "select [NAME]",
		Short: "Select the first configuration named NAME, or clear the selection with --none",
		Args: func(cmd *cobra.Command, args []string) error {
			if none {
				return exactArgs(0)(cmd, args)
			}
			return exactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if none {
				if err := a.Preferences.SetSelected(ctx, nil); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "selection cleared")
				return nil
			}

			record, ok := styles.Find(a.Preferences.Configurations(ctx), args[0])
			if !ok {
				return fmt.Errorf("no configuration named %q", args[0])
			}
			if err := a.Preferences.SetSelected(ctx, &record); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "selected %q\n", record.Name)
			return nil
		},
	}
	cmd.Flags().BoolVar(&none, "none", false, "clear the selection")
	return cmd
}

func newShowCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the selected configuration and the cache state of its documents",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.openApp(cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			selected, ok := a.Preferences.Selected(cmd.Context())
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "no configuration selected")
				return nil
			}
			writeConfiguration(cmd.OutOrStdout(), a, selected)
			return nil
		},
	}
}

func writeConfiguration(w io.Writer, a *app.App, c styles.Configuration) {
	fmt.Fprintf(w, "name:        %s\n", c.Name)
	fmt.Fprintf(w, "swiftformat: %s (%s)\n", c.SwiftFormat, entryState(a, c.SwiftFormat))
	fmt.Fprintf(w, "uncrustify:  %s (%s)\n", c.Uncrustify, entryState(a, c.Uncrustify))
}

func entryState(a *app.App, identity string) string {
	entry, err := a.Cache.Entry(identity)
	switch {
	case err == nil:
		return fmt.Sprintf("cached %s, %d bytes", entry.ModTime.Format("2006-01-02 15:04"), entry.Size)
	case errors.Is(err, cache.ErrNotFound):
		return "not cached"
	default:
		return "unreadable: " + err.Error()
	}
}

func indexOf(list []styles.Configuration, name string) int {
	for i, c := range list {
		if c.Name == name {
			return i
		}
	}
	return -1
}
