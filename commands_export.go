package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/style-hub/style-hub/internal/cache"
	"github.com/style-hub/style-hub/internal/styles"
)

const (
	exportSwiftFormatName = ".swiftformat"
	exportUncrustifyName  = "uncrustify.cfg"
)

func newExportCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export DIR",
		Short: "Copy the selected configuration's cached documents into DIR",
		Long: "Copy the selected configuration's documents into DIR as " +
			exportSwiftFormatName + " and " + exportUncrustifyName + ". " +
			"Nothing is written unless both are cached; a missing document is " +
			"downloaded before the command exits, so a retry succeeds.",
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			selected, ok := a.Preferences.Selected(ctx)
			if !ok {
				return errors.New("no configuration selected")
			}

			dir := args[0]
			err = styles.WithConfiguration(ctx, a.Cache, selected, func(p styles.Paths) error {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}
				if err := copyLeased(p.SwiftFormat, filepath.Join(dir, exportSwiftFormatName)); err != nil {
					return err
				}
				return copyLeased(p.Uncrustify, filepath.Join(dir, exportUncrustifyName))
			})
			if errors.Is(err, cache.ErrCacheMiss) {
				return fmt.Errorf("%s: documents are not cached yet, retry shortly: %w", selected.Name, err)
			}
			if err != nil {
				return fmt.Errorf("export %s: %w", selected.Name, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %s to %s\n", selected.Name, dir)
			return nil
		},
	}
}

func copyLeased(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
