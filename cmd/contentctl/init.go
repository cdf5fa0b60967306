package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/shwanortho/site/internal/dictionary"
	"github.com/shwanortho/site/internal/locale"
	"github.com/spf13/cobra"
)

func (c *cli) initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the built-in dictionaries as local locale files",
		Long: `Init seeds en.json and ar.json from the built-in default dictionaries.

Existing files are kept unless --force is given; overwritten files are backed up first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			src := c.local()
			written := []string{}
			for _, l := range locale.Supported {
				path := src.Path(l)
				if _, err := os.Stat(path); err == nil && !force {
					fmt.Fprintf(cmd.ErrOrStderr(), "keeping existing %s\n", path)
					continue
				} else if err != nil && !errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("stat %s: %w", path, err)
				}
				if _, err := src.Save(l, dictionary.Default(l)); err != nil {
					return fmt.Errorf("write %s: %w", l, err)
				}
				written = append(written, path)
			}

			if c.jsonOutput {
				return c.printJSON(cmd, map[string]any{"written": written})
			}
			for _, path := range written {
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing locale files")
	return cmd
}
