package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *cli) backupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the local locale files into the backup directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			dest, err := c.local().Snapshot(c.cfg.BackupDir)
			if err != nil {
				return fmt.Errorf("snapshot: %w", err)
			}
			if c.jsonOutput {
				return c.printJSON(cmd, map[string]string{"snapshot": dest})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "snapshot written to %s\n", dest)
			return nil
		},
	}
}
