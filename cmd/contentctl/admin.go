package main

import (
	"fmt"

	"github.com/shwanortho/site/internal/db"
	"github.com/spf13/cobra"
)

func (c *cli) adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin panel accounts",
	}
	cmd.AddCommand(c.adminSetPasswordCmd())
	return cmd
}

func (c *cli) adminSetPasswordCmd() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "set-password",
		Short: "Create an admin account or reset its password",
		RunE: func(cmd *cobra.Command, args []string) error {
			gdb, err := db.Init(c.cfg.DatabasePath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer func() {
				if sqlDB, err := gdb.DB(); err == nil {
					sqlDB.Close()
				}
			}()

			created, err := db.SetPassword(gdb, username, password)
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return c.printJSON(cmd, map[string]any{"username": username, "created": created})
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "created admin %s\n", username)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "password reset for %s\n", username)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "admin", "account name")
	cmd.Flags().StringVarP(&password, "password", "p", "", "new password (required)")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
