package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Account management commands",
	}

	cmd.AddCommand(newUserCreateCmd(a))

	return cmd
}

func newUserCreateCmd(a *app) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "create <username>",
		Short: "Create an account (or verify an existing one)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				return fmt.Errorf("--password is required")
			}
			u, err := a.store.FindOrCreateUser(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			a.print(u)
			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "Account password (required)")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}
