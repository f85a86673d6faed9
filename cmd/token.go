package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/wardenhq/warden/internal/keyring"
)

func NewTokenCommand() *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the remote access token",
		Long: `Manage the remote access token used to authenticate against the daemon.

The token is stored in the OS keyring and takes precedence over any token in
the config file.`,
	}

	tokenCmd.AddCommand(
		newTokenSetCommand(),
		newTokenShowCommand(),
		newTokenClearCommand(),
	)

	return tokenCmd
}

func newTokenSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set [token]",
		Short: "Store the remote access token in the OS keyring",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var token string
			if len(args) == 1 {
				token = args[0]
			} else {
				var err error
				token, err = keyring.PromptToken()
				if err != nil {
					return err
				}
			}

			token = strings.TrimSpace(token)
			if token == "" {
				return fmt.Errorf("token must not be empty")
			}

			if err := keyring.SetToken(token); err != nil {
				return fmt.Errorf("unable to store token: %w", err)
			}
			fmt.Println("Token stored")
			return nil
		},
	}
}

func newTokenShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show whether a token is configured",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token := resolveToken()
			if token == "" {
				fmt.Println("No token configured")
				return nil
			}
			fmt.Printf("Token: %s\n", maskToken(token))
			return nil
		},
	}
}

func newTokenClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "clear",
		Short:   "Remove the remote access token from the OS keyring",
		Aliases: []string{"delete"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := keyring.DeleteToken(); err != nil {
				return fmt.Errorf("unable to remove token: %w", err)
			}
			fmt.Println("Token removed")
			return nil
		},
	}
}

func maskToken(token string) string {
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return token[:2] + strings.Repeat("*", len(token)-4) + token[len(token)-2:]
}
