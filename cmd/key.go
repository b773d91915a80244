package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/screenpilot/internal/credentials"
	"github.com/xkilldash9x/screenpilot/internal/observability"
)

func newKeyCmd() *cobra.Command {
	keyCmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the decision endpoint API key",
	}

	setCmd := &cobra.Command{
		Use:   "set [key]",
		Short: "Save the API key to the credentials file (reads stdin when no key is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromContext(cmd.Context())
			if err != nil {
				return err
			}
			store, err := credentials.NewFileStore(cfg.Credentials().File)
			if err != nil {
				return err
			}

			var key string
			if len(args) == 1 {
				key = args[0]
			} else {
				fmt.Fprint(cmd.ErrOrStderr(), "API key: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("failed to read key: %w", err)
				}
				key = line
			}
			key = strings.TrimSpace(key)

			if err := store.Save(key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s to %s\n", observability.Redact(key), store.Path())
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show which API key would be used, redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromContext(cmd.Context())
			if err != nil {
				return err
			}
			store, err := credentialStore(cfg.Credentials(), observability.GetLogger())
			if err != nil {
				return err
			}
			key, err := store.Credential(cmd.Context())
			if err != nil && !errors.Is(err, credentials.ErrNoCredential) {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), observability.Redact(key))
			return nil
		},
	}

	keyCmd.AddCommand(setCmd, showCmd)
	return keyCmd
}
