package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/myzkey/lark-kit/webhook"
)

func newDecryptCommand(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "decrypt [encrypted]",
		Short: "Decrypt an encrypted event payload",
		Long:  `Decrypt the "encrypt" value of an event callback with the configured encrypt key. The value is read from stdin when no argument is given.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := load()
			if err != nil {
				return err
			}
			if cfg.EncryptKey == "" {
				return errors.New("encrypt key is not configured (LARK_ENCRYPT_KEY)")
			}

			var encrypted string
			if len(args) == 1 {
				encrypted = args[0]
			} else {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
				encrypted = string(b)
			}

			plaintext, err := webhook.Decrypt(cfg.EncryptKey, strings.TrimSpace(encrypted))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), plaintext)
			return nil
		},
	}
}
