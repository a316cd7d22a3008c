package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ggoodman/okta-jwt-verifier-go/verifier"
	"github.com/spf13/cobra"
)

func newVerifyCmd(a *app) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "verify [token]",
		Short: "Verify a token and print its header and claims",
		Long:  "Verify a token given as an argument, or read from stdin when omitted, and print the verified header and claims as JSON.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			tok, err := readToken(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			v, release, err := a.newVerifier(ctx)
			if err != nil {
				return err
			}
			defer release()

			var out any
			if raw {
				out, err = verifier.Verify[map[string]any](v, tok)
			} else {
				out, err = v.Verify(tok)
			}
			if err != nil {
				return fmt.Errorf("%s: %w", verifier.Class(err), err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print every claim instead of the standard Okta claims")
	return cmd
}

func readToken(stdin io.Reader, args []string) (string, error) {
	if len(args) == 1 {
		return strings.TrimSpace(args[0]), nil
	}
	b, err := io.ReadAll(io.LimitReader(stdin, 64<<10))
	if err != nil {
		return "", fmt.Errorf("failed to read token from stdin: %w", err)
	}
	tok := strings.TrimSpace(string(b))
	tok = strings.TrimPrefix(tok, "Bearer ")
	if tok == "" {
		return "", errors.New("no token given")
	}
	return tok, nil
}
