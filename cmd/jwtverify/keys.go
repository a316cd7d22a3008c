package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newKeysCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List the issuer's signing keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, release, err := a.newVerifier(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KID\tKTY\tALG\tUSE")
			for _, k := range v.Keys().Keys() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", k.Kid, k.Kty, k.Algorithm(), k.Use)
			}
			return tw.Flush()
		},
	}
}
