package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ggoodman/okta-jwt-verifier-go/internal/wellknown"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

func newTokenCmd(a *app) *cobra.Command {
	var scopes []string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Obtain an access token with the client credentials grant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if a.cfg.ClientID == "" || a.cfg.ClientSecret == "" {
				return errors.New("CLIENT_ID and CLIENT_SECRET are required")
			}

			client := &http.Client{Timeout: httpTimeout}
			tokenURL, err := a.tokenEndpoint(ctx, client)
			if err != nil {
				return err
			}

			cc := clientcredentials.Config{
				ClientID:     a.cfg.ClientID,
				ClientSecret: a.cfg.ClientSecret,
				TokenURL:     tokenURL,
				Scopes:       scopes,
				AuthStyle:    oauth2.AuthStyleInHeader,
			}
			if len(a.cfg.Audience) > 0 {
				cc.EndpointParams = map[string][]string{"audience": a.cfg.Audience}
			}
			tok, err := cc.Token(context.WithValue(ctx, oauth2.HTTPClient, client))
			if err != nil {
				a.log.ErrorContext(ctx, "token.fetch.fail", slog.String("url", tokenURL), slog.String("err", err.Error()))
				return fmt.Errorf("failed to obtain token: %w", err)
			}
			a.log.InfoContext(ctx, "token.fetch.ok", slog.String("url", tokenURL), slog.Time("expiry", tok.Expiry))
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok.AccessToken)
			return err
		},
	}
	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "scope to request, repeatable")
	return cmd
}

// tokenEndpoint returns the issuer's token endpoint, from discovery when
// enabled and issuer + /v1/token otherwise.
func (a *app) tokenEndpoint(ctx context.Context, client *http.Client) (string, error) {
	if !a.cfg.Discover {
		return a.cfg.Issuer + "/v1/token", nil
	}
	meta, err := wellknown.Discover(ctx, client, a.cfg.Issuer)
	if err != nil {
		return "", err
	}
	if meta.TokenEndpoint == "" {
		return "", fmt.Errorf("issuer %s does not advertise a token endpoint", a.cfg.Issuer)
	}
	return meta.TokenEndpoint, nil
}
