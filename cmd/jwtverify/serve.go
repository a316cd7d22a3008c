package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ggoodman/okta-jwt-verifier-go/bearer"
	"github.com/ggoodman/okta-jwt-verifier-go/jwks"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		resource string
		scopes   []string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a demo API with a public and a protected route",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			v, release, err := a.newVerifier(ctx)
			if err != nil {
				return err
			}
			defer release()

			if resource == "" {
				resource = "http://" + a.cfg.ListenAddr
			}
			jwksURL := jwks.URL(v.Issuer(), v.Config().KeysEndpoint)
			h := newServeMux(v, a.log, resource, jwksURL, scopes)

			srv := &http.Server{
				Addr:              a.cfg.ListenAddr,
				Handler:           h,
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				a.log.InfoContext(ctx, "http.listen", slog.String("addr", a.cfg.ListenAddr))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			a.log.Info("http.shutdown")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&resource, "resource", "", "public URL of this API, advertised in protected resource metadata")
	cmd.Flags().StringSliceVar(&scopes, "require-scope", nil, "scope every protected request must carry, repeatable")
	return cmd
}

func newServeMux(v bearer.TokenVerifier, log *slog.Logger, resource, jwksURL string, scopes []string) *http.ServeMux {
	issuer := ""
	if iv, ok := v.(interface{ Issuer() string }); ok {
		issuer = iv.Issuer()
	}

	mw := bearer.New(v,
		bearer.WithLogger(log),
		bearer.WithResourceMetadata(resource+bearer.MetadataPath),
		bearer.WithRequiredScopes(scopes...),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Hello, world!\n"))
	})
	mux.Handle("GET /protected", mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, _ := bearer.FromContext(r.Context())
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": "Hello, " + tok.Claims.Sub + "!",
			"claims":  tok.Claims,
		})
	})))
	mux.Handle(bearer.MetadataPath, bearer.MetadataHandler(resource, issuer, jwksURL, scopes...))
	return mux
}
