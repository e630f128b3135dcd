package main

import (
	"time"

	"github.com/mashiike/imageai"
	"github.com/mashiike/imageai/metrics"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the image-ai HTTP API",
		Long: `Run the HTTP API:
  POST /image-ai/enhance   enhance the selected host asset
  POST /image-ai/generate  generate an image, optionally from reference images
  GET  /health             liveness probe
  GET  /metrics            Prometheus metrics (METRICS_PATH)

Requests must carry a bearer JWT signed with JWT_SECRET. On AWS Lambda the
same routes are served through the Lambda runtime.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.ValidateServe(); err != nil {
				return err
			}
			if addr == "" {
				addr = a.cfg.Addr
			}
			server, err := a.newServer(cmd, addr)
			if err != nil {
				return err
			}
			a.logger.InfoContext(cmd.Context(), "starting image-ai server", "addr", addr, "provider", a.cfg.Provider, "asset_backend", a.cfg.AssetBackend)
			return server.RunWithContext(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: ADDR)")
	return cmd
}

func (a *app) newServer(cmd *cobra.Command, addr string) (*imageai.Server, error) {
	m := metrics.New()
	m.Instrument(a.registry)

	resolver, err := a.assetResolver(cmd.Context())
	if err != nil {
		return nil, err
	}

	authenticator := imageai.NewJWTAuthenticator([]byte(a.cfg.JWTSecret))
	if a.cfg.JWTAudience != "" {
		authenticator = authenticator.WithAudience(a.cfg.JWTAudience)
	}

	service := imageai.NewService(a.factory(), resolver,
		imageai.WithFetcher(a.fetcher()),
		imageai.WithLogger(a.logger),
	)
	server := &imageai.Server{
		Addr:          addr,
		Service:       service,
		Authenticator: authenticator,
		MaxBodyBytes:  a.cfg.MaxBodyBytes,
		Logger:        a.logger,
	}
	server.Use(m.Middleware)
	if a.cfg.RateLimit > 0 {
		limiter := imageai.NewRateLimiter(rate.Limit(a.cfg.RateLimit), a.cfg.RateBurst, a.logger).
			TrustProxies(a.cfg.TrustedProxies)
		limiter.StartCleanup(cmd.Context(), 10*time.Minute)
		server.Use(limiter.Middleware)
	}
	server.Handle(a.cfg.MetricsPath, m.Handler())
	return server, nil
}
