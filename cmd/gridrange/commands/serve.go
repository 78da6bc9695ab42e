package commands

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	audithttp "abitudini/gridrange/internal/adapters/http/audit"
	contributionhttp "abitudini/gridrange/internal/adapters/http/contribution"
	healthhttp "abitudini/gridrange/internal/adapters/http/health"
	apphealth "abitudini/gridrange/internal/application/health"
	"abitudini/gridrange/internal/infrastructure/http/middleware"
	"abitudini/gridrange/internal/infrastructure/http/server"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt := wire(ctx)
			defer rt.close()

			auth, err := middleware.NewJWTAuthenticator(cfg.Auth, log)
			if err != nil {
				return fmt.Errorf("create authenticator: %w", err)
			}

			health := apphealth.NewService(apphealth.Metadata{
				Service:     cfg.App.Name,
				Version:     cfg.App.Version,
				Environment: cfg.App.Environment,
			}, rt.checks...)

			contribution := contributionhttp.NewHandler(rt.service, log)

			var auditHandler http.Handler
			if rt.auditRepo != nil {
				auditHandler = http.HandlerFunc(audithttp.NewHandler(rt.auditRepo, log).Trail)
			}

			srv, err := server.New(server.Options{
				Config:          cfg,
				Logger:          log,
				HealthHandler:   http.HandlerFunc(healthhttp.NewHandler(health, log).Status),
				RangeHandler:    http.HandlerFunc(contribution.Range),
				RequestsHandler: http.HandlerFunc(contribution.Requests),
				LoadHandler:     http.HandlerFunc(contribution.Load),
				AuditHandler:    auditHandler,
				Authenticator:   auth,
			})
			if err != nil {
				auth.Close()
				return fmt.Errorf("create server: %w", err)
			}
			defer srv.Close()

			log.Info("Starting HTTP server",
				"port", cfg.HTTP.Port,
				"auth_enabled", cfg.Auth.Enabled,
				"timezone", cfg.Grid.Timezone,
			)
			return srv.Run(ctx)
		},
	}
}
