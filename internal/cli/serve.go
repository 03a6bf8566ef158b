package cli

import (
	"context"
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	apphttp "homepay/internal/http"
	"homepay/internal/log"
	"homepay/internal/middleware/ratelimit"
	"homepay/internal/services"
)

func newServeCommand(s *session) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the household over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.run(func(ctx context.Context, h *services.Household) error {
				cfg, logger := s.app.Config, s.app.Logger
				if port == "" {
					port = cfg.Port
				}
				srv := apphttp.NewServer(":"+port, h, logger, ratelimit.Config{
					RequestsPerMinute: cfg.RateLimitPerMinute,
				})

				errc := make(chan error, 1)
				go func() {
					logger.Info("Starting homepay server", "port", port, "backend", cfg.Backend,
						log.FieldDocument, h.Document().Name(), log.FieldOperation, log.OpStartup)
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						errc <- err
					}
					close(errc)
				}()

				select {
				case err := <-errc:
					if err != nil {
						logger.Error("Server error", log.FieldError, err, "port", port)
						return err
					}
					return nil
				case <-ctx.Done():
				}

				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Error("Server shutdown error", log.FieldError, err)
					return err
				}
				logger.Info("Server stopped gracefully", log.FieldOperation, log.OpShutdown)
				return nil
			})(cmd, args)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "Listen port; defaults to PORT")
	return cmd
}
