package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/DoctorGattino/blog/api"
	"github.com/DoctorGattino/blog/config"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func newMockAPICmd(a *app) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "mockapi",
		Short: "Serve an in-memory copy of the platform API for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			gin.SetMode(gin.ReleaseMode)
			srv := &http.Server{
				Addr:              ":" + port,
				Handler:           api.NewRouter(api.NewBackend(), a.logger),
				ReadHeaderTimeout: 10 * time.Second,
			}

			a.logger.Info("mock API listening", "addr", srv.Addr)
			fmt.Fprintf(cmd.OutOrStdout(), "export BLOG_API_URL=http://localhost:%s/api\n", port)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()

			select {
			case err := <-errCh:
				return err
			case <-cmd.Context().Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&port, "port", config.GetEnvOrDefault("PORT", config.DefaultMockPort), "listen port")
	return cmd
}
