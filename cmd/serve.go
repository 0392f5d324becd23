package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harborgrid/c360/internal/jobs"
	"github.com/harborgrid/c360/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the integration engine API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := buildEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		scheduler := jobs.NewScheduler(env.Orch, time.Duration(cfg.Jobs.SchedulerIntervalSecs)*time.Second)
		go scheduler.Run(ctx)

		srv := server.New(server.Deps{
			Store:        env.Store,
			Registry:     env.Registry,
			Suggester:    env.Suggester,
			Validator:    env.Validator,
			Lineage:      env.Lineage,
			Quality:      env.Quality,
			Orchestrator: env.Orch,
			ScanAdapter:  cfg.Scan.Adapter,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		httpSrv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: srv.Router(),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			httpSrv.Shutdown(ctx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
