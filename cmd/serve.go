package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/healthmap/internal/api"
	"github.com/sells-group/healthmap/internal/demand"
)

var (
	servePort     int
	serveSchedule bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API, tile server and recompute scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}
		if serveSchedule {
			if err := cfg.Validate("schedule"); err != nil {
				return err
			}
		}

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		engine := e.Engine()
		tileHandler := e.TileHandler()
		if tileHandler != nil {
			engine.OnReplace(tileHandler.ZonesReplaced)
		}

		if serveSchedule {
			go demand.NewScheduler(engine, cfg.Engine.Interval, cfg.Engine.RunOnStart).Start(ctx)
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           api.NewServer(cfg.Server, e.Service(), engine, tileHandler).Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server",
			zap.Int("port", cfg.Server.Port),
			zap.String("store", cfg.Store.Driver),
			zap.Bool("tiles", tileHandler != nil),
			zap.Bool("schedule", serveSchedule),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTP listen port; 0 keeps server.port from the config")
	serveCmd.Flags().BoolVar(&serveSchedule, "schedule", true, "run the periodic recompute in-process")
	rootCmd.AddCommand(serveCmd)
}
