package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lumenlabs/lumen/internal/config"
	"github.com/lumenlabs/lumen/internal/logging"
	"github.com/lumenlabs/lumen/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the agent engine and its HTTP boundary",
	RunE: func(cmd *cobra.Command, args []string) error {
		logging.Enable()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		eng, err := buildEngine(cfg)
		if err != nil {
			return err
		}
		defer eng.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv := server.New(eng.orchestrator, eng.scheduler, eng.sessions, eng.bus, server.Options{
			Addr:    cfg.Server.Addr,
			AgentID: cfg.AgentID,
			Policy:  eng.policy(),
		})

		if configPath != "" {
			stopWatch, err := config.Watch(configPath, func(updated *config.Config) {
				logging.Infof("[Main] config changed on disk; restart to apply")
			})
			if err != nil {
				logging.Warnf("[Main] config watch: %v", err)
			} else {
				defer stopWatch()
			}
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			eng.scheduler.Run(gctx)
			return nil
		})
		g.Go(srv.ListenAndServe)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}
