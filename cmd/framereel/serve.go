package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/framereel"
	"pkt.systems/framereel/core"
	"pkt.systems/framereel/httpapi"
	"pkt.systems/framereel/internal/appconfig"
	"pkt.systems/framereel/internal/chromerender"
	"pkt.systems/pslog"
)

func newServeCmd() *cobra.Command {
	var cfgPath string
	var surfaceURL string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the recorder against a live surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if surfaceURL != "" {
				cfg.Surface.URL = surfaceURL
			}

			browser, err := chromerender.Start(cmd.Context(), chromerender.Config{
				URL:            cfg.Surface.URL,
				ViewportWidth:  cfg.Surface.ViewportWidth,
				ViewportHeight: cfg.Surface.ViewportHeight,
				Headless:       cfg.Surface.Headless,
			}, logger)
			if err != nil {
				return err
			}
			defer browser.Close()

			serverCfg := framereel.ServerConfig{
				Service: cfg.ServiceConfig(),
				HTTP: httpapi.Config{
					Addr:     cfg.HTTP.Addr,
					BasePath: cfg.HTTP.BasePath,
				},
				HubHistory: 1000,
			}
			serverDeps := framereel.ServerDeps{
				ServiceDeps: core.ServiceDeps{
					Surface:  browser.Surface(),
					Renderer: browser.Renderer(),
					Logger:   logger,
				},
			}
			server, err := framereel.New(serverCfg, serverDeps, framereel.WithHTTP())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Stop(stopCtx); err != nil {
					logger.Warn("server stop failed", "err", err)
				}
			}()
			logger.Info("http server listening", "addr", serverCfg.HTTP.Addr)
			if err := server.Start(ctx); err != nil {
				return err
			}
			return server.Wait()
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&surfaceURL, "url", "", "surface url to record (overrides config)")
	return cmd
}
