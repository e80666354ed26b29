package main

import (
	"github.com/spf13/cobra"

	"postpilot/internal/proxy"
)

// proxyCmd runs the local routing proxy
var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Run the local routing proxy",
	Long: `Serves a reverse proxy that routes social, generation, and other
traffic to their configured origins. GET /proxy-status reports liveness.
Useful for pointing the pipeline at recorded or substituted upstreams.`,
	RunE: runProxy,
}

func runProxy(cmd *cobra.Command, args []string) error {
	srv, err := proxy.New(proxy.Config{
		Addr:             cfg.Proxy.Addr,
		SocialOrigin:     cfg.Proxy.SocialOrigin,
		GenerationOrigin: cfg.Proxy.GenerationOrigin,
		DefaultOrigin:    cfg.Proxy.DefaultOrigin,
	}, logger)
	if err != nil {
		return err
	}
	return srv.ListenAndServe()
}
