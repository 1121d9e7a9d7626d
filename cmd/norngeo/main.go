// Package main provides the NornGeo CLI entry point.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/norngeo/norngeo/pkg/config"
	"github.com/norngeo/norngeo/pkg/layer"
	"github.com/norngeo/norngeo/pkg/server"
	"github.com/norngeo/norngeo/pkg/storage"
)

var (
	version = "0.1.0"
	commit  = "dev" // Set via ldflags: -X main.commit=$(git rev-parse --short HEAD)
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "norngeo",
		Short: "NornGeo - spatial index layer for embedded graph stores",
	}
	root.AddCommand(serveCmd(), versionCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("norngeo %s (%s)\n", version, commit)
		},
	}
}

func serveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the spatial query protocol over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromFile(configPath)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to norngeo.yaml")
	return cmd
}

func serve(cfg *config.Config) error {
	store, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	layers := make(map[string]*layer.LayerIndex, len(cfg.Layers))
	for _, lc := range cfg.Layers {
		ix, err := layer.New(lc.Name, store, lc.Geometry)
		if err != nil {
			return fmt.Errorf("layer %q: %w", lc.Name, err)
		}
		layers[lc.Name] = ix
		log.Printf("norngeo: layer %q ready", lc.Name)
	}

	srv := server.New(cfg.HTTPAddr, layers)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Printf("norngeo: received %s, shutting down", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}

func openEngine(cfg *config.Config) (storage.Engine, error) {
	switch cfg.Engine {
	case config.EngineBadger:
		return storage.NewBadgerEngine(cfg.DataDir)
	default:
		return storage.NewMemoryEngine(), nil
	}
}
