// Copyright 2025 Certen Protocol

package main

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/certen/sterling/pkg/bundledir"
	"github.com/certen/sterling/pkg/harness"
	"github.com/certen/sterling/pkg/metrics"
)

func newRunSearchCmd() *cobra.Command {
	var wf buildWorldFlags
	var bundleDir string
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "run-search",
		Short: "Run a world through the search engine and write an evidence bundle directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			dir := bundleDir
			if dir == "" {
				dir = cfg.Directory.BundleDir
			}
			if dir == "" {
				return fmt.Errorf("--bundle-dir (or directory.bundle_dir in --config) is required")
			}

			w, err := wf.build()
			if err != nil {
				return err
			}
			policy := cfg.SearchPolicy.Resolve()

			var recorder *metrics.Recorder
			if metricsAddr != "" {
				reg := prometheus.NewRegistry()
				recorder, err = metrics.NewRecorder(reg, w.WorldID())
				if err != nil {
					return fmt.Errorf("run-search: new recorder: %w", err)
				}
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
				server := &http.Server{Addr: metricsAddr, Handler: mux}
				go func() {
					if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						logger.Error().Err(err).Msg("metrics server exited")
					}
				}()
				defer server.Close()
			}

			logger.Info().Str("world_id", w.WorldID()).Str("bundle_dir", dir).Msg("starting search run")

			b, err := harness.RunSearch(w, policy, harness.Uniform(), recorder)
			if err != nil {
				logger.Error().Err(err).Msg("search run failed")
				return err
			}
			if err := bundledir.Write(b, dir); err != nil {
				logger.Error().Err(err).Msg("bundle write failed")
				return err
			}

			logger.Info().Str("digest", b.Digest.String()).Int("artifact_count", len(b.Artifacts)).Msg("bundle written")
			fmt.Printf("wrote bundle to %s (digest %s)\n", dir, b.Digest.String())
			return nil
		},
	}
	wf.register(cmd)
	cmd.Flags().StringVar(&bundleDir, "bundle-dir", "", "directory to write the evidence bundle to (required unless set in --config)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090) for the duration of the run")
	return cmd
}
