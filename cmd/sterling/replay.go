// Copyright 2025 Certen Protocol

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/certen/sterling/pkg/bundle"
	"github.com/certen/sterling/pkg/bundledir"
	"github.com/certen/sterling/pkg/tape"
	"github.com/certen/sterling/pkg/witness"
	"github.com/certen/sterling/pkg/worlds"
)

func newReplayCmd() *cobra.Command {
	var wf buildWorldFlags
	var bundleDir string

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-execute a bundle's winning path and check it against the same world",
		Long: "replay reconstructs the exact world that produced the bundle (via --world and its " +
			"companion flags, which must match the run-search invocation) and re-applies every " +
			"winning-path edge through pkg/kernel, checking state fingerprints at each step.",
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

			b, err := bundledir.Read(dir)
			if err != nil {
				return fmt.Errorf("replay: read bundle: %w", err)
			}
			tapeArtifact, ok := b.Artifacts[bundle.ArtifactSearchTape]
			if !ok {
				return fmt.Errorf("replay: bundle has no %s artifact", bundle.ArtifactSearchTape)
			}
			parsedTape, err := tape.ReadTape(tapeArtifact.Content)
			if err != nil {
				return fmt.Errorf("replay: parse tape: %w", err)
			}

			w, err := wf.build()
			if err != nil {
				return err
			}
			rootState, err := worlds.RootState(w)
			if err != nil {
				return fmt.Errorf("replay: root state: %w", err)
			}
			reg, err := w.OperatorRegistry()
			if err != nil {
				return fmt.Errorf("replay: operator registry: %w", err)
			}

			logger.Info().Str("world_id", w.WorldID()).Msg("replaying winning path")
			result, err := witness.ReplayWinningPath(parsedTape, rootState, reg, witness.NoopInvariantChecker{})
			if err != nil {
				logger.Error().Err(err).Msg("replay failed")
				return err
			}

			fmt.Printf("replay ok: %d steps, final fingerprint %s\n", result.StepCount, result.FinalState.Fingerprint().String())
			return nil
		},
	}
	wf.register(cmd)
	cmd.Flags().StringVar(&bundleDir, "bundle-dir", "", "bundle directory to replay (required unless set in --config)")
	return cmd
}
