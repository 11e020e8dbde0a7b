// Copyright 2025 Certen Protocol

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/certen/sterling/pkg/bundledir"
	"github.com/certen/sterling/pkg/verifier"
)

func newVerifyBundleCmd() *cobra.Command {
	var bundleDir string
	var profileName string

	cmd := &cobra.Command{
		Use:   "verify-bundle",
		Short: "Fail-closed verify an evidence bundle directory",
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

			var profile verifier.Profile
			switch profileName {
			case "base":
				profile = verifier.ProfileBase
			case "cert":
				profile = verifier.ProfileCert
			default:
				return fmt.Errorf("--profile: unknown profile %q (want base or cert)", profileName)
			}

			logger.Info().Str("bundle_dir", dir).Str("profile", profileName).Msg("verifying bundle")
			report, err := bundledir.VerifyDir(dir, profile)
			if err != nil {
				logger.Error().Err(err).Msg("verification failed")
				fmt.Printf("FAIL: %v\n", err)
				return err
			}

			out, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return fmt.Errorf("verify-bundle: marshal report: %w", err)
			}
			fmt.Println(string(out))
			logger.Info().Msg("verification passed")
			return nil
		},
	}
	cmd.Flags().StringVar(&bundleDir, "bundle-dir", "", "bundle directory to verify (required unless set in --config)")
	cmd.Flags().StringVar(&profileName, "profile", "cert", "base or cert")
	return cmd
}
