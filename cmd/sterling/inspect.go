// Copyright 2025 Certen Protocol

package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/certen/sterling/pkg/bundledir"
)

func newInspectCmd() *cobra.Command {
	var bundleDir string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print a bundle directory's manifest summary without verifying it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			dir := bundleDir
			if dir == "" {
				dir = cfg.Directory.BundleDir
			}
			if dir == "" {
				return fmt.Errorf("--bundle-dir (or directory.bundle_dir in --config) is required")
			}

			b, err := bundledir.Read(dir)
			if err != nil {
				return fmt.Errorf("inspect: read bundle: %w", err)
			}

			names := make([]string, 0, len(b.Artifacts))
			for name := range b.Artifacts {
				names = append(names, name)
			}
			sort.Strings(names)

			fmt.Printf("bundle digest: %s\n", b.Digest.String())
			fmt.Printf("artifacts (%d):\n", len(names))
			for _, name := range names {
				a := b.Artifacts[name]
				fmt.Printf("  %-28s %8d bytes  normative=%-5v %s\n", name, len(a.Content), a.Normative, a.ContentHash.String())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&bundleDir, "bundle-dir", "", "bundle directory to inspect (required unless set in --config)")
	return cmd
}
