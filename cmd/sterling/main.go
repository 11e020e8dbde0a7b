// Copyright 2025 Certen Protocol
//
// sterling is the CLI entry point for the evidence-bundle producer and
// verifier: run-search drives a world through the search engine and writes
// a bundle directory, verify-bundle/replay/inspect consume one back. Thin
// main, mirroring the teacher's cmd/bls-zk-setup/main.go (parse args, call
// into the real entry point, os.Exit on error) — all actual command logic
// lives in rootCmd and its subcommands.
package main

import "os"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
