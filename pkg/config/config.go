// Copyright 2025 Certen Protocol
//
// Operator configuration: YAML (gopkg.in/yaml.v3), loaded once at CLI
// startup, with ${VAR_NAME} / ${VAR_NAME:-default} environment-variable
// substitution. Grounded on the teacher's
// pkg/config/anchor_config.go (Duration's yaml.Unmarshaler, substituteEnvVars's
// regexp-based expansion, LoadXxxWithDefaults's apply-then-validate shape),
// re-keyed from anchor/network/consensus settings onto this module's own
// SearchPolicyConfig/DirectoryConfig/LoggingConfig trio (SPEC_FULL.md §1.4).
//
// Config never participates in any hash: it is an operator input that
// produces a policy snapshot, never the snapshot itself.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/certen/sterling/pkg/search"
)

// Config is the root operator configuration sterling's CLI loads from a
// single YAML file.
type Config struct {
	SearchPolicy SearchPolicyConfig `yaml:"search_policy"`
	Directory    DirectoryConfig    `yaml:"directory"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// SearchPolicyConfig is the YAML-facing rendering of spec.md §4.4's search
// policy fields; Resolve converts it into the search.Policy value the
// engine actually consumes.
type SearchPolicyConfig struct {
	DedupKey             string   `yaml:"dedup_key"`
	PruneVisitedPolicy   string   `yaml:"prune_visited_policy"`
	MaxCandidatesPerNode uint64   `yaml:"max_candidates_per_node"`
	MaxDepth             uint32   `yaml:"max_depth"`
	MaxExpansions        uint64   `yaml:"max_expansions"`
	MaxFrontierSize      uint64   `yaml:"max_frontier_size"`
	RunTimeout           Duration `yaml:"run_timeout"`
}

// Resolve converts the YAML fields into a search.Policy, applying this
// package's defaults for anything left at its YAML zero value.
func (c SearchPolicyConfig) Resolve() search.Policy {
	dedupKey := search.DedupKey(c.DedupKey)
	if dedupKey == "" {
		dedupKey = search.DedupIdentityOnly
	}
	pruneVisited := search.PruneVisitedPolicy(c.PruneVisitedPolicy)
	if pruneVisited == "" {
		pruneVisited = search.PruneKeepVisited
	}
	maxCandidates := c.MaxCandidatesPerNode
	if maxCandidates == 0 {
		maxCandidates = 64
	}
	maxDepth := c.MaxDepth
	if maxDepth == 0 {
		maxDepth = 256
	}
	maxExpansions := c.MaxExpansions
	if maxExpansions == 0 {
		maxExpansions = 100_000
	}
	maxFrontier := c.MaxFrontierSize
	if maxFrontier == 0 {
		maxFrontier = 100_000
	}
	return search.Policy{
		DedupKey:             dedupKey,
		PruneVisitedPolicy:   pruneVisited,
		MaxCandidatesPerNode: maxCandidates,
		MaxDepth:             maxDepth,
		MaxExpansions:        maxExpansions,
		MaxFrontierSize:      maxFrontier,
	}
}

// DirectoryConfig names the on-disk bundle directory a run-search/
// verify-bundle/replay/inspect invocation reads or writes.
type DirectoryConfig struct {
	BundleDir string `yaml:"bundle_dir"`
}

// LoggingConfig controls cmd/sterling's zerolog setup. Format is one of
// "console" (human-readable, colorized when the terminal supports it) or
// "json" (one structured line per event); Level is any zerolog.Level
// string ("debug", "info", "warn", "error").
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration wraps time.Duration for YAML unmarshaling, accepting Go duration
// strings ("30s", "5m") instead of yaml.v3's default integer-nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the time.Duration value.
func (d Duration) Duration() time.Duration { return time.Duration(d) }

// Load reads path, substitutes ${VAR}/${VAR:-default} environment
// references, and decodes the result into a Config. A missing file is an
// error — callers that want defaults-only behavior should construct a
// zero Config and call Resolve directly instead of calling Load.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	expanded := substituteEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects config values that resolve to nothing sensible. It does
// not enforce search.Policy.Validate's M1 dedup/prune constraints — those
// are re-checked by search.Run itself, fail-closed, regardless of how the
// policy was constructed.
func (c *Config) Validate() error {
	var errs []string
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Sprintf("logging.format: unsupported value %q", c.Logging.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// substituteEnvVars replaces ${VAR_NAME} and ${VAR_NAME:-default} with the
// named environment variable's value, falling back to the literal default
// text (or empty string) when the variable is unset or empty.
func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultValue := ""
		if len(groups) >= 4 {
			defaultValue = groups[3]
		}
		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}
