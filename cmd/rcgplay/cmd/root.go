package cmd

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceSoccer/internal/config"
	"github.com/OpenTraceLab/OpenTraceSoccer/pkg/formats"
	"github.com/OpenTraceLab/OpenTraceSoccer/pkg/gamelog"
	"github.com/OpenTraceLab/OpenTraceSoccer/pkg/lines"
	"github.com/OpenTraceLab/OpenTraceSoccer/pkg/parser"
	"github.com/OpenTraceLab/OpenTraceSoccer/pkg/transport"
)

var (
	// Global flags
	verbose    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "rcgplay",
	Short: "Soccer simulation log player",
	Long: `rcgplay loads RoboCup soccer simulation logs (replay files and
rcssserver .rcg game logs), inspects them and plays them back.

Logs are read from local files or HTTP(S) URLs; .gz and .zst files are
decompressed on the fly.

Examples:
  rcgplay info match.rcg.gz                  # Show teams, goals and play modes
  rcgplay dump match.replay --from 0 --to 10 # Print the first snapshots
  rcgplay play match.rcg --speed 4           # Headless playback
  rcgplay serve match.rcg --addr :8080       # Stream frames to viewers`,
	Version:       "0.9.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log skipped log lines")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
}

// loadConfig reads --config, or returns the defaults.
func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

// parserLogger returns the per-line diagnostics logger for --verbose.
func parserLogger() *log.Logger {
	if verbose {
		return log.New(os.Stderr, "parse: ", 0)
	}
	return nil
}

// loadLog reads and parses a complete log.
func loadLog(ctx context.Context, location string, cfg *config.Config) (*gamelog.Log, error) {
	src := transport.ForLocation(location, cfg.Transport.HTTPTimeout)
	opts := []parser.Option{parser.WithBatchSize(cfg.Parser.BatchSize)}
	if l := parserLogger(); l != nil {
		opts = append(opts, parser.WithLogger(l))
	} else {
		opts = append(opts, parser.WithLogger(parser.DiscardLogger()))
	}
	p, err := formats.ForName(src.Name(), opts...)
	if err != nil {
		return nil, err
	}
	defer p.Dispose(false)

	data, err := transport.ReadAll(ctx, src)
	if err != nil {
		return nil, err
	}
	if _, err := parser.Drain(p, data, lines.Complete); err != nil {
		return nil, err
	}
	if p.Log() == nil {
		return nil, fmt.Errorf("%s: %w", location, gamelog.ErrEmptyLog)
	}
	return p.Log(), nil
}
