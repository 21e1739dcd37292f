package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceSoccer/internal/session"
)

var (
	outputJSON bool
)

var infoCmd = &cobra.Command{
	Use:   "info <location>",
	Short: "Show a summary of a log",
	Long: `Parse a complete log and print its format, teams, frequency, duration,
play mode segments and goals.

Examples:
  rcgplay info match.rcg
  rcgplay info --json https://example.org/logs/final.replay.gz`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)

	infoCmd.Flags().BoolVar(&outputJSON, "json", false,
		"output as JSON (for programmatic access)")
}

func runInfo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	l, err := loadLog(cmd.Context(), args[0], cfg)
	if err != nil {
		return err
	}

	sum := session.Summarize(l)
	if outputJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	}
	printSummary(cmd.OutOrStdout(), args[0], sum)
	return nil
}

func printSummary(w io.Writer, location string, s session.Summary) {
	fmt.Fprintf(w, "Log: %s\n", location)
	fmt.Fprintf(w, "Format: %s %s (version %d)\n", s.Format, s.Type, s.Version)
	fmt.Fprintf(w, "Teams: %s vs %s\n", s.Teams[0], s.Teams[1])
	fmt.Fprintf(w, "Frequency: %g Hz\n", s.Frequency)
	fmt.Fprintf(w, "Snapshots: %d\n", s.Snapshots)
	fmt.Fprintf(w, "Duration: %.2fs (from %.2fs)\n", s.Duration, s.StartTime)
	if s.PlayerTypes > 0 {
		fmt.Fprintf(w, "Player types: %d\n", s.PlayerTypes)
	}

	fmt.Fprintf(w, "\nPlay modes (%d):\n", len(s.PlayModes))
	for _, seg := range s.PlayModes {
		fmt.Fprintf(w, "  %8.2f  %s\n", seg.Time, seg.PlayMode)
	}

	fmt.Fprintf(w, "\nGoals (%d):\n", len(s.Goals))
	for _, g := range s.Goals {
		fmt.Fprintf(w, "  %8.2f  %d:%d\n", g.Time, g.Left, g.Right)
	}
}
