package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceSoccer/pkg/gamelog"
)

var (
	dumpFrom   int
	dumpTo     int
	dumpAgents bool
)

var dumpCmd = &cobra.Command{
	Use:   "dump <location>",
	Short: "Print snapshots of a log",
	Long: `Parse a complete log and print one line per snapshot with time, play
mode, score and ball position. --agents adds one line per agent.

Examples:
  rcgplay dump match.rcg --from 100 --to 110
  rcgplay dump match.replay --agents --to 1`,
	Args: cobra.ExactArgs(1),
	RunE: runDump,
}

func init() {
	rootCmd.AddCommand(dumpCmd)

	dumpCmd.Flags().IntVar(&dumpFrom, "from", 0, "first snapshot index")
	dumpCmd.Flags().IntVar(&dumpTo, "to", -1, "last snapshot index (inclusive, -1 for the end)")
	dumpCmd.Flags().BoolVar(&dumpAgents, "agents", false, "print agent records")
}

func runDump(cmd *cobra.Command, args []string) error {
	if dumpFrom < 0 {
		return fmt.Errorf("--from must not be negative")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	l, err := loadLog(cmd.Context(), args[0], cfg)
	if err != nil {
		return err
	}

	to := dumpTo
	if to < 0 || to >= len(l.States) {
		to = len(l.States) - 1
	}
	w := cmd.OutOrStdout()
	for i := dumpFrom; i <= to; i++ {
		dumpSnapshot(w, i, l.States[i], dumpAgents)
	}
	return nil
}

func dumpSnapshot(w io.Writer, i int, s *gamelog.Snapshot, agents bool) {
	mode := "-"
	if s.GameState != nil {
		mode = s.GameState.PlayMode
	}
	b := s.Ball.Position
	fmt.Fprintf(w, "%6d  t=%.3f  game=%.2f  %-16s %s  ball=(%.2f, %.2f, %.2f)  agents=%d\n",
		i, s.Time, s.GameTime, mode, s.Score, b[0], b[1], b[2], s.AgentCount())
	if !agents {
		return
	}
	for side, team := range s.Agents {
		for n, a := range team {
			if a == nil {
				continue
			}
			p := a.Position
			fmt.Fprintf(w, "        %c%-2d model=%d flags=0x%x pos=(%.2f, %.2f, %.2f) joints=%d data=%d\n",
				"lr"[side], n+1, a.ModelIndex, a.Flags, p[0], p[1], p[2], len(a.Joints), len(a.Data))
		}
	}
}
