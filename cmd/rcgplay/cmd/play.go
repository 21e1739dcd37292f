package cmd

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceSoccer/internal/session"
)

var (
	playSpeed    float64
	playTickRate float64
	playRate     float64
	playLoop     bool
)

var playCmd = &cobra.Command{
	Use:   "play <location>",
	Short: "Play a log without a viewer",
	Long: `Stream a log through the playback loop and print playback state changes
and goals as they happen. Exits when the end of the log is reached.

Examples:
  rcgplay play match.rcg --speed 8
  rcgplay play https://example.org/live.rcg --rate 20   # Simulate a slow download`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().Float64Var(&playSpeed, "speed", 0, "playback speed factor (default from config)")
	playCmd.Flags().Float64Var(&playTickRate, "ticks", 0, "engine ticks per second (default from config)")
	playCmd.Flags().Float64Var(&playRate, "rate", 0, "limit delivery to this many chunks per second")
	playCmd.Flags().BoolVar(&playLoop, "loop", false, "keep running at the end of the log")
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if playSpeed > 0 {
		cfg.Playback.Speed = playSpeed
	}
	if playTickRate > 0 {
		cfg.Playback.TickRate = playTickRate
	}
	if playRate > 0 {
		cfg.Transport.ChunksPerSecond = playRate
	}
	cfg.Playback.AutoPlay = true
	if err := cfg.Validate(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	logger := log.New(out, "", log.Ltime)
	s, err := session.New(args[0], session.Options{
		Config:       cfg,
		Logger:       logger,
		Registerer:   prometheus.NewRegistry(),
		ExitAtEnd:    !playLoop,
		ParserLogger: parserLogger(),
	})
	if err != nil {
		return err
	}

	_, ticks, unsubscribe := s.Subscribe()
	defer unsubscribe()
	reported := make(chan struct{})
	go func() {
		defer close(reported)
		reportGoals(logger, ticks)
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = s.Run(ctx)
	<-reported
	if err != nil && ctx.Err() == nil {
		return err
	}

	if sum, ok := s.Summary(); ok {
		fmt.Fprintf(out, "played %d snapshots (%.2fs), final state %s\n", sum.Snapshots, sum.Duration, s.State())
	}
	return nil
}

// reportGoals logs a line whenever playback passes a goal.
func reportGoals(logger *log.Logger, ticks <-chan session.Tick) {
	passed := 0
	for t := range ticks {
		if t.PassedGoals > passed && t.Frame.Current != nil {
			logger.Printf("goal at %.2fs: %s", t.PlayTime, t.Frame.Current.Score)
		}
		passed = t.PassedGoals
	}
}
