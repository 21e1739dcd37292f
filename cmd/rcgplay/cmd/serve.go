package cmd

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceSoccer/internal/server"
	"github.com/OpenTraceLab/OpenTraceSoccer/internal/session"
)

var (
	serveAddr      string
	serveFrameRate float64
	serveAutoPlay  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve <location>",
	Short: "Play a log and stream frames to websocket viewers",
	Long: `Play a log and serve it to remote viewers:

  GET  /ws       websocket frame feed; viewers may send control commands
  POST /control  {"action": "play|pause|toggle|step|back|seek|jump|speed|restart|next-goal|prev-goal", "value": n}
  GET  /log      log summary
  GET  /metrics  Prometheus metrics
  GET  /health   liveness

Examples:
  rcgplay serve match.rcg --addr :8080
  rcgplay serve match.replay.gz --autoplay --frame-rate 30`,
	Args: cobra.ExactArgs(1),
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	serveCmd.Flags().Float64Var(&serveFrameRate, "frame-rate", 0, "frames per second sent to each viewer (default from config)")
	serveCmd.Flags().BoolVar(&serveAutoPlay, "autoplay", false, "start playing as soon as the log is loaded")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if serveFrameRate > 0 {
		cfg.Server.FrameRate = serveFrameRate
	}
	if serveAutoPlay {
		cfg.Playback.AutoPlay = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	s, err := session.New(args[0], session.Options{
		Config:       cfg,
		Logger:       log.New(os.Stderr, "session: ", log.LstdFlags),
		Registerer:   reg,
		ParserLogger: parserLogger(),
	})
	if err != nil {
		return err
	}
	srv := server.New(s, server.Options{
		Config:     cfg.Server,
		Logger:     log.New(os.Stderr, "server: ", log.LstdFlags),
		Registerer: reg,
		Gatherer:   reg,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serveErr := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe(ctx)
		cancel()
		serveErr <- err
	}()

	// A failed session keeps the server up so viewers can still query it.
	if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("session stopped: %v", err)
	}
	return <-serveErr
}
