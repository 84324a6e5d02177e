package main

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ivlev/sequencer/internal/engine"
	"github.com/ivlev/sequencer/internal/system"
)

var statsListen string

var statsCmd = &cobra.Command{
	Use:   "stats [file]",
	Short: "Show timeline statistics, resource usage and metrics",
	Long: "Show timeline statistics, resource usage and metrics. " +
		"With --listen the metrics are served over HTTP until interrupted.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd.Context(), false)
		if err != nil {
			return err
		}
		if len(args) == 1 {
			if err := s.OpenFile(args[0]); err != nil {
				return err
			}
		}
		printStats(s.Stats())

		res, err := system.Sample(cmd.Context(), 200*time.Millisecond)
		if err != nil {
			log.Warn("sample resources", zap.Error(err))
		} else {
			fmt.Printf("[*] %s\n", res)
		}

		if statsListen == "" {
			return met.WriteText(os.Stdout)
		}
		return serveMetrics(cmd.Context(), statsListen, s)
	},
}

func printStats(st engine.Stats) {
	fmt.Printf("--- [TIMELINE STATS] ---\n"+
		"Session: %s\n"+
		"Name: %s\n"+
		"Tracks: %d (%d root)\n"+
		"Media: %d\n"+
		"Max Depth: %d\n"+
		"FPS: %.2f\n"+
		"Duration: %s\n"+
		"Undo/Redo: %d/%d\n"+
		"Modified: %v\n",
		st.Session, st.Name, st.Tracks, st.Roots, st.Media, st.MaxDepth,
		st.FPS, st.Duration, st.UndoDepth, st.RedoDepth, st.Modified)
	for _, name := range slices.Sorted(maps.Keys(st.ByType)) {
		fmt.Printf("  %s: %d\n", name, st.ByType[name])
	}
	fmt.Println("------------------------")
}

func serveMetrics(ctx context.Context, addr string, s *engine.Session) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", met.Handler(func() {
		met.SetTracks(s.Timeline.Len())
		met.SetHistoryDepth(s.History.UndoSize())
	}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	fmt.Printf("[*] Serving metrics on http://%s/metrics (Ctrl+C to stop)\n", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func init() {
	statsCmd.Flags().StringVar(&statsListen, "listen", "", "serve Prometheus metrics on this address, e.g. :9090")
}
