package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ivlev/sequencer/internal/archetypes"
	"github.com/ivlev/sequencer/internal/engine"
	"github.com/ivlev/sequencer/internal/store"
	"github.com/ivlev/sequencer/internal/system"
	"github.com/ivlev/sequencer/internal/timeline"
)

var (
	newFPS      float64
	newDuration int
	newFolder   string
	newEvents   []string

	upgradeDryRun  bool
	upgradeBackup  bool
	upgradeWorkers int
)

var newCmd = &cobra.Command{
	Use:   "new <file>",
	Short: "Create a timeline file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if newFPS > 0 {
			cfg.Timeline.FPS = newFPS
		}
		if newDuration > 0 {
			cfg.Timeline.Duration = newDuration
		}
		s, err := newSession(cmd.Context(), false)
		if err != nil {
			return err
		}
		tl := s.Timeline

		err = tl.Batch("New Timeline", func() error {
			var parent *timeline.Track
			if newFolder != "" {
				if parent, err = tl.AddTrackOfType(archetypes.FolderTypeID, timeline.CreateOptions{Name: newFolder}); err != nil {
					return err
				}
			}
			for _, name := range newEvents {
				opts := timeline.CreateOptions{Name: name, Title: name, Parent: parent, Duration: tl.DurationFrames()}
				if _, err := tl.AddTrackOfType(archetypes.EventTypeID, opts); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		if err := s.SaveFile(args[0]); err != nil {
			return err
		}
		fmt.Printf("[+] Created %s (%d tracks, %.2f fps, %s)\n",
			args[0], tl.Len(), tl.FPS(), tl.FormatFrame(tl.DurationFrames()))
		return nil
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect [file]",
	Short: "Print the track tree of a timeline file",
	Long:  "Print the track tree of a timeline file. Without an argument the newest timeline in the store directory is used.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := timelineArg(args)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		v, err := timeline.PeekVersion(data)
		if err != nil {
			return err
		}
		s, err := newSession(cmd.Context(), false)
		if err != nil {
			return err
		}
		if err := s.Load(data); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		tl := s.Timeline
		fmt.Printf("[*] %s: format v%d, %.2f fps, duration %s\n",
			path, v, tl.FPS(), tl.FormatFrame(tl.DurationFrames()))
		tl.Walk(func(t *timeline.Track, depth int) bool {
			flags := ""
			if t.Mute() {
				flags += " muted"
			}
			if t.Loop() {
				flags += " loop"
			}
			fmt.Printf("%s- %s [%s]%s\n", strings.Repeat("  ", depth+1), t.Name(), t.Archetype().Name(), flags)
			for _, m := range t.Media() {
				fmt.Printf("%s  %s .. %s\n", strings.Repeat("  ", depth+1), tl.FormatFrame(m.Start()), tl.FormatFrame(m.End()))
			}
			return true
		})
		return nil
	},
}

var upgradeCmd = &cobra.Command{
	Use:   "upgrade [path...]",
	Short: "Rewrite timeline files in the current format version",
	Long:  "Rewrite timeline files in the current format version. Directories are searched recursively; without arguments the store directory is used.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			args = []string{cfg.Store.Dir}
		}
		var paths []string
		for _, arg := range args {
			fi, err := os.Stat(arg)
			if err != nil {
				return err
			}
			if !fi.IsDir() {
				paths = append(paths, arg)
				continue
			}
			found, err := system.ListFiles(arg, system.TimelineExts...)
			if err != nil {
				return err
			}
			paths = append(paths, found...)
		}
		if len(paths) == 0 {
			fmt.Println("[*] No timeline files found")
			return nil
		}

		workers := cfg.Workers
		if upgradeWorkers > 0 {
			workers = upgradeWorkers
		}
		fmt.Printf("[*] Upgrading %d files with %d workers to v%d\n", len(paths), workers, timeline.CurrentVersion)
		report, err := engine.UpgradeFiles(cmd.Context(), paths, engine.UpgradeOptions{
			Workers: workers,
			DryRun:  upgradeDryRun,
			Backup:  upgradeBackup,
			Logger:  log,
			Metrics: met,
		})
		if err != nil {
			return err
		}
		for _, r := range report.Results {
			if r.Err != nil {
				fmt.Printf("[-] %s: %v\n", r.Path, r.Err)
			}
		}
		report.Print(os.Stdout, cfg.BuildVersion)
		if report.Failed > 0 {
			return fmt.Errorf("%d files failed", report.Failed)
		}
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Check timeline files as they change",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := cfg.Store.Dir
		if len(args) == 1 {
			dir = args[0]
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("[*] Watching %s (Ctrl+C to stop)\n", dir)
		return engine.Watch(ctx, dir, store.Ext, engine.DefaultSettle, log, func(ev engine.WatchEvent) {
			name := filepath.Base(ev.Path)
			if ev.Err != nil {
				fmt.Printf("[-] %s: %v\n", name, ev.Err)
				return
			}
			fmt.Printf("[+] %s: v%d, %d tracks\n", name, ev.Version, ev.Tracks)
		})
	},
}

// timelineArg returns the single path argument or the newest timeline in
// the store directory.
func timelineArg(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	path, err := system.FindLatestTimeline(cfg.Store.Dir)
	if err != nil {
		return "", err
	}
	fmt.Printf("[*] Selected file: %s\n", path)
	return path, nil
}

func init() {
	f := newCmd.Flags()
	f.Float64Var(&newFPS, "fps", 0, "frames per second (config default when 0)")
	f.IntVar(&newDuration, "duration", 0, "duration in frames (config default when 0)")
	f.StringVar(&newFolder, "folder", "", "put the event tracks into a folder")
	f.StringSliceVar(&newEvents, "event", nil, "add an event track spanning the timeline")

	f = upgradeCmd.Flags()
	f.BoolVar(&upgradeDryRun, "dry-run", false, "decode and re-encode without writing")
	f.BoolVar(&upgradeBackup, "backup", false, "keep the original as <file>.v<N>.bak")
	f.IntVarP(&upgradeWorkers, "workers", "w", 0, "parallel workers (config default when 0)")
}
