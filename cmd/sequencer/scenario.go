package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ivlev/sequencer/internal/analyzer"
	"github.com/ivlev/sequencer/internal/scenario"
	"github.com/ivlev/sequencer/internal/source"
	"github.com/ivlev/sequencer/internal/system"
)

const scenarioDir = "scenarios"

var (
	boardName    string
	boardDPI     int
	boardSeconds float64
	boardMin     float64
	boardMax     float64
	boardThumbs  string
	boardWidth   int
	boardTrim    string
)

var exportCmd = &cobra.Command{
	Use:   "export <file> [scenario.yaml]",
	Short: "Write a timeline as a YAML scenario",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd.Context(), false)
		if err != nil {
			return err
		}
		if err := s.OpenFile(args[0]); err != nil {
			return err
		}
		doc, err := s.ExportScenario()
		if err != nil {
			return err
		}
		out := scenario.GeneratePath(scenarioDir, time.Now())
		if len(args) == 2 {
			out = args[1]
		}
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return err
		}
		if err := scenario.Write(doc, out); err != nil {
			return err
		}
		fmt.Printf("[+] Scenario saved: %s (%d tracks)\n", out, doc.Count())
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file> [scenario.yaml]",
	Short: "Build a timeline file from a YAML scenario",
	Long:  "Build a timeline file from a YAML scenario. Without a scenario argument the newest one in ./scenarios is used.",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var in string
		if len(args) == 2 {
			in = args[1]
		} else {
			latest, err := scenario.FindLatest(scenarioDir)
			if err != nil {
				return err
			}
			in = latest
			fmt.Printf("[*] Selected scenario: %s\n", in)
		}
		doc, err := scenario.Read(in)
		if err != nil {
			return err
		}
		s, err := newSession(cmd.Context(), false)
		if err != nil {
			return err
		}
		if err := s.ImportScenario(doc); err != nil {
			return fmt.Errorf("%s: %w", in, err)
		}
		if err := s.SaveFile(args[0]); err != nil {
			return err
		}
		fmt.Printf("[+] Timeline saved: %s (%d tracks)\n", args[0], s.Timeline.Len())
		return nil
	},
}

var storyboardCmd = &cobra.Command{
	Use:   "storyboard <file> [pdf|image dir]",
	Short: "Add a storyboard track built from document pages",
	Long: "Add a storyboard track with one panel per page of a PDF or image folder. " +
		"The timeline file is created when missing. Without a source the newest document in ./input is used.",
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var in string
		if len(args) == 2 {
			in = args[1]
		} else {
			latest, err := findLatestDocument("input")
			if err != nil {
				return err
			}
			in = latest
			fmt.Printf("[*] Selected source: %s\n", in)
		}
		src, err := source.Open(in)
		if err != nil {
			return err
		}
		defer src.Close()

		s, err := openOrCreate(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		planner := source.DefaultPlanner()
		if boardMin > 0 {
			planner.MinDwell = boardMin
		}
		if boardMax > 0 {
			planner.MaxDwell = boardMax
		}
		tr, err := source.ImportStoryboard(s.Timeline, src, source.ImportOptions{
			Name:    boardName,
			DPI:     boardDPI,
			Seconds: boardSeconds,
			Planner: planner,
		})
		if err != nil {
			return err
		}
		if err := s.SaveFile(args[0]); err != nil {
			return err
		}
		fmt.Printf("[+] %s: %d panels in %q\n", args[0], tr.MediaCount(), tr.Name())

		if boardThumbs != "" {
			trim, err := analyzer.NewDetector(boardTrim)
			if err != nil {
				return err
			}
			files, err := source.WriteThumbnails(src, boardThumbs, source.ThumbOptions{
				Width:  boardWidth,
				DPI:    boardDPI,
				Trim:   trim,
				Margin: 8,
			})
			if err != nil {
				return err
			}
			fmt.Printf("[+] %d thumbnails in %s\n", len(files), boardThumbs)
		}
		return nil
	},
}

// findLatestDocument looks for a PDF first, then for an image folder.
func findLatestDocument(dir string) (string, error) {
	if path, err := system.FindLatest(filepath.Join(dir, "pdf"), ".pdf"); err == nil {
		return path, nil
	}
	path, err := system.FindLatestDocument(filepath.Join(dir, "images"))
	if err != nil {
		return "", err
	}
	return filepath.Dir(path), nil
}

func init() {
	f := storyboardCmd.Flags()
	f.StringVar(&boardName, "name", "", "track name (source file name when empty)")
	f.IntVar(&boardDPI, "dpi", 150, "render resolution for PDF pages")
	f.Float64Var(&boardSeconds, "seconds", 0, "span of the panels (timeline duration when 0)")
	f.Float64Var(&boardMin, "min-dwell", 0, "shortest time per page in seconds")
	f.Float64Var(&boardMax, "max-dwell", 0, "longest time per page in seconds")
	f.StringVar(&boardThumbs, "thumbs", "", "also write PNG thumbnails into this directory")
	f.IntVar(&boardWidth, "thumb-width", 320, "thumbnail width in pixels")
	f.StringVar(&boardTrim, "trim", "edges", "crop thumbnails to page content: edges or none")
}
