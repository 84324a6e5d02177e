package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/sequencer/internal/archetypes"
	"github.com/ivlev/sequencer/internal/metrics"
	"github.com/ivlev/sequencer/internal/timeline"
)

type UpgradeOptions struct {
	Workers int
	// DryRun decodes and re-encodes without writing.
	DryRun bool
	// Backup keeps the original next to the file as <path>.v<N>.bak.
	Backup  bool
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

type UpgradeResult struct {
	Path     string
	From     int32
	Upgraded bool
	Err      error
}

type UpgradeReport struct {
	Results  []UpgradeResult
	Elapsed  time.Duration
	Upgraded int
	Current  int
	Failed   int
}

// UpgradeFiles rewrites every file in paths in the current format version.
// Files already current are left alone. A failing file does not stop the
// others; only context cancellation aborts the run.
func UpgradeFiles(ctx context.Context, paths []string, opts UpgradeOptions) (*UpgradeReport, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	workers := max(opts.Workers, 1)
	start := time.Now()

	results := make([]UpgradeResult, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	// Ограничиваем число одновременно обрабатываемых файлов
	g.SetLimit(min(workers, max(len(paths), 1)))
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = upgradeFile(path, opts, log)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &UpgradeReport{Results: results, Elapsed: time.Since(start)}
	for _, r := range results {
		switch {
		case r.Err != nil:
			report.Failed++
			log.Warn("upgrade failed", zap.String("path", r.Path), zap.Error(r.Err))
		case r.Upgraded:
			report.Upgraded++
			if opts.Metrics != nil {
				opts.Metrics.IncUpgrades()
			}
		default:
			report.Current++
		}
	}
	log.Info("upgrade finished",
		zap.Int("files", len(paths)),
		zap.Int("upgraded", report.Upgraded),
		zap.Int("failed", report.Failed),
		zap.Duration("elapsed", report.Elapsed),
	)
	return report, nil
}

func upgradeFile(path string, opts UpgradeOptions, log *zap.Logger) UpgradeResult {
	res := UpgradeResult{Path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		res.Err = err
		return res
	}
	if res.From, err = timeline.PeekVersion(data); err != nil {
		res.Err = err
		return res
	}
	if res.From == timeline.CurrentVersion {
		return res
	}

	tl := timeline.New(archetypes.Registry(),
		timeline.WithLogger(log.With(zap.String("path", path))),
		timeline.WithExtension(archetypes.NewOverrides()),
	)
	if err := tl.Load(data); err != nil {
		res.Err = err
		return res
	}
	out, err := tl.Save()
	if err != nil {
		res.Err = err
		return res
	}
	res.Upgraded = true
	if opts.DryRun {
		return res
	}
	if opts.Backup {
		if err := os.WriteFile(fmt.Sprintf("%s.v%d.bak", path, res.From), data, 0o644); err != nil {
			res.Err = err
			return res
		}
	}
	res.Err = writeAtomic(path, out)
	return res
}

// Print writes a human readable summary.
func (r *UpgradeReport) Print(w io.Writer, build string) {
	rate := 0.0
	if secs := r.Elapsed.Seconds(); secs > 0 {
		rate = float64(len(r.Results)) / secs
	}
	fmt.Fprintf(w,
		"--- [UPGRADE REPORT] ---\n"+
			"Build: %s\n"+
			"Files: %d\n"+
			"Upgraded: %d\n"+
			"Already current: %d\n"+
			"Failed: %d\n"+
			"Total Time: %.2fs\n"+
			"Files/s: %.2f\n"+
			"------------------------\n",
		build, len(r.Results), r.Upgraded, r.Current, r.Failed, r.Elapsed.Seconds(), rate,
	)
}
