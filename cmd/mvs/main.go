// Command mvs runs the patch-based multi-view stereo reconstruction
// pipeline over a job description.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.viam.com/rdk/logging"

	"github.com/youngstu/pais-mvs/engine"
	"github.com/youngstu/pais-mvs/internal/jobspec"
	"github.com/youngstu/pais-mvs/mvsconfig"
)

var steps = map[string]func(context.Context, *engine.Engine) error{
	"refine-seeds": func(ctx context.Context, e *engine.Engine) error {
		e.RefineSeedPatches()
		return nil
	},
	"build-index": func(ctx context.Context, e *engine.Engine) error { return e.SetCellMaps() },
	"expand": func(ctx context.Context, e *engine.Engine) error {
		e.InitPriorityQueue()
		e.ExpansionPatches()
		return nil
	},
	"quantize": func(ctx context.Context, e *engine.Engine) error { e.PatchQuantization(); return nil },
}

const validSteps = "refine-seeds, build-index, expand, quantize (default: run the full pipeline)"

func main() {
	jobPath := flag.String("job", "", "path to reconstruction job JSON file")
	step := flag.String("step", "", "single pipeline stage to run: "+validSteps)
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	logger := logging.NewLogger("mvs")
	if *verbose {
		logger.SetLevel(logging.DEBUG)
	}

	if *jobPath == "" {
		logger.Fatal("-job flag is required")
	}

	job, err := jobspec.Load(*jobPath)
	if err != nil {
		logger.Fatal(err)
	}

	cfg, err := loadConfig(job)
	if err != nil {
		logger.Fatal(err)
	}
	cfg.Report(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	e, err := engine.New(nil, cfg, logger)
	if err != nil {
		logger.Fatal(err)
	}

	if *step != "" {
		fn, ok := steps[*step]
		if !ok {
			logger.Fatalf("unknown step %q; valid steps: %s", *step, validSteps)
		}
		logger.Infof("=== Running step: %s ===", *step)
		if err := fn(ctx, e); err != nil {
			logger.Fatal(err)
		}
		logger.Infof("Step %s completed successfully", *step)
		return
	}

	opts := engine.RunOptions{
		InputPath:      job.InputPath,
		MVSOutput:      job.MVSPath(),
		PLYOutput:      job.PLYPath(),
		PSROutput:      job.PSRPath(),
		CheckpointPath: job.CheckpointPath,
	}
	if err := e.Run(ctx, opts); err != nil {
		logger.Fatal(err)
	}
}

// loadConfig resolves a job's config: inline overrides take precedence
// over ConfigPath, which takes precedence over mvsconfig.Default().
func loadConfig(job jobspec.Job) (mvsconfig.Config, error) {
	if job.Config != nil {
		return mvsconfig.FromMap(job.Config)
	}
	if job.ConfigPath != "" {
		data, err := os.ReadFile(job.ConfigPath)
		if err != nil {
			return mvsconfig.Config{}, fmt.Errorf("read config file %s: %w", job.ConfigPath, err)
		}
		var overrides map[string]interface{}
		if err := json.Unmarshal(data, &overrides); err != nil {
			return mvsconfig.Config{}, fmt.Errorf("parse config file %s: %w", job.ConfigPath, err)
		}
		return mvsconfig.FromMap(overrides)
	}
	return mvsconfig.Default(), nil
}
