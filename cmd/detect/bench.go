package main

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/nvr-ai/go-detect/benchmark"
	"github.com/nvr-ai/go-detect/images"
)

const (
	flagIterations = "iterations"
	flagWarmup     = "warmup"
	flagBatch      = "batch"
	flagFormats    = "formats"
)

func benchCommand() *cli.Command {
	return &cli.Command{
		Name:  "bench",
		Usage: "measure pipeline latency on synthetic frames at common camera resolutions",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: flagIterations, Value: 20, Usage: "measured batches per scenario"},
			&cli.IntFlag{Name: flagWarmup, Value: 2, Usage: "unmeasured batches per scenario"},
			&cli.IntFlag{Name: flagBatch, Value: 1, Usage: "frames per batch"},
			&cli.BoolFlag{Name: flagFormats, Usage: "also compare JPEG, PNG and WebP at 1080p"},
		},
		Action: benchAction,
	}
}

func benchAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	scenarios := benchmark.QuickScenarios(c.Int(flagIterations))
	if c.Bool(flagFormats) {
		res, _ := images.GetResolutionByType(images.ResolutionTypeFHD1080p)
		scenarios = append(scenarios, benchmark.FormatScenarios(res, c.Int(flagIterations))...)
	}
	for i := range scenarios {
		scenarios[i].WarmupRuns = c.Int(flagWarmup)
		scenarios[i].BatchSize = c.Int(flagBatch)
		scenarios[i].Concurrency = cfg.Concurrency
	}

	p, err := openPipeline(cfg)
	if err != nil {
		return err
	}
	defer p.close()

	results, err := benchmark.NewSuite(p.detector, p.logger).RunAll(c.Context, scenarios)
	enc := json.NewEncoder(c.App.Writer)
	for _, m := range results {
		if encErr := enc.Encode(m); encErr != nil {
			return errors.Wrap(encErr, "writing result")
		}
	}
	return err
}
