// Command detect runs object detection on image files and prints one JSON line per frame.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "detect",
		Usage:     "detect objects in JPEG, PNG and WebP frames with a YOLO ONNX model",
		ArgsUsage: "[image ...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: flagConfig, Aliases: []string{"c"}, Usage: "YAML config file"},
			&cli.StringFlag{Name: flagModel, Aliases: []string{"m"}, Usage: "ONNX model path"},
			&cli.StringFlag{Name: flagORTLib, Usage: "onnxruntime shared library path"},
			&cli.Float64Flag{Name: flagConfidence, Usage: "minimum confidence, exclusive"},
			&cli.Float64Flag{Name: flagIoU, Usage: "IoU above which overlapping boxes are suppressed"},
			&cli.BoolFlag{Name: flagClassAware, Usage: "only suppress boxes of the same class"},
			&cli.IntFlag{Name: flagConcurrency, Usage: "frames processed at once (0 = GOMAXPROCS)"},
			&cli.StringFlag{Name: flagDir, Aliases: []string{"d"}, Usage: "directory of frames to process"},
			&cli.StringSliceFlag{Name: flagClasses, Usage: "only report these class names"},
			&cli.StringFlag{Name: flagLogLevel, Usage: "debug, info, warn or error"},
		},
		Action:   detectAction,
		Commands: []*cli.Command{benchCommand()},
	}
}
