// Package main provides a command-line course scanner.
//
// Usage:
//
//	scan [-durations] [-flatten=false] <path>
//
// It prints the course tree as JSON with its structure hash. With
// -durations every video is measured with ffprobe first; videos that cannot
// be measured are logged and left with a null duration.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Lacarte/video-player/internal/classify"
	"github.com/Lacarte/video-player/internal/config"
	"github.com/Lacarte/video-player/internal/course"
	"github.com/Lacarte/video-player/internal/duration"
	"github.com/Lacarte/video-player/internal/fingerprint"
	"github.com/Lacarte/video-player/internal/logger"
	"github.com/Lacarte/video-player/internal/scanner"
)

type output struct {
	*course.Course
	StructureHash string   `json:"structure_hash"`
	Skipped       []string `json:"skipped,omitempty"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "scan: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	fs.SetOutput(stderr)
	durations := fs.Bool("durations", false, "Measure every video with ffprobe before printing")
	flatten := fs.Bool("flatten", true, "Promote single-video folders into their parent")
	indent := fs.Bool("indent", true, "Pretty-print the JSON output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("expected exactly one course path, got %d", fs.NArg())
	}

	cfg, err := config.LoadForMode(config.ScanMode)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.NewWithWriter(cfg.LogLevel, stderr)

	builder := scanner.New(scanner.Config{
		Classifier:      classify.New(cfg.IgnoreFolders...).IgnoreExtensions(cfg.IgnoreExtensions...),
		FlattenWrappers: *flatten,
		Logger:          log,
	})
	c, err := builder.BuildCourse(ctx, fs.Arg(0))
	if err != nil {
		return err
	}

	out := output{Course: c}
	if *durations {
		probe := duration.NewFFProbe(cfg.FFProbePath, cfg.ProbeTimeout)
		if err := probe.Available(); err != nil {
			return err
		}
		r := duration.NewResolver(c, probe, nil, duration.Options{Logger: log})
		resolved := r.Run(ctx)
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("interrupted after %d durations: %w", resolved, err)
		}
		out.Skipped = r.Skipped()
		log.WithField("resolved", resolved).
			WithField("skipped", len(out.Skipped)).
			Info("Durations resolved")
	}
	out.StructureHash = fingerprint.Compute(c)

	enc := json.NewEncoder(stdout)
	if *indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(out)
}
