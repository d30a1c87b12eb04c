// Package main provides the course player server entry point.
//
// Usage:
//
//	server [-path DIR] [DIR]
//
// The course folder comes from -path, the first argument or VP_COURSE_PATH,
// in that order.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/Lacarte/video-player/internal/app"
	"github.com/Lacarte/video-player/internal/config"
)

var pathFlag = flag.String("path", "", "Course folder to serve (overrides "+config.EnvCoursePath+")")

func main() {
	flag.Parse()

	coursePath := *pathFlag
	if coursePath == "" && flag.NArg() > 0 {
		coursePath = flag.Arg(0)
	}
	if coursePath != "" {
		_ = os.Setenv(config.EnvCoursePath, coursePath)
	}

	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	application, err := app.Initialize(context.Background(), cfg)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
