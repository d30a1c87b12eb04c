package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lacarte/video-player/internal/config"
)

func writeCourse(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, rel := range []string{"1 intro.mp4", "2 Setup/1 install.mp4", "2 Setup/2 run.mkv", "2 Setup/slides.pdf"} {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(rel), 0o644))
	}
	return root
}

type result struct {
	TotalVideos   int      `json:"total_videos"`
	TotalDuration float64  `json:"total_duration"`
	StructureHash string   `json:"structure_hash"`
	Skipped       []string `json:"skipped"`
	Chapters      []struct {
		Path   string `json:"path"`
		Videos []struct {
			Path     string   `json:"path"`
			Duration *float64 `json:"duration"`
		} `json:"videos"`
	} `json:"chapters"`
}

func TestRun(t *testing.T) {
	root := writeCourse(t)

	var stdout, stderr bytes.Buffer
	require.NoError(t, run(context.Background(), []string{root}, &stdout, &stderr))

	var got result
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &got), stdout.String())
	assert.Equal(t, 3, got.TotalVideos)
	assert.Len(t, got.StructureHash, 16)
	require.Len(t, got.Chapters, 1)
	assert.Equal(t, "2 Setup", got.Chapters[0].Path)
	assert.Nil(t, got.Chapters[0].Videos[0].Duration)
}

func TestRun_Durations(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script probe needs a POSIX shell")
	}
	// The fake probe fails on .mkv files and reports 30s for the rest.
	probe := filepath.Join(t.TempDir(), "ffprobe")
	script := "#!/bin/sh\nfor last; do :; done\ncase \"$last\" in *.mkv) exit 1;; esac\necho '{\"format\": {\"duration\": \"30\"}}'\n"
	require.NoError(t, os.WriteFile(probe, []byte(script), 0o755))
	t.Setenv(config.EnvFFProbePath, probe)

	var stdout, stderr bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-durations", writeCourse(t)}, &stdout, &stderr))

	var got result
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &got), stdout.String())
	assert.InDelta(t, 60.0, got.TotalDuration, 1e-9)
	assert.Equal(t, []string{"2 Setup/2 run.mkv"}, got.Skipped)
	assert.Contains(t, stderr.String(), "Duration unresolved")
}

func TestRun_Errors(t *testing.T) {
	var stdout, stderr bytes.Buffer

	assert.Error(t, run(context.Background(), nil, &stdout, &stderr), "missing path")
	assert.Error(t, run(context.Background(), []string{"a", "b"}, &stdout, &stderr), "too many paths")
	assert.Error(t, run(context.Background(), []string{filepath.Join(t.TempDir(), "missing")}, &stdout, &stderr))
	assert.Empty(t, stdout.String())
}
