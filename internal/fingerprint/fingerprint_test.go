package fingerprint

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lacarte/video-player/internal/course"
	"github.com/Lacarte/video-player/internal/scanner"
)

func writeTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, rel := range []string{
		"1_intro.mp4",
		"1_intro.en.srt",
		"notes.pdf",
		"1 Basics/1_a.mp4",
		"1 Basics/2_b.mp4",
		"1 Basics/Deep/1_c.mp4",
		"1 Basics/Deep/2_d.mp4",
	} {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(rel), 0o644))
	}
	return root
}

func scan(t *testing.T, root string) *course.Course {
	t.Helper()
	c, err := scanner.New(scanner.Config{FlattenWrappers: true}).BuildCourse(context.Background(), root)
	require.NoError(t, err)
	return c
}

func TestCompute_Idempotent(t *testing.T) {
	root := writeTree(t)

	first := Compute(scan(t, root))
	second := Compute(scan(t, root))

	assert.Len(t, first, 16)
	assert.Equal(t, first, second)
}

func TestCompute_ChangesWithShape(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(t *testing.T, root string)
	}{
		{
			name: "touch modification time",
			mutate: func(t *testing.T, root string) {
				p := filepath.Join(root, "1 Basics", "1_a.mp4")
				later := time.Now().Add(time.Hour)
				require.NoError(t, os.Chtimes(p, later, later))
			},
		},
		{
			name: "touch subtitle",
			mutate: func(t *testing.T, root string) {
				p := filepath.Join(root, "1_intro.en.srt")
				later := time.Now().Add(2 * time.Hour)
				require.NoError(t, os.Chtimes(p, later, later))
			},
		},
		{
			name: "resize",
			mutate: func(t *testing.T, root string) {
				p := filepath.Join(root, "notes.pdf")
				info, err := os.Stat(p)
				require.NoError(t, err)
				require.NoError(t, os.WriteFile(p, []byte("much longer content"), 0o644))
				require.NoError(t, os.Chtimes(p, info.ModTime(), info.ModTime()))
			},
		},
		{
			name: "add file",
			mutate: func(t *testing.T, root string) {
				require.NoError(t, os.WriteFile(filepath.Join(root, "1 Basics", "3_e.mp4"), nil, 0o644))
			},
		},
		{
			name: "remove file",
			mutate: func(t *testing.T, root string) {
				require.NoError(t, os.Remove(filepath.Join(root, "1 Basics", "Deep", "2_d.mp4")))
			},
		},
		{
			name: "rename file",
			mutate: func(t *testing.T, root string) {
				require.NoError(t, os.Rename(
					filepath.Join(root, "1 Basics", "2_b.mp4"),
					filepath.Join(root, "1 Basics", "2_bb.mp4"),
				))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := writeTree(t)
			before := Compute(scan(t, root))
			tt.mutate(t, root)
			assert.NotEqual(t, before, Compute(scan(t, root)))
		})
	}
}

func TestCompute_IgnoresDurations(t *testing.T) {
	c := scan(t, writeTree(t))
	before := Compute(c)

	require.NoError(t, c.ApplyDuration("1 Basics/Deep/1_c.mp4", 125.5))
	require.NoError(t, c.ApplyDuration("1_intro.mp4", 60))

	assert.Equal(t, before, Compute(c))
	assert.True(t, Matches(c, before))
}

func TestCompute_SurvivesRoundTrip(t *testing.T) {
	c := scan(t, writeTree(t))

	data, err := json.Marshal(c)
	require.NoError(t, err)
	parsed, err := course.Parse(data)
	require.NoError(t, err)

	assert.Equal(t, Compute(c), Compute(parsed))
}

func TestMatches(t *testing.T) {
	c := scan(t, writeTree(t))

	assert.False(t, Matches(c, ""))
	assert.False(t, Matches(c, "0000000000000000"))
	assert.True(t, Matches(c, Compute(c)))
}
