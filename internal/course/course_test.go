package course

import (
	"encoding/json"
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lacarte/video-player/internal/classify"
	"github.com/Lacarte/video-player/internal/errors"
	"github.com/Lacarte/video-player/internal/ordering"
)

func ptr(f float64) *float64 { return &f }

func video(path string, d *float64) *Video {
	return &Video{Title: path, File: path, Path: path, DurationSeconds: d}
}

// sampleCourse builds:
//
//	intro.mp4 (10)
//	1 Basics/
//	  a.mp4 (20)
//	  b.mp4 (unresolved)
//	  1 Basics/Deep/
//	    c.mp4 (30)
//	2 Advanced/
//	  d.mp4 (unresolved)
func sampleCourse() *Course {
	deep := &Chapter{Title: "Deep", Path: "1 Basics/Deep", Videos: []*Video{video("1 Basics/Deep/c.mp4", ptr(30))}}
	basics := &Chapter{
		Title: "Basics",
		Path:  "1 Basics",
		Videos: []*Video{
			video("1 Basics/a.mp4", ptr(20)),
			video("1 Basics/b.mp4", nil),
		},
		Documents: []*Document{{Kind: classify.DocPDF, Title: "Notes", File: "notes.pdf", Path: "1 Basics/notes.pdf"}},
		Children:  []*Chapter{deep},
	}
	advanced := &Chapter{Title: "Advanced", Path: "2 Advanced", Videos: []*Video{video("2 Advanced/d.mp4", nil)}}

	c := &Course{
		Title:    "Go",
		RootPath: "/courses/go",
		Videos:   []*Video{video("intro.mp4", ptr(10))},
		Chapters: []*Chapter{basics, advanced},
	}
	c.Recompute()
	return c
}

func TestRecompute(t *testing.T) {
	c := sampleCourse()

	assert.Equal(t, 5, c.TotalVideos)
	assert.InDelta(t, 60.0, c.TotalDurationSeconds, 1e-9)

	basics := c.Chapters[0]
	assert.InDelta(t, 50.0, basics.DurationSeconds, 1e-9)
	assert.Equal(t, 3, basics.VideoCount)
	assert.InDelta(t, 30.0, basics.Children[0].DurationSeconds, 1e-9)
	assert.Zero(t, c.Chapters[1].DurationSeconds)
}

func TestApplyDuration_UpdatesAncestors(t *testing.T) {
	c := sampleCourse()

	require.NoError(t, c.ApplyDuration("1 Basics/Deep/c.mp4", 45))
	assert.InDelta(t, 45.0, c.Chapters[0].Children[0].DurationSeconds, 1e-9)
	assert.InDelta(t, 65.0, c.Chapters[0].DurationSeconds, 1e-9)
	assert.InDelta(t, 75.0, c.TotalDurationSeconds, 1e-9)

	require.NoError(t, c.ApplyDuration("2 Advanced/d.mp4", 12.5))
	assert.InDelta(t, 12.5, c.Chapters[1].DurationSeconds, 1e-9)
	assert.InDelta(t, 87.5, c.TotalDurationSeconds, 1e-9)

	require.NoError(t, c.ApplyDuration("intro.mp4", 0))
	assert.InDelta(t, 77.5, c.TotalDurationSeconds, 1e-9)
}

func TestApplyDuration_MatchesRecompute(t *testing.T) {
	incremental := sampleCourse()
	full := sampleCourse()

	updates := map[string]float64{
		"1 Basics/b.mp4":      0.1,
		"2 Advanced/d.mp4":    0.2,
		"1 Basics/Deep/c.mp4": 1e-7,
		"intro.mp4":           3.3,
	}
	for _, p := range []string{"1 Basics/b.mp4", "2 Advanced/d.mp4", "1 Basics/Deep/c.mp4", "intro.mp4"} {
		require.NoError(t, incremental.ApplyDuration(p, updates[p]))
		v, ok := full.VideoByPath(p)
		require.True(t, ok)
		v.DurationSeconds = ptr(updates[p])
	}
	full.Recompute()

	// Same summation order, so the results are bit-identical.
	assert.Equal(t, full.TotalDurationSeconds, incremental.TotalDurationSeconds)
	for ch := range full.AllChapters() {
		got, ok := incremental.Index().Chapter(ch.Path)
		require.True(t, ok)
		assert.Equal(t, ch.DurationSeconds, got.DurationSeconds, ch.Path)
	}
}

func TestApplyDuration_RepeatedUpdatesDoNotDrift(t *testing.T) {
	c := sampleCourse()

	for i := range 1000 {
		require.NoError(t, c.ApplyDuration("1 Basics/Deep/c.mp4", 0.1*float64(i%7)))
		require.NoError(t, c.ApplyDuration("1 Basics/b.mp4", 0.3*float64(i%3)))
	}
	require.NoError(t, c.ApplyDuration("1 Basics/Deep/c.mp4", 0.1))
	require.NoError(t, c.ApplyDuration("1 Basics/b.mp4", 0.2))

	full := sampleCourse()
	for p, d := range map[string]float64{"1 Basics/Deep/c.mp4": 0.1, "1 Basics/b.mp4": 0.2} {
		v, ok := full.VideoByPath(p)
		require.True(t, ok)
		v.DurationSeconds = ptr(d)
	}
	full.Recompute()

	assert.Equal(t, full.TotalDurationSeconds, c.TotalDurationSeconds)
	assert.Equal(t, full.Chapters[0].DurationSeconds, c.Chapters[0].DurationSeconds)
	assert.Equal(t, full.Chapters[1].DurationSeconds, c.Chapters[1].DurationSeconds, "siblings untouched")
}

func TestApplyDuration_Errors(t *testing.T) {
	c := sampleCourse()

	err := c.ApplyDuration("missing.mp4", 10)
	assert.True(t, errors.IsNotFound(err))

	for _, bad := range []float64{-1, math.NaN(), math.Inf(1)} {
		err = c.ApplyDuration("intro.mp4", bad)
		assert.True(t, errors.IsInvalidInput(err), "%v", bad)
	}
	assert.InDelta(t, 60.0, c.TotalDurationSeconds, 1e-9, "rejected updates leave totals alone")
}

func TestIndex(t *testing.T) {
	c := sampleCourse()

	ch, ok := c.OwningChapter("1 Basics/Deep/c.mp4")
	require.True(t, ok)
	assert.Equal(t, "1 Basics/Deep", ch.Path)

	_, ok = c.OwningChapter("intro.mp4")
	assert.False(t, ok, "top-level videos have no chapter")

	assert.Equal(t, []string{"1 Basics/Deep", "1 Basics"}, c.Index().Ancestors("1 Basics/Deep/c.mp4"))
	assert.Empty(t, c.Index().Ancestors("intro.mp4"))

	p, ok := c.Index().ChapterPath("2 Advanced/d.mp4")
	require.True(t, ok)
	assert.Equal(t, "2 Advanced", p)
}

func TestReindex_Duplicates(t *testing.T) {
	c := sampleCourse()
	c.Chapters[1].Videos = append(c.Chapters[1].Videos, video("intro.mp4", nil))

	err := c.Reindex()
	require.Error(t, err)
	assert.True(t, errors.IsInvalidInput(err))
	assert.Contains(t, err.Error(), "intro.mp4")
}

func TestAllVideos_Order(t *testing.T) {
	c := sampleCourse()

	var paths []string
	for v := range c.AllVideos() {
		paths = append(paths, v.Path)
	}
	assert.Equal(t, []string{
		"intro.mp4",
		"1 Basics/a.mp4",
		"1 Basics/b.mp4",
		"1 Basics/Deep/c.mp4",
		"2 Advanced/d.mp4",
	}, paths)

	var first []string
	for v := range c.AllVideos() {
		first = append(first, v.Path)
		if len(first) == 2 {
			break
		}
	}
	assert.Len(t, first, 2)
}

func collectPaths(c *Course) []string {
	var out []string
	add := func(videos []*Video, docs []*Document) {
		for _, v := range videos {
			out = append(out, v.Path)
			for _, s := range v.Subtitles {
				out = append(out, s.Path)
			}
		}
		for _, d := range docs {
			out = append(out, d.Path)
		}
	}
	add(c.Videos, c.Documents)
	for ch := range c.AllChapters() {
		out = append(out, ch.Path)
		add(ch.Videos, ch.Documents)
	}
	slices.Sort(out)
	return out
}

func TestParse_RoundTrip(t *testing.T) {
	c := sampleCourse()
	c.Videos[0].Subtitles = []Subtitle{{Label: "English", Lang: "en", File: "intro.en.srt", Path: "intro.en.srt", SizeBytes: 12, ModTime: 99}}
	c.Videos[0].OrderKey = ordering.Key{Tier: ordering.TierTrailing, Value: 3, Name: "intro_3.mp4"}
	c.Chapters[1].Warnings = []string{"2 Advanced/locked: permission denied"}

	data, err := json.Marshal(c)
	require.NoError(t, err)

	parsed, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, c.TotalDurationSeconds, parsed.TotalDurationSeconds)
	assert.Equal(t, c.TotalVideos, parsed.TotalVideos)
	assert.Equal(t, collectPaths(c), collectPaths(parsed))
	assert.Nil(t, parsed.Chapters[0].Videos[1].DurationSeconds, "unresolved stays null")

	again, err := json.Marshal(parsed)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(again))
}

func TestParse_RecomputesTotals(t *testing.T) {
	doc := `{
		"title": "x",
		"videos": [{"title": "a", "path": "a.mp4", "duration": 5}],
		"chapters": [{"title": "c", "path": "c", "videos": [{"title": "b", "path": "c/b.mp4", "duration": null}], "duration": 999}],
		"total_duration": 999
	}`

	c, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.InDelta(t, 5.0, c.TotalDurationSeconds, 1e-9)
	assert.Zero(t, c.Chapters[0].DurationSeconds)
	assert.Equal(t, 2, c.TotalVideos)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte(`{"videos": [`))
	assert.Error(t, err)

	_, err = Parse([]byte(`{"videos": [{"path": "a.mp4"}, {"path": "a.mp4"}]}`))
	assert.True(t, errors.IsInvalidInput(err))
}

func TestKeyFor(t *testing.T) {
	assert.Equal(t, KeyFor("/courses/go/"), KeyFor("/courses/go"))
	assert.Equal(t, KeyFor("/courses/go/../go"), KeyFor("/courses/go"))
	assert.NotEqual(t, KeyFor("/courses/go"), KeyFor("/courses/rust"))
}

func TestChapter_Empty(t *testing.T) {
	assert.True(t, (&Chapter{}).Empty())
	assert.False(t, (&Chapter{Documents: []*Document{{}}}).Empty())
}
