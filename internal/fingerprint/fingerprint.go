// Package fingerprint hashes the static shape of a course tree.
//
// The hash covers every path, size and modification time in tree order and
// nothing else, so it is stable across duration resolution and changes on
// any add, remove, rename, resize or touch.
package fingerprint

import (
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/Lacarte/video-player/internal/course"
)

// Compute returns the fingerprint of c as 16 hex characters.
//
// Order: top-level videos (each followed by its subtitles), top-level
// documents, then chapters depth-first with the same layout. Chapter paths
// are included so an empty rename still changes the hash.
func Compute(c *course.Course) string {
	d := xxhash.New()
	buf := make([]byte, 0, 256)

	entry := func(path string, size, mtime int64) {
		buf = buf[:0]
		buf = append(buf, path...)
		buf = append(buf, '|')
		buf = strconv.AppendInt(buf, size, 10)
		buf = append(buf, '|')
		buf = strconv.AppendInt(buf, mtime, 10)
		buf = append(buf, '\n')
		_, _ = d.Write(buf)
	}
	files := func(videos []*course.Video, docs []*course.Document) {
		for _, v := range videos {
			entry(v.Path, v.SizeBytes, v.ModTime)
			for _, s := range v.Subtitles {
				entry(s.Path, s.SizeBytes, s.ModTime)
			}
		}
		for _, doc := range docs {
			entry(doc.Path, doc.SizeBytes, doc.ModTime)
		}
	}

	files(c.Videos, c.Documents)
	for ch := range c.AllChapters() {
		entry(ch.Path+"/", 0, 0)
		files(ch.Videos, ch.Documents)
	}
	return fmt.Sprintf("%016x", d.Sum64())
}

// Matches reports whether a stored fingerprint is still valid for c.
func Matches(c *course.Course, stored string) bool {
	return stored != "" && stored == Compute(c)
}
