package course

// Index maps paths to nodes so callers can navigate without back pointers.
// Top-level videos have no owner entry; top-level chapters have no parent
// entry.
type Index struct {
	videos   map[string]*Video
	owner    map[string]string // video path -> chapter path
	chapters map[string]*Chapter
	parent   map[string]string // chapter path -> parent chapter path

	duplicates []string
}

func buildIndex(c *Course) *Index {
	idx := &Index{
		videos:   make(map[string]*Video),
		owner:    make(map[string]string),
		chapters: make(map[string]*Chapter),
		parent:   make(map[string]string),
	}
	seen := make(map[string]bool)
	mark := func(path string) {
		if seen[path] {
			idx.duplicates = append(idx.duplicates, path)
		}
		seen[path] = true
	}

	addVideos := func(videos []*Video, owner string, hasOwner bool) {
		for _, v := range videos {
			mark(v.Path)
			for _, s := range v.Subtitles {
				mark(s.Path)
			}
			idx.videos[v.Path] = v
			if hasOwner {
				idx.owner[v.Path] = owner
			}
		}
	}
	addDocuments := func(docs []*Document) {
		for _, d := range docs {
			mark(d.Path)
		}
	}

	var walk func(chs []*Chapter, parent string, hasParent bool)
	walk = func(chs []*Chapter, parent string, hasParent bool) {
		for _, ch := range chs {
			mark(ch.Path)
			idx.chapters[ch.Path] = ch
			if hasParent {
				idx.parent[ch.Path] = parent
			}
			addVideos(ch.Videos, ch.Path, true)
			addDocuments(ch.Documents)
			walk(ch.Children, ch.Path, true)
		}
	}

	addVideos(c.Videos, "", false)
	addDocuments(c.Documents)
	walk(c.Chapters, "", false)
	return idx
}

// ChapterPath returns the path of the chapter owning a video.
func (idx *Index) ChapterPath(videoPath string) (string, bool) {
	p, ok := idx.owner[videoPath]
	return p, ok
}

// Ancestors returns the chapter paths from the owner of videoPath up to the
// top-level chapter.
func (idx *Index) Ancestors(videoPath string) []string {
	var out []string
	for p, ok := idx.owner[videoPath]; ok; p, ok = idx.parent[p] {
		out = append(out, p)
	}
	return out
}

// Chapter looks up a chapter by folder path.
func (idx *Index) Chapter(path string) (*Chapter, bool) {
	ch, ok := idx.chapters[path]
	return ch, ok
}
