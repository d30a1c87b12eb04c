// Package classify maps directory entries to their semantic kind.
package classify

import (
	"path/filepath"
	"strings"
)

// Kind is the semantic kind of a file.
type Kind int

const (
	KindOther Kind = iota
	KindVideo
	KindSubtitle
	KindDocument
)

func (k Kind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindSubtitle:
		return "subtitle"
	case KindDocument:
		return "document"
	default:
		return "other"
	}
}

// DocumentKind is the sub-kind of a document file.
type DocumentKind string

const (
	DocPDF   DocumentKind = "pdf"
	DocHTML  DocumentKind = "html"
	DocImage DocumentKind = "image"
	DocText  DocumentKind = "text"
	DocJSON  DocumentKind = "json"
	DocZip   DocumentKind = "zip"
	DocOther DocumentKind = "other"
)

var (
	videoExts = map[string]bool{
		".mp4": true, ".mkv": true, ".webm": true, ".avi": true, ".mov": true, ".m4v": true,
	}
	subtitleExts = map[string]bool{".srt": true, ".vtt": true}

	documentExts = map[string]DocumentKind{
		".pdf":  DocPDF,
		".html": DocHTML,
		".htm":  DocHTML,
		".jpg":  DocImage,
		".jpeg": DocImage,
		".png":  DocImage,
		".gif":  DocImage,
		".webp": DocImage,
		".bmp":  DocImage,
		".svg":  DocImage,
		".txt":  DocText,
		".md":   DocText,
		".json": DocJSON,
		".zip":  DocZip,
		".rar":  DocZip,
		".7z":   DocZip,
	}
)

// DefaultIgnoredFolders are skipped during scans in addition to hidden folders.
var DefaultIgnoredFolders = []string{
	".git", "__pycache__", "node_modules", ".vscode", ".idea", "trash", "deleteVideos",
}

// DefaultIgnoredFiles are OS metadata files that never become documents.
var DefaultIgnoredFiles = []string{"Thumbs.db", "desktop.ini"}

// DefaultIgnoredExtensions are unfinished downloads and scratch files.
var DefaultIgnoredExtensions = []string{".part", ".crdownload", ".tmp"}

// KindOf classifies an extension (with or without the leading dot).
// Every extension maps to exactly one kind; unknown ones are KindOther.
func KindOf(ext string) Kind {
	ext = normalizeExt(ext)
	switch {
	case videoExts[ext]:
		return KindVideo
	case subtitleExts[ext]:
		return KindSubtitle
	}
	if _, ok := documentExts[ext]; ok {
		return KindDocument
	}
	return KindOther
}

// DocumentKindOf returns the document sub-kind for ext, DocOther when unknown.
func DocumentKindOf(ext string) DocumentKind {
	if k, ok := documentExts[normalizeExt(ext)]; ok {
		return k
	}
	return DocOther
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && ext[0] != '.' {
		ext = "." + ext
	}
	return ext
}

// Classifier applies the extension table plus an ignore list.
// The zero value ignores only hidden names.
type Classifier struct {
	folders map[string]bool
	files   map[string]bool
	exts    map[string]bool
}

// New returns a Classifier ignoring the default folders and files plus
// extraFolders.
func New(extraFolders ...string) *Classifier {
	c := &Classifier{
		folders: make(map[string]bool, len(DefaultIgnoredFolders)+len(extraFolders)),
		files:   make(map[string]bool, len(DefaultIgnoredFiles)),
		exts:    make(map[string]bool, len(DefaultIgnoredExtensions)),
	}
	for _, name := range DefaultIgnoredFolders {
		c.folders[strings.ToLower(name)] = true
	}
	for _, name := range extraFolders {
		c.folders[strings.ToLower(name)] = true
	}
	for _, name := range DefaultIgnoredFiles {
		c.files[strings.ToLower(name)] = true
	}
	return c.IgnoreExtensions(DefaultIgnoredExtensions...)
}

// IgnoreExtensions adds extensions (with or without the leading dot) whose
// files are skipped. It returns c so it can follow New.
func (c *Classifier) IgnoreExtensions(exts ...string) *Classifier {
	if c.exts == nil {
		c.exts = make(map[string]bool, len(exts))
	}
	for _, ext := range exts {
		if ext = normalizeExt(strings.TrimSpace(ext)); ext != "" && ext != "." {
			c.exts[ext] = true
		}
	}
	return c
}

// IgnoreFolder reports whether a folder name is skipped.
func (c *Classifier) IgnoreFolder(name string) bool {
	return isHidden(name) || c.folders[strings.ToLower(name)]
}

// IgnoreFile reports whether a file name is skipped.
func (c *Classifier) IgnoreFile(name string) bool {
	return isHidden(name) || c.files[strings.ToLower(name)] || c.exts[normalizeExt(filepath.Ext(name))]
}

// Classify returns the kind of a file name. Ignored names are KindOther and
// callers are expected to check IgnoreFile first when the distinction matters.
func (c *Classifier) Classify(name string) Kind {
	return KindOf(filepath.Ext(name))
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
