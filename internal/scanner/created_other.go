//go:build !linux && !darwin && !windows

package scanner

import (
	"io/fs"
	"time"
)

// creationTime has no portable source here; modification time stands in.
func creationTime(_ string, info fs.FileInfo) time.Time {
	return info.ModTime()
}
