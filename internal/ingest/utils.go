package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/course-jobs/constants"
)

// DefaultExts are the drop-folder formats that map to a job type.
func DefaultExts() map[string]struct{} {
	out := make(map[string]struct{}, len(constants.DocumentExtensions)+len(constants.PresentationExtensions))
	for e := range constants.DocumentExtensions {
		out[e] = struct{}{}
	}
	for e := range constants.PresentationExtensions {
		out[e] = struct{}{}
	}
	return out
}

// JobTypeFor picks the job a dropped file becomes. PDFs are read as
// documents; other presentation formats are rasterized.
func JobTypeFor(ext string) (constants.JobType, bool) {
	ext = constants.NormalizeExt(ext)
	if _, ok := constants.DocumentExtensions[ext]; ok {
		return constants.JobTypeFileUpload, true
	}
	if _, ok := constants.PresentationExtensions[ext]; ok {
		return constants.JobTypePresentation, true
	}
	return "", false
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".")
}

func allowed(path string, exts map[string]struct{}) bool {
	_, ok := exts[constants.NormalizeExt(filepath.Ext(path))]
	return ok
}
