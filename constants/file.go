package constants

import "strings"

// DocumentExtensions are the formats the text extractor understands.
var DocumentExtensions = map[string]struct{}{
	"docx": {},
	"pdf":  {},
	"rtf":  {},
}

// PresentationExtensions are accepted by the slide rasterizer. PDF decks skip the office conversion.
var PresentationExtensions = map[string]struct{}{
	"pptx": {},
	"ppt":  {},
	"odp":  {},
	"key":  {},
	"pdf":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
