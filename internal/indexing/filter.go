package indexing

import "strings"

const (
	// MaxFileSizeBytes is the ceiling on raw file size fetched from GitHub.
	// Files at or above this are skipped before download.
	MaxFileSizeBytes = 100_000

	// MaxEmbedBytes caps the text sent to the embedding provider, leaving
	// headroom under the provider's own input limit.
	MaxEmbedBytes = 9000
)

// supportedExtensions is the allow-list of file extensions worth embedding.
// Matching is on the final dot-separated segment, lowercased, so dotfiles
// such as .gitignore match by their full name.
var supportedExtensions = map[string]struct{}{
	"js": {}, "jsx": {}, "ts": {}, "tsx": {}, "py": {}, "java": {}, "c": {},
	"cpp": {}, "cs": {}, "go": {}, "rb": {}, "php": {}, "swift": {},

	"html": {}, "css": {}, "scss": {}, "sass": {}, "less": {},

	"json": {}, "yaml": {}, "yml": {}, "xml": {}, "csv": {},

	"md": {}, "txt": {}, "rst": {}, "doc": {}, "docx": {},

	"env": {}, "ini": {}, "conf": {}, "config": {},

	"sh": {}, "bash": {}, "zsh": {}, "fish": {},

	"gitignore": {}, "gitattributes": {},
}

// IsProcessable reports whether a file name carries a supported extension.
func IsProcessable(filename string) bool {
	idx := strings.LastIndex(filename, ".")
	ext := filename
	if idx >= 0 {
		ext = filename[idx+1:]
	}
	_, ok := supportedExtensions[strings.ToLower(ext)]
	return ok
}

// Extension returns the lowercased extension of a file name, or the whole
// lowercased name when it has no dot. Used as the record's language tag.
func Extension(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx >= 0 {
		return strings.ToLower(filename[idx+1:])
	}
	return strings.ToLower(filename)
}

// TruncateLines returns a prefix of content made of whole lines whose
// accumulated length stays within maxBytes. Lines are never cut in the
// middle. If even the first line does not fit, the result is empty.
func TruncateLines(content string, maxBytes int) string {
	if maxBytes <= 0 {
		return ""
	}

	var b strings.Builder
	for _, line := range strings.Split(content, "\n") {
		if b.Len()+len(line) > maxBytes {
			break
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}
