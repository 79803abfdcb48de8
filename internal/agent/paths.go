package agent

import (
	"os"
	"path/filepath"
	"strings"
)

// EncodeProjectPath maps a working directory onto its transcript directory
// name: slashes become dashes, so a hidden segment ("/.config") produces a
// double dash. The transform is lossy, since dashes already in the path are
// indistinguishable from encoded slashes, so matching goes through
// NormalizeForMatch instead of decoding.
func EncodeProjectPath(path string) string {
	encoded := strings.ReplaceAll(path, "/", "-")
	return strings.ReplaceAll(encoded, "-.", "--")
}

// DecodeProjectPath recovers a filesystem path from an encoded directory
// name by walking the tree: at each level the directory entries are encoded
// the same way and matched against the remaining name, which resolves the
// ambiguity between encoded slashes and dashes that were always dashes.
// Returns "" when nothing on disk matches.
func DecodeProjectPath(encoded string) string {
	rest := strings.TrimPrefix(encoded, "-")
	if rest == "" {
		return ""
	}

	candidate := "/"
	for rest != "" {
		entries, err := os.ReadDir(candidate)
		if err != nil {
			return ""
		}

		// Prefer the longest entry that accounts for a prefix of the
		// remaining encoded name.
		var bestName, bestEnc string
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			enc := encodeSegment(e.Name())
			if rest != enc && !strings.HasPrefix(rest, enc+"-") {
				continue
			}
			if len(enc) > len(bestEnc) {
				bestName, bestEnc = e.Name(), enc
			}
		}
		if bestName == "" {
			return ""
		}

		candidate = filepath.Join(candidate, bestName)
		if len(rest) == len(bestEnc) {
			rest = ""
		} else {
			rest = rest[len(bestEnc)+1:]
		}
	}
	return candidate
}

// encodeSegment encodes a single directory name the way EncodeProjectPath
// encodes it inside a full path: a leading dot becomes a dash.
func encodeSegment(name string) string {
	if strings.HasPrefix(name, ".") {
		return "-" + name[1:]
	}
	return name
}

// NormalizeForMatch prepares a path or encoded directory name for loose
// comparison: separators and underscores collapse to dashes and case is
// folded, since filesystems and the encoding disagree on exactly these.
func NormalizeForMatch(s string) string {
	s = strings.TrimSuffix(s, "/")
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "_", "-")
	return strings.ToLower(s)
}

// PathsMatchLoose reports whether a process working directory corresponds to
// an encoded transcript directory name (or to another path).
func PathsMatchLoose(a, b string) bool {
	return NormalizeForMatch(a) == NormalizeForMatch(b)
}

// ProjectNameFromPath returns the display name for a project directory.
func ProjectNameFromPath(path string) string {
	if path == "" || path == "/" {
		return path
	}
	return filepath.Base(strings.TrimSuffix(path, "/"))
}
