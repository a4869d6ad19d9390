package pacs

import "regexp"

var (
	illegalChars  = regexp.MustCompile(`[<>:"/\\|?*]`)
	dotSpace      = regexp.MustCompile(`\.\s+`)
	whitespace    = regexp.MustCompile(`\s+`)
	repeatedDots  = regexp.MustCompile(`\.+`)
	trimEdgeChars = ". _"
)

// SanitizeFolderName strips or replaces characters that are illegal on
// Windows filesystems or that confuse dcm2niix's argument parsing, and caps
// the result at 50 characters. It is idempotent: sanitizing an already
// sanitized name returns it unchanged.
func SanitizeFolderName(name string) string {
	if name == "" {
		return "Unknown"
	}

	name = illegalChars.ReplaceAllString(name, "_")
	name = dotSpace.ReplaceAllString(name, "_")
	name = whitespace.ReplaceAllString(name, "_")
	name = repeatedDots.ReplaceAllString(name, ".")
	name = trimCutset(name, trimEdgeChars)

	if len(name) > 50 {
		name = name[:50]
	}
	name = trimCutset(name, trimEdgeChars)

	if name == "" {
		return "Unknown"
	}
	return name
}

func trimCutset(s, cutset string) string {
	start := 0
	for start < len(s) && containsByte(cutset, s[start]) {
		start++
	}
	end := len(s)
	for end > start && containsByte(cutset, s[end-1]) {
		end--
	}
	return s[start:end]
}

func containsByte(s string, b byte) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return true
		}
	}
	return false
}
