package canon

import (
	"regexp"
	"strings"
)

var rePunct = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

// Location normalizes a free-text property location for comparison and cache keys:
// lowercased, punctuation collapsed to spaces, common Thai-English road words shortened.
func Location(s string) string {
	n := strings.ToLower(strings.TrimSpace(s))
	n = rePunct.ReplaceAllString(n, " ")
	n = collapseSpaces(n)
	n = " " + n + " "
	for _, r := range suffixes {
		n = strings.ReplaceAll(n, r[0], r[1])
	}
	return collapseSpaces(n)
}

// Key is a stable identifier for a location and optional map link.
func Key(location, mapURL string) string {
	k := Location(location)
	if u := strings.TrimSpace(mapURL); u != "" {
		k += "|" + u
	}
	return k
}

// Contains reports whether needle appears in haystack after both are normalized.
func Contains(haystack, needle string) bool {
	n := Location(needle)
	if n == "" {
		return false
	}
	return strings.Contains(Location(haystack), n)
}

var suffixes = [][2]string{
	{" road ", " rd "},
	{" thanon ", " rd "},
	{" street ", " st "},
	{" moo ", " m "},
	{" subdistrict ", " "},
	{" tambon ", " "},
	{" amphoe ", " "},
	{" district ", " "},
	{" province ", " "},
	{" changwat ", " "},
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
