package overpass

import (
	"fmt"
	"strings"
)

// Box is (south, west, north, east) in decimal degrees.
type Box struct {
	South, West, North, East float64
}

func (b Box) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", b.South, b.West, b.North, b.East)
}

// BuildQuery unions every tag filter over nodes, ways and relations inside box and asks
// for centers so area features come back with a usable point.
func BuildQuery(filters []string, box Box, timeoutSeconds int) string {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 60
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "[out:json][timeout:%d];\n(\n", timeoutSeconds)
	bb := box.String()
	for _, f := range filters {
		for _, kind := range []string{"node", "way", "relation"} {
			fmt.Fprintf(&sb, "  %s%s(%s);\n", kind, f, bb)
		}
	}
	sb.WriteString(");\nout center tags;")
	return sb.String()
}
