package poisource

import "strings"

var internationalKeywords = []string{
	"international", "british", "american", "australian", "canadian", "french",
	"german", "swiss", "montessori", "ib world", "cambridge",
	// schools operating on Phuket
	"bis phuket", "headstart", "head start", "kajonkiet international", "hsi",
	"ucsi", "phuket international academy", "pia", "dulwich",
}

var schoolTextKeys = []string{"name", "name:en", "operator", "int_name"}

// IsInternationalSchool matches name and operator text against known curricula and brands.
func IsInternationalSchool(tags map[string]string) bool {
	var sb strings.Builder
	for _, k := range schoolTextKeys {
		if v := tags[k]; v != "" {
			sb.WriteString(" ")
			sb.WriteString(strings.ToLower(v))
		}
	}
	sb.WriteString(" ")
	text := sb.String()
	for _, kw := range internationalKeywords {
		if len(kw) <= 3 {
			if strings.Contains(text, " "+kw+" ") {
				return true
			}
			continue
		}
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
