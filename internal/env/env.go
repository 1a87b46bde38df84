package env

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

func Must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		log.Fatalf("missing required env %s", k)
	}
	return v
}

func Get(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func GetInt(k string, def int) int {
	return ParseInt(os.Getenv(k), def)
}

func GetFloat(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def
	}
	return f
}

func GetBool(k string, def bool) bool {
	return ParseBool(os.Getenv(k), def)
}

func GetDuration(k string, def time.Duration) time.Duration {
	return ParseDuration(os.Getenv(k), def)
}

func GetList(k string) []string {
	return SplitList(os.Getenv(k))
}

// SplitList splits on commas, semicolons and whitespace separators, dropping blanks.
func SplitList(v string) []string {
	if v == "" {
		return nil
	}
	fields := strings.FieldsFunc(v, func(r rune) bool {
		switch r {
		case ',', ';', '\n', '\r', '\t':
			return true
		default:
			return false
		}
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// ParseDuration accepts Go durations ("90s", "6h") or a bare number of seconds.
func ParseDuration(v string, def time.Duration) time.Duration {
	if v == "" {
		return def
	}
	dur, err := time.ParseDuration(v)
	if err == nil {
		return dur
	}
	if i, err2 := strconv.Atoi(v); err2 == nil {
		return time.Duration(i) * time.Second
	}
	return def
}

func ParseInt(v string, def int) int {
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return i
}

func ParseBool(v string, def bool) bool {
	if v == "" {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}
