package consumer

import "github.com/rivo/uniseg"

// Vendor limits, in user-perceived characters (grapheme clusters).
const (
	MaxEventNameLength        = 40
	MaxUserPropertyNameLength = 24
)

type (
	EventName               string
	TrimmedEventName        string
	UserPropertyName        string
	TrimmedUserPropertyName string
)

// TrimEvent truncates name to MaxEventNameLength characters.
func TrimEvent(name EventName) TrimmedEventName {
	s, _ := truncate(string(name), MaxEventNameLength)
	return TrimmedEventName(s)
}

// TrimUserProperty truncates name to MaxUserPropertyNameLength characters.
func TrimUserProperty(name UserPropertyName) TrimmedUserPropertyName {
	s, _ := truncate(string(name), MaxUserPropertyNameLength)
	return TrimmedUserPropertyName(s)
}

// truncate keeps the first max grapheme clusters of s and reports whether
// anything was dropped. A cluster is never split.
func truncate(s string, max int) (string, bool) {
	if len(s) <= max {
		return s, false
	}
	rest := s
	state := -1
	n := 0
	for len(rest) > 0 {
		if n == max {
			return s[:len(s)-len(rest)], true
		}
		_, rest, _, state = uniseg.FirstGraphemeClusterInString(rest, state)
		n++
	}
	return s, false
}

func charLen(s string) int { return uniseg.GraphemeClusterCount(s) }
