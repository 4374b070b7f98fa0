package hls

import (
	"fmt"
	"strconv"
	"strings"
)

// Preference is the user's quality choice.
type Preference string

const (
	PreferenceBest   Preference = "best"
	PreferenceHigh   Preference = "high"
	PreferenceMedium Preference = "medium"
	PreferenceLow    Preference = "low"
)

// ParsePreference parses a configured preference, case-insensitively.
func ParsePreference(s string) (Preference, error) {
	switch p := Preference(strings.ToLower(strings.TrimSpace(s))); p {
	case PreferenceBest, PreferenceHigh, PreferenceMedium, PreferenceLow:
		return p, nil
	case "":
		return PreferenceBest, nil
	default:
		return "", fmt.Errorf("unknown quality preference %q", s)
	}
}

// Select picks one entry from variants (Auto first, then tallest first) for
// pref. It never fails: when no entry fits the preferred band it falls back
// to the next rule, and it only ever returns an element of variants. An empty
// list yields the zero Variant.
func Select(variants []Variant, pref Preference) Variant {
	if len(variants) == 0 {
		return Variant{}
	}
	if len(variants) == 1 {
		return variants[0]
	}

	switch pref {
	case PreferenceHigh:
		for _, v := range variants {
			if !v.IsAuto() && isHD(v) {
				return v
			}
		}
		return selectBest(variants)
	case PreferenceMedium:
		for _, v := range variants {
			if h := variantHeight(v); !v.IsAuto() && h >= 480 && h <= 720 {
				return v
			}
		}
		if mid := len(variants) / 2; mid < len(variants) {
			return variants[mid]
		}
		return variants[len(variants)-1]
	case PreferenceLow:
		return variants[len(variants)-1]
	default:
		return selectBest(variants)
	}
}

// isHD reports whether v sits in the 720p band: a height in [720, 1080), or,
// for variants without a usable height, a label carrying "HD" or "720".
func isHD(v Variant) bool {
	if h := variantHeight(v); h > 0 {
		return h >= 720 && h < 1080
	}
	label := strings.ToUpper(v.Label)
	return strings.Contains(label, "HD") || strings.Contains(label, "720")
}

func selectBest(variants []Variant) Variant {
	for _, v := range variants {
		if !v.IsAuto() {
			return v
		}
	}
	return variants[0]
}

// variantHeight returns the declared height, or the one encoded in a label
// such as "720p".
func variantHeight(v Variant) int {
	if v.Height > 0 {
		return v.Height
	}
	digits, _, ok := strings.Cut(strings.ToLower(v.Label), "p")
	if !ok {
		return 0
	}
	h, err := strconv.Atoi(strings.TrimSpace(digits))
	if err != nil {
		return 0
	}
	return h
}
