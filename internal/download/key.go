package download

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// EpisodeKey is the duplicate key for an episode of a show.
func EpisodeKey(showTitle string, season, episode int) string {
	return fmt.Sprintf("episode:%s:%d:%d", foldTitle(showTitle), season, episode)
}

// ItemKey is the duplicate key for a non-episodic item.
func ItemKey(id string) string {
	return "item:" + id
}

// RequestID derives a stable ID for a request that arrives without one. The
// same module and source URL always yield the same ID, and so the same
// ItemKey.
func RequestID(moduleID, sourceURL string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(moduleID+"|"+sourceURL)).String()
}

// foldTitle lowercases, strips accents and collapses whitespace so that
// "Amélie " and "amelie" compare equal.
func foldTitle(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}
