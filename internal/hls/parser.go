// Package hls parses HLS master and media playlists and maps a quality
// preference onto the variants a master playlist offers.
package hls

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
)

const (
	tagStreamInf = "#EXT-X-STREAM-INF"

	// AutoLabel names the synthetic variant that points at the master playlist
	// itself and lets the player adapt.
	AutoLabel = "Auto"

	// maxNesting bounds master -> master indirection in highest-only mode.
	maxNesting = 3
)

// Variant is one selectable rendition of a master playlist.
type Variant struct {
	Label     string
	URL       string
	Height    int // 0 when the playlist does not declare RESOLUTION
	Bandwidth int // 0 when the playlist does not declare BANDWIDTH
}

// IsAuto reports whether v is the synthetic master entry.
func (v Variant) IsAuto() bool {
	return v.Label == AutoLabel
}

// Fetcher retrieves playlist text.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, headers map[string]string) (string, error)
}

// IsMaster reports whether body is a master playlist.
func IsMaster(body string) bool {
	return strings.Contains(body, tagStreamInf)
}

// ParseVariants returns the variant list of a master playlist fetched from
// playlistURL. The first entry is always Auto; the rest are unique by label and
// sorted by height, tallest first. A media playlist, or a master playlist
// without usable entries, yields Auto alone.
func ParseVariants(body, playlistURL string) []Variant {
	auto := Variant{Label: AutoLabel, URL: playlistURL}
	if !IsMaster(body) {
		return []Variant{auto}
	}

	streams := scanStreams(body, playlistURL)
	seen := make(map[string]bool, len(streams))
	variants := make([]Variant, 0, len(streams)+1)
	for _, v := range streams {
		if seen[v.Label] {
			continue
		}
		seen[v.Label] = true
		variants = append(variants, v)
	}

	sort.SliceStable(variants, func(i, j int) bool {
		return variants[i].Height > variants[j].Height
	})

	return append([]Variant{auto}, variants...)
}

// ParseSegments returns the segment URIs of a media playlist in order,
// resolved against playlistURL. A playlist with no segments yields
// playlistURL as its only entry.
func ParseSegments(body, playlistURL string) []string {
	var segments []string
	for _, line := range lines(body) {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		segments = append(segments, resolveURI(playlistURL, line))
	}
	if len(segments) == 0 {
		return []string{playlistURL}
	}
	return segments
}

// Segments returns the segment list to download for the playlist at
// playlistURL. For a master playlist only the tallest variant is followed; if
// that variant cannot be fetched the master URL itself is returned as the sole
// segment.
func Segments(ctx context.Context, f Fetcher, body, playlistURL string, headers map[string]string) ([]string, error) {
	return segments(ctx, f, body, playlistURL, headers, 0)
}

func segments(ctx context.Context, f Fetcher, body, playlistURL string, headers map[string]string, depth int) ([]string, error) {
	if !IsMaster(body) {
		return ParseSegments(body, playlistURL), nil
	}

	best, ok := highestVariant(body, playlistURL)
	if !ok || depth >= maxNesting {
		return []string{playlistURL}, nil
	}

	child, err := f.Fetch(ctx, best.URL, headers)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return []string{playlistURL}, nil
	}
	return segments(ctx, f, child, best.URL, headers, depth+1)
}

// highestVariant returns the tallest variant. On equal heights the first one
// seen wins.
func highestVariant(body, playlistURL string) (Variant, bool) {
	var best Variant
	found := false
	for _, v := range scanStreams(body, playlistURL) {
		if !found || v.Height > best.Height {
			best = v
			found = true
		}
	}
	return best, found
}

// scanStreams pairs every stream-info tag with the URI line that follows it.
func scanStreams(body, playlistURL string) []Variant {
	var (
		out     []Variant
		pending *Variant
	)
	for _, line := range lines(body) {
		if strings.HasPrefix(line, tagStreamInf) {
			v := streamInfo(line)
			pending = &v
			continue
		}
		if pending == nil || line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		pending.URL = resolveURI(playlistURL, line)
		pending.Label = variantLabel(*pending, line)
		out = append(out, *pending)
		pending = nil
	}
	return out
}

func streamInfo(line string) Variant {
	_, attrs, _ := strings.Cut(line, ":")
	params := parseAttributes(attrs)

	var v Variant
	if res, ok := params["RESOLUTION"]; ok {
		if _, h, ok := strings.Cut(strings.ToLower(res), "x"); ok {
			v.Height, _ = strconv.Atoi(strings.TrimSpace(h))
		}
	}
	if bw, ok := params["BANDWIDTH"]; ok {
		v.Bandwidth, _ = strconv.Atoi(strings.TrimSpace(bw))
	}
	return v
}

func variantLabel(v Variant, uri string) string {
	switch {
	case v.Height > 0:
		return fmt.Sprintf("%dp", v.Height)
	case v.Bandwidth > 0:
		return fmt.Sprintf("%d kbps", v.Bandwidth/1000)
	default:
		return path.Base(strings.SplitN(uri, "?", 2)[0])
	}
}

// parseAttributes splits an attribute list such as
// BANDWIDTH=1,CODECS="a,b",RESOLUTION=640x360. Quoted values may hold commas.
func parseAttributes(s string) map[string]string {
	params := make(map[string]string)
	for len(s) > 0 {
		eq := strings.IndexByte(s, '=')
		if eq < 0 {
			break
		}
		key := strings.TrimSpace(s[:eq])
		s = s[eq+1:]

		var value string
		if strings.HasPrefix(s, `"`) {
			end := strings.IndexByte(s[1:], '"')
			if end < 0 {
				value, s = s[1:], ""
			} else {
				value, s = s[1:end+1], s[end+2:]
			}
			s = strings.TrimPrefix(s, ",")
		} else {
			var rest string
			var found bool
			value, rest, found = strings.Cut(s, ",")
			if !found {
				rest = ""
			}
			s = rest
		}
		params[strings.ToUpper(key)] = value
	}
	return params
}

func lines(body string) []string {
	raw := strings.Split(body, "\n")
	out := make([]string, len(raw))
	for i, l := range raw {
		out[i] = strings.TrimSpace(l)
	}
	return out
}

// resolveURI resolves ref against the playlist it was read from.
func resolveURI(base, ref string) string {
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if r.IsAbs() {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
