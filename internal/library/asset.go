// Package library is the durable record of completed downloads and the
// files backing them.
package library

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"time"

	"github.com/vmunix/stowaway/internal/download"
)

// AssetType distinguishes movies from episodes.
type AssetType string

const (
	AssetMovie   AssetType = "movie"
	AssetEpisode AssetType = "episode"
)

// Metadata is descriptive information carried from the request.
type Metadata struct {
	ShowTitle   string `json:"show_title,omitempty"`
	Season      int    `json:"season,omitempty"`
	Episode     int    `json:"episode,omitempty"`
	PosterURL   string `json:"poster_url,omitempty"`
	BackdropURL string `json:"backdrop_url,omitempty"`
}

// Asset is a completed download stored on disk.
type Asset struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	DownloadDate      time.Time `json:"download_date"`
	OriginalURL       string    `json:"original_url"`
	LocalPath         string    `json:"local_path"`
	Type              AssetType `json:"type"`
	Metadata          Metadata  `json:"metadata"`
	SubtitleURL       string    `json:"subtitle_url,omitempty"`
	LocalSubtitlePath string    `json:"local_subtitle_path,omitempty"`
}

// WithLocalPath returns a copy pointing at a different file.
func (a Asset) WithLocalPath(p string) Asset {
	a.LocalPath = p
	return a
}

// WithSubtitle returns a copy with a subtitle attached.
func (a Asset) WithSubtitle(subtitleURL, localPath string) Asset {
	if subtitleURL != "" {
		a.SubtitleURL = subtitleURL
	}
	a.LocalSubtitlePath = localPath
	return a
}

// GroupTitle is the show title for episodes and the name otherwise.
func (a Asset) GroupTitle() string {
	if a.Type == AssetEpisode && a.Metadata.ShowTitle != "" {
		return a.Metadata.ShowTitle
	}
	return a.Name
}

// Key is the duplicate key shared with the download queue.
func (a Asset) Key() string {
	if a.Type == AssetEpisode && a.Metadata.ShowTitle != "" {
		return download.EpisodeKey(a.Metadata.ShowTitle, a.Metadata.Season, a.Metadata.Episode)
	}
	return download.ItemKey(a.ID)
}

// order sorts episodes within a group.
func (a Asset) order() int {
	return a.Metadata.Season*1000 + a.Metadata.Episode
}

// assetFromRequest builds the record for a finished transfer.
func assetFromRequest(req download.Request, localPath string, now time.Time) Asset {
	a := Asset{
		ID:           req.ID,
		Name:         req.Title,
		DownloadDate: now,
		OriginalURL:  req.SourceURL,
		LocalPath:    localPath,
		Type:         AssetMovie,
		Metadata:     Metadata{PosterURL: req.ImageURL},
		SubtitleURL:  req.SubtitleURL,
	}
	if req.IsEpisode {
		a.Type = AssetEpisode
		a.Metadata.ShowTitle = req.ShowTitle
		a.Metadata.Season = req.Season
		a.Metadata.Episode = req.Episode
	}
	return a
}

// decodeAssets decodes the persisted collection record by record. A record
// that cannot be decoded is skipped rather than failing the collection, and
// fields older records lack get defaults.
func decodeAssets(data []byte) ([]Asset, int, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, err
	}

	assets := make([]Asset, 0, len(raw))
	skipped := 0
	for _, r := range raw {
		var a Asset
		if err := json.Unmarshal(r, &a); err != nil || a.ID == "" {
			skipped++
			continue
		}
		if a.Type == "" {
			a.Type = AssetMovie
			if a.Metadata.ShowTitle != "" {
				a.Type = AssetEpisode
			}
		}
		if a.Name == "" {
			a.Name = strings.TrimSuffix(filepath.Base(a.LocalPath), filepath.Ext(a.LocalPath))
		}
		assets = append(assets, a)
	}
	return assets, skipped, nil
}
