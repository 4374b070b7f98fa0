package library

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hbollon/go-edlib"
)

// ReconcileReport summarises a reconciliation pass.
type ReconcileReport struct {
	Migrated         int      `json:"migrated"`
	Kept             int      `json:"kept"`
	Relinked         int      `json:"relinked"`
	Dropped          []string `json:"dropped"`
	SubtitlesCleared int      `json:"subtitles_cleared"`
}

// Reconcile loads the collection and checks it against the filesystem. Files
// in legacy roots are moved into the durable root first. An asset whose file
// is missing is relinked to a file in the root whose name matches, or dropped.
// It runs once at startup.
func (s *Store) Reconcile(ctx context.Context) (ReconcileReport, error) {
	assets, err := s.read(ctx)
	if err != nil {
		return ReconcileReport{}, err
	}

	s.mu.Lock()
	report := s.reconcile(assets)
	err = s.persist(ctx)
	count := len(s.assets)
	s.mu.Unlock()

	s.log.Info("library reconciled",
		"kept", report.Kept, "relinked", report.Relinked,
		"dropped", len(report.Dropped), "migrated", report.Migrated)
	s.changed(count, "reconcile")
	return report, err
}

// reconcile replaces the collection with the checked one. Callers hold s.mu.
func (s *Store) reconcile(assets []Asset) ReconcileReport {
	var report ReconcileReport
	s.sizes.reset()

	if err := os.MkdirAll(s.cfg.Root, 0o755); err != nil {
		s.log.Error("cannot create storage root", "root", s.cfg.Root, "error", err)
	}

	moved := s.migrateLegacy()
	report.Migrated = len(moved)

	claimed := make(map[string]bool, len(assets))
	for i, a := range assets {
		if p, ok := moved[a.LocalPath]; ok {
			a = a.WithLocalPath(p)
		}
		if p, ok := moved[a.LocalSubtitlePath]; ok {
			a = a.WithSubtitle("", p)
		}
		assets[i] = a
		if fileExists(a.LocalPath) {
			claimed[filepath.Clean(a.LocalPath)] = true
		}
	}

	candidates := s.scanRoot(claimed)
	kept := make([]Asset, 0, len(assets))
	for _, a := range assets {
		if fileExists(a.LocalPath) {
			report.Kept++
		} else {
			match := bestMatch(a, candidates)
			if match == "" {
				s.log.Warn("asset file missing, dropping record", "asset_id", a.ID, "path", a.LocalPath)
				report.Dropped = append(report.Dropped, a.ID)
				continue
			}
			s.log.Info("asset relinked", "asset_id", a.ID, "from", a.LocalPath, "to", match)
			a = a.WithLocalPath(match)
			delete(candidates, match)
			report.Relinked++
		}

		if a.LocalSubtitlePath != "" && !fileExists(a.LocalSubtitlePath) {
			a = a.WithSubtitle("", "")
			report.SubtitlesCleared++
		}
		kept = append(kept, a)
	}
	s.assets = kept
	return report
}

// migrateLegacy moves files from legacy roots into the durable root and
// returns old path -> new path.
func (s *Store) migrateLegacy() map[string]string {
	moved := make(map[string]string)
	root := filepath.Clean(s.cfg.Root)

	for _, legacy := range s.cfg.LegacyRoots {
		legacy = filepath.Clean(legacy)
		if legacy == root || legacy == "." {
			continue
		}
		_ = filepath.WalkDir(legacy, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if !errors.Is(err, fs.ErrNotExist) {
					s.log.Warn("legacy scan error", "path", path, "error", err)
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			name := d.Name()
			ext := filepath.Ext(name)
			dst := uniquePath(root, strings.TrimSuffix(name, ext), ext)
			if err := moveFile(path, dst); err != nil {
				s.log.Error("legacy migration failed", "path", path, "error", err)
				return nil
			}
			moved[path] = dst
			return nil
		})
	}
	if len(moved) > 0 {
		s.log.Info("migrated legacy files", "count", len(moved))
	}
	return moved
}

// scanRoot lists unclaimed media files in the durable root.
func (s *Store) scanRoot(claimed map[string]bool) map[string]bool {
	out := make(map[string]bool)
	_ = filepath.WalkDir(s.cfg.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.Type().IsRegular() || IsSubtitleFile(path) {
			return nil
		}
		if !claimed[filepath.Clean(path)] {
			out[path] = true
		}
		return nil
	})
	return out
}

// bestMatch finds the candidate whose name matches the asset's stored file
// name or display name as a prefix or substring. Several matches are ranked by
// Jaro-Winkler similarity.
func bestMatch(a Asset, candidates map[string]bool) string {
	targets := matchTargets(a)
	if len(targets) == 0 {
		return ""
	}

	var (
		best      string
		bestScore float32 = -1
	)
	for path := range candidates {
		stem := strings.ToLower(stemOf(path))
		for _, t := range targets {
			if !strings.Contains(stem, t) {
				continue
			}
			score := edlib.JaroWinklerSimilarity(stem, t)
			if score > bestScore || (score == bestScore && path < best) {
				best, bestScore = path, score
			}
		}
	}
	return best
}

func matchTargets(a Asset) []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range []string{stemOf(a.LocalPath), SanitizeFilename(a.Name)} {
		t = strings.ToLower(strings.TrimSpace(t))
		if len(t) < 3 || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func stemOf(path string) string {
	base := filepath.Base(path)
	if path == "" || base == "." {
		return ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
