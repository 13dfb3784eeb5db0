// Package inventory discovers CBCT study directories on disk.
package inventory

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DefaultExtensions are the file extensions that indicate CT image slices.
var DefaultExtensions = []string{".dcm", ".ima"}

var (
	// ErrRootNotFound is returned when the scan root does not exist.
	ErrRootNotFound = errors.New("root directory does not exist")
	// ErrNotDirectory is returned when the scan root is not a directory.
	ErrNotDirectory = errors.New("root path is not a directory")
)

// StudyRecord represents a single discovered CBCT study directory.
type StudyRecord struct {
	// Path is the absolute path to the study directory.
	Path string `json:"path"`
	// RelativePath locates the study relative to the scan root and acts as
	// the stable identity key during export deduplication.
	RelativePath string `json:"relative_path"`
	// FileCount is the number of matching image files in the directory.
	FileCount int `json:"file_count"`
	// Extensions holds the distinct matched extensions, sorted.
	Extensions []string `json:"extensions"`
}

// StudyInventory is the collection of all studies discovered during a scan.
type StudyInventory struct {
	Root        string        `json:"root"`
	GeneratedAt time.Time     `json:"generated_at"`
	Studies     []StudyRecord `json:"studies"`
}

// StudyCount returns the number of discovered studies.
func (inv *StudyInventory) StudyCount() int {
	return len(inv.Studies)
}

type inventoryJSON struct {
	Root        string        `json:"root"`
	GeneratedAt time.Time     `json:"generated_at"`
	StudyCount  int           `json:"study_count"`
	Studies     []StudyRecord `json:"studies"`
}

// MarshalJSON includes the derived study_count alongside the stored fields.
func (inv StudyInventory) MarshalJSON() ([]byte, error) {
	return json.Marshal(inventoryJSON{
		Root:        inv.Root,
		GeneratedAt: inv.GeneratedAt,
		StudyCount:  len(inv.Studies),
		Studies:     inv.Studies,
	})
}

// UnmarshalJSON accepts the serialized form, ignoring the derived count.
func (inv *StudyInventory) UnmarshalJSON(data []byte) error {
	var raw inventoryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	inv.Root = raw.Root
	inv.GeneratedAt = raw.GeneratedAt
	inv.Studies = raw.Studies
	return nil
}

// ToJSON renders the inventory as indented JSON.
func (inv *StudyInventory) ToJSON() (string, error) {
	out, err := json.MarshalIndent(inv, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Options configures a scan.
type Options struct {
	// Extensions to treat as image slices. Defaults to DefaultExtensions.
	Extensions []string
	// FollowSymlinks descends into symlinked directories. The walk does not
	// add cycle detection, so a symlink loop will not terminate.
	FollowSymlinks bool
	Logger         *slog.Logger
}

// NormalizeExtensions lowercases extensions and ensures each has a leading
// dot, dropping empty entries. An empty result falls back to the defaults.
func NormalizeExtensions(raw []string) []string {
	var out []string
	for _, ext := range raw {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" || ext == "." {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	if len(out) == 0 {
		return append([]string(nil), DefaultExtensions...)
	}
	return out
}

// Scan walks root for CBCT studies and returns a populated inventory.
//
// A directory containing at least one file with a matching extension becomes
// a StudyRecord and its subtree is pruned: nested folders are assumed to be
// redundant copies of the same study rather than independent studies.
func Scan(root string, opts Options) (*StudyInventory, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rootPath, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	info, err := os.Stat(rootPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRootNotFound, rootPath)
		}
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, rootPath)
	}

	extensions := make(map[string]struct{})
	for _, ext := range opts.Extensions {
		extensions[strings.ToLower(ext)] = struct{}{}
	}
	if len(extensions) == 0 {
		for _, ext := range DefaultExtensions {
			extensions[ext] = struct{}{}
		}
	}

	logger.Info("scanning for CBCT studies", "root", rootPath)

	scanner := &scanner{
		root:           rootPath,
		extensions:     extensions,
		followSymlinks: opts.FollowSymlinks,
		logger:         logger,
	}
	scanner.walk(rootPath)

	logger.Info("scan complete", "studies", len(scanner.studies))

	return &StudyInventory{
		Root:        rootPath,
		GeneratedAt: time.Now().UTC(),
		Studies:     scanner.studies,
	}, nil
}

type scanner struct {
	root           string
	extensions     map[string]struct{}
	followSymlinks bool
	logger         *slog.Logger
	studies        []StudyRecord
}

// walk visits dir top-down in os.ReadDir's lexical order, which keeps the
// resulting inventory deterministic for a fixed filesystem state.
func (s *scanner) walk(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.logger.Warn("skipping unreadable directory", "path", dir, "error", err)
		return
	}

	matched := 0
	seen := make(map[string]struct{})
	var subdirs []string

	for _, entry := range entries {
		name := entry.Name()
		path := filepath.Join(dir, name)

		isDir := entry.IsDir()
		if entry.Type()&fs.ModeSymlink != 0 {
			target, err := os.Stat(path)
			if err != nil {
				continue
			}
			if target.IsDir() {
				if !s.followSymlinks {
					continue
				}
				isDir = true
			}
		}

		if isDir {
			subdirs = append(subdirs, path)
			continue
		}

		ext := strings.ToLower(filepath.Ext(name))
		if _, ok := s.extensions[ext]; ok {
			matched++
			seen[ext] = struct{}{}
		}
	}

	if matched > 0 {
		rel, err := filepath.Rel(s.root, dir)
		if err != nil {
			rel = dir
		}
		exts := make([]string, 0, len(seen))
		for ext := range seen {
			exts = append(exts, ext)
		}
		sort.Strings(exts)
		s.logger.Debug("found study directory", "path", dir, "files", matched)
		s.studies = append(s.studies, StudyRecord{
			Path:         dir,
			RelativePath: rel,
			FileCount:    matched,
			Extensions:   exts,
		})
		// Prune: nested directories of an identified study are not
		// independent studies.
		return
	}

	for _, sub := range subdirs {
		s.walk(sub)
	}
}
