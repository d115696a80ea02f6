package localfs

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// Tree connectors for directory listings.
const (
	connectorMid  = "├───"
	connectorLast = "└───"
	prefixPipe    = "│   "
	prefixBlank   = "    "
)

// ListDir renders an ASCII tree of the directory at path. Directories sort
// before files, names ascending case-insensitively. A recursive listing that
// would exceed limit lines is cut off with a trailing truncation marker.
func (ws *Workspace) ListDir(path string, limit int, recursive bool) (string, error) {
	abs, err := ws.Resolve(path)
	if err != nil {
		return "", err
	}
	info, err := ws.fs.Stat(abs)
	if err != nil {
		return "", &NotFoundError{Path: path}
	}
	if !info.IsDir() {
		return "", &WrongKindError{Path: path, Want: "directory"}
	}
	if limit <= 0 {
		limit = 100
	}

	if recursive {
		return ws.listRecursive(abs, limit)
	}
	return ws.listFlat(abs, limit)
}

func (ws *Workspace) listFlat(dir string, limit int) (string, error) {
	entries, err := ws.sortedEntries(dir)
	if err != nil {
		return "", err
	}
	var lines []string
	for i, entry := range entries {
		if len(lines) >= limit {
			break
		}
		connector := connectorMid
		if i == len(entries)-1 {
			connector = connectorLast
		}
		lines = append(lines, connector+entry.Name())
	}
	return strings.Join(lines, "\n"), nil
}

func (ws *Workspace) listRecursive(dir string, limit int) (string, error) {
	var lines []string
	truncated := false

	var walk func(dir, prefix string) error
	walk = func(dir, prefix string) error {
		if len(lines) >= limit {
			truncated = true
			return nil
		}
		entries, err := ws.sortedEntries(dir)
		if err != nil {
			return err
		}
		for i, entry := range entries {
			if len(lines) >= limit {
				truncated = true
				return nil
			}
			last := i == len(entries)-1
			connector := connectorMid
			childPrefix := prefix + prefixPipe
			if last {
				connector = connectorLast
				childPrefix = prefix + prefixBlank
			}
			lines = append(lines, prefix+connector+entry.Name())
			if entry.IsDir() {
				if err := walk(dir+"/"+entry.Name(), childPrefix); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(dir, ""); err != nil {
		return "", err
	}
	if truncated {
		lines = append(lines, "... (list truncated)")
	}
	return strings.Join(lines, "\n"), nil
}

func (ws *Workspace) sortedEntries(dir string) ([]fs.FileInfo, error) {
	entries, err := afero.ReadDir(ws.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("localfs: read dir '%s': %w", dir, err)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsDir() != entries[j].IsDir() {
			return entries[i].IsDir()
		}
		return strings.ToLower(entries[i].Name()) < strings.ToLower(entries[j].Name())
	})
	return entries, nil
}

// CreateDirs creates path and any missing parents. Creating an existing
// directory succeeds idempotently; an existing non-directory fails.
func (ws *Workspace) CreateDirs(path string) (string, error) {
	abs, err := ws.Resolve(path)
	if err != nil {
		return "", err
	}
	if info, err := ws.fs.Stat(abs); err == nil {
		if info.IsDir() {
			return fmt.Sprintf("Directory already exists: '%s'", path), nil
		}
		return "", &WrongKindError{Path: path, Want: "directory"}
	}
	if err := ws.fs.MkdirAll(abs, 0o755); err != nil {
		return "", fmt.Errorf("localfs: create directory '%s': %w", path, err)
	}
	return fmt.Sprintf("Successfully created directory: '%s'", path), nil
}
