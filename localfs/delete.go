package localfs

import (
	"fmt"
	"strings"
)

// DeletePaths removes each path; directories are removed recursively.
// Outcomes accumulate per path, and any failure fails the whole call with a
// combined message that still names what was deleted.
func (ws *Workspace) DeletePaths(paths []string) (string, error) {
	if len(paths) == 0 {
		return "", fmt.Errorf("paths list cannot be empty")
	}

	var deleted, errors []string
	for _, path := range paths {
		if err := ws.deleteOne(path); err != nil {
			errors = append(errors, err.Error())
		} else {
			deleted = append(deleted, path)
		}
	}

	if len(errors) > 0 {
		msg := "Some items could not be deleted: " + strings.Join(errors, "; ")
		if len(deleted) > 0 {
			msg += ". Successfully deleted: " + strings.Join(deleted, ", ")
		}
		return "", fmt.Errorf("%s", msg)
	}
	return fmt.Sprintf("Successfully deleted %d item(s): %s", len(deleted), strings.Join(deleted, ", ")), nil
}

func (ws *Workspace) deleteOne(path string) error {
	abs, err := ws.Resolve(path)
	if err != nil {
		return err
	}
	info, err := ws.fs.Stat(abs)
	if err != nil {
		return fmt.Errorf("Path not found: '%s'", path)
	}
	if info.IsDir() {
		if err := ws.fs.RemoveAll(abs); err != nil {
			return fmt.Errorf("Error deleting '%s': %v", path, err)
		}
		return nil
	}
	if err := ws.fs.Remove(abs); err != nil {
		return fmt.Errorf("Error deleting '%s': %v", path, err)
	}
	return nil
}
