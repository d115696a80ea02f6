package localfs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// classifyFsError maps raw filesystem errors onto the tool error taxonomy.
func classifyFsError(err error, path string) error {
	switch {
	case os.IsNotExist(err):
		return &NotFoundError{Path: path}
	case os.IsPermission(err):
		return fmt.Errorf("Permission denied: cannot access '%s': %w", path, err)
	default:
		return fmt.Errorf("OS error on '%s': %w", path, err)
	}
}

// applyStaged is the write-to-temp, validate, replace protocol every
// mutating tool goes through. The proposed bytes land in a sibling temp file
// inside the root, the extension's validator (if any) judges them, and only
// then does the target get overwritten in place (a plain write, not a
// rename, so the overwrite itself is not atomic). The temp file is removed on every
// exit path, and the target keeps its prior mode.
func (ws *Workspace) applyStaged(op, target, reportPath string, data []byte) error {
	tmp := filepath.Join(ws.root, "temp_"+op+"_"+filepath.Base(target))
	if err := afero.WriteFile(ws.fs, tmp, data, 0o644); err != nil {
		return classifyFsError(err, tmp)
	}
	defer func() {
		if err := ws.fs.Remove(tmp); err != nil && !os.IsNotExist(err) {
			ws.log.Warn("failed to remove temp file", zap.String("path", tmp), zap.Error(err))
		}
	}()

	if ws.validator != nil && ws.isTextFile(tmp) {
		if err := ws.validator.Validate(tmp, reportPath); err != nil {
			return err
		}
	}

	mode := fs.FileMode(0o644)
	if info, err := ws.fs.Stat(target); err == nil {
		mode = info.Mode().Perm()
	}
	if err := afero.WriteFile(ws.fs, target, data, mode); err != nil {
		return classifyFsError(err, reportPath)
	}
	// WriteFile only applies the mode on creation; keep an existing target's
	// permissions in sync with what we report.
	if err := ws.fs.Chmod(target, mode); err != nil {
		ws.log.Warn("failed to preserve file mode", zap.String("path", target), zap.Error(err))
	}
	return nil
}
