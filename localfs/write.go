package localfs

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// WriteToFile decodes newContent per (mode, inputFormat) and writes it to
// path through the staged-mutation protocol, creating missing parent
// directories. Text writes report character/line counts and a unified diff
// against the prior content; binary writes report the byte count.
func (ws *Workspace) WriteToFile(path, newContent string, mode FileMode, inputFormat ContentFormat, fileEncoding string) (string, error) {
	abs, err := ws.Resolve(path)
	if err != nil {
		return "", err
	}
	content, err := decodeArgument(newContent, mode, inputFormat)
	if err != nil {
		return "", err
	}

	var data []byte
	if mode == ModeBinary {
		data = content.Bytes
	} else {
		if data, err = encodeFileText(content.Text, fileEncoding, path); err != nil {
			return "", err
		}
	}

	var original *string
	if raw, err := afero.ReadFile(ws.fs, abs); err == nil {
		if mode == ModeText && utf8.Valid(raw) {
			s := string(raw)
			original = &s
		}
	} else if exists, _ := afero.Exists(ws.fs, abs); exists {
		ws.log.Warn("could not read existing file for diff", zap.String("path", abs), zap.Error(err))
	}

	if dir := filepath.Dir(abs); dir != "" {
		if err := ws.fs.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("Failed to create parent directory '%s': %w", dir, err)
		}
	}

	if err := ws.applyStaged("write", abs, path, data); err != nil {
		return "", err
	}

	if mode == ModeBinary {
		return fmt.Sprintf("Successfully wrote binary content to '%s' (%d bytes).", path, len(data)), nil
	}

	chars := len([]rune(content.Text))
	lines := strings.Count(content.Text, "\n") + 1
	message := fmt.Sprintf("Successfully wrote text content to '%s' (%d characters, %d lines).", path, chars, lines)
	if original != nil {
		message += "\n\nDiff:\n" + generateDiff(*original, content.Text, path)
	}
	return message, nil
}
