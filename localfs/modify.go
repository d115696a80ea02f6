package localfs

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
)

// ModifyFile replaces the inclusive [start, end] range of the file (in line,
// char, or byte units) with the decoded newContent, through the staged
// protocol. Binary mode supports byte offsets only.
func (ws *Workspace) ModifyFile(path string, start, end int, newContent string, kind OffsetKind, inputFormat ContentFormat, fileEncoding string, mode FileMode) (string, error) {
	abs, err := ws.Resolve(path)
	if err != nil {
		return "", err
	}
	info, err := ws.fs.Stat(abs)
	if err != nil {
		return "", &NotFoundError{Path: path}
	}
	if info.IsDir() {
		return "", &WrongKindError{Path: path, Want: "file"}
	}
	if start < 0 {
		return "", fmt.Errorf("start_offset_inclusive must be >= 0, got %d", start)
	}

	content, err := decodeArgument(newContent, mode, inputFormat)
	if err != nil {
		return "", err
	}
	raw, err := afero.ReadFile(ws.fs, abs)
	if err != nil {
		return "", classifyFsError(err, path)
	}

	if mode == ModeBinary {
		if kind != OffsetByte {
			return "", fmt.Errorf("Offset type %s not supported for binary files", strings.ToUpper(kind.String()))
		}
		lo, hi := boundRange(len(raw), start, end)
		modified := make([]byte, 0, len(raw)+len(content.Bytes))
		modified = append(modified, raw[:lo]...)
		modified = append(modified, content.Bytes...)
		modified = append(modified, raw[hi:]...)
		if err := ws.applyStaged("modify", abs, path, modified); err != nil {
			return "", err
		}
		endLabel := fmt.Sprintf("%d", end)
		if end == -1 {
			endLabel = "end of file"
		}
		return fmt.Sprintf("Successfully modified binary file '%s'. Replaced bytes from %d to %s.", path, start, endLabel), nil
	}

	original, err := decodeFileText(raw, fileEncoding, path)
	if err != nil {
		return "", err
	}

	var modified string
	switch kind {
	case OffsetLine:
		lines := splitLinesKeep(original)
		lo, hi := boundRange(len(lines), start, end)
		var b strings.Builder
		b.WriteString(strings.Join(lines[:lo], ""))
		b.WriteString(content.Text)
		b.WriteString(strings.Join(lines[hi:], ""))
		modified = b.String()
	case OffsetChar:
		runes := []rune(original)
		lo, hi := boundRange(len(runes), start, end)
		modified = string(runes[:lo]) + content.Text + string(runes[hi:])
	case OffsetByte:
		encoded, err := encodeFileText(original, fileEncoding, path)
		if err != nil {
			return "", err
		}
		newBytes, err := encodeFileText(content.Text, fileEncoding, path)
		if err != nil {
			return "", err
		}
		lo, hi := boundRange(len(encoded), start, end)
		joined := append(append(append([]byte{}, encoded[:lo]...), newBytes...), encoded[hi:]...)
		if modified, err = decodeFileText(joined, fileEncoding, path); err != nil {
			return "", err
		}
	}

	data, err := encodeFileText(modified, fileEncoding, path)
	if err != nil {
		return "", err
	}
	if err := ws.applyStaged("modify", abs, path, data); err != nil {
		return "", err
	}
	return fmt.Sprintf("Successfully modified text file '%s'.\n\nDiff:\n%s", path, generateDiff(original, modified, path)), nil
}
