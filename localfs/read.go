package localfs

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// ReadFromFile reads a slice of a file selected by the offset pair and
// returns it in the requested output format.
//
// Files are classified by extension into image, binary, and text kinds; a
// text-kind file whose content sniffs as binary is treated as binary. Images
// are read whole and re-encoded. Non-text binaries requested as RAW_UTF8
// come back as the raw bytes untouched; under any other output format they
// require BYTE offsets. Text is line-ending-normalized before indexing, and
// non-raw output is rendered as 1-indexed numbered lines.
func (ws *Workspace) ReadFromFile(path string, start, end int, kind OffsetKind, fileEncoding string, output ContentFormat) (string, error) {
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
	if info.Size() > ws.maxFileSize {
		return "", &CapacityError{Path: path, Size: info.Size(), Max: ws.maxFileSize}
	}
	if start < 0 {
		return "", fmt.Errorf("start_offset_inclusive must be >= 0, got %d", start)
	}
	if end < -1 {
		return "", fmt.Errorf("end_offset_inclusive must be >= -1, got %d", end)
	}

	fk := kindOf(abs)
	if fk == kindText && !ws.isTextFile(abs) {
		fk = kindBinary
		kind = OffsetByte
	}
	ws.log.Debug("reading file",
		zap.String("path", abs),
		zap.Int("start", start),
		zap.Int("end", end),
		zap.String("offset_type", kind.String()))

	data, err := afero.ReadFile(ws.fs, abs)
	if err != nil {
		return "", classifyFsError(err, path)
	}

	switch fk {
	case kindImage:
		return encodeContent(data, output)
	case kindBinary:
		if output == FormatRawUTF8 {
			// Raw bytes pass through untouched; callers asked for the file
			// as-is.
			return string(data), nil
		}
		if kind != OffsetByte {
			return "", fmt.Errorf("Offset type %s not supported for binary files", strings.ToUpper(kind.String()))
		}
		return encodeContent(sliceBytes(data, start, end), output)
	default:
		return ws.readText(data, path, start, end, kind, fileEncoding, output)
	}
}

func (ws *Workspace) readText(raw []byte, path string, start, end int, kind OffsetKind, fileEncoding string, output ContentFormat) (string, error) {
	text, err := decodeFileText(raw, fileEncoding, path)
	if err != nil {
		return "", err
	}
	normalized := normalizeLineEndings(text)

	var lines []string
	startLine := 1

	switch kind {
	case OffsetLine:
		all := splitLinesKeep(normalized)
		lines = sliceLines(all, start, end)
		startLine = start + 1
	case OffsetChar:
		runes := []rune(normalized)
		lo, hi := boundRange(len(runes), start, end)
		lines = splitLinesKeep(string(runes[lo:hi]))
		prefix := string(runes[:minInt(start, len(runes))])
		startLine = strings.Count(prefix, "\n") + 1
	case OffsetByte:
		seg := dropInvalidUTF8(sliceBytes(raw, start, end))
		lines = splitLinesKeep(normalizeLineEndings(seg))
		prefix := dropInvalidUTF8(raw[:minInt(start, len(raw))])
		startLine = strings.Count(normalizeLineEndings(prefix), "\n") + 1
	}

	if output == FormatRawUTF8 {
		return strings.Join(lines, ""), nil
	}

	numbered := make([]string, len(lines))
	for i, line := range lines {
		numbered[i] = fmt.Sprintf("%4d | %s", startLine+i, strings.TrimSuffix(line, "\n"))
	}
	return encodeContent([]byte(strings.Join(numbered, "\n")), output)
}

// splitLinesKeep splits on \n keeping the terminators, with no phantom empty
// line after a trailing newline.
func splitLinesKeep(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.SplitAfter(s, "\n")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

func sliceLines(lines []string, start, end int) []string {
	lo, hi := boundRange(len(lines), start, end)
	return lines[lo:hi]
}

func sliceBytes(data []byte, start, end int) []byte {
	lo, hi := boundRange(len(data), start, end)
	return data[lo:hi]
}

// boundRange clamps an inclusive [start, end] pair (-1 meaning "through
// end") into slice bounds.
func boundRange(n, start, end int) (int, int) {
	hi := n
	if end != -1 {
		hi = minInt(end+1, n)
	}
	lo := minInt(start, n)
	if lo > hi {
		hi = lo
	}
	return lo, hi
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
