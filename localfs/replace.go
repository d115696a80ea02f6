package localfs

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/afero"
)

// ReplaceInFile replaces occurrences of oldContent with newContent in the
// file, through the staged protocol. A negative occurrence count replaces
// all; with isRegex, oldContent is a regular expression. Text mode
// normalizes line endings in both the file and the arguments before
// matching.
func (ws *Workspace) ReplaceInFile(path, oldContent, newContent string, occurrences int, isRegex bool, mode FileMode, inputFormat ContentFormat, fileEncoding string) (string, error) {
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

	oldArg, err := decodeArgument(oldContent, mode, inputFormat)
	if err != nil {
		return "", err
	}
	newArg, err := decodeArgument(newContent, mode, inputFormat)
	if err != nil {
		return "", err
	}
	raw, err := afero.ReadFile(ws.fs, abs)
	if err != nil {
		return "", classifyFsError(err, path)
	}

	if mode == ModeBinary {
		modified, made, err := replaceBytes(raw, oldArg.Bytes, newArg.Bytes, occurrences, isRegex)
		if err != nil {
			return "", err
		}
		if err := ws.applyStaged("replace", abs, path, modified); err != nil {
			return "", err
		}
		return fmt.Sprintf("Successfully replaced %d occurrence(s) in binary file '%s'.", made, path), nil
	}

	original, err := decodeFileText(raw, fileEncoding, path)
	if err != nil {
		return "", err
	}
	normalized := normalizeLineEndings(original)
	oldText := normalizeLineEndings(oldArg.Text)
	newText := normalizeLineEndings(newArg.Text)

	var modified string
	var made int
	if isRegex {
		re, err := regexp.Compile(oldText)
		if err != nil {
			return "", &RegexError{Pattern: oldText, Err: err}
		}
		modified, made = replaceRegexString(re, normalized, newText, occurrences)
	} else {
		total := strings.Count(normalized, oldText)
		limit := occurrences
		if limit < 0 || limit > total {
			limit = total
		}
		modified = strings.Replace(normalized, oldText, newText, limit)
		made = limit
	}

	data, err := encodeFileText(modified, fileEncoding, path)
	if err != nil {
		return "", err
	}
	if err := ws.applyStaged("replace", abs, path, data); err != nil {
		return "", err
	}
	return fmt.Sprintf("Successfully replaced %d occurrence(s) in text file '%s'.\n\nDiff:\n%s",
		made, path, generateDiff(original, modified, path)), nil
}

// replaceRegexString is ReplaceAllString with an occurrence cap, reporting
// how many replacements were made. Replacement templates use the package
// regexp expansion syntax ($1, ${name}).
func replaceRegexString(re *regexp.Regexp, src, repl string, n int) (string, int) {
	matches := re.FindAllStringSubmatchIndex(src, -1)
	if n >= 0 && n < len(matches) {
		matches = matches[:n]
	}
	if len(matches) == 0 {
		return src, 0
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(src[last:m[0]])
		b.WriteString(string(re.ExpandString(nil, repl, src, m)))
		last = m[1]
	}
	b.WriteString(src[last:])
	return b.String(), len(matches)
}

func replaceBytes(src, old, repl []byte, n int, isRegex bool) ([]byte, int, error) {
	if isRegex {
		re, err := regexp.Compile(string(old))
		if err != nil {
			return nil, 0, &RegexError{Pattern: string(old), Err: err}
		}
		matches := re.FindAllSubmatchIndex(src, -1)
		if n >= 0 && n < len(matches) {
			matches = matches[:n]
		}
		if len(matches) == 0 {
			return src, 0, nil
		}
		var out []byte
		last := 0
		for _, m := range matches {
			out = append(out, src[last:m[0]]...)
			out = re.Expand(out, repl, src, m)
			last = m[1]
		}
		out = append(out, src[last:]...)
		return out, len(matches), nil
	}

	total := bytes.Count(src, old)
	limit := n
	if limit < 0 || limit > total {
		limit = total
	}
	return bytes.Replace(src, old, repl, limit), limit, nil
}
