package localfs

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime/quotedprintable"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// OffsetKind selects how read/modify offsets are interpreted.
type OffsetKind int

const (
	OffsetLine OffsetKind = iota
	OffsetChar
	OffsetByte
)

// ParseOffsetKind maps the wire spelling ("line", "char", "byte") to an
// OffsetKind.
func ParseOffsetKind(s string) (OffsetKind, error) {
	switch strings.ToLower(s) {
	case "line":
		return OffsetLine, nil
	case "char":
		return OffsetChar, nil
	case "byte":
		return OffsetByte, nil
	default:
		return 0, fmt.Errorf("unsupported offset type: %q", s)
	}
}

func (k OffsetKind) String() string {
	switch k {
	case OffsetLine:
		return "line"
	case OffsetChar:
		return "char"
	default:
		return "byte"
	}
}

// ContentFormat selects the transfer encoding of tool content arguments and
// results.
type ContentFormat int

const (
	FormatRawUTF8 ContentFormat = iota
	FormatBase64
	FormatQuotedPrintable
)

// ParseContentFormat maps the wire spelling ("raw_utf8", "base64",
// "quoted-printable") to a ContentFormat.
func ParseContentFormat(s string) (ContentFormat, error) {
	switch strings.ReplaceAll(strings.ToLower(s), "-", "_") {
	case "raw_utf8":
		return FormatRawUTF8, nil
	case "base64":
		return FormatBase64, nil
	case "quoted_printable":
		return FormatQuotedPrintable, nil
	default:
		return 0, fmt.Errorf("unsupported content format: %q", s)
	}
}

// FileMode selects text or binary handling for mutating tools.
type FileMode int

const (
	ModeText FileMode = iota
	ModeBinary
)

// ParseFileMode maps "text" or "binary" to a FileMode.
func ParseFileMode(s string) (FileMode, error) {
	switch strings.ToLower(s) {
	case "text":
		return ModeText, nil
	case "binary":
		return ModeBinary, nil
	default:
		return 0, fmt.Errorf("unsupported mode: %q", s)
	}
}

func (m FileMode) String() string {
	if m == ModeBinary {
		return "binary"
	}
	return "text"
}

// encodeContent renders raw bytes in the requested transfer encoding.
// RAW_UTF8 requires the bytes to already be valid UTF-8.
func encodeContent(data []byte, format ContentFormat) (string, error) {
	switch format {
	case FormatBase64:
		return base64.StdEncoding.EncodeToString(data), nil
	case FormatQuotedPrintable:
		var buf bytes.Buffer
		w := quotedprintable.NewWriter(&buf)
		w.Binary = true
		if _, err := w.Write(data); err != nil {
			return "", &EncodingError{Detail: err.Error()}
		}
		if err := w.Close(); err != nil {
			return "", &EncodingError{Detail: err.Error()}
		}
		return buf.String(), nil
	case FormatRawUTF8:
		if !utf8.Valid(data) {
			return "", &EncodingError{Detail: "content is not valid UTF-8"}
		}
		return string(data), nil
	default:
		return "", &EncodingError{Detail: fmt.Sprintf("unsupported output format %d", format)}
	}
}

// decodeContent reverses encodeContent.
func decodeContent(s string, format ContentFormat) ([]byte, error) {
	switch format {
	case FormatBase64:
		data, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, &EncodingError{Detail: "invalid base64 content: " + err.Error()}
		}
		return data, nil
	case FormatQuotedPrintable:
		data, err := io.ReadAll(quotedprintable.NewReader(strings.NewReader(s)))
		if err != nil {
			return nil, &EncodingError{Detail: "invalid quoted-printable content: " + err.Error()}
		}
		return data, nil
	case FormatRawUTF8:
		return []byte(s), nil
	default:
		return nil, &EncodingError{Detail: fmt.Sprintf("unsupported input format %d", format)}
	}
}

// Content is decoded tool input: text for text-mode tools, raw bytes for
// binary-mode tools. Exactly one side is meaningful, selected by IsText.
type Content struct {
	IsText bool
	Text   string
	Bytes  []byte
}

// decodeArgument decodes a content argument according to the (mode,
// input_format) pair. Mismatched pairs fail here, at the boundary.
func decodeArgument(raw string, mode FileMode, format ContentFormat) (Content, error) {
	data, err := decodeContent(raw, format)
	if err != nil {
		return Content{}, err
	}
	if mode == ModeBinary {
		return Content{Bytes: data}, nil
	}
	if !utf8.Valid(data) {
		return Content{}, &EncodingError{Detail: "decoded content is not valid UTF-8 text"}
	}
	return Content{IsText: true, Text: string(data)}, nil
}

// normalizeLineEndings maps every \r\n and bare \r to \n.
func normalizeLineEndings(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// dropInvalidUTF8 removes bytes that do not form valid UTF-8 sequences,
// mirroring a decode with errors ignored.
func dropInvalidUTF8(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	var b strings.Builder
	b.Grow(len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r != utf8.RuneError || size > 1 {
			b.WriteRune(r)
		}
		data = data[size:]
	}
	return b.String()
}

// resolveTextEncoding looks up a file encoding by its IANA/HTML name.
// UTF-8 is handled without a transform so strict validation stays in our
// hands.
func resolveTextEncoding(name string) (encoding.Encoding, bool, error) {
	canonical := strings.ReplaceAll(strings.ToLower(name), "_", "-")
	if canonical == "" || canonical == "utf-8" || canonical == "utf8" {
		return nil, true, nil
	}
	enc, err := htmlindex.Get(canonical)
	if err != nil {
		return nil, false, &EncodingError{Detail: fmt.Sprintf("unknown file encoding %q", name)}
	}
	return enc, false, nil
}

// decodeFileText turns file bytes into a string using the named encoding.
func decodeFileText(data []byte, fileEncoding, path string) (string, error) {
	enc, isUTF8, err := resolveTextEncoding(fileEncoding)
	if err != nil {
		return "", err
	}
	if isUTF8 {
		if !utf8.Valid(data) {
			return "", &EncodingError{Path: path, Detail: fmt.Sprintf("content is not valid %s", fileEncoding)}
		}
		return string(data), nil
	}
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", &EncodingError{Path: path, Detail: err.Error()}
	}
	return string(decoded), nil
}

// encodeFileText turns a string into file bytes using the named encoding.
func encodeFileText(text, fileEncoding, path string) ([]byte, error) {
	enc, isUTF8, err := resolveTextEncoding(fileEncoding)
	if err != nil {
		return nil, err
	}
	if isUTF8 {
		return []byte(text), nil
	}
	encoded, err := enc.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return nil, &EncodingError{Path: path, Detail: err.Error()}
	}
	return encoded, nil
}
