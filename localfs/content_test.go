package localfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentFormatRoundTrips(t *testing.T) {
	payloads := [][]byte{
		[]byte("plain ascii"),
		[]byte("tabs\tand\nnewlines\r\nand spaces  "),
		[]byte("unicode: żółć 日本語"),
		{0x00, 0xff, 0x10, 0x80},
		{},
	}
	for _, format := range []ContentFormat{FormatBase64, FormatQuotedPrintable} {
		for _, payload := range payloads {
			encoded, err := encodeContent(payload, format)
			require.NoError(t, err)
			decoded, err := decodeContent(encoded, format)
			require.NoError(t, err)
			assert.Equal(t, payload, decoded, "format %v payload %q", format, payload)
		}
	}
}

func TestEncodeRawRejectsInvalidUTF8(t *testing.T) {
	_, err := encodeContent([]byte{0xff, 0xfe}, FormatRawUTF8)
	var encErr *EncodingError
	assert.ErrorAs(t, err, &encErr)
}

func TestDecodeInvalidBase64(t *testing.T) {
	_, err := decodeContent("not!!!base64", FormatBase64)
	var encErr *EncodingError
	assert.ErrorAs(t, err, &encErr)
}

func TestParseEnums(t *testing.T) {
	kind, err := ParseOffsetKind("LINE")
	require.NoError(t, err)
	assert.Equal(t, OffsetLine, kind)

	kind, err = ParseOffsetKind("byte")
	require.NoError(t, err)
	assert.Equal(t, OffsetByte, kind)

	_, err = ParseOffsetKind("word")
	assert.Error(t, err)

	format, err := ParseContentFormat("quoted-printable")
	require.NoError(t, err)
	assert.Equal(t, FormatQuotedPrintable, format)

	format, err = ParseContentFormat("QUOTED_PRINTABLE")
	require.NoError(t, err)
	assert.Equal(t, FormatQuotedPrintable, format)

	_, err = ParseContentFormat("hex")
	assert.Error(t, err)

	mode, err := ParseFileMode("binary")
	require.NoError(t, err)
	assert.Equal(t, ModeBinary, mode)

	_, err = ParseFileMode("octal")
	assert.Error(t, err)
}

func TestNormalizeLineEndings(t *testing.T) {
	assert.Equal(t, "a\nb\nc\n", normalizeLineEndings("a\r\nb\rc\n"))
	assert.Equal(t, "", normalizeLineEndings(""))
	assert.Equal(t, "\n\n", normalizeLineEndings("\r\n\r"))
}

func TestDecodeArgumentModeFormatPairs(t *testing.T) {
	content, err := decodeArgument("hello", ModeText, FormatRawUTF8)
	require.NoError(t, err)
	assert.True(t, content.IsText)
	assert.Equal(t, "hello", content.Text)

	content, err = decodeArgument("AAECAw==", ModeBinary, FormatBase64)
	require.NoError(t, err)
	assert.False(t, content.IsText)
	assert.Equal(t, []byte{0, 1, 2, 3}, content.Bytes)

	// Binary payload declared as text must be rejected at the boundary.
	_, err = decodeArgument("//79", ModeText, FormatBase64)
	var encErr *EncodingError
	assert.ErrorAs(t, err, &encErr)
}

func TestDropInvalidUTF8(t *testing.T) {
	assert.Equal(t, "ab", dropInvalidUTF8([]byte{'a', 0xff, 'b'}))
	assert.Equal(t, "żó", dropInvalidUTF8([]byte("żó")))
}

func TestFileEncodingLatin1(t *testing.T) {
	// "café" in latin-1 uses a single 0xE9 byte for é.
	latin1 := []byte{'c', 'a', 'f', 0xe9}
	text, err := decodeFileText(latin1, "iso-8859-1", "x.txt")
	require.NoError(t, err)
	assert.Equal(t, "café", text)

	encoded, err := encodeFileText(text, "iso-8859-1", "x.txt")
	require.NoError(t, err)
	assert.Equal(t, latin1, encoded)
}

func TestFileEncodingUnknown(t *testing.T) {
	_, err := decodeFileText([]byte("x"), "klingon-8", "x.txt")
	var encErr *EncodingError
	assert.ErrorAs(t, err, &encErr)
}
