package localfs

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModifyBinaryByteRange(t *testing.T) {
	ws := newTestWorkspace(t)
	writeTestFile(t, ws, "b.bin", []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9})

	newContent := base64.StdEncoding.EncodeToString([]byte{0xff, 0xee})
	msg, err := ws.ModifyFile("b.bin", 2, 4, newContent, OffsetByte, FormatBase64, "utf-8", ModeBinary)
	require.NoError(t, err)
	assert.Contains(t, msg, "Replaced bytes from 2 to 4")
	// The inclusive [2, 4] range covers bytes 2, 3, and 4.
	assert.Equal(t, []byte{0, 1, 0xff, 0xee, 5, 6, 7, 8, 9}, readBack(t, ws, "b.bin"))
}

func TestModifyBinaryThroughEnd(t *testing.T) {
	ws := newTestWorkspace(t)
	writeTestFile(t, ws, "b.bin", []byte{1, 2, 3, 4})

	newContent := base64.StdEncoding.EncodeToString([]byte{9})
	msg, err := ws.ModifyFile("b.bin", 2, -1, newContent, OffsetByte, FormatBase64, "utf-8", ModeBinary)
	require.NoError(t, err)
	assert.Contains(t, msg, "end of file")
	assert.Equal(t, []byte{1, 2, 9}, readBack(t, ws, "b.bin"))
}

func TestModifyBinaryRejectsLineOffsets(t *testing.T) {
	ws := newTestWorkspace(t)
	writeTestFile(t, ws, "b.bin", []byte{1, 2, 3})

	_, err := ws.ModifyFile("b.bin", 0, 1, "AA==", OffsetLine, FormatBase64, "utf-8", ModeBinary)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not supported for binary files")
}

func TestModifyTextLines(t *testing.T) {
	ws := newTestWorkspace(t)
	writeTestFile(t, ws, "a.txt", []byte("one\ntwo\nthree\nfour\n"))

	msg, err := ws.ModifyFile("a.txt", 1, 2, "TWO\nTHREE\n", OffsetLine, FormatRawUTF8, "utf-8", ModeText)
	require.NoError(t, err)
	assert.Equal(t, "one\nTWO\nTHREE\nfour\n", string(readBack(t, ws, "a.txt")))
	assert.Contains(t, msg, "Diff:")
	assert.Contains(t, msg, "-two")
	assert.Contains(t, msg, "+TWO")
}

func TestModifyTextLinesThroughEnd(t *testing.T) {
	ws := newTestWorkspace(t)
	writeTestFile(t, ws, "a.txt", []byte("keep\ndrop\ndrop\n"))

	_, err := ws.ModifyFile("a.txt", 1, -1, "tail\n", OffsetLine, FormatRawUTF8, "utf-8", ModeText)
	require.NoError(t, err)
	assert.Equal(t, "keep\ntail\n", string(readBack(t, ws, "a.txt")))
}

func TestModifyTextChars(t *testing.T) {
	ws := newTestWorkspace(t)
	writeTestFile(t, ws, "a.txt", []byte("abcdef"))

	_, err := ws.ModifyFile("a.txt", 2, 3, "XY", OffsetChar, FormatRawUTF8, "utf-8", ModeText)
	require.NoError(t, err)
	assert.Equal(t, "abXYef", string(readBack(t, ws, "a.txt")))
}

func TestModifyTextBytes(t *testing.T) {
	ws := newTestWorkspace(t)
	writeTestFile(t, ws, "a.txt", []byte("abcdef"))

	_, err := ws.ModifyFile("a.txt", 0, 2, "Z", OffsetByte, FormatRawUTF8, "utf-8", ModeText)
	require.NoError(t, err)
	assert.Equal(t, "Zdef", string(readBack(t, ws, "a.txt")))
}

func TestModifyMissingFile(t *testing.T) {
	ws := newTestWorkspace(t)
	_, err := ws.ModifyFile("nope.txt", 0, 1, "x", OffsetLine, FormatRawUTF8, "utf-8", ModeText)
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestModifyFailedValidationLeavesFileIntact(t *testing.T) {
	types := FileTypes{".txt": {Extension: ".txt", ValidationCommand: "check <file>"}}
	ws := newTestWorkspace(t, WithValidator(stubValidator(t, types, rejectRun)))
	writeTestFile(t, ws, "a.txt", []byte("pristine\n"))

	_, err := ws.ModifyFile("a.txt", 0, 0, "tainted\n", OffsetLine, FormatRawUTF8, "utf-8", ModeText)
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "pristine\n", string(readBack(t, ws, "a.txt")))
}
