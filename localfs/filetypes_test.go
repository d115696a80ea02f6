package localfs

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultFileTypes(t *testing.T) {
	types, err := DefaultFileTypes()
	require.NoError(t, err)

	py, ok := types[".py"]
	require.True(t, ok)
	assert.Contains(t, py.ValidationCommand, "<file>")

	md, ok := types[".md"]
	require.True(t, ok)
	assert.Equal(t, "none", md.ValidationCommand)
}

func TestLoadFileTypesFromCSV(t *testing.T) {
	fsys := afero.NewMemMapFs()
	csv := "extension,type,description,mime_type,validation_command\n" +
		".rs,text,Rust source,text/x-rust,rustc --emit=metadata <file>\n" +
		".toml,text,TOML document,application/toml,none\n"
	require.NoError(t, afero.WriteFile(fsys, "/types.csv", []byte(csv), 0o644))

	types, err := LoadFileTypes(fsys, "/types.csv")
	require.NoError(t, err)
	require.Len(t, types, 2)
	assert.Equal(t, "rustc --emit=metadata <file>", types[".rs"].ValidationCommand)
	assert.Equal(t, "application/toml", types[".toml"].MimeType)
}

func TestLoadFileTypesMissingColumns(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/bad.csv", []byte("a,b\n1,2\n"), 0o644))

	_, err := LoadFileTypes(fsys, "/bad.csv")
	assert.Error(t, err)
}

func TestLoadFileTypesMissingFile(t *testing.T) {
	_, err := LoadFileTypes(afero.NewMemMapFs(), "/nowhere.csv")
	assert.Error(t, err)
}
