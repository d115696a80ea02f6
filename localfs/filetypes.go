package localfs

import (
	"bytes"
	"embed"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"
)

//go:embed filetypes.csv
var defaultFileTypesCSV embed.FS

// FileType describes one extension's handling: its broad kind, mime type,
// and the external command that vets proposed content. A validation command
// of "none" disables validation for the extension.
type FileType struct {
	Extension         string
	Kind              string
	Description       string
	MimeType          string
	ValidationCommand string
}

// FileTypes maps a lowercase extension (with leading dot) to its entry.
type FileTypes map[string]FileType

// DefaultFileTypes returns the table embedded in the binary.
func DefaultFileTypes() (FileTypes, error) {
	data, err := defaultFileTypesCSV.ReadFile("filetypes.csv")
	if err != nil {
		return nil, err
	}
	return parseFileTypes(bytes.NewReader(data))
}

// LoadFileTypes reads an extension table from a CSV file with columns
// extension, type, description, mime_type, validation_command.
func LoadFileTypes(fsys afero.Fs, path string) (FileTypes, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("localfs: open file types %q: %w", path, err)
	}
	defer f.Close()
	return parseFileTypes(f)
}

func parseFileTypes(r io.Reader) (FileTypes, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("localfs: read file types header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"extension", "validation_command"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("localfs: file types CSV is missing column %q", required)
		}
	}

	field := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	types := make(FileTypes)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("localfs: read file types row: %w", err)
		}
		ext := strings.ToLower(field(record, "extension"))
		if ext == "" {
			continue
		}
		types[ext] = FileType{
			Extension:         ext,
			Kind:              field(record, "type"),
			Description:       field(record, "description"),
			MimeType:          field(record, "mime_type"),
			ValidationCommand: field(record, "validation_command"),
		}
	}
	return types, nil
}
