package localfs

// Property is one entry in a tool's input schema.
type Property struct {
	Type        string    `json:"type"`
	Description string    `json:"description,omitempty"`
	Enum        []string  `json:"enum,omitempty"`
	Default     any       `json:"default,omitempty"`
	Items       *Property `json:"items,omitempty"`
}

// InputSchema is the JSON-schema object describing a tool's arguments.
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// ToolDecl is one entry of the tools/list result.
type ToolDecl struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

var contentFormatEnum = []string{"raw_utf8", "quoted-printable", "base64"}

var pathProperty = Property{Type: "string", Description: "The path to the file, absolute or relative to the workspace root."}

var inputFormatProperty = Property{
	Type:        "string",
	Enum:        contentFormatEnum,
	Default:     "raw_utf8",
	Description: "The format of the content arguments (Raw UTF-8, Quoted-Printable or Base64 string).",
}

var fileEncodingProperty = Property{
	Type:        "string",
	Default:     "utf-8",
	Description: "Text encoding to use for text files (ignored in binary mode).",
}

var modeProperty = Property{
	Type:        "string",
	Enum:        []string{"text", "binary"},
	Default:     "text",
	Description: "File mode: 'text' for text files, 'binary' for binary files.",
}

var offsetTypeProperty = Property{
	Type:        "string",
	Enum:        []string{"line", "char", "byte"},
	Default:     "line",
	Description: "Specifies how offsets are interpreted (Line, Char, or Byte).",
}

// ToolDeclarations returns the closed set of tools the server exposes, in
// the order they are listed to clients.
func ToolDeclarations() []ToolDecl {
	return []ToolDecl{
		{
			Name:        "list_dir",
			Description: "Lists the names of files and subdirectories directly within a specified directory path.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"path":      {Type: "string", Description: "The path to the directory to list."},
					"limit":     {Type: "integer", Default: 100, Description: "The maximum number of items (files + directories) to return."},
					"recursive": {Type: "boolean", Default: false, Description: "If true, the listing includes contents of subdirectories recursively."},
				},
				Required: []string{"path"},
			},
		},
		{
			Name:        "create_dirs",
			Description: "Creates a directory and any necessary parent directories.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"path": {Type: "string", Description: "The path of the directory to create."},
				},
				Required: []string{"path"},
			},
		},
		{
			Name:        "find_paths",
			Description: "Searches for files based on keywords in path/name or content.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"path": {Type: "string", Description: "The path to the directory to start the search."},
					"keywords_path_name": {
						Type:        "array",
						Items:       &Property{Type: "string"},
						Default:     []string{},
						Description: "A list of strings to search for within the file's path or name.",
					},
					"keywords_file_content": {
						Type:        "array",
						Items:       &Property{Type: "string"},
						Default:     []string{},
						Description: "A list of strings to search for within the file's content.",
					},
					"regex_keywords": {
						Type:        "boolean",
						Default:     false,
						Description: "If true, keywords are treated as regular expressions.",
					},
				},
				Required: []string{"path"},
			},
		},
		{
			Name:        "read_from_file",
			Description: "Reads file content with support for offsets, various file types (text, binary, image), and line numbering for text files. Returns content in the specified output format.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"path":                   pathProperty,
					"start_offset_inclusive": {Type: "integer", Default: 0, Description: "The starting offset (byte, char, or line number, 0-indexed)."},
					"end_offset_inclusive":   {Type: "integer", Default: -1, Description: "The ending offset (inclusive, -1 for end of file)."},
					"offset_type":            offsetTypeProperty,
					"output_format": {
						Type:        "string",
						Enum:        contentFormatEnum,
						Default:     "raw_utf8",
						Description: "The format of the returned content (Raw UTF-8, Quoted-Printable or Base64 string).",
					},
					"file_encoding": fileEncodingProperty,
				},
				Required: []string{"path"},
			},
		},
		{
			Name:        "write_to_file",
			Description: "Writes content to a file, creating parent directories if needed. Supports text/binary modes; generates diffs for text.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"path":          pathProperty,
					"new_content":   {Type: "string", Description: "The content to write. Format depends on `input_format`."},
					"mode":          modeProperty,
					"input_format":  inputFormatProperty,
					"file_encoding": fileEncodingProperty,
				},
				Required: []string{"path", "new_content"},
			},
		},
		{
			Name:        "modify_file",
			Description: "Modifies a file by replacing a range of content with new content.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"path":                   pathProperty,
					"start_offset_inclusive": {Type: "integer", Default: 0, Description: "The 0-indexed starting offset (inclusive)."},
					"end_offset_inclusive":   {Type: "integer", Default: -1, Description: "The 0-indexed ending offset (inclusive, -1 for end of file)."},
					"offset_type":            offsetTypeProperty,
					"new_content":            {Type: "string", Description: "The new content to replace the specified range. Format depends on `input_format`."},
					"input_format":           inputFormatProperty,
					"file_encoding":          fileEncodingProperty,
					"mode":                   modeProperty,
				},
				Required: []string{"path", "new_content"},
			},
		},
		{
			Name:        "replace_in_file",
			Description: "Replaces occurrences of old_content with new_content within a file, with regex support.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"path":                  pathProperty,
					"old_content":           {Type: "string", Description: "The content to find. Format depends on `input_format`."},
					"new_content":           {Type: "string", Description: "The content to replace with. Format depends on `input_format`."},
					"number_of_occurrences": {Type: "integer", Default: -1, Description: "The number of occurrences to replace (-1 for all)."},
					"is_regex":              {Type: "boolean", Default: false, Description: "If true, old_content is treated as a regular expression."},
					"mode":                  modeProperty,
					"input_format":          inputFormatProperty,
					"file_encoding":         fileEncodingProperty,
				},
				Required: []string{"path", "old_content", "new_content"},
			},
		},
		{
			Name:        "delete_paths",
			Description: "Deletes multiple files or directories.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"paths": {
						Type:        "array",
						Items:       &Property{Type: "string"},
						Description: "A list of file or directory paths to delete.",
					},
				},
				Required: []string{"paths"},
			},
		},
	}
}
