package localfs

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// DefaultMaxFileSize is the ceiling on any file the tools will touch.
const DefaultMaxFileSize = 100 * 1024 * 1024

// Workspace is the sandboxed filesystem every tool operates on. All paths are
// resolved against the root; anything that escapes it is rejected before a
// single syscall touches the target.
type Workspace struct {
	fs          afero.Fs
	root        string
	maxFileSize int64
	log         *zap.Logger
	validator   *Validator
}

// WorkspaceOption configures a Workspace.
type WorkspaceOption func(*Workspace)

// WithMaxFileSize overrides the file size ceiling.
func WithMaxFileSize(n int64) WorkspaceOption {
	return func(ws *Workspace) { ws.maxFileSize = n }
}

// WithWorkspaceLogger sets the structured logger.
func WithWorkspaceLogger(log *zap.Logger) WorkspaceOption {
	return func(ws *Workspace) { ws.log = log }
}

// WithValidator wires the staged-mutation validator.
func WithValidator(v *Validator) WorkspaceOption {
	return func(ws *Workspace) { ws.validator = v }
}

// NewWorkspace roots a workspace at dir on fsys. The root must exist and be
// a directory; it is resolved once and is immutable afterwards.
func NewWorkspace(fsys afero.Fs, dir string, opts ...WorkspaceOption) (*Workspace, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("localfs: resolve root %q: %w", dir, err)
	}
	ws := &Workspace{
		fs:          fsys,
		maxFileSize: DefaultMaxFileSize,
		log:         zap.NewNop(),
	}
	ws.root = ws.evalSymlinks(abs)
	for _, opt := range opts {
		opt(ws)
	}

	info, err := fsys.Stat(ws.root)
	if err != nil {
		return nil, &NotFoundError{Path: dir}
	}
	if !info.IsDir() {
		return nil, &WrongKindError{Path: dir, Want: "directory"}
	}
	return ws, nil
}

// Root reports the resolved workspace root.
func (ws *Workspace) Root() string { return ws.root }

// Fs exposes the underlying filesystem.
func (ws *Workspace) Fs() afero.Fs { return ws.fs }

// Resolve maps a tool path argument to an absolute path and enforces the
// sandbox: relative paths are joined onto the root, symlinks are resolved,
// and the result must stay within the root.
func (ws *Workspace) Resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("localfs: path cannot be empty")
	}
	candidate := path
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(ws.root, candidate)
	}
	resolved := ws.evalSymlinks(filepath.Clean(candidate))

	sep := string(filepath.Separator)
	if resolved != ws.root && !strings.HasPrefix(resolved, ws.root+sep) {
		return "", &SandboxError{Path: path, Root: ws.root}
	}
	return resolved, nil
}

// evalSymlinks resolves symlinks component by component when the filesystem
// supports reading links (the OS filesystem does; in-memory test filesystems
// do not and fall back to the lexical path). Missing components simply stay
// lexical, so paths about to be created still resolve.
func (ws *Workspace) evalSymlinks(path string) string {
	lr, ok := ws.fs.(afero.LinkReader)
	if !ok {
		return filepath.Clean(path)
	}

	sep := string(filepath.Separator)
	resolved := sep
	if vol := filepath.VolumeName(path); vol != "" {
		resolved = vol + sep
	}

	const maxHops = 40
	hops := 0
	for _, comp := range strings.Split(filepath.Clean(path), sep) {
		if comp == "" {
			continue
		}
		candidate := filepath.Join(resolved, comp)
		for {
			target, err := lr.ReadlinkIfPossible(candidate)
			if err != nil {
				break
			}
			hops++
			if hops > maxHops {
				// A link cycle; the lexical path at least stays inside the
				// containment check.
				return filepath.Clean(path)
			}
			if filepath.IsAbs(target) {
				candidate = filepath.Clean(target)
			} else {
				candidate = filepath.Join(filepath.Dir(candidate), target)
			}
		}
		resolved = candidate
	}
	return resolved
}

// checkFileSize rejects files over the ceiling. Absent files pass; the
// caller decides whether absence is an error.
func (ws *Workspace) checkFileSize(path string) error {
	info, err := ws.fs.Stat(path)
	if err != nil {
		return nil
	}
	if info.Size() > ws.maxFileSize {
		return &CapacityError{Path: path, Size: info.Size(), Max: ws.maxFileSize}
	}
	return nil
}

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".webp": true, ".svg": true,
}

var binaryExtensions = map[string]bool{
	".bin": true, ".exe": true, ".dll": true, ".zip": true, ".tar": true,
	".gz": true, ".7z": true, ".rar": true, ".pdf": true,
}

type fileKind int

const (
	kindText fileKind = iota
	kindImage
	kindBinary
)

func kindOf(path string) fileKind {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case imageExtensions[ext]:
		return kindImage
	case binaryExtensions[ext]:
		return kindBinary
	default:
		return kindText
	}
}

var textExtensions = map[string]bool{
	".txt": true, ".log": true, ".csv": true, ".json": true, ".xml": true,
	".html": true, ".css": true, ".js": true, ".py": true, ".java": true,
	".c": true, ".cpp": true, ".h": true, ".hpp": true, ".md": true,
	".yml": true, ".yaml": true, ".ini": true, ".cfg": true, ".conf": true,
	".sh": true, ".bat": true, ".ps1": true, ".jsonl": true, ".go": true,
}

// isTextFile sniffs whether a file holds text: known text extensions pass
// outright, otherwise the first KiB must be NUL-free valid UTF-8.
func (ws *Workspace) isTextFile(path string) bool {
	if textExtensions[strings.ToLower(filepath.Ext(path))] {
		return true
	}
	f, err := ws.fs.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	chunk := make([]byte, 1024)
	n, err := f.Read(chunk)
	if err != nil && n == 0 {
		return false
	}
	chunk = chunk[:n]
	for _, b := range chunk {
		if b == 0 {
			return false
		}
	}
	return validUTF8Prefix(chunk)
}

// validUTF8Prefix accepts a byte slice that is valid UTF-8 except possibly
// for a rune cut off at the end of the sampled window.
func validUTF8Prefix(chunk []byte) bool {
	for i := 0; i < 4; i++ {
		if utf8.Valid(chunk) {
			return true
		}
		if len(chunk) == 0 {
			return false
		}
		chunk = chunk[:len(chunk)-1]
	}
	return false
}
