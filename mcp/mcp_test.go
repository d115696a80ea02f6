package mcp

import (
	"context"
	"io"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amilabs/orchestrator/localfs"
)

type duplex struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func (d *duplex) Read(p []byte) (int, error)  { return d.r.Read(p) }
func (d *duplex) Write(p []byte) (int, error) { return d.w.Write(p) }

func (d *duplex) Close() error {
	_ = d.w.Close()
	return d.r.Close()
}

func newDuplexPair() (*duplex, *duplex) {
	ar, bw := io.Pipe()
	br, aw := io.Pipe()
	return &duplex{r: ar, w: aw}, &duplex{r: br, w: bw}
}

// startToolServer runs a real file tool server on the far end of an
// in-memory stream, standing in for a spawned child process.
func startToolServer(t *testing.T) (*duplex, *localfs.Workspace) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll("/work", 0o755))
	ws, err := localfs.NewWorkspace(fsys, "/work")
	require.NoError(t, err)

	near, far := newDuplexPair()
	go func() {
		_ = localfs.NewServer(ws).Run(far, far)
		far.Close()
	}()
	return near, ws
}

func TestServerHandshakeListAndCall(t *testing.T) {
	stream, _ := startToolServer(t)
	server, err := NewServer("localfs", "", WithStream(stream))
	require.NoError(t, err)
	defer server.Close()

	ctx := context.Background()
	require.NoError(t, server.Start(ctx))

	tools, err := server.ListTools(ctx)
	require.NoError(t, err)
	assert.Len(t, tools, 8)
	tool, ok := tools.ByName("write_to_file")
	require.True(t, ok)
	assert.NotEmpty(t, tool.InputSchema)

	content, err := server.Call(ctx, "write_to_file", map[string]any{
		"path":        "hello.txt",
		"new_content": "hi there\n",
	})
	require.NoError(t, err)
	require.Len(t, content, 1)
	assert.Contains(t, content[0].Text, "Successfully wrote text content")

	content, err = server.Call(ctx, "read_from_file", map[string]any{"path": "hello.txt"})
	require.NoError(t, err)
	assert.Equal(t, "hi there\n", content[0].Text)
}

func TestServerCallErrorSurfacesMessage(t *testing.T) {
	stream, _ := startToolServer(t)
	server, err := NewServer("localfs", "", WithStream(stream))
	require.NoError(t, err)
	defer server.Close()

	ctx := context.Background()
	require.NoError(t, server.Start(ctx))

	_, err = server.Call(ctx, "read_from_file", map[string]any{"path": "missing.txt"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "File not found")
}

func TestNewServerSplitsCommand(t *testing.T) {
	server, err := NewServer("files", "python3 -m server --root-dir /tmp")
	require.NoError(t, err)
	assert.Equal(t, "python3", server.cmdPath)
	assert.Equal(t, []string{"-m", "server", "--root-dir", "/tmp"}, server.cmdArgs)
}

func TestNewServerEmptyCommand(t *testing.T) {
	_, err := NewServer("files", "")
	assert.Error(t, err)
}

func TestToolsByName(t *testing.T) {
	tools := Tools{{Name: "a"}, {Name: "b"}}
	_, ok := tools.ByName("b")
	assert.True(t, ok)
	_, ok = tools.ByName("c")
	assert.False(t, ok)
}
