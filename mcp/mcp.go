// Package mcp manages tool-server child processes from the client side: it
// spawns a server, runs the initialize handshake over newline-delimited
// JSON-RPC, lists the declared tools, and proxies tool invocations.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/amilabs/orchestrator/jsonrpc2"
	"github.com/amilabs/orchestrator/proc"
)

// protocolVersion is the handshake version this client announces.
const protocolVersion = "2025-06-18"

// Tool is one declaration from tools/list.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// Tools is a set of declarations.
type Tools []Tool

// ByName finds a tool declaration by name.
func (t Tools) ByName(name string) (Tool, bool) {
	for _, tool := range t {
		if tool.Name == name {
			return tool, true
		}
	}
	return Tool{}, false
}

// ToolContent is one content block of a tools/call result.
type ToolContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type initializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"clientInfo"`
}

type initializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities,omitempty"`
}

type toolsListResult struct {
	Tools Tools `json:"tools"`
}

type toolsCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type toolsCallResult struct {
	Content []ToolContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// Server is a supervised tool-server process and the peer used to talk to
// it.
type Server struct {
	id      string
	cmdPath string
	cmdArgs []string
	log     *zap.Logger
	timeout time.Duration

	child *proc.Child
	peer  *jsonrpc2.Peer

	// newStream substitutes the child's stdio in tests.
	newStream func() (io.ReadWriteCloser, error)
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the structured logger.
func WithLogger(log *zap.Logger) ServerOption {
	return func(s *Server) { s.log = log }
}

// WithCallTimeout overrides the outbound request deadline.
func WithCallTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.timeout = d }
}

// WithStream substitutes the server's stdio with an arbitrary stream and
// skips spawning a child. Intended for tests.
func WithStream(stream io.ReadWriteCloser) ServerOption {
	return func(s *Server) {
		s.newStream = func() (io.ReadWriteCloser, error) { return stream, nil }
	}
}

// NewServer prepares a server from an id and a command line. The command is
// split on whitespace into the executable and its arguments.
func NewServer(id string, cmd string, opts ...ServerOption) (*Server, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 && cmd != "" {
		return nil, fmt.Errorf("mcp: command for server %q cannot be empty", id)
	}
	s := &Server{
		id:      id,
		log:     zap.NewNop(),
		timeout: jsonrpc2.DefaultCallTimeout,
	}
	if len(parts) > 0 {
		s.cmdPath = parts[0]
		s.cmdArgs = parts[1:]
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cmdPath == "" && s.newStream == nil {
		return nil, fmt.Errorf("mcp: command for server %q cannot be empty", id)
	}
	return s, nil
}

// Start spawns the server process and performs the initialization
// handshake.
func (s *Server) Start(ctx context.Context) error {
	stream, err := s.acquireStream()
	if err != nil {
		return fmt.Errorf("mcp: start server %q: %w", s.id, err)
	}
	s.peer = jsonrpc2.NewPeer(stream,
		jsonrpc2.WithCallTimeout(s.timeout),
		jsonrpc2.WithLogger(s.log),
	)
	s.peer.Start()

	params := initializeParams{
		ProtocolVersion: protocolVersion,
		Capabilities:    map[string]any{},
	}
	params.ClientInfo.Name = "orchestrator"
	params.ClientInfo.Version = "1.0.0"

	var result initializeResult
	if err := s.peer.Call(ctx, "initialize", params, &result); err != nil {
		_ = s.Close()
		return fmt.Errorf("mcp: initialize %q: %w", s.id, err)
	}
	if err := s.peer.Notify("notifications/initialized", nil); err != nil {
		_ = s.Close()
		return fmt.Errorf("mcp: notify initialized %q: %w", s.id, err)
	}
	s.log.Info("tool server ready", zap.String("server", s.id), zap.String("protocol", result.ProtocolVersion))
	return nil
}

func (s *Server) acquireStream() (io.ReadWriteCloser, error) {
	if s.newStream != nil {
		return s.newStream()
	}
	child, err := proc.Start(s.cmdPath, s.cmdArgs, proc.WithChildLogger(s.log))
	if err != nil {
		return nil, err
	}
	s.child = child
	return child.Stdio(), nil
}

// ListTools fetches the server's tool declarations.
func (s *Server) ListTools(ctx context.Context) (Tools, error) {
	var result toolsListResult
	if err := s.peer.Call(ctx, "tools/list", map[string]any{}, &result); err != nil {
		return nil, fmt.Errorf("mcp: tools/list %q: %w", s.id, err)
	}
	return result.Tools, nil
}

// Call invokes a tool and returns its content blocks.
func (s *Server) Call(ctx context.Context, toolName string, arguments map[string]any) ([]ToolContent, error) {
	params := toolsCallParams{Name: toolName, Arguments: arguments}
	var result toolsCallResult
	if err := s.peer.Call(ctx, "tools/call", params, &result); err != nil {
		return nil, fmt.Errorf("mcp: tools/call %q (tool %s): %w", s.id, toolName, err)
	}
	if result.IsError {
		if len(result.Content) > 0 && result.Content[0].Type == "text" {
			return result.Content, fmt.Errorf("mcp: tool %q failed: %s", toolName, result.Content[0].Text)
		}
		return result.Content, fmt.Errorf("mcp: tool %q failed", toolName)
	}
	return result.Content, nil
}

// Close stops the peer and terminates the server process.
func (s *Server) Close() error {
	var firstErr error
	if s.peer != nil {
		if err := s.peer.Stop(); err != nil {
			firstErr = err
		}
	}
	if s.child != nil {
		if err := s.child.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
