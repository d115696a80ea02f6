package localfs

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/amilabs/orchestrator/jsonrpc2"
)

// ProtocolVersion is the handshake version reported by initialize.
const ProtocolVersion = "2025-06-18"

// ServerInfo names the server in the initialize response.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult is the initialize handshake payload.
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	ServerInfo      ServerInfo     `json:"serverInfo"`
	Capabilities    map[string]any `json:"capabilities"`
}

// ToolsListResult is the tools/list payload.
type ToolsListResult struct {
	Tools []ToolDecl `json:"tools"`
}

// CallParams are the tools/call request parameters.
type CallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ContentBlock is one element of a tools/call result.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallResult is the tools/call payload.
type CallResult struct {
	Content []ContentBlock `json:"content"`
}

// Server exposes the workspace tools over the JSON-RPC protocol surface:
// initialize, notifications/initialized, tools/list, tools/call. It
// implements jsonrpc2.Handler and also carries its own synchronous stdio run
// loop.
type Server struct {
	ws     *Workspace
	log    *zap.Logger
	decls  []ToolDecl
	byName map[string]ToolDecl
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the structured logger.
func WithServerLogger(log *zap.Logger) ServerOption {
	return func(s *Server) { s.log = log }
}

// NewServer builds a Server over a workspace.
func NewServer(ws *Workspace, opts ...ServerOption) *Server {
	s := &Server{
		ws:    ws,
		log:   zap.NewNop(),
		decls: ToolDeclarations(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.byName = make(map[string]ToolDecl, len(s.decls))
	for _, decl := range s.decls {
		s.byName[decl.Name] = decl
	}
	return s
}

// Handle implements jsonrpc2.Handler for the protocol surface.
func (s *Server) Handle(method string, params json.RawMessage) (any, error) {
	switch method {
	case "initialize":
		s.log.Info("initialize handshake")
		return InitializeResult{
			ProtocolVersion: ProtocolVersion,
			ServerInfo:      ServerInfo{Name: "Local Files", Version: "1.0.0"},
			Capabilities:    map[string]any{"tools": map[string]any{}},
		}, nil
	case "notifications/initialized":
		s.log.Info("client initialization complete")
		return nil, nil
	case "tools/list":
		return ToolsListResult{Tools: s.decls}, nil
	case "tools/call":
		return s.callTool(params)
	default:
		return nil, jsonrpc2.ErrMethodNotFound
	}
}

func (s *Server) callTool(params json.RawMessage) (any, error) {
	var call CallParams
	if err := json.Unmarshal(params, &call); err != nil {
		return nil, jsonrpc2.Argf("tools/call", "invalid parameters: %v", err)
	}
	decl, ok := s.byName[call.Name]
	if !ok {
		return nil, fmt.Errorf("Unknown tool: '%s'. Available tools: %s", call.Name, strings.Join(s.toolNames(), ", "))
	}

	args := filterArguments(call.Arguments, decl)
	if err := checkRequired(args, decl); err != nil {
		return nil, err
	}

	s.log.Info("executing tool", zap.String("tool", call.Name))
	text, err := s.invoke(call.Name, args)
	if err != nil {
		// The error message leads with its taxonomy class ("Path outside
		// root directory", "File not found", ...); keep it unwrapped so the
		// caller sees the class first and log the tool name here instead.
		s.log.Error("tool execution failed", zap.String("tool", call.Name), zap.Error(err))
		return nil, err
	}
	return CallResult{Content: []ContentBlock{{Type: "text", Text: text}}}, nil
}

func (s *Server) toolNames() []string {
	names := make([]string, 0, len(s.byName))
	for name := range s.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// filterArguments drops every key the tool's schema does not declare.
func filterArguments(args map[string]any, decl ToolDecl) map[string]any {
	filtered := make(map[string]any, len(args))
	for key, value := range args {
		if _, ok := decl.InputSchema.Properties[key]; ok {
			filtered[key] = value
		}
	}
	return filtered
}

func checkRequired(args map[string]any, decl ToolDecl) error {
	for _, key := range decl.InputSchema.Required {
		if _, ok := args[key]; !ok {
			return fmt.Errorf("missing required argument %q for tool %q", key, decl.Name)
		}
	}
	return nil
}

func (s *Server) invoke(name string, args map[string]any) (string, error) {
	switch name {
	case "list_dir":
		return s.ws.ListDir(argString(args, "path", ""), argInt(args, "limit", 100), argBool(args, "recursive", false))
	case "create_dirs":
		return s.ws.CreateDirs(argString(args, "path", ""))
	case "find_paths":
		found, err := s.ws.FindPaths(
			argString(args, "path", ""),
			argStringList(args, "keywords_path_name"),
			argStringList(args, "keywords_file_content"),
			argBool(args, "regex_keywords", false),
		)
		if err != nil {
			return "", err
		}
		return strings.Join(found, "\n"), nil
	case "read_from_file":
		kind, err := ParseOffsetKind(argString(args, "offset_type", "line"))
		if err != nil {
			return "", err
		}
		output, err := ParseContentFormat(argString(args, "output_format", "raw_utf8"))
		if err != nil {
			return "", err
		}
		return s.ws.ReadFromFile(
			argString(args, "path", ""),
			argInt(args, "start_offset_inclusive", 0),
			argInt(args, "end_offset_inclusive", -1),
			kind,
			argString(args, "file_encoding", "utf-8"),
			output,
		)
	case "write_to_file":
		mode, format, err := modeAndFormat(args)
		if err != nil {
			return "", err
		}
		return s.ws.WriteToFile(
			argString(args, "path", ""),
			argString(args, "new_content", ""),
			mode, format,
			argString(args, "file_encoding", "utf-8"),
		)
	case "modify_file":
		mode, format, err := modeAndFormat(args)
		if err != nil {
			return "", err
		}
		kind, err := ParseOffsetKind(argString(args, "offset_type", "line"))
		if err != nil {
			return "", err
		}
		return s.ws.ModifyFile(
			argString(args, "path", ""),
			argInt(args, "start_offset_inclusive", 0),
			argInt(args, "end_offset_inclusive", -1),
			argString(args, "new_content", ""),
			kind, format,
			argString(args, "file_encoding", "utf-8"),
			mode,
		)
	case "replace_in_file":
		mode, format, err := modeAndFormat(args)
		if err != nil {
			return "", err
		}
		return s.ws.ReplaceInFile(
			argString(args, "path", ""),
			argString(args, "old_content", ""),
			argString(args, "new_content", ""),
			argInt(args, "number_of_occurrences", -1),
			argBool(args, "is_regex", false),
			mode, format,
			argString(args, "file_encoding", "utf-8"),
		)
	case "delete_paths":
		return s.ws.DeletePaths(argStringList(args, "paths"))
	default:
		return "", fmt.Errorf("tool %q is declared but not implemented", name)
	}
}

func modeAndFormat(args map[string]any) (FileMode, ContentFormat, error) {
	mode, err := ParseFileMode(argString(args, "mode", "text"))
	if err != nil {
		return 0, 0, err
	}
	format, err := ParseContentFormat(argString(args, "input_format", "raw_utf8"))
	if err != nil {
		return 0, 0, err
	}
	return mode, format, nil
}

func argString(args map[string]any, key, fallback string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return fallback
}

func argInt(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}

func argBool(args map[string]any, key string, fallback bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return fallback
}

func argStringList(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Run is the synchronous server loop: read one newline-delimited frame from
// stdin, dispatch, write the reply to stdout, flush, repeat. A clean EOF
// returns nil; a malformed frame terminates the loop with the framing error.
func (s *Server) Run(stdin io.Reader, stdout io.Writer) error {
	scanner := bufio.NewScanner(stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 256<<20)
	out := bufio.NewWriter(stdout)

	s.log.Info("file tool server started", zap.String("root", s.ws.Root()))
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		msg, err := jsonrpc2.DecodeFrame(line)
		if err != nil {
			s.log.Error("malformed frame, shutting down", zap.Error(err))
			return err
		}

		switch msg.Kind() {
		case jsonrpc2.KindRequest:
			s.reply(out, *msg.ID, msg.Method, msg.Params)
		case jsonrpc2.KindNotification:
			if _, err := s.Handle(msg.Method, msg.Params); err != nil && !errors.Is(err, jsonrpc2.ErrMethodNotFound) {
				s.log.Warn("notification handler failed", zap.String("method", msg.Method), zap.Error(err))
			}
		default:
			s.log.Debug("ignoring non-request frame")
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	s.log.Info("EOF on stdin, shutting down")
	return nil
}

func (s *Server) reply(out *bufio.Writer, id int64, method string, params json.RawMessage) {
	result, err := s.Handle(method, params)

	var resp jsonrpc2.Response
	resp.JSONRPC = jsonrpc2.Version
	resp.ID = &id
	if err != nil {
		resp.Error = toErrorObject(method, err)
	} else {
		data, merr := json.Marshal(result)
		if merr != nil {
			resp.Error = &jsonrpc2.ErrorObject{Code: jsonrpc2.CodeInternalError, Message: "marshal result: " + merr.Error()}
		} else {
			resp.Result = data
		}
	}

	enc := json.NewEncoder(out)
	if err := enc.Encode(&resp); err != nil {
		s.log.Error("failed to send response", zap.Error(err))
		return
	}
	if err := out.Flush(); err != nil {
		s.log.Error("failed to flush response", zap.Error(err))
	}
}

func toErrorObject(method string, err error) *jsonrpc2.ErrorObject {
	var argErr *jsonrpc2.ArgumentError
	switch {
	case errors.Is(err, jsonrpc2.ErrMethodNotFound):
		return &jsonrpc2.ErrorObject{
			Code:    jsonrpc2.CodeMethodNotFound,
			Message: fmt.Sprintf("Unknown method: '%s'. Supported methods: initialize, tools/list, tools/call", method),
		}
	case errors.As(err, &argErr):
		return &jsonrpc2.ErrorObject{Code: jsonrpc2.CodeInternalError, Message: argErr.Error()}
	default:
		return &jsonrpc2.ErrorObject{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
	}
}
