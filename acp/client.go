package acp

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/amilabs/orchestrator/jsonrpc2"
	"github.com/amilabs/orchestrator/proc"
)

// ProtocolVersion is the handshake version sent in initialize.
const ProtocolVersion = "0.0.9"

// Client drives an external agent process over the Agent-Coordinator
// Protocol. Start spawns the agent and wires a jsonrpc2.Peer over its stdio;
// inbound requests from the agent are dispatched to the embedder-supplied
// delegate. All outbound calls inherit the peer's default call timeout and
// surface JSON-RPC error frames as *jsonrpc2.RequestError.
type Client struct {
	program  string
	args     []string
	delegate jsonrpc2.Handler
	log      *zap.Logger
	timeout  time.Duration

	child *proc.Child
	peer  *jsonrpc2.Peer

	// newStream lets tests substitute an in-memory duplex for a real child.
	newStream func() (io.ReadWriteCloser, error)
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithArgs sets the agent's command-line arguments.
func WithArgs(args ...string) ClientOption {
	return func(c *Client) { c.args = args }
}

// WithLogger sets the structured logger.
func WithLogger(log *zap.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// WithCallTimeout overrides the outbound request deadline.
func WithCallTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// WithStream substitutes the agent's stdio with an arbitrary stream and
// skips spawning a child. Intended for tests against scripted agents.
func WithStream(stream io.ReadWriteCloser) ClientOption {
	return func(c *Client) {
		c.newStream = func() (io.ReadWriteCloser, error) { return stream, nil }
	}
}

// NewClient prepares a client for the agent at program. The delegate
// receives the agent's inbound requests; methods it does not recognize must
// return jsonrpc2.ErrMethodNotFound.
func NewClient(program string, delegate jsonrpc2.Handler, opts ...ClientOption) *Client {
	c := &Client{
		program:  program,
		delegate: delegate,
		log:      zap.NewNop(),
		timeout:  jsonrpc2.DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start spawns the agent and launches the peer's reader.
func (c *Client) Start() error {
	stream, err := c.acquireStream()
	if err != nil {
		return fmt.Errorf("acp: start agent: %w", err)
	}
	c.peer = jsonrpc2.NewPeer(stream,
		jsonrpc2.WithHandler(c.delegate),
		jsonrpc2.WithCallTimeout(c.timeout),
		jsonrpc2.WithLogger(c.log),
	)
	c.peer.Start()
	c.log.Info("agent started", zap.String("program", c.program))
	return nil
}

func (c *Client) acquireStream() (io.ReadWriteCloser, error) {
	if c.newStream != nil {
		return c.newStream()
	}
	child, err := proc.Start(c.program, c.args, proc.WithChildLogger(c.log))
	if err != nil {
		return nil, err
	}
	c.child = child
	return child.Stdio(), nil
}

// Stop stops the peer, failing in-flight calls, and terminates the agent.
func (c *Client) Stop() error {
	var firstErr error
	if c.peer != nil {
		if err := c.peer.Stop(); err != nil {
			firstErr = err
		}
	}
	if c.child != nil {
		if err := c.child.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Initialize performs the handshake and returns the agent's capabilities.
func (c *Client) Initialize(ctx context.Context, params InitializeParams) (InitializeResponse, error) {
	var resp InitializeResponse
	if err := c.call(ctx, "initialize", params, &resp); err != nil {
		return InitializeResponse{}, err
	}
	return resp, nil
}

// SendUserMessage forwards a user message and waits for the agent to accept
// it; the result payload is discarded.
func (c *Client) SendUserMessage(ctx context.Context, params SendUserMessageParams) error {
	return c.call(ctx, "sendUserMessage", params, nil)
}

// CancelSendMessage asks the agent to abandon the in-flight message.
func (c *Client) CancelSendMessage(ctx context.Context) error {
	return c.call(ctx, "cancelSendMessage", nil, nil)
}

func (c *Client) call(ctx context.Context, method string, params, result any) error {
	if c.peer == nil {
		return fmt.Errorf("acp: client not started")
	}
	return c.peer.Call(ctx, method, params, result)
}
