package jsonrpc2

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultCallTimeout bounds every outbound request that does not carry
	// an earlier context deadline.
	DefaultCallTimeout = 5 * time.Second

	// defaultJoinTimeout bounds how long Stop waits for the reader to exit
	// after the stream is closed.
	defaultJoinTimeout = 2 * time.Second

	// defaultMaxFrameSize caps a single inbound line. Frames can carry whole
	// file contents, so the cap is generous.
	defaultMaxFrameSize = 256 << 20
)

// Handler is the delegate for inbound traffic. The peer calls Handle for
// every inbound request and notification, in arrival order, on the reader
// goroutine. Returning ErrMethodNotFound produces a -32601 reply; returning
// an *ArgumentError produces -32603 with the error text; any other error
// also maps to -32603.
type Handler interface {
	Handle(method string, params json.RawMessage) (any, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(method string, params json.RawMessage) (any, error)

func (f HandlerFunc) Handle(method string, params json.RawMessage) (any, error) {
	return f(method, params)
}

type callResult struct {
	result json.RawMessage
	errObj *ErrorObject
	err    error
}

// Peer is a bidirectional JSON-RPC 2.0 endpoint over a newline-delimited
// stream, typically a child process's stdio. One background reader parses
// inbound frames and demultiplexes them into peer-initiated requests
// (dispatched to the Handler) and responses (delivered to waiting callers).
//
// Outbound ids are allocated under the same lock that inserts the pending
// entry, so ids are strictly increasing and every allocated id has a waiter.
type Peer struct {
	stream      io.ReadWriteCloser
	handler     Handler
	log         *zap.Logger
	callTimeout time.Duration
	joinTimeout time.Duration
	maxFrame    int

	wmu sync.Mutex
	enc *json.Encoder

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan callResult
	started bool
	stopped bool

	done    chan struct{}
	readErr error
}

// Option configures a Peer.
type Option func(*Peer)

// WithHandler sets the delegate for inbound requests and notifications.
func WithHandler(h Handler) Option { return func(p *Peer) { p.handler = h } }

// WithCallTimeout overrides the default per-call deadline.
func WithCallTimeout(d time.Duration) Option { return func(p *Peer) { p.callTimeout = d } }

// WithJoinTimeout overrides how long Stop waits for the reader.
func WithJoinTimeout(d time.Duration) Option { return func(p *Peer) { p.joinTimeout = d } }

// WithLogger sets the structured logger. Defaults to a nop logger.
func WithLogger(log *zap.Logger) Option { return func(p *Peer) { p.log = log } }

// WithMaxFrameSize caps the size of a single inbound frame.
func WithMaxFrameSize(n int) Option { return func(p *Peer) { p.maxFrame = n } }

// NewPeer wraps a stream in a Peer. Call Start to launch the reader.
func NewPeer(stream io.ReadWriteCloser, opts ...Option) *Peer {
	p := &Peer{
		stream:      stream,
		log:         zap.NewNop(),
		callTimeout: DefaultCallTimeout,
		joinTimeout: defaultJoinTimeout,
		maxFrame:    defaultMaxFrameSize,
		enc:         json.NewEncoder(stream),
		pending:     make(map[int64]chan callResult),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the background reader. Subsequent calls are no-ops.
func (p *Peer) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true
	go p.readLoop()
}

// Stop refuses new sends, closes the stream to unblock the reader, joins the
// reader with a bounded deadline, and fails every pending call with
// ErrShutdown.
func (p *Peer) Stop() error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	started := p.started
	p.mu.Unlock()

	err := p.stream.Close()

	if started {
		select {
		case <-p.done:
		case <-time.After(p.joinTimeout):
			p.log.Warn("reader did not exit before join deadline")
		}
	}
	p.drainPending(ErrShutdown)
	return err
}

// Done is closed when the reader exits (EOF, framing error, or Stop).
func (p *Peer) Done() <-chan struct{} { return p.done }

// Err reports why the reader terminated. Nil after a clean EOF or before the
// reader exits.
func (p *Peer) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.readErr
}

// Call sends a request and blocks until its response arrives, the deadline
// passes, ctx is cancelled, or the peer shuts down. A non-nil result is
// unmarshalled from the response's result member. JSON-RPC error frames
// surface as *RequestError.
func (p *Peer) Call(ctx context.Context, method string, params, result any) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrShutdown
	}
	p.nextID++
	id := p.nextID
	ch := make(chan callResult, 1)
	p.pending[id] = ch
	p.mu.Unlock()

	req := &Request{JSONRPC: Version, ID: &id, Method: method, Params: params}
	if err := p.send(req); err != nil {
		p.forget(id)
		return fmt.Errorf("jsonrpc2: send %s: %w", method, err)
	}

	timer := time.NewTimer(p.callTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		return finishCall(res, method, result)
	case <-timer.C:
		p.forget(id)
		return &TimeoutError{Method: method, Timeout: p.callTimeout}
	case <-ctx.Done():
		p.forget(id)
		// The response may have raced the cancellation; prefer it.
		select {
		case res := <-ch:
			return finishCall(res, method, result)
		default:
			return ctx.Err()
		}
	}
}

func finishCall(res callResult, method string, result any) error {
	if res.err != nil {
		return res.err
	}
	if res.errObj != nil {
		return &RequestError{Code: res.errObj.Code, Message: res.errObj.Message, Data: res.errObj.Data}
	}
	if result != nil && res.result != nil {
		if err := json.Unmarshal(res.result, result); err != nil {
			return fmt.Errorf("jsonrpc2: unmarshal %s result: %w", method, err)
		}
	}
	return nil
}

// Notify sends a frame without an id and never waits for a reply.
func (p *Peer) Notify(method string, params any) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrShutdown
	}
	p.mu.Unlock()
	return p.send(&Request{JSONRPC: Version, Method: method, Params: params})
}

func (p *Peer) send(v any) error {
	p.wmu.Lock()
	defer p.wmu.Unlock()
	return p.enc.Encode(v)
}

func (p *Peer) forget(id int64) {
	p.mu.Lock()
	delete(p.pending, id)
	p.mu.Unlock()
}

func (p *Peer) readLoop() {
	defer close(p.done)
	defer p.drainPending(ErrShutdown)

	scanner := bufio.NewScanner(p.stream)
	scanner.Buffer(make([]byte, 0, 64*1024), p.maxFrame)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		msg, err := DecodeFrame(line)
		if err != nil {
			p.setReadErr(err)
			p.log.Error("terminating reader on malformed frame", zap.Error(err))
			return
		}
		switch msg.Kind() {
		case KindRequest:
			p.serveRequest(msg)
		case KindNotification:
			p.serveNotification(msg)
		case KindResponse:
			p.deliver(msg)
		default:
			err := &FramingError{Err: errors.New("frame is neither request, notification, nor response")}
			p.setReadErr(err)
			p.log.Error("terminating reader on unclassifiable frame", zap.Error(err))
			return
		}
	}

	if err := scanner.Err(); err != nil {
		if !errors.Is(err, io.ErrClosedPipe) && !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
			p.setReadErr(err)
		}
	}
}

func (p *Peer) setReadErr(err error) {
	p.mu.Lock()
	if p.readErr == nil {
		p.readErr = err
	}
	p.mu.Unlock()
}

// serveRequest invokes the delegate and emits exactly one terminal frame for
// the request's id. Handlers run on the reader goroutine, so two inbound
// requests never interleave.
func (p *Peer) serveRequest(msg *Message) {
	result, err := p.dispatch(msg.Method, msg.Params)
	if err != nil {
		var argErr *ArgumentError
		switch {
		case errors.Is(err, ErrMethodNotFound):
			p.sendError(*msg.ID, CodeMethodNotFound, "Method not found")
		case errors.As(err, &argErr):
			p.sendError(*msg.ID, CodeInternalError, argErr.Error())
		default:
			p.sendError(*msg.ID, CodeInternalError, err.Error())
		}
		return
	}
	p.sendResult(*msg.ID, result)
}

func (p *Peer) serveNotification(msg *Message) {
	if _, err := p.dispatch(msg.Method, msg.Params); err != nil && !errors.Is(err, ErrMethodNotFound) {
		p.log.Warn("notification handler failed", zap.String("method", msg.Method), zap.Error(err))
	}
}

func (p *Peer) dispatch(method string, params json.RawMessage) (any, error) {
	if p.handler == nil {
		return nil, ErrMethodNotFound
	}
	return p.handler.Handle(method, params)
}

// deliver completes the waiter for a response's id. First terminal frame
// wins; anything later, or a response nobody waits for, is dropped.
func (p *Peer) deliver(msg *Message) {
	p.mu.Lock()
	ch, ok := p.pending[*msg.ID]
	if ok {
		delete(p.pending, *msg.ID)
	}
	p.mu.Unlock()
	if !ok {
		p.log.Debug("dropping response with no waiter", zap.Int64("id", *msg.ID))
		return
	}
	ch <- callResult{result: msg.Result, errObj: msg.Error}
}

func (p *Peer) sendResult(id int64, result any) {
	data, err := json.Marshal(result)
	if err != nil {
		p.sendError(id, CodeInternalError, "marshal result: "+err.Error())
		return
	}
	resp := &Response{JSONRPC: Version, ID: &id, Result: data}
	if err := p.send(resp); err != nil {
		p.log.Warn("failed to send response", zap.Int64("id", id), zap.Error(err))
	}
}

func (p *Peer) sendError(id int64, code int, message string) {
	resp := &Response{JSONRPC: Version, ID: &id, Error: &ErrorObject{Code: code, Message: message}}
	if err := p.send(resp); err != nil {
		p.log.Warn("failed to send error response", zap.Int64("id", id), zap.Error(err))
	}
}

func (p *Peer) drainPending(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, ch := range p.pending {
		ch <- callResult{err: err}
		delete(p.pending, id)
	}
}
